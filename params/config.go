package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type API struct {
	Addr string
}

type Storage struct {
	DBPath      string
	JournalPath string
}

type Node struct {
	// AdminAddress is the privileged account (price updates,
	// restricted reads), hex-encoded.
	AdminAddress string
	// SealKey is the 32-byte hex key sealing confidential fields at
	// rest. The default is a development key; override in production.
	SealKey string
	LogFile string
}

type Market struct {
	// SeedPrices initializes the price table on first start.
	SeedPrices map[string]int64
}

type Config struct {
	API     API
	Storage Storage
	Node    Node
	Market  Market
}

func Default() Config {
	return Config{
		API: API{Addr: ":8080"},
		Storage: Storage{
			DBPath:      "data/ledger.db",
			JournalPath: "data/events.log",
		},
		Node: Node{
			AdminAddress: "0x00000000000000000000000000000000000000A1",
			SealKey:      "6f6c5d3f2b1a58c7d9e04f3a71b62c85d1e94a07f3856cb20d74e1a9c8b35f62",
			LogFile:      "data/node.log",
		},
		Market: Market{
			SeedPrices: map[string]int64{
				"BTC/ETH":  15,
				"BTC/USDT": 65000,
				"ETH/USDT": 3500,
			},
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.API.Addr = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("JOURNAL_FILE"); v != "" {
		cfg.Storage.JournalPath = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("ADMIN_ADDRESS"); v != "" {
		cfg.Node.AdminAddress = v
	}
	if v := os.Getenv("SEAL_KEY"); v != "" {
		cfg.Node.SealKey = v
	}
	if v := os.Getenv("SEED_PRICES"); v != "" {
		if prices := parseSeedPrices(v); len(prices) > 0 {
			cfg.Market.SeedPrices = prices
		}
	}

	return cfg
}

// parseSeedPrices parses "BTC/ETH=15,ETH/USDT=3500" into a price map.
// Malformed entries are skipped.
func parseSeedPrices(s string) map[string]int64 {
	prices := make(map[string]int64)
	for _, entry := range strings.Split(s, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			continue
		}
		p, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || p <= 0 {
			continue
		}
		prices[parts[0]] = p
	}
	return prices
}
