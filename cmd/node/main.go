package main

import (
	"context"
	"encoding/hex"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/veildex/veildex/params"
	"github.com/veildex/veildex/pkg/api"
	"github.com/veildex/veildex/pkg/exchange"
	"github.com/veildex/veildex/pkg/storage"
	"github.com/veildex/veildex/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	if !common.IsHexAddress(cfg.Node.AdminAddress) {
		sugar.Fatalw("invalid_admin_address", "address", cfg.Node.AdminAddress)
	}
	admin := common.HexToAddress(cfg.Node.AdminAddress)

	sealKey, err := hex.DecodeString(cfg.Node.SealKey)
	if err != nil {
		sugar.Fatalw("invalid_seal_key", "err", err)
	}

	// ---- Persistence ----
	store, err := storage.NewStore(cfg.Storage.DBPath, sealKey)
	if err != nil {
		sugar.Fatalw("store_init_failed", "err", err)
	}
	defer store.Close()

	// The journal is best-effort: run without it if it cannot open.
	journal, err := storage.NewJournal(cfg.Storage.JournalPath)
	if err != nil {
		sugar.Warnw("journal_disabled", "path", cfg.Storage.JournalPath, "err", err)
		journal = nil
	} else {
		defer journal.Close()
	}

	// ---- Ledger core ----
	ledger, err := exchange.NewLedger(store, exchange.Params{
		Admin:      admin,
		SeedPrices: cfg.Market.SeedPrices,
		Logger:     sugar,
	})
	if err != nil {
		sugar.Fatalw("ledger_init_failed", "err", err)
	}

	// ---- API server ----
	apiServer := api.NewServer(ledger, sugar)

	// Fan ledger notifications out to the journal and WebSocket clients.
	ledger.OnEvent = func(e exchange.Event) {
		if journal != nil {
			if err := journal.Append(e); err != nil {
				sugar.Warnw("journal_append_failed", "err", err)
			}
		}
		apiServer.BroadcastEvent(e)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := apiServer.Start(cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("node_started",
		"api_addr", cfg.API.Addr,
		"admin", admin.Hex(),
		"pairs", len(ledger.Pairs()))

	<-ctx.Done()
	sugar.Info("shutting_down")
}
