package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema:
//
//   ord:<016x orderID>                  → order (confidential fields sealed)
//   trd:<pair>:<020d ts>:<016x tradeID> → trade (volume/price sealed)
//   bal:<address>:<pair>                → sealed balance
//   px:<pair>                           → price (8-byte big-endian)
//   seq:<name>                          → sequence (8-byte big-endian)
//   rev:<016x requestID>                → reveal request (value sealed)
//
// Trade timestamps are zero-padded so prefix scans iterate in time
// order. Pair names never contain ':'.
const (
	prefixOrder   = "ord:"
	prefixTrade   = "trd:"
	prefixBalance = "bal:"
	prefixPrice   = "px:"
	prefixSeq     = "seq:"
	prefixReveal  = "rev:"
)

func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%016x", prefixOrder, id))
}

func tradeKey(pair string, timestamp int64, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%016x", prefixTrade, pair, timestamp, id))
}

func tradePrefix(pair string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixTrade, pair))
}

func balanceKey(addr common.Address, pair string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, addr.Hex(), pair))
}

func priceKey(pair string) []byte {
	return []byte(prefixPrice + pair)
}

func seqKey(name string) []byte {
	return []byte(prefixSeq + name)
}

func revealKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%016x", prefixReveal, id))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
