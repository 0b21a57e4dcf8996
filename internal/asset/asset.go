package asset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// NativeMint is the wrapped SOL mint the aggregator uses for the native asset.
var NativeMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

// ResolvedAsset is a canonical ledger address with its decimal precision.
type ResolvedAsset struct {
	Address  solana.PublicKey `json:"address"`
	Program  solana.PublicKey `json:"program"`
	Decimals uint8            `json:"decimals"`
	Symbol   string           `json:"symbol,omitempty"`
}

func (a ResolvedAsset) IsNative() bool {
	return a.Address.Equals(NativeMint)
}

func (a ResolvedAsset) String() string {
	if a.Symbol != "" {
		return a.Symbol
	}
	return a.Address.String()
}

// UnknownAssetError is returned for identifiers that are neither a valid
// mint address nor a known symbol.
type UnknownAssetError struct {
	Identifier string
	Supported  []string
	Err        error
}

func (e *UnknownAssetError) Error() string {
	msg := fmt.Sprintf("unknown asset %q (supported symbols: %s)", e.Identifier, strings.Join(e.Supported, ", "))
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *UnknownAssetError) Unwrap() error { return e.Err }

type symbolEntry struct {
	mint     string
	decimals uint8
}

var symbols = map[string]symbolEntry{
	"sol":  {mint: NativeMint.String(), decimals: 9},
	"wsol": {mint: NativeMint.String(), decimals: 9},
	"usdc": {mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", decimals: 6},
	"usdt": {mint: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", decimals: 6},
	"bonk": {mint: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", decimals: 5},
	"jup":  {mint: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN", decimals: 6},
	"msol": {mint: "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So", decimals: 9},
	"ray":  {mint: "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", decimals: 6},
	"wif":  {mint: "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm", decimals: 6},
}

// SupportedSymbols returns the upper-case symbol list, sorted.
func SupportedSymbols() []string {
	res := make([]string, 0, len(symbols))
	for s := range symbols {
		res = append(res, strings.ToUpper(s))
	}
	sort.Strings(res)
	return res
}

func lookupSymbol(identifier string) (ResolvedAsset, bool) {
	key := strings.ToLower(strings.TrimSpace(identifier))
	entry, ok := symbols[key]
	if !ok {
		return ResolvedAsset{}, false
	}
	return ResolvedAsset{
		Address:  solana.MustPublicKeyFromBase58(entry.mint),
		Program:  solana.TokenProgramID,
		Decimals: entry.decimals,
		Symbol:   strings.ToUpper(key),
	}, true
}

// symbolFor returns the table symbol of a mint address, if any.
func symbolFor(address solana.PublicKey) string {
	s := address.String()
	if s == NativeMint.String() {
		return "SOL"
	}
	for name, entry := range symbols {
		if entry.mint == s {
			return strings.ToUpper(name)
		}
	}
	return ""
}
