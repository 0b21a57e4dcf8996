package asset

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/gateway"
)

// MintReader reads mint accounts from the ledger.
type MintReader interface {
	GetMint(ctx context.Context, mint solana.PublicKey) (gateway.MintInfo, error)
}

// Resolver turns caller identifiers (mint addresses or well-known symbols)
// into ResolvedAssets.
type Resolver struct {
	ledger MintReader
	cache  Cache
	logger logrus.FieldLogger
}

// NewResolver returns a Resolver. cache may be nil.
func NewResolver(ledger MintReader, cache Cache, logger logrus.FieldLogger) *Resolver {
	return &Resolver{
		ledger: ledger,
		cache:  cache,
		logger: logger.WithField("component", "asset_resolver"),
	}
}

// Resolve accepts a base-58 mint address verbatim and reads its decimals
// from the chain, or looks a symbol up case-insensitively in the static
// table. Ledger transport failures are returned as they are; only a
// missing or non-mint account and an unknown symbol yield
// *UnknownAssetError.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (ResolvedAsset, error) {
	trimmed := strings.TrimSpace(identifier)

	address, ok := parseAddress(trimmed)
	if !ok {
		a, found := lookupSymbol(trimmed)
		if !found {
			return ResolvedAsset{}, &UnknownAssetError{Identifier: identifier, Supported: SupportedSymbols()}
		}
		return a, nil
	}

	if r.cache != nil {
		cached, hit, err := r.cache.Get(ctx, address)
		if err != nil {
			r.logger.WithField("address", address.String()).Warnf("asset cache read failed: %v", err)
		} else if hit {
			return cached, nil
		}
	}

	info, err := r.ledger.GetMint(ctx, address)
	if err != nil {
		var rejected *gateway.RejectedError
		if errors.As(err, &rejected) {
			return ResolvedAsset{}, &UnknownAssetError{
				Identifier: identifier,
				Supported:  SupportedSymbols(),
				Err:        err,
			}
		}
		return ResolvedAsset{}, fmt.Errorf("failed to read mint %s: %w", address, err)
	}

	res := ResolvedAsset{
		Address:  address,
		Program:  info.Program,
		Decimals: info.Decimals,
		Symbol:   symbolFor(address),
	}

	if r.cache != nil {
		err = r.cache.Set(ctx, res)
		if err != nil {
			r.logger.WithField("address", address.String()).Warnf("asset cache write failed: %v", err)
		}
	}

	return res, nil
}

// parseAddress applies the address grammar: 32 to 44 base-58 characters
// decoding to exactly 32 bytes.
func parseAddress(s string) (solana.PublicKey, bool) {
	if len(s) < 32 || len(s) > 44 {
		return solana.PublicKey{}, false
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, false
	}
	return pk, true
}
