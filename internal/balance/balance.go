// Package balance reads what an owner holds of one asset, either native
// lamports or the owner's associated token account.
package balance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	solanasdk "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/asset"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/solana"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/util"
)

const nativeDecimals = 9

var ErrInvalidOwner = errors.New("invalid owner address")

type Ledger interface {
	GetBalance(ctx context.Context, owner solanasdk.PublicKey) (uint64, error)
	GetTokenAccountBalance(ctx context.Context, account solanasdk.PublicKey) (uint64, error)
}

type Resolver interface {
	Resolve(ctx context.Context, identifier string) (asset.ResolvedAsset, error)
}

type Holding struct {
	Owner   string `json:"owner"`
	Asset   string `json:"asset"`
	Symbol  string `json:"symbol,omitempty"`
	Account string `json:"account,omitempty"`
	// BaseUnits is encoded as a string so large amounts survive JSON
	// number handling.
	BaseUnits uint64          `json:"baseUnits,string"`
	Decimals  uint8           `json:"decimals"`
	Amount    decimal.Decimal `json:"amount"`
}

type Service struct {
	ledger   Ledger
	resolver Resolver
	logger   logrus.FieldLogger
}

func NewService(ledger Ledger, resolver Resolver, logger logrus.FieldLogger) *Service {
	return &Service{
		ledger:   ledger,
		resolver: resolver,
		logger:   logger.WithField("component", "balance"),
	}
}

// Balance returns owner's holding of identifier. An empty identifier or
// SOL reads native lamports. Any other asset is read from owner's
// associated token account, which holds zero when it does not exist.
func (s *Service) Balance(ctx context.Context, owner, identifier string) (Holding, error) {
	ownerKey, err := solanasdk.PublicKeyFromBase58(strings.TrimSpace(owner))
	if err != nil {
		return Holding{}, fmt.Errorf("%w %q: %v", ErrInvalidOwner, owner, err)
	}

	if isNative(identifier) {
		lamports, err := s.ledger.GetBalance(ctx, ownerKey)
		if err != nil {
			return Holding{}, fmt.Errorf("failed to get balance of %s: %w", ownerKey, err)
		}
		return Holding{
			Owner:     ownerKey.String(),
			Asset:     asset.NativeMint.String(),
			Symbol:    "SOL",
			BaseUnits: lamports,
			Decimals:  nativeDecimals,
			Amount:    util.FromBaseUnits(lamports, nativeDecimals),
		}, nil
	}

	resolved, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		return Holding{}, err
	}

	ata, err := solana.AssociatedTokenAddress(ownerKey, resolved.Address, resolved.Program)
	if err != nil {
		return Holding{}, err
	}

	amount, err := s.ledger.GetTokenAccountBalance(ctx, ata)
	if err != nil {
		return Holding{}, fmt.Errorf("failed to get token balance of %s: %w", ata, err)
	}

	s.logger.WithFields(logrus.Fields{
		"owner":   ownerKey.String(),
		"mint":    resolved.Address.String(),
		"account": ata.String(),
	}).Debug("read token balance")

	return Holding{
		Owner:     ownerKey.String(),
		Asset:     resolved.Address.String(),
		Symbol:    resolved.Symbol,
		Account:   ata.String(),
		BaseUnits: amount,
		Decimals:  resolved.Decimals,
		Amount:    util.FromBaseUnits(amount, resolved.Decimals),
	}, nil
}

func isNative(identifier string) bool {
	id := strings.TrimSpace(identifier)
	return id == "" || strings.EqualFold(id, "sol")
}
