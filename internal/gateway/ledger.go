package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	OpGetBalance             = "getBalance"
	OpGetLatestBlockhash     = "getLatestBlockhash"
	OpGetMint                = "getMint"
	OpGetTokenAccountBalance = "getTokenAccountBalance"
	OpSendTransaction        = "sendTransaction"
	OpGetSignatureStatus     = "getSignatureStatuses"
)

// Blockhash is the ledger's recency anchor for new transactions.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// MintInfo is the on-chain description of a token mint.
type MintInfo struct {
	Address  solana.PublicKey
	Program  solana.PublicKey
	Decimals uint8
}

// SignatureStatus is the ledger's view of a submitted transaction.
type SignatureStatus struct {
	Found              bool
	Slot               uint64
	ConfirmationStatus rpc.ConfirmationStatusType
	Err                any
}

// Failed reports whether the transaction landed with an execution error.
func (s SignatureStatus) Failed() bool {
	return s.Found && s.Err != nil
}

// Reached reports whether the transaction is at or beyond commitment.
func (s SignatureStatus) Reached(commitment rpc.CommitmentType) bool {
	if !s.Found {
		return false
	}
	return confirmationRank(s.ConfirmationStatus) >= commitmentRank(commitment)
}

func confirmationRank(s rpc.ConfirmationStatusType) int {
	switch s {
	case rpc.ConfirmationStatusProcessed:
		return 1
	case rpc.ConfirmationStatusConfirmed:
		return 2
	case rpc.ConfirmationStatusFinalized:
		return 3
	default:
		// pre-1.5 nodes omit confirmationStatus for rooted transactions
		return 3
	}
}

func commitmentRank(c rpc.CommitmentType) int {
	switch c {
	case rpc.CommitmentProcessed:
		return 1
	case rpc.CommitmentFinalized:
		return 3
	default:
		return 2
	}
}

// GetBalance returns the native balance of owner in lamports.
func (c *Client) GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	return call(ctx, c, OpGetBalance, func(ctx context.Context, rc *rpc.Client) (uint64, error) {
		res, err := rc.GetBalance(ctx, owner, c.opts.Commitment)
		if err != nil {
			return 0, err
		}
		return res.Value, nil
	})
}

// GetLatestBlockhash returns the freshest recency anchor any endpoint offers.
func (c *Client) GetLatestBlockhash(ctx context.Context) (Blockhash, error) {
	return call(ctx, c, OpGetLatestBlockhash, func(ctx context.Context, rc *rpc.Client) (Blockhash, error) {
		res, err := rc.GetLatestBlockhash(ctx, c.opts.Commitment)
		if err != nil {
			return Blockhash{}, err
		}
		if res == nil || res.Value == nil {
			return Blockhash{}, fmt.Errorf("empty blockhash response")
		}
		return Blockhash{
			Hash:                 res.Value.Blockhash,
			LastValidBlockHeight: res.Value.LastValidBlockHeight,
		}, nil
	})
}

// GetMint reads a mint account and returns its owning token program and
// decimals. A missing account or an account that is not a mint is a
// rejection, not an endpoint failure.
func (c *Client) GetMint(ctx context.Context, mint solana.PublicKey) (MintInfo, error) {
	return call(ctx, c, OpGetMint, func(ctx context.Context, rc *rpc.Client) (MintInfo, error) {
		accountInfo, err := rc.GetAccountInfo(ctx, mint)
		if err != nil {
			if errors.Is(err, rpc.ErrNotFound) {
				return MintInfo{}, reject(fmt.Errorf("mint account not found: %s", mint))
			}
			return MintInfo{}, err
		}

		if accountInfo == nil || accountInfo.Value == nil {
			return MintInfo{}, reject(fmt.Errorf("mint account not found: %s", mint))
		}

		owner := accountInfo.Value.Owner
		if !owner.Equals(solana.TokenProgramID) && !owner.Equals(solana.Token2022ProgramID) {
			return MintInfo{}, reject(fmt.Errorf("account %s is not owned by a token program: %s", mint, owner))
		}

		var mintData token.Mint
		err = mintData.UnmarshalWithDecoder(bin.NewBinDecoder(accountInfo.Value.Data.GetBinary()))
		if err != nil {
			return MintInfo{}, reject(fmt.Errorf("failed to deserialize mint data: %w", err))
		}

		return MintInfo{
			Address:  mint,
			Program:  owner,
			Decimals: mintData.Decimals,
		}, nil
	})
}

// GetTokenAccountBalance returns the raw amount held by a token account.
// A token account that does not exist holds zero.
func (c *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	return call(ctx, c, OpGetTokenAccountBalance, func(ctx context.Context, rc *rpc.Client) (uint64, error) {
		res, err := rc.GetTokenAccountBalance(ctx, account, c.opts.Commitment)
		if err != nil {
			if errors.Is(err, rpc.ErrNotFound) || isAccountNotFound(err) {
				return 0, nil
			}
			return 0, err
		}

		if res == nil || res.Value == nil || res.Value.Amount == "" {
			return 0, nil
		}

		amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse amount %q: %w", res.Value.Amount, err)
		}
		return amount, nil
	})
}

// SendTransaction submits a signed transaction. Submission is idempotent on
// the transaction signature: an endpoint reporting that the transaction was
// already processed, or that already knows the signature, counts as success.
func (c *Client) SendTransaction(ctx context.Context, signed []byte) (solana.Signature, error) {
	tx, err := solana.TransactionFromBytes(signed)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("gateway: failed to decode signed transaction: %w", err)
	}
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, fmt.Errorf("gateway: transaction carries no signature")
	}
	local := tx.Signatures[0]

	return call(ctx, c, OpSendTransaction, func(ctx context.Context, rc *rpc.Client) (solana.Signature, error) {
		sig, err := rc.SendRawTransactionWithOpts(ctx, signed, rpc.TransactionOpts{
			SkipPreflight:       c.opts.SkipPreflight,
			PreflightCommitment: c.opts.PreflightCommitment,
		})
		if err == nil {
			if sig == (solana.Signature{}) {
				return local, nil
			}
			return sig, nil
		}

		if isAlreadyProcessed(err) {
			c.logger.WithField("signature", local.String()).Info("transaction already processed, treating as submitted")
			return local, nil
		}

		if classify(err) == OutcomeRejected && c.knownSignature(ctx, rc, local) {
			c.logger.WithField("signature", local.String()).Info("rejected resubmission of a landed transaction, treating as submitted")
			return local, nil
		}

		return solana.Signature{}, err
	})
}

func (c *Client) knownSignature(ctx context.Context, rc *rpc.Client, sig solana.Signature) bool {
	status, err := signatureStatus(ctx, rc, sig)
	if err != nil {
		return false
	}
	return status.Found && status.Err == nil
}

// GetSignatureStatus returns the ledger status of sig, searching history.
func (c *Client) GetSignatureStatus(ctx context.Context, sig solana.Signature) (SignatureStatus, error) {
	return call(ctx, c, OpGetSignatureStatus, func(ctx context.Context, rc *rpc.Client) (SignatureStatus, error) {
		return signatureStatus(ctx, rc, sig)
	})
}

func signatureStatus(ctx context.Context, rc *rpc.Client, sig solana.Signature) (SignatureStatus, error) {
	res, err := rc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return SignatureStatus{}, err
	}

	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return SignatureStatus{}, nil
	}

	st := res.Value[0]
	return SignatureStatus{
		Found:              true,
		Slot:               st.Slot,
		ConfirmationStatus: st.ConfirmationStatus,
		Err:                st.Err,
	}, nil
}
