// Package solana sends hot wallet payouts on Solana.
package solana

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	"github.com/covest/covest-service/internal/infrastructure/config"
	"github.com/covest/covest-service/pkg/logger"
)

var lamportsPerSol = decimal.NewFromInt(int64(solana.LAMPORTS_PER_SOL))

// Client signs and broadcasts SOL transfers from the hot wallet. Sends are
// serialized with a mutex so concurrent payouts cannot race the wallet
// balance or trip RPC rate limits.
type Client struct {
	rpc        *rpc.Client
	hotWallet  solana.PrivateKey
	commitment rpc.CommitmentType
	minBalance decimal.Decimal
	timeout    time.Duration
	log        *logger.Logger

	txMu sync.Mutex
}

func NewClient(cfg config.SolanaConfig, log *logger.Logger) (*Client, error) {
	if cfg.HotWalletKey == "" {
		return nil, fmt.Errorf("hot wallet key is not configured")
	}
	key, err := solana.PrivateKeyFromBase58(cfg.HotWalletKey)
	if err != nil {
		return nil, fmt.Errorf("parse hot wallet key: %w", err)
	}

	commitment := rpc.CommitmentConfirmed
	if cfg.Commitment == "finalized" {
		commitment = rpc.CommitmentFinalized
	}

	minBalance, err := decimal.NewFromString(cfg.MinWalletBalance)
	if err != nil {
		minBalance = decimal.Zero
	}

	timeout := time.Duration(cfg.SendTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		rpc:        rpc.New(cfg.RPCEndpoint),
		hotWallet:  key,
		commitment: commitment,
		minBalance: minBalance,
		timeout:    timeout,
		log:        log,
	}, nil
}

// Address returns the hot wallet's public address.
func (c *Client) Address() string {
	return c.hotWallet.PublicKey().String()
}

// GetBalance returns the hot wallet balance in SOL.
func (c *Client) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	out, err := c.rpc.GetBalance(ctx, c.hotWallet.PublicKey(), c.commitment)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	return decimal.NewFromInt(int64(out.Value)).Div(lamportsPerSol), nil
}

// Send transfers amount SOL from the hot wallet to address and returns the
// transaction signature. The transfer is rejected up front when the wallet
// would drop below its reserve.
func (c *Client) Send(ctx context.Context, address string, amount decimal.Decimal) (string, error) {
	recipient, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return "", fmt.Errorf("parse destination address: %w", err)
	}

	lamports := amount.Mul(lamportsPerSol).IntPart()
	if lamports <= 0 {
		return "", fmt.Errorf("amount %s is below one lamport", amount.String())
	}

	c.txMu.Lock()
	defer c.txMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	balance, err := c.GetBalance(ctx)
	if err != nil {
		return "", err
	}
	if balance.Sub(amount).LessThan(c.minBalance) {
		return "", fmt.Errorf("hot wallet balance %s cannot cover %s plus reserve %s",
			balance.String(), amount.String(), c.minBalance.String())
	}

	bh, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(
				uint64(lamports),
				c.hotWallet.PublicKey(),
				recipient,
			).Build(),
		},
		bh.Value.Blockhash,
		solana.TransactionPayer(c.hotWallet.PublicKey()),
	)
	if err != nil {
		return "", fmt.Errorf("build transaction: %w", err)
	}

	_, err = tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(c.hotWallet.PublicKey()) {
			return &c.hotWallet
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return "", fmt.Errorf("broadcast transaction: %w", err)
	}

	c.log.Info("payout broadcast",
		"signature", sig.String(),
		"destination", address,
		"amount_sol", amount.String())

	if err := c.awaitConfirmation(ctx, sig); err != nil {
		// The transfer may still land. Surface the signature so the payout
		// can be reconciled by hand instead of retried blindly.
		return sig.String(), fmt.Errorf("confirm transaction %s: %w", sig.String(), err)
	}

	return sig.String(), nil
}

func (c *Client) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			statuses, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
			if err != nil {
				c.log.Warn("signature status check failed", "error", err)
				continue
			}
			if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
				continue
			}
			st := statuses.Value[0]
			if st.Err != nil {
				return fmt.Errorf("transaction failed on chain: %v", st.Err)
			}
			switch st.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return nil
			}
		}
	}
}
