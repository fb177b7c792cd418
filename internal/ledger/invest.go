package ledger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"infrabondx/internal/store"
	"infrabondx/pkg/domain"
)

type InvestResult struct {
	TxHash       string
	TokensIssued int64
}

// Invest mints tokens against an ACTIVE project: funding and escrow grow by
// the invested amount, the investor's holding grows by whole tokens at the
// issuance price, and a MINT row lands in the ledger log.
func (l *Ledger) Invest(ctx context.Context, investorID, projectID string, amount int64) (InvestResult, error) {
	var res InvestResult
	err := l.store.InTx(ctx, func(tx *store.Store) error {
		p, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		if p.Status != domain.ProjectActive {
			return ErrProjectNotActive
		}
		tokens := domain.TokensFor(amount, p.TokenPrice)
		if tokens <= 0 {
			return ErrAmountTooLow
		}

		if err := tx.AddFundingRaised(ctx, projectID, amount); err != nil {
			return err
		}
		if _, err := ensureEscrow(ctx, tx, projectID); err != nil {
			return err
		}
		if err := tx.LockEscrow(ctx, projectID, amount); err != nil {
			return err
		}

		holding, err := tx.GetHolding(ctx, investorID, projectID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		holding.UserID = investorID
		holding.ProjectID = projectID
		holding.AvgBuyPrice = domain.BlendedAvgPrice(holding.TokenCount, holding.AvgBuyPrice, tokens, p.TokenPrice)
		holding.TokenCount += tokens
		if err := tx.UpsertHolding(ctx, holding); err != nil {
			return err
		}

		txHash := store.NewTxHash()
		if err := tx.AppendTransaction(ctx, store.Transaction{
			TxID:       store.NewID("txn"),
			TxHash:     txHash,
			UserID:     investorID,
			ProjectID:  projectID,
			Type:       store.TxMint,
			Amount:     amount,
			TokenCount: tokens,
			Status:     "SUCCESS",
			CreatedAt:  time.Now(),
		}); err != nil {
			return err
		}
		if err := tx.AddEvent(ctx, projectID, "INVESTMENT", investorID, map[string]any{
			"amount": amount, "tokens": tokens, "tx_hash": txHash,
		}); err != nil {
			return err
		}
		res = InvestResult{TxHash: txHash, TokensIssued: tokens}
		return nil
	})
	if err != nil {
		return InvestResult{}, err
	}
	l.log.Info("investment minted",
		zap.String("project_id", projectID),
		zap.String("investor_id", investorID),
		zap.Int64("amount", amount),
		zap.Int64("tokens", res.TokensIssued))
	return res, nil
}
