package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"infrabondx/internal/store"
	"infrabondx/pkg/domain"
)

// SubmitProof records an issuer's milestone proof and moves the milestone to
// SUBMITTED. Resubmitting replaces the previous proof; completed milestones
// are sealed.
func (l *Ledger) SubmitProof(ctx context.Context, issuerID, milestoneID, proofURL string) (store.Milestone, error) {
	proofURL = strings.TrimSpace(proofURL)
	if proofURL == "" {
		return store.Milestone{}, ErrProofRequired
	}
	var out store.Milestone
	err := l.store.InTx(ctx, func(tx *store.Store) error {
		m, err := tx.GetMilestone(ctx, milestoneID)
		if err != nil {
			return err
		}
		p, err := tx.GetProject(ctx, m.ProjectID)
		if err != nil {
			return err
		}
		if p.IssuerID != issuerID {
			return ErrNotProjectIssuer
		}
		if err := m.Status.CanSubmitProof(); err != nil {
			return err
		}
		if err := tx.SetMilestoneStatus(ctx, milestoneID, domain.MilestoneSubmitted, proofURL); err != nil {
			return err
		}
		if err := tx.AddEvent(ctx, m.ProjectID, "MILESTONE_SUBMITTED", issuerID, map[string]any{
			"milestone_id": milestoneID, "proof_url": proofURL,
		}); err != nil {
			return err
		}
		m.Status = domain.MilestoneSubmitted
		m.ProofURL = proofURL
		out = m
		return nil
	})
	return out, err
}

type ReleaseResult struct {
	MilestoneID string
	Approved    bool
	Amount      int64
	TxHash      string
	Replayed    bool
}

// VerifyMilestone applies an admin verification decision. Approval completes
// the milestone and releases its escrow percentage exactly once: approving an
// already-completed milestone replays the recorded release instead of paying
// again. Rejection returns the milestone to PENDING.
func (l *Ledger) VerifyMilestone(ctx context.Context, adminID, milestoneID string, approve bool) (ReleaseResult, error) {
	var res ReleaseResult
	err := l.store.InTx(ctx, func(tx *store.Store) error {
		m, err := tx.GetMilestone(ctx, milestoneID)
		if err != nil {
			return err
		}
		res = ReleaseResult{MilestoneID: milestoneID, Approved: approve}

		if m.Status == domain.MilestoneCompleted {
			if !approve {
				return domain.ErrMilestoneCompleted
			}
			rel, err := tx.GetEscrowRelease(ctx, milestoneID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			res.Amount = rel.Amount
			res.TxHash = rel.TxHash
			res.Replayed = true
			return nil
		}
		if err := m.Status.CanVerify(); err != nil {
			return err
		}

		if !approve {
			if err := tx.SetMilestoneStatus(ctx, milestoneID, domain.MilestonePending, m.ProofURL); err != nil {
				return err
			}
			return tx.AddEvent(ctx, m.ProjectID, "MILESTONE_REJECTED", adminID, map[string]any{
				"milestone_id": milestoneID,
			})
		}

		acct, err := ensureEscrow(ctx, tx, m.ProjectID)
		if err != nil {
			return err
		}
		amount := domain.ReleaseAmount(acct.TotalLocked, m.ReleasePercent)
		txHash := store.NewTxHash()

		if err := tx.SetMilestoneStatus(ctx, milestoneID, domain.MilestoneCompleted, m.ProofURL); err != nil {
			return err
		}
		if amount > 0 {
			if err := tx.MoveEscrowToReleased(ctx, m.ProjectID, amount); err != nil {
				return err
			}
		}
		if err := tx.RecordEscrowRelease(ctx, store.EscrowRelease{
			MilestoneID: milestoneID,
			ProjectID:   m.ProjectID,
			Amount:      amount,
			TxHash:      txHash,
			ReleasedAt:  time.Now(),
		}); err != nil {
			return err
		}
		p, err := tx.GetProject(ctx, m.ProjectID)
		if err != nil {
			return err
		}
		if err := tx.AppendTransaction(ctx, store.Transaction{
			TxID:      store.NewID("txn"),
			TxHash:    txHash,
			UserID:    p.IssuerID,
			ProjectID: m.ProjectID,
			Type:      store.TxRelease,
			Amount:    amount,
			Status:    "SUCCESS",
			CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		if err := tx.AddEvent(ctx, m.ProjectID, "MILESTONE_APPROVED", adminID, map[string]any{
			"milestone_id": milestoneID,
		}); err != nil {
			return err
		}
		if err := tx.AddEvent(ctx, m.ProjectID, "ESCROW_RELEASED", adminID, map[string]any{
			"milestone_id": milestoneID, "amount": amount, "tx_hash": txHash,
		}); err != nil {
			return err
		}
		res.Amount = amount
		res.TxHash = txHash
		return nil
	})
	if err != nil {
		return ReleaseResult{}, err
	}
	if res.Approved && !res.Replayed {
		l.log.Info("escrow released",
			zap.String("milestone_id", milestoneID),
			zap.Int64("amount", res.Amount))
	}
	return res, nil
}
