package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"infrabondx/internal/store"
	"infrabondx/pkg/db"
	"infrabondx/pkg/domain"
)

func newTestLedger(t *testing.T) (*Ledger, *store.Store) {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, store.Migrate(context.Background(), conn))
	st := store.New(conn)
	return New(st, nil), st
}

func seedUsers(t *testing.T, st *store.Store) (issuer, investor, buyer string) {
	t.Helper()
	ctx := context.Background()
	users := []store.User{
		{UserID: "usr_issuer", Name: "Issuer", Email: "issuer@test", Role: domain.RoleIssuer},
		{UserID: "usr_investor", Name: "Investor", Email: "investor@test", Role: domain.RoleInvestor},
		{UserID: "usr_buyer", Name: "Buyer", Email: "buyer@test", Role: domain.RoleInvestor},
	}
	for _, u := range users {
		u.PasswordHash = "x"
		u.CreatedAt = time.Now()
		require.NoError(t, st.CreateUser(ctx, u))
	}
	return "usr_issuer", "usr_investor", "usr_buyer"
}

func activeProject(t *testing.T, l *Ledger, st *store.Store, issuerID string) store.Project {
	t.Helper()
	ctx := context.Background()
	p, err := l.CreateProject(ctx, issuerID, ProjectInput{
		Title:         "Ring Road Phase 1",
		Category:      "Road",
		Location:      "Raipur",
		Description:   "12km road upgrade",
		FundingTarget: 1_000_000,
		TokenPrice:    100,
		ROIPercent:    11.5,
		TenureMonths:  24,
	})
	require.NoError(t, err)
	require.NoError(t, l.SetProjectStatus(ctx, "usr_admin", p.ProjectID, domain.ProjectActive))
	p.Status = domain.ProjectActive
	return p
}

func TestCreateProjectDefaults(t *testing.T) {
	l, st := newTestLedger(t)
	issuer, _, _ := seedUsers(t, st)
	ctx := context.Background()

	p, err := l.CreateProject(ctx, issuer, ProjectInput{
		Title: "T", Location: "L", Description: "D",
		FundingTarget: 1000, TokenPrice: 100, ROIPercent: 14.2,
	})
	require.NoError(t, err)
	require.Equal(t, domain.ProjectPending, p.Status)
	require.Equal(t, int64(70), p.RiskScore)
	require.Equal(t, domain.RiskHigh, p.RiskLevel)

	ms, err := st.ListMilestones(ctx, p.ProjectID)
	require.NoError(t, err)
	require.Len(t, ms, 5)
	require.Equal(t, "Tender Approved", ms[0].Title)
	require.Equal(t, domain.MilestonePending, ms[0].Status)

	acct, err := st.GetEscrowAccount(ctx, p.ProjectID)
	require.NoError(t, err)
	require.Zero(t, acct.TotalLocked)

	_, err = l.CreateProject(ctx, issuer, ProjectInput{
		Title: "T", Location: "L", Description: "D",
		FundingTarget: 1000, TokenPrice: 100,
		Plan: []domain.PlanEntry{{Title: "a", ReleasePercent: 70}, {Title: "b", ReleasePercent: 40}},
	})
	require.ErrorIs(t, err, domain.ErrPlanOverCommitted)

	_, err = l.CreateProject(ctx, issuer, ProjectInput{Title: "", Location: "L", Description: "D",
		FundingTarget: 1000, TokenPrice: 100})
	require.ErrorIs(t, err, ErrMissingFields)
}

func TestInvest(t *testing.T) {
	l, st := newTestLedger(t)
	issuer, investor, _ := seedUsers(t, st)
	p := activeProject(t, l, st, issuer)
	ctx := context.Background()

	res, err := l.Invest(ctx, investor, p.ProjectID, 1050)
	require.NoError(t, err)
	require.Equal(t, int64(10), res.TokensIssued)
	require.NotEmpty(t, res.TxHash)

	got, err := st.GetProject(ctx, p.ProjectID)
	require.NoError(t, err)
	require.Equal(t, int64(1050), got.FundingRaised)

	acct, err := st.GetEscrowAccount(ctx, p.ProjectID)
	require.NoError(t, err)
	require.Equal(t, int64(1050), acct.TotalLocked)

	h, err := st.GetHolding(ctx, investor, p.ProjectID)
	require.NoError(t, err)
	require.Equal(t, int64(10), h.TokenCount)
	require.InDelta(t, 100, h.AvgBuyPrice, 1e-9)

	txs, err := st.ListTransactionsByUser(ctx, investor)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, store.TxMint, txs[0].Type)

	// amount below one token
	_, err = l.Invest(ctx, investor, p.ProjectID, 99)
	require.ErrorIs(t, err, ErrAmountTooLow)

	// project must be active
	require.NoError(t, l.SetProjectStatus(ctx, "usr_admin", p.ProjectID, domain.ProjectFrozen))
	_, err = l.Invest(ctx, investor, p.ProjectID, 1000)
	require.ErrorIs(t, err, ErrProjectNotActive)
}

func TestMilestoneLifecycle(t *testing.T) {
	l, st := newTestLedger(t)
	issuer, investor, _ := seedUsers(t, st)
	p := activeProject(t, l, st, issuer)
	ctx := context.Background()

	_, err := l.Invest(ctx, investor, p.ProjectID, 100_000)
	require.NoError(t, err)

	ms, err := st.ListMilestones(ctx, p.ProjectID)
	require.NoError(t, err)
	first := ms[0]

	// verify before any proof
	_, err = l.VerifyMilestone(ctx, "usr_admin", first.MilestoneID, true)
	require.ErrorIs(t, err, domain.ErrMilestoneNotSubmitted)

	// proof required
	_, err = l.SubmitProof(ctx, issuer, first.MilestoneID, "  ")
	require.ErrorIs(t, err, ErrProofRequired)

	// only the project's issuer may submit
	_, err = l.SubmitProof(ctx, investor, first.MilestoneID, "https://proofs/tender.pdf")
	require.ErrorIs(t, err, ErrNotProjectIssuer)

	m, err := l.SubmitProof(ctx, issuer, first.MilestoneID, "https://proofs/tender.pdf")
	require.NoError(t, err)
	require.Equal(t, domain.MilestoneSubmitted, m.Status)

	// reject returns it to PENDING, nothing released
	res, err := l.VerifyMilestone(ctx, "usr_admin", first.MilestoneID, false)
	require.NoError(t, err)
	require.False(t, res.Approved)
	acct, err := st.GetEscrowAccount(ctx, p.ProjectID)
	require.NoError(t, err)
	require.Equal(t, int64(100_000), acct.TotalLocked)
	require.Zero(t, acct.TotalReleased)

	// resubmit and approve: 20% of locked releases
	_, err = l.SubmitProof(ctx, issuer, first.MilestoneID, "https://proofs/tender-v2.pdf")
	require.NoError(t, err)
	res, err = l.VerifyMilestone(ctx, "usr_admin", first.MilestoneID, true)
	require.NoError(t, err)
	require.True(t, res.Approved)
	require.False(t, res.Replayed)
	require.Equal(t, int64(20_000), res.Amount)

	acct, err = st.GetEscrowAccount(ctx, p.ProjectID)
	require.NoError(t, err)
	require.Equal(t, int64(80_000), acct.TotalLocked)
	require.Equal(t, int64(20_000), acct.TotalReleased)

	// replay: approving again releases nothing more
	replay, err := l.VerifyMilestone(ctx, "usr_admin", first.MilestoneID, true)
	require.NoError(t, err)
	require.True(t, replay.Replayed)
	require.Equal(t, res.Amount, replay.Amount)
	require.Equal(t, res.TxHash, replay.TxHash)

	acct, err = st.GetEscrowAccount(ctx, p.ProjectID)
	require.NoError(t, err)
	require.Equal(t, int64(80_000), acct.TotalLocked)
	require.Equal(t, int64(20_000), acct.TotalReleased)

	// rejecting a completed milestone fails
	_, err = l.VerifyMilestone(ctx, "usr_admin", first.MilestoneID, false)
	require.ErrorIs(t, err, domain.ErrMilestoneCompleted)

	// second milestone releases 20% of the remainder
	_, err = l.SubmitProof(ctx, issuer, ms[1].MilestoneID, "https://proofs/start.pdf")
	require.NoError(t, err)
	res, err = l.VerifyMilestone(ctx, "usr_admin", ms[1].MilestoneID, true)
	require.NoError(t, err)
	require.Equal(t, int64(16_000), res.Amount)
}

func TestMarketplaceReserveCommitAbort(t *testing.T) {
	l, st := newTestLedger(t)
	issuer, seller, buyer := seedUsers(t, st)
	p := activeProject(t, l, st, issuer)
	ctx := context.Background()

	_, err := l.Invest(ctx, seller, p.ProjectID, 2000)
	require.NoError(t, err) // 20 tokens at 100

	// reserve: tokens leave the holding at listing time
	listing, err := l.CreateListing(ctx, seller, p.ProjectID, 15, 120)
	require.NoError(t, err)
	h, err := st.GetHolding(ctx, seller, p.ProjectID)
	require.NoError(t, err)
	require.Equal(t, int64(5), h.TokenCount)

	// the same holding cannot back a second overlapping listing
	_, err = l.CreateListing(ctx, seller, p.ProjectID, 10, 120)
	require.ErrorIs(t, err, ErrInsufficientTokens)

	_, err = l.CreateListing(ctx, seller, p.ProjectID, 0, 120)
	require.ErrorIs(t, err, ErrInvalidListing)

	// seller cannot buy their own listing
	_, err = l.BuyListing(ctx, seller, listing.ListingID)
	require.ErrorIs(t, err, ErrOwnListing)

	// commit
	trade, err := l.BuyListing(ctx, buyer, listing.ListingID)
	require.NoError(t, err)
	require.Equal(t, int64(15), trade.TokenCount)
	require.Equal(t, int64(15*120), trade.Amount)

	bh, err := st.GetHolding(ctx, buyer, p.ProjectID)
	require.NoError(t, err)
	require.Equal(t, int64(15), bh.TokenCount)
	require.InDelta(t, 120, bh.AvgBuyPrice, 1e-9)

	// sold listings cannot be bought again
	_, err = l.BuyListing(ctx, buyer, listing.ListingID)
	require.ErrorIs(t, err, ErrListingUnavailable)

	// abort: cancelled listings return their tokens
	second, err := l.CreateListing(ctx, seller, p.ProjectID, 5, 150)
	require.NoError(t, err)
	require.NoError(t, l.CancelListing(ctx, seller, second.ListingID))
	h, err = st.GetHolding(ctx, seller, p.ProjectID)
	require.NoError(t, err)
	require.Equal(t, int64(5), h.TokenCount)

	// only the owner may cancel
	third, err := l.CreateListing(ctx, seller, p.ProjectID, 5, 150)
	require.NoError(t, err)
	require.ErrorIs(t, l.CancelListing(ctx, buyer, third.ListingID), ErrNotListingOwner)
}

func TestBuyRequiresActiveProject(t *testing.T) {
	l, st := newTestLedger(t)
	issuer, seller, buyer := seedUsers(t, st)
	p := activeProject(t, l, st, issuer)
	ctx := context.Background()

	_, err := l.Invest(ctx, seller, p.ProjectID, 1000)
	require.NoError(t, err)
	listing, err := l.CreateListing(ctx, seller, p.ProjectID, 5, 110)
	require.NoError(t, err)

	require.NoError(t, l.SetProjectStatus(ctx, "usr_admin", p.ProjectID, domain.ProjectFrozen))
	_, err = l.BuyListing(ctx, buyer, listing.ListingID)
	require.ErrorIs(t, err, ErrProjectNotActive)
}

func TestAuditTrail(t *testing.T) {
	l, st := newTestLedger(t)
	issuer, investor, _ := seedUsers(t, st)
	p := activeProject(t, l, st, issuer)
	ctx := context.Background()

	_, err := l.Invest(ctx, investor, p.ProjectID, 1000)
	require.NoError(t, err)

	events, err := st.ListEvents(ctx, p.ProjectID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(events), 3)
	require.Equal(t, "CREATED", events[0].Type)
	require.Equal(t, "STATUS_CHANGED", events[1].Type)
	require.Equal(t, "INVESTMENT", events[2].Type)
	for i, e := range events {
		require.Equal(t, int64(i+1), e.Seq)
	}
}
