package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"infrabondx/internal/fraud"
	"infrabondx/internal/ledger"
	"infrabondx/internal/store"
	"infrabondx/pkg/authn"
	"infrabondx/pkg/db"
	"infrabondx/pkg/domain"
)

type testEnv struct {
	ts     *httptest.Server
	store  *store.Store
	ledger *ledger.Ledger
	tokens map[string]string // email -> bearer token
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx, conn))

	st := store.New(conn)
	lg := ledger.New(st, nil)
	auth := authn.New("test-secret")
	engine, err := fraud.New(fraud.DefaultRules())
	require.NoError(t, err)

	srv := New(st, lg, auth, engine, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	env := &testEnv{ts: ts, store: st, ledger: lg, tokens: map[string]string{}}
	users := []struct {
		id, name, email, password string
		role                      domain.Role
	}{
		{"usr_admin", "Admin", "admin@test", "admin123", domain.RoleAdmin},
		{"usr_issuer", "Issuer", "issuer@test", "issuer123", domain.RoleIssuer},
		{"usr_investor", "Investor", "investor@test", "investor123", domain.RoleInvestor},
		{"usr_buyer", "Buyer", "buyer@test", "buyer123", domain.RoleInvestor},
	}
	for _, u := range users {
		hash, err := authn.HashPassword(u.password)
		require.NoError(t, err)
		require.NoError(t, st.CreateUser(ctx, store.User{
			UserID: u.id, Name: u.name, Email: u.email,
			PasswordHash: hash, Role: u.role, CreatedAt: time.Now(),
		}))
		token, err := auth.Mint(u.id, u.role)
		require.NoError(t, err)
		env.tokens[u.email] = token
	}
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

// activeProject creates and activates a project through the API.
func (e *testEnv) activeProject(t *testing.T) string {
	t.Helper()
	resp, body := e.do(t, "POST", "/api/issuer/projects", e.tokens["issuer@test"], map[string]any{
		"title": "Ring Road Phase 1", "location": "Raipur", "description": "12km upgrade",
		"funding_target": 1_000_000, "token_price": 100, "roi_percent": 11.5, "tenure_months": 24,
	})
	require.Equal(t, 201, resp.StatusCode)
	projectID := body["id"].(string)
	resp, _ = e.do(t, "POST", "/api/admin/projects/"+projectID+"/status", e.tokens["admin@test"],
		map[string]any{"status": "ACTIVE"})
	require.Equal(t, 200, resp.StatusCode)
	return projectID
}

func TestHealthAndRoot(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.do(t, "GET", "/api/health", "", nil)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
}

func TestLoginAndMe(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.do(t, "POST", "/api/auth/login", "", map[string]any{
		"email": "investor@test", "password": "investor123",
	})
	require.Equal(t, 200, resp.StatusCode)
	token := body["token"].(string)
	require.NotEmpty(t, token)
	user := body["user"].(map[string]any)
	require.Equal(t, "INVESTOR", user["role"])

	resp, body = e.do(t, "GET", "/api/auth/me", token, nil)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "investor@test", body["email"])

	resp, _ = e.do(t, "POST", "/api/auth/login", "", map[string]any{
		"email": "investor@test", "password": "wrong",
	})
	require.Equal(t, 401, resp.StatusCode)

	resp, _ = e.do(t, "GET", "/api/auth/me", "", nil)
	require.Equal(t, 401, resp.StatusCode)
}

func TestRoleGuards(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.do(t, "GET", "/api/admin/projects", e.tokens["investor@test"], nil)
	require.Equal(t, 403, resp.StatusCode)

	resp, _ = e.do(t, "POST", "/api/issuer/projects", e.tokens["investor@test"], map[string]any{})
	require.Equal(t, 403, resp.StatusCode)

	resp, _ = e.do(t, "POST", "/api/investor/invest", e.tokens["issuer@test"], map[string]any{})
	require.Equal(t, 403, resp.StatusCode)

	resp, _ = e.do(t, "GET", "/api/admin/projects", "", nil)
	require.Equal(t, 401, resp.StatusCode)
}

func TestPublicCatalog(t *testing.T) {
	e := newTestEnv(t)
	projectID := e.activeProject(t)

	resp, body := e.do(t, "GET", "/api/projects", "", nil)
	require.Equal(t, 200, resp.StatusCode)
	require.EqualValues(t, 1, body["count"])

	// pending projects never appear in the public catalog
	resp, _ = e.do(t, "POST", "/api/issuer/projects", e.tokens["issuer@test"], map[string]any{
		"title": "Bridge", "location": "Bilaspur", "description": "strengthening",
		"funding_target": 500_000, "token_price": 100,
	})
	require.Equal(t, 201, resp.StatusCode)
	resp, body = e.do(t, "GET", "/api/projects", "", nil)
	require.Equal(t, 200, resp.StatusCode)
	require.EqualValues(t, 1, body["count"])

	resp, body = e.do(t, "GET", "/api/projects/"+projectID, "", nil)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "Ring Road Phase 1", body["title"])
	require.Len(t, body["milestones"], 5)

	resp, _ = e.do(t, "GET", "/api/projects/prj_missing", "", nil)
	require.Equal(t, 404, resp.StatusCode)
}

func TestCatalogIgnoresStatusQuery(t *testing.T) {
	e := newTestEnv(t)
	projectID := e.activeProject(t)

	resp, _ := e.do(t, "POST", "/api/admin/projects/"+projectID+"/status", e.tokens["admin@test"],
		map[string]any{"status": "FROZEN"})
	require.Equal(t, 200, resp.StatusCode)

	// frozen projects stay out of the catalog no matter what the query says
	for _, path := range []string{
		"/api/projects",
		"/api/projects?status=FROZEN",
		"/api/projects?status=PENDING",
		"/api/projects?status=all",
	} {
		resp, body := e.do(t, "GET", path, "", nil)
		require.Equal(t, 200, resp.StatusCode)
		require.EqualValues(t, 0, body["count"], path)
		require.Empty(t, body["projects"], path)
	}

	resp, _ = e.do(t, "GET", "/api/projects/"+projectID, "", nil)
	require.Equal(t, 403, resp.StatusCode)
}

func TestInvestFlow(t *testing.T) {
	e := newTestEnv(t)
	projectID := e.activeProject(t)
	investor := e.tokens["investor@test"]

	resp, body := e.do(t, "POST", "/api/investor/invest", investor, map[string]any{
		"project_id": projectID, "amount": 1050,
	}, "Idempotency-Key", "inv-1")
	require.Equal(t, 201, resp.StatusCode)
	require.EqualValues(t, 10, body["tokens_issued"])
	txHash := body["tx_hash"].(string)
	require.NotEmpty(t, txHash)

	// same key replays the stored response, no second mint
	resp, body = e.do(t, "POST", "/api/investor/invest", investor, map[string]any{
		"project_id": projectID, "amount": 1050,
	}, "Idempotency-Key", "inv-1")
	require.Equal(t, 201, resp.StatusCode)
	require.Equal(t, txHash, body["tx_hash"])

	h, err := e.store.GetHolding(context.Background(), "usr_investor", projectID)
	require.NoError(t, err)
	require.Equal(t, int64(10), h.TokenCount)

	resp, body = e.do(t, "GET", "/api/investor/portfolio", investor, nil)
	require.Equal(t, 200, resp.StatusCode)
	require.Len(t, body["holdings"], 1)
	require.EqualValues(t, 1000, body["current_value"])

	resp, body = e.do(t, "GET", "/api/investor/transactions", investor, nil)
	require.Equal(t, 200, resp.StatusCode)
	require.EqualValues(t, 1, body["count"])

	resp, body = e.do(t, "GET", "/api/investor/certificate/"+projectID, investor, nil)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, txHash, body["tx_hash"])
	require.EqualValues(t, 10, body["token_count"])

	resp, _ = e.do(t, "GET", "/api/investor/certificate/prj_missing", investor, nil)
	require.Equal(t, 404, resp.StatusCode)

	resp, _ = e.do(t, "POST", "/api/investor/invest", investor, map[string]any{
		"project_id": projectID, "amount": 50,
	})
	require.Equal(t, 400, resp.StatusCode)
}

func TestMilestoneVerificationOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	projectID := e.activeProject(t)
	issuer := e.tokens["issuer@test"]
	admin := e.tokens["admin@test"]

	_, _ = e.do(t, "POST", "/api/investor/invest", e.tokens["investor@test"], map[string]any{
		"project_id": projectID, "amount": 100_000,
	})

	ms, err := e.store.ListMilestones(context.Background(), projectID)
	require.NoError(t, err)
	first := ms[0].MilestoneID

	// verification requires a submitted proof
	resp, _ := e.do(t, "POST", "/api/admin/milestones/"+first+"/verify", admin,
		map[string]any{"decision": "APPROVE"})
	require.Equal(t, 409, resp.StatusCode)

	resp, _ = e.do(t, "POST", "/api/admin/milestones/"+first+"/verify", admin,
		map[string]any{"decision": "maybe"})
	require.Equal(t, 400, resp.StatusCode)

	resp, body := e.do(t, "POST", "/api/issuer/milestones/"+first+"/submit", issuer,
		map[string]any{"proof_url": "https://proofs/tender.pdf"})
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "SUBMITTED", body["status"])

	resp, body = e.do(t, "POST", "/api/admin/milestones/"+first+"/verify", admin,
		map[string]any{"decision": "APPROVE"})
	require.Equal(t, 200, resp.StatusCode)
	require.EqualValues(t, 20_000, body["amount_released"])
	require.Equal(t, false, body["replayed"])
	released := body["tx_hash"].(string)

	// re-approval replays the recorded release
	resp, body = e.do(t, "POST", "/api/admin/milestones/"+first+"/verify", admin,
		map[string]any{"decision": "APPROVE"})
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, true, body["replayed"])
	require.Equal(t, released, body["tx_hash"])

	// transparency shows the release
	resp, body = e.do(t, "GET", fmt.Sprintf("/api/projects/%s/transparency", projectID), "", nil)
	require.Equal(t, 200, resp.StatusCode)
	releases := body["releases"].([]any)
	require.Len(t, releases, 1)
	escrow := body["escrow"].(map[string]any)
	require.EqualValues(t, 80_000, escrow["total_locked"])
	require.EqualValues(t, 20_000, escrow["total_released"])
}

func TestMarketplaceOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	projectID := e.activeProject(t)
	seller := e.tokens["investor@test"]
	buyer := e.tokens["buyer@test"]

	_, _ = e.do(t, "POST", "/api/investor/invest", seller, map[string]any{
		"project_id": projectID, "amount": 2000,
	})

	resp, body := e.do(t, "POST", "/api/marketplace/list", seller, map[string]any{
		"project_id": projectID, "token_count": 15, "price_per_token": 120,
	})
	require.Equal(t, 201, resp.StatusCode)
	listingID := body["id"].(string)

	resp, body = e.do(t, "GET", "/api/marketplace/listings", "", nil)
	require.Equal(t, 200, resp.StatusCode)
	require.EqualValues(t, 1, body["count"])
	row := body["listings"].([]any)[0].(map[string]any)
	require.Equal(t, "Ring Road Phase 1", row["project_title"])
	require.Equal(t, "Investor", row["seller_name"])

	// reservation already debited the seller
	resp, _ = e.do(t, "POST", "/api/marketplace/list", seller, map[string]any{
		"project_id": projectID, "token_count": 10, "price_per_token": 120,
	})
	require.Equal(t, 400, resp.StatusCode)

	resp, body = e.do(t, "POST", "/api/marketplace/buy", buyer, map[string]any{
		"listing_id": listingID,
	}, "Idempotency-Key", "buy-1")
	require.Equal(t, 200, resp.StatusCode)
	require.EqualValues(t, 15*120, body["amount"])
	txHash := body["tx_hash"].(string)

	// replay with the same key
	resp, body = e.do(t, "POST", "/api/marketplace/buy", buyer, map[string]any{
		"listing_id": listingID,
	}, "Idempotency-Key", "buy-1")
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, txHash, body["tx_hash"])

	// without a key the sold listing is simply gone
	resp, _ = e.do(t, "POST", "/api/marketplace/buy", buyer, map[string]any{
		"listing_id": listingID,
	})
	require.Equal(t, 400, resp.StatusCode)

	// cancel returns reserved tokens
	resp, body = e.do(t, "POST", "/api/marketplace/list", seller, map[string]any{
		"project_id": projectID, "token_count": 5, "price_per_token": 150,
	})
	require.Equal(t, 201, resp.StatusCode)
	second := body["id"].(string)

	resp, _ = e.do(t, "POST", "/api/marketplace/listings/"+second+"/cancel", buyer, nil)
	require.Equal(t, 403, resp.StatusCode)

	resp, body = e.do(t, "POST", "/api/marketplace/listings/"+second+"/cancel", seller, nil)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "CANCELLED", body["status"])

	h, err := e.store.GetHolding(context.Background(), "usr_investor", projectID)
	require.NoError(t, err)
	require.Equal(t, int64(5), h.TokenCount)
}

func TestAdminSurfaces(t *testing.T) {
	e := newTestEnv(t)
	projectID := e.activeProject(t)
	admin := e.tokens["admin@test"]

	resp, body := e.do(t, "GET", "/api/admin/projects", admin, nil)
	require.Equal(t, 200, resp.StatusCode)
	require.EqualValues(t, 1, body["count"])

	resp, body = e.do(t, "GET", "/api/admin/projects/"+projectID+"/details", admin, nil)
	require.Equal(t, 200, resp.StatusCode)
	issuer := body["issuer"].(map[string]any)
	require.Equal(t, "issuer@test", issuer["email"])

	resp, body = e.do(t, "GET", "/api/admin/projects/"+projectID+"/events", admin, nil)
	require.Equal(t, 200, resp.StatusCode)
	events := body["events"].([]any)
	require.GreaterOrEqual(t, len(events), 2)
	firstEvent := events[0].(map[string]any)
	require.Equal(t, "CREATED", firstEvent["type"])

	resp, _ = e.do(t, "POST", "/api/admin/projects/"+projectID+"/status", admin,
		map[string]any{"status": "bogus"})
	require.Equal(t, 400, resp.StatusCode)

	resp, _ = e.do(t, "POST", "/api/admin/projects/"+projectID+"/status", admin,
		map[string]any{"status": "FROZEN"})
	require.Equal(t, 200, resp.StatusCode)

	// frozen projects disappear from the public surface but not from admin
	resp, _ = e.do(t, "GET", "/api/projects/"+projectID, "", nil)
	require.Equal(t, 403, resp.StatusCode)
	resp, body = e.do(t, "GET", "/api/admin/projects?status=FROZEN", admin, nil)
	require.Equal(t, 200, resp.StatusCode)
	require.EqualValues(t, 1, body["count"])
	resp, _ = e.do(t, "GET", "/api/admin/projects/"+projectID+"/details", admin, nil)
	require.Equal(t, 200, resp.StatusCode)
}

func TestFraudAlertsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	admin := e.tokens["admin@test"]

	// roi 14.2 trips HIGH_ROI_ALERT
	resp, body := e.do(t, "POST", "/api/issuer/projects", e.tokens["issuer@test"], map[string]any{
		"title": "Underpass Upgrade", "location": "Chennai", "description": "drainage",
		"funding_target": 13_000_000, "token_price": 100, "roi_percent": 14.2,
	})
	require.Equal(t, 201, resp.StatusCode)
	_ = body

	resp, body = e.do(t, "GET", "/api/admin/fraud-alerts", admin, nil)
	require.Equal(t, 200, resp.StatusCode)
	require.EqualValues(t, 1, body["count"])
	alert := body["alerts"].([]any)[0].(map[string]any)
	require.Equal(t, "HIGH_ROI_ALERT", alert["type"])
	require.Equal(t, "HIGH", alert["severity"])
}
