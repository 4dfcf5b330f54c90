package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("cannot decode envelope from %q: %v", rec.Body.String(), err)
	}
	return env
}

func mustSucceed(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("expected success, got code=%d msg=%q", env.Code, env.Msg)
	}
	return env
}

func mustFailWith(t *testing.T, rec *httptest.ResponseRecorder, code int) envelope {
	t.Helper()
	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Fatalf("expected failure with code %d, got success", code)
	}
	if env.Code != code {
		t.Fatalf("expected code %d, got %d (msg=%q)", code, env.Code, env.Msg)
	}
	return env
}

func setupTestServer(t *testing.T) (*gin.Engine, string) {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	loadConfig()
	initDB()
	r := gin.Default()
	setupRoutes(r)

	login := performRequest(r, http.MethodPost, "/manage/login",
		map[string]string{"user_id": "admin", "passwd": "admin123"}, "")
	env := mustSucceed(t, login)
	var session struct {
		Session string `json:"session"`
	}
	if err := json.Unmarshal(env.Data, &session); err != nil || session.Session == "" {
		t.Fatalf("no session token in login response: %s", string(env.Data))
	}
	return r, session.Session
}

// addTestCustomer registers a customer with a unique id and returns it.
func addTestCustomer(t *testing.T, r *gin.Engine, token, tag string) string {
	t.Helper()
	id := fmt.Sprintf("%s%013d", tag, time.Now().UnixNano()%10000000000000)
	if len(id) > 18 {
		id = id[:18]
	}
	rec := performRequest(r, http.MethodPost, "/customer/add",
		map[string]string{"customer_id": id, "name": "Customer " + tag, "phone": "13800000000"}, token)
	mustSucceed(t, rec)
	return id
}

func TestAuthRequired(t *testing.T) {
	r, _ := setupTestServer(t)
	rec := performRequest(r, http.MethodPost, "/account/query",
		map[string]any{"method": searchByBranch, "keyword": "headquarter"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestAccountLifecycle(t *testing.T) {
	r, token := setupTestServer(t)
	holderA := addTestCustomer(t, r, token, "A")
	holderB := addTestCustomer(t, r, token, "B")

	// Create a saving account held by A and B.
	rec := performRequest(r, http.MethodPost, "/account/create", map[string]any{
		"branch":       "headquarter",
		"type":         0,
		"holders":      []string{holderA, holderB},
		"rate":         "0.0325",
		"finance_plan": "fixed",
	}, token)
	env := mustSucceed(t, rec)
	var created accountView
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode created account: %v", err)
	}
	if len(created.AccountID) != 19 {
		t.Fatalf("expected 19-digit card number, got %q", created.AccountID)
	}
	if created.Rate == nil || created.FinancePlan == nil || created.OverdraftLimit != nil {
		t.Fatalf("extension fields wrong for saving account: %+v", created)
	}

	// Round-trip: query by account id returns both holders and matching fields.
	rec = performRequest(r, http.MethodPost, "/account/query",
		map[string]any{"method": searchByAccountID, "keyword": created.AccountID}, token)
	env = mustSucceed(t, rec)
	var views []accountView
	if err := json.Unmarshal(env.Data, &views); err != nil || len(views) != 1 {
		t.Fatalf("query by id returned %s", string(env.Data))
	}
	holders := map[string]bool{}
	for _, h := range views[0].Holders {
		holders[h] = true
	}
	if !holders[holderA] || !holders[holderB] || len(holders) != 2 {
		t.Fatalf("holder list mismatch: %v", views[0].Holders)
	}

	// A second saving account for A at the same branch violates uniqueness.
	rec = performRequest(r, http.MethodPost, "/account/create", map[string]any{
		"branch":       "headquarter",
		"type":         0,
		"holders":      []string{holderA},
		"rate":         "0.0325",
		"finance_plan": "fixed",
	}, token)
	mustFailWith(t, rec, codeDuplicateEntry)

	// A checking account for A at the same branch is fine.
	rec = performRequest(r, http.MethodPost, "/account/create", map[string]any{
		"branch":          "headquarter",
		"type":            1,
		"holders":         []string{holderA},
		"overdraft_limit": "2000",
	}, token)
	env = mustSucceed(t, rec)
	var checking accountView
	if err := json.Unmarshal(env.Data, &checking); err != nil {
		t.Fatalf("decode checking account: %v", err)
	}
	if checking.OverdraftLimit == nil || checking.Rate != nil {
		t.Fatalf("extension fields wrong for checking account: %+v", checking)
	}

	// Update: change balance and drop B from the holder list.
	rec = performRequest(r, http.MethodPost, "/account/modify", map[string]any{
		"account_id":   created.AccountID,
		"balance":      "150.75",
		"holders":      []string{holderA},
		"rate":         "0.04",
		"finance_plan": "flex",
	}, token)
	env = mustSucceed(t, rec)
	var updated accountView
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		t.Fatalf("decode updated account: %v", err)
	}
	if len(updated.Holders) != 1 || updated.Holders[0] != holderA {
		t.Fatalf("holder reconcile failed: %v", updated.Holders)
	}
	if !updated.Balance.Equal(dec("150.75")) {
		t.Fatalf("balance not updated: %s", updated.Balance)
	}

	// Unbinding the last holder must fail and leave the holding in place.
	rec = performRequest(r, http.MethodPost, "/account/unbind",
		map[string]string{"account_id": created.AccountID, "customer": holderA}, token)
	mustFailWith(t, rec, codeLastHolder)

	// Bind B again, then unbinding A succeeds.
	rec = performRequest(r, http.MethodPost, "/account/bind",
		map[string]string{"account_id": created.AccountID, "customer": holderB}, token)
	mustSucceed(t, rec)
	rec = performRequest(r, http.MethodPost, "/account/unbind",
		map[string]string{"account_id": created.AccountID, "customer": holderA}, token)
	mustSucceed(t, rec)

	// Binding a nonexistent customer is a reference error.
	rec = performRequest(r, http.MethodPost, "/account/bind",
		map[string]string{"account_id": created.AccountID, "customer": "ZZ9999999999999999"}, token)
	mustFailWith(t, rec, codeNoReferencedRow)

	// Delete both accounts (extension row, holdings, account).
	for _, id := range []string{created.AccountID, checking.AccountID} {
		rec = performRequest(r, http.MethodPost, "/account/delete",
			map[string]string{"account_id": id}, token)
		mustSucceed(t, rec)
	}
	rec = performRequest(r, http.MethodPost, "/account/query",
		map[string]any{"method": searchByAccountID, "keyword": created.AccountID}, token)
	env = mustSucceed(t, rec)
	if err := json.Unmarshal(env.Data, &views); err != nil || len(views) != 0 {
		t.Fatalf("account still queryable after delete: %s", string(env.Data))
	}
}

func TestLoanLedgerScenario(t *testing.T) {
	r, token := setupTestServer(t)
	borrower := addTestCustomer(t, r, token, "L")

	rec := performRequest(r, http.MethodPost, "/loan/create", map[string]any{
		"branch":    "headquarter",
		"principal": "10000",
		"borrowers": []string{borrower},
	}, token)
	env := mustSucceed(t, rec)
	var loan loanView
	if err := json.Unmarshal(env.Data, &loan); err != nil {
		t.Fatalf("decode loan: %v", err)
	}
	if len(loan.LoanID) != 18 {
		t.Fatalf("expected 18-digit loan id, got %q", loan.LoanID)
	}

	// Deleting a loan before disbursement completes must fail.
	rec = performRequest(r, http.MethodPost, "/loan/delete",
		map[string]string{"loan_id": loan.LoanID}, token)
	mustFailWith(t, rec, codeLoanDisbursing)

	// 4000 succeeds.
	rec = performRequest(r, http.MethodPost, "/loan/pay",
		map[string]any{"loan_id": loan.LoanID, "amount": "4000"}, token)
	env = mustSucceed(t, rec)
	if err := json.Unmarshal(env.Data, &loan); err != nil {
		t.Fatalf("decode loan after pay: %v", err)
	}
	if len(loan.PaidHistory) != 1 || !loan.PaidHistory[0].Amount.Equal(dec("4000")) {
		t.Fatalf("paid history after first disbursement: %+v", loan.PaidHistory)
	}

	// 7000 would exceed the principal: fails and appends nothing.
	rec = performRequest(r, http.MethodPost, "/loan/pay",
		map[string]any{"loan_id": loan.LoanID, "amount": "7000"}, token)
	mustFailWith(t, rec, codeLoanOverLimit)

	// 6000 brings the total to exactly the principal.
	rec = performRequest(r, http.MethodPost, "/loan/pay",
		map[string]any{"loan_id": loan.LoanID, "amount": "6000"}, token)
	env = mustSucceed(t, rec)
	if err := json.Unmarshal(env.Data, &loan); err != nil {
		t.Fatalf("decode loan after final pay: %v", err)
	}
	if len(loan.PaidHistory) != 2 {
		t.Fatalf("over-limit disbursement left a record: %+v", loan.PaidHistory)
	}

	// Query by borrower includes the loan.
	rec = performRequest(r, http.MethodPost, "/loan/query",
		map[string]any{"method": searchByCustomer, "keyword": borrower}, token)
	env = mustSucceed(t, rec)
	var views []loanView
	if err := json.Unmarshal(env.Data, &views); err != nil || len(views) == 0 {
		t.Fatalf("loan query by borrower returned %s", string(env.Data))
	}

	// Fully disbursed: delete succeeds now.
	rec = performRequest(r, http.MethodPost, "/loan/delete",
		map[string]string{"loan_id": loan.LoanID}, token)
	mustSucceed(t, rec)
}

// Concurrent disbursements whose individual amounts each pass the limit
// check must never jointly exceed the principal: the loan row lock
// serializes the read-check-insert.
func TestConcurrentDisbursementsNeverExceedPrincipal(t *testing.T) {
	r, token := setupTestServer(t)
	borrower := addTestCustomer(t, r, token, "P")

	rec := performRequest(r, http.MethodPost, "/loan/create", map[string]any{
		"branch":    "headquarter",
		"principal": "10000",
		"borrowers": []string{borrower},
	}, token)
	env := mustSucceed(t, rec)
	var loan loanView
	if err := json.Unmarshal(env.Data, &loan); err != nil {
		t.Fatalf("decode loan: %v", err)
	}

	// 8 workers each pay 3000; any single payment fits, but only three can
	// land before the principal is reached.
	const workers = 8
	var wg sync.WaitGroup
	outcomes := make([]envelope, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rec := performRequest(r, http.MethodPost, "/loan/pay",
				map[string]any{"loan_id": loan.LoanID, "amount": "3000"}, token)
			var env envelope
			_ = json.Unmarshal(rec.Body.Bytes(), &env)
			outcomes[w] = env
		}(w)
	}
	wg.Wait()

	successes := 0
	for _, o := range outcomes {
		if o.Success {
			successes++
		} else if o.Code != codeLoanOverLimit {
			t.Fatalf("rejected disbursement has code %d (msg=%q), want %d", o.Code, o.Msg, codeLoanOverLimit)
		}
	}
	if successes != 3 {
		t.Fatalf("expected exactly 3 of %d concurrent disbursements to land, got %d", workers, successes)
	}

	rec = performRequest(r, http.MethodPost, "/loan/query",
		map[string]any{"method": searchByLoanID, "keyword": loan.LoanID}, token)
	env = mustSucceed(t, rec)
	var views []loanView
	if err := json.Unmarshal(env.Data, &views); err != nil || len(views) != 1 {
		t.Fatalf("loan query returned %s", string(env.Data))
	}
	paid := decimal.Zero
	for _, p := range views[0].PaidHistory {
		paid = paid.Add(p.Amount)
	}
	principal := views[0].Principal
	if paid.GreaterThan(principal) {
		t.Fatalf("sum(paid)=%s exceeds principal=%s", paid, principal)
	}
	if len(views[0].PaidHistory) != successes {
		t.Fatalf("%d successes but %d paid records", successes, len(views[0].PaidHistory))
	}

	// Finish disbursement and clean up.
	rec = performRequest(r, http.MethodPost, "/loan/pay",
		map[string]any{"loan_id": loan.LoanID, "amount": principal.Sub(paid).String()}, token)
	mustSucceed(t, rec)
	rec = performRequest(r, http.MethodPost, "/loan/delete",
		map[string]string{"loan_id": loan.LoanID}, token)
	mustSucceed(t, rec)
}

// Two concurrent unbinds on a two-holder account must not leave it
// holderless: the holdings lock lets exactly one through and the other
// fails as a last-holder removal.
func TestConcurrentUnbindKeepsLastHolder(t *testing.T) {
	r, token := setupTestServer(t)
	holderA := addTestCustomer(t, r, token, "U")
	holderB := addTestCustomer(t, r, token, "V")

	rec := performRequest(r, http.MethodPost, "/account/create", map[string]any{
		"branch":       "east-branch",
		"type":         0,
		"holders":      []string{holderA, holderB},
		"rate":         "0.02",
		"finance_plan": "fixed",
	}, token)
	env := mustSucceed(t, rec)
	var acc accountView
	if err := json.Unmarshal(env.Data, &acc); err != nil {
		t.Fatalf("decode account: %v", err)
	}

	var wg sync.WaitGroup
	outcomes := make([]envelope, 2)
	for i, cust := range []string{holderA, holderB} {
		wg.Add(1)
		go func(i int, cust string) {
			defer wg.Done()
			rec := performRequest(r, http.MethodPost, "/account/unbind",
				map[string]string{"account_id": acc.AccountID, "customer": cust}, token)
			var env envelope
			_ = json.Unmarshal(rec.Body.Bytes(), &env)
			outcomes[i] = env
		}(i, cust)
	}
	wg.Wait()

	successes := 0
	for _, o := range outcomes {
		if o.Success {
			successes++
		} else if o.Code != codeLastHolder {
			t.Fatalf("rejected unbind has code %d (msg=%q), want %d", o.Code, o.Msg, codeLastHolder)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly 1 of 2 concurrent unbinds to land, got %d", successes)
	}

	rec = performRequest(r, http.MethodPost, "/account/query",
		map[string]any{"method": searchByAccountID, "keyword": acc.AccountID}, token)
	env = mustSucceed(t, rec)
	var views []accountView
	if err := json.Unmarshal(env.Data, &views); err != nil || len(views) != 1 {
		t.Fatalf("account query returned %s", string(env.Data))
	}
	if len(views[0].Holders) != 1 {
		t.Fatalf("account left with %d holders: %v", len(views[0].Holders), views[0].Holders)
	}

	rec = performRequest(r, http.MethodPost, "/account/delete",
		map[string]string{"account_id": acc.AccountID}, token)
	mustSucceed(t, rec)
}

func TestCustomerCRUDAndStats(t *testing.T) {
	r, token := setupTestServer(t)
	id := addTestCustomer(t, r, token, "Q")

	// Duplicate insert fails.
	rec := performRequest(r, http.MethodPost, "/customer/add",
		map[string]string{"customer_id": id, "name": "Dup"}, token)
	mustFailWith(t, rec, codeDuplicateEntry)

	// Fuzzy query by phone prefix finds the row.
	rec = performRequest(r, http.MethodPost, "/customer/query",
		map[string]any{"exact": false, "mode": customerSearchByPhone, "keyword": "138000"}, token)
	env := mustSucceed(t, rec)
	if len(env.Data) == 0 || string(env.Data) == "[]" {
		t.Fatalf("fuzzy customer query found nothing")
	}

	// Update mutates only the provided fields.
	rec = performRequest(r, http.MethodPost, "/customer/update",
		map[string]string{"customer_id": id, "address": "1 Bank Street"}, token)
	mustSucceed(t, rec)

	// Stats over today includes at least this customer.
	today := time.Now().Format("2006-01-02")
	rec = performRequest(r, http.MethodPost, "/stat/customer",
		map[string]string{"date_from": today, "date_to": today}, token)
	mustSucceed(t, rec)

	// An empty range still answers with an empty array, not null.
	rec = performRequest(r, http.MethodPost, "/stat/customer",
		map[string]string{"date_from": "1970-01-01", "date_to": "1970-01-01"}, token)
	env = mustSucceed(t, rec)
	if string(env.Data) != "[]" {
		t.Fatalf("empty stat range serialized as %s, want []", string(env.Data))
	}

	// Delete works while the customer is unreferenced.
	rec = performRequest(r, http.MethodPost, "/customer/delete",
		map[string]string{"customer_id": id}, token)
	mustSucceed(t, rec)
	rec = performRequest(r, http.MethodPost, "/customer/delete",
		map[string]string{"customer_id": id}, token)
	mustFailWith(t, rec, codeNotFound)
}

func TestBranchList(t *testing.T) {
	r, token := setupTestServer(t)
	rec := performRequest(r, http.MethodGet, "/branch/get_all", nil, token)
	env := mustSucceed(t, rec)
	var branches []map[string]any
	if err := json.Unmarshal(env.Data, &branches); err != nil || len(branches) == 0 {
		t.Fatalf("branch list empty or undecodable: %s", string(env.Data))
	}
}
