package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"tokobill/backend/internal/cache"
	"tokobill/backend/internal/domain"
	"tokobill/backend/internal/service"
	"tokobill/backend/internal/sms"
	"tokobill/backend/internal/store/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	t.Setenv("SEED_ADMIN_PASSWORD", "secret1")
	t.Setenv("SEED_STAFF_PASSWORD", "staff123")

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopStatsCache{}, sms.NewSimulatedNotifier(zap.NewNop()), zap.NewNop(), 0, 0)
	sessions := NewSessionManager(svc, "0123456789abcdef0123456789abcdef", false)
	api := New(svc, sessions, "http://127.0.0.1:3000", zap.NewNop())

	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method, url, csrf string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func responseMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var envelope struct {
		Message string `json:"message"`
	}
	decodeBody(t, resp, &envelope)
	return envelope.Message
}

func login(t *testing.T, client *http.Client, baseURL, code, username, password string) *http.Response {
	t.Helper()
	return doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", "", domain.LoginRequest{
		StoreCode: code, Username: username, Password: password,
	})
}

func mustLogin(t *testing.T, client *http.Client, baseURL, code, username, password string) {
	t.Helper()
	resp := login(t, client, baseURL, code, username, password)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s/%s: status %d", code, username, resp.StatusCode)
	}
}

func csrfToken(t *testing.T, client *http.Client, baseURL string) string {
	t.Helper()
	resp, err := client.Get(baseURL + "/api/v1/auth/csrf-token")
	if err != nil {
		t.Fatalf("fetch csrf token: %v", err)
	}
	var envelope struct {
		Token string `json:"csrf_token"`
	}
	decodeBody(t, resp, &envelope)
	if envelope.Token == "" {
		t.Fatal("empty csrf token")
	}
	return envelope.Token
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var body struct {
		OK bool `json:"ok"`
	}
	decodeBody(t, resp, &body)
	if !body.OK {
		t.Fatal("healthz returned ok=false")
	}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)

	resp := login(t, client, ts.URL, "MAIN01", "alice", "secret1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status: %d", resp.StatusCode)
	}
	var auth domain.AuthResponse
	decodeBody(t, resp, &auth)
	if auth.User.Username != "alice" || auth.Store.Code != "MAIN01" {
		t.Fatalf("unexpected auth response: %+v", auth)
	}

	cookieSet := false
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			cookieSet = true
			if !c.HttpOnly {
				t.Fatal("session cookie is not HttpOnly")
			}
		}
	}
	if !cookieSet {
		t.Fatal("login did not set the session cookie")
	}

	me, err := client.Get(ts.URL + "/api/v1/auth/me")
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.StatusCode != http.StatusOK {
		t.Fatalf("me status: %d", me.StatusCode)
	}
	var meResp domain.AuthResponse
	decodeBody(t, me, &meResp)
	if meResp.User.Username != "alice" {
		t.Fatalf("me returned %+v", meResp.User)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)

	unknownStore := login(t, client, ts.URL, "NOPE99", "alice", "secret1")
	if unknownStore.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown store status: %d", unknownStore.StatusCode)
	}
	if msg := responseMessage(t, unknownStore); msg != "invalid store code" {
		t.Fatalf("unknown store message: %q", msg)
	}

	// alice is a MAIN01 user. Presenting her credentials to OTHER1 must be
	// indistinguishable from a wrong password.
	crossStore := login(t, client, ts.URL, "OTHER1", "alice", "secret1")
	wrongPassword := login(t, client, ts.URL, "MAIN01", "alice", "wrong")
	if crossStore.StatusCode != http.StatusUnauthorized || wrongPassword.StatusCode != http.StatusUnauthorized {
		t.Fatalf("statuses: cross=%d wrong=%d", crossStore.StatusCode, wrongPassword.StatusCode)
	}
	crossMsg := responseMessage(t, crossStore)
	wrongMsg := responseMessage(t, wrongPassword)
	if crossMsg != wrongMsg {
		t.Fatalf("messages differ: %q vs %q", crossMsg, wrongMsg)
	}
}

func TestLoginRateLimited(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)

	var last int
	for i := 0; i < 6; i++ {
		resp := login(t, client, ts.URL, "MAIN01", "alice", "wrong")
		last = resp.StatusCode
		resp.Body.Close()
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("sixth attempt status: %d, want 429", last)
	}
}

func TestRequestsWithoutSessionAreRejected(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/products")
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status: %d, want 401", resp.StatusCode)
	}
	if msg := responseMessage(t, resp); msg != "authentication required" {
		t.Fatalf("message: %q", msg)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	mustLogin(t, client, ts.URL, "MAIN01", "alice", "secret1")
	token := csrfToken(t, client, ts.URL)

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/auth/logout", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status: %d", resp.StatusCode)
	}

	me, err := client.Get(ts.URL + "/api/v1/auth/me")
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	me.Body.Close()
	if me.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout: %d, want 401", me.StatusCode)
	}
}

func TestCSRFRequiredForMutations(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	mustLogin(t, client, ts.URL, "MAIN01", "alice", "secret1")

	// Without a token the mutation is refused even with a valid session.
	blocked := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/customers", "", domain.CustomerRequest{Name: "Siti"})
	blocked.Body.Close()
	if blocked.StatusCode != http.StatusForbidden {
		t.Fatalf("missing token status: %d, want 403", blocked.StatusCode)
	}

	forged := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/customers", "deadbeef", domain.CustomerRequest{Name: "Siti"})
	forged.Body.Close()
	if forged.StatusCode != http.StatusForbidden {
		t.Fatalf("forged token status: %d, want 403", forged.StatusCode)
	}

	token := csrfToken(t, client, ts.URL)
	allowed := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/customers", token, domain.CustomerRequest{Name: "Siti"})
	defer allowed.Body.Close()
	if allowed.StatusCode != http.StatusCreated {
		t.Fatalf("with token status: %d, want 201", allowed.StatusCode)
	}

	// Reads never need a token.
	list, err := client.Get(ts.URL + "/api/v1/customers")
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}
	list.Body.Close()
	if list.StatusCode != http.StatusOK {
		t.Fatalf("list status: %d", list.StatusCode)
	}
}

func TestCreateBillEndpoint(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	mustLogin(t, client, ts.URL, "MAIN01", "alice", "secret1")
	token := csrfToken(t, client, ts.URL)

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/bills", token, domain.BillCreateRequest{
		Items: []domain.BillItemRequest{{ProductID: 1, Quantity: 2, Price: "10.00"}},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create bill status: %d", resp.StatusCode)
	}
	var created struct {
		Bill domain.Bill `json:"bill"`
	}
	decodeBody(t, resp, &created)
	if created.Bill.Total != "20.00" || created.Bill.Status != domain.BillStatusPaid {
		t.Fatalf("unexpected bill: %+v", created.Bill)
	}
	if !strings.HasPrefix(created.Bill.Number, "INV-") {
		t.Fatalf("bill number: %q", created.Bill.Number)
	}

	productResp, err := client.Get(ts.URL + "/api/v1/products/1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	var product struct {
		Product domain.Product `json:"product"`
	}
	decodeBody(t, productResp, &product)
	if product.Product.Stock != 3 {
		t.Fatalf("stock after bill: got %d, want 3", product.Product.Stock)
	}

	txResp, err := client.Get(ts.URL + "/api/v1/inventory/transactions")
	if err != nil {
		t.Fatalf("inventory transactions: %v", err)
	}
	var transactions struct {
		Transactions []domain.InventoryTransaction `json:"transactions"`
	}
	decodeBody(t, txResp, &transactions)
	if len(transactions.Transactions) == 0 {
		t.Fatal("no inventory transactions")
	}
	latest := transactions.Transactions[0]
	if latest.Quantity != -2 || latest.Reason != domain.InventoryReasonSale || latest.Note != created.Bill.Number {
		t.Fatalf("unexpected inventory entry: %+v", latest)
	}
}

func TestCreateBillConflictOnInsufficientStock(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	mustLogin(t, client, ts.URL, "MAIN01", "alice", "secret1")
	token := csrfToken(t, client, ts.URL)

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/bills", token, domain.BillCreateRequest{
		Items: []domain.BillItemRequest{{ProductID: 1, Quantity: 99}},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("oversell status: %d, want 409", resp.StatusCode)
	}
}

func TestBillNotFound(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	mustLogin(t, client, ts.URL, "MAIN01", "alice", "secret1")

	resp, err := client.Get(ts.URL + "/api/v1/bills/9999")
	if err != nil {
		t.Fatalf("get bill: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: %d, want 404", resp.StatusCode)
	}
	if msg := responseMessage(t, resp); msg != "not found" {
		t.Fatalf("message: %q", msg)
	}
}

func TestBillPrintReturnsHTML(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	mustLogin(t, client, ts.URL, "MAIN01", "alice", "secret1")
	token := csrfToken(t, client, ts.URL)

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/bills", token, domain.BillCreateRequest{
		Items: []domain.BillItemRequest{{ProductID: 1, Quantity: 1}},
	})
	var created struct {
		Bill domain.Bill `json:"bill"`
	}
	decodeBody(t, resp, &created)

	printResp, err := client.Get(ts.URL + "/api/v1/bills/1/print")
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	defer printResp.Body.Close()
	if printResp.StatusCode != http.StatusOK {
		t.Fatalf("print status: %d", printResp.StatusCode)
	}
	if ct := printResp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type: %q", ct)
	}
	body, err := io.ReadAll(printResp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	page := string(body)
	if !strings.Contains(page, created.Bill.Number) {
		t.Fatal("printed invoice does not show the bill number")
	}
	if !strings.Contains(page, "House Blend Coffee") {
		t.Fatal("printed invoice does not list the line item")
	}
}

func TestStaffForbiddenFromCatalogMutations(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	mustLogin(t, client, ts.URL, "MAIN01", "budi", "staff123")
	token := csrfToken(t, client, ts.URL)

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/products", token, domain.ProductCreateRequest{
		Name: "Contraband", Price: "1.00",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("staff product create: %d, want 403", resp.StatusCode)
	}
	if msg := responseMessage(t, resp); msg != "forbidden" {
		t.Fatalf("message: %q", msg)
	}

	// Selling stays open to staff.
	bill := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/bills", token, domain.BillCreateRequest{
		Items: []domain.BillItemRequest{{ProductID: 1, Quantity: 1}},
	})
	bill.Body.Close()
	if bill.StatusCode != http.StatusCreated {
		t.Fatalf("staff bill create: %d, want 201", bill.StatusCode)
	}
}

func TestRegisterFlow(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)

	invalid := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/auth/register", "", domain.RegisterRequest{
		StoreName: "", StoreCode: "NEW001", Username: "dewi", Password: "123",
	})
	if invalid.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid register status: %d", invalid.StatusCode)
	}
	var validation struct {
		Message string            `json:"message"`
		Errors  map[string]string `json:"errors"`
	}
	decodeBody(t, invalid, &validation)
	if validation.Errors["store_name"] == "" || validation.Errors["password"] == "" {
		t.Fatalf("missing field errors: %+v", validation.Errors)
	}

	ok := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/auth/register", "", domain.RegisterRequest{
		StoreName: "New Shop", StoreCode: "NEW001", Username: "dewi", Password: "hunter22",
	})
	if ok.StatusCode != http.StatusOK {
		t.Fatalf("register status: %d", ok.StatusCode)
	}
	var auth domain.AuthResponse
	decodeBody(t, ok, &auth)
	if auth.Store.Code != "NEW001" || auth.User.Role != domain.RoleAdmin {
		t.Fatalf("unexpected auth response: %+v", auth)
	}

	// Registration logs the admin straight in.
	me, err := client.Get(ts.URL + "/api/v1/auth/me")
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	me.Body.Close()
	if me.StatusCode != http.StatusOK {
		t.Fatalf("me after register: %d", me.StatusCode)
	}

	dup := doJSON(t, newClient(t), http.MethodPost, ts.URL+"/api/v1/auth/register", "", domain.RegisterRequest{
		StoreName: "Copycat", StoreCode: "NEW001", Username: "eve", Password: "hunter22",
	})
	defer dup.Body.Close()
	if dup.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status: %d, want 409", dup.StatusCode)
	}
}

func TestLowStockEndpoint(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	mustLogin(t, client, ts.URL, "MAIN01", "alice", "secret1")
	token := csrfToken(t, client, ts.URL)

	adjust := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/inventory/adjustments", token, domain.InventoryAdjustmentRequest{
		ProductID: 1, Quantity: -4, Reason: domain.InventoryReasonAdjustment, Note: "damaged",
	})
	adjust.Body.Close()
	if adjust.StatusCode != http.StatusCreated {
		t.Fatalf("adjustment status: %d", adjust.StatusCode)
	}

	resp, err := client.Get(ts.URL + "/api/v1/products/low-stock")
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	var low struct {
		Products []domain.Product `json:"products"`
	}
	decodeBody(t, resp, &low)
	found := false
	for _, p := range low.Products {
		if p.ID == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("product 1 missing from low-stock response: %+v", low.Products)
	}
}

func TestSalesReportCSV(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	mustLogin(t, client, ts.URL, "MAIN01", "alice", "secret1")
	token := csrfToken(t, client, ts.URL)

	bill := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/bills", token, domain.BillCreateRequest{
		Items: []domain.BillItemRequest{{ProductID: 1, Quantity: 2, Price: "10.00"}},
	})
	bill.Body.Close()
	if bill.StatusCode != http.StatusCreated {
		t.Fatalf("create bill: %d", bill.StatusCode)
	}

	resp, err := client.Get(ts.URL + "/api/v1/reports/sales?format=csv")
	if err != nil {
		t.Fatalf("sales report: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report status: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type: %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	csv := string(body)
	if !strings.HasPrefix(csv, "section,key,value") {
		t.Fatalf("csv header missing: %q", csv)
	}
	if !strings.Contains(csv, "summary,bills,1") || !strings.Contains(csv, "summary,gross,20.00") {
		t.Fatalf("csv summary missing: %q", csv)
	}
}

func TestDeleteDefaultTemplateRejected(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	mustLogin(t, client, ts.URL, "MAIN01", "alice", "secret1")
	token := csrfToken(t, client, ts.URL)

	resp := doJSON(t, client, http.MethodDelete, ts.URL+"/api/v1/invoice-templates/1", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("delete default template: %d, want 400", resp.StatusCode)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	mustLogin(t, client, ts.URL, "MAIN01", "alice", "secret1")
	token := csrfToken(t, client, ts.URL)

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/customers", token, map[string]any{
		"name": "Siti", "loyalty_tier": "gold",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field status: %d, want 400", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	mustLogin(t, client, ts.URL, "MAIN01", "alice", "secret1")
	token := csrfToken(t, client, ts.URL)

	resp := doJSON(t, client, http.MethodDelete, ts.URL+"/api/v1/bills/1", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status: %d, want 405", resp.StatusCode)
	}
}
