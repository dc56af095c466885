package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"sportsroz.org/internal/auth"
	"sportsroz.org/internal/store/memory"
)

type captureMailer struct {
	mu       sync.Mutex
	lastOTP  string
	lastTemp string
}

func (m *captureMailer) SendOTP(_ context.Context, _, _, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOTP = code
	return nil
}

func (m *captureMailer) SendTempPassword(_ context.Context, _, _, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTemp = password
	return nil
}

func (m *captureMailer) otp() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOTP
}

type apiClient struct {
	baseURL string
	client  *http.Client
	mailer  *captureMailer
	rbac    *auth.RBACService
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	tokens, err := auth.NewTokenService("test-secret-0123456789abcdef", "sportsroz-test")
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	store := memory.New()
	mailer := &captureMailer{}
	authSvc, err := auth.NewService(store, tokens, mailer)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	if err := authSvc.EnsureBuiltins(context.Background()); err != nil {
		t.Fatalf("ensure builtins: %v", err)
	}
	rbacSvc, err := auth.NewRBACService(store)
	if err != nil {
		t.Fatalf("new rbac service: %v", err)
	}

	api := New(authSvc, rbacSvc, ReadyProbe{}, "test", Options{
		RateLimitPerSecond: 100,
		RateLimitBurst:     100,
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		mailer:  mailer,
		rbac:    rbacSvc,
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, token string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, token string) *http.Response {
	return c.do(http.MethodPost, path, body, token)
}

func (c *apiClient) get(path, token string) *http.Response {
	return c.do(http.MethodGet, path, nil, token)
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

type registerResponse struct {
	UserID       string `json:"userId"`
	Token        string `json:"token"`
	ExpiryTime   int64  `json:"expiryTime"`
	IntervalTime int64  `json:"intervalTime"`
}

type loginResponse struct {
	AccessToken           string          `json:"accessToken"`
	AccessTokenExpiresIn  int64           `json:"accessTokenExpiresIn"`
	RefreshToken          string          `json:"refreshToken"`
	RefreshTokenExpiresIn int64           `json:"refreshTokenExpiresIn"`
	User                  json.RawMessage `json:"user"`
}

func (c *apiClient) register(email string) registerResponse {
	c.t.Helper()
	resp := c.post("/public/auth/register", map[string]any{
		"email":    email,
		"password": "Str0ng!pass",
		"fullName": "Jane Player",
		"officeId": "office-7",
	}, "")
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register status = %d", resp.StatusCode)
	}
	return decode[registerResponse](c.t, resp)
}

func (c *apiClient) registerAndLogin(email string) loginResponse {
	c.t.Helper()
	reg := c.register(email)
	resp := c.post("/public/auth/verify-otp", map[string]any{
		"token": reg.Token,
		"otp":   c.mailer.otp(),
	}, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("verify status = %d", resp.StatusCode)
	}
	resp = c.post("/public/auth/login", map[string]any{
		"email":    email,
		"password": "Str0ng!pass",
	}, "")
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login status = %d", resp.StatusCode)
	}
	return decode[loginResponse](c.t, resp)
}

// grantAll assigns the user a role holding every builtin permission.
func (c *apiClient) grantAll(userID string) {
	c.t.Helper()
	ctx := context.Background()
	role, err := c.rbac.CreateRole(ctx, "admin-"+userID, "")
	if err != nil {
		c.t.Fatalf("create role: %v", err)
	}
	names := make([]string, 0, len(auth.BuiltinPermissions))
	for _, p := range auth.BuiltinPermissions {
		names = append(names, p.Name)
	}
	if err := c.rbac.SetRolePermissions(ctx, role.ID, names); err != nil {
		c.t.Fatalf("set permissions: %v", err)
	}
	if _, err := c.rbac.ApproveUser(ctx, userID, role.ID); err != nil {
		c.t.Fatalf("approve user: %v", err)
	}
}

func TestAuthLifecycleOverHTTP(t *testing.T) {
	c := newTestAPI(t)

	reg := c.register("jane@example.com")
	if reg.UserID == "" || reg.Token == "" || reg.ExpiryTime <= 0 || reg.IntervalTime <= 0 {
		t.Fatalf("incomplete register response: %+v", reg)
	}

	// Wrong code is a 400 and does not burn the pending code.
	resp := c.post("/public/auth/verify-otp", map[string]any{"token": reg.Token, "otp": "000000"}, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("wrong code status = %d, want 400", resp.StatusCode)
	}

	resp = c.post("/public/auth/verify-otp", map[string]any{"token": reg.Token, "otp": c.mailer.otp()}, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d, want 200", resp.StatusCode)
	}

	login := decode[loginResponse](t, c.post("/public/auth/login", map[string]any{
		"email":    "jane@example.com",
		"password": "Str0ng!pass",
	}, ""))
	if login.AccessToken == "" || login.RefreshToken == "" {
		t.Fatalf("incomplete login response: %+v", login)
	}
	if len(login.User) == 0 {
		t.Fatal("login response missing user")
	}
	if bytes.Contains(login.User, []byte("password")) {
		t.Fatal("login response leaks password material")
	}

	refreshed := decode[loginResponse](t, c.post("/public/auth/refresh-token", map[string]any{
		"refreshToken": login.RefreshToken,
	}, ""))
	if refreshed.AccessToken == "" || refreshed.RefreshToken == "" {
		t.Fatalf("incomplete refresh response: %+v", refreshed)
	}

	resp = c.get("/private/auth/me", refreshed.AccessToken)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d, want 200", resp.StatusCode)
	}
}

func TestLoginErrorStatuses(t *testing.T) {
	c := newTestAPI(t)
	c.register("jane@example.com")

	// Unverified account: 403.
	resp := c.post("/public/auth/login", map[string]any{
		"email": "jane@example.com", "password": "Str0ng!pass",
	}, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unverified login status = %d, want 403", resp.StatusCode)
	}

	// Unknown account and wrong password: both 401.
	for _, body := range []map[string]any{
		{"email": "nobody@example.com", "password": "Str0ng!pass"},
		{"email": "jane@example.com", "password": "Wrong!pass1"},
	} {
		resp := c.post("/public/auth/login", body, "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("login %v status = %d, want 401", body, resp.StatusCode)
		}
	}
}

func TestDuplicateRegistrationConflicts(t *testing.T) {
	c := newTestAPI(t)
	c.registerAndLogin("jane@example.com")

	resp := c.post("/public/auth/register", map[string]any{
		"email":    "jane@example.com",
		"password": "An0ther!pass",
		"fullName": "Jane Again",
		"officeId": "office-9",
	}, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["fields"] == nil {
		t.Fatal("conflict response missing field details")
	}
}

func TestPrivateRoutesRequireToken(t *testing.T) {
	c := newTestAPI(t)

	for _, path := range []string{"/private/auth/me", "/private/roles", "/private/users"} {
		resp := c.get(path, "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("GET %s without token = %d, want 401", path, resp.StatusCode)
		}
	}

	resp := c.get("/private/auth/me", "not-a-jwt")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", resp.StatusCode)
	}
}

func TestRefreshTokenRejectedAsBearer(t *testing.T) {
	c := newTestAPI(t)
	login := c.registerAndLogin("jane@example.com")

	resp := c.get("/private/auth/me", login.RefreshToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh-as-access status = %d, want 401", resp.StatusCode)
	}
}

func TestRBACAdminOverHTTP(t *testing.T) {
	c := newTestAPI(t)
	admin := c.registerAndLogin("admin@example.com")

	var adminUser struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(admin.User, &adminUser); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	c.grantAll(adminUser.ID)

	// Re-login to confirm role assignment does not disturb credentials;
	// tokens are stateless so the old one already sees the new role.
	resp := c.post("/private/roles", map[string]any{"name": "coach", "description": "team lead"}, admin.AccessToken)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create role status = %d, want 201", resp.StatusCode)
	}
	role := decode[map[string]any](t, resp)
	roleID, _ := role["id"].(string)
	if roleID == "" {
		t.Fatalf("role response missing id: %v", role)
	}

	resp = c.do(http.MethodPut, "/private/roles/"+roleID+"/permissions", map[string]any{
		"permissions": []string{"user.read"},
	}, admin.AccessToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set role permissions status = %d, want 200", resp.StatusCode)
	}

	resp = c.get("/private/roles/"+roleID, admin.AccessToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get role status = %d, want 200", resp.StatusCode)
	}
	detail := decode[struct {
		Permissions []map[string]any `json:"permissions"`
	}](t, resp)
	if len(detail.Permissions) != 1 {
		t.Fatalf("role permissions = %v, want 1 entry", detail.Permissions)
	}

	// A plain user holds no admin permissions.
	member := c.registerAndLogin("member@example.com")
	resp = c.get("/private/roles", member.AccessToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unprivileged list roles status = %d, want 403", resp.StatusCode)
	}

	// Approve the member into the new role over HTTP.
	var memberUser struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(member.User, &memberUser); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	resp = c.post("/private/users/"+memberUser.ID+"/approve", map[string]any{"roleId": roleID}, admin.AccessToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d, want 200", resp.StatusCode)
	}

	resp = c.get("/private/users", member.AccessToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("member list users status = %d, want 200 after grant", resp.StatusCode)
	}
}

func TestProfileSelfServiceUpdate(t *testing.T) {
	c := newTestAPI(t)
	login := c.registerAndLogin("jane@example.com")
	var user struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(login.User, &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}

	resp := c.do(http.MethodPut, "/private/users/"+user.ID, map[string]any{
		"jerseyName": "JP-10",
		"sportTypes": []string{"volleyball"},
	}, login.AccessToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("self update status = %d, want 200", resp.StatusCode)
	}
	updated := decode[map[string]any](t, resp)
	if updated["jersey_name"] != "JP-10" {
		t.Fatalf("jersey_name = %v", updated["jersey_name"])
	}

	// Another roleless user may not edit this profile.
	other := c.registerAndLogin("other@example.com")
	resp = c.do(http.MethodPut, "/private/users/"+user.ID, map[string]any{
		"jerseyName": "HAX",
	}, other.AccessToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign update status = %d, want 403", resp.StatusCode)
	}
}

func TestMalformedJSONIsBadRequest(t *testing.T) {
	c := newTestAPI(t)

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/public/auth/login", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", resp.StatusCode)
	}

	// Unknown fields are rejected too.
	resp = c.post("/public/auth/login", map[string]any{"email": "a@b.co", "password": "x", "bogus": true}, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthAndReady(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	health := decode[map[string]any](t, resp)
	if health["status"] != "ok" {
		t.Fatalf("healthz payload = %v", health)
	}

	resp = c.get("/readyz", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d", resp.StatusCode)
	}

	resp = c.get("/metrics", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}

	resp = c.get("/nope", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown path status = %d, want 404", resp.StatusCode)
	}
}
