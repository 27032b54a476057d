package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/af-corp/relay-gateway/internal/types"
	"github.com/af-corp/relay-gateway/internal/usage"
)

type fakeStore struct {
	providers []types.Provider
	routers   []types.Router
	rules     map[string][]types.RoutingRule
	keys      []Key
	global    []GlobalRate
	user      []UserRate
}

func newFakeStore() *fakeStore {
	return &fakeStore{rules: map[string][]types.RoutingRule{}}
}

func (f *fakeStore) ListProviders(_ context.Context) ([]types.Provider, error) {
	return f.providers, nil
}
func (f *fakeStore) CreateProvider(_ context.Context, p types.Provider) error {
	f.providers = append(f.providers, p)
	return nil
}
func (f *fakeStore) UpdateProvider(_ context.Context, p types.Provider) error {
	for i := range f.providers {
		if f.providers[i].ID == p.ID {
			f.providers[i] = p
		}
	}
	return nil
}
func (f *fakeStore) DeleteProvider(_ context.Context, id string) error {
	kept := f.providers[:0]
	for _, p := range f.providers {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	f.providers = kept
	return nil
}

func (f *fakeStore) ListRouters(_ context.Context) ([]types.Router, error) { return f.routers, nil }
func (f *fakeStore) CreateRouter(_ context.Context, rt types.Router) error {
	f.routers = append(f.routers, rt)
	return nil
}
func (f *fakeStore) DeleteRouter(_ context.Context, id string) error { return nil }
func (f *fakeStore) RulesForRouter(_ context.Context, routerID string) ([]types.RoutingRule, error) {
	return f.rules[routerID], nil
}
func (f *fakeStore) ReplaceRules(_ context.Context, routerID string, rules []types.RoutingRule) error {
	f.rules[routerID] = rules
	return nil
}

func (f *fakeStore) ListKeys(_ context.Context) ([]Key, error) { return f.keys, nil }
func (f *fakeStore) CreateKey(_ context.Context, k Key) error {
	f.keys = append(f.keys, k)
	return nil
}
func (f *fakeStore) DeactivateKey(_ context.Context, id string) error {
	for i := range f.keys {
		if f.keys[i].ID == id {
			f.keys[i].IsActive = false
		}
	}
	return nil
}

func (f *fakeStore) ListGlobalRates(_ context.Context, search string) ([]GlobalRate, error) {
	if search == "" {
		return f.global, nil
	}
	var matched []GlobalRate
	for _, r := range f.global {
		if strings.Contains(strings.ToLower(r.ModelName), strings.ToLower(search)) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}
func (f *fakeStore) UpsertGlobalRate(_ context.Context, rate GlobalRate) error {
	f.global = append(f.global, rate)
	return nil
}
func (f *fakeStore) ListUserRates(_ context.Context, _ string) ([]UserRate, error) {
	return f.user, nil
}
func (f *fakeStore) UpsertUserRate(_ context.Context, rate UserRate) error {
	f.user = append(f.user, rate)
	return nil
}
func (f *fakeStore) DeleteUserRate(_ context.Context, _ string) error { return nil }

type fakeLogs struct {
	entries []usage.Entry
	total   float64
	budget  float64
}

func (f *fakeLogs) List(_ context.Context, _ string, limit, offset int) ([]usage.Entry, error) {
	return f.entries, nil
}
func (f *fakeLogs) Count(_ context.Context, _ string) (int64, error) {
	return int64(len(f.entries)), nil
}
func (f *fakeLogs) SumCost(_ context.Context, _ string) (float64, error) { return f.total, nil }
func (f *fakeLogs) UserBudget(_ context.Context, _ string) (float64, error) {
	return f.budget, nil
}

type fakeTally struct {
	counts map[string]int64
}

func (f *fakeTally) List(_ context.Context) (map[string]int64, error) { return f.counts, nil }

type markingCipher struct{}

func (markingCipher) Encrypt(plaintext string) (string, error) { return "enc:" + plaintext, nil }

const testToken = "admin-secret"

func testServer(store *fakeStore, logs *fakeLogs, tally *fakeTally) *httptest.Server {
	h := NewHandler(store, logs, tally, markingCipher{}, testToken)
	srv := httptest.NewServer(h.Routes())
	return srv
}

func doRequest(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestRequireToken(t *testing.T) {
	srv := testServer(newFakeStore(), &fakeLogs{}, &fakeTally{})
	defer srv.Close()

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"wrong token", "not-the-token", http.StatusUnauthorized},
		{"valid token", testToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodGet, srv.URL+"/providers", tt.token, "")
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestRequireToken_AdminDisabled(t *testing.T) {
	h := NewHandler(newFakeStore(), &fakeLogs{}, &fakeTally{}, markingCipher{}, "")
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp := doRequest(t, http.MethodGet, srv.URL+"/providers", "anything", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when no token is configured, got %d", resp.StatusCode)
	}
}

func TestCreateProvider_EncryptsAndRedactsKey(t *testing.T) {
	store := newFakeStore()
	srv := testServer(store, &fakeLogs{}, &fakeTally{})
	defer srv.Close()

	resp := doRequest(t, http.MethodPost, srv.URL+"/providers", testToken,
		`{"name":"openai-main","provider_type":"openai","api_key":"sk-live"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	if len(store.providers) != 1 {
		t.Fatalf("expected 1 stored provider, got %d", len(store.providers))
	}
	if store.providers[0].APIKeyEncrypted != "enc:sk-live" {
		t.Errorf("stored key was not encrypted: %q", store.providers[0].APIKeyEncrypted)
	}

	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	for _, field := range []string{"api_key", "api_key_encrypted"} {
		if _, present := body[field]; present {
			t.Errorf("response must not echo %s", field)
		}
	}
}

func TestCreateProvider_RequiresNameAndKind(t *testing.T) {
	srv := testServer(newFakeStore(), &fakeLogs{}, &fakeTally{})
	defer srv.Close()

	resp := doRequest(t, http.MethodPost, srv.URL+"/providers", testToken, `{"name":"x"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateKey_MintsPrefixedKey(t *testing.T) {
	store := newFakeStore()
	srv := testServer(store, &fakeLogs{}, &fakeTally{})
	defer srv.Close()

	resp := doRequest(t, http.MethodPost, srv.URL+"/keys", testToken,
		`{"user_id":"user-1","router_id":"rtr_1","name":"ci key"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var created Key
	json.NewDecoder(resp.Body).Decode(&created)
	if !strings.HasPrefix(created.ID, "gw_") {
		t.Errorf("expected gw_ prefix, got %q", created.ID)
	}
	if created.RouterID != "rtr_1" || !created.IsActive {
		t.Errorf("unexpected key: %+v", created)
	}
}

func TestListKeys_RedactsCredential(t *testing.T) {
	store := newFakeStore()
	store.keys = []Key{{ID: "gw_0123456789abcdef", UserID: "user-1", RouterID: "rtr_1", IsActive: true}}
	srv := testServer(store, &fakeLogs{}, &fakeTally{})
	defer srv.Close()

	resp := doRequest(t, http.MethodGet, srv.URL+"/keys", testToken, "")
	defer resp.Body.Close()

	var listed []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&listed)
	if len(listed) != 1 {
		t.Fatalf("expected 1 key, got %d", len(listed))
	}
	if listed[0]["key_prefix"] != "gw_01234567..." {
		t.Errorf("unexpected prefix: %v", listed[0]["key_prefix"])
	}
	if id, _ := listed[0]["id"].(string); id != "" {
		t.Errorf("full credential leaked in listing: %q", id)
	}
}

func TestReplaceRules_AssignsPriorities(t *testing.T) {
	store := newFakeStore()
	srv := testServer(store, &fakeLogs{}, &fakeTally{})
	defer srv.Close()

	resp := doRequest(t, http.MethodPut, srv.URL+"/routers/rtr_1/rules", testToken,
		`[{"condition":"primary","provider_id":"p1","allowed_models":"gpt-4o"},
		  {"condition":"on_failure","provider_id":"p2"}]`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	rules := store.rules["rtr_1"]
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].Priority != 0 || rules[1].Priority != 1 {
		t.Errorf("priorities must follow list order: %+v", rules)
	}
	if rules[0].Tier != types.TierPrimary || rules[1].Tier != types.TierFallback {
		t.Errorf("unexpected tiers: %+v", rules)
	}
}

func TestReplaceRules_RejectsUnknownTier(t *testing.T) {
	srv := testServer(newFakeStore(), &fakeLogs{}, &fakeTally{})
	defer srv.Close()

	resp := doRequest(t, http.MethodPut, srv.URL+"/routers/rtr_1/rules", testToken,
		`[{"condition":"weighted","provider_id":"p1"}]`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLogSummary(t *testing.T) {
	logs := &fakeLogs{entries: []usage.Entry{{ID: "a"}, {ID: "b"}}, total: 1.25, budget: 5}
	srv := testServer(newFakeStore(), logs, &fakeTally{})
	defer srv.Close()

	resp := doRequest(t, http.MethodGet, srv.URL+"/logs/summary?user_id=user-1", testToken, "")
	defer resp.Body.Close()

	var summary map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&summary)
	if summary["request_count"] != 2.0 {
		t.Errorf("unexpected count: %v", summary["request_count"])
	}
	if summary["total_cost_usd"] != 1.25 {
		t.Errorf("unexpected total: %v", summary["total_cost_usd"])
	}
	if summary["budget"] != 5.0 {
		t.Errorf("unexpected budget: %v", summary["budget"])
	}
	if summary["budget_remaining"] != 3.75 {
		t.Errorf("unexpected remaining: %v", summary["budget_remaining"])
	}
	if summary["budget_used_percentage"] != 25.0 {
		t.Errorf("unexpected used percentage: %v", summary["budget_used_percentage"])
	}
}

func TestLogSummary_ZeroBudget(t *testing.T) {
	logs := &fakeLogs{total: 2}
	srv := testServer(newFakeStore(), logs, &fakeTally{})
	defer srv.Close()

	resp := doRequest(t, http.MethodGet, srv.URL+"/logs/summary?user_id=user-1", testToken, "")
	defer resp.Body.Close()

	var summary map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&summary)
	if summary["budget_used_percentage"] != 0.0 {
		t.Errorf("zero budget must report zero percentage, got %v", summary["budget_used_percentage"])
	}
	if summary["budget_remaining"] != -2.0 {
		t.Errorf("unexpected remaining: %v", summary["budget_remaining"])
	}
}

func TestListGlobalRates_Search(t *testing.T) {
	store := newFakeStore()
	store.global = []GlobalRate{
		{ModelName: "gpt-4o", InputPerMilTokens: 5, OutputPerMilTokens: 10},
		{ModelName: "gpt-4o-mini", InputPerMilTokens: 1, OutputPerMilTokens: 2},
		{ModelName: "claude-sonnet", InputPerMilTokens: 3, OutputPerMilTokens: 15},
	}
	srv := testServer(store, &fakeLogs{}, &fakeTally{})
	defer srv.Close()

	resp := doRequest(t, http.MethodGet, srv.URL+"/models?search=gpt", testToken, "")
	defer resp.Body.Close()

	var rates []GlobalRate
	json.NewDecoder(resp.Body).Decode(&rates)
	if len(rates) != 2 {
		t.Fatalf("expected 2 matches, got %d: %v", len(rates), rates)
	}
	for _, r := range rates {
		if !strings.Contains(r.ModelName, "gpt") {
			t.Errorf("unexpected match: %s", r.ModelName)
		}
	}
}

func TestListLogs_RequiresUserID(t *testing.T) {
	srv := testServer(newFakeStore(), &fakeLogs{}, &fakeTally{})
	defer srv.Close()

	resp := doRequest(t, http.MethodGet, srv.URL+"/logs", testToken, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListMissingModels(t *testing.T) {
	tally := &fakeTally{counts: map[string]int64{"gpt-6": 4}}
	srv := testServer(newFakeStore(), &fakeLogs{}, tally)
	defer srv.Close()

	resp := doRequest(t, http.MethodGet, srv.URL+"/missing-models", testToken, "")
	defer resp.Body.Close()

	var counts map[string]int64
	json.NewDecoder(resp.Body).Decode(&counts)
	if counts["gpt-6"] != 4 {
		t.Errorf("unexpected tally: %v", counts)
	}
}
