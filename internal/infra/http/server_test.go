package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bizzshort/internal/config"
	"bizzshort/internal/domain"
	"bizzshort/internal/infra/crypto"
	"bizzshort/internal/infra/docmem"
	"bizzshort/internal/infra/kvmem"
	"bizzshort/internal/infra/metrics"
	"bizzshort/internal/infra/pagedom"
	"bizzshort/internal/infra/policyopa"
	"bizzshort/internal/infra/ratelimit"
	"bizzshort/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAdminKey  = "admin-secret"
	testEditorKey = "editor-secret"
)

type failingKV struct{}

func (failingKV) Get(context.Context, string) ([]byte, error) {
	return nil, domain.ErrStorageUnavailable
}

func (failingKV) Set(context.Context, string, []byte) error {
	return domain.ErrStorageUnavailable
}

type denyPolicy struct {
	code string
}

func (p denyPolicy) Evaluate(context.Context, domain.PolicyInput) (domain.PolicyEvaluation, error) {
	return domain.PolicyEvaluation{Result: domain.PolicyResult{Deny: []domain.PolicyDeny{{Code: p.code}}}}, nil
}

type brokenPolicy struct{}

func (brokenPolicy) Evaluate(context.Context, domain.PolicyInput) (domain.PolicyEvaluation, error) {
	return domain.PolicyEvaluation{}, errors.New("bundle exploded")
}

type testEnv struct {
	cfg        config.Config
	kv         domain.KVStore
	maxActions int
	policy     PolicyEvaluator
	limiter    domain.RateLimiter
	server     *Server
}

func newTestServer(t *testing.T, opts ...func(*testEnv)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := &testEnv{
		cfg: config.Config{
			AppEnv:       "test",
			AdminAPIKey:  testAdminKey,
			EditorAPIKey: testEditorKey,
		},
		kv:         kvmem.New(),
		maxActions: usecase.DefaultMaxInteractions,
	}
	for _, opt := range opts {
		opt(env)
	}
	m := metrics.New()
	profiles := usecase.NewProfileService(env.kv, nil, m)
	audit := usecase.NewAuditTrail(docmem.NewAuditLog(), nil)
	content := &usecase.ContentService{
		Docs:   docmem.New(),
		Hasher: crypto.NewBcryptHasher(4),
		Audit:  audit,
	}
	sessions := usecase.NewSessionRegistry(usecase.SessionRegistryConfig{
		Profiles: profiles,
		NewPage: func(adIDs []string) usecase.Page {
			return pagedom.New(adIDs...)
		},
		NewLimiter: func() domain.RateLimiter {
			return ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{})
		},
		MaxActions: env.maxActions,
		Window:     time.Minute,
		Metrics:    m,
	})
	t.Cleanup(sessions.Close)
	env.server = NewServerWithDeps(env.cfg, ServerDeps{
		Content:      content,
		Sessions:     sessions,
		Profiles:     profiles,
		Audit:        audit,
		Metrics:      m,
		AdminAPIKey:  env.cfg.AdminAPIKey,
		EditorAPIKey: env.cfg.EditorAPIKey,
		Policy:       env.policy,
		RateLimiter:  env.limiter,
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

var (
	asEditor = map[string]string{"X-Editor-Key": testEditorKey}
	asAdmin  = map[string]string{"X-Admin-Key": testAdminKey}
)

func article(title string) map[string]any {
	return map[string]any{
		"title":    title,
		"content":  "Body of " + title,
		"category": "markets",
		"language": "en",
	}
}

func bannerAd(title string) map[string]any {
	return map[string]any{
		"title":     title,
		"image_url": "https://cdn.example.com/" + title + ".png",
		"link":      "https://example.com",
		"placement": "banner",
		"active":    true,
		"budget":    "150.5",
	}
}

func TestHealthz(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "no-db", body["mode"])
}

func TestNoRoute(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodGet, "/v1/unknown/thing/here", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorResponse](t, w).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestServer(t)
	env.do(t, http.MethodGet, "/v1/articles", nil, nil)
	w := env.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bizzshort_http_requests_total")
}

func TestContentCRUD(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/v1/articles", article("Startup funding rises"), asEditor)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[documentResponse](t, w)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "articles", created.Collection)
	assert.Equal(t, "Startup funding rises", created.Fields["title"])

	w = env.do(t, http.MethodGet, "/v1/articles/"+created.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	env.do(t, http.MethodPost, "/v1/articles", article("Monsoon session opens"), asEditor)
	w = env.do(t, http.MethodGet, "/v1/articles?q=startup", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[listResponse](t, w)
	require.Len(t, list.Items, 1)
	assert.Equal(t, created.ID, list.Items[0].ID)

	w = env.do(t, http.MethodPut, "/v1/articles/"+created.ID, article("Startup funding doubles"), asEditor)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	replaced := decode[documentResponse](t, w)
	assert.Equal(t, "Startup funding doubles", replaced.Fields["title"])
	assert.Equal(t, created.CreatedAt, replaced.CreatedAt)

	w = env.do(t, http.MethodDelete, "/v1/articles/"+created.ID, nil, asEditor)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/v1/articles/"+created.ID, nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorResponse](t, w).Code)
}

func TestContentListPaging(t *testing.T) {
	env := newTestServer(t)
	for _, title := range []string{"one", "two", "three"} {
		w := env.do(t, http.MethodPost, "/v1/articles", article(title), asEditor)
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w := env.do(t, http.MethodGet, "/v1/articles?limit=2", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[listResponse](t, w)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	w = env.do(t, http.MethodGet, "/v1/articles?limit=2&cursor="+first.NextCursor, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[listResponse](t, w)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)

	w = env.do(t, http.MethodGet, "/v1/articles?cursor=bogus", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodGet, "/v1/articles?limit=-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContentWriteRequiresKey(t *testing.T) {
	env := newTestServer(t)
	tests := []struct {
		name    string
		headers map[string]string
	}{
		{name: "no key"},
		{name: "wrong editor key", headers: map[string]string{"X-Editor-Key": "nope"}},
		{name: "wrong admin key", headers: map[string]string{"X-Admin-Key": "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/v1/articles", article("x"), tt.headers)
			require.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "UNAUTHORIZED", decode[errorResponse](t, w).Code)
		})
	}
}

func TestContentValidation(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodPost, "/v1/articles", map[string]any{"title": "no body"}, asEditor)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[errorResponse](t, w)
	assert.Equal(t, "INVALID_ARGUMENT", resp.Code)
	assert.Equal(t, "content", resp.Details["field"])

	w = env.do(t, http.MethodGet, "/v1/articles/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsersCollectionIsAdminOnly(t *testing.T) {
	env := newTestServer(t)
	user := map[string]any{
		"email":    "Editor@BizzShort.com",
		"name":     "Desk Editor",
		"role":     "editor",
		"password": "correct horse",
	}

	w := env.do(t, http.MethodPost, "/v1/users", user, asEditor)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "MISSING_ROLE", decode[errorResponse](t, w).Code)

	w = env.do(t, http.MethodPost, "/v1/users", user, asAdmin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[documentResponse](t, w)
	assert.NotContains(t, created.Fields, "password")
	assert.Equal(t, "editor@bizzshort.com", created.Fields["email"])

	w = env.do(t, http.MethodGet, "/v1/users/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/v1/users/"+created.ID, nil, asAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, decode[documentResponse](t, w).Fields, "password")
}

func TestPolicyBundleDecides(t *testing.T) {
	t.Run("deny code surfaces", func(t *testing.T) {
		env := newTestServer(t, func(e *testEnv) { e.policy = denyPolicy{code: "EMBARGO"} })
		w := env.do(t, http.MethodPost, "/v1/articles", article("x"), asEditor)
		require.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "EMBARGO", decode[errorResponse](t, w).Code)
	})
	t.Run("evaluation failure", func(t *testing.T) {
		env := newTestServer(t, func(e *testEnv) { e.policy = brokenPolicy{} })
		w := env.do(t, http.MethodPost, "/v1/articles", article("x"), asEditor)
		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "POLICY_ERROR", decode[errorResponse](t, w).Code)
	})
	t.Run("builtin bundle allows editor", func(t *testing.T) {
		engine, err := policyopa.NewEngine(context.Background(), "")
		require.NoError(t, err)
		env := newTestServer(t, func(e *testEnv) { e.policy = engine })
		w := env.do(t, http.MethodPost, "/v1/articles", article("x"), asEditor)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})
}

func TestAuditEndpoint(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodPost, "/v1/articles", article("audited"), asEditor)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/v1/audit", nil, asEditor)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "MISSING_ROLE", decode[errorResponse](t, w).Code)

	w = env.do(t, http.MethodGet, "/v1/audit?collection=articles", nil, asAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Items []auditEventResponse `json:"items"`
	}](t, w)
	require.Len(t, body.Items, 1)
	assert.Equal(t, int64(1), body.Items[0].Seq)
	assert.Equal(t, "create", body.Items[0].Action)
	assert.NotEqual(t, "editor-key", body.Items[0].ActorHash)
}

func TestRequestRateLimit(t *testing.T) {
	env := newTestServer(t, func(e *testEnv) {
		e.cfg.RateLimitRequests = 1
		e.cfg.RateLimitWindowSeconds = 60
	})
	w := env.do(t, http.MethodGet, "/v1/articles", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("RateLimit-Limit"))

	w = env.do(t, http.MethodGet, "/v1/articles", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decode[errorResponse](t, w).Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

type erroringLimiter struct{}

func (erroringLimiter) Allow(context.Context, string, int, time.Duration) (domain.RateLimitDecision, error) {
	return domain.RateLimitDecision{}, errors.New("redis down")
}

func TestRequestRateLimitFailureModes(t *testing.T) {
	open := newTestServer(t, func(e *testEnv) {
		e.cfg.RateLimitRequests = 1
		e.limiter = erroringLimiter{}
	})
	assert.Equal(t, http.StatusOK, open.do(t, http.MethodGet, "/v1/articles", nil, nil).Code)

	closed := newTestServer(t, func(e *testEnv) {
		e.cfg.RateLimitRequests = 1
		e.cfg.RateLimitFailClosed = true
		e.limiter = erroringLimiter{}
	})
	w := closed.do(t, http.MethodGet, "/v1/articles", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMIT_UNAVAILABLE", decode[errorResponse](t, w).Code)
}

func startSession(t *testing.T, env *testEnv, body map[string]any) usecase.SessionSnapshot {
	t.Helper()
	w := env.do(t, http.MethodPost, "/v1/sessions", body, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[usecase.SessionSnapshot](t, w)
}

func adState(snap usecase.SessionSnapshot, id string) domain.AdState {
	for _, ad := range snap.Ads {
		if ad.ID == id {
			return ad.State
		}
	}
	return ""
}

func TestSessionHideAndUnhide(t *testing.T) {
	env := newTestServer(t)
	snap := startSession(t, env, map[string]any{"profile_id": "browser-1", "ad_ids": []string{"ad-top", "ad-side"}})
	require.Len(t, snap.Ads, 2)
	base := "/v1/sessions/" + snap.ID

	w := env.do(t, http.MethodPost, base+"/ads/ad-top/hide", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[outcomeResponse](t, w)
	assert.Equal(t, domain.OutcomeApplied, out.Outcome)
	assert.Equal(t, domain.AdHidden, out.State)

	w = env.do(t, http.MethodPost, base+"/ads/ad-top/hide", nil, nil)
	assert.Equal(t, domain.OutcomeNoop, decode[outcomeResponse](t, w).Outcome)

	w = env.do(t, http.MethodGet, "/v1/profiles/browser-1/hidden-ads", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	hidden := decode[struct {
		HiddenAdIDs []string `json:"hidden_ad_ids"`
	}](t, w)
	assert.Equal(t, []string{"ad-top"}, hidden.HiddenAdIDs)

	w = env.do(t, http.MethodGet, base, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	current := decode[usecase.SessionSnapshot](t, w)
	assert.Equal(t, domain.AdHidden, adState(current, "ad-top"))
	for _, ad := range current.Ads {
		if ad.ID == "ad-top" {
			assert.Equal(t, "none", ad.Style["display"])
			assert.Equal(t, "true", ad.Attributes["aria-hidden"])
		}
	}

	reload := startSession(t, env, map[string]any{"profile_id": "browser-1", "ad_ids": []string{"ad-top", "ad-side"}})
	assert.Equal(t, domain.AdHidden, adState(reload, "ad-top"))
	assert.Equal(t, domain.AdVisible, adState(reload, "ad-side"))

	w = env.do(t, http.MethodPost, base+"/ads/ad-top/unhide", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	out = decode[outcomeResponse](t, w)
	assert.Equal(t, domain.OutcomeApplied, out.Outcome)
	assert.Equal(t, domain.AdVisible, out.State)

	w = env.do(t, http.MethodPost, base+"/ads/ad-missing/hide", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.OutcomeMissingElement, decode[outcomeResponse](t, w).Outcome)
}

func TestSessionHideRateLimited(t *testing.T) {
	env := newTestServer(t, func(e *testEnv) { e.maxActions = 2 })
	snap := startSession(t, env, map[string]any{"profile_id": "browser-2", "ad_ids": []string{"a", "b", "c"}})
	base := "/v1/sessions/" + snap.ID

	for _, id := range []string{"a", "b"} {
		w := env.do(t, http.MethodPost, base+"/ads/"+id+"/hide", nil, map[string]string{"X-Actor-Key": "reader-9"})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := env.do(t, http.MethodPost, base+"/ads/c/hide", nil, map[string]string{"X-Actor-Key": "reader-9"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	resp := decode[errorResponse](t, w)
	assert.Equal(t, "RATE_LIMITED", resp.Code)
	assert.Equal(t, usecase.RateLimitNotice, resp.Message)

	w = env.do(t, http.MethodPost, base+"/ads/c/hide", nil, map[string]string{"X-Actor-Key": "reader-10"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, base+"/ads/a/unhide", nil, map[string]string{"X-Actor-Key": "reader-9"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionRemoveAndEnd(t *testing.T) {
	env := newTestServer(t)
	snap := startSession(t, env, map[string]any{"profile_id": "browser-3", "ad_ids": []string{"a"}})
	base := "/v1/sessions/" + snap.ID

	w := env.do(t, http.MethodDelete, base+"/ads/a", nil, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodDelete, base+"/ads/a", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "MISSING_ELEMENT", decode[errorResponse](t, w).Code)

	w = env.do(t, http.MethodDelete, base, nil, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, base, nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode[errorResponse](t, w).Code)

	w = env.do(t, http.MethodGet, "/v1/sessions/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEndSessionIsRateLimited(t *testing.T) {
	env := newTestServer(t, func(e *testEnv) {
		e.cfg.RateLimitRequests = 1
		e.cfg.RateLimitWindowSeconds = 60
	})
	snap := startSession(t, env, map[string]any{"profile_id": "browser-9", "ad_ids": []string{"a"}})

	w := env.do(t, http.MethodDelete, "/v1/sessions/"+snap.ID, nil, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decode[errorResponse](t, w).Code)
}

func TestSessionRequiresProfile(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodPost, "/v1/sessions", map[string]any{"ad_ids": []string{"a"}}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "profile_id", decode[errorResponse](t, w).Details["field"])
}

func TestSessionPicksActiveAds(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodPost, "/v1/advertisements", bannerAd("spring-sale"), asEditor)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ad := decode[documentResponse](t, w)
	assert.Equal(t, "150.50", ad.Fields["budget"])

	inactive := bannerAd("retired")
	inactive["active"] = false
	env.do(t, http.MethodPost, "/v1/advertisements", inactive, asEditor)

	w = env.do(t, http.MethodGet, "/v1/advertisements/active?placement=banner", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	active := decode[listResponse](t, w)
	require.Len(t, active.Items, 1)
	assert.Equal(t, ad.ID, active.Items[0].ID)

	snap := startSession(t, env, map[string]any{"profile_id": "browser-4"})
	require.Len(t, snap.Ads, 1)
	assert.Equal(t, ad.ID, snap.Ads[0].ID)

	prefs := map[string]any{
		"showBannerAds":       false,
		"showSidebarAds":      true,
		"showPersonalizedAds": true,
		"frequency":           "normal",
	}
	w = env.do(t, http.MethodPut, "/v1/profiles/browser-4/ad-preferences", prefs, nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap = startSession(t, env, map[string]any{"profile_id": "browser-4"})
	assert.Empty(t, snap.Ads)
}

func TestPreferencesEndpoints(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodGet, "/v1/profiles/browser-5/ad-preferences", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.DefaultAdPreferences(), decode[preferencesResponse](t, w).Preferences)

	w = env.do(t, http.MethodPut, "/v1/profiles/browser-5/ad-preferences", map[string]any{"showBannerAds": false}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "showSidebarAds", decode[errorResponse](t, w).Details["field"])

	full := map[string]any{
		"showBannerAds":       false,
		"showSidebarAds":      true,
		"showPersonalizedAds": false,
		"frequency":           "low",
	}
	w = env.do(t, http.MethodPut, "/v1/profiles/browser-5/ad-preferences", full, nil)
	require.Equal(t, http.StatusOK, w.Code)
	saved := decode[preferencesResponse](t, w)
	require.NotNil(t, saved.Persisted)
	assert.True(t, *saved.Persisted)

	w = env.do(t, http.MethodGet, "/v1/profiles/browser-5/ad-preferences", nil, nil)
	want := domain.AdPreferences{ShowSidebarAds: true, Frequency: "low"}
	assert.Equal(t, want, decode[preferencesResponse](t, w).Preferences)
}

func TestPreferencesStorageFailure(t *testing.T) {
	env := newTestServer(t, func(e *testEnv) { e.kv = failingKV{} })

	w := env.do(t, http.MethodGet, "/v1/profiles/browser-6/ad-preferences", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.DefaultAdPreferences(), decode[preferencesResponse](t, w).Preferences)

	full := map[string]any{
		"showBannerAds":       true,
		"showSidebarAds":      false,
		"showPersonalizedAds": true,
		"frequency":           "high",
	}
	w = env.do(t, http.MethodPut, "/v1/profiles/browser-6/ad-preferences", full, nil)
	require.Equal(t, http.StatusOK, w.Code)
	saved := decode[preferencesResponse](t, w)
	require.NotNil(t, saved.Persisted)
	assert.False(t, *saved.Persisted)

	snap := startSession(t, env, map[string]any{"profile_id": "browser-6", "ad_ids": []string{"a"}})
	w = env.do(t, http.MethodPost, "/v1/sessions/"+snap.ID+"/ads/a/hide", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.OutcomeApplied, decode[outcomeResponse](t, w).Outcome)
}
