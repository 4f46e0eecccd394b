package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyforge/auth"
	"storyforge/bootstrap"
	"storyforge/config"
	"storyforge/db"
	"storyforge/generator"
	"storyforge/repository"
)

type fakeGenerator struct {
	text    string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func (f *fakeGenerator) Model() string { return "fake-model" }

func newTestServer(t *testing.T, gen generator.Generator) http.Handler {
	t.Helper()
	cfg := config.NewForTesting()
	manager := db.NewManager(db.Options{Database: cfg.MongoDBDatabase}, zerolog.Nop(),
		db.WithFallbackSeed(bootstrap.FallbackSeed(cfg.Collections())))
	require.NoError(t, manager.Initialize(context.Background()))
	t.Cleanup(func() { _ = manager.Close(context.Background()) })

	repo := repository.New(manager, cfg.Collections(), zerolog.Nop())
	h := New(repo, gen, manager, zerolog.Nop())
	return NewRouter(h, auth.NewDevVerifier(), []string{"*"}, zerolog.Nop())
}

func do(t *testing.T, h http.Handler, method, path, user string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	r := httptest.NewRequest(method, path, reader)
	if user != "" {
		r.Header.Set("Authorization", "Bearer "+user)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func items(t *testing.T, body map[string]interface{}) []map[string]interface{} {
	t.Helper()
	raw, ok := body["items"].([]interface{})
	require.True(t, ok, "items missing from %v", body)
	out := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		out = append(out, item.(map[string]interface{}))
	}
	return out
}

func TestResourceLifecycle(t *testing.T) {
	h := newTestServer(t, nil)

	w, created := do(t, h, http.MethodPost, "/api/characters", "alice", map[string]interface{}{
		"name":    "Luna",
		"species": "owl",
		"ownerId": "bob",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := created["id"].(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, "alice", created["ownerId"])
	assert.Equal(t, false, created["isSystem"])
	assert.Equal(t, "Luna", created["name"])

	w, got := do(t, h, http.MethodGet, "/api/characters/"+id, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "owl", got["species"])

	w, _ = do(t, h, http.MethodGet, "/api/characters/"+id, "bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, h, http.MethodPut, "/api/characters/"+id, "bob", map[string]interface{}{"species": "crow"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, updated := do(t, h, http.MethodPut, "/api/characters/"+id, "alice", map[string]interface{}{"species": "snowy owl"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "snowy owl", updated["species"])
	assert.Equal(t, "Luna", updated["name"])

	w, _ = do(t, h, http.MethodDelete, "/api/characters/"+id, "bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, h, http.MethodDelete, "/api/characters/"+id, "alice", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = do(t, h, http.MethodDelete, "/api/characters/"+id, "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSystemDefaultsAreVisibleButReadOnly(t *testing.T) {
	h := newTestServer(t, nil)

	w, body := do(t, h, http.MethodGet, "/api/themes?sort=name", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	themes := items(t, body)
	require.Len(t, themes, 3)
	assert.Equal(t, "Adventure", themes[0]["name"])
	for _, th := range themes {
		assert.Equal(t, true, th["isSystem"])
	}

	w, _ = do(t, h, http.MethodPut, "/api/themes/theme-adventure", "alice", map[string]interface{}{"name": "Hijacked"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, h, http.MethodDelete, "/api/themes/theme-adventure", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, got := do(t, h, http.MethodGet, "/api/themes/theme-adventure", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Adventure", got["name"])
}

func TestListFiltersAndPaging(t *testing.T) {
	h := newTestServer(t, nil)
	for _, c := range []map[string]interface{}{
		{"name": "Ash", "species": "fox"},
		{"name": "Bramble", "species": "fox"},
		{"name": "Cinder", "species": "cat"},
	} {
		w, _ := do(t, h, http.MethodPost, "/api/characters", "alice", c)
		require.Equal(t, http.StatusCreated, w.Code)
	}
	_, _ = do(t, h, http.MethodPost, "/api/characters", "bob", map[string]interface{}{"name": "Dusk", "species": "fox"})

	w, body := do(t, h, http.MethodGet, "/api/characters?species=fox&sort=-name", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	foxes := items(t, body)
	require.Len(t, foxes, 2)
	assert.Equal(t, "Bramble", foxes[0]["name"])
	assert.Equal(t, "Ash", foxes[1]["name"])

	w, body = do(t, h, http.MethodGet, "/api/characters?species=fox&sort=name&skip=1&limit=1", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := items(t, body)
	require.Len(t, page, 1)
	assert.Equal(t, "Bramble", page[0]["name"])

	w, body = do(t, h, http.MethodGet, "/api/characters/count?species=fox", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["count"])

	// own three plus the two seeded defaults
	w, body = do(t, h, http.MethodGet, "/api/characters/count", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 5, body["count"])

	w, body = do(t, h, http.MethodGet, "/api/characters?traits=patient", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	owls := items(t, body)
	require.Len(t, owls, 1)
	assert.Equal(t, "Oberon", owls[0]["name"])
}

func TestBadRequests(t *testing.T) {
	h := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   interface{}
		want   int
	}{
		{name: "no identity", method: http.MethodGet, path: "/api/themes", want: http.StatusUnauthorized},
		{name: "reserved identity", method: http.MethodGet, path: "/api/themes", user: "system", want: http.StatusUnauthorized},
		{name: "unknown kind", method: http.MethodGet, path: "/api/dragons", user: "alice", want: http.StatusNotFound},
		{name: "malformed id", method: http.MethodGet, path: "/api/themes/not!valid", user: "alice", want: http.StatusBadRequest},
		{name: "operator filter", method: http.MethodGet, path: "/api/themes?$where=1", user: "alice", want: http.StatusBadRequest},
		{name: "dotted filter", method: http.MethodGet, path: "/api/themes?a.b=1", user: "alice", want: http.StatusBadRequest},
		{name: "id filter", method: http.MethodGet, path: "/api/themes?_id=theme-adventure", user: "alice", want: http.StatusBadRequest},
		{name: "id filter on count", method: http.MethodGet, path: "/api/themes/count?_id=theme-adventure", user: "alice", want: http.StatusBadRequest},
		{name: "operator filter on count", method: http.MethodGet, path: "/api/themes/count?$ne=1", user: "alice", want: http.StatusBadRequest},
		{name: "bad limit", method: http.MethodGet, path: "/api/themes?limit=-3", user: "alice", want: http.StatusBadRequest},
		{name: "bad sort", method: http.MethodGet, path: "/api/themes?sort=$name", user: "alice", want: http.StatusBadRequest},
		{name: "array body", method: http.MethodPost, path: "/api/themes", user: "alice", body: []string{"x"}, want: http.StatusBadRequest},
		{name: "operator key", method: http.MethodPost, path: "/api/themes", user: "alice", body: map[string]interface{}{"$set": 1}, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := do(t, h, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestStats(t *testing.T) {
	h := newTestServer(t, nil)
	w, _ := do(t, h, http.MethodPost, "/api/locations", "alice", map[string]interface{}{"name": "Attic"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := do(t, h, http.MethodGet, "/api/stats", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := body["stats"].(map[string]interface{})
	assert.EqualValues(t, 2, stats["characters"])
	assert.EqualValues(t, 3, stats["locations"])
	assert.EqualValues(t, 3, stats["themes"])
	assert.EqualValues(t, 0, stats["stories"])

	w, body = do(t, h, http.MethodGet, "/api/stats", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["stats"].(map[string]interface{})["locations"])
}

func TestGenerateStory(t *testing.T) {
	gen := &fakeGenerator{text: "Title: The Owl and the Harbor\n\nOnce upon a time."}
	h := newTestServer(t, gen)

	w, created := do(t, h, http.MethodPost, "/api/characters", "alice", map[string]interface{}{"name": "Pip", "species": "mouse"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, story := do(t, h, http.MethodPost, "/api/stories/generate", "alice", GenerateRequest{
		CharacterIDs: []string{"char-wise-owl", created["id"].(string)},
		LocationIDs:  []string{"loc-harbor-town"},
		ParameterID:  "param-bedtime",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "The Owl and the Harbor", story["title"])
	assert.Equal(t, "Once upon a time.", story["content"])
	assert.Equal(t, "fake-model", story["model"])
	assert.Equal(t, "alice", story["ownerId"])

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Oberon")
	assert.Contains(t, gen.prompts[0], "Pip")
	assert.Contains(t, gen.prompts[0], "Saltmere Harbor")
	assert.Contains(t, gen.prompts[0], "Bedtime story")

	w, body := do(t, h, http.MethodGet, "/api/stories", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, items(t, body), 1)

	w, body = do(t, h, http.MethodGet, "/api/stories", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, items(t, body))
}

func TestGenerateStoryDraftWithExplicitTitle(t *testing.T) {
	gen := &fakeGenerator{text: "A story with no title line."}
	h := newTestServer(t, gen)

	w, story := do(t, h, http.MethodPost, "/api/stories/generate", "alice", GenerateRequest{
		Title:        "My Draft",
		CharacterIDs: []string{"char-brave-knight"},
		Draft:        true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "My Draft", story["title"])

	_, body := do(t, h, http.MethodGet, "/api/storyDrafts", "alice", nil)
	assert.Len(t, items(t, body), 1)
	_, body = do(t, h, http.MethodGet, "/api/stories", "alice", nil)
	assert.Empty(t, items(t, body))
}

func TestGenerateStoryRespectsOwnership(t *testing.T) {
	gen := &fakeGenerator{text: "Title: x\ny"}
	h := newTestServer(t, gen)

	w, bobs := do(t, h, http.MethodPost, "/api/characters", "bob", map[string]interface{}{"name": "Secret"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = do(t, h, http.MethodPost, "/api/stories/generate", "alice", GenerateRequest{
		CharacterIDs: []string{bobs["id"].(string)},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, gen.prompts)

	w, _ = do(t, h, http.MethodPost, "/api/stories/generate", "alice", GenerateRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateStoryGeneratorFailures(t *testing.T) {
	req := GenerateRequest{CharacterIDs: []string{"char-wise-owl"}}

	h := newTestServer(t, nil)
	w, _ := do(t, h, http.MethodPost, "/api/stories/generate", "alice", req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	h = newTestServer(t, &fakeGenerator{err: errors.New("quota exceeded")})
	w, body := do(t, h, http.MethodPost, "/api/stories/generate", "alice", req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, body["message"], "quota")
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil)
	w, body := do(t, h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "fallback", body["storage"])
}

func TestPreflightBypassesAuth(t *testing.T) {
	h := newTestServer(t, nil)
	r := httptest.NewRequest(http.MethodOptions, "/api/themes", nil)
	r.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{repository.ErrNotFoundOrAccessDenied, http.StatusNotFound},
		{repository.ErrMissingOwnerContext, http.StatusBadRequest},
		{repository.ErrInvalidIdentifier, http.StatusBadRequest},
		{repository.ErrStorageUnavailable, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, msg := statusFor(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
		if got == http.StatusInternalServerError {
			assert.False(t, strings.Contains(msg, "boom"))
		}
	}
}
