package snipeit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Search string
	Auth   string
	Body   map[string]any
}

// fakeSnipeIT serves canned hardware search results keyed by search term.
type fakeSnipeIT struct {
	mu       sync.Mutex
	requests []recordedRequest

	hardware     map[string]Hardware
	createStatus int
	updateStatus int
	createBody   string
	searchStatus int
}

func newFakeSnipeIT() *fakeSnipeIT {
	return &fakeSnipeIT{
		hardware:     make(map[string]Hardware),
		createStatus: http.StatusOK,
		updateStatus: http.StatusOK,
		searchStatus: http.StatusOK,
		createBody:   `{"status":"success","payload":{"id":77}}`,
	}
}

func (f *fakeSnipeIT) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Search: r.URL.Query().Get("search"),
		Auth:   r.Header.Get("Authorization"),
	}
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &rec.Body)
		}
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/hardware":
		w.WriteHeader(f.searchStatus)
		if hw, ok := f.hardware[rec.Search]; ok {
			json.NewEncoder(w).Encode(map[string]any{"total": 1, "rows": []Hardware{hw}})
			return
		}
		w.Write([]byte(`{"total":0,"rows":[]}`))
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/hardware":
		w.WriteHeader(f.createStatus)
		w.Write([]byte(f.createBody))
	case r.Method == http.MethodPatch:
		w.WriteHeader(f.updateStatus)
		w.Write([]byte(`{"status":"success","payload":{"id":1}}`))
	case r.URL.Path == "/api/v1/models":
		w.Write([]byte(`{"total":2,"rows":[{"id":5,"name":"Generic Workstation"},{"id":9,"name":"Laptop"}]}`))
	case r.URL.Path == "/api/v1/categories":
		w.Write([]byte(`{"total":1,"rows":[{"id":12,"name":"Computer"}]}`))
	case r.URL.Path == "/api/v1/statuslabels":
		w.WriteHeader(http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeSnipeIT) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newTestProjector(t *testing.T, fake *fakeSnipeIT) *Projector {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/", "test-token", 5*time.Second)
	require.NoError(t, err)
	return NewProjector(c, Defaults{StatusID: 1, ModelID: 1, CategoryID: 1})
}

func TestNewClient_RequiresConfig(t *testing.T) {
	_, err := NewClient("", "token", 0)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = NewClient("https://snipe.example", "", 0)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestProject_CreatesWhenNotFound(t *testing.T) {
	fake := newFakeSnipeIT()
	p := newTestProjector(t, fake)

	ok := p.Project(context.Background(), "g1", decode(t, sampleInventory))
	require.True(t, ok)

	reqs := fake.recorded()
	require.Len(t, reqs, 3)
	assert.Equal(t, "ABC123456", reqs[0].Search)
	assert.Equal(t, "TEST-PC", reqs[1].Search)
	assert.Equal(t, "Bearer test-token", reqs[0].Auth)

	create := reqs[2]
	assert.Equal(t, http.MethodPost, create.Method)
	assert.Equal(t, "TEST-PC", create.Body["name"])
	assert.Regexp(t, `^TEST-[0-9A-F]{4}$`, create.Body["asset_tag"])
}

func TestProject_UpdatesExistingBySerial(t *testing.T) {
	fake := newFakeSnipeIT()
	fake.hardware["ABC123456"] = Hardware{ID: 123, Name: "TEST-PC", Serial: "ABC123456", AssetTag: "TEST-1234"}
	p := newTestProjector(t, fake)

	ok := p.Project(context.Background(), "g1", decode(t, sampleInventory))
	require.True(t, ok)

	reqs := fake.recorded()
	require.Len(t, reqs, 2)
	update := reqs[1]
	assert.Equal(t, http.MethodPatch, update.Method)
	assert.Equal(t, "/api/v1/hardware/123", update.Path)
	_, hasTag := update.Body["asset_tag"]
	assert.False(t, hasTag, "update must not overwrite the existing asset tag")
	cf, _ := update.Body["custom_fields"].(map[string]any)
	assert.Equal(t, "500.0 GB (SSD)", cf["disk"])
}

func TestProject_FallsBackToHostname(t *testing.T) {
	fake := newFakeSnipeIT()
	fake.hardware["TEST-PC"] = Hardware{ID: 55, Name: "TEST-PC"}
	p := newTestProjector(t, fake)

	require.True(t, p.Project(context.Background(), "g1", decode(t, sampleInventory)))

	reqs := fake.recorded()
	require.Len(t, reqs, 3)
	assert.Equal(t, "/api/v1/hardware/55", reqs[2].Path)
}

func TestProject_NoIdentityFieldsSkipsSearch(t *testing.T) {
	fake := newFakeSnipeIT()
	p := newTestProjector(t, fake)

	require.True(t, p.Project(context.Background(), "g1", map[string]any{}))
	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
}

func TestProject_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fakeSnipeIT)
	}{
		{"search error", func(f *fakeSnipeIT) { f.searchStatus = http.StatusUnauthorized }},
		{"create http error", func(f *fakeSnipeIT) { f.createStatus = http.StatusUnprocessableEntity }},
		{"create status error", func(f *fakeSnipeIT) {
			f.createBody = `{"status":"error","messages":{"asset_tag":["taken"]}}`
		}},
		{"create malformed", func(f *fakeSnipeIT) { f.createBody = `not json` }},
		{"update error", func(f *fakeSnipeIT) {
			f.hardware["ABC123456"] = Hardware{ID: 1}
			f.updateStatus = http.StatusBadGateway
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeSnipeIT()
			tt.setup(fake)
			p := newTestProjector(t, fake)
			assert.False(t, p.Project(context.Background(), "g1", decode(t, sampleInventory)))
		})
	}
}

func TestProject_UnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, "token", time.Second)
	require.NoError(t, err)
	p := NewProjector(c, Defaults{})
	assert.False(t, p.Project(context.Background(), "g1", decode(t, sampleInventory)))
}

func TestProject_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, "token", 0)
	require.NoError(t, err)
	p := NewProjector(c, Defaults{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.False(t, p.Project(ctx, "g1", decode(t, sampleInventory)))
}

func TestResolveDefaults(t *testing.T) {
	fake := newFakeSnipeIT()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, "token", time.Second)
	require.NoError(t, err)

	d := ResolveDefaults(context.Background(), c, Defaults{StatusID: 1, ModelID: 1, CategoryID: 1},
		"laptop", "Missing Category", "Ready to Deploy")

	assert.Equal(t, 9, d.ModelID)
	assert.Equal(t, 1, d.CategoryID, "unknown name keeps fallback")
	assert.Equal(t, 1, d.StatusID, "lookup failure keeps fallback")
}
