package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemolab/mnemo/internal/memory"
	sqlitelog "github.com/mnemolab/mnemo/internal/metadatalog/sqlite"
	"github.com/mnemolab/mnemo/internal/services"
	chromemidx "github.com/mnemolab/mnemo/internal/vectorindex/chromem"
)

type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0.5, 0.5, 0.5}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}

type fakeExtractor struct {
	facts         []string
	deletionFacts []string
}

func (f *fakeExtractor) ExtractFacts(context.Context, string) ([]string, error) {
	return f.facts, nil
}

func (f *fakeExtractor) ExtractDeletionFacts(context.Context, string) ([]string, error) {
	return f.deletionFacts, nil
}

func newTestServer(t *testing.T, emb *fakeEmbedder, ext *fakeExtractor) *httptest.Server {
	t.Helper()
	log, err := sqlitelog.New(filepath.Join(t.TempDir(), "mnemo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	idx, err := chromemidx.New("", "test_memories")
	require.NoError(t, err)

	coord := memory.New(log, idx, zerolog.Nop())
	svc := services.NewMemoryService(coord, emb, ext, 5, zerolog.Nop())

	srv := httptest.NewServer(NewRouter(svc))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAddSearchDeleteFlow(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"User uses Shram":  {1, 0, 0},
		"User uses Magnet": {0, 1, 0},
	}}
	ext := &fakeExtractor{
		facts:         []string{"User uses Shram", "User uses Magnet"},
		deletionFacts: []string{"User uses Magnet"},
	}
	srv := newTestServer(t, emb, ext)
	base := srv.URL + "/api/users/user-1/memories"

	// Add from message.
	resp := postJSON(t, base, map[string]string{"message": "I use Shram and Magnet"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Len(t, body["facts"], 2)
	assert.Len(t, body["memories"], 2)

	// Search.
	resp = postJSON(t, base+"/search", map[string]interface{}{"query": "User uses Shram", "topN": 5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, float64(2), body["count"])

	// Delete from message.
	req, err := http.NewRequest(http.MethodDelete, base, bytes.NewReader([]byte(`{"message":"I don't use Magnet anymore"}`)))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, float64(1), body["deletedCount"])

	// List shows the survivor only.
	resp, err = http.Get(base)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, float64(1), body["count"])
}

func TestAddMemoriesValidation(t *testing.T) {
	srv := newTestServer(t, &fakeEmbedder{}, &fakeExtractor{})
	base := srv.URL + "/api/users/user-1/memories"

	resp := postJSON(t, base, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err := http.Post(base, "application/json", bytes.NewReader([]byte("not json")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestSearchEmptyResult(t *testing.T) {
	srv := newTestServer(t, &fakeEmbedder{}, &fakeExtractor{})

	resp := postJSON(t, srv.URL+"/api/users/nobody/memories/search", map[string]string{"query": "anything"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, float64(0), body["count"])
	assert.NotNil(t, body["results"])
}

func TestGetMemoryScoping(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"User drinks tea": {1, 0, 0}}}
	ext := &fakeExtractor{facts: []string{"User drinks tea"}}
	srv := newTestServer(t, emb, ext)

	resp := postJSON(t, srv.URL+"/api/users/user-a/memories", map[string]string{"message": "I drink tea"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	memories := body["memories"].([]interface{})
	id := memories[0].(map[string]interface{})["id"].(string)

	resp, err := http.Get(srv.URL + "/api/users/user-a/memories/" + id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Another user's scope misses.
	resp, err = http.Get(srv.URL + "/api/users/user-b/memories/" + id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestSummaryEndpoint(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"User drinks tea": {1, 0, 0}}}
	ext := &fakeExtractor{facts: []string{"User drinks tea"}}
	srv := newTestServer(t, emb, ext)

	resp := postJSON(t, srv.URL+"/api/users/user-1/memories", map[string]string{"message": "I drink tea"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/users/user-1/memories/summary")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["total"])
	assert.Equal(t, float64(1), stats["active"])
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeEmbedder{}, &fakeExtractor{})

	BindServiceHealth(func() bool { return true })
	t.Cleanup(func() { BindServiceHealth(func() bool { return healthyFlag.Load() == 1 }) })

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
}
