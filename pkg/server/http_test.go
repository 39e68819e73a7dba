package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bastiangx/pantry/pkg/metrics"
	"github.com/bastiangx/pantry/pkg/suggest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHTTP(t *testing.T) *httptest.Server {
	t.Helper()
	m := metrics.New()
	completer := suggest.NewCompleter(scenarioIndex(), suggest.DefaultOptions())
	completer.SetRecorder(m)
	srv := httptest.NewServer(NewHTTPServer("", completer, nil, m).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestHTTPSuggest(t *testing.T) {
	srv := newTestHTTP(t)

	var resp CompletionResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/suggest?q=be&limit=1", &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, []CompletionSuggestion{{Word: "bean", Rank: 1, Recipes: 1}}, resp.Suggestions)

	resp = CompletionResponse{}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/suggest?q=xy", &resp))
	assert.NotNil(t, resp.Suggestions)
	assert.Empty(t, resp.Suggestions)

	var e CompletionError
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/suggest", &e))
	assert.Equal(t, "missing q parameter", e.Error)

	e = CompletionError{}
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/suggest?q=be&limit=many", &e))
	assert.Equal(t, "invalid limit", e.Error)
}

func TestHTTPValidAndStats(t *testing.T) {
	srv := newTestHTTP(t)

	var v ValidateResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/valid?token=Garlic", &v))
	assert.True(t, v.Valid)
	assert.Equal(t, []int64{2}, v.IDs)

	var st StatsResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/stats", &st))
	assert.Equal(t, 4, st.Tokens)
	assert.Equal(t, 1, st.Queries)

	var health map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &health))
	assert.Equal(t, "ok", health["status"])
}

func TestHTTPMetrics(t *testing.T) {
	srv := newTestHTTP(t)

	var resp CompletionResponse
	getJSON(t, srv.URL+"/suggest?q=be", &resp)

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pantry_queries_total{kind="suggest",outcome="hit"} 1`)
}

func TestHTTPMethodNotAllowed(t *testing.T) {
	srv := newTestHTTP(t)
	res, err := http.Post(srv.URL+"/suggest?q=be", "text/plain", nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}
