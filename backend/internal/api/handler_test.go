package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fraudgraph/backend/internal/analysis"
	"fraudgraph/backend/internal/constants"
	"fraudgraph/backend/internal/graph"
	"fraudgraph/backend/internal/insights"
	"fraudgraph/backend/internal/observability"
	"fraudgraph/backend/pkg/config"
	apperrors "fraudgraph/backend/pkg/errors"
)

type fakeSource struct {
	graph   *graph.Graph
	loadErr error
	saveErr error
	query   graph.GraphQuery
	saved   map[int]int
}

func (f *fakeSource) Load(_ context.Context, q graph.GraphQuery) (*graph.Graph, error) {
	f.query = q
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return f.graph, f.loadErr
}

func (f *fakeSource) SaveCommunities(_ context.Context, _ graph.GraphQuery, communities map[int]int) error {
	f.saved = communities
	return f.saveErr
}

type fakeNarrator struct {
	text  string
	err   error
	brief insights.Brief
}

func (f *fakeNarrator) Summarize(_ context.Context, b insights.Brief) (string, error) {
	f.brief = b
	return f.text, f.err
}

func newTestRouter(t *testing.T, deps Deps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if deps.Analyzer == nil {
		deps.Analyzer = analysis.NewAnalyzer(nil)
	}
	if deps.MaxGraphNodes == 0 {
		deps.MaxGraphNodes = 500
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewCollector("test")
	}
	return NewRouter(NewHandler(deps), deps.Metrics, zap.NewNop())
}

func send(t *testing.T, router *gin.Engine, target, contentType string, body io.Reader) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest("POST", target, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w, response
}

func do(t *testing.T, router *gin.Engine, method, target string, body []byte) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(method, target, bytes.NewBuffer(body))
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	}
	return w, response
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, Deps{Source: &fakeSource{}})

	w, response := do(t, router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, true, response["neo4j"])
	assert.Equal(t, false, response["llm"])
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, Deps{})
	do(t, router, "GET", "/api/analyze-fraud?nodes=20&rings=2", nil)

	w, _ := do(t, router, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="GET",route="/api/analyze-fraud",status="200"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	w, _ := do(t, newTestRouter(t, Deps{}), "OPTIONS", "/api/analyze", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAnalyzeFraudEndpoint(t *testing.T) {
	router := newTestRouter(t, Deps{})

	w, response := do(t, router, "GET", "/api/analyze-fraud?nodes=30&rings=3&seed=5", nil)
	require.Equal(t, http.StatusOK, w.Code)

	metrics := response["metrics"].(map[string]interface{})
	assert.Equal(t, 30.0, metrics["total_nodes"])
	assert.Len(t, response["suspicious_links"], 15)
	assert.Len(t, response["nodes"], 30)
	assert.NotContains(t, response, "insights")

	_, again := do(t, router, "GET", "/api/analyze-fraud?nodes=30&rings=3&seed=5", nil)
	assert.Equal(t, response["suspicious_links"], again["suspicious_links"])
}

func TestAnalyzeFraudEndpoint_Defaults(t *testing.T) {
	w, response := do(t, newTestRouter(t, Deps{}), "GET", "/api/analyze-fraud?top_k=4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50.0, response["metrics"].(map[string]interface{})["total_nodes"])
	assert.Len(t, response["suspicious_links"], 4)

	rings := make(map[float64]bool)
	for _, n := range response["nodes"].([]interface{}) {
		if label := n.(map[string]interface{})["label"].(float64); label >= 0 {
			rings[label] = true
		}
	}
	assert.Len(t, rings, constants.DefaultFraudRings)
	assert.Equal(t, 3, constants.DefaultFraudRings)
}

func TestAnalyzeFraudEndpoint_BadRequests(t *testing.T) {
	router := newTestRouter(t, Deps{MaxGraphNodes: 100})

	tests := []struct {
		name   string
		target string
	}{
		{"not a number", "/api/analyze-fraud?nodes=abc"},
		{"zero rings", "/api/analyze-fraud?rings=0"},
		{"too large", "/api/analyze-fraud?nodes=101"},
		{"negative top k", "/api/analyze-fraud?top_k=-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := do(t, router, "GET", tt.target, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, response["error"])
		})
	}
}

func TestAnalyzeSocialEndpoint(t *testing.T) {
	narrator := &fakeNarrator{text: "Influencers dominate."}
	router := newTestRouter(t, Deps{Narrator: narrator})

	w, response := do(t, router, "GET", "/api/analyze-social?nodes=40&influencers=4&insights=true", nil)
	require.Equal(t, http.StatusOK, w.Code)

	metrics := response["metrics"].(map[string]interface{})
	assert.Equal(t, 4.0, metrics["num_influencers"])
	assert.Contains(t, metrics, "avg_influence")
	assert.Len(t, response["potential_connections"], 20)
	assert.Equal(t, "Influencers dominate.", response["insights"])
	assert.Equal(t, "social", narrator.brief.Flavor)

	w, _ = do(t, router, "GET", "/api/analyze-social?nodes=3&influencers=4", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInsightsFailureIsOmitted(t *testing.T) {
	narrator := &fakeNarrator{err: apperrors.NewInsightsFailed("m", errors.New("down"))}
	router := newTestRouter(t, Deps{Narrator: narrator})

	w, response := do(t, router, "GET", "/api/analyze-fraud?nodes=20&rings=2&insights=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, response, "insights")
}

func TestInsightsAreTimed(t *testing.T) {
	collector := observability.NewCollector("test")
	router := newTestRouter(t, Deps{Narrator: &fakeNarrator{text: "ok"}, Metrics: collector})

	w, _ := do(t, router, "GET", "/api/analyze-fraud?nodes=20&rings=2&insights=true", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, router, "GET", "/metrics", nil)
	assert.Contains(t, w.Body.String(), `test_analysis_stage_duration_seconds_count{stage="insights"} 1`)
}

const accountsCSV = `name,email,ip_address,phone_number
alice,a@x.com,10.0.0.1,555-1
bob,b@x.com,10.0.0.1,555-1
carol,c@x.com,10.0.0.1,555-2
dave,d@x.com,10.0.0.1,555-3
erin,e@x.com,192.168.1.9,555-4
frank,f@x.com,N/A,555-4
gina,g@x.com,172.16.0.5,555-4
ivan,i@x.com,8.8.8.8,
`

func TestAnalyzeAccountsEndpoint_RawBody(t *testing.T) {
	narrator := &fakeNarrator{text: "Two rings share identifiers."}
	router := newTestRouter(t, Deps{Narrator: narrator})

	w, response := send(t, router, "/api/analyze-accounts?top_k=3&insights=true", "text/csv", strings.NewReader(accountsCSV))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Len(t, response["accounts"], 8)
	assert.Len(t, response["rings"], 2)
	assert.LessOrEqual(t, len(response["suspicious_links"].([]interface{})), 3)
	assert.Equal(t, 8.0, response["metrics"].(map[string]interface{})["total_nodes"])
	assert.Equal(t, 2.0, response["account_metrics"].(map[string]interface{})["rings_detected"])
	assert.Equal(t, "Two rings share identifiers.", response["insights"])
	assert.Equal(t, 2.0, narrator.brief.Extra["rings_detected"])

	alice := response["accounts"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, 35.0, alice["risk_score"])
	assert.Contains(t, alice["reasons"], "Multiple shared identifiers detected")
}

func TestAnalyzeAccountsEndpoint_Multipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "accounts.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(accountsCSV))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w, response := send(t, newTestRouter(t, Deps{}), "/api/analyze-accounts", mw.FormDataContentType(), &buf)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, response["accounts"], 8)
}

func TestAnalyzeAccountsEndpoint_Errors(t *testing.T) {
	router := newTestRouter(t, Deps{MaxGraphNodes: 5})

	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
	}{
		{"no header columns", "text/csv", "ip_address\n1.1.1.1\n", http.StatusBadRequest},
		{"no valid rows", "text/csv", "name,email\nalice,\n", http.StatusBadRequest},
		{"too many accounts", "text/csv", accountsCSV, http.StatusBadRequest},
		{"multipart without file", "multipart/form-data; boundary=x", "--x--\r\n", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := send(t, router, "/api/analyze-accounts", tt.contentType, strings.NewReader(tt.body))
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, response["error"])
		})
	}
}

func TestScoreEndpoint(t *testing.T) {
	router := newTestRouter(t, Deps{})

	body := []byte(`{"user": {"name": "x", "email": "x+1@mail.com", "ip_address": "0.0.0.0", "phone_number": "N/A"}}`)
	w, response := do(t, router, "POST", "/api/score", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 45.0, response["risk_score"])
	assert.Equal(t, "medium", response["level"])
	assert.Equal(t, false, response["flagged"])
	assert.Equal(t, "Monitor closely", response["recommendation"])
	assert.NotEmpty(t, response["timestamp"])

	w, response = do(t, router, "POST", "/api/score", []byte(`{"user": {"name": "x"}}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, response["error"])
}

func TestAnalyzeEndpoint(t *testing.T) {
	router := newTestRouter(t, Deps{})

	body := []byte(`{
		"nodes": [9],
		"edges": [
			{"source": 0, "target": 1}, {"source": 1, "target": 2}, {"source": 2, "target": 0},
			{"source": 3, "target": 4}, {"source": 4, "target": 5}, {"source": 5, "target": 3}
		],
		"options": {"top_k": 3, "embedding_dim": 8}
	}`)
	w, response := do(t, router, "POST", "/api/analyze", body)
	require.Equal(t, http.StatusOK, w.Code)

	metrics := response["metrics"].(map[string]interface{})
	assert.Equal(t, 7.0, metrics["total_nodes"])
	assert.Equal(t, 3.0, metrics["num_communities"])
	assert.Len(t, response["ranked_links"], 3)

	embeddings := response["embeddings"].(map[string]interface{})
	assert.Len(t, embeddings["0"], 8)
	assert.NotContains(t, embeddings, "9")
}

func TestAnalyzeEndpoint_Errors(t *testing.T) {
	router := newTestRouter(t, Deps{MaxGraphNodes: 3})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"edges": [`, http.StatusBadRequest},
		{"self loop", `{"edges": [{"source": 1, "target": 1}]}`, http.StatusBadRequest},
		{"bad option", `{"edges": [{"source": 1, "target": 2}], "options": {"p": -1}}`, http.StatusBadRequest},
		{"too large", `{"nodes": [1, 2, 3, 4]}`, http.StatusBadRequest},
		{"empty graph", `{}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := do(t, router, "POST", "/api/analyze", []byte(tt.body))
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestAnalyzeNeo4jEndpoint(t *testing.T) {
	g, err := graph.FromEdges(nil, []graph.Edge{{Source: 1, Target: 2}, {Source: 2, Target: 3}})
	require.NoError(t, err)
	source := &fakeSource{graph: g}
	router := newTestRouter(t, Deps{Source: source})

	w, response := do(t, router, "GET", "/api/analyze-neo4j?label=Person&rel=KNOWS&write_back=true", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, graph.GraphQuery{NodeLabel: "Person", RelType: "KNOWS", IDProperty: "id"}, source.query)
	assert.Len(t, source.saved, 3)
	assert.Equal(t, 3.0, response["metrics"].(map[string]interface{})["total_nodes"])
}

func TestAnalyzeNeo4jEndpoint_Errors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		w, _ := do(t, newTestRouter(t, Deps{}), "GET", "/api/analyze-neo4j", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("invalid label", func(t *testing.T) {
		router := newTestRouter(t, Deps{Source: &fakeSource{graph: graph.New()}})
		w, _ := do(t, router, "GET", "/api/analyze-neo4j?label=Bad%20Label", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty graph", func(t *testing.T) {
		router := newTestRouter(t, Deps{Source: &fakeSource{graph: graph.New()}})
		w, _ := do(t, router, "GET", "/api/analyze-neo4j", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("source down", func(t *testing.T) {
		source := &fakeSource{loadErr: apperrors.NewSourceQueryFailed("MATCH (n)", errors.New("connection refused"))}
		w, _ := do(t, newTestRouter(t, Deps{Source: source}), "GET", "/api/analyze-neo4j", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestOptionsLayering(t *testing.T) {
	topK, seed, workers := 7, int64(99), 3
	h := NewHandler(Deps{
		Profile:     &config.Profile{Fraud: config.EngineSettings{TopK: &topK, Workers: &workers}},
		WalkWorkers: 2,
	})

	opts, err := h.options(analysis.FlavorFraud, config.EngineSettings{Seed: &seed})
	require.NoError(t, err)
	assert.Equal(t, 7, opts.TopK)
	assert.Equal(t, int64(99), opts.Seed)
	assert.Equal(t, 3, opts.Workers)

	opts, err = h.options(analysis.FlavorSocial, config.EngineSettings{})
	require.NoError(t, err)
	assert.Equal(t, 20, opts.TopK)
	assert.Equal(t, 2, opts.Workers)
}

func TestOptionLimits(t *testing.T) {
	length, walks, dim, iterations := 1<<40, 1<<62, 1<<20, 1<<30
	router := newTestRouter(t, Deps{
		MaxWalkLength:   100,
		MaxWalksPerNode: 20,
		MaxEmbeddingDim: 256,
		MaxIterations:   50,
	})

	tests := []struct {
		name    string
		options config.EngineSettings
		field   string
	}{
		{name: "walk length", options: config.EngineSettings{WalkLength: &length}, field: "walk_length"},
		{name: "walks per node", options: config.EngineSettings{WalksPerNode: &walks}, field: "walks_per_node"},
		{name: "embedding dim", options: config.EngineSettings{EmbeddingDim: &dim}, field: "embedding_dim"},
		{name: "iterations", options: config.EngineSettings{MaxIterations: &iterations}, field: "max_iterations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := json.Marshal(analyzeRequest{Nodes: []int{0}, Options: tt.options})
			require.NoError(t, err)

			w, response := do(t, router, "POST", "/api/analyze", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, response["error"], tt.field)
		})
	}

	t.Run("at the limit", func(t *testing.T) {
		atLimit := 100
		body, err := json.Marshal(analyzeRequest{Nodes: []int{0}, Options: config.EngineSettings{WalkLength: &atLimit}})
		require.NoError(t, err)
		w, _ := do(t, router, "POST", "/api/analyze", body)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("profile values are checked too", func(t *testing.T) {
		long := 500
		h := NewHandler(Deps{
			Profile:       &config.Profile{Fraud: config.EngineSettings{WalkLength: &long}},
			MaxWalkLength: 100,
		})
		_, err := h.options(analysis.FlavorFraud, config.EngineSettings{})
		assert.True(t, apperrors.IsInvalidConfiguration(err))
	})
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(apperrors.NewInvalidConfiguration("p", "bad")))
	assert.Equal(t, http.StatusNotFound, statusFor(apperrors.NewNodeNotFound(3)))
	assert.Equal(t, http.StatusNotFound, statusFor(apperrors.ErrEmptyGraph))
	assert.Equal(t, http.StatusBadGateway, statusFor(apperrors.NewSourceConnectionFailed("bolt://x", errors.New("x"))))
	assert.Equal(t, http.StatusInternalServerError, statusFor(context.Canceled))
}
