package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fraudgraph/backend/internal/accounts"
	"fraudgraph/backend/internal/analysis"
	"fraudgraph/backend/internal/constants"
	"fraudgraph/backend/internal/graph"
	"fraudgraph/backend/internal/insights"
	"fraudgraph/backend/internal/observability"
	"fraudgraph/backend/pkg/config"
	apperrors "fraudgraph/backend/pkg/errors"
	"fraudgraph/backend/pkg/logger"
)

const insightsTimeout = 30 * time.Second

// GraphSource loads stored graphs and accepts community write-back
type GraphSource interface {
	Load(ctx context.Context, q graph.GraphQuery) (*graph.Graph, error)
	SaveCommunities(ctx context.Context, q graph.GraphQuery, communities map[int]int) error
}

// Narrator writes a narrative for an analysis brief
type Narrator interface {
	Summarize(ctx context.Context, b insights.Brief) (string, error)
}

// Deps are the collaborators a Handler needs. Source and Narrator are
// optional; their features are off when nil.
type Deps struct {
	Analyzer      *analysis.Analyzer
	Profile       *config.Profile
	Source        GraphSource
	Narrator      Narrator
	Metrics       *observability.Collector
	MaxGraphNodes int
	WalkWorkers   int

	// Engine option ceilings; zero disables a check
	MaxWalkLength   int
	MaxWalksPerNode int
	MaxEmbeddingDim int
	MaxIterations   int
}

// Handler serves the analysis routes
type Handler struct {
	analyzer *analysis.Analyzer
	profile  *config.Profile
	source   GraphSource
	narrator Narrator
	metrics  *observability.Collector
	maxNodes int
	limits   []optionLimit
	workers  int
	logger   *zap.Logger
}

type optionLimit struct {
	field string
	max   int
	value func(analysis.Options) int
}

// NewHandler creates a handler from deps
func NewHandler(deps Deps) *Handler {
	workers := deps.WalkWorkers
	if workers < 1 {
		workers = 1
	}
	limits := []optionLimit{
		{"walk_length", deps.MaxWalkLength, func(o analysis.Options) int { return o.WalkLength }},
		{"walks_per_node", deps.MaxWalksPerNode, func(o analysis.Options) int { return o.WalksPerNode }},
		{"embedding_dim", deps.MaxEmbeddingDim, func(o analysis.Options) int { return o.Dimensions }},
		{"max_iterations", deps.MaxIterations, func(o analysis.Options) int { return o.MaxIterations }},
	}
	return &Handler{
		analyzer: deps.Analyzer,
		profile:  deps.Profile,
		source:   deps.Source,
		narrator: deps.Narrator,
		metrics:  deps.Metrics,
		maxNodes: deps.MaxGraphNodes,
		limits:   limits,
		workers:  workers,
		logger:   logger.Named("api"),
	}
}

// RegisterRoutes mounts the analysis endpoints on r
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/analyze-fraud", h.analyzeFraud)
	r.GET("/analyze-social", h.analyzeSocial)
	r.POST("/analyze", h.analyzeUploaded)
	r.GET("/analyze-neo4j", h.analyzeNeo4j)
	r.POST("/analyze-accounts", h.analyzeAccounts)
	r.POST("/score", h.scoreAccount)
}

type fraudQuery struct {
	Nodes    *int   `form:"nodes"`
	Rings    *int   `form:"rings"`
	Seed     *int64 `form:"seed"`
	TopK     *int   `form:"top_k"`
	Insights bool   `form:"insights"`
}

type socialQuery struct {
	Nodes       *int   `form:"nodes"`
	Influencers *int   `form:"influencers"`
	Seed        *int64 `form:"seed"`
	TopK        *int   `form:"top_k"`
	Insights    bool   `form:"insights"`
}

type neo4jQuery struct {
	Label      string `form:"label"`
	Rel        string `form:"rel"`
	IDProperty string `form:"id_property"`
	WriteBack  bool   `form:"write_back"`
	Insights   bool   `form:"insights"`
}

type accountsQuery struct {
	Seed     *int64 `form:"seed"`
	TopK     *int   `form:"top_k"`
	Insights bool   `form:"insights"`
}

type scoreRequest struct {
	User accounts.Record `json:"user"`
}

type scoreResponse struct {
	accounts.Risk
	Timestamp string `json:"timestamp"`
}

type analyzeRequest struct {
	Nodes    []int                 `json:"nodes"`
	Edges    []graph.Edge          `json:"edges"`
	Options  config.EngineSettings `json:"options"`
	Insights bool                  `json:"insights"`
}

func (h *Handler) analyzeFraud(c *gin.Context) {
	var q fraudQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	nodes := valueOr(q.Nodes, constants.DefaultFraudNodes)
	rings := valueOr(q.Rings, constants.DefaultFraudRings)
	if err := h.checkSize(nodes); err != nil {
		h.fail(c, err)
		return
	}

	opts, err := h.options(analysis.FlavorFraud, config.EngineSettings{Seed: q.Seed, TopK: q.TopK})
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.analyzer.SimulateFraud(c.Request.Context(), nodes, rings, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	if q.Insights {
		res.Insights = h.narrate(c.Request.Context(), res.Brief())
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) analyzeSocial(c *gin.Context) {
	var q socialQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	nodes := valueOr(q.Nodes, constants.DefaultSocialNodes)
	influencers := valueOr(q.Influencers, constants.DefaultSocialInfluencers)
	if err := h.checkSize(nodes); err != nil {
		h.fail(c, err)
		return
	}

	opts, err := h.options(analysis.FlavorSocial, config.EngineSettings{Seed: q.Seed, TopK: q.TopK})
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.analyzer.SimulateSocial(c.Request.Context(), nodes, influencers, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	if q.Insights {
		res.Insights = h.narrate(c.Request.Context(), res.Brief())
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) analyzeUploaded(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, err := graph.FromEdges(req.Nodes, req.Edges)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.checkSize(g.NodeCount()); err != nil {
		h.fail(c, err)
		return
	}

	opts, err := h.options(analysis.FlavorGeneric, req.Options)
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.analyzer.Analyze(c.Request.Context(), g, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	if req.Insights {
		res.Insights = h.narrate(c.Request.Context(), res.Brief())
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) analyzeNeo4j(c *gin.Context) {
	if h.source == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "neo4j source is not configured"})
		return
	}

	var q neo4jQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	gq := graph.DefaultGraphQuery()
	if q.Label != "" {
		gq.NodeLabel = q.Label
	}
	if q.Rel != "" {
		gq.RelType = q.Rel
	}
	if q.IDProperty != "" {
		gq.IDProperty = q.IDProperty
	}

	ctx := c.Request.Context()
	g, err := h.source.Load(ctx, gq)
	if err != nil {
		h.fail(c, err)
		return
	}
	if g.NodeCount() == 0 {
		h.fail(c, fmt.Errorf("no %s nodes stored: %w", gq.NodeLabel, apperrors.ErrEmptyGraph))
		return
	}
	if err := h.checkSize(g.NodeCount()); err != nil {
		h.fail(c, err)
		return
	}

	opts, err := h.options(analysis.FlavorGeneric, config.EngineSettings{})
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.analyzer.Analyze(ctx, g, opts)
	if err != nil {
		h.fail(c, err)
		return
	}

	if q.WriteBack {
		if err := h.source.SaveCommunities(ctx, gq, res.Communities); err != nil {
			h.fail(c, fmt.Errorf("write communities: %w", err))
			return
		}
	}
	if q.Insights {
		res.Insights = h.narrate(ctx, res.Brief())
	}
	c.JSON(http.StatusOK, res)
}

// analyzeAccounts reads account records as CSV, either from a multipart
// "file" field or from the raw request body
func (h *Handler) analyzeAccounts(c *gin.Context) {
	var q accountsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			h.fail(c, fmt.Errorf("open upload: %w", err))
			return
		}
		defer f.Close()
		body = f
	}

	records, err := accounts.ReadCSV(body)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.checkSize(len(records)); err != nil {
		h.fail(c, err)
		return
	}

	opts, err := h.options(analysis.FlavorFraud, config.EngineSettings{Seed: q.Seed, TopK: q.TopK})
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.analyzer.AnalyzeAccounts(c.Request.Context(), records, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	if q.Insights {
		res.Insights = h.narrate(c.Request.Context(), res.Brief())
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) scoreAccount(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.User.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user needs a name and an email"})
		return
	}

	risk := accounts.Assess(req.User)
	h.logger.Debug("Account scored",
		zap.Int("risk_score", risk.Score),
		zap.String("level", string(risk.Level)),
	)
	c.JSON(http.StatusOK, scoreResponse{Risk: risk, Timestamp: time.Now().UTC().Format(time.RFC3339)})
}

// options layers the profile and then per-request overrides on the flavor
// defaults, and rejects results above the configured ceilings
func (h *Handler) options(flavor analysis.Flavor, overrides config.EngineSettings) (analysis.Options, error) {
	opts := analysis.DefaultOptions(flavor)
	opts.Workers = h.workers
	opts = opts.WithSettings(h.profile.Section(string(flavor))).WithSettings(overrides)

	for _, l := range h.limits {
		if l.max > 0 && l.value(opts) > l.max {
			return opts, apperrors.NewInvalidConfiguration(l.field, fmt.Sprintf("%d exceeds the limit of %d", l.value(opts), l.max))
		}
	}
	return opts, nil
}

func valueOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func (h *Handler) checkSize(nodes int) error {
	if h.maxNodes > 0 && nodes > h.maxNodes {
		return apperrors.NewInvalidConfiguration("nodes", fmt.Sprintf("%d exceeds the limit of %d", nodes, h.maxNodes))
	}
	return nil
}

// narrate returns a narrative for b, or "" when insights are disabled or
// fail. Failures never fail the analysis.
func (h *Handler) narrate(ctx context.Context, b insights.Brief) string {
	if h.narrator == nil {
		return ""
	}
	defer h.metrics.TimeStage(observability.StageInsights)()

	ctx, cancel := context.WithTimeout(ctx, insightsTimeout)
	defer cancel()

	text, err := h.narrator.Summarize(ctx, b)
	if err != nil {
		h.logger.Warn("Insights unavailable", zap.String("flavor", b.Flavor), zap.Error(err))
		return ""
	}
	return text
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Analysis request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case apperrors.IsInvalidConfiguration(err):
		return http.StatusBadRequest
	case apperrors.IsNotFound(err), apperrors.IsErrorType(err, apperrors.ErrorTypeEmptyGraph):
		return http.StatusNotFound
	case apperrors.IsRetryable(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
