package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"PulseWatch/internal/domain"
	"PulseWatch/internal/ratelimit"
	"PulseWatch/internal/usecase"
)

// AnalysisRunner is the analysis use case as seen by HTTP.
type AnalysisRunner interface {
	Run(ctx context.Context, req usecase.RunRequest) (usecase.RunResult, error)
	Start(req usecase.RunRequest) (string, error)
	Progress(runID string) (domain.RunProgress, bool)
}

// CandidateIngestor stores collector output.
type CandidateIngestor interface {
	Ingest(ctx context.Context, candidates []domain.Candidate) (usecase.IngestResult, error)
}

// DuplicateCleaner runs the duplicate sweep.
type DuplicateCleaner interface {
	RemoveDuplicates(ctx context.Context) (usecase.CleanupResult, error)
}

// HealthChecker builds health reports.
type HealthChecker interface {
	Check(ctx context.Context) usecase.HealthReport
}

// PostLister serves filtered post pages and single posts.
type PostLister interface {
	List(ctx context.Context, filter domain.PostFilter) (usecase.PostPage, error)
	Get(ctx context.Context, id string) (domain.PostView, error)
}

// AnalyticsReporter aggregates analyzed posts.
type AnalyticsReporter interface {
	Report(ctx context.Context) (usecase.AnalyticsReport, error)
}

// Deps wires the HTTP surface.
type Deps struct {
	Analysis  AnalysisRunner
	Ingestor  CandidateIngestor
	Cleaner   DuplicateCleaner
	Health    HealthChecker
	Posts     PostLister
	Analytics AnalyticsReporter
	Limiter   ratelimit.Checker
	Logger    *slog.Logger
}

type handlers struct {
	Deps
}

// NewRouter constructs a Gin engine with every route behind its rate-limit policy.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &handlers{Deps: deps}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Logger))

	limit := func(policy string) gin.HandlerFunc {
		return RateLimit(deps.Limiter, policy, deps.Logger)
	}

	api := r.Group("/api")
	api.POST("/analyze", limit(ratelimit.PolicyAnalyze), h.analyze)
	api.GET("/analyze/progress", limit(ratelimit.PolicyHealth), h.progress)
	api.POST("/ingest", limit(ratelimit.PolicyScrape), h.ingest)
	api.POST("/cleanup", limit(ratelimit.PolicyScrape), h.cleanup)
	api.GET("/health", limit(ratelimit.PolicyHealth), h.health)
	api.GET("/posts", limit(ratelimit.PolicyPosts), h.posts)
	api.GET("/posts/:id", limit(ratelimit.PolicyPosts), h.post)
	api.GET("/analytics", limit(ratelimit.PolicyHealth), h.analytics)
	return r
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, err error, message string) {
	body := gin.H{"success": false, "error": err.Error()}
	if message != "" {
		body["message"] = message
	}
	c.JSON(status, body)
}

// statusFor maps validation errors to 400, missing records to 404 and
// everything else to 500.
func statusFor(err error) int {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	if errors.Is(err, domain.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (h *handlers) analyze(c *gin.Context) {
	var req usecase.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, err, "Request body must be JSON: {\"limit\": n}")
		return
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		runID, err := h.Analysis.Start(req)
		if err != nil {
			respondError(c, statusFor(err), err, "")
			return
		}
		respondOK(c, http.StatusAccepted, gin.H{"runId": runID})
		return
	}

	result, err := h.Analysis.Run(c.Request.Context(), req)
	if err != nil {
		h.Logger.Error("analysis request failed", "error", err)
		respondError(c, statusFor(err), err, "Analysis failed. Please check API credentials and try again.")
		return
	}
	respondOK(c, http.StatusOK, result)
}

func (h *handlers) progress(c *gin.Context) {
	runID := c.Query("runId")
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing runId"})
		return
	}
	p, ok := h.Analysis.Progress(runID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"found":   false,
			"error":   "Run not found or completed",
		})
		return
	}
	respondOK(c, http.StatusOK, p)
}

type ingestRequest struct {
	Candidates []domain.Candidate `json:"candidates"`
}

func (h *handlers) ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err, "Request body must be JSON: {\"candidates\": [...]}")
		return
	}
	result, err := h.Ingestor.Ingest(c.Request.Context(), req.Candidates)
	if err != nil {
		h.Logger.Error("ingest request failed", "error", err)
		respondError(c, statusFor(err), err, "")
		return
	}
	respondOK(c, http.StatusOK, result)
}

func (h *handlers) cleanup(c *gin.Context) {
	result, err := h.Cleaner.RemoveDuplicates(c.Request.Context())
	if err != nil {
		h.Logger.Error("cleanup request failed", "error", err)
		respondError(c, http.StatusInternalServerError, err, "Cleanup failed.")
		return
	}
	respondOK(c, http.StatusOK, result)
}

func (h *handlers) health(c *gin.Context) {
	respondOK(c, http.StatusOK, h.Health.Check(c.Request.Context()))
}

func (h *handlers) posts(c *gin.Context) {
	filter := domain.PostFilter{
		Sentiment: c.Query("sentiment"),
		Source:    c.Query("source"),
		Topic:     c.Query("topic"),
		Search:    c.Query("search"),
	}
	var err error
	if filter.Limit, err = intQuery(c, "limit"); err != nil {
		respondError(c, http.StatusBadRequest, err, "")
		return
	}
	if filter.Offset, err = intQuery(c, "offset"); err != nil {
		respondError(c, http.StatusBadRequest, err, "")
		return
	}

	page, err := h.Posts.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, statusFor(err), err, "")
		return
	}

	views := make([]postView, len(page.Posts))
	for i, p := range page.Posts {
		views[i] = newPostView(p)
	}
	respondOK(c, http.StatusOK, gin.H{
		"posts":   views,
		"total":   page.Total,
		"limit":   page.Limit,
		"offset":  page.Offset,
		"hasMore": page.Offset+page.Limit < page.Total,
	})
}

func (h *handlers) post(c *gin.Context) {
	view, err := h.Posts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch status := statusFor(err); status {
		case http.StatusBadRequest:
			c.JSON(status, gin.H{"success": false, "error": "Invalid post ID format"})
		case http.StatusNotFound:
			c.JSON(status, gin.H{"success": false, "error": "Post not found"})
		default:
			h.Logger.Error("get post failed", "error", err)
			respondError(c, status, err, "")
		}
		return
	}
	respondOK(c, http.StatusOK, newPostView(view))
}

func (h *handlers) analytics(c *gin.Context) {
	report, err := h.Analytics.Report(c.Request.Context())
	if err != nil {
		h.Logger.Error("analytics request failed", "error", err)
		respondError(c, http.StatusInternalServerError, err, "Failed to load analytics.")
		return
	}
	respondOK(c, http.StatusOK, report)
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer")
	}
	return v, nil
}

// postView flattens a post and its analysis the way listings are consumed.
type postView struct {
	ID             string     `json:"id"`
	Source         string     `json:"source"`
	SourceURL      string     `json:"source_url"`
	Content        string     `json:"content"`
	Author         string     `json:"author"`
	Topic          string     `json:"topic"`
	PostDate       time.Time  `json:"post_date"`
	CreatedAt      time.Time  `json:"created_at"`
	Sentiment      *string    `json:"sentiment"`
	SentimentScore *float64   `json:"sentiment_score"`
	KeyTopics      []string   `json:"key_topics"`
	Summary        *string    `json:"summary"`
	AnalyzedAt     *time.Time `json:"analyzed_at"`
}

func newPostView(p domain.PostView) postView {
	v := postView{
		ID:        p.ID,
		Source:    string(p.Source),
		SourceURL: p.SourceURL,
		Content:   p.Content,
		Author:    p.Author,
		Topic:     p.Topic,
		PostDate:  p.PostedAt,
		CreatedAt: p.CreatedAt,
	}
	if a := p.Analysis; a != nil {
		sentiment := string(a.Sentiment)
		score := a.Score
		summary := a.Summary
		analyzedAt := a.AnalyzedAt
		v.Sentiment = &sentiment
		v.SentimentScore = &score
		v.KeyTopics = a.Topics
		v.Summary = &summary
		v.AnalyzedAt = &analyzedAt
	}
	return v
}
