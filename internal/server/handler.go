// Package server exposes analyses and stored runs over HTTP for the
// visualization layer.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"

	"github.com/ogulcanaydogan/llm-error-analysis/internal/analysis"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/hash"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/pipeline"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/store"
	"github.com/ogulcanaydogan/llm-error-analysis/pkg/types"
)

type api struct {
	cfg     Config
	svc     *pipeline.Service
	history *store.History
	log     *slog.Logger
	cache   *reportCache
	group   singleflight.Group
	now     func() time.Time
}

// New builds the router. history may be nil, in which case the run
// listing endpoints answer 503.
func New(cfg Config, svc *pipeline.Service, history *store.History, log *slog.Logger) *gin.Engine {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	a := &api{
		cfg:     cfg,
		svc:     svc,
		history: history,
		log:     log,
		cache:   newReportCache(time.Duration(cfg.CacheTTLSeconds) * time.Second),
		now:     time.Now,
	}

	r := gin.New()
	r.Use(gin.Recovery(), a.requestLogger())
	if len(cfg.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.AllowOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders: []string{"Content-Length", "X-Cache"},
			MaxAge:        12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	v1 := r.Group("/v1")
	v1.POST("/analyses", a.createAnalysis)
	v1.GET("/analyses", a.listAnalyses)
	v1.GET("/analyses/:id", a.getAnalysis)
	return r
}

func (a *api) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.log.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (a *api) createAnalysis(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, a.cfg.MaxBodyBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("read body: %v", err)})
		return
	}
	if int64(len(body)) > a.cfg.MaxBodyBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return
	}

	req, err := requestFromQuery(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key := fingerprint(body, c.Request.URL.Query())
	if r, ok := a.cache.get(key, a.now()); ok {
		c.Header("X-Cache", "hit")
		c.JSON(http.StatusOK, r)
		return
	}

	// Concurrent identical requests share one run, so it must outlive the
	// caller that happened to start it.
	ctx := context.WithoutCancel(c.Request.Context())
	v, err, _ := a.group.Do(key, func() (any, error) {
		req.Input = strings.NewReader(string(body))
		resp, err := a.svc.Analyze(ctx, req)
		if err == nil {
			a.cache.put(key, resp.Report, a.now())
		}
		return resp, err
	})
	resp, _ := v.(pipeline.Response)
	c.Header("X-Cache", "miss")
	if err != nil {
		a.writeError(c, resp, err)
		return
	}
	c.JSON(http.StatusCreated, resp.Report)
}

func (a *api) writeError(c *gin.Context, resp pipeline.Response, err error) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrAspectsFailed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "report": resp.Report})
	case errors.Is(err, pipeline.ErrSchemaViolation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "violations": resp.Violations})
	default:
		if errors.Is(err, analysis.ErrMissingBucketAlignment) {
			a.log.Error("analysis invariant violated", "error", err)
		} else {
			a.log.Error("analysis failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (a *api) listAnalyses(c *gin.Context) {
	if a.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run history is not configured"})
		return
	}
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid limit %q", s)})
			return
		}
		limit = n
	}
	runs, err := a.history.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (a *api) getAnalysis(c *gin.Context) {
	if a.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run history is not configured"})
		return
	}
	r, err := a.history.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, r)
}

func requestFromQuery(q url.Values) (pipeline.Request, error) {
	req := pipeline.Request{
		Task:      types.Task(q.Get("task")),
		InputPath: q.Get("name"),
		Dataset:   q.Get("dataset"),
		Model:     q.Get("model"),
		Language:  q.Get("language"),
	}
	if req.InputPath == "" {
		req.InputPath = "predictions.tsv"
	}

	flags := map[string]*bool{
		"ci":       &req.CI,
		"case":     &req.Cases,
		"ece":      &req.ECE,
		"strict":   &req.Strict,
		"validate": &req.Validate,
	}
	for name, dst := range flags {
		if s := q.Get(name); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return pipeline.Request{}, fmt.Errorf("invalid %s %q", name, s)
			}
			*dst = b
		}
	}

	ints := map[string]*int{"bins": &req.Bins, "repeats": &req.Repeats}
	for name, dst := range ints {
		if s := q.Get(name); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return pipeline.Request{}, fmt.Errorf("invalid %s %q", name, s)
			}
			*dst = n
		}
	}
	if s := q.Get("seed"); s != "" {
		seed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("invalid seed %q", s)
		}
		req.Seed = seed
	}
	return req, nil
}

func fingerprint(body []byte, q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", k, strings.Join(q[k], ","))
	}
	return hash.Bytes([]byte(b.String())) + "|" + hash.Bytes(body)
}
