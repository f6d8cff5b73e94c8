// Package server accepts exception reports over HTTP and answers with
// explanations.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/helmcode/errfriendly/pkg/exception"
	"github.com/helmcode/errfriendly/pkg/metrics"
	"github.com/helmcode/errfriendly/pkg/pipeline"
)

// maxBodyBytes bounds one request body.
const maxBodyBytes = 1 << 20

// Explainer produces reports. *pipeline.Pipeline implements it.
type Explainer interface {
	Explain(ctx context.Context, exc exception.Exception) *pipeline.Report
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ExplainResponse is the body of POST /v1/explain.
type ExplainResponse struct {
	Reports []*pipeline.Report `json:"reports"`
}

type tracebackRequest struct {
	Traceback *string `json:"traceback"`
}

type Handlers struct {
	explainer Explainer
	logger    *zap.Logger
}

func NewHandlers(e Explainer, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{explainer: e, logger: logger}
}

// NewRouter builds the engine with every route registered.
func NewRouter(h *Handlers, m *metrics.Metrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.logger))
	router.GET("/healthz", h.HandleHealth)
	router.GET("/metrics", gin.WrapH(m.Handler()))
	v1 := router.Group("/v1")
	v1.POST("/explain", h.HandleExplain)
	return router
}

func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleExplain handles POST /v1/explain. The body is either a JSON
// exception record or {"traceback": "..."} holding traceback text, which
// may contain several tracebacks.
func (h *Handlers) HandleExplain(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	excs, err := decode(body)
	if err != nil {
		h.logger.Debug("rejecting explain request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	resp := ExplainResponse{Reports: make([]*pipeline.Report, 0, len(excs))}
	for _, exc := range excs {
		resp.Reports = append(resp.Reports, h.explainer.Explain(c.Request.Context(), exc))
	}
	c.JSON(http.StatusOK, resp)
}

func readBody(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	body, err := c.GetRawData()
	if err != nil {
		return nil, errors.New("request body too large or unreadable")
	}
	return body, nil
}

func decode(body []byte) ([]exception.Exception, error) {
	var tr tracebackRequest
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, errors.New("invalid request body")
	}
	if tr.Traceback != nil {
		recs := exception.ParseTracebacks(*tr.Traceback)
		if len(recs) == 0 {
			return nil, exception.ErrNoTraceback
		}
		out := make([]exception.Exception, len(recs))
		for i, r := range recs {
			out[i] = r
		}
		return out, nil
	}
	rec, err := exception.DecodeRecord(body)
	if err != nil {
		return nil, err
	}
	return []exception.Exception{rec}, nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
