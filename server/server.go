// Package server is the HTTP front end: it accepts an uploaded .eml file,
// runs a proof for it and reports the result.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/synqronlabs/zkmail"
	"github.com/synqronlabs/zkmail/dkim"
	"github.com/synqronlabs/zkmail/metrics"
)

// UploadField is the multipart field carrying the message.
const UploadField = "email_file"

const (
	msgVerified      = "DKIM Verification Result: Email is verified."
	msgNotVerified   = "DKIM Verification Result: Email is not verified."
	msgInvalidDomain = "DKIM Verification Result: invalid domain."
)

// Runner proves one message.
type Runner interface {
	Run(ctx context.Context, raw []byte) (*zkmail.Outcome, error)
}

// Result is the JSON body returned for a run.
type Result struct {
	ID            string `json:"id,omitempty"`
	Message       string `json:"message"`
	Verified      bool   `json:"verified"`
	Receiver      string `json:"receiver,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Sender        string `json:"sender,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Artifact      string `json:"artifact,omitempty"`
	KeyTesting    bool   `json:"key_testing,omitempty"`
}

// Config configures a Server.
type Config struct {
	Addr      string
	MaxUpload int64

	// Metrics enables request metrics. Gatherer serves /metrics; it
	// defaults to the default prometheus registry.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	Logger *zap.Logger
}

// Server serves the proof API.
type Server struct {
	runner    Runner
	addr      string
	maxUpload int64
	logger    *zap.Logger
	engine    *gin.Engine

	mu   sync.Mutex
	last *Result
}

// New creates a server around runner.
func New(runner Runner, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner:    runner,
		addr:      cfg.Addr,
		maxUpload: cfg.MaxUpload,
		logger:    logger,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())
	if cfg.Metrics != nil {
		engine.Use(cfg.Metrics.Middleware())
		gatherer := cfg.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	engine.POST("/verify-dkim", s.handleVerify)
	engine.GET("/result", s.handleResult)
	engine.GET("/get-verification-result", s.handleResult)
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.engine = engine
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func (s *Server) handleVerify(c *gin.Context) {
	if s.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	}

	fh, err := c.FormFile(UploadField)
	if err != nil {
		if isTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "Uploaded file is too large."})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "No file uploaded. Please upload a .eml file."})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error reading uploaded file."})
		return
	}
	raw, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error reading uploaded file."})
		return
	}

	outcome, err := s.runner.Run(c.Request.Context(), raw)
	if err != nil {
		s.logger.Warn("run failed", zap.String("file", fh.Filename), zap.Error(err))
		c.JSON(statusFor(err), gin.H{"message": "Error during DKIM verification: " + err.Error()})
		return
	}

	result := resultFor(outcome)
	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleResult(c *gin.Context) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "No result found"})
		return
	}
	c.JSON(http.StatusOK, last)
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, zkmail.ErrInputMalformed):
		return http.StatusBadRequest
	case errors.Is(err, dkim.ErrKeyHashNotAllowed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, zkmail.ErrResolve):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func resultFor(o *zkmail.Outcome) *Result {
	r := &Result{ID: o.ID.String(), Artifact: o.Artifact, KeyTesting: o.Testing}
	switch o.Status {
	case zkmail.StatusInvalidDomain:
		r.Message = msgInvalidDomain
		return r
	case zkmail.StatusVerified:
		r.Message = msgVerified
		r.Verified = true
	default:
		r.Message = msgNotVerified
	}
	r.Receiver = o.Claim.Receiver
	r.Amount = o.Claim.Amount
	r.Sender = o.Claim.Sender
	if o.Diagnostics != nil {
		r.TransactionID = o.Diagnostics.TxnID
	}
	return r
}
