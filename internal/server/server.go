// Package server exposes the measurement pipeline over HTTP
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	zoomestimator "github.com/menta2k/zoom-estimator"
	"github.com/menta2k/zoom-estimator/internal/config"
	"github.com/menta2k/zoom-estimator/internal/history"
	"github.com/menta2k/zoom-estimator/internal/utils"
	"github.com/menta2k/zoom-estimator/pkg/types"
	"github.com/menta2k/zoom-estimator/pkg/zoomstore"
)

// DefaultHistoryLimit is the number of records returned when the request
// does not set limit
const DefaultHistoryLimit = 20

// ErrBusy is returned when no pipeline slot frees up within the queue timeout
var ErrBusy = errors.New("measurement queue is full, retry later")

// Server serves the measurement API
type Server struct {
	cfg          config.ServerConfig
	estimator    *zoomestimator.Estimator
	zoom         zoomstore.Lookuper
	history      *history.DB
	semaphore    chan struct{}
	queueTimeout time.Duration
	logger       *zap.Logger
	engine       *gin.Engine
}

// New builds the server and its routes. zoom and hist may be nil, the
// matching endpoints then answer 404.
func New(cfg config.ServerConfig, est *zoomestimator.Estimator, zoom zoomstore.Lookuper, hist *history.DB, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}

	s := &Server{
		cfg:          cfg,
		estimator:    est,
		zoom:         zoom,
		history:      hist,
		semaphore:    make(chan struct{}, cfg.MaxConcurrent),
		queueTimeout: cfg.QueueTimeout,
		logger:       logger,
	}

	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger(logger.Named("http")))

	r.GET("/health", s.health)

	api := r.Group("/api/v1")
	{
		api.POST("/measure", s.measure)
		api.GET("/zoom/:serial", s.getZoom)
		api.GET("/history/:serial", s.getHistory)
	}

	s.engine = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on the configured address until ctx is done
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// acquire takes a pipeline slot, waiting at most the queue timeout
func (s *Server) acquire(ctx context.Context) (func(), error) {
	if s.queueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queueTimeout)
		defer cancel()
	}

	select {
	case s.semaphore <- struct{}{}:
		return func() { <-s.semaphore }, nil
	case <-ctx.Done():
		return nil, ErrBusy
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": zoomestimator.GetVersion(),
	})
}

func (s *Server) measure(c *gin.Context) {
	if s.cfg.UploadLimit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.UploadLimit)
	}

	if _, err := c.MultipartForm(); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid multipart upload",
			types.AtStage(types.StageInput, fmt.Errorf("%w: %v", types.ErrInvalidInput, err)))
		return
	}

	serial := c.PostForm("sn")
	if serial == "" {
		s.fail(c, http.StatusBadRequest, "camera serial number is required",
			types.AtStage(types.StageInput, fmt.Errorf("%w: form field sn", types.ErrMissingInput)))
		return
	}

	var readers [3]*uploadedFile
	for i, field := range []string{"blue", "gray", "obj"} {
		f, err := openUpload(c, field)
		if err != nil {
			s.fail(c, http.StatusBadRequest, "failed to read uploaded photo "+field,
				types.AtStage(types.StageInput, err))
			return
		}
		defer f.Close()
		readers[i] = f
		s.logger.Debug("photo uploaded",
			zap.String("field", field),
			zap.String("filename", f.name),
			zap.String("size", utils.FormatFileSize(f.size)))
	}

	release, err := s.acquire(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusServiceUnavailable, "measurement queue is full", err)
		return
	}
	defer release()

	set, err := s.estimator.LoadPhotoSetFromReaders(readers[0], readers[1], readers[2])
	if err != nil {
		s.fail(c, statusOf(err), "failed to decode photos", err)
		return
	}

	result, err := s.estimator.Measure(c.Request.Context(), set, serial)
	if err != nil {
		s.fail(c, statusOf(err), "measurement failed", err)
		return
	}

	c.JSON(http.StatusOK, MeasureResponse{
		Success: true,
		Message: "measurement complete",
		Data:    result,
	})
}

func (s *Server) getZoom(c *gin.Context) {
	serial := c.Param("serial")
	if s.zoom == nil {
		s.fail(c, http.StatusNotFound, "zoom lookup is not configured", zoomstore.ErrNotFound)
		return
	}

	zoom, err := s.zoom.Lookup(c.Request.Context(), serial)
	if err != nil {
		if errors.Is(err, zoomstore.ErrNotFound) {
			s.fail(c, http.StatusNotFound, "no zoom stored for "+serial, err)
			return
		}
		s.fail(c, http.StatusInternalServerError, "zoom lookup failed", err)
		return
	}

	c.JSON(http.StatusOK, ZoomResponse{Success: true, Serial: serial, Zoom: zoom})
}

func (s *Server) getHistory(c *gin.Context) {
	serial := c.Param("serial")
	if s.history == nil {
		s.fail(c, http.StatusNotFound, "history is not enabled", zoomstore.ErrNotFound)
		return
	}

	limit := DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.fail(c, http.StatusBadRequest, "limit must be a positive integer",
				fmt.Errorf("%w: limit %q", types.ErrInvalidInput, raw))
			return
		}
		limit = n
	}

	records, err := s.history.Recent(c.Request.Context(), serial, limit)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "history query failed", err)
		return
	}
	if records == nil {
		records = []history.Record{}
	}

	c.JSON(http.StatusOK, HistoryResponse{Success: true, Serial: serial, Records: records})
}

// statusOf maps pipeline failures onto HTTP status codes
func statusOf(err error) int {
	switch types.KindOf(err) {
	case types.KindMissingInputFile, types.KindInvalidInput:
		return http.StatusBadRequest
	case types.KindEmptyDetectionResult, types.KindArithmeticFailure:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, status int, message string, err error) {
	resp := ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	}
	if kind := types.KindOf(err); kind != types.KindUnknown {
		resp.Kind = kind.String()
	}
	if stage, ok := types.StageOf(err); ok {
		resp.Stage = string(stage)
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(message, zap.Error(err))
	} else {
		s.logger.Warn(message, zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, resp)
}
