package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"docsummary/internal/format"
	"docsummary/internal/models"
	"docsummary/internal/pipeline"
	"docsummary/internal/staging"
	"docsummary/internal/storage"
	"docsummary/internal/worker"
)

// multipart parts above this size spill to disk while parsing
const multipartMemory = 8 << 20

// multipart framing allowance on top of the file size limit
const multipartOverhead = 1 << 20

// Processor runs one staged upload through the pipeline.
type Processor interface {
	Process(ctx context.Context, f pipeline.UploadedFile) (*pipeline.Result, error)
}

// UploadLister lists recent audit rows.
type UploadLister interface {
	Recent(ctx context.Context, limit int) ([]*models.UploadRecord, error)
}

type Options struct {
	Processor      Processor
	Staging        *staging.Store
	Gate           *worker.Gate
	Limiter        Limiter
	Uploads        UploadLister
	MaxUploadBytes int64
	StaticDir      string
	Logger         *slog.Logger
}

// Handler wires HTTP routes to the summarisation pipeline.
type Handler struct {
	processor      Processor
	staging        *staging.Store
	gate           *worker.Gate
	limiter        Limiter
	uploads        UploadLister
	maxUploadBytes int64
	staticDir      string
	logger         *slog.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gate := opts.Gate
	if gate == nil {
		gate = worker.NewGate(1, 0)
	}
	return &Handler{
		processor:      opts.Processor,
		staging:        opts.Staging,
		gate:           gate,
		limiter:        opts.Limiter,
		uploads:        opts.Uploads,
		maxUploadBytes: opts.MaxUploadBytes,
		staticDir:      opts.StaticDir,
		logger:         logger,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	api := router.Group("/api")
	api.GET("/formats", h.listFormats)
	api.GET("/uploads", h.listUploads)
	api.POST("/process", h.rateLimit(), h.processUpload)
	if h.staticDir != "" {
		router.NoRoute(h.serveStatic)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"inFlight": h.gate.InFlight(),
		"capacity": h.gate.Capacity(),
	})
}

func (h *Handler) listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"accepted":       format.Accepted(),
		"maxUploadBytes": h.maxUploadBytes,
	})
}

func (h *Handler) listUploads(c *gin.Context) {
	if h.uploads == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "upload log is disabled"})
		return
	}
	limit := storage.DefaultRecentLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	rows, err := h.uploads.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list uploads", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list uploads failed"})
		return
	}
	if rows == nil {
		rows = []*models.UploadRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"uploads": rows})
}

func (h *Handler) processUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	defer c.Request.MultipartForm.RemoveAll()

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	ctx := c.Request.Context()
	release, err := h.gate.Acquire(ctx)
	if err != nil {
		if errors.Is(err, worker.ErrBusy) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": worker.ErrBusy.Error()})
		} else {
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "request canceled"})
		}
		return
	}
	defer release()

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	staged, err := h.staging.Stage(src, h.maxUploadBytes)
	_ = src.Close()
	if err != nil {
		if errors.Is(err, staging.ErrTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		h.logger.Error("stage upload", "file", file.Filename, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save file failed"})
		return
	}

	res, err := h.processor.Process(ctx, pipeline.UploadedFile{
		OriginalName: file.Filename,
		MediaType:    file.Header.Get("Content-Type"),
		Size:         staged.Size(),
		Content:      staged,
		ClientIP:     c.ClientIP(),
	})
	if err != nil {
		h.writePipelineError(c, err)
		return
	}

	body := gin.H{
		"success":  true,
		"summary":  res.Summary,
		"fileName": res.Report.FileName,
		"fileSize": res.Report.FileSizeBytes,
		"fileType": res.Report.MediaType,
		"report":   res.Report,
	}
	if res.Abstract != "" {
		body["abstract"] = res.Abstract
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) writePipelineError(c *gin.Context, err error) {
	pe, ok := pipeline.AsError(err)
	if !ok {
		h.logger.Error("unexpected pipeline error", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(statusFor(pe), gin.H{
		"error": pe.Message,
		"stage": pe.Stage,
		"cause": pe.Kind,
	})
}

func statusFor(pe *pipeline.Error) int {
	if pe.Class == pipeline.ClassServer {
		return http.StatusInternalServerError
	}
	switch pe.Kind {
	case pipeline.KindUnsupportedType:
		return http.StatusUnsupportedMediaType
	case pipeline.KindDecode, pipeline.KindMalformed:
		return http.StatusUnprocessableEntity
	case pipeline.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusBadRequest
	}
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
