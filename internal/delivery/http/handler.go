package http

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/discounthunter/backend/internal/domain"
	"github.com/discounthunter/backend/internal/usecase"
)

const (
	serviceName = "discounthunter-backend"

	// maxUploadBytes caps OCR image uploads
	maxUploadBytes = 10 << 20
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	scrape  *usecase.ScrapeService
	ocr     *usecase.OCRService
	catalog domain.StoreCatalog
	version string
}

// NewHandler creates a new HTTP handler
func NewHandler(scrape *usecase.ScrapeService, ocr *usecase.OCRService, catalog domain.StoreCatalog, version string) *Handler {
	if version == "" {
		version = "dev"
	}
	return &Handler{
		scrape:  scrape,
		ocr:     ocr,
		catalog: catalog,
		version: version,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   serviceName,
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// JobResponse is the polling payload for a scrape job
type JobResponse struct {
	Status      domain.JobStatus      `json:"status"`
	Data        []domain.RankedQuote  `json:"data,omitempty"`
	Error       string                `json:"error,omitempty"`
	Failures    []domain.StoreFailure `json:"failures,omitempty"`
	Stats       *domain.PriceStats    `json:"stats,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
	CompletedAt *time.Time            `json:"completedAt,omitempty"`
}

func newJobResponse(view *domain.JobView) JobResponse {
	response := JobResponse{
		Status:      view.Job.Status,
		Data:        view.Ranked,
		Error:       view.Job.Error,
		Failures:    view.Job.Failures,
		CreatedAt:   view.Job.CreatedAt,
		CompletedAt: view.Job.CompletedAt,
	}
	if view.Stats.Count > 0 {
		stats := view.Stats
		response.Stats = &stats
	}
	return response
}

// StartScrape handles POST /api/scrape
func (h *Handler) StartScrape(c *gin.Context) {
	if h.scrape == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scrape service not configured"})
		return
	}

	var req domain.ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	jobID, err := h.scrape.StartJob(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidQuery) {
			body := gin.H{"error": err.Error()}
			if jobID != "" {
				body["jobId"] = jobID
			}
			c.JSON(http.StatusBadRequest, body)
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobId": jobID})
}

// GetScrape handles GET /api/scrape/:jobId
func (h *Handler) GetScrape(c *gin.Context) {
	if h.scrape == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scrape service not configured"})
		return
	}

	view, err := h.scrape.GetJob(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newJobResponse(view))
}

// UploadOCR handles POST /api/ocr with a multipart "file" field
func (h *Handler) UploadOCR(c *gin.Context) {
	if h.ocr == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "OCR service not configured"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read uploaded file"})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read uploaded file"})
		return
	}

	name, err := h.ocr.ExtractProductName(c.Request.Context(), fileHeader.Filename, image)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"productName": name})
}

// ListStores handles GET /api/stores
func (h *Handler) ListStores(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stores": h.catalog.List()})
}

type updateStoreRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// UpdateStore handles PUT /api/stores/:storeId
func (h *Handler) UpdateStore(c *gin.Context) {
	var req updateStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	info, err := h.catalog.SetEnabled(c.Param("storeId"), *req.Enabled)
	if err != nil {
		h.respondError(c, err)
		return
	}

	log.Printf("[STORES] %s enabled=%v", info.ID, info.Enabled)
	c.JSON(http.StatusOK, info)
}

// respondError maps domain errors to HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery), errors.Is(err, domain.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrStoreNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrOCRFailure):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		log.Printf("[HTTP] ERROR %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
