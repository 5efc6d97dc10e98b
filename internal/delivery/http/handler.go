package http

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/toxiscan/backend/internal/domain"
)

const (
	serviceName    = "toxiscan-backend"
	serviceVersion = "1.0.0"

	// bodyOverhead covers the JSON envelope and data URI header around the encoded image
	bodyOverhead = 4 << 10
)

// AnalysisUsecase is the pipeline surface the handlers depend on
type AnalysisUsecase interface {
	Analyze(ctx context.Context, userID, image string) (string, error)
	GetAnalysis(ctx context.Context, userID, id string) (*domain.AnalysisRecord, error)
	ListAnalyses(ctx context.Context, userID string, limit int) ([]domain.AnalysisRecord, error)
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	analyses      AnalysisUsecase
	maxImageBytes int64
}

// NewHandler creates a new HTTP handler. maxImageBytes bounds the decoded image size.
func NewHandler(analyses AnalysisUsecase, maxImageBytes int64) *Handler {
	if maxImageBytes <= 0 {
		maxImageBytes = 10 << 20
	}
	return &Handler{
		analyses:      analyses,
		maxImageBytes: maxImageBytes,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// CreateAnalysis runs the pipeline on a label photo.
// POST /api/v1/analyses {"image": "<data URI>"} -> 201 {"productId": "..."}
func (h *Handler) CreateAnalysis(c *gin.Context) {
	// Authentication is checked before the body is read
	if c.GetString(ctxKeyUserID) == "" {
		writeError(c, domain.ErrUnauthorized)
		return
	}

	maxBody := int64(base64.StdEncoding.EncodedLen(int(h.maxImageBytes))) + bodyOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)

	var req domain.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeTooLarge(c)
			return
		}
		writeKindError(c, http.StatusBadRequest, domain.KindInvalidRequest)
		return
	}

	image, size, err := normalizeImage(req.Image)
	if err != nil {
		writeKindError(c, http.StatusBadRequest, domain.KindInvalidRequest)
		return
	}
	if size > h.maxImageBytes {
		h.writeTooLarge(c)
		return
	}

	id, err := h.analyses.Analyze(c.Request.Context(), c.GetString(ctxKeyUserID), image)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, domain.AnalyzeResponse{ProductID: id})
}

// GetAnalysis returns one of the caller's analyses.
// GET /api/v1/analyses/:id
func (h *Handler) GetAnalysis(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		// Anonymous callers get 401 before id validation
		if c.GetString(ctxKeyUserID) == "" {
			writeError(c, domain.ErrUnauthorized)
			return
		}
		writeKindError(c, http.StatusNotFound, domain.KindNotFound)
		return
	}

	record, err := h.analyses.GetAnalysis(c.Request.Context(), c.GetString(ctxKeyUserID), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// ListAnalyses returns the caller's history, newest first.
// GET /api/v1/analyses?limit=N
func (h *Handler) ListAnalyses(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			writeKindError(c, http.StatusBadRequest, domain.KindInvalidRequest)
			return
		}
		limit = n
	}

	records, err := h.analyses.ListAnalyses(c.Request.Context(), c.GetString(ctxKeyUserID), limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analyses": records,
		"count":    len(records),
	})
}

func (h *Handler) writeTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
		Error: fmt.Sprintf("The image is too large. Please upload an image of at most %d MB.", h.maxImageBytes>>20),
		Code:  domain.KindInvalidRequest.String(),
	})
}

// normalizeImage returns the image as a data URI and its decoded size.
// Bare base64 is accepted and labelled as JPEG.
func normalizeImage(image string) (string, int64, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return "", 0, domain.ErrInvalidRequest
	}

	payload := image
	if strings.HasPrefix(image, "data:") {
		header, data, ok := strings.Cut(image, ",")
		if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
			return "", 0, domain.ErrInvalidRequest
		}
		payload = data
	} else {
		image = "data:image/jpeg;base64," + image
	}

	if payload == "" {
		return "", 0, domain.ErrInvalidRequest
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", 0, domain.ErrInvalidRequest
	}
	return image, int64(len(decoded)), nil
}

// statusFor maps an error kind to its HTTP status
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindInference:
		return http.StatusBadGateway
	case domain.KindInvalidExtraction, domain.KindInvalidSummary:
		return http.StatusUnprocessableEntity
	case domain.KindReferenceStore:
		return http.StatusServiceUnavailable
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	writeKindError(c, statusFor(kind), kind)
}

func writeKindError(c *gin.Context, status int, kind domain.ErrorKind) {
	c.JSON(status, ErrorResponse{
		Error: kind.Message(),
		Code:  kind.String(),
	})
}
