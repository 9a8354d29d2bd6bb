package attempts

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"interview-backend/internal/shared/server/respond"
)

const maxResumeUpload = 10 << 20

// Handler wires HTTP handlers to the attempts service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches attempt routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/attempts", h.createAttempt)
	rg.GET("/attempts/:id", h.getAttempt)
	rg.GET("/subjects/:id/attempts", h.listAttempts)
	rg.POST("/subjects/:id/resumes", h.uploadResume)
}

func (h *Handler) createAttempt(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	attempt, err := h.Svc.Create(c.Request.Context(), in)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid attempt", verr.Fields)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create attempt", nil)
		return
	}

	respond.Created(c, gin.H{
		"attemptId": attempt.ID,
		"status":    attempt.Status,
	})
}

func (h *Handler) getAttempt(c *gin.Context) {
	attempt, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "attempt not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch attempt", nil)
		}
		return
	}
	respond.OK(c, attempt)
}

func (h *Handler) listAttempts(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	list, err := h.Svc.List(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list attempts", nil)
		return
	}

	resp := make([]gin.H, 0, len(list))
	for _, a := range list {
		item := gin.H{
			"attemptId":     a.ID,
			"positionId":    a.PositionID,
			"jobTitle":      a.JobTitle,
			"status":        a.Status,
			"questionCount": a.QuestionCount,
			"createdAt":     a.CreatedAt,
		}
		if a.Status == StatusCompleted {
			item["score"] = a.Score
			item["verdict"] = a.Verdict
			item["completedAt"] = a.CompletedAt
		}
		resp = append(resp, item)
	}
	respond.OK(c, resp)
}

func (h *Handler) uploadResume(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxResumeUpload)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", []FieldError{{Field: "file", Issue: "required"}})
		return
	}
	defer file.Close()

	obj, err := h.Svc.SaveResume(c.Request.Context(), c.Param("id"), header.Filename, file)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store resume", nil)
		return
	}
	respond.Created(c, gin.H{
		"resumeKey":   obj.Key,
		"size":        obj.Size,
		"contentType": obj.ContentType,
	})
}
