package scan

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nickbanetti/vbs/internal/auth"
	"github.com/nickbanetti/vbs/internal/tabular"
	"github.com/nickbanetti/vbs/internal/vision"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString("userID")
	admin := c.GetString("userRole") == auth.RoleAdmin
	return userID, admin
}

func scanID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scan id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) replyScanError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// --------------------------------------------------
// Upload board photo
// --------------------------------------------------
func (h *Handler) Upload(c *gin.Context) {
	userID, _ := currentUser(c)

	file, header, err := c.Request.FormFile("board_image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "board_image is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}

	id, objectKey, err := h.service.Upload(
		c.Request.Context(),
		userID,
		data,
		header.Filename,
		c.PostForm("model"),
	)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"scan_id":    id,
		"object_key": objectKey,
		"status":     StatusUploaded,
		"message":    "Board uploaded. Analysis will start automatically.",
	})
}

// --------------------------------------------------
// Status polling
// --------------------------------------------------
func (h *Handler) GetStatus(c *gin.Context) {
	id, ok := scanID(c)
	if !ok {
		return
	}

	userID, admin := currentUser(c)
	sc, err := h.service.GetOwned(c.Request.Context(), id, userID, admin)
	if err != nil {
		h.replyScanError(c, err)
		return
	}

	resp := gin.H{
		"scan_id": sc.ID,
		"status":  sc.Status,
	}
	if sc.FailureReason != nil {
		resp["failure_reason"] = *sc.FailureReason
	}
	c.JSON(http.StatusOK, resp)
}

// --------------------------------------------------
// Retry a failed scan
// --------------------------------------------------
func (h *Handler) Retry(c *gin.Context) {
	id, ok := scanID(c)
	if !ok {
		return
	}

	userID, admin := currentUser(c)
	if err := h.service.Retry(c.Request.Context(), id, userID, admin); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
			h.replyScanError(c, err)
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scan_id": id,
		"status":  StatusUploaded,
		"message": "Scan queued for re-analysis.",
	})
}

// --------------------------------------------------
// Results (on-screen preview)
// --------------------------------------------------
func (h *Handler) Results(c *gin.Context) {
	id, ok := scanID(c)
	if !ok {
		return
	}

	userID, admin := currentUser(c)
	sc, err := h.service.GetOwned(c.Request.Context(), id, userID, admin)
	if err != nil {
		h.replyScanError(c, err)
		return
	}

	if sc.Status != StatusDone {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "scan is not finished",
			"status": sc.Status,
		})
		return
	}

	c.JSON(http.StatusOK, resultsPayload(sc.ID, sc.Structure, sc.Result, sc.Warnings))
}

// resultsPayload renders both sections, substituting an explicit
// no-data message for empty ones.
func resultsPayload(id int, structure *vision.StructureResult, result *vision.ExtractionResult, warnings []string) gin.H {
	resp := gin.H{
		"structure": structure,
	}
	if id > 0 {
		resp["scan_id"] = id
	}

	if len(result.VotingData) > 0 {
		resp["voting_data"] = result.VotingData
	} else {
		resp["voting_message"] = "no voting/matrix data detected"
	}

	if len(result.Notes) > 0 {
		resp["notes"] = result.Notes
	} else {
		resp["notes_message"] = "no sticky notes detected"
	}

	if len(warnings) > 0 {
		resp["warnings"] = warnings
	}

	return resp
}

// --------------------------------------------------
// CSV downloads
// --------------------------------------------------
func (h *Handler) doneScan(c *gin.Context) (*Scan, bool) {
	id, ok := scanID(c)
	if !ok {
		return nil, false
	}

	userID, admin := currentUser(c)
	sc, err := h.service.GetOwned(c.Request.Context(), id, userID, admin)
	if err != nil {
		h.replyScanError(c, err)
		return nil, false
	}
	if sc.Status != StatusDone || sc.Result == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "scan is not finished", "status": sc.Status})
		return nil, false
	}
	return sc, true
}

func (h *Handler) ExportGridCSV(c *gin.Context) {
	sc, ok := h.doneScan(c)
	if !ok {
		return
	}

	out, err := tabular.GridOrRawCSV(sc.Result.VotingData)
	if errors.Is(err, tabular.ErrNoData) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no voting/matrix data detected"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="voting_grid.csv"`)
	c.Data(http.StatusOK, "text/csv", out)
}

func (h *Handler) ExportNotesCSV(c *gin.Context) {
	sc, ok := h.doneScan(c)
	if !ok {
		return
	}

	out, err := tabular.NotesCSV(sc.Result.Notes)
	if errors.Is(err, tabular.ErrNoData) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no sticky notes detected"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="notes.csv"`)
	c.Data(http.StatusOK, "text/csv", out)
}

// --------------------------------------------------
// Synchronous analysis
// --------------------------------------------------
func (h *Handler) Analyze(c *gin.Context) {
	apiKey := c.GetHeader("X-Api-Key")
	if apiKey == "" {
		apiKey = h.service.apiKey
	}
	if apiKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "api key required; no analysis attempted"})
		return
	}

	model := c.PostForm("model")
	if model == "" {
		model = vision.DefaultModel
	}
	if !vision.ValidModel(model) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown model " + model})
		return
	}

	file, header, err := c.Request.FormFile("board_image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "board_image is required; no analysis attempted"})
		return
	}
	defer file.Close()

	if err := ValidateFileExtension(header.Filename); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}

	outcome, err := h.service.AnalyzeNow(c.Request.Context(), apiKey, model, data, nil)
	if err != nil {
		var stageErr *vision.StageError
		if errors.As(err, &stageErr) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error": stageErr.Error(),
				"stage": stageErr.Stage,
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resultsPayload(0, outcome.Structure, outcome.Result, outcome.Warnings))
}

// --------------------------------------------------
// Admin: failed scans
// --------------------------------------------------
func (h *Handler) AdminListFailed(c *gin.Context) {
	scans, err := h.service.ListFailed(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"failed_scans": scans})
}

// --------------------------------------------------
// List my scans
// --------------------------------------------------
func (h *Handler) ListMine(c *gin.Context) {
	userID, _ := currentUser(c)

	scans, err := h.service.ListMine(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"scans": scans})
}
