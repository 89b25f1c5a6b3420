package handlers

import (
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"giveaway/internal/giveaway"
	"giveaway/internal/models"
	"giveaway/internal/services"
	"giveaway/internal/transport"
)

const (
	tenantHeader = "X-Tenant-ID"
	tenantCookie = "tenant_id"
	tenantKey    = "tenantID"

	tenantCookieMaxAge = 30 * 24 * 60 * 60
)

// HTTPHandler holds the dependencies for the HTTP handlers, like the giveaway service.
type HTTPHandler struct {
	service *services.GiveawayService
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.GiveawayService) *HTTPHandler {
	return &HTTPHandler{
		service: service,
	}
}

// RegisterPublicRoutes registers the routes that need no tenant.
func (h *HTTPHandler) RegisterPublicRoutes(router gin.IRouter) {
	router.GET("/healthz", h.Health)
	router.POST("/verify", h.VerifyResult)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterTenantRoutes registers the routes scoped to the caller's tenant.
func (h *HTTPHandler) RegisterTenantRoutes(router gin.IRouter) {
	router.POST("/giveaways", h.StartGiveaway)
	router.GET("/giveaways", h.ListGiveaways)
	router.GET("/giveaways/:id", h.GetGiveaway)
	router.POST("/giveaways/:id/cancel", h.CancelGiveaway)
	router.POST("/giveaways/:id/commits", h.SubmitCommitment)
	router.POST("/giveaways/:id/reveals", h.SubmitReveal)
	router.GET("/giveaways/:id/result", h.GetResult)
	router.GET("/export-results-csv", h.ExportResultsCSV)
	router.DELETE("/session", h.ClearSession)
}

// TenantMiddleware identifies the tenant from the X-Tenant-ID header or the
// tenant cookie, issuing a new cookie when neither is present. The tenant
// is the organizer of the giveaways it starts.
func (h *HTTPHandler) TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(tenantHeader))
		if tenantID == "" {
			if cookie, err := c.Cookie(tenantCookie); err == nil && cookie != "" {
				tenantID = cookie
			}
		}
		if tenantID == "" {
			tenantID = uuid.NewString()
			c.SetCookie(tenantCookie, tenantID, tenantCookieMaxAge, "/", "", false, true)
		}
		c.Set(tenantKey, tenantID)
		c.Next()
	}
}

func tenantID(c *gin.Context) string {
	return c.GetString(tenantKey)
}

// respondError maps service errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrGiveawayNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrPhaseClosed):
		status = http.StatusConflict
	case errors.Is(err, giveaway.ErrEmptyParticipants),
		errors.Is(err, giveaway.ErrInvalidConfig),
		errors.Is(err, models.ErrMalformedMessage):
		status = http.StatusBadRequest
	case errors.Is(err, transport.ErrNotStarted), errors.Is(err, transport.ErrStopped):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logger.Errorf("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// Health reports liveness.
func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "nodeId": h.service.NodeID()})
}

// StartGiveaway starts a giveaway from a JSON body, or from a multipart
// form carrying a participant CSV (one participant per row, first column).
func (h *HTTPHandler) StartGiveaway(c *gin.Context) {
	var req services.StartRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		participants, err := readParticipantsCSV(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req = services.StartRequest{
			Title:        c.PostForm("title"),
			Participants: participants,
			CommitPhase:  c.PostForm("commitPhase"),
			RevealPhase:  c.PostForm("revealPhase"),
			Secret:       c.PostForm("secret"),
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st, err := h.service.StartGiveaway(tenantID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

// readParticipantsCSV reads the participantCSV form file.
func readParticipantsCSV(c *gin.Context) ([]string, error) {
	file, _, err := c.Request.FormFile("participantCSV")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	var participants []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
			logger.Infof("Skipping malformed participant CSV record: %v", record)
			continue
		}
		participants = append(participants, record[0])
	}
	return participants, nil
}

// ListGiveaways lists the tenant's giveaways.
func (h *HTTPHandler) ListGiveaways(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"giveaways": h.service.ListGiveaways(tenantID(c))})
}

// GetGiveaway returns the status and progress of one giveaway.
func (h *HTTPHandler) GetGiveaway(c *gin.Context) {
	st, err := h.service.GetGiveaway(tenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// CancelGiveaway aborts a giveaway.
func (h *HTTPHandler) CancelGiveaway(c *gin.Context) {
	st, err := h.service.CancelGiveaway(tenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// SubmitCommitment publishes a remote sender's commitment.
func (h *HTTPHandler) SubmitCommitment(c *gin.Context) {
	var msg models.CommitMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.SubmitCommitment(c.Request.Context(), tenantID(c), c.Param("id"), msg); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// SubmitReveal publishes a remote sender's reveal.
func (h *HTTPHandler) SubmitReveal(c *gin.Context) {
	var msg models.RevealMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.SubmitReveal(c.Request.Context(), tenantID(c), c.Param("id"), msg); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// GetResult returns the published result of a completed giveaway.
func (h *HTTPHandler) GetResult(c *gin.Context) {
	st, err := h.service.GetGiveaway(tenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	switch {
	case st.Result != nil:
		c.JSON(http.StatusOK, st.Result)
	case st.Progress.Phase == giveaway.PhaseCancelled:
		c.JSON(http.StatusGone, gin.H{"error": st.Error})
	default:
		c.JSON(http.StatusAccepted, st.Progress)
	}
}

// VerifyResult re-derives a posted result for the organizer query parameter.
func (h *HTTPHandler) VerifyResult(c *gin.Context) {
	organizer := c.Query("organizer")
	if organizer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organizer is required"})
		return
	}
	var result models.GiveawayResult
	if err := c.ShouldBindJSON(&result); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":       h.service.Verify(&result, organizer),
		"winnerValid": giveaway.VerifyWinner(&result),
	})
}

// ClearSession drops all giveaways of the tenant.
func (h *HTTPHandler) ClearSession(c *gin.Context) {
	h.service.ClearSession(tenantID(c))
	c.Status(http.StatusNoContent)
}

// ExportResultsCSV handles the request to download the giveaway results as a CSV file.
func (h *HTTPHandler) ExportResultsCSV(c *gin.Context) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment;filename=giveaway_results.csv")

	// Add BOM to ensure UTF-8 compatibility in Excel
	c.Writer.Write([]byte("\xef\xbb\xbf"))

	w := csv.NewWriter(c.Writer)

	// Write header
	if err := w.Write([]string{"giveaway_id", "winner", "winner_index", "participants", "timestamp", "random_seed", "verification_hash", "valid_reveals"}); err != nil {
		logger.Infof("Error writing CSV header: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
		return
	}

	// Write data
	for _, result := range h.service.Results(tenantID(c)) {
		row := []string{
			result.GiveawayID,
			result.Winner,
			strconv.Itoa(result.WinnerIndex),
			strconv.Itoa(len(result.Participants)),
			time.UnixMilli(result.Timestamp).UTC().Format(time.RFC3339),
			result.RandomSeed,
			result.VerificationHash,
			strconv.Itoa(len(result.Reveals)),
		}
		if err := w.Write(row); err != nil {
			logger.Infof("Error writing CSV row: %v", err)
			c.String(http.StatusInternalServerError, "Error writing CSV")
			return
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		logger.Infof("Error flushing CSV writer: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
	}
}
