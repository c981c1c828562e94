// Package api is the HTTP boundary: it maps requests onto the ledger, the
// workflow gateway, outreach and the signal bus, and maps their errors onto
// status codes.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/djlord-it/talentledger/internal/domain"
	"github.com/djlord-it/talentledger/internal/ledger"
	"github.com/djlord-it/talentledger/internal/logging"
	"github.com/djlord-it/talentledger/internal/outreach"
	"github.com/djlord-it/talentledger/internal/workflow"
)

// HeaderRecruiterID carries the authenticated recruiter, set by the
// upstream auth layer.
const HeaderRecruiterID = "X-Recruiter-ID"

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

type Sessions interface {
	Get(ctx context.Context, recruiterID uuid.UUID) (*ledger.Manager, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.DispatchRequest) (workflow.Result, error)
}

type EmailSender interface {
	SendCandidateEmail(ctx context.Context, recruiterID uuid.UUID, req outreach.EmailRequest) error
}

type SignalPublisher interface {
	Publish(ctx context.Context, sig domain.Signal)
}

// DispatchLister reads the dispatch log, newest first.
type DispatchLister interface {
	ListDispatchRecords(ctx context.Context, limit, offset int) ([]domain.DispatchRecord, error)
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	sessions    Sessions
	gateway     Dispatcher
	emails      EmailSender
	signals     SignalPublisher
	db          HealthChecker
	dispatchLog DispatchLister
	logger      *zap.Logger

	defaultEndpoint string
}

func NewHandler(sessions Sessions, gateway Dispatcher, emails EmailSender, signals SignalPublisher) *Handler {
	return &Handler{
		sessions: sessions,
		gateway:  gateway,
		emails:   emails,
		signals:  signals,
		logger:   zap.NewNop().Named("api"),
	}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithDispatchLog enables GET /workflows/dispatches.
func (h *Handler) WithDispatchLog(log DispatchLister) *Handler {
	h.dispatchLog = log
	return h
}

func (h *Handler) WithLogger(logger *zap.Logger) *Handler {
	h.logger = logging.Component(logger, "api")
	return h
}

// WithDefaultEndpoint sets the target used when a dispatch request names none.
func (h *Handler) WithDefaultEndpoint(endpoint string) *Handler {
	h.defaultEndpoint = endpoint
	return h
}

// Router builds the gin engine serving every route.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(recovery(h.logger), requestLogger(h.logger), cors(), limitBody(maxRequestBodySize))

	r.GET("/health", h.health)

	r.GET("/interactions", h.listInteractions)
	r.POST("/interactions", h.appendInteraction)
	r.POST("/workflows/dispatch", h.dispatchWorkflow)
	r.GET("/workflows/dispatches", h.listDispatches)
	r.POST("/candidate-emails", h.sendCandidateEmail)
	r.POST("/signals/pre-screening-completed", h.publishPreScreening)

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not found")
	})
	return r
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(c *gin.Context) {
	if c.Query("verbose") != "true" || h.db == nil {
		c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	status := http.StatusOK
	if resp.Status == "degraded" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (h *Handler) listInteractions(c *gin.Context) {
	recruiterID, ok := recruiter(c)
	if !ok {
		return
	}

	var candidateID uuid.UUID
	if raw := c.Query("candidate_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid candidate_id")
			return
		}
		candidateID = id
	}

	m, err := h.sessions.Get(c.Request.Context(), recruiterID)
	if err != nil {
		h.internalError(c, "load interactions", err)
		return
	}

	var records []domain.InteractionRecord
	switch {
	case candidateID != uuid.Nil:
		records = m.ByCandidate(candidateID)
	case c.Query("refresh") == "true":
		records, err = m.Load(c.Request.Context(), recruiterID)
		if err != nil {
			h.internalError(c, "load interactions", err)
			return
		}
	default:
		records = m.Records()
	}

	resp := ListInteractionsResponse{Interactions: make([]InteractionResponse, len(records))}
	for i, rec := range records {
		resp.Interactions[i] = toInteractionResponse(rec)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) appendInteraction(c *gin.Context) {
	recruiterID, ok := recruiter(c)
	if !ok {
		return
	}

	var req AppendInteractionRequest
	if !bindJSON(c, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.sessions.Get(c.Request.Context(), recruiterID)
	if err != nil {
		h.internalError(c, "append interaction", err)
		return
	}

	rec, err := m.Append(c.Request.Context(), in)
	if err != nil {
		var verr *ledger.ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(c, http.StatusBadRequest, verr.Error())
		case errors.Is(err, ledger.ErrUnauthorized):
			writeError(c, http.StatusUnauthorized, "unauthorized")
		default:
			h.internalError(c, "append interaction", err)
		}
		return
	}
	c.JSON(http.StatusCreated, toInteractionResponse(rec))
}

func (h *Handler) dispatchWorkflow(c *gin.Context) {
	var req DispatchRequest
	if !bindJSON(c, &req) {
		return
	}
	dr, err := req.toDomain(h.defaultEndpoint)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.gateway.Dispatch(c.Request.Context(), dr)
	if err != nil {
		var (
			verr   *workflow.ValidationError
			cfgErr *workflow.ConfigurationError
			lookup *workflow.EntityLookupError
			remote *workflow.RemoteCallError
		)
		switch {
		case errors.As(err, &verr), errors.As(err, &cfgErr):
			writeError(c, http.StatusBadRequest, err.Error())
		case errors.As(err, &lookup) && lookup.NotFound():
			writeError(c, http.StatusNotFound, "candidate not found")
		case errors.As(err, &remote):
			h.logger.Warn("dispatch failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, DispatchErrorResponse{
				Error:      "workflow endpoint call failed",
				StatusCode: remote.StatusCode,
			})
		default:
			h.internalError(c, "dispatch workflow", err)
		}
		return
	}
	c.JSON(http.StatusOK, toDispatchResponse(result))
}

func (h *Handler) listDispatches(c *gin.Context) {
	if h.dispatchLog == nil {
		writeError(c, http.StatusNotFound, "not found")
		return
	}

	limit, offset, err := parsePagination(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.dispatchLog.ListDispatchRecords(c.Request.Context(), limit, offset)
	if err != nil {
		h.internalError(c, "list dispatches", err)
		return
	}

	resp := ListDispatchesResponse{Dispatches: make([]DispatchRecordResponse, len(records))}
	for i, rec := range records {
		resp.Dispatches[i] = toDispatchRecordResponse(rec)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) sendCandidateEmail(c *gin.Context) {
	var req CandidateEmailRequest
	if !bindJSON(c, &req) {
		return
	}
	candidateID, err := parseOptionalUUID(req.CandidateID)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid candidateId")
		return
	}

	// Sending does not require a bound recruiter; the ledger append is
	// skipped without one.
	recruiterID, _ := uuid.Parse(c.GetHeader(HeaderRecruiterID))

	err = h.emails.SendCandidateEmail(c.Request.Context(), recruiterID, outreach.EmailRequest{
		CandidateID: candidateID,
		To:          req.CandidateEmail,
		Subject:     req.Subject,
		Message:     req.Message,
	})
	if err != nil {
		var missing *outreach.MissingFieldsError
		if errors.As(err, &missing) {
			c.JSON(http.StatusBadRequest, MissingFieldsResponse{
				Error:   "missing required fields",
				Missing: missing.Fields,
			})
			return
		}
		h.internalError(c, "send candidate email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) publishPreScreening(c *gin.Context) {
	var payload map[string]any
	if !bindJSON(c, &payload) {
		return
	}
	if _, err := domain.DecodePreScreeningCompleted(payload); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	h.signals.Publish(c.Request.Context(), domain.Signal{
		Name:    domain.SignalPreScreeningCompleted,
		Payload: payload,
	})
	c.Status(http.StatusAccepted)
}

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// parsePagination extracts and validates limit/offset query parameters.
func parsePagination(c *gin.Context) (limit, offset int, err error) {
	limit = DefaultLimit

	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return 0, 0, fmt.Errorf("invalid limit")
		}
		if limit > MaxLimit {
			return 0, 0, fmt.Errorf("limit exceeds maximum of %d", MaxLimit)
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if raw := c.Query("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset")
		}
	}
	return limit, offset, nil
}

// internalError logs err and answers with a generic 500.
func (h *Handler) internalError(c *gin.Context, op string, err error) {
	h.logger.Error(op+" failed", zap.Error(err))
	writeError(c, http.StatusInternalServerError, "internal error")
}

// recruiter returns the recruiter bound to the request, answering 401 when
// there is none.
func recruiter(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetHeader(HeaderRecruiterID))
	if err != nil || id == uuid.Nil {
		writeError(c, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(c, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, ErrorResponse{Error: msg})
}
