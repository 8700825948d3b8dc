package httpapi

import (
	"errors"
	"net/http"
	"time"

	"dialer-platform/internal/audio"
	"dialer-platform/internal/audit"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/call"
	"dialer-platform/internal/conference"
	"dialer-platform/internal/dialer"
	"dialer-platform/internal/queue"
	"dialer-platform/internal/reporting"
	"dialer-platform/internal/telephony"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth       *auth.Manager
	Calls      *call.Manager
	Queue      *queue.Service
	Dialer     *dialer.Controller
	Conference *conference.Coordinator
	Reports    *reporting.Service

	// Audit is optional; nil disables the trail.
	Audit *audit.Service
}

// auditLog appends a control-action event best-effort. Identity comes from
// the verified token, the IP from gin's client resolution.
func (h Handlers) auditLog(c *gin.Context, typ audit.EventType, callID, message string) {
	if h.Audit == nil {
		return
	}
	ctx := c.Request.Context()
	teamID, _ := auth.TeamID(ctx)
	agentID, _ := auth.AgentID(ctx)
	role, _ := auth.Role(ctx)
	_ = h.Audit.Append(ctx, audit.Event{
		TeamID:       teamID,
		Type:         typ,
		ActorAgentID: agentID,
		ActorRole:    role,
		IPAddress:    c.ClientIP(),
		CallID:       callID,
		Message:      message,
	})
}

// --- Auth ---

type loginRequest struct {
	AgentID string `json:"agent_id"`
	TeamID  string `json:"team_id"`
	Role    string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.AgentID == "" || req.TeamID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "agent_id, team_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.AgentID, req.TeamID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

type placeCallRequest struct {
	PhoneNumber string `json:"phone_number"`
	SubjectID   string `json:"subject_id"`
}

func (h Handlers) PlaceCall(c *gin.Context) {
	var req placeCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s, err := h.Calls.Place(c.Request.Context(), req.PhoneNumber, req.SubjectID)
	if err != nil {
		abortCallError(c, err)
		return
	}
	h.auditLog(c, audit.EventTypeCallControl, s.ID, "place call")
	c.JSON(http.StatusCreated, s)
}

func (h Handlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.Calls.Sessions()})
}

func (h Handlers) Hangup(c *gin.Context) {
	subjectID := c.Param("subject_id")
	if subjectID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "subject_id required"})
		return
	}
	ended := h.Calls.Hangup(c.Request.Context(), subjectID)
	if ended {
		h.auditLog(c, audit.EventTypeCallControl, subjectID, "hangup")
	}
	c.JSON(http.StatusOK, gin.H{"ended": ended})
}

func (h Handlers) HangupAll(c *gin.Context) {
	ended := h.Calls.HangupAll(c.Request.Context())
	h.auditLog(c, audit.EventTypeCallControl, "", "hangup all")
	c.JSON(http.StatusOK, gin.H{"ended": ended})
}

type toggleRequest struct {
	// nil means flip, non-nil sets explicitly
	Value *bool `json:"value"`
}

func (h Handlers) ToggleMute(c *gin.Context) {
	subjectID := c.Param("subject_id")
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !h.Calls.ToggleMute(c.Request.Context(), subjectID, req.Value) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no active call"})
		return
	}
	s, _ := h.Calls.Session(subjectID)
	c.JSON(http.StatusOK, s)
}

func (h Handlers) ToggleSpeaker(c *gin.Context) {
	subjectID := c.Param("subject_id")
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !h.Calls.ToggleSpeaker(subjectID, req.Value) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no active call"})
		return
	}
	s, _ := h.Calls.Session(subjectID)
	c.JSON(http.StatusOK, s)
}

// --- Conference ---

type joinConferenceRequest struct {
	Name string `json:"name"`
}

func (h Handlers) JoinConference(c *gin.Context) {
	var req joinConferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Conference.Join(c.Request.Context(), req.Name); err != nil {
		if errors.Is(err, conference.ErrRelayDisconnected) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "media relay disconnected"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conference": req.Name})
}

// --- Queue ---

type enqueueRequest struct {
	ContactID string `json:"contact_id"`
	Priority  int    `json:"priority"`
}

func (h Handlers) Enqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ContactID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "contact_id required"})
		return
	}
	e, err := h.Queue.Enqueue(c.Request.Context(), req.ContactID, req.Priority)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "enqueue failed"})
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h Handlers) DequeueNext(c *gin.Context) {
	agentID, err := auth.AgentID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "agent_id required"})
		return
	}
	e, ok, err := h.Queue.DequeueNext(c.Request.Context(), agentID)
	if err != nil {
		abortQueueError(c, err)
		return
	}
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h Handlers) PendingCount(c *gin.Context) {
	n, err := h.Queue.PendingCount(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": n})
}

// --- Agents ---

type registerAgentRequest struct {
	Name string `json:"name"`
}

func (h Handlers) RegisterAgent(c *gin.Context) {
	agentID, err := auth.AgentID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "agent_id required"})
		return
	}
	var req registerAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	a, err := h.Queue.RegisterAgent(c.Request.Context(), agentID, req.Name)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "register failed"})
		return
	}
	h.auditLog(c, audit.EventTypeAgentPresence, "", "agent registered")
	c.JSON(http.StatusOK, a)
}

func (h Handlers) AgentOffline(c *gin.Context) {
	agentID, err := auth.AgentID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "agent_id required"})
		return
	}
	if err := h.Queue.SetAgentOffline(c.Request.Context(), agentID); err != nil {
		abortQueueError(c, err)
		return
	}
	h.auditLog(c, audit.EventTypeAgentPresence, "", "agent offline")
	c.Status(http.StatusNoContent)
}

func (h Handlers) ListAgents(c *gin.Context) {
	agents, err := h.Queue.ListAgents(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

// --- Auto dialer ---

type startDialerRequest struct {
	MaxConcurrent int `json:"max_concurrent"`
}

func (h Handlers) StartDialer(c *gin.Context) {
	agentID, err := auth.AgentID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "agent_id required"})
		return
	}
	var req startDialerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	placed, err := h.Dialer.StartDialer(c.Request.Context(), agentID, req.MaxConcurrent)
	if err != nil {
		abortQueueError(c, err)
		return
	}
	h.auditLog(c, audit.EventTypeDialerControl, "", "auto dialer started")
	c.JSON(http.StatusOK, gin.H{"placed": placed, "enabled": true})
}

func (h Handlers) StopDialer(c *gin.Context) {
	h.Dialer.StopDialer()
	h.auditLog(c, audit.EventTypeDialerControl, "", "auto dialer stopped")
	c.JSON(http.StatusOK, gin.H{"enabled": false})
}

// --- Reporting ---

// DialSummary aggregates finished dial attempts over a time window.
// Query params: from, to (RFC 3339, required), agent_id (optional).
func (h Handlers) DialSummary(c *gin.Context) {
	from, errFrom := time.Parse(time.RFC3339, c.Query("from"))
	to, errTo := time.Parse(time.RFC3339, c.Query("to"))
	if errFrom != nil || errTo != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from and to must be RFC 3339 timestamps"})
		return
	}
	sum, err := h.Reports.Summary(c.Request.Context(), reporting.SummaryRequest{
		AgentID: c.Query("agent_id"),
		Range:   reporting.TimeRange{From: from, To: to},
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be after from"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// --- error mapping ---

func abortCallError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, call.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, audio.ErrMicrophoneUnavailable):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "microphone unavailable"})
	case errors.Is(err, call.ErrAlreadyInCall):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "already in an active call"})
	case errors.Is(err, telephony.ErrProviderRejected):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "provider rejected the call"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call placement failed"})
	}
}

func abortQueueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrAgentNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "agent not found"})
	case errors.Is(err, queue.ErrAgentBusy):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "agent is busy"})
	case errors.Is(err, queue.ErrAgentOffline):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "agent is offline"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "queue operation failed"})
	}
}
