package httpapi

import (
	"errors"
	"net/http"
	"time"

	"resilience-platform/internal/action"
	"resilience-platform/internal/aiassist"
	"resilience-platform/internal/auth"
	"resilience-platform/internal/decision"
	"resilience-platform/internal/escalation"
	"resilience-platform/internal/event"
	"resilience-platform/internal/incident"
	"resilience-platform/internal/killswitch"
	"resilience-platform/internal/retry"
	"resilience-platform/internal/safety"
	"resilience-platform/internal/vendorguard"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth        *auth.Manager
	Ingestion   *event.IngestionService
	Detector    *incident.Detector
	Manager     *incident.Manager
	Incidents   incident.Repository
	DecisionLog decision.Repository
	Retry       *retry.Coordinator
	Breaker     *vendorguard.Breaker
	Vendors     vendorguard.Repository
	Actions     *action.StateMachine
	KillSwitch  *killswitch.Service
	RateLimit   *safety.RateLimiter
	Escalation  *escalation.Handler
	Similar     aiassist.SimilaritySearcher
	Classify    aiassist.Classifier
	Decisions   *decision.Service
}

func tenantFromContext(c *gin.Context) (uuid.UUID, bool) {
	raw, err := auth.TenantID(c.Request.Context())
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// --- Auth ---

type loginRequest struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

// Login issues an access token.
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
	if req.UserID == "" || req.TenantID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, tenant_id, role required"})
		return
	}
	token, err := h.Auth.IssueAccessToken(time.Now(), req.UserID, req.TenantID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

// --- Events ---

type ingestRequest struct {
	WorkflowID     string         `json:"workflow_id"`
	EventType      string         `json:"event_type"`
	Payload        map[string]any `json:"payload"`
	IdempotencyKey string         `json:"idempotency_key"`
	OccurredAt     time.Time      `json:"occurred_at"`
	SchemaVersion  string         `json:"schema_version"`
}

// IngestEvent accepts a workflow event and runs failure detection on it.
func (h Handlers) IngestEvent(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}

	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	workflowID, err := uuid.Parse(req.WorkflowID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "workflow_id must be a uuid"})
		return
	}

	e, err := h.Ingestion.Ingest(c.Request.Context(), event.IngestRequest{
		TenantID:       tenantID,
		WorkflowID:     workflowID,
		EventType:      req.EventType,
		Payload:        req.Payload,
		IdempotencyKey: req.IdempotencyKey,
		OccurredAt:     req.OccurredAt,
		SchemaVersion:  req.SchemaVersion,
	})
	if err != nil {
		c.AbortWithStatusJSON(ingestStatus(err), gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"event": e}
	if h.Detector != nil {
		result, processed, err := h.Detector.ProcessEvent(c.Request.Context(), e)
		if err == nil && processed {
			if result.ShouldEscalate && h.Escalation != nil {
				if updated, err := h.Escalation.Escalate(c.Request.Context(), result.Incident, "correlation threshold reached"); err == nil {
					result.Incident = updated
				}
			}
			resp["incident"] = result.Incident
			resp["incident_created"] = result.Created
		}
	}
	c.JSON(http.StatusAccepted, resp)
}

func ingestStatus(err error) int {
	switch {
	case errors.Is(err, event.ErrInvalidEvent), errors.Is(err, event.ErrUnsupportedSchema):
		return http.StatusBadRequest
	case errors.Is(err, event.ErrTenantNotFound), errors.Is(err, event.ErrWorkflowNotFound):
		return http.StatusNotFound
	case errors.Is(err, event.ErrTenantInactive), errors.Is(err, event.ErrKillSwitchActive):
		return http.StatusForbidden
	case errors.Is(err, event.ErrDuplicateIdempotencyKey):
		return http.StatusConflict
	case errors.Is(err, event.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// --- Incidents ---

func (h Handlers) GetIncident(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	id, err := uuid.Parse(c.Param("incident_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "incident_id must be a uuid"})
		return
	}
	inc, found, err := h.Incidents.Get(c.Request.Context(), id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "incident lookup failed"})
		return
	}
	if !found || inc.TenantID != tenantID {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return
	}
	c.JSON(http.StatusOK, inc)
}

func (h Handlers) ListIncidents(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	status := incident.Status(c.DefaultQuery("status", string(incident.StatusDetected)))
	incidents, err := h.Incidents.ListByStatus(c.Request.Context(), tenantID, status)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "incident listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": incidents})
}

type transitionRequest struct {
	Notes  string `json:"notes,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// TransitionIncident applies a lifecycle transition named by the route.
func (h Handlers) TransitionIncident(target incident.Status) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := tenantFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
			return
		}
		id, err := uuid.Parse(c.Param("incident_id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "incident_id must be a uuid"})
			return
		}
		inc, found, err := h.Incidents.Get(c.Request.Context(), id)
		if err != nil || !found || inc.TenantID != tenantID {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "incident not found"})
			return
		}

		var req transitionRequest
		_ = c.ShouldBindJSON(&req)

		var updated incident.Incident
		switch target {
		case incident.StatusAnalyzing:
			updated, err = h.Manager.TransitionToAnalyzing(c.Request.Context(), id)
		case incident.StatusResolved:
			updated, err = h.Manager.Resolve(c.Request.Context(), id, req.Notes)
		case incident.StatusEscalated:
			updated, err = h.Escalation.Escalate(c.Request.Context(), inc, req.Reason)
		case incident.StatusIgnored:
			updated, err = h.Manager.Ignore(c.Request.Context(), id, req.Reason)
		default:
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unsupported transition"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "transition failed"})
			return
		}
		if updated.Status != target {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "transition not allowed", "incident": updated})
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func (h Handlers) ListDecisions(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	id, err := uuid.Parse(c.Param("incident_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "incident_id must be a uuid"})
		return
	}
	inc, found, err := h.Incidents.Get(c.Request.Context(), id)
	if err != nil || !found || inc.TenantID != tenantID {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return
	}
	decisions, err := h.DecisionLog.ListByIncident(c.Request.Context(), id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "decision listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": decisions})
}

func (h Handlers) SimilarIncidents(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	id, err := uuid.Parse(c.Param("incident_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "incident_id must be a uuid"})
		return
	}
	inc, found, err := h.Incidents.Get(c.Request.Context(), id)
	if err != nil || !found || inc.TenantID != tenantID {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return
	}
	matches, err := h.Similar.FindSimilar(c.Request.Context(), tenantID, inc.ErrorSignature, 5)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "similarity search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

// ClassifyIncident runs the classifier over an incident and records the
// outcome as an ai_assisted decision.
func (h Handlers) ClassifyIncident(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	id, err := uuid.Parse(c.Param("incident_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "incident_id must be a uuid"})
		return
	}
	inc, found, err := h.Incidents.Get(c.Request.Context(), id)
	if err != nil || !found || inc.TenantID != tenantID {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return
	}

	result, err := h.Classify.Classify(c.Request.Context(), inc)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "classification failed"})
		return
	}
	d, err := h.Decisions.RecordAIAssisted(c.Request.Context(), id, result.Reasoning, result.Confidence,
		map[string]any{"category": result.Category})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "decision logging failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"classification": result, "decision": d})
}

// --- Retry evaluation ---

type retryEvaluationRequest struct {
	ErrorCode  string `json:"error_code"`
	RetryCount int    `json:"retry_count"`
}

// EvaluateRetry runs the full retry gauntlet for an incident.
func (h Handlers) EvaluateRetry(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	id, err := uuid.Parse(c.Param("incident_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "incident_id must be a uuid"})
		return
	}
	inc, found, err := h.Incidents.Get(c.Request.Context(), id)
	if err != nil || !found || inc.TenantID != tenantID {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return
	}

	var req retryEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ErrorCode == "" {
		if code, ok := inc.Metadata["error_code"].(string); ok {
			req.ErrorCode = code
		}
	}
	if req.ErrorCode == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "error_code required"})
		return
	}

	if inc.VendorID != nil {
		blocked, reason, err := h.KillSwitch.IsVendorBlocked(c.Request.Context(), *inc.VendorID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "kill switch check failed"})
			return
		}
		if blocked {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "kill switch active", "reason": reason})
			return
		}
	}

	verdict, err := h.Retry.EvaluateRetry(c.Request.Context(), inc, req.ErrorCode, req.RetryCount)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "retry evaluation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"allowed":    verdict.Allowed,
		"denied_by":  verdict.DeniedBy,
		"evaluation": verdict.Evaluation,
		"decision":   verdict.Decision,
		"action":     verdict.Action,
	})
}

// --- Vendors ---

func (h Handlers) GetVendorBreaker(c *gin.Context) {
	id, err := uuid.Parse(c.Param("vendor_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "vendor_id must be a uuid"})
		return
	}
	vendor, found, err := h.Vendors.Get(c.Request.Context(), id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "vendor lookup failed"})
		return
	}
	if !found {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "vendor not found"})
		return
	}
	state := h.Breaker.CheckState(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{
		"vendor_id":     vendor.ID,
		"name":          vendor.Name,
		"state":         state,
		"failure_count": vendor.FailureCount,
	})
}

type vendorResultRequest struct {
	Success bool `json:"success"`
}

// ReportVendorResult feeds a call outcome into the circuit breaker. A
// half-open vendor treats the outcome as its probe result.
func (h Handlers) ReportVendorResult(c *gin.Context) {
	id, err := uuid.Parse(c.Param("vendor_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "vendor_id must be a uuid"})
		return
	}
	var req vendorResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var state vendorguard.State
	if h.Breaker.CheckState(c.Request.Context(), id) == vendorguard.StateHalfOpen {
		state = h.Breaker.HandleHalfOpenResult(c.Request.Context(), id, req.Success)
	} else if req.Success {
		state = h.Breaker.RecordSuccess(c.Request.Context(), id)
	} else {
		state = h.Breaker.RecordFailure(c.Request.Context(), id)
	}
	c.JSON(http.StatusOK, gin.H{"vendor_id": id, "state": state})
}

func (h Handlers) CheckVendorRateLimit(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	name := c.Param("vendor_name")
	if name == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "vendor_name required"})
		return
	}
	result := h.RateLimit.CheckRateLimit(c.Request.Context(), name, tenantID)
	status := http.StatusOK
	if !result.Allowed {
		status = http.StatusTooManyRequests
	}
	c.JSON(status, result)
}

func (h Handlers) ConsumeVendorToken(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	name := c.Param("vendor_name")
	if name == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "vendor_name required"})
		return
	}
	if !h.RateLimit.ConsumeToken(c.Request.Context(), name, tenantID) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate limit exceeded",
			"retry_after": h.RateLimit.RetryAfter(c.Request.Context(), name, tenantID),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowed": true})
}

// --- Actions ---

type actionTransitionRequest struct {
	To           action.Status  `json:"to"`
	Result       map[string]any `json:"result,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// TransitionAction moves an action through its lifecycle. Invalid
// transitions come back as 409 with the unchanged action.
func (h Handlers) TransitionAction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("action_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "action_id must be a uuid"})
		return
	}
	var req actionTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	a, applied, err := h.Actions.Transition(c.Request.Context(), id, req.To, req.Result, req.ErrorMessage)
	if err != nil {
		if errors.Is(err, action.ErrActionNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "action not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "transition failed"})
		return
	}
	if !applied {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "transition not allowed", "action": a})
		return
	}
	c.JSON(http.StatusOK, a)
}

// --- Kill switches (operator only) ---

type killSwitchRequest struct {
	Scope    killswitch.Scope `json:"scope"`
	TargetID string           `json:"target_id,omitempty"`
	Reason   string           `json:"reason"`
}

func (h Handlers) ActivateKillSwitch(c *gin.Context) {
	var req killSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var targetID *uuid.UUID
	if req.TargetID != "" {
		id, err := uuid.Parse(req.TargetID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "target_id must be a uuid"})
			return
		}
		targetID = &id
	}
	activatedBy, _ := auth.UserID(c.Request.Context())

	sw, err := h.KillSwitch.Activate(c.Request.Context(), req.Scope, targetID, req.Reason, activatedBy)
	if err != nil {
		if errors.Is(err, killswitch.ErrInvalidScope) || errors.Is(err, killswitch.ErrMissingTarget) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "activation failed"})
		return
	}
	c.JSON(http.StatusCreated, sw)
}

func (h Handlers) DeactivateKillSwitch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("switch_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "switch_id must be a uuid"})
		return
	}
	sw, err := h.KillSwitch.Deactivate(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, killswitch.ErrSwitchNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "switch not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "deactivation failed"})
		return
	}
	c.JSON(http.StatusOK, sw)
}

func (h Handlers) ListKillSwitches(c *gin.Context) {
	switches, err := h.KillSwitch.ListActive(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"switches": switches})
}
