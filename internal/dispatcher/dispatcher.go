// Package dispatcher is the one public surface of the engine: a fixed set
// of named tools, each validated, guarded, routed, and audited the same
// way. Grounded on rcourtman-Pulse's ToolRegistry/Execute shape (a static
// map from name to handler, not a runtime-injected middleware stack) and
// emergent-company-specmcp's one-directory-per-tool layout, generalized
// into the explicit guard-chain composition Design Notes call for.
package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"tagcompliance/internal/audit"
	"tagcompliance/internal/dispatcher/schema"
	"tagcompliance/internal/errkind"
	"tagcompliance/internal/guardrails"
	"tagcompliance/internal/logging"
	"tagcompliance/internal/models"
)

// Handler is a thin per-tool adapter onto the compliance core.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Dispatcher composes the guard chain in front of the fixed tool surface.
type Dispatcher struct {
	schemas  *schema.Registry
	handlers map[string]Handler
	audit    *audit.Store

	bounds         guardrails.Bounds
	budget         *guardrails.BudgetTracker
	loop           *guardrails.LoopDetector
	budgetEnabled  bool
	loopEnabled    bool
	sanitizeEnabled bool
}

// Config carries the optional guardrail components. A nil BudgetTracker or
// LoopDetector disables that guard, matching spec.md §6's "all new
// features default to disabled".
type Config struct {
	Schemas         *schema.Registry
	AuditStore      *audit.Store
	Bounds          guardrails.Bounds
	Budget          *guardrails.BudgetTracker
	Loop            *guardrails.LoopDetector
	SanitizeEnabled bool
}

// New builds a Dispatcher with the given service as the source of every
// tool handler, and registers the fixed eight-tool surface.
func New(svc *Service, cfg Config) *Dispatcher {
	d := &Dispatcher{
		schemas:         cfg.Schemas,
		handlers:        make(map[string]Handler, 8),
		audit:           cfg.AuditStore,
		bounds:          cfg.Bounds,
		budget:          cfg.Budget,
		loop:            cfg.Loop,
		budgetEnabled:   cfg.Budget != nil,
		loopEnabled:     cfg.Loop != nil,
		sanitizeEnabled: cfg.SanitizeEnabled,
	}

	d.handlers[schema.CheckTagCompliance] = svc.CheckTagCompliance
	d.handlers[schema.FindUntaggedResources] = svc.FindUntaggedResources
	d.handlers[schema.ValidateResourceTags] = svc.ValidateResourceTags
	d.handlers[schema.GetCostAttributionGap] = svc.GetCostAttributionGap
	d.handlers[schema.SuggestTags] = svc.SuggestTags
	d.handlers[schema.GetTaggingPolicy] = svc.GetTaggingPolicy
	d.handlers[schema.GenerateComplianceReport] = svc.GenerateComplianceReport
	d.handlers[schema.GetViolationHistory] = svc.GetViolationHistory

	return d
}

// Response is the structured envelope every Dispatch call returns,
// regardless of success or rejection kind (Design Notes' tagged-variant
// ToolOutcome, rendered as a single JSON shape for transports).
type Response struct {
	CorrelationID string      `json:"correlation_id"`
	Status        string      `json:"status"` // "ok" | "rejected"
	Kind          string      `json:"kind,omitempty"`
	Result        interface{} `json:"result,omitempty"`
	Message       string      `json:"message,omitempty"`
}

// Dispatch runs the full guard chain for one tool invocation and returns
// exactly one Response, having appended exactly one audit entry.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID, toolName string, rawArgs map[string]interface{}, correlationID string) Response {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = logging.WithCorrelationID(ctx, correlationID)
	start := time.Now()

	if !d.schemas.Known(toolName) {
		return d.reject(ctx, start, correlationID, toolName, rawArgs, errkind.New(errkind.Validation, "unknown tool", nil))
	}

	if d.sanitizeEnabled {
		if err := guardrails.ValidateArgs(rawArgs, d.bounds); err != nil {
			return d.reject(ctx, start, correlationID, toolName, rawArgs, errkind.New(errkind.SecurityViolation, "argument bounds exceeded", err))
		}
		if matched, kind := guardrails.ScanStringFields(rawArgs); matched {
			return d.rejectSecurity(ctx, start, correlationID, toolName, kind)
		}
	}

	args, err := d.schemas.Validate(toolName, rawArgs)
	if err != nil {
		return d.reject(ctx, start, correlationID, toolName, rawArgs, errkind.New(errkind.Validation, "argument validation failed", err))
	}

	if d.budgetEnabled {
		exhausted, used, limit, berr := d.budget.Check(ctx, sessionID)
		if berr == nil && exhausted {
			return d.rejectStructured(ctx, start, correlationID, toolName, args, errkind.BudgetExhausted,
				"session call budget exhausted", used, limit)
		}
	}

	if d.loopEnabled {
		argsHash := guardrails.ArgsHash(args)
		detected, lerr := d.loop.Check(ctx, sessionID, toolName, argsHash)
		if lerr == nil && detected {
			return d.rejectStructured(ctx, start, correlationID, toolName, args, errkind.LoopDetected,
				"identical call blocked to break a potential loop", 0, 0)
		}
	}

	handler := d.handlers[toolName]
	result, herr := handler(ctx, args)
	if herr != nil {
		return d.reject(ctx, start, correlationID, toolName, args, herr)
	}

	response := Response{
		CorrelationID: correlationID,
		Status:        "ok",
		Result:        result,
	}
	d.appendAudit(ctx, start, correlationID, toolName, args, models.AuditSuccess, "")
	return response
}

func (d *Dispatcher) reject(ctx context.Context, start time.Time, correlationID, toolName string, args map[string]interface{}, err error) Response {
	safeMessage, kind := guardrails.SanitizeError(err)
	params := canonicalParams(args)
	if kind == errkind.SecurityViolation {
		params = "[redacted: security-violation]"
	}
	d.appendAuditRaw(ctx, start, correlationID, toolName, params, models.AuditFailure, safeMessage)
	return Response{
		CorrelationID: correlationID,
		Status:        "rejected",
		Kind:          string(kind),
		Message:       safeMessage,
	}
}

func (d *Dispatcher) rejectSecurity(ctx context.Context, start time.Time, correlationID, toolName, matchedKind string) Response {
	d.appendAuditRaw(ctx, start, correlationID, toolName, "[redacted: security-violation/"+matchedKind+"]", models.AuditFailure, "request rejected")
	return Response{
		CorrelationID: correlationID,
		Status:        "rejected",
		Kind:          string(errkind.SecurityViolation),
		Message:       "request rejected",
	}
}

func (d *Dispatcher) rejectStructured(ctx context.Context, start time.Time, correlationID, toolName string, args map[string]interface{}, kind errkind.Kind, message string, used, limit int) Response {
	d.appendAudit(ctx, start, correlationID, toolName, args, models.AuditFailure, message)
	resp := Response{
		CorrelationID: correlationID,
		Status:        "rejected",
		Kind:          string(kind),
		Message:       message,
	}
	if kind == errkind.BudgetExhausted {
		resp.Result = map[string]interface{}{"used": used, "limit": limit}
	}
	return resp
}

func (d *Dispatcher) appendAudit(ctx context.Context, start time.Time, correlationID, toolName string, args map[string]interface{}, status models.AuditStatus, errMsg string) {
	d.appendAuditRaw(ctx, start, correlationID, toolName, canonicalParams(args), status, errMsg)
}

func (d *Dispatcher) appendAuditRaw(ctx context.Context, start time.Time, correlationID, toolName, paramsJSON string, status models.AuditStatus, errMsg string) {
	if d.audit == nil {
		return
	}
	entry := models.AuditEntry{
		Timestamp:       time.Now().UTC(),
		CorrelationID:   correlationID,
		ToolName:        toolName,
		ParametersJSON:  paramsJSON,
		Status:          status,
		ExecutionTimeMS: time.Since(start).Milliseconds(),
		ErrorMessage:    errMsg,
	}
	if err := d.audit.Append(ctx, entry); err != nil {
		logging.Printf(ctx, "audit append failed: %v", err)
	}
}

// canonicalParams renders args as key-sorted, whitespace-free JSON so audit
// payloads are deterministic regardless of map iteration order.
func canonicalParams(args map[string]interface{}) string {
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
