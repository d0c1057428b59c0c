// Package models holds the value types shared across the compliance core.
// Nothing in this package talks to the network, a database, or the cache —
// it is the vocabulary every other package imports.
package models

import "time"

// Resource is the uniform shape every cloud client returns, regardless of
// the underlying service. It is created fresh per scan and never mutated.
type Resource struct {
	ARN          string
	Type         string // "service:kind", e.g. "ec2:instance"
	Region       string // or "global"
	Tags         map[string]string
	CreatedAt    *time.Time
	State        string // running/stopped/... ; empty for non-compute types
	InstanceSize string // e.g. "m5.large"; empty when not applicable
}

// ResourceCategory classifies a resource type for cost-attribution purposes.
type ResourceCategory string

const (
	CategoryCostGenerating ResourceCategory = "cost-generating"
	CategoryFree           ResourceCategory = "free"
	CategoryUnattributable ResourceCategory = "unattributable"
	CategoryGlobal         ResourceCategory = "global"
)

// ResourceTypeInfo is one entry of the resource-type catalog.
type ResourceTypeInfo struct {
	Type            string           `json:"type"`
	Category        ResourceCategory `json:"category"`
	CostServiceName string           `json:"cost_service_name"`
}

// ViolationKind enumerates the ways a resource can fail policy.
type ViolationKind string

const (
	ViolationMissingRequiredTag ViolationKind = "missing-required-tag"
	ViolationInvalidValue       ViolationKind = "invalid-value"
	ViolationInvalidFormat      ViolationKind = "invalid-format"
)

// Severity is the strength of a violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// SeverityFilter selects which violations a caller wants to see. The
// compliance score always uses the error-severity definition regardless of
// this filter (spec invariant).
type SeverityFilter string

const (
	SeverityFilterErrorsOnly   SeverityFilter = "errors_only"
	SeverityFilterWarningsOnly SeverityFilter = "warnings_only"
	SeverityFilterAll          SeverityFilter = "all"
)

// Violation references a resource scanned in the same request; it never
// outlives the ComplianceResult it belongs to.
type Violation struct {
	ResourceID     string
	ResourceType   string
	Region         string
	Kind           ViolationKind
	TagName        string
	Severity       Severity
	CurrentValue   string
	AllowedValues  []string
	MonthlyCostImpact float64
}

// ComplianceResult is the outcome of validating one set of resources.
type ComplianceResult struct {
	Score              float64
	TotalResources     int
	CompliantResources int
	Violations         []Violation
	CostAttributionGap float64
	ScannedAt          time.Time
}

// RegionFailure records why one region's scan did not complete.
type RegionFailure struct {
	Region string
	Error  string
}

// RegionMetadata is the bookkeeping side-channel of a multi-region scan.
type RegionMetadata struct {
	TotalRegions     int
	SuccessfulRegions []string
	FailedRegions    []RegionFailure
	SkippedRegions   []string
	DiscoveryFailed  bool
	DiscoveryError   string
}

// MultiRegionComplianceResult aggregates per-region ComplianceResults.
type MultiRegionComplianceResult struct {
	ComplianceResult
	RegionBreakdown map[string]ComplianceResult
	RegionMetadata  RegionMetadata
}

// CostSource labels how a per-resource cost figure was derived. The set is
// fixed at three values; "service_average" from older source trees
// collapses into Estimated (see DESIGN.md Open Question decisions).
type CostSource string

const (
	CostSourceActual    CostSource = "actual"
	CostSourceEstimated CostSource = "estimated"
	CostSourceStopped   CostSource = "stopped"
)

// ResourceCost is the per-resource output of the cost service.
type ResourceCost struct {
	ResourceID  string
	MonthlyCost float64
	CostSource  CostSource
	Note        string
}

// CostAttributionGap is the top-level output of the gap computation.
type CostAttributionGap struct {
	TotalSpend         float64
	AttributableSpend  float64
	Gap                float64
	GapPct             float64
	GroupedGap         map[string]float64 // key depends on requested grouping
	// UnattributableSpend is the portion of TotalSpend billed under
	// services excluded from per-resource assignment entirely (category
	// unattributable/free/global), surfaced as its own bucket rather than
	// folded into a per-resource grouping key.
	UnattributableSpend float64
}

// TagSuggestion is a proposed value for one missing tag on one resource.
type TagSuggestion struct {
	TagKey     string
	Value      string
	Confidence float64
	Reasoning  string
}

// AuditStatus is the outcome recorded for a tool invocation.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditFailure AuditStatus = "failure"
)

// AuditEntry is one append-only record of a tool invocation.
type AuditEntry struct {
	ID              uint64
	Timestamp       time.Time
	CorrelationID   string
	ToolName        string
	ParametersJSON  string
	Status          AuditStatus
	ExecutionTimeMS int64
	ErrorMessage    string
}

// ComplianceSnapshot is one append-only history record.
type ComplianceSnapshot struct {
	ID                 uint64
	Timestamp          time.Time
	ComplianceScore    float64
	TotalResources     int
	CompliantResources int
	ViolationCount     int
	CostAttributionGap float64
}

// Trend summarizes how compliance moved across a history window.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// GroupBy is the bucketing window for history aggregation.
type GroupBy string

const (
	GroupByDay   GroupBy = "day"
	GroupByWeek  GroupBy = "week"
	GroupByMonth GroupBy = "month"
)
