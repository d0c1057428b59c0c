// Package compliance validates a set of resources against a tag policy
// and produces violations plus a compliance score. It is pure: no network,
// no cache, no cloud client — everything it needs is passed in. Grounded
// on policygen_/policygen.go's generateRequireTagsPolicy (missing-tag
// detection) combined with the mandatoryKeys/validations shape from
// eliran89c-tag-patrol's policy package, with naming-rule warnings
// delegated to internal/policy's compiled OPA bundle.
package compliance

import (
	"context"
	"sort"

	"tagcompliance/internal/models"
	"tagcompliance/internal/policy"
)

// Service validates resources against a live policy snapshot.
type Service struct {
	naming *policy.NamingEngine
}

// New builds a Service. naming may be nil, in which case naming-rule
// warnings are skipped (naming_rules.enabled=false is the common case).
func New(naming *policy.NamingEngine) *Service {
	return &Service{naming: naming}
}

// Validate checks every resource in resources against p, returning a
// ComplianceResult filtered by severity. The score always uses the
// error-severity definition regardless of the requested filter, per
// spec.md §4.6.
func (s *Service) Validate(ctx context.Context, p *policy.TagPolicy, resources []models.Resource, severity models.SeverityFilter) models.ComplianceResult {
	var allViolations []models.Violation
	compliantByErrorDef := 0

	for _, r := range resources {
		violations := s.violationsFor(ctx, p, r)

		hasError := false
		for _, v := range violations {
			if v.Severity == models.SeverityError {
				hasError = true
			}
		}
		if !hasError {
			compliantByErrorDef++
		}

		allViolations = append(allViolations, filterBySeverity(violations, severity)...)
	}

	sortViolations(allViolations)

	total := len(resources)
	return models.ComplianceResult{
		Score:              score(compliantByErrorDef, total),
		TotalResources:     total,
		CompliantResources: compliantByErrorDef,
		Violations:         allViolations,
	}
}

// violationsFor computes every violation (errors and naming warnings) for
// one resource, unfiltered by severity.
func (s *Service) violationsFor(ctx context.Context, p *policy.TagPolicy, r models.Resource) []models.Violation {
	var out []models.Violation

	for _, rt := range p.RequiredTagsFor(r.Type) {
		value, present := r.Tags[rt.Name]
		switch {
		case !present:
			out = append(out, models.Violation{
				ResourceID:   r.ARN,
				ResourceType: r.Type,
				Region:       r.Region,
				Kind:         models.ViolationMissingRequiredTag,
				TagName:      rt.Name,
				Severity:     models.SeverityError,
			})
		case len(rt.AllowedValues) > 0 && !contains(rt.AllowedValues, value):
			out = append(out, models.Violation{
				ResourceID:    r.ARN,
				ResourceType:  r.Type,
				Region:        r.Region,
				Kind:          models.ViolationInvalidValue,
				TagName:       rt.Name,
				Severity:      models.SeverityError,
				CurrentValue:  value,
				AllowedValues: rt.AllowedValues,
			})
		case rt.Regex != "" && !p.Regex(rt.Name).MatchString(value):
			out = append(out, models.Violation{
				ResourceID:   r.ARN,
				ResourceType: r.Type,
				Region:       r.Region,
				Kind:         models.ViolationInvalidFormat,
				TagName:      rt.Name,
				Severity:     models.SeverityError,
				CurrentValue: value,
			})
		}
	}

	if s.naming != nil && p.NamingRules.Enabled {
		for k, v := range r.Tags {
			violates, err := s.naming.Violates(ctx, k, v, p.NamingRules)
			if err == nil && violates {
				out = append(out, models.Violation{
					ResourceID:   r.ARN,
					ResourceType: r.Type,
					Region:       r.Region,
					Kind:         models.ViolationInvalidFormat,
					TagName:      k,
					Severity:     models.SeverityWarning,
					CurrentValue: v,
				})
			}
		}
	}

	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func filterBySeverity(violations []models.Violation, filter models.SeverityFilter) []models.Violation {
	switch filter {
	case models.SeverityFilterErrorsOnly:
		return onlySeverity(violations, models.SeverityError)
	case models.SeverityFilterWarningsOnly:
		return onlySeverity(violations, models.SeverityWarning)
	default:
		return violations
	}
}

func onlySeverity(violations []models.Violation, sev models.Severity) []models.Violation {
	var out []models.Violation
	for _, v := range violations {
		if v.Severity == sev {
			out = append(out, v)
		}
	}
	return out
}

// sortViolations orders violations severity desc, resource id asc within
// a region's scan, per spec.md §4.7's ordering guarantee.
func sortViolations(violations []models.Violation) {
	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].Severity != violations[j].Severity {
			return severityRank(violations[i].Severity) > severityRank(violations[j].Severity)
		}
		return violations[i].ResourceID < violations[j].ResourceID
	})
}

func severityRank(s models.Severity) int {
	if s == models.SeverityError {
		return 1
	}
	return 0
}

// score computes compliant/total, defined as 1.0 when total is zero, per
// spec.md's invariant.
func score(compliant, total int) float64 {
	if total == 0 {
		return 1.0
	}
	return float64(compliant) / float64(total)
}
