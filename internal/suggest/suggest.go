// Package suggest proposes tag values for resources missing required
// tags, ranking heuristics by specificity and reporting a confidence plus
// human-readable reasoning. Grounded on handlers_/recommendations.go's
// evaluateTemplate confidence-scoring pattern and analyzeAndRecommend's
// aggregate-across-a-set shape, retargeted from "score a policy template
// against org spend" to "score a tag value against a resource
// neighbourhood".
package suggest

import (
	"fmt"
	"regexp"
	"strings"

	"tagcompliance/internal/models"
	"tagcompliance/internal/policy"
)

// arnPattern matches the standard six-field colon-delimited AWS ARN
// format; no pack library parses ARNs, and a general-purpose URI/URN
// parser would be the wrong tool for this fixed shape.
var arnPattern = regexp.MustCompile(`^arn:aws:([^:]+):([^:]*):([^:]*):(.+)$`)

// ParsedARN is the decomposed form of an ARN used to find a resource's
// neighbourhood (same account, same service).
type ParsedARN struct {
	Service    string
	Region     string
	Account    string
	ResourceID string
}

// ParseARN decomposes arn into its service/region/account/resource parts.
func ParseARN(arn string) (ParsedARN, error) {
	m := arnPattern.FindStringSubmatch(arn)
	if m == nil {
		return ParsedARN{}, fmt.Errorf("not a recognizable ARN: %s", arn)
	}
	return ParsedARN{Service: m[1], Region: m[2], Account: m[3], ResourceID: m[4]}, nil
}

// vpcSubnetTokenMap maps common VPC/subnet name tokens to a policy-allowed
// value, used as the second-specificity heuristic.
var vpcSubnetTokenMap = map[string]string{
	"prod":    "Production",
	"prd":     "Production",
	"stage":   "Staging",
	"staging": "Staging",
	"dev":     "Development",
	"test":    "Test",
	"qa":      "QA",
}

// Suggest proposes a value for tagName on target, given target's
// neighbourhood (resources sharing the same VPC/account/name-prefix
// context) and the policy's declared default for the tag, if any.
// Heuristics are tried in order of specificity, per spec.md §4.9:
//  1. majority value of tagName within the neighbourhood
//  2. VPC/subnet name-token mapping to a policy-allowed value
//  3. the policy's declared default for the tag
func Suggest(target models.Resource, neighbourhood []models.Resource, tagName string, p *policy.TagPolicy) (models.TagSuggestion, bool) {
	if s, ok := suggestFromNeighbourhood(neighbourhood, tagName); ok {
		return s, true
	}
	if s, ok := suggestFromNameTokens(target, tagName, p); ok {
		return s, true
	}
	if s, ok := suggestFromPolicyDefault(tagName, p); ok {
		return s, true
	}
	return models.TagSuggestion{}, false
}

func suggestFromNeighbourhood(neighbourhood []models.Resource, tagName string) (models.TagSuggestion, bool) {
	counts := make(map[string]int)
	total := 0
	for _, r := range neighbourhood {
		if v, ok := r.Tags[tagName]; ok && v != "" {
			counts[v]++
			total++
		}
	}
	if total == 0 {
		return models.TagSuggestion{}, false
	}

	var bestValue string
	bestCount := 0
	for v, c := range counts {
		if c > bestCount {
			bestValue, bestCount = v, c
		}
	}

	confidence := float64(bestCount) / float64(total)
	return models.TagSuggestion{
		TagKey:     tagName,
		Value:      bestValue,
		Confidence: confidence,
		Reasoning: fmt.Sprintf("%d of %d neighbouring resources tag %s=%s", bestCount, total, tagName, bestValue),
	}, true
}

func suggestFromNameTokens(target models.Resource, tagName string, p *policy.TagPolicy) (models.TagSuggestion, bool) {
	nameTag := target.Tags["Name"]
	if nameTag == "" {
		return models.TagSuggestion{}, false
	}
	allowed := p.AllowedValues(tagName)

	lower := strings.ToLower(nameTag)
	for token, mapped := range vpcSubnetTokenMap {
		if !strings.Contains(lower, token) {
			continue
		}
		if len(allowed) > 0 && !containsIgnoreCase(allowed, mapped) {
			continue
		}
		return models.TagSuggestion{
			TagKey:     tagName,
			Value:      mapped,
			Confidence: 0.5,
			Reasoning: fmt.Sprintf("resource name %q contains token %q, mapped to %s", nameTag, token, mapped),
		}, true
	}
	return models.TagSuggestion{}, false
}

func suggestFromPolicyDefault(tagName string, p *policy.TagPolicy) (models.TagSuggestion, bool) {
	allowed := p.AllowedValues(tagName)
	if len(allowed) != 1 {
		return models.TagSuggestion{}, false
	}
	return models.TagSuggestion{
		TagKey:     tagName,
		Value:      allowed[0],
		Confidence: 0.2,
		Reasoning: fmt.Sprintf("policy declares a single allowed value for %s", tagName),
	}, true
}

func containsIgnoreCase(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

// Neighbourhood filters candidates to those sharing target's VPC/subnet
// name-token context, its account, or a name prefix — the resource set
// suggestFromNeighbourhood scores over.
func Neighbourhood(target models.Resource, candidates []models.Resource) []models.Resource {
	targetARN, err := ParseARN(target.ARN)
	if err != nil {
		return nil
	}

	var out []models.Resource
	for _, c := range candidates {
		if c.ARN == target.ARN {
			continue
		}
		candidateARN, err := ParseARN(c.ARN)
		if err != nil {
			continue
		}
		if candidateARN.Account == targetARN.Account && c.Type == target.Type {
			out = append(out, c)
		}
	}
	return out
}
