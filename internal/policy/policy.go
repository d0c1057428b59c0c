// Package policy loads, validates, and caches the declarative tag policy.
// It follows the same "load JSON from a configured path into a struct,
// validate, keep it behind an atomic pointer" idiom the teacher uses for
// its config_ package, generalized to support a zero-downtime Reload.
package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"tagcompliance/internal/errkind"
)

// RequiredTag is a tag every matching resource must carry.
type RequiredTag struct {
	Name          string   `json:"name" validate:"required"`
	Description   string   `json:"description"`
	AllowedValues []string `json:"allowed_values,omitempty"`
	Regex         string   `json:"regex,omitempty"`
	AppliesTo     []string `json:"applies_to,omitempty"`

	compiledRegex *regexp.Regexp
}

// OptionalTag documents a tag without enforcing its presence.
type OptionalTag struct {
	Name          string   `json:"name" validate:"required"`
	Description   string   `json:"description"`
	AllowedValues []string `json:"allowed_values,omitempty"`
	AppliesTo     []string `json:"applies_to,omitempty"`
}

// NamingRules bounds key/value shape independent of any specific tag.
type NamingRules struct {
	Enabled      bool `json:"enabled"`
	RequireUpperCamelCaseKeys bool `json:"require_upper_camel_case_keys"`
	MaxKeyLength   int `json:"max_key_length" validate:"gte=0"`
	MaxValueLength int `json:"max_value_length" validate:"gte=0"`
}

// rawPolicy is the on-disk JSON shape. CostAttributionTags lets the policy
// author override the default attribution tag subset the cost service
// reads (see DESIGN.md Open Question decisions).
type rawPolicy struct {
	Version              string        `json:"version" validate:"required"`
	RequiredTags         []RequiredTag `json:"required_tags"`
	OptionalTags         []OptionalTag `json:"optional_tags"`
	NamingRules          NamingRules   `json:"naming_rules"`
	CostAttributionTags  []string      `json:"cost_attribution_tags,omitempty"`
}

// defaultCostAttributionTags is used when the policy file is silent, per
// spec §4.8.
var defaultCostAttributionTags = []string{"CostCenter", "Owner", "Environment"}

// TagPolicy is an immutable, validated snapshot of the tag policy. Callers
// never mutate it; Store swaps in a new snapshot atomically on Reload.
type TagPolicy struct {
	Version             string
	RequiredTags        []RequiredTag
	OptionalTags        []OptionalTag
	NamingRules         NamingRules
	CostAttributionTags []string

	byTagName map[string]*RequiredTag
}

// RequiredTagsFor returns the required tags whose applies_to is empty or
// contains resourceType.
func (p *TagPolicy) RequiredTagsFor(resourceType string) []RequiredTag {
	var out []RequiredTag
	for _, rt := range p.RequiredTags {
		if len(rt.AppliesTo) == 0 {
			out = append(out, rt)
			continue
		}
		for _, t := range rt.AppliesTo {
			if t == resourceType {
				out = append(out, rt)
				break
			}
		}
	}
	return out
}

// AllowedValues returns the allowed-value set for tagName, or nil if the
// tag has none (or doesn't exist).
func (p *TagPolicy) AllowedValues(tagName string) []string {
	if rt, ok := p.byTagName[tagName]; ok {
		return rt.AllowedValues
	}
	return nil
}

// Regex returns the compiled regex for tagName, or nil if unset.
func (p *TagPolicy) Regex(tagName string) *regexp.Regexp {
	if rt, ok := p.byTagName[tagName]; ok {
		return rt.compiledRegex
	}
	return nil
}

// Store holds a TagPolicy behind an atomic pointer so Reload can swap
// snapshots without blocking in-flight scans, per spec.md §5's "read-only
// snapshots swapped atomically on reload" invariant.
type Store struct {
	path    string
	current atomic.Pointer[TagPolicy]
}

var validate = validator.New()

// Load reads and validates the policy at path, returning a live Store.
// On malformed input this returns an *errkind.Error of kind
// PolicyValidation; the caller is expected to treat this as fatal at
// startup, per spec.md §7.
func Load(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the policy file and swaps it in atomically. In-flight
// readers of the previous Current() keep their snapshot.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return errkind.New(errkind.PolicyValidation, "read policy file", err)
	}
	var raw rawPolicy
	if err := json.Unmarshal(data, &raw); err != nil {
		return errkind.New(errkind.PolicyValidation, "parse policy JSON", err)
	}
	if err := validate.Struct(raw); err != nil {
		return errkind.New(errkind.PolicyValidation, "policy failed schema validation", err)
	}

	tp := &TagPolicy{
		Version:             raw.Version,
		RequiredTags:         raw.RequiredTags,
		OptionalTags:         raw.OptionalTags,
		NamingRules:          raw.NamingRules,
		CostAttributionTags:  raw.CostAttributionTags,
		byTagName:            make(map[string]*RequiredTag, len(raw.RequiredTags)),
	}
	if len(tp.CostAttributionTags) == 0 {
		tp.CostAttributionTags = defaultCostAttributionTags
	}

	for i := range tp.RequiredTags {
		rt := &tp.RequiredTags[i]
		if rt.Name == "" {
			return errkind.New(errkind.PolicyValidation, "required tag missing name", nil)
		}
		if rt.Regex != "" {
			re, err := regexp.Compile(rt.Regex)
			if err != nil {
				return errkind.New(errkind.PolicyValidation, fmt.Sprintf("invalid regex for tag %s", rt.Name), err)
			}
			rt.compiledRegex = re
		}
		tp.byTagName[rt.Name] = rt
	}
	if tp.NamingRules.MaxKeyLength < 0 || tp.NamingRules.MaxValueLength < 0 {
		return errkind.New(errkind.PolicyValidation, "naming rule bounds must be non-negative", nil)
	}

	s.current.Store(tp)
	return nil
}

// Current returns the live policy snapshot.
func (s *Store) Current() *TagPolicy {
	return s.current.Load()
}
