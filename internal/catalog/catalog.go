// Package catalog loads the resource-type catalog: the static map from a
// resource type string to its cost-attribution category and cost-service
// name. Loaded once at startup and never mutated, the same "load a JSON
// config blob into a Go struct mirror" idiom the teacher uses for
// PolicyTemplate's JSON-array-in-text-column fields.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"tagcompliance/internal/models"
)

// Catalog is an immutable snapshot of resource-type classifications.
type Catalog struct {
	types map[string]models.ResourceTypeInfo
}

// globalTypes are the resource types that always scan under the "global"
// region regardless of any region filter (spec.md §3 invariant).
var globalTypes = map[string]bool{
	"s3:bucket":         true,
	"iam:role":          true,
	"iam:user":          true,
	"iam:policy":        true,
	"cloudfront:distribution": true,
	"route53:zone":      true,
}

// Load reads a JSON array of ResourceTypeInfo from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resource type catalog: %w", err)
	}
	var entries []models.ResourceTypeInfo
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse resource type catalog: %w", err)
	}
	return build(entries)
}

// LoadDefault returns a Catalog seeded with the built-in AWS read-only
// surface, used when no catalog file is configured (tests, local runs).
func LoadDefault() *Catalog {
	c, _ := build(defaultEntries)
	return c
}

func build(entries []models.ResourceTypeInfo) (*Catalog, error) {
	c := &Catalog{types: make(map[string]models.ResourceTypeInfo, len(entries))}
	for _, e := range entries {
		if e.Type == "" {
			return nil, fmt.Errorf("resource type catalog: entry missing type")
		}
		switch e.Category {
		case models.CategoryCostGenerating, models.CategoryFree, models.CategoryUnattributable, models.CategoryGlobal:
		default:
			return nil, fmt.Errorf("resource type catalog: %s has unknown category %q", e.Type, e.Category)
		}
		c.types[e.Type] = e
	}
	return c, nil
}

// CategoryOf returns the category of a resource type, or "" if unknown.
func (c *Catalog) CategoryOf(resourceType string) models.ResourceCategory {
	info, ok := c.types[resourceType]
	if !ok {
		return ""
	}
	return info.Category
}

// CostServiceNameOf returns the cost-service name a resource type bills
// under, or "" if unknown.
func (c *Catalog) CostServiceNameOf(resourceType string) string {
	return c.types[resourceType].CostServiceName
}

// IsGlobal reports whether a resource type always scans under the "global"
// region, independent of catalog contents.
func IsGlobal(resourceType string) bool {
	return globalTypes[resourceType]
}

// AllApplicableTypes returns the union of cost-generating and free types,
// i.e. every type this catalog will classify as scannable.
func (c *Catalog) AllApplicableTypes() []string {
	out := make([]string, 0, len(c.types))
	for t, info := range c.types {
		if info.Category == models.CategoryCostGenerating || info.Category == models.CategoryFree {
			out = append(out, t)
		}
	}
	return out
}

var defaultEntries = []models.ResourceTypeInfo{
	{Type: "ec2:instance", Category: models.CategoryCostGenerating, CostServiceName: "AmazonEC2"},
	{Type: "ec2:volume", Category: models.CategoryCostGenerating, CostServiceName: "AmazonEC2"},
	{Type: "rds:instance", Category: models.CategoryCostGenerating, CostServiceName: "AmazonRDS"},
	{Type: "s3:bucket", Category: models.CategoryGlobal, CostServiceName: "AmazonS3"},
	{Type: "lambda:function", Category: models.CategoryCostGenerating, CostServiceName: "AWSLambda"},
	{Type: "ecs:service", Category: models.CategoryCostGenerating, CostServiceName: "AmazonECS"},
	{Type: "iam:role", Category: models.CategoryGlobal, CostServiceName: ""},
	{Type: "iam:user", Category: models.CategoryGlobal, CostServiceName: ""},
	{Type: "iam:policy", Category: models.CategoryGlobal, CostServiceName: ""},
	{Type: "cloudfront:distribution", Category: models.CategoryGlobal, CostServiceName: "AmazonCloudFront"},
	{Type: "route53:zone", Category: models.CategoryGlobal, CostServiceName: "AmazonRoute53"},
	{Type: "vpc:subnet", Category: models.CategoryFree, CostServiceName: ""},
	{Type: "ec2:security-group", Category: models.CategoryFree, CostServiceName: ""},
	{Type: "logs:log-group", Category: models.CategoryUnattributable, CostServiceName: "AmazonCloudWatch"},
}
