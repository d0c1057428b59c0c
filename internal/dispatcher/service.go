package dispatcher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"tagcompliance/internal/audit"
	"tagcompliance/internal/cache"
	"tagcompliance/internal/catalog"
	"tagcompliance/internal/cloudclient"
	"tagcompliance/internal/compliance"
	"tagcompliance/internal/cost"
	"tagcompliance/internal/errkind"
	"tagcompliance/internal/history"
	"tagcompliance/internal/models"
	"tagcompliance/internal/policy"
	"tagcompliance/internal/region"
	"tagcompliance/internal/scanner"
	"tagcompliance/internal/suggest"
)

// Service wires the compliance core behind the eight tools of spec.md §6.
// It holds no per-request mutable state; everything it needs is either
// a read-only snapshot (policy, catalog) or passed in per call.
type Service struct {
	Catalog     *catalog.Catalog
	Policy      *policy.Store
	Cache       *cache.Cache
	Factory     *cloudclient.Factory
	Region      *region.Discoverer
	Compliance  *compliance.Service
	Scanner     *scanner.Scanner
	AuditStore  *audit.Store
	HistoryStore *history.Store

	AllowedRegions     []string
	ComplianceCacheTTL time.Duration
	CostAttributionTags []string
}

func scanTargets(resourceTypes []string, cat *catalog.Catalog) (regional, global []string) {
	for _, t := range resourceTypes {
		if catalog.IsGlobal(t) {
			global = append(global, t)
		} else {
			regional = append(regional, t)
		}
	}
	return regional, global
}

func (s *Service) discoverAndFilterRegions(ctx context.Context, queryFilter []string) ([]string, models.RegionMetadata) {
	disc := s.Region.Discover(ctx)
	regions := region.FilterRegions(disc.Regions, s.AllowedRegions, queryFilter)
	meta := models.RegionMetadata{
		TotalRegions:    len(regions),
		DiscoveryFailed: disc.DiscoveryFailed,
		DiscoveryError:  disc.DiscoveryError,
	}
	return regions, meta
}

func (s *Service) loadGlobalResources(ctx context.Context, types []string) []models.Resource {
	if len(types) == 0 {
		return nil
	}
	client, err := s.Factory.ClientFor(s.Region.DefaultRegion())
	if err != nil {
		return nil
	}
	var out []models.Resource
	for _, t := range types {
		resources, err := client.ListResources(ctx, t)
		if err != nil {
			continue
		}
		out = append(out, resources...)
	}
	return out
}

// CheckTagCompliance implements tool 1.
func (s *Service) CheckTagCompliance(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	resourceTypes := toStringSlice(args["resource_types"])
	severity := models.SeverityFilter(stringOr(args["severity"], string(models.SeverityFilterAll)))
	forceRefresh, _ := args["force_refresh"].(bool)
	filters := toStringMap(args["filters"])

	p := s.Policy.Current()
	regional, global := scanTargets(resourceTypes, s.Catalog)
	regions, discoveryMeta := s.discoverAndFilterRegions(ctx, nil)

	cacheKey := cache.ComplianceKey(s.Region.DefaultRegion(), resourceTypes, filters, string(severity), regions, p.Version)
	if !forceRefresh {
		if cached, hit := s.Cache.Get(ctx, cacheKey); hit {
			return decodeCachedResult(cached), nil
		}
	}

	globalResources := s.loadGlobalResources(ctx, global)
	result := s.Scanner.Scan(ctx, p, regions, regional, severity, globalResources)
	result.RegionMetadata.DiscoveryFailed = discoveryMeta.DiscoveryFailed
	result.RegionMetadata.DiscoveryError = discoveryMeta.DiscoveryError

	if storeSnapshot, _ := args["store_snapshot"].(bool); storeSnapshot && s.HistoryStore != nil {
		_ = s.HistoryStore.Append(ctx, models.ComplianceSnapshot{
			Timestamp:          result.ScannedAt,
			ComplianceScore:    result.Score,
			TotalResources:     result.TotalResources,
			CompliantResources: result.CompliantResources,
			ViolationCount:     len(result.Violations),
			CostAttributionGap: result.CostAttributionGap,
		})
	}

	encoded := encodeResult(result)
	s.Cache.Set(ctx, cacheKey, encoded, s.ComplianceCacheTTL)
	return decodeCachedResult(encoded), nil
}

// FindUntaggedResources implements tool 2: the scanner's output filtered to
// resources with zero tags or a missing required tag.
func (s *Service) FindUntaggedResources(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	resourceTypes := toStringSlice(args["resource_types"])
	regionsArg := toStringSlice(args["regions"])

	p := s.Policy.Current()
	regional, global := scanTargets(resourceTypes, s.Catalog)
	regions, _ := s.discoverAndFilterRegions(ctx, regionsArg)
	globalResources := s.loadGlobalResources(ctx, global)

	result := s.Scanner.Scan(ctx, p, regions, regional, models.SeverityFilterAll, globalResources)

	untagged := make([]models.Violation, 0)
	for _, v := range result.Violations {
		if v.Kind == models.ViolationMissingRequiredTag {
			untagged = append(untagged, v)
		}
	}
	return map[string]interface{}{
		"untagged_resources": untagged,
		"total_scanned":      result.TotalResources,
	}, nil
}

// ValidateResourceTags implements tool 3: look up tags for the given ARNs
// directly via the tagging API, then run them through the compliance
// service as a standalone set.
func (s *Service) ValidateResourceTags(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	arns := toStringSlice(args["resource_arns"])
	if len(arns) == 0 {
		return nil, errkind.New(errkind.Validation, "resource_arns must not be empty", nil)
	}

	client, err := s.Factory.ClientFor(s.Region.DefaultRegion())
	if err != nil {
		return nil, errkind.New(errkind.CloudAPI, "failed to obtain a regional client", err)
	}

	tagsByARN, err := client.GetTagsForARNs(ctx, arns)
	if err != nil {
		return nil, errkind.New(errkind.CloudAPI, "failed to resolve tags for resource_arns", err)
	}

	resources := make([]models.Resource, 0, len(arns))
	for _, arn := range arns {
		parsed, perr := suggest.ParseARN(arn)
		resourceType := "unknown"
		regionName := ""
		if perr == nil {
			resourceType = parsed.Service
			regionName = parsed.Region
		}
		resources = append(resources, models.Resource{
			ARN:    arn,
			Type:   resourceType,
			Region: regionName,
			Tags:   tagsByARN[arn],
		})
	}

	p := s.Policy.Current()
	result := s.Compliance.Validate(ctx, p, resources, models.SeverityFilterAll)
	return result, nil
}

// GetCostAttributionGap implements tool 4.
func (s *Service) GetCostAttributionGap(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	timePeriod, _ := args["time_period"].(string)
	grouping := stringOr(args["grouping"], "none")

	start, end, err := parseTimePeriod(timePeriod)
	if err != nil {
		return nil, errkind.New(errkind.Validation, "invalid time_period", err)
	}

	types := s.Catalog.AllApplicableTypes()
	regions, _ := s.discoverAndFilterRegions(ctx, nil)

	var allResources []models.Resource
	var allCosts []models.ResourceCost
	var unattributableSpend float64

	for _, t := range types {
		category := s.Catalog.CategoryOf(t)
		costServiceName := s.Catalog.CostServiceNameOf(t)

		var resources []models.Resource
		for _, r := range regions {
			client, cerr := s.Factory.ClientFor(r)
			if cerr != nil {
				continue
			}
			rs, lerr := client.ListResources(ctx, t)
			if lerr != nil {
				continue
			}
			resources = append(resources, rs...)
		}
		if len(resources) == 0 {
			continue
		}

		costClient, cerr := s.Factory.ClientFor(s.Region.DefaultRegion())
		var serviceTotal float64
		actualByResourceID := map[string]float64{}
		if cerr == nil && costServiceName != "" {
			series, serr := costClient.GetCostSeries(ctx, costServiceName, start, end)
			if serr == nil {
				for _, point := range series {
					serviceTotal += point.ServiceTotal
					for arn, v := range point.PerResource {
						actualByResourceID[arn] += v
					}
				}
			}
		}

		if category == models.CategoryUnattributable || category == models.CategoryFree || category == models.CategoryGlobal {
			unattributableSpend += serviceTotal
			continue
		}

		costs := cost.Attribute(resources, category, serviceTotal, actualByResourceID)
		allResources = append(allResources, resources...)
		allCosts = append(allCosts, costs...)
	}

	groupKeyOf := groupKeyFunc(grouping)
	gap := cost.AttributionGap(allResources, allCosts, s.CostAttributionTags, groupKeyOf, unattributableSpend)
	return gap, nil
}

func groupKeyFunc(grouping string) func(models.Resource) string {
	switch grouping {
	case "by_resource_type":
		return func(r models.Resource) string { return r.Type }
	case "by_region":
		return func(r models.Resource) string { return r.Region }
	default:
		return func(models.Resource) string { return "all" }
	}
}

// SuggestTags implements tool 5.
func (s *Service) SuggestTags(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	arn, _ := args["resource_arn"].(string)
	parsed, err := suggest.ParseARN(arn)
	if err != nil {
		return nil, errkind.New(errkind.Validation, "invalid resource_arn", err)
	}

	client, cerr := s.Factory.ClientFor(parsed.Region)
	if cerr != nil {
		return nil, errkind.New(errkind.CloudAPI, "failed to obtain a regional client", cerr)
	}

	resourceType := parsed.Service + ":instance"
	candidates, lerr := client.ListResources(ctx, resourceType)
	if lerr != nil {
		return nil, errkind.New(errkind.CloudAPI, "failed to list candidate resources", lerr)
	}

	var target models.Resource
	found := false
	for _, c := range candidates {
		if c.ARN == arn {
			target = c
			found = true
			break
		}
	}
	if !found {
		target = models.Resource{ARN: arn, Type: resourceType, Region: parsed.Region}
	}

	neighbourhood := suggest.Neighbourhood(target, candidates)
	p := s.Policy.Current()

	suggestions := make([]models.TagSuggestion, 0)
	for _, rt := range p.RequiredTagsFor(target.Type) {
		if _, ok := target.Tags[rt.Name]; ok {
			continue
		}
		if sugg, ok := suggest.Suggest(target, neighbourhood, rt.Name, p); ok {
			suggestions = append(suggestions, sugg)
		}
	}
	return map[string]interface{}{"suggestions": suggestions}, nil
}

// GetTaggingPolicy implements tool 6: a direct read of the current policy.
func (s *Service) GetTaggingPolicy(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return s.Policy.Current(), nil
}

// GenerateComplianceReport implements tool 7: wraps check_tag_compliance
// then renders the result in the requested format.
func (s *Service) GenerateComplianceReport(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	format, _ := args["format"].(string)
	includeRecommendations, _ := args["include_recommendations"].(bool)

	types := s.Catalog.AllApplicableTypes()
	raw, err := s.CheckTagCompliance(ctx, map[string]interface{}{
		"resource_types": toInterfaceSlice(types),
		"severity":       string(models.SeverityFilterAll),
	})
	if err != nil {
		return nil, err
	}
	result, ok := raw.(models.MultiRegionComplianceResult)
	if !ok {
		return nil, errkind.New(errkind.Validation, "unexpected scan result shape", nil)
	}

	report := renderReport(result, format, includeRecommendations)
	return report, nil
}

// GetViolationHistory implements tool 8.
func (s *Service) GetViolationHistory(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	daysBack := intOr(args["days_back"], 30)
	groupBy := models.GroupBy(stringOr(args["group_by"], string(models.GroupByDay)))

	window := time.Duration(daysBack) * 24 * time.Hour
	result, err := s.HistoryStore.GetHistory(ctx, window, groupBy)
	if err != nil {
		return nil, errkind.New(errkind.Cache, "failed to read compliance history", err)
	}
	return result, nil
}

func parseTimePeriod(period string) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	switch period {
	case "current_month", "":
		start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, end, nil
	case "last_month":
		firstOfThisMonth := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
		start := firstOfThisMonth.AddDate(0, -1, 0)
		return start, firstOfThisMonth, nil
	case "last_30_days":
		return end.AddDate(0, 0, -30), end, nil
	case "last_90_days":
		return end.AddDate(0, 0, -90), end, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unsupported time_period %q", period)
	}
}

func toStringSlice(v interface{}) []string {
	arr, ok := v.([]interface{})
	if !ok {
		if s, ok := v.(string); ok {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toInterfaceSlice(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func toStringMap(v interface{}) map[string]string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}

func stringOr(v interface{}, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func intOr(v interface{}, fallback int) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return fallback
}
