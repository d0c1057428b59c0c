// Package scanner fans out compliance checks across regions. It is the
// direct generalization of worker_/enforcement.go's ticker-driven
// Start/run loop: the same "NewXWorker(deps) then iterate providers"
// shape, here replacing sequential iteration over providers with a
// bounded pool of parallel region workers coordinated by
// golang.org/x/sync's errgroup and semaphore.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"tagcompliance/internal/cloudclient"
	"tagcompliance/internal/compliance"
	"tagcompliance/internal/models"
	"tagcompliance/internal/policy"
)

// Scanner fans out per-region compliance scans bounded by a worker pool.
type Scanner struct {
	factory    *cloudclient.Factory
	compliance *compliance.Service

	maxConcurrentRegions int64
	regionScanTimeout    time.Duration
}

// New builds a Scanner. maxConcurrentRegions is clamped by the caller
// (internal/config already clamps it to [1,20] per spec.md §6).
func New(factory *cloudclient.Factory, complianceSvc *compliance.Service, maxConcurrentRegions int, regionScanTimeout time.Duration) *Scanner {
	return &Scanner{
		factory:              factory,
		compliance:           complianceSvc,
		maxConcurrentRegions: int64(maxConcurrentRegions),
		regionScanTimeout:    regionScanTimeout,
	}
}

// regionResult is the message a worker returns on the result channel —
// workers never share mutable state, per spec.md §5.
type regionResult struct {
	region string
	result models.ComplianceResult
	err    error
}

// Scan runs a compliance check across regions plus the global bucket,
// bounded by max_concurrent_regions, with a per-region timeout and an
// overall deadline inherited from ctx. It never returns an error to the
// caller: a region that fails is recorded in FailedRegions and the
// aggregate is still produced, per spec.md §4.7.
func (s *Scanner) Scan(ctx context.Context, p *policy.TagPolicy, regions []string, resourceTypes []string, severity models.SeverityFilter, globalResources []models.Resource) models.MultiRegionComplianceResult {
	sem := semaphore.NewWeighted(s.maxConcurrentRegions)
	resultCh := make(chan regionResult, len(regions)+1)

	g, gctx := errgroup.WithContext(ctx)

	for _, region := range regions {
		region := region
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				resultCh <- regionResult{region: region, err: err}
				return nil
			}
			defer sem.Release(1)

			regionCtx, cancel := context.WithTimeout(gctx, s.regionScanTimeout)
			defer cancel()

			result, err := s.scanRegion(regionCtx, p, region, resourceTypes, severity)
			resultCh <- regionResult{region: region, result: result, err: err}
			return nil
		})
	}

	// The global bucket is a worker of its own; it ignores region
	// filtering entirely, per spec.md §3's invariant.
	g.Go(func() error {
		result := s.compliance.Validate(gctx, p, globalResources, severity)
		resultCh <- regionResult{region: "global", result: result}
		return nil
	})

	go func() {
		g.Wait()
		close(resultCh)
	}()

	return aggregate(regions, resultCh)
}

func (s *Scanner) scanRegion(ctx context.Context, p *policy.TagPolicy, region string, resourceTypes []string, severity models.SeverityFilter) (models.ComplianceResult, error) {
	client, err := s.factory.ClientFor(region)
	if err != nil {
		return models.ComplianceResult{}, err
	}

	var resources []models.Resource
	for _, rt := range resourceTypes {
		rs, err := client.ListResources(ctx, rt)
		if err != nil {
			return models.ComplianceResult{}, err
		}
		resources = append(resources, rs...)
	}

	return s.compliance.Validate(ctx, p, resources, severity), nil
}

// aggregate drains resultCh in receive order and builds the
// MultiRegionComplianceResult. Per-region blocks in Violations are
// appended as each region's result arrives, not in the order regions
// were requested — spec.md §7's "the aggregate preserves per-region
// blocks in the order regions completed".
func aggregate(regions []string, resultCh <-chan regionResult) models.MultiRegionComplianceResult {
	breakdown := make(map[string]models.ComplianceResult)
	var successful []string
	var failed []models.RegionFailure
	var orderedViolations []models.Violation
	totalResources, compliantResources := 0, 0

	for r := range resultCh {
		if r.err != nil {
			failed = append(failed, models.RegionFailure{Region: r.region, Error: sanitizeScanError(r.err)})
			continue
		}
		successful = append(successful, r.region)
		breakdown[r.region] = r.result
		totalResources += r.result.TotalResources
		compliantResources += r.result.CompliantResources
		orderedViolations = append(orderedViolations, r.result.Violations...)
	}

	return models.MultiRegionComplianceResult{
		ComplianceResult: models.ComplianceResult{
			Score:              scoreOf(compliantResources, totalResources),
			TotalResources:     totalResources,
			CompliantResources: compliantResources,
			Violations:         orderedViolations,
			ScannedAt:          time.Now().UTC(),
		},
		RegionBreakdown: breakdown,
		RegionMetadata: models.RegionMetadata{
			TotalRegions:      len(regions),
			SuccessfulRegions: successful,
			FailedRegions:     sortedFailures(failed),
			SkippedRegions:    nil,
		},
	}
}

func scoreOf(compliant, total int) float64 {
	if total == 0 {
		return 1.0
	}
	return float64(compliant) / float64(total)
}

func sortedFailures(failed []models.RegionFailure) []models.RegionFailure {
	sort.SliceStable(failed, func(i, j int) bool { return failed[i].Region < failed[j].Region })
	return failed
}

// sanitizeScanError produces a safe, region-scoped message; the dispatcher
// applies the full error-sanitisation chokepoint before anything crosses
// the process boundary, but partial-failure messages stored mid-scan get
// a conservative scrub here too.
func sanitizeScanError(err error) string {
	if err == context.DeadlineExceeded {
		return "timeout"
	}
	if err == context.Canceled {
		return "cancelled"
	}
	return fmt.Sprintf("cloud-api-error: %v", err)
}
