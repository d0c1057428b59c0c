// Package history is the append-only compliance-history log of spec.md
// §4.11: one ComplianceSnapshot per scan, queryable as a windowed
// aggregation with a computed trend. Grounded on the same
// gorm.Open/AutoMigrate shape as internal/audit and the teacher's
// database_ package.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tagcompliance/internal/errkind"
	"tagcompliance/internal/models"
)

type row struct {
	ID                 string `gorm:"primaryKey"`
	Timestamp          time.Time `gorm:"index"`
	ComplianceScore    float64
	TotalResources     int
	CompliantResources int
	ViolationCount     int
	CostAttributionGap float64
}

func (row) TableName() string { return "compliance_snapshots" }

// Store is the append-only compliance-history store.
type Store struct {
	db *gorm.DB
}

// Open connects to databaseURL and migrates the snapshot table.
func Open(databaseURL string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errkind.New(errkind.PolicyValidation, "failed to open history store", err)
	}
	if err := db.AutoMigrate(&row{}); err != nil {
		return nil, errkind.New(errkind.PolicyValidation, "failed to migrate history store", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open *gorm.DB, migrating the snapshot table.
// Used directly in tests against an in-memory database.
func NewWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&row{}); err != nil {
		return nil, errkind.New(errkind.PolicyValidation, "failed to migrate history store", err)
	}
	return &Store{db: db}, nil
}

// Append records one compliance snapshot, typically once per scan.
func (s *Store) Append(ctx context.Context, snap models.ComplianceSnapshot) error {
	r := row{
		ID:                 uuid.NewString(),
		Timestamp:          snap.Timestamp,
		ComplianceScore:    snap.ComplianceScore,
		TotalResources:     snap.TotalResources,
		CompliantResources: snap.CompliantResources,
		ViolationCount:     snap.ViolationCount,
		CostAttributionGap: snap.CostAttributionGap,
	}
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return errkind.New(errkind.Cache, "failed to append compliance snapshot", err)
	}
	return nil
}

// AggregateResult is the output of GetHistory: one point per bucket plus
// the overall trend across the window.
type AggregateResult struct {
	Points []Point
	Trend  models.Trend
}

// Point is one bucketed aggregate within a history window.
type Point struct {
	BucketStart        time.Time
	AvgComplianceScore float64
	SnapshotCount      int
}

// GetHistory aggregates snapshots from the last `window` into buckets sized
// by groupBy, and computes trend by comparing the latest snapshot's score
// against the earliest snapshot's score within the window.
func (s *Store) GetHistory(ctx context.Context, window time.Duration, groupBy models.GroupBy) (AggregateResult, error) {
	since := nowFunc().Add(-window)

	var rows []row
	if err := s.db.WithContext(ctx).Model(&row{}).
		Where("timestamp >= ?", since).
		Order("timestamp ASC").
		Find(&rows).Error; err != nil {
		return AggregateResult{}, errkind.New(errkind.Cache, "failed to query compliance history", err)
	}

	if len(rows) == 0 {
		return AggregateResult{Trend: models.TrendStable}, nil
	}

	buckets := bucketize(rows, groupBy)
	trend := computeTrend(rows[0].ComplianceScore, rows[len(rows)-1].ComplianceScore)

	return AggregateResult{Points: buckets, Trend: trend}, nil
}

// nowFunc is overridable in tests so a fixed "now" can be used against
// fixture snapshot timestamps.
var nowFunc = time.Now

func bucketOf(t time.Time, groupBy models.GroupBy) time.Time {
	switch groupBy {
	case models.GroupByWeek:
		offset := int(t.Weekday())
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, -offset)
	case models.GroupByMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

func bucketize(rows []row, groupBy models.GroupBy) []Point {
	order := []time.Time{}
	sums := map[time.Time]float64{}
	counts := map[time.Time]int{}

	for _, r := range rows {
		b := bucketOf(r.Timestamp, groupBy)
		if _, ok := sums[b]; !ok {
			order = append(order, b)
		}
		sums[b] += r.ComplianceScore
		counts[b]++
	}

	points := make([]Point, 0, len(order))
	for _, b := range order {
		points = append(points, Point{
			BucketStart:        b,
			AvgComplianceScore: sums[b] / float64(counts[b]),
			SnapshotCount:      counts[b],
		})
	}
	return points
}

// computeTrend compares the earliest-in-window score to the latest.
const trendStableThreshold = 0.02

func computeTrend(earliest, latest float64) models.Trend {
	delta := latest - earliest
	switch {
	case delta > trendStableThreshold:
		return models.TrendImproving
	case delta < -trendStableThreshold:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}
