// Package audit is the append-only audit log of spec.md §4.11: exactly one
// entry per tool invocation, never mutated, queryable newest-first. It is
// grounded on the teacher's database_ package (gorm.Open + AutoMigrate)
// generalized from the teacher's org/user tables to the single append-only
// AuditEntry table this spec names.
package audit

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

// row is the gorm-mapped shape of the audit table's fixed column list.
type row struct {
	ID              string `gorm:"primaryKey"`
	Timestamp       time.Time `gorm:"index"`
	CorrelationID   string
	ToolName        string
	ParametersJSON  string `gorm:"type:text"`
	Status          string
	ExecutionTimeMS int64
	ErrorMessage    string
}

func (row) TableName() string { return "audit_entries" }

// Store is the append-only audit store.
type Store struct {
	db *gorm.DB
}

// Open connects to databaseURL and migrates the audit table, following the
// same gorm.Open + AutoMigrate shape as the teacher's database.Initialize.
func Open(databaseURL string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errkind.New(errkind.PolicyValidation, "failed to open audit store", err)
	}
	if err := db.AutoMigrate(&row{}); err != nil {
		return nil, errkind.New(errkind.PolicyValidation, "failed to migrate audit store", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open *gorm.DB, migrating the audit table.
// Used directly in tests against an in-memory database.
func NewWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&row{}); err != nil {
		return nil, errkind.New(errkind.PolicyValidation, "failed to migrate audit store", err)
	}
	return &Store{db: db}, nil
}

// Append records one audit entry. It is called exactly once per tool
// invocation, whether that invocation succeeded or was rejected.
func (s *Store) Append(ctx context.Context, e models.AuditEntry) error {
	r := row{
		ID:              uuid.NewString(),
		Timestamp:       e.Timestamp,
		CorrelationID:   e.CorrelationID,
		ToolName:        e.ToolName,
		ParametersJSON:  e.ParametersJSON,
		Status:          string(e.Status),
		ExecutionTimeMS: e.ExecutionTimeMS,
		ErrorMessage:    e.ErrorMessage,
	}
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return errkind.New(errkind.Cache, "failed to append audit entry", err)
	}
	return nil
}

// Filters narrows a GetLogs query. Zero-value fields are unconstrained.
type Filters struct {
	ToolName string
	Status   models.AuditStatus
	Since    time.Time
}

// GetLogs returns up to limit entries matching filters, newest first.
func (s *Store) GetLogs(ctx context.Context, filters Filters, limit int) ([]models.AuditEntry, error) {
	q := s.db.WithContext(ctx).Model(&row{}).Order("timestamp DESC")
	if filters.ToolName != "" {
		q = q.Where("tool_name = ?", filters.ToolName)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", string(filters.Status))
	}
	if !filters.Since.IsZero() {
		q = q.Where("timestamp >= ?", filters.Since)
	}
	if limit <= 0 {
		limit = 100
	}
	q = q.Limit(limit)

	var rows []row
	if err := q.Find(&rows).Error; err != nil {
		return nil, errkind.New(errkind.Cache, "failed to query audit log", err)
	}

	out := make([]models.AuditEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.AuditEntry{
			ID:              0,
			Timestamp:       r.Timestamp,
			CorrelationID:   r.CorrelationID,
			ToolName:        r.ToolName,
			ParametersJSON:  r.ParametersJSON,
			Status:          models.AuditStatus(r.Status),
			ExecutionTimeMS: r.ExecutionTimeMS,
			ErrorMessage:    r.ErrorMessage,
		})
	}
	return out, nil
}
