package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tagcompliance/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	s, err := NewWithDB(db)
	require.NoError(t, err)
	return s
}

func TestAppendAndGetLogsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, models.AuditEntry{
		Timestamp: base, CorrelationID: "c1", ToolName: "check_tag_compliance",
		ParametersJSON: `{"regions":["us-east-1"]}`, Status: models.AuditSuccess, ExecutionTimeMS: 120,
	}))
	require.NoError(t, s.Append(ctx, models.AuditEntry{
		Timestamp: base.Add(time.Minute), CorrelationID: "c2", ToolName: "suggest_tags",
		ParametersJSON: `{}`, Status: models.AuditFailure, ExecutionTimeMS: 40, ErrorMessage: "validation-error",
	}))

	entries, err := s.GetLogs(ctx, Filters{}, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "suggest_tags", entries[0].ToolName)
	assert.Equal(t, "check_tag_compliance", entries[1].ToolName)
}

func TestGetLogsFiltersByToolAndStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, models.AuditEntry{Timestamp: base, ToolName: "a", Status: models.AuditSuccess}))
	require.NoError(t, s.Append(ctx, models.AuditEntry{Timestamp: base, ToolName: "b", Status: models.AuditFailure}))
	require.NoError(t, s.Append(ctx, models.AuditEntry{Timestamp: base, ToolName: "a", Status: models.AuditFailure}))

	entries, err := s.GetLogs(ctx, Filters{ToolName: "a", Status: models.AuditFailure}, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ToolName)
	assert.Equal(t, models.AuditFailure, entries[0].Status)
}

func TestGetLogsRespectsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, models.AuditEntry{
			Timestamp: base.Add(time.Duration(i) * time.Minute), ToolName: "t", Status: models.AuditSuccess,
		}))
	}

	entries, err := s.GetLogs(ctx, Filters{}, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSecurityViolationParametersAreRedactedBeforeAppend(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, models.AuditEntry{
		Timestamp:      time.Now().UTC(),
		ToolName:       "check_tag_compliance",
		ParametersJSON: "[redacted: security-violation/destructive-verb]",
		Status:         models.AuditFailure,
		ErrorMessage:   "security-violation",
	}))

	entries, err := s.GetLogs(ctx, Filters{}, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "[redacted: security-violation/destructive-verb]", entries[0].ParametersJSON)
	assert.NotContains(t, entries[0].ParametersJSON, "DROP TABLE")
}
