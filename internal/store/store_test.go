package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/morfx/internal/model"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name          string
		dsn           string
		expectedError bool
		errorContains string
	}{
		{
			name:          "in-memory database",
			dsn:           ":memory:",
			expectedError: false,
		},
		{
			name:          "file database in new nested directory",
			dsn:           filepath.Join(t.TempDir(), "nested", "history.db"),
			expectedError: false,
		},
		{
			name:          "remote libsql DSN without a listener",
			dsn:           "libsql://127.0.0.1:19999",
			expectedError: true,
			errorContains: "connecting to",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.dsn, false)
			if tt.expectedError {
				require.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
				return
			}
			require.NoError(t, err)
			require.NotNil(t, s)
			defer s.Close()

			assert.True(t, s.DB().Migrator().HasTable(&model.PlanRun{}))
			assert.True(t, s.DB().Migrator().HasTable(&model.LegacyOp{}))
		})
	}
}

func TestRecordRunAndRecentRuns(t *testing.T) {
	s, err := Open(":memory:", false)
	require.NoError(t, err)
	defer s.Close()

	plan := &model.Plan{Steps: []model.Step{{Op: "replace_node"}}}
	results := []*model.ExecutionResult{{Success: true}}

	require.NoError(t, s.RecordRun("run-1", plan, results, false))

	runs, err := s.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, 1, runs[0].StepCount)
	assert.Equal(t, 1, runs[0].SucceededCount)
	assert.False(t, runs[0].Aborted)
}

func TestRecordLegacyOp(t *testing.T) {
	s, err := Open(":memory:", false)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.RecordRun("run-2", &model.Plan{}, nil, false))
	require.NoError(t, s.RecordLegacyOp("op-1", "run-2", "main.go", "replace_pattern", "foo", "bar", 3))

	var count int64
	require.NoError(t, s.DB().Model(&model.LegacyOp{}).Where("plan_run_id = ?", "run-2").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
