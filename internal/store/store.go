// Package store persists plan-run history (spec.md's "checkpoint" concept
// extended, per SPEC_FULL.md, into a durable audit trail) via gorm. Grounded
// directly in the teacher's db/sqlite.go Connect/Migrate pair, with the cgo
// `gorm.io/driver/sqlite` dialector swapped for the teacher's own pure-Go
// `github.com/glebarez/sqlite` for the local-file path — the teacher
// requires both, but only the libsql remote path genuinely needs
// `gorm.io/driver/sqlite`'s generic Conn-wrapping Config; local files never
// need cgo.
package store

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/datatypes"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oxhq/morfx/internal/model"
	"github.com/oxhq/morfx/internal/xerrors"
)

// Store wraps a gorm connection scoped to plan-run history.
type Store struct {
	db *gorm.DB
}

// isRemote reports whether dsn names a remote libsql/turso endpoint rather
// than a local file path.
func isRemote(dsn string) bool {
	return strings.HasPrefix(dsn, "http://") || strings.HasPrefix(dsn, "https://") || strings.HasPrefix(dsn, "libsql://")
}

// Open connects to dsn (a local sqlite file path, or a libsql/turso URL),
// running migrations before returning.
func Open(dsn string, debug bool) (*Store, error) {
	if !isRemote(dsn) {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, xerrors.Wrap(xerrors.CodeFilesystemFailure, err, "creating database directory for %s", dsn)
			}
		}
	}

	cfg := &gorm.Config{}
	if debug {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	var conn *sql.DB
	if isRemote(dsn) {
		var connector driver.Connector
		var err error
		if token := os.Getenv("MORFX_LIBSQL_AUTH_TOKEN"); token != "" {
			connector, err = libsql.NewConnector(dsn, libsql.WithAuthToken(token))
		} else {
			connector, err = libsql.NewConnector(dsn)
		}
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeFilesystemFailure, err, "creating libsql connector for %s", dsn)
		}
		conn = sql.OpenDB(connector)
		dialector = gormsqlite.New(gormsqlite.Config{DriverName: "libsql", Conn: conn, DSN: dsn})
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, xerrors.Wrap(xerrors.CodeFilesystemFailure, err, "connecting to %s", dsn)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Exec("PRAGMA foreign_keys = ON")
	}

	if err := db.AutoMigrate(&model.PlanRun{}, &model.LegacyOp{}); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeFilesystemFailure, err, "migrating schema")
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordRun persists the outcome of a run_plan invocation.
func (s *Store) RecordRun(id string, plan *model.Plan, stepResults []*model.ExecutionResult, aborted bool) error {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeParamValidation, err, "marshaling plan for history")
	}
	resultJSON, err := json.Marshal(stepResults)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeParamValidation, err, "marshaling step results for history")
	}

	succeeded := 0
	for _, r := range stepResults {
		if r != nil && r.Success {
			succeeded++
		}
	}

	run := &model.PlanRun{
		ID:             id,
		FinishedAt:     time.Now().Unix(),
		StepCount:      len(stepResults),
		SucceededCount: succeeded,
		Aborted:        aborted,
		PlanJSON:       datatypes.JSON(planJSON),
		ResultJSON:     datatypes.JSON(resultJSON),
	}
	if err := s.db.Create(run).Error; err != nil {
		return xerrors.Wrap(xerrors.CodeFilesystemFailure, err, "recording plan run %s", id)
	}
	return nil
}

// RecordLegacyOp persists one legacy-tier text operation, linked to its
// owning plan run.
func (s *Store) RecordLegacyOp(id, planRunID, file, op, pattern, replacement string, changeCount int) error {
	rec := &model.LegacyOp{
		ID:          id,
		PlanRunID:   planRunID,
		File:        file,
		Op:          op,
		Pattern:     pattern,
		Replacement: replacement,
		ChangeCount: changeCount,
	}
	if err := s.db.Create(rec).Error; err != nil {
		return xerrors.Wrap(xerrors.CodeFilesystemFailure, err, "recording legacy op %s", id)
	}
	return nil
}

// RecentRuns returns the n most recently finished plan runs, newest first.
func (s *Store) RecentRuns(n int) ([]model.PlanRun, error) {
	var runs []model.PlanRun
	if err := s.db.Order("finished_at desc").Limit(n).Find(&runs).Error; err != nil {
		return nil, xerrors.Wrap(xerrors.CodeFilesystemFailure, err, "listing recent plan runs")
	}
	return runs, nil
}

// DB exposes the underlying *gorm.DB for callers (e.g. cmd/morfx) that need
// ad hoc queries beyond the convenience methods above.
func (s *Store) DB() *gorm.DB { return s.db }
