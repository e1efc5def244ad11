package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/t77yq/self-healing/internal/model"
)

// HistoryRecord represents an indexed healing action
type HistoryRecord struct {
	ID         string        `json:"id"`
	AlertName  string        `json:"alert_name"`
	Status     model.Outcome `json:"status"`
	Details    string        `json:"details"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// HistoryFilter narrows history queries; zero fields match everything
type HistoryFilter struct {
	AlertName string
	Status    model.Outcome
}

// HealingHistory defines the interface for queryable healing action storage
type HealingHistory interface {
	Sink

	// List retrieves records, newest first, with pagination and filters
	List(ctx context.Context, filter HistoryFilter, offset, limit int) ([]*HistoryRecord, error)

	// Count returns the total number of records matching the filter
	Count(ctx context.Context, filter HistoryFilter) (int, error)

	// DeleteBefore deletes records older than the specified time
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)

	// Close releases the underlying database
	Close() error
}

// SQLiteHealingHistory implements HealingHistory using SQLite
type SQLiteHealingHistory struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteHealingHistory opens or creates the history database at dbPath
func NewSQLiteHealingHistory(logger *zap.Logger, dbPath string) (*SQLiteHealingHistory, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	history := &SQLiteHealingHistory{
		logger: logger.Named("healing-history"),
		db:     db,
	}

	if err := history.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return history, nil
}

// initialize creates the necessary tables if they don't exist
func (s *SQLiteHealingHistory) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS healing_history (
			id TEXT PRIMARY KEY,
			alert_name TEXT NOT NULL,
			status TEXT NOT NULL,
			details TEXT,
			recorded_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_healing_history_alert_name ON healing_history(alert_name);
		CREATE INDEX IF NOT EXISTS idx_healing_history_status ON healing_history(status);
		CREATE INDEX IF NOT EXISTS idx_healing_history_recorded_at ON healing_history(recorded_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Store implements Sink.Store
func (s *SQLiteHealingHistory) Store(ctx context.Context, action *model.HealingAction) error {
	recordedAt, err := time.Parse(model.TimestampFormat, action.Timestamp)
	if err != nil {
		return fmt.Errorf("invalid healing action timestamp: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO healing_history (
			id, alert_name, status, details, recorded_at
		) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(),
		action.AlertName,
		string(action.Status),
		action.Details,
		recordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store healing history: %w", err)
	}
	return nil
}

func (f HistoryFilter) where() (string, []interface{}) {
	var clauses []string
	var args []interface{}
	if f.AlertName != "" {
		clauses = append(clauses, "alert_name = ?")
		args = append(args, f.AlertName)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List implements HealingHistory.List
func (s *SQLiteHealingHistory) List(ctx context.Context, filter HistoryFilter, offset, limit int) ([]*HistoryRecord, error) {
	where, args := filter.where()
	query := "SELECT id, alert_name, status, details, recorded_at FROM healing_history" +
		where + " ORDER BY recorded_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list healing history: %w", err)
	}
	defer rows.Close()

	records := make([]*HistoryRecord, 0)
	for rows.Next() {
		record := &HistoryRecord{}
		var status string
		var details sql.NullString

		if err := rows.Scan(&record.ID, &record.AlertName, &status, &details, &record.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan healing history: %w", err)
		}
		record.Status = model.Outcome(status)
		if details.Valid {
			record.Details = details.String
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return records, nil
}

// Count implements HealingHistory.Count
func (s *SQLiteHealingHistory) Count(ctx context.Context, filter HistoryFilter) (int, error) {
	where, args := filter.where()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM healing_history"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count healing history: %w", err)
	}
	return count, nil
}

// DeleteBefore implements HealingHistory.DeleteBefore
func (s *SQLiteHealingHistory) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM healing_history WHERE recorded_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete healing history: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old healing history records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return affected, nil
}

// Close closes the database connection
func (s *SQLiteHealingHistory) Close() error {
	return s.db.Close()
}
