package board

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codefionn/crewschnell/internal/analyzer"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists board snapshots in a SQLite database, one row per
// project plus one row per feature.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database at dbPath and
// migrates the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS projects (
			project_id TEXT PRIMARY KEY,
			version    INTEGER NOT NULL,
			saved_at   TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS features (
			project_id    TEXT NOT NULL REFERENCES projects(project_id) ON DELETE CASCADE,
			position      INTEGER NOT NULL,
			id            TEXT NOT NULL,
			title         TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			task_type     TEXT NOT NULL,
			priority      TEXT NOT NULL,
			status        TEXT NOT NULL,
			assigned_role TEXT NOT NULL DEFAULT '',
			dependencies  TEXT NOT NULL DEFAULT '[]',
			notes         TEXT NOT NULL DEFAULT '[]',
			subtasks      TEXT NOT NULL DEFAULT '[]',
			retries       INTEGER NOT NULL DEFAULT 0,
			commit_ref    TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMP NOT NULL,
			started_at    TIMESTAMP,
			completed_at  TIMESTAMP,
			PRIMARY KEY (project_id, id)
		);
	`)
	return err
}

// Save implements Store. The previous snapshot for the project is replaced
// atomically.
func (s *SQLiteStore) Save(projectID string, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("board: nil snapshot")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO projects (project_id, version, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET version = excluded.version, saved_at = excluded.saved_at`,
		projectID, snap.Version, snap.SavedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM features WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to clear features: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO features (
			project_id, position, id, title, description, task_type, priority,
			status, assigned_role, dependencies, notes, subtasks, retries,
			commit_ref, created_at, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare feature insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range snap.Features {
		deps, _ := json.Marshal(f.Dependencies)
		notes, _ := json.Marshal(f.Notes)
		subtasks, _ := json.Marshal(f.Subtasks)

		if _, err := stmt.Exec(
			projectID, i, f.ID, f.Title, f.Description, string(f.Type),
			string(f.Priority), string(f.Status), f.AssignedRole,
			string(deps), string(notes), string(subtasks), f.Retries,
			f.CommitRef, f.CreatedAt, nullableTime(f.StartedAt), nullableTime(f.CompletedAt),
		); err != nil {
			return fmt.Errorf("failed to insert feature %s: %w", f.ID, err)
		}
	}

	return tx.Commit()
}

// Load implements Store.
func (s *SQLiteStore) Load(projectID string) (*Snapshot, error) {
	snap := &Snapshot{ProjectID: projectID}

	err := s.db.QueryRow(
		`SELECT version, saved_at FROM projects WHERE project_id = ?`, projectID,
	).Scan(&snap.Version, &snap.SavedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT id, title, description, task_type, priority, status,
		       assigned_role, dependencies, notes, subtasks, retries,
		       commit_ref, created_at, started_at, completed_at
		FROM features WHERE project_id = ? ORDER BY position`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to read features: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			f                     Feature
			taskType, priority    string
			status                string
			deps, notes, subtasks string
			startedAt, doneAt     sql.NullTime
		)
		if err := rows.Scan(
			&f.ID, &f.Title, &f.Description, &taskType, &priority, &status,
			&f.AssignedRole, &deps, &notes, &subtasks, &f.Retries,
			&f.CommitRef, &f.CreatedAt, &startedAt, &doneAt,
		); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}

		f.Type = analyzer.TaskType(taskType)
		f.Priority = analyzer.Priority(priority)
		f.Status = Status(status)
		if startedAt.Valid {
			f.StartedAt = startedAt.Time
		}
		if doneAt.Valid {
			f.CompletedAt = doneAt.Time
		}
		if err := json.Unmarshal([]byte(deps), &f.Dependencies); err != nil {
			return nil, fmt.Errorf("%w: dependencies of %s: %v", ErrCorruptSnapshot, f.ID, err)
		}
		if err := json.Unmarshal([]byte(notes), &f.Notes); err != nil {
			return nil, fmt.Errorf("%w: notes of %s: %v", ErrCorruptSnapshot, f.ID, err)
		}
		if err := json.Unmarshal([]byte(subtasks), &f.Subtasks); err != nil {
			return nil, fmt.Errorf("%w: subtasks of %s: %v", ErrCorruptSnapshot, f.ID, err)
		}

		snap.Features = append(snap.Features, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan features: %w", err)
	}

	return snap, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
