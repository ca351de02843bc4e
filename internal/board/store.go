package board

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// SnapshotVersion is the storage format version for forward compatibility.
const SnapshotVersion = 1

var (
	// ErrSnapshotNotFound means the store has no data for the project.
	ErrSnapshotNotFound = errors.New("board: no snapshot for project")
	// ErrProjectMismatch means the stored data belongs to another project.
	ErrProjectMismatch = errors.New("board: snapshot project mismatch")
	// ErrCorruptSnapshot means the stored data could not be decoded.
	ErrCorruptSnapshot = errors.New("board: corrupt snapshot")
)

// Snapshot is the persisted form of a board.
type Snapshot struct {
	Version   int        `json:"version"`
	ProjectID string     `json:"project_id"`
	SavedAt   time.Time  `json:"saved_at"`
	Features  []*Feature `json:"features"`
}

// Store abstracts the persistence medium for board snapshots.
type Store interface {
	// Load returns the snapshot for the project, ErrSnapshotNotFound when
	// none exists, or ErrCorruptSnapshot/ErrProjectMismatch on bad data.
	Load(projectID string) (*Snapshot, error)
	// Save persists the snapshot under the project identity.
	Save(projectID string, snap *Snapshot) error
}

// FileStore persists one gob-encoded snapshot file per project under a
// directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

var unsafeProjectChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func (s *FileStore) path(projectID string) string {
	name := unsafeProjectChars.ReplaceAllString(projectID, "_")
	if name == "" {
		name = "default"
	}
	return filepath.Join(s.dir, name+".board.gob")
}

// Load implements Store.
func (s *FileStore) Load(projectID string) (*Snapshot, error) {
	file, err := os.Open(s.path(projectID))
	if os.IsNotExist(err) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	var snap Snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap.ProjectID != projectID {
		return nil, fmt.Errorf("%w: file holds %q", ErrProjectMismatch, snap.ProjectID)
	}
	return &snap, nil
}

// Save implements Store. The snapshot is written to a temp file and renamed
// so readers never see a partial write.
func (s *FileStore) Save(projectID string, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("board: nil snapshot")
	}

	tmp, err := os.CreateTemp(s.dir, ".board-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot temp file: %w", err)
	}

	return os.Rename(tmp.Name(), s.path(projectID))
}
