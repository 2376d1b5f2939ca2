package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

func init() {
	DefaultFactory = func(ctx context.Context, cfg *Config) (Backend, error) {
		return NewLocalBackend(ctx, cfg)
	}
}

// LocalBackend implements Backend on the local filesystem.
//
// Thread-safety: metadata and data files are guarded by flock lock files, so
// several hostscan processes may share one staging root.
type LocalBackend struct {
	cfg      *Config
	runStore *LocalRunStore
	mu       sync.RWMutex
	closed   bool
}

// NewLocalBackend creates a new file-based backend.
func NewLocalBackend(ctx context.Context, cfg *Config) (*LocalBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &LocalBackend{
		cfg:      cfg,
		runStore: &LocalRunStore{root: filepath.Join(cfg.Root, "runs")},
	}, nil
}

// Initialize creates the runs directory.
func (b *LocalBackend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	if err := os.MkdirAll(b.runStore.root, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", b.runStore.root, err)
	}
	return nil
}

// Close releases resources held by the backend.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	return nil
}

// Runs returns the run store.
func (b *LocalBackend) Runs() RunStore {
	return b.runStore
}

// Root returns the staging root.
func (b *LocalBackend) Root() string {
	return b.cfg.Root
}

// LocalRunStore implements RunStore on the local filesystem.
type LocalRunStore struct {
	root string // {staging}/runs
}

// List returns the runs matching filter, newest first.
func (s *LocalRunStore) List(ctx context.Context, namespace string, filter RunFilter) ([]*RunMetadata, error) {
	namespaces := []string{namespace}
	if namespace == "" {
		all, err := s.namespaces()
		if err != nil {
			return nil, err
		}
		namespaces = all
	}

	runs := []*RunMetadata{}
	for _, ns := range namespaces {
		nsRuns, err := s.loadFilteredRuns(ctx, ns, filter)
		if err != nil {
			return nil, err
		}
		runs = append(runs, nsRuns...)
	}

	sortRunsByTime(runs)

	if filter.Offset > 0 {
		if filter.Offset >= len(runs) {
			return []*RunMetadata{}, nil
		}
		runs = runs[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(runs) {
		runs = runs[:filter.Limit]
	}

	return runs, nil
}

func (s *LocalRunStore) namespaces() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			out = append(out, entry.Name())
		}
	}
	return out, nil
}

// loadFilteredRuns loads all runs of a namespace and applies filters
func (s *LocalRunStore) loadFilteredRuns(ctx context.Context, namespace string, filter RunFilter) ([]*RunMetadata, error) {
	nsDir := filepath.Join(s.root, namespace)

	entries, err := os.ReadDir(nsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read namespace directory: %w", err)
	}

	var runs []*RunMetadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		metadata, err := s.Get(ctx, namespace, entry.Name())
		if err != nil {
			continue // Skip runs with invalid metadata
		}

		if matchesFilter(metadata, filter) {
			runs = append(runs, metadata)
		}
	}
	return runs, nil
}

func matchesFilter(metadata *RunMetadata, filter RunFilter) bool {
	if filter.Status != "" && metadata.Status != filter.Status {
		return false
	}
	if filter.Output != "" && !strings.Contains(metadata.Output, filter.Output) {
		return false
	}
	return true
}

// sortRunsByTime sorts runs by start time (newest first), ties by id.
func sortRunsByTime(runs []*RunMetadata) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
}

// Get retrieves metadata for a specific run.
func (s *LocalRunStore) Get(ctx context.Context, namespace, runID string) (*RunMetadata, error) {
	if err := validatePathParts(namespace, runID); err != nil {
		return nil, err
	}
	metadataPath := s.metadataPath(namespace, runID)

	if _, err := os.Stat(metadataPath); os.IsNotExist(err) {
		return nil, NewNotFoundError("run", runID)
	}

	lock := flock.New(metadataPath + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to acquire read lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	return readMetadata(metadataPath)
}

func readMetadata(path string) (*RunMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata RunMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &metadata, nil
}

func writeMetadata(path string, metadata *RunMetadata) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// Create stores a new run.
func (s *LocalRunStore) Create(ctx context.Context, namespace string, run *RunMetadata) error {
	if run.ID == "" {
		return NewInvalidInputError("ID", "run ID is required")
	}
	if run.Output == "" {
		return NewInvalidInputError("Output", "run output table is required")
	}
	if err := validatePathParts(namespace, run.ID); err != nil {
		return err
	}

	runDir := s.runDir(namespace, run.ID)
	metadataPath := s.metadataPath(namespace, run.ID)

	if _, err := os.Stat(metadataPath); err == nil {
		return NewAlreadyExistsError("run", run.ID)
	}

	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = now
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	if run.Namespace == "" {
		run.Namespace = namespace
	}
	if run.Status == "" {
		run.Status = string(StatusPending)
	}
	if run.StorageLocation == "" {
		run.StorageLocation = filepath.Join("runs", namespace, run.ID)
	}

	lock := flock.New(metadataPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	return writeMetadata(metadataPath, run)
}

// Update applies the non-nil fields of updates.
func (s *LocalRunStore) Update(ctx context.Context, namespace, runID string, updates RunUpdates) error {
	if err := validatePathParts(namespace, runID); err != nil {
		return err
	}
	metadataPath := s.metadataPath(namespace, runID)

	if _, err := os.Stat(metadataPath); os.IsNotExist(err) {
		return NewNotFoundError("run", runID)
	}

	lock := flock.New(metadataPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	metadata, err := readMetadata(metadataPath)
	if err != nil {
		return err
	}

	if updates.Status != nil {
		if !RunStatus(*updates.Status).IsValid() {
			return NewInvalidInputError("Status", fmt.Sprintf("unknown run status %q", *updates.Status))
		}
		metadata.Status = *updates.Status
	}
	if updates.CompletedAt != nil {
		metadata.CompletedAt = *updates.CompletedAt
	}
	if updates.Duration != nil {
		metadata.Duration = *updates.Duration
	}
	if updates.Counts != nil {
		metadata.Counts = *updates.Counts
	}
	if updates.ErrorMessage != nil {
		metadata.ErrorMessage = *updates.ErrorMessage
	}
	if updates.StorageLocation != nil {
		metadata.StorageLocation = *updates.StorageLocation
	}
	metadata.UpdatedAt = time.Now().UTC()

	return writeMetadata(metadataPath, metadata)
}

// Delete removes a run directory.
func (s *LocalRunStore) Delete(ctx context.Context, namespace, runID string) error {
	if err := validatePathParts(namespace, runID); err != nil {
		return err
	}
	runDir := s.runDir(namespace, runID)

	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		return NewNotFoundError("run", runID)
	}

	if err := os.RemoveAll(runDir); err != nil {
		return fmt.Errorf("failed to delete run directory: %w", err)
	}
	return nil
}

// ReadData opens a data file for reading.
func (s *LocalRunStore) ReadData(ctx context.Context, namespace, runID string, dataType DataType) (io.ReadCloser, error) {
	dataPath, err := s.checkedDataPath(namespace, runID, dataType)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(dataPath); os.IsNotExist(err) {
		return nil, NewNotFoundError("data file", string(dataType))
	}

	file, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	return file, nil
}

// WriteData replaces a data file.
func (s *LocalRunStore) WriteData(ctx context.Context, namespace, runID string, dataType DataType, data io.Reader) error {
	w, err := s.CreateData(ctx, namespace, runID, dataType)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	return w.Close()
}

// CreateData truncates a data file and returns a writer that holds the
// file's lock until closed.
func (s *LocalRunStore) CreateData(ctx context.Context, namespace, runID string, dataType DataType) (io.WriteCloser, error) {
	dataPath, err := s.checkedDataPath(namespace, runID, dataType)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.runDir(namespace, runID), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	lock := flock.New(dataPath + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to acquire write lock: %w", err)
	}

	file, err := os.Create(dataPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to create data file: %w", err)
	}
	return &lockedFile{File: file, lock: lock}, nil
}

// AppendData appends data to a data file.
func (s *LocalRunStore) AppendData(ctx context.Context, namespace, runID string, dataType DataType, data []byte) error {
	dataPath, err := s.checkedDataPath(namespace, runID, dataType)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.runDir(namespace, runID), 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	lock := flock.New(dataPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	file, err := os.OpenFile(dataPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open data file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("failed to append data: %w", err)
	}
	return nil
}

// DeleteData removes a data file.
func (s *LocalRunStore) DeleteData(ctx context.Context, namespace, runID string, dataType DataType) error {
	dataPath, err := s.checkedDataPath(namespace, runID, dataType)
	if err != nil {
		return err
	}

	lock := flock.New(dataPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.Remove(dataPath); err != nil {
		if os.IsNotExist(err) {
			return NewNotFoundError("data file", string(dataType))
		}
		return fmt.Errorf("failed to delete data file: %w", err)
	}
	return nil
}

// DataPath returns the absolute path of a run data file.
func (s *LocalRunStore) DataPath(namespace, runID string, dataType DataType) string {
	return filepath.Join(s.runDir(namespace, runID), string(dataType))
}

type lockedFile struct {
	*os.File
	lock *flock.Flock
}

func (f *lockedFile) Close() error {
	err := f.File.Close()
	if uerr := f.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}

// Helper methods

func (s *LocalRunStore) checkedDataPath(namespace, runID string, dataType DataType) (string, error) {
	if !dataType.IsValid() {
		return "", NewInvalidInputError("dataType", fmt.Sprintf("invalid data type: %s", dataType))
	}
	if dataType == DataTypeMetadata {
		return "", NewInvalidInputError("dataType", "metadata is managed by Create and Update")
	}
	if err := validatePathParts(namespace, runID); err != nil {
		return "", err
	}
	return s.DataPath(namespace, runID, dataType), nil
}

func (s *LocalRunStore) runDir(namespace, runID string) string {
	return filepath.Join(s.root, namespace, runID)
}

func (s *LocalRunStore) metadataPath(namespace, runID string) string {
	return filepath.Join(s.runDir(namespace, runID), string(DataTypeMetadata))
}

func validatePathParts(namespace, runID string) error {
	if err := validatePathPart("namespace", namespace); err != nil {
		return err
	}
	return validatePathPart("run ID", runID)
}

func validatePathPart(field, value string) error {
	if value == "" {
		return NewInvalidInputError(field, "must not be empty")
	}
	if value == "." || value == ".." || strings.ContainsAny(value, `/\`) {
		return NewInvalidInputError(field, fmt.Sprintf("%q is not a valid path element", value))
	}
	return nil
}
