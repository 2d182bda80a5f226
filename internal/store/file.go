package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aatumaykin/taskrunner/internal/logger"
	"github.com/aatumaykin/taskrunner/internal/task"
)

// FileStore keeps the task mapping in a single document. Files ending in
// .yaml or .yml are written as YAML, everything else as indented JSON.
type FileStore struct {
	filePath string
	logger   *logger.Logger
}

// NewFileStore creates a FileStore for path. Nothing is read or created until
// the first Load or Save.
func NewFileStore(path string, log *logger.Logger) *FileStore {
	return &FileStore{filePath: path, logger: log}
}

// Path returns the document location.
func (s *FileStore) Path() string {
	return s.filePath
}

func (s *FileStore) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(s.filePath))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads the document. A missing file, a malformed document or any read
// error results in an empty map.
func (s *FileStore) Load() map[string]task.Task {
	data, err := os.ReadFile(s.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]task.Task{}
	}
	if err != nil {
		s.logger.Error("failed to read task document", err,
			logger.Field{Key: "file", Value: s.filePath})
		return map[string]task.Task{}
	}

	tasks := map[string]task.Task{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return tasks
	}

	if s.isYAML() {
		err = yaml.Unmarshal(data, &tasks)
	} else {
		err = json.Unmarshal(data, &tasks)
	}
	if err != nil {
		s.logger.Warn("task document is malformed, starting empty",
			logger.Field{Key: "file", Value: s.filePath},
			logger.Field{Key: "error", Value: err.Error()})
		return map[string]task.Task{}
	}

	return withNames(tasks)
}

func (s *FileStore) encode(tasks map[string]task.Task) ([]byte, error) {
	if tasks == nil {
		tasks = map[string]task.Task{}
	}
	if s.isYAML() {
		return yaml.Marshal(tasks)
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Save writes the full mapping to a temporary file and renames it over the
// document.
func (s *FileStore) Save(tasks map[string]task.Task) error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Error("failed to create storage directory", err,
			logger.Field{Key: "dir", Value: dir})
		return fmt.Errorf("create storage directory: %w", err)
	}

	data, err := s.encode(tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}

	tmpPath := s.filePath + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		s.logger.Error("failed to create temporary storage file", err,
			logger.Field{Key: "file", Value: tmpPath})
		return fmt.Errorf("create temporary file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temporary file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		s.logger.Error("failed to rename temporary file", err,
			logger.Field{Key: "from", Value: tmpPath},
			logger.Field{Key: "to", Value: s.filePath})
		return fmt.Errorf("replace task document: %w", err)
	}

	s.logger.Debug("tasks saved",
		logger.Field{Key: "count", Value: len(tasks)},
		logger.Field{Key: "file", Value: s.filePath})

	return nil
}

// Lock takes the document's cross-process write lock.
func (s *FileStore) Lock() (func(), error) {
	return lockPath(s.filePath)
}

// Close is a no-op for FileStore.
func (s *FileStore) Close() error {
	return nil
}
