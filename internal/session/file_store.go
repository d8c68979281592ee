package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/ini.v1"
)

const fileSection = "session"

// FileStore keeps the session in an INI file under a [session] section.
// The file is rewritten atomically with 0600 permissions on every change.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on the
// first write.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("session file path is empty")
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) load() (*ini.File, error) {
	if _, err := os.Stat(f.path); os.IsNotExist(err) {
		return ini.Empty(), nil
	}
	file, err := ini.Load(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	return file, nil
}

func (f *FileStore) save(file *ini.File) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmpPath := f.path + ".tmp"
	if err := file.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set session file permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save session file: %w", err)
	}
	return nil
}

func (f *FileStore) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := f.load()
	if err != nil {
		return "", err
	}
	section, err := file.GetSection(fileSection)
	if err != nil || !section.HasKey(key) {
		return "", ErrNotFound
	}
	return section.Key(key).String(), nil
}

func (f *FileStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := f.load()
	if err != nil {
		return err
	}
	file.Section(fileSection).Key(key).SetValue(value)
	return f.save(file)
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := f.load()
	if err != nil {
		return err
	}
	section, err := file.GetSection(fileSection)
	if err != nil || !section.HasKey(key) {
		return nil
	}
	section.DeleteKey(key)
	return f.save(file)
}

func (f *FileStore) Close() error { return nil }
