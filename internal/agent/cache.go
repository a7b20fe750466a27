package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CacheKey names the single cached session entry.
const CacheKey = "chatweet_session"

var ErrNoCachedSession = errors.New("no cached session")

// CachedSession is what the agent keeps between runs.
type CachedSession struct {
	UserID       string    `json:"userId,omitempty"`
	SessionToken string    `json:"sessionToken"`
	DeviceID     string    `json:"deviceId"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type Cache interface {
	Load() (*CachedSession, error)
	Store(session *CachedSession) error
	Clear() error
}

// FileCache stores the session as JSON in dir/chatweet_session.json.
type FileCache struct {
	mu   sync.Mutex
	path string
}

func NewFileCache(dir string) *FileCache {
	return &FileCache{path: filepath.Join(dir, CacheKey+".json")}
}

func (c *FileCache) Path() string {
	return c.path
}

func (c *FileCache) Load() (*CachedSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCachedSession
	}
	if err != nil {
		return nil, fmt.Errorf("read session cache: %w", err)
	}

	var session CachedSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session cache: %w", err)
	}
	if session.SessionToken == "" || session.DeviceID == "" {
		return nil, ErrNoCachedSession
	}
	return &session, nil
}

// Store replaces the cached session. The file is written beside the target
// and renamed so a crash never leaves half a record behind.
func (c *FileCache) Store(session *CachedSession) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), CacheKey+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace session cache: %w", err)
	}
	return nil
}

func (c *FileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session cache: %w", err)
	}
	return nil
}
