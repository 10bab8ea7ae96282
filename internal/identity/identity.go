// Package identity provides the per-client session token that scopes server-side history.
package identity

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"
)

const (
	// DefaultPath is where the CLI keeps its session token.
	DefaultPath = "~/.config/insight/session.json"

	suffixLen = 7
	alphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var tokenRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{8,}$`)

// Valid reports whether token is acceptable as a session id.
func Valid(token string) bool {
	return tokenRe.MatchString(token)
}

// NewToken returns a fresh token of the form session_<unix-millis>_<7 base36 chars>.
func NewToken(now time.Time) (string, error) {
	suffix := make([]byte, suffixLen)
	max := big.NewInt(int64(len(alphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("random suffix: %w", err)
		}
		suffix[i] = alphabet[n.Int64()]
	}
	return "session_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix), nil
}

// Storage persists a single token. Load returns "" with a nil error when nothing is stored.
type Storage interface {
	Load() (string, error)
	Save(token string) error
}

// Identity hands out one stable token per process, backed by Storage.
type Identity struct {
	storage Storage
	now     func() time.Time

	mu    sync.Mutex
	token string
}

// New wraps storage.
func New(storage Storage) *Identity {
	return &Identity{storage: storage, now: time.Now}
}

// GetOrCreate returns the stored token, generating and persisting one when
// nothing valid is stored. Every call returns the same value for the life of the Identity.
func (id *Identity) GetOrCreate() (string, error) {
	id.mu.Lock()
	defer id.mu.Unlock()

	if id.token != "" {
		return id.token, nil
	}

	stored, err := id.storage.Load()
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if Valid(stored) {
		id.token = stored
		return stored, nil
	}

	token, err := NewToken(id.now())
	if err != nil {
		return "", err
	}
	if err := id.storage.Save(token); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	id.token = token
	return token, nil
}

// Reset discards the current token; the next GetOrCreate starts a new session.
func (id *Identity) Reset() (string, error) {
	id.mu.Lock()
	id.token = ""
	id.mu.Unlock()

	if err := id.storage.Save(""); err != nil {
		return "", fmt.Errorf("reset session: %w", err)
	}
	return id.GetOrCreate()
}

// MemoryStorage keeps the token for the life of the process.
type MemoryStorage struct {
	mu    sync.Mutex
	token string
}

func (m *MemoryStorage) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryStorage) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

type sessionFile struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FileStorage keeps the token in a small JSON file.
type FileStorage struct {
	path string
}

// NewFileStorage stores the token at path. A leading ~/ expands to the home directory.
func NewFileStorage(path string) *FileStorage {
	if path == "" {
		path = DefaultPath
	}
	return &FileStorage{path: expandHome(path)}
}

// Path returns the resolved file location.
func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) Load() (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read session file: %w", err)
	}

	var s sessionFile
	if err := json.Unmarshal(data, &s); err != nil {
		// A corrupt file is treated as empty so a new session replaces it.
		return "", nil
	}
	return s.SessionID, nil
}

func (f *FileStorage) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(sessionFile{SessionID: token, CreatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return os.WriteFile(f.path, data, 0o600)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
