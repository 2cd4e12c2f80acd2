package client

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ErrNoToken means no usable token is stored.
var ErrNoToken = errors.New("no stored token")

// TokenStore persists the auth token across process restarts.
type TokenStore interface {
	Save(token string, expiresAt time.Time) error
	Load() (string, error)
	Clear() error
}

type tokenFile struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FileTokenStore keeps the token in a single well-known JSON file under the
// user config directory.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore uses the default config location, honoring XDG_CONFIG_HOME.
func NewFileTokenStore() *FileTokenStore {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return &FileTokenStore{path: filepath.Join(dir, "presence", "token.json")}
}

// NewFileTokenStoreAt stores the token at an explicit path.
func NewFileTokenStoreAt(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Save(token string, expiresAt time.Time) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokenFile{Token: token, ExpiresAt: expiresAt}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *FileTokenStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoToken
		}
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return "", err
	}
	if tf.Token == "" || (!tf.ExpiresAt.IsZero() && time.Now().After(tf.ExpiresAt)) {
		return "", ErrNoToken
	}
	return tf.Token, nil
}

func (s *FileTokenStore) Clear() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
