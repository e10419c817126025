// Package storage is the device-local key/value store of the client. It
// keeps the access token, the refresh token and the serialized user in a
// single JSON file, optionally encrypted at rest.
package storage

import (
	"crypto/cipher"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/atinyakov/GlycoKeeper/internal/models"
)

// Keys used by the client.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// LocalStorage is a file-backed key/value store safe for concurrent use.
// Every mutation is flushed to disk before it returns.
type LocalStorage struct {
	path string
	aead cipher.AEAD

	mu     sync.RWMutex
	values map[string]string
}

type fileFormat struct {
	Encrypted bool              `json:"encrypted"`
	Values    map[string]string `json:"values"`
}

// Open loads the store at path, creating an empty one if the file does not
// exist. A nil aead stores values in clear text.
func Open(path string, aead cipher.AEAD) (*LocalStorage, error) {
	ls := &LocalStorage{path: path, aead: aead, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ls, nil
		}
		return nil, fmt.Errorf("read storage: %w", err)
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parse storage: %w", err)
	}
	if ff.Encrypted != (aead != nil) {
		return nil, errors.New("storage encryption setting does not match file")
	}
	for k, v := range ff.Values {
		if aead != nil {
			if v, err = open(aead, v); err != nil {
				return nil, fmt.Errorf("value %q: %w", k, err)
			}
		}
		ls.values[k] = v
	}
	return ls, nil
}

// Get returns the value stored under key.
func (ls *LocalStorage) Get(key string) (string, bool) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	v, ok := ls.values[key]
	return v, ok
}

// Set stores value under key.
func (ls *LocalStorage) Set(key, value string) error {
	return ls.SetMany(map[string]string{key: value})
}

// SetMany stores several values with a single write.
func (ls *LocalStorage) SetMany(kv map[string]string) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for k, v := range kv {
		ls.values[k] = v
	}
	return ls.save()
}

// Delete removes keys. Missing keys are ignored.
func (ls *LocalStorage) Delete(keys ...string) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for _, k := range keys {
		delete(ls.values, k)
	}
	return ls.save()
}

// AccessToken returns the stored access token or "".
func (ls *LocalStorage) AccessToken() string {
	v, _ := ls.Get(KeyAccessToken)
	return v
}

// RefreshToken returns the stored refresh token or "".
func (ls *LocalStorage) RefreshToken() string {
	v, _ := ls.Get(KeyRefreshToken)
	return v
}

// SetTokens stores both tokens. An empty refresh token keeps the current one.
func (ls *LocalStorage) SetTokens(access, refresh string) error {
	kv := map[string]string{KeyAccessToken: access}
	if refresh != "" {
		kv[KeyRefreshToken] = refresh
	}
	return ls.SetMany(kv)
}

// ClearCredentials removes the tokens and the stored user.
func (ls *LocalStorage) ClearCredentials() error {
	return ls.Delete(KeyAccessToken, KeyRefreshToken, KeyUser)
}

// SaveUser stores u serialized as JSON.
func (ls *LocalStorage) SaveUser(u models.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return ls.Set(KeyUser, string(b))
}

// User returns the stored user, or nil if none is stored.
func (ls *LocalStorage) User() (*models.User, error) {
	raw, ok := ls.Get(KeyUser)
	if !ok {
		return nil, nil
	}
	var u models.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

// save writes the store atomically. Callers hold ls.mu.
func (ls *LocalStorage) save() error {
	ff := fileFormat{Encrypted: ls.aead != nil, Values: make(map[string]string, len(ls.values))}
	for k, v := range ls.values {
		if ls.aead != nil {
			sealed, err := seal(ls.aead, v)
			if err != nil {
				return err
			}
			v = sealed
		}
		ff.Values[k] = v
	}
	data, err := json.Marshal(ff)
	if err != nil {
		return fmt.Errorf("encode storage: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(ls.path), 0700); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(ls.path), ".storage-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write storage: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return fmt.Errorf("chmod storage: %w", err)
	}
	return os.Rename(tmp.Name(), ls.path)
}
