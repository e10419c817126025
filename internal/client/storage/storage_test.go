package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GlycoKeeper/internal/models"
)

func TestOpen_FileNotExist(t *testing.T) {
	ls, err := Open(filepath.Join(t.TempDir(), "storage.json"), nil)
	require.NoError(t, err)
	assert.Empty(t, ls.AccessToken())
	assert.Empty(t, ls.RefreshToken())

	u, err := ls.User()
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestOpen_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("not-json"), 0600))

	_, err := Open(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse storage")
}

func TestTokens_PersistAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.json")
	ls, err := Open(path, nil)
	require.NoError(t, err)

	require.NoError(t, ls.SetTokens("acc", "ref"))
	require.NoError(t, ls.SaveUser(models.User{ID: "u1", Email: "ann@example.com"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "acc", reopened.AccessToken())
	assert.Equal(t, "ref", reopened.RefreshToken())
	u, err := reopened.User()
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)
}

func TestSetTokens_EmptyRefreshKeepsCurrent(t *testing.T) {
	ls, err := Open(filepath.Join(t.TempDir(), "s.json"), nil)
	require.NoError(t, err)
	require.NoError(t, ls.SetTokens("a1", "r1"))
	require.NoError(t, ls.SetTokens("a2", ""))

	assert.Equal(t, "a2", ls.AccessToken())
	assert.Equal(t, "r1", ls.RefreshToken())
}

func TestClearCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	ls, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, ls.SetTokens("a", "r"))
	require.NoError(t, ls.SaveUser(models.User{ID: "u"}))
	require.NoError(t, ls.Set("theme", "dark"))

	require.NoError(t, ls.ClearCredentials())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	for _, k := range []string{KeyAccessToken, KeyRefreshToken, KeyUser} {
		_, ok := reopened.Get(k)
		assert.False(t, ok, k)
	}
	v, ok := reopened.Get("theme")
	assert.True(t, ok)
	assert.Equal(t, "dark", v)
}

func TestEncryptedStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	aead, err := NewAEADFromSecret([]byte("device-secret"))
	require.NoError(t, err)

	ls, err := Open(path, aead)
	require.NoError(t, err)
	require.NoError(t, ls.SetTokens("plain-access", "plain-refresh"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "plain-access"), "token stored in clear text")

	var ff fileFormat
	require.NoError(t, json.Unmarshal(raw, &ff))
	assert.True(t, ff.Encrypted)

	// same secret decrypts
	aead2, err := NewAEADFromSecret([]byte("device-secret"))
	require.NoError(t, err)
	reopened, err := Open(path, aead2)
	require.NoError(t, err)
	assert.Equal(t, "plain-access", reopened.AccessToken())

	// wrong secret fails
	wrong, err := NewAEADFromSecret([]byte("other"))
	require.NoError(t, err)
	_, err = Open(path, wrong)
	assert.Error(t, err)

	// missing secret fails instead of returning ciphertext
	_, err = Open(path, nil)
	assert.Error(t, err)
}

func TestNewAEADFromSecret_Empty(t *testing.T) {
	_, err := NewAEADFromSecret(nil)
	assert.Error(t, err)
}

func TestConcurrentWrites(t *testing.T) {
	ls, err := Open(filepath.Join(t.TempDir(), "s.json"), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ls.SetTokens("a", "r"))
			_ = ls.AccessToken()
		}()
	}
	wg.Wait()
	assert.Equal(t, "a", ls.AccessToken())
}
