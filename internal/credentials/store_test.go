package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/grandprix/internal/models"
)

func testUser() models.UserProfile {
	return models.UserProfile{
		ID:        "7",
		Username:  "jdoe",
		Email:     "jdoe@example.com",
		FirstName: "Jane",
		LastName:  "Doe",
		Role:      models.RoleNormal,
	}
}

func TestNewStore(t *testing.T) {
	t.Run("creates directory with correct permissions", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "creds")

		store, err := NewStore(dir)
		require.NoError(t, err)
		assert.NotNil(t, store)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
	})

	t.Run("empty store has no credentials", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		_, err = store.Load()
		require.ErrorIs(t, err, ErrNoCredentials)
		assert.Empty(t, store.Token())
	})
}

func TestStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save("tok-123", testUser()))

	creds, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-123", creds.Token)
	assert.Equal(t, testUser(), creds.User)
	assert.Equal(t, "tok-123", store.Token())

	info, err := os.Stat(filepath.Join(dir, sessionFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// a second store over the same directory sees the same session
	other, err := NewStore(dir)
	require.NoError(t, err)
	creds, err = other.Load()
	require.NoError(t, err)
	assert.Equal(t, "jdoe", creds.User.Username)
}

func TestStore_SaveRejectsIncompleteSession(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.ErrorIs(t, store.Save("", testUser()), ErrInvalidCredentials)
	require.ErrorIs(t, store.Save("tok", models.UserProfile{}), ErrInvalidCredentials)
}

func TestStore_Clear(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("tok-123", testUser()))
	require.NoError(t, store.Clear())

	_, err = store.Load()
	require.ErrorIs(t, err, ErrNoCredentials)

	// clearing twice is fine
	require.NoError(t, store.Clear())
}

func TestStore_CorruptFileTreatedAsSignedOut(t *testing.T) {
	t.Run("unparsable", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewStore(dir)
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(filepath.Join(dir, sessionFileName), []byte("{not json"), 0600))

		_, err = store.Load()
		require.ErrorIs(t, err, ErrNoCredentials)
	})

	t.Run("tampered user", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewStore(dir)
		require.NoError(t, err)
		require.NoError(t, store.Save("tok-123", testUser()))

		path := filepath.Join(dir, sessionFileName)
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var sf sessionFile
		require.NoError(t, json.Unmarshal(data, &sf))
		sf.User.Role = models.RoleAdmin
		data, err = json.Marshal(sf)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0600))

		_, err = store.Load()
		require.ErrorIs(t, err, ErrNoCredentials)
		assert.Empty(t, store.Token())
	})
}

func TestStore_ReturnTo(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, ok := store.TakeReturnTo()
	assert.False(t, ok)

	require.NoError(t, store.SaveReturnTo("/my-reservations"))

	loc, ok := store.TakeReturnTo()
	require.True(t, ok)
	assert.Equal(t, "/my-reservations", loc)

	_, ok = store.TakeReturnTo()
	assert.False(t, ok)
}

func TestFingerprint(t *testing.T) {
	assert.Empty(t, Fingerprint(""))

	fp := Fingerprint("tok-123")
	assert.Len(t, fp, 12)
	assert.Equal(t, fp, Fingerprint("tok-123"))
	assert.NotEqual(t, fp, Fingerprint("tok-124"))
	assert.NotContains(t, fp, "tok")
}
