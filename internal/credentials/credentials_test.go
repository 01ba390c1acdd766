package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoad(t *testing.T) {
	s := &FileStore{Dir: t.TempDir()}

	require.NoError(t, s.SaveToken("bob", "h1"))
	tok, err := s.LoadToken("bob")
	require.NoError(t, err)
	assert.Equal(t, "h1", tok)

	data, err := os.ReadFile(filepath.Join(s.Dir, "bob.token"))
	require.NoError(t, err)
	assert.Equal(t, "h1", string(data))
}

func TestSaveReplaces(t *testing.T) {
	s := &FileStore{Dir: t.TempDir()}

	require.NoError(t, s.SaveToken("bob", "old-hash-that-is-longer"))
	require.NoError(t, s.SaveToken("bob", "new"))

	tok, err := s.LoadToken("bob")
	require.NoError(t, err)
	assert.Equal(t, "new", tok)
}

func TestLoadMissing(t *testing.T) {
	s := &FileStore{Dir: t.TempDir()}

	tok, err := s.LoadToken("nobody")
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestLoadTrimsWhitespace(t *testing.T) {
	s := &FileStore{Dir: t.TempDir()}
	require.NoError(t, os.WriteFile(s.Path("eve"), []byte("h2\n"), 0o600))

	tok, err := s.LoadToken("eve")
	require.NoError(t, err)
	assert.Equal(t, "h2", tok)
}

func TestPath(t *testing.T) {
	dir := t.TempDir()
	s := &FileStore{Dir: dir}

	tests := []struct {
		nickname string
		want     string
	}{
		{"bob", "bob.token"},
		{"../etc/passwd", ".._etc_passwd.token"},
		{"a\\b", "a_b.token"},
		{"..", "_...token"},
		{"", "_.token"},
	}
	for _, tt := range tests {
		t.Run(tt.nickname, func(t *testing.T) {
			assert.Equal(t, filepath.Join(dir, tt.want), s.Path(tt.nickname))
		})
	}
}

func TestDefaultDir(t *testing.T) {
	s := &FileStore{}
	assert.Equal(t, "bob.token", s.Path("bob"))
}

func TestSaveIntoMissingDir(t *testing.T) {
	s := &FileStore{Dir: filepath.Join(t.TempDir(), "missing")}
	assert.Error(t, s.SaveToken("bob", "h1"))
}
