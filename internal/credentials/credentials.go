// Package credentials stores account tokens on disk, one file per
// nickname.
package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// Extension is appended to the nickname to form a token file name.
const Extension = ".token"

// FileStore keeps tokens as <Dir>/<nickname>.token.
type FileStore struct {
	Dir string
}

// Path returns the token file for nickname.  Path separators in the
// nickname are replaced so the file always lands inside Dir.
func (s *FileStore) Path(nickname string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, nickname)
	if name == "" || name == "." || name == ".." {
		name = "_" + name
	}
	return filepath.Join(s.dir(), name+Extension)
}

// SaveToken writes hash to the nickname's token file, replacing any
// previous one atomically.
func (s *FileStore) SaveToken(nickname, hash string) error {
	path := s.Path(nickname)
	if err := atomic.WriteFile(path, strings.NewReader(hash)); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// LoadToken returns the saved token for nickname, or "" when there is
// none.
func (s *FileStore) LoadToken(nickname string) (string, error) {
	data, err := os.ReadFile(s.Path(nickname))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileStore) dir() string {
	if s.Dir == "" {
		return "."
	}
	return s.Dir
}
