// Package history keeps the chat transcript in a plain append-only
// text file.
package history

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"minechat/util"
)

// TimestampLayout renders the "[dd.mm.yy HH:MM] " prefix of each line.
const TimestampLayout = "[02.01.06 15:04] "

// Sink accepts the restored transcript.
type Sink interface {
	Put(string)
}

// Source yields received lines, blocking until one is available.
type Source interface {
	Get(ctx context.Context) (string, error)
}

// Store is a history file.
type Store struct {
	Path       string
	Timestamps bool
	Logger     *util.Logger

	now func() time.Time
}

// NewStore returns a store for path.
func NewStore(path string, timestamps bool, logger *util.Logger) *Store {
	return &Store{Path: path, Timestamps: timestamps, Logger: logger, now: time.Now}
}

// Restore pushes the whole file to sink as a single item.  A missing
// or empty file pushes nothing.
func (s *Store) Restore(sink Sink) error {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		s.Logger.Debug("no history at %s", s.Path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore history: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	s.Logger.Verbose("restored %d bytes of history from %s", len(data), s.Path)
	sink.Put(string(data))
	return nil
}

// Run appends every line from src to the file until ctx is done.  The
// file is unbuffered; each line hits the disk as it arrives.
func (s *Store) Run(ctx context.Context, src Source) error {
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	for {
		line, err := src.Get(ctx)
		if err != nil {
			return err
		}
		if _, err := f.WriteString(s.format(line)); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
	}
}

func (s *Store) format(line string) string {
	if !s.Timestamps {
		return line + "\n"
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	return now().Format(TimestampLayout) + line + "\n"
}
