// Package history records previously resolved keys in a TSV file.
// Only keys and titles are stored; stream URLs carry expiring tokens and are
// resolved fresh every time. Writes are atomic (temp+rename).
package history

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"hoplink/internal/config"
	"hoplink/internal/media"
)

// TSV columns: key, title, family, resolved_at
const numColumns = 4

// maxEntries caps the file; the oldest entries are dropped first.
const maxEntries = 200

// Store is a history file on a filesystem.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore returns a Store for path on fs.
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Open returns the Store at the default XDG location on the OS filesystem.
func Open() (*Store, error) {
	path, err := config.HistoryPath()
	if err != nil {
		return nil, err
	}
	return NewStore(afero.NewOsFs(), path), nil
}

// Load reads the history file and returns all entries, oldest first.
func (s *Store) Load() ([]media.HistoryEntry, error) {
	f, err := s.fs.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	var entries []media.HistoryEntry
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parseLine(line)
		if err != nil {
			continue // Skip malformed lines
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	return entries, nil
}

// Save records entry as the most recent one, replacing any earlier entry
// with the same key.
func (s *Store) Save(entry media.HistoryEntry) error {
	if entry.Key == "" {
		return fmt.Errorf("history entry has no key")
	}
	if entry.ResolvedAt == 0 {
		entry.ResolvedAt = time.Now().Unix()
	}

	entries, err := s.Load()
	if err != nil {
		return err
	}

	kept := make([]media.HistoryEntry, 0, len(entries)+1)
	for _, e := range entries {
		if e.Key != entry.Key {
			kept = append(kept, e)
		}
	}
	kept = append(kept, entry)
	if len(kept) > maxEntries {
		kept = kept[len(kept)-maxEntries:]
	}

	return s.write(kept)
}

// Remove deletes the entry with the given key.
func (s *Store) Remove(key string) error {
	entries, err := s.Load()
	if err != nil {
		return err
	}

	var filtered []media.HistoryEntry
	for _, e := range entries {
		if e.Key != key {
			filtered = append(filtered, e)
		}
	}
	return s.write(filtered)
}

// write replaces the file atomically: temp file + rename.
func (s *Store) write(entries []media.HistoryEntry) error {
	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}

	tmpFile, err := afero.TempFile(s.fs, dir, "history-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	writer := bufio.NewWriter(tmpFile)
	for _, e := range entries {
		if _, err := writer.WriteString(formatLine(e) + "\n"); err != nil {
			tmpFile.Close()
			s.fs.Remove(tmpPath)
			return fmt.Errorf("writing history: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		tmpFile.Close()
		s.fs.Remove(tmpPath)
		return fmt.Errorf("flushing history: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := s.fs.Rename(tmpPath, s.path); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("renaming history file: %w", err)
	}

	return nil
}

// FormatForDisplay creates display strings for fzf selection, newest first.
func FormatForDisplay(entries []media.HistoryEntry) []string {
	items := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		title := e.Title
		if title == "" {
			title = "(untitled)"
		}
		when := time.Unix(e.ResolvedAt, 0).Format("2006-01-02 15:04")
		items = append(items, fmt.Sprintf("%s [%s] %s", title, e.Family, when))
	}
	return items
}

// parseLine parses a TSV line into a HistoryEntry.
func parseLine(line string) (media.HistoryEntry, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < numColumns {
		return media.HistoryEntry{}, fmt.Errorf("expected %d columns, got %d", numColumns, len(fields))
	}
	if fields[0] == "" {
		return media.HistoryEntry{}, fmt.Errorf("empty key")
	}

	family, _ := media.ParseFamily(fields[2])
	resolvedAt, _ := strconv.ParseInt(fields[3], 10, 64)

	return media.HistoryEntry{
		Key:        fields[0],
		Title:      fields[1],
		Family:     family,
		ResolvedAt: resolvedAt,
	}, nil
}

var fieldCleaner = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

// formatLine converts a HistoryEntry to a TSV line.
func formatLine(e media.HistoryEntry) string {
	return strings.Join([]string{
		e.Key,
		fieldCleaner.Replace(e.Title),
		e.Family.String(),
		strconv.FormatInt(e.ResolvedAt, 10),
	}, "\t")
}
