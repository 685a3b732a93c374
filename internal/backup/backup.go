// Package backup persists the record set as a "current" JSON file and a
// timestamped snapshot.
package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/juyoungml/pubsync/internal/fsutil"
	"github.com/juyoungml/pubsync/internal/publication"
)

const (
	// DefaultPrefix names the current file ({prefix}.json) and snapshots.
	DefaultPrefix = "publications"

	// TimestampLayout is the snapshot timestamp format (second granularity).
	TimestampLayout = "20060102_150405"

	snapshotInfix = "_backup_"
)

// Writer writes the current file and a snapshot into Dir.
type Writer struct {
	Dir    string
	Prefix string
}

// Result reports where a write went.
type Result struct {
	Current  string `json:"current"`
	Snapshot string `json:"snapshot"`
	Data     []byte `json:"-"` // Serialized bytes written to both files
}

func (w Writer) prefix() string {
	if w.Prefix == "" {
		return DefaultPrefix
	}
	return w.Prefix
}

// CurrentPath returns the path of the always-overwritten current file.
func (w Writer) CurrentPath() string {
	return filepath.Join(w.Dir, w.prefix()+".json")
}

// SnapshotPath returns the snapshot path for a run started at runStart.
func (w Writer) SnapshotPath(runStart time.Time) string {
	return filepath.Join(w.Dir, w.prefix()+snapshotInfix+runStart.Format(TimestampLayout)+".json")
}

// Write serializes records once and writes identical bytes to the current
// file and the snapshot for runStart. The directory is created if absent.
// Any failure is returned; there is no partial success.
func (w Writer) Write(records []publication.Record, runStart time.Time) (Result, error) {
	data, err := Encode(records)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return Result{}, fmt.Errorf("creating backup directory: %w", err)
	}

	res := Result{
		Current:  w.CurrentPath(),
		Snapshot: w.SnapshotPath(runStart),
		Data:     data,
	}
	if err := fsutil.WriteFileAtomic(res.Current, data, 0644); err != nil {
		return Result{}, fmt.Errorf("writing current file: %w", err)
	}
	if err := fsutil.WriteFileAtomic(res.Snapshot, data, 0644); err != nil {
		return Result{}, fmt.Errorf("writing snapshot: %w", err)
	}
	return res, nil
}

// Encode renders records as an indented JSON array with a trailing newline.
func Encode(records []publication.Record) ([]byte, error) {
	if records == nil {
		records = []publication.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encoding records: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadFile reads a JSON array of records written by Write.
func ReadFile(path string) ([]publication.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var records []publication.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return records, nil
}

// Snapshots lists snapshot files in Dir, oldest first.
func (w Writer) Snapshots() ([]string, error) {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing backups: %w", err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, w.prefix()+snapshotInfix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		paths = append(paths, filepath.Join(w.Dir, name))
	}
	// Timestamps sort lexically.
	sort.Strings(paths)
	return paths, nil
}
