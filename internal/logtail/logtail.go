// Package logtail manages the server's run-log directory: one timestamped
// file per run, listable and readable over the HTTP API.
package logtail

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrBadName rejects filenames that could escape the log directory.
var ErrBadName = errors.New("invalid log file name")

// Entry describes one log file.
type Entry struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Dir is a run-log directory.
type Dir struct {
	path string
}

// Open ensures the directory exists and returns it.
func Open(path string) (*Dir, error) {
	if path == "" {
		path = "logs"
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating logs dir: %w", err)
	}
	return &Dir{path: path}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// NewRunLog creates a fresh timestamped log file for one run and returns it
// open for writing. The caller closes it.
func (d *Dir) NewRunLog(now time.Time) (*os.File, error) {
	name := fmt.Sprintf("mend_run_%s.log", now.Format("20060102_150405"))
	f, err := os.OpenFile(filepath.Join(d.path, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating run log: %w", err)
	}
	return f, nil
}

// List returns all log files, newest first.
func (d *Dir) List() ([]Entry, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("listing logs dir: %w", err)
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{Name: e.Name(), Size: info.Size(), Modified: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Modified.After(out[j].Modified) })
	return out, nil
}

// Read returns the contents of one log file by bare name. Names containing
// path separators or traversal elements are rejected.
func (d *Dir) Read(name string) ([]byte, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") || !strings.HasSuffix(name, ".log") {
		return nil, ErrBadName
	}
	data, err := os.ReadFile(filepath.Join(d.path, name))
	if err != nil {
		return nil, fmt.Errorf("reading log %q: %w", name, err)
	}
	return data, nil
}

// Latest returns the newest log file's name and contents.
func (d *Dir) Latest() (string, []byte, error) {
	entries, err := d.List()
	if err != nil {
		return "", nil, err
	}
	if len(entries) == 0 {
		return "", nil, os.ErrNotExist
	}
	data, err := d.Read(entries[0].Name)
	return entries[0].Name, data, err
}
