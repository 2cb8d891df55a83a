package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/newtron-network/bgpwatch/pkg/util"
)

// Logger defines the interface for audit logging backends
type Logger interface {
	Log(event *Event) error
	Query(filter Filter) ([]*Event, error)
	Close() error
}

// RotationConfig configures log file rotation
type RotationConfig struct {
	MaxSize    int64 // bytes before the current file is rotated; 0 disables
	MaxBackups int   // rotated files kept; 0 keeps all
}

// rotatedSuffix sorts lexically in time order.
const rotatedSuffix = "20060102-150405.000000000"

// FileLogger appends events as JSON lines to a file and rotates it by size.
type FileLogger struct {
	path     string
	file     *os.File
	encoder  *json.Encoder
	mu       sync.RWMutex
	rotation RotationConfig
	closed   bool
}

// NewFileLogger opens (or creates) the audit file at path.
func NewFileLogger(path string, rotation RotationConfig) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}

	l := &FileLogger{path: path, rotation: rotation}
	if err := l.open(); err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return l, nil
}

// Path returns the current log file.
func (l *FileLogger) Path() string {
	return l.path
}

// Log writes an audit event to the log file
func (l *FileLogger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("audit log %s is closed", l.path)
	}
	if l.file == nil {
		if err := l.open(); err != nil {
			return err
		}
	}

	if l.rotation.MaxSize > 0 {
		if info, err := l.file.Stat(); err == nil && info.Size() >= l.rotation.MaxSize {
			if err := l.rotate(); err != nil {
				if l.file == nil {
					return fmt.Errorf("rotating audit log: %w", err)
				}
				util.Warnf("audit: rotating %s: %v", l.path, err)
			}
		}
	}

	return l.encoder.Encode(event)
}

// Query returns the events matching filter, newest first, searching the
// current file and any rotated backups.
func (l *FileLogger) Query(filter Filter) ([]*Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	files := append(l.backups(), l.path)

	var events []*Event
	for _, path := range files {
		found, err := readEvents(path, filter)
		if err != nil {
			return nil, err
		}
		events = append(events, found...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(events) {
			return []*Event{}, nil
		}
		events = events[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(events) {
		events = events[:filter.Limit]
	}
	if events == nil {
		events = []*Event{}
	}
	return events, nil
}

// Close closes the log file
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func readEvents(path string, filter Filter) ([]*Event, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var events []*Event
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			util.Warnf("audit: skipping malformed entry at %s:%d: %v", filepath.Base(path), lineNum, err)
			continue
		}
		if matches(&event, filter) {
			events = append(events, &event)
		}
	}
	return events, scanner.Err()
}

func matches(event *Event, filter Filter) bool {
	if filter.Router != "" && event.Router != filter.Router {
		return false
	}
	if filter.Initiator != "" && event.Initiator != filter.Initiator {
		return false
	}
	if filter.Operation != "" && event.Operation != filter.Operation {
		return false
	}
	if filter.Prefix != "" && event.Prefix != filter.Prefix {
		return false
	}
	if !filter.StartTime.IsZero() && event.Timestamp.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && event.Timestamp.After(filter.EndTime) {
		return false
	}
	if filter.SuccessOnly && !event.Success {
		return false
	}
	if filter.FailureOnly && event.Success {
		return false
	}
	return true
}

// rotate moves the current file aside and starts a new one. The current path
// is reopened even when the move fails; l.file is nil only if that reopen
// failed too.
func (l *FileLogger) rotate() error {
	closeErr := l.file.Close()
	l.file, l.encoder = nil, nil

	rotatedPath := l.path + "." + time.Now().Format(rotatedSuffix)
	var renameErr error
	if closeErr == nil {
		renameErr = os.Rename(l.path, rotatedPath)
	}

	if err := l.open(); err != nil {
		return err
	}
	if closeErr != nil {
		return closeErr
	}
	if renameErr != nil {
		return renameErr
	}

	if l.rotation.MaxBackups > 0 {
		l.pruneBackups()
	}
	return nil
}

func (l *FileLogger) open() error {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = file
	l.encoder = json.NewEncoder(file)
	return nil
}

// backups lists rotated files, oldest first.
func (l *FileLogger) backups() []string {
	matches, err := filepath.Glob(l.path + ".*")
	if err != nil {
		return nil
	}
	var out []string
	for _, m := range matches {
		if _, err := time.Parse(rotatedSuffix, strings.TrimPrefix(m, l.path+".")); err == nil {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

func (l *FileLogger) pruneBackups() {
	files := l.backups()
	for len(files) > l.rotation.MaxBackups {
		if err := os.Remove(files[0]); err != nil {
			util.Warnf("audit: removing old log %s: %v", files[0], err)
		}
		files = files[1:]
	}
}
