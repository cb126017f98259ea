package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/natefinch/atomic"

	"github.com/nibzard/tasks-go/internal/task"
)

// ErrLocked is returned when the store lock could not be acquired before the
// context ended.
var ErrLocked = errors.New("store is locked by another process")

const newFileMode os.FileMode = 0o644

// Store runs read-modify-write procedures against one file.
type Store struct {
	path      string
	clock     task.Clock
	logger    *log.Logger
	locking   bool
	status    string
	writeFile func(path string, r io.Reader) error
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for task timestamps.
func WithClock(c task.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaultStatus sets the status given to created tasks.
func WithDefaultStatus(status string) Option {
	return func(s *Store) {
		if status != "" {
			s.status = status
		}
	}
}

// WithLocking enables or disables the advisory lock around mutations.
func WithLocking(enabled bool) Option {
	return func(s *Store) {
		s.locking = enabled
	}
}

// New returns a Store for path. Locking is on by default.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:      path,
		clock:     task.SystemClock,
		logger:    log.New(io.Discard),
		locking:   true,
		status:    task.DefaultStatus,
		writeFile: atomic.WriteFile,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// LockPath returns the path of the advisory lock file.
func (s *Store) LockPath() string {
	return s.path + ".lock"
}

// Init creates the file, replacing any existing content with an empty array.
func (s *Store) Init(ctx context.Context) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return s.save(&Document{})
}

// Remove deletes the store file and its lock file.
func (s *Store) Remove(ctx context.Context) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	removeErr := os.Remove(s.path)
	unlock()

	if s.locking {
		if err := os.Remove(s.LockPath()); err != nil && !os.IsNotExist(err) && removeErr == nil {
			removeErr = err
		}
	}
	if removeErr != nil {
		return fmt.Errorf("remove store: %w", removeErr)
	}
	s.logger.Debug("store removed", "path", s.path)
	return nil
}

// Load reads and parses the file without modifying it.
func (s *Store) Load(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.load()
}

// List returns every decoded task in file order.
func (s *Store) List(ctx context.Context) ([]task.Task, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Tasks(), nil
}

// Read returns the first task with the given id. A missing task is reported
// through the boolean, not as an error.
func (s *Store) Read(ctx context.Context, id uint64) (task.Task, bool, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return task.Task{}, false, err
	}
	t, ok := doc.Find(id)
	return t, ok, nil
}

// NextID returns the lowest id not used in the file.
func (s *Store) NextID(ctx context.Context) (uint64, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	return doc.NextID(), nil
}

// Insert appends t to the file.
func (s *Store) Insert(ctx context.Context, t task.Task) error {
	return s.mutate(ctx, func(doc *Document) {
		doc.Insert(t)
	})
}

// Create assigns the lowest free id to a new task and appends it, all within
// one locked cycle.
func (s *Store) Create(ctx context.Context, description string) (task.Task, error) {
	var created task.Task
	err := s.mutate(ctx, func(doc *Document) {
		created = task.New(doc.NextID(), description, s.clock)
		created.Status = s.status
		doc.Insert(created)
	})
	if err != nil {
		return task.Task{}, err
	}
	s.logger.Debug("task created", "path", s.path, "id", created.ID)
	return created, nil
}

// Update sets field to value on every task with the given id and returns the
// number of tasks changed. The file is rewritten even when nothing matched.
func (s *Store) Update(ctx context.Context, id uint64, field task.Field, value string) (int, error) {
	var n int
	err := s.mutate(ctx, func(doc *Document) {
		n = doc.Update(id, field, value, s.clock)
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("tasks updated", "path", s.path, "id", id, "field", field, "count", n)
	return n, nil
}

// Delete removes every task with the given id and returns how many were
// removed.
func (s *Store) Delete(ctx context.Context, id uint64) (int, error) {
	var n int
	err := s.mutate(ctx, func(doc *Document) {
		n = doc.Delete(id)
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("tasks deleted", "path", s.path, "id", id, "count", n)
	return n, nil
}

func (s *Store) mutate(ctx context.Context, apply func(*Document)) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	apply(doc)
	return s.save(doc)
}

func (s *Store) load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}

	doc := Parse(data)
	if doc.Malformed {
		s.logger.Warn("no JSON array found in store file, treating it as empty", "path", s.path)
	}
	for i, e := range doc.Entries {
		if e.IsOpaque() {
			s.logger.Debug("keeping undecodable fragment", "path", s.path, "index", i)
		}
	}
	return doc, nil
}

func (s *Store) save(doc *Document) error {
	_, statErr := os.Stat(s.path)
	existed := statErr == nil

	if err := s.writeFile(s.path, bytes.NewReader(doc.Bytes())); err != nil {
		return fmt.Errorf("write store %s: %w", s.path, err)
	}

	// The replacement keeps an existing file's mode; new files get the
	// temp file's 0600 unless fixed here.
	if !existed {
		if err := os.Chmod(s.path, newFileMode); err != nil {
			return fmt.Errorf("set store permissions: %w", err)
		}
	}
	return nil
}

func (s *Store) acquire(ctx context.Context) (func(), error) {
	if !s.locking {
		return func() {}, nil
	}
	unlock, err := lockFile(ctx, s.LockPath())
	if err != nil {
		return nil, err
	}
	return unlock, nil
}
