package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/tasks-go/internal/task"
)

// steppingClock returns start, start+1, start+2, ... on successive reads.
func steppingClock(start int64) task.Clock {
	next := start
	return task.ClockFunc(func() time.Time {
		t := time.Unix(next, 0)
		next++
		return t
	})
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.db")
	s := New(path, append([]Option{WithClock(steppingClock(1000))}, opts...)...)
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestInit(t *testing.T) {
	s := newTestStore(t)

	if got := readFile(t, s.Path()); got != "[]\n" {
		t.Errorf("contents: got %q, want %q", got, "[]\n")
	}

	info, err := os.Stat(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != newFileMode {
		t.Errorf("mode: got %v, want %v", info.Mode().Perm(), newFileMode)
	}
}

func TestInitTruncatesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, "buy milk"); err != nil {
		t.Fatal(err)
	}

	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := readFile(t, s.Path()); got != "[]\n" {
		t.Errorf("contents: got %q, want %q", got, "[]\n")
	}
}

func TestInitMissingDirectory(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing", "tasks.db"))
	err := s.Init(context.Background())
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("error should name the path: %v", err)
	}
}

func TestCreateAssignsLowestID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, desc := range []string{"a", "b", "c"} {
		created, err := s.Create(ctx, desc)
		if err != nil {
			t.Fatalf("Create(%q): %v", desc, err)
		}
		if created.ID != uint64(i) {
			t.Errorf("Create(%q) id: got %d, want %d", desc, created.ID, i)
		}
		if created.Status != task.DefaultStatus {
			t.Errorf("Create(%q) status: got %q", desc, created.Status)
		}
	}

	if _, err := s.Delete(ctx, 1); err != nil {
		t.Fatal(err)
	}
	created, err := s.Create(ctx, "d")
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != 1 {
		t.Errorf("id after delete: got %d, want 1", created.ID)
	}
}

func TestNextID(t *testing.T) {
	tests := []struct {
		name string
		ids  []uint64
		want uint64
	}{
		{"empty file", nil, 0},
		{"gap", []uint64{0, 1, 2, 4}, 3},
		{"no zero", []uint64{1, 2, 3}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()
			for _, id := range tt.ids {
				if err := s.Insert(ctx, task.New(id, "x", nil)); err != nil {
					t.Fatal(err)
				}
			}

			got, err := s.NextID(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("NextID: got %d, want %d", got, tt.want)
			}

			created, err := s.Create(ctx, "next")
			if err != nil {
				t.Fatal(err)
			}
			if created.ID != tt.want {
				t.Errorf("Create id: got %d, want %d", created.ID, tt.want)
			}
		})
	}
}

func TestReadNotFound(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Read(context.Background(), 3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ok {
		t.Error("expected not found")
	}
}

func TestReadDoesNotRewrite(t *testing.T) {
	s := newTestStore(t)
	raw := "prefix [ " + record(0, "a", "todo") + " ] suffix"
	if err := os.WriteFile(s.Path(), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, _, err := s.Read(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.List(ctx); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, s.Path()); got != raw {
		t.Errorf("file changed by read: %q", got)
	}
}

func TestListIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, d := range []string{"a", "b, with comma", "c: with colon"} {
		if _, err := s.Create(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	first, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("List not idempotent:\n%+v\n%+v", first, second)
	}
	if len(first) != 3 || first[1].Description != "b, with comma" || first[2].Description != "c: with colon" {
		t.Errorf("List: got %+v", first)
	}
}

func TestUpdatePreservesIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	orig, err := s.Create(ctx, "buy milk")
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.Update(ctx, orig.ID, task.FieldDescription, "buy oat milk")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Update count: got %d, want 1", n)
	}

	got, ok, err := s.Read(ctx, orig.ID)
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	if got.Description != "buy oat milk" {
		t.Errorf("Description: got %q", got.Description)
	}
	if got.ID != orig.ID || got.Status != orig.Status || got.CreatedAt != orig.CreatedAt {
		t.Errorf("identity changed: got %+v, orig %+v", got, orig)
	}
	if got.UpdatedAt <= orig.UpdatedAt {
		t.Errorf("UpdatedAt not refreshed: got %d, orig %d", got.UpdatedAt, orig.UpdatedAt)
	}
}

func TestUpdateNoMatchRewritesIdentically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	before := readFile(t, s.Path())

	n, err := s.Update(ctx, 42, task.FieldStatus, "done")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n != 0 {
		t.Errorf("Update count: got %d, want 0", n)
	}
	if got := readFile(t, s.Path()); got != before {
		t.Errorf("file changed:\n got %s\nwant %s", got, before)
	}
}

func TestDeleteThenRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	var created []task.Task
	for _, d := range []string{"a", "b", "c"} {
		tk, err := s.Create(ctx, d)
		if err != nil {
			t.Fatal(err)
		}
		created = append(created, tk)
	}

	n, err := s.Delete(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Delete count: got %d, want 1", n)
	}

	if _, ok, _ := s.Read(ctx, 1); ok {
		t.Error("task 1 still readable")
	}
	for _, want := range []task.Task{created[0], created[2]} {
		got, ok, err := s.Read(ctx, want.ID)
		if err != nil || !ok {
			t.Fatalf("Read(%d): ok=%v err=%v", want.ID, ok, err)
		}
		if got != want {
			t.Errorf("Read(%d): got %+v, want %+v", want.ID, got, want)
		}
	}
}

func TestOpaqueFragmentsSurviveEveryMutation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	raw := `[{"note":"keep me"},` + record(0, "a", "todo") + `,not-json]`
	if err := os.WriteFile(s.Path(), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Create(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Update(ctx, 0, task.FieldStatus, "done"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Delete(ctx, 0); err != nil {
		t.Fatal(err)
	}

	got := readFile(t, s.Path())
	for _, want := range []string{`{"note":"keep me"}`, `not-json`} {
		if !strings.Contains(got, want) {
			t.Errorf("lost %q: %s", want, got)
		}
	}
}

func TestMalformedFileIsEmptyWithWarning(t *testing.T) {
	var logs bytes.Buffer
	logger := log.NewWithOptions(&logs, log.Options{Level: log.DebugLevel})
	s := newTestStore(t, WithLogger(logger))
	if err := os.WriteFile(s.Path(), []byte("nothing here"), 0o644); err != nil {
		t.Fatal(err)
	}

	tasks, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("tasks: got %d, want 0", len(tasks))
	}
	if !strings.Contains(logs.String(), "no JSON array found") {
		t.Errorf("missing diagnostic, logs: %q", logs.String())
	}

	created, err := s.Create(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != 0 {
		t.Errorf("id: got %d, want 0", created.ID)
	}
}

func TestMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent.db"))
	ctx := context.Background()

	if _, err := s.List(ctx); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("List: got %v, want ErrNotExist", err)
	}
	if _, err := s.Create(ctx, "a"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Create: got %v, want ErrNotExist", err)
	}
}

func TestFailedWriteKeepsPreviousContents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	before := readFile(t, s.Path())

	s.writeFile = func(string, io.Reader) error {
		return errors.New("disk full")
	}
	_, err := s.Create(ctx, "b")
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("Create: got %v, want disk full", err)
	}
	if got := readFile(t, s.Path()); got != before {
		t.Errorf("contents changed after failed write:\n got %s\nwant %s", got, before)
	}
}

func TestFailedRenameWriteKeepsPreviousContents(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("directory permissions differ on windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	before := readFile(t, s.Path())

	dir := filepath.Dir(s.Path())
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	if _, err := s.Create(ctx, "b"); err == nil {
		t.Fatal("Create: expected error writing into a read-only directory")
	}
	if got := readFile(t, s.Path()); got != before {
		t.Errorf("contents changed after failed write:\n got %s\nwant %s", got, before)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "tasks.db" && e.Name() != "tasks.db.lock" {
			t.Errorf("leftover file %s", e.Name())
		}
	}
}

func TestStrayQuoteDoesNotHideLaterRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	legacy := `{"id":0,"description":"5" screen","status":"todo","created_at":100,"updated_at":100}`
	raw := "[" + legacy + "," + record(1, "b", "todo") + "," + record(2, "c},{d", "done") + "]\n"
	if err := os.WriteFile(s.Path(), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Entries) != 3 || doc.OpaqueCount() != 1 {
		t.Fatalf("entries: got %d (%d opaque), want 3 (1 opaque)", len(doc.Entries), doc.OpaqueCount())
	}

	got, ok, err := s.Read(ctx, 2)
	if err != nil || !ok {
		t.Fatalf("Read(2): ok=%v err=%v", ok, err)
	}
	if got.Description != "c},{d" {
		t.Errorf("Read(2) description: got %q", got.Description)
	}

	created, err := s.Create(ctx, "new")
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != 3 {
		t.Errorf("Create id: got %d, want 3", created.ID)
	}

	after := readFile(t, s.Path())
	if !strings.Contains(after, `"description":"5"screen"`) {
		t.Errorf("legacy record not kept: %s", after)
	}
	tasks, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 3 {
		t.Errorf("tasks after create: got %d, want 3", len(tasks))
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := s.Create(ctx, "x"); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "tasks.db" && e.Name() != "tasks.db.lock" {
			t.Errorf("unexpected file %s", e.Name())
		}
	}
}

func TestLockedStoreTimesOut(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("flock not available")
	}
	s := newTestStore(t)

	unlock, err := lockFile(context.Background(), s.LockPath())
	if err != nil {
		t.Fatalf("lockFile: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = s.Create(ctx, "blocked")
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("Create: got %v, want ErrLocked", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Create: got %v, want wrapped DeadlineExceeded", err)
	}
}

func TestLockReleasedAfterMutation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	unlock, err := lockFile(ctx, s.LockPath())
	if err != nil {
		t.Fatalf("lock still held: %v", err)
	}
	unlock()
}

func TestWithoutLocking(t *testing.T) {
	s := newTestStore(t, WithLocking(false))
	if _, err := s.Create(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.LockPath()); !os.IsNotExist(err) {
		t.Errorf("lock file created with locking disabled: %v", err)
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	if err := s.Remove(ctx); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	for _, p := range []string{s.Path(), s.LockPath()} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still exists: %v", p, err)
		}
	}

	if err := s.Remove(ctx); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("second Remove: got %v, want ErrNotExist", err)
	}
}

func TestScenario(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if got := readFile(t, s.Path()); got != "[]\n" {
		t.Fatalf("after init: %q", got)
	}

	first, err := s.Create(ctx, "buy milk")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != 0 || first.Status != "todo" {
		t.Fatalf("first: %+v", first)
	}
	second, err := s.Create(ctx, "write spec")
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != 1 {
		t.Fatalf("second: %+v", second)
	}

	if _, err := s.Update(ctx, 0, task.FieldStatus, "done"); err != nil {
		t.Fatal(err)
	}
	updated, _, _ := s.Read(ctx, 0)
	if updated.Status != "done" || updated.UpdatedAt <= first.UpdatedAt {
		t.Fatalf("after update-status: %+v", updated)
	}

	if _, err := s.Delete(ctx, 1); err != nil {
		t.Fatal(err)
	}

	tasks, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].ID != 0 || tasks[0].Status != "done" {
		t.Errorf("final list: %+v", tasks)
	}
}

func TestCreateWithDefaultStatus(t *testing.T) {
	s := newTestStore(t, WithDefaultStatus("open"))
	created, err := s.Create(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if created.Status != "open" {
		t.Errorf("Status: got %q, want open", created.Status)
	}
	stored, _, _ := s.Read(context.Background(), created.ID)
	if stored != created {
		t.Errorf("stored %+v, returned %+v", stored, created)
	}
}
