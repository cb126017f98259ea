package store

import (
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/nibzard/tasks-go/internal/task"
)

// Entry is one fragment of the store file: either a decoded task or opaque
// text that is written back verbatim.
type Entry struct {
	task    task.Task
	raw     string
	decoded bool
}

// Decoded returns an entry holding t.
func Decoded(t task.Task) Entry {
	return Entry{task: t, raw: task.Encode(t), decoded: true}
}

// Opaque returns an entry holding undecodable text.
func Opaque(raw string) Entry {
	return Entry{raw: raw}
}

// Task returns the decoded task, or false for opaque entries.
func (e Entry) Task() (task.Task, bool) {
	return e.task, e.decoded
}

// IsOpaque reports whether the entry failed to decode.
func (e Entry) IsOpaque() bool {
	return !e.decoded
}

// Raw returns the fragment as it was read from disk.
func (e Entry) Raw() string {
	return e.raw
}

// opaqueID reads a non-negative integer "id" from an opaque object fragment.
func (e Entry) opaqueID() (uint64, bool) {
	if e.decoded || !strings.HasPrefix(e.raw, "{") {
		return 0, false
	}
	r := gjson.Get(e.raw, "id")
	switch r.Type {
	case gjson.Number:
		id, err := strconv.ParseUint(r.Raw, 10, 64)
		return id, err == nil
	case gjson.String:
		id, err := strconv.ParseUint(r.Str, 10, 64)
		return id, err == nil
	}
	return 0, false
}

// Text returns the fragment as it will be written: the encoded task for
// decoded entries, the raw text otherwise.
func (e Entry) Text() string {
	if e.decoded {
		return task.Encode(e.task)
	}
	return e.raw
}

func decodeEntry(fragment string) Entry {
	t, ok := task.Decode(fragment)
	if !ok {
		return Opaque(fragment)
	}
	return Entry{task: t, raw: fragment, decoded: true}
}

// Document is the parsed content of a store file.
type Document struct {
	Entries []Entry
	// Malformed is set when the data held no bracketed array.
	Malformed bool
}

// Parse splits data into entries. It never fails: data without an array
// yields an empty, malformed document.
func Parse(data []byte) *Document {
	body, ok := arrayBody(string(data))
	if !ok {
		return &Document{Malformed: true}
	}

	fragments := splitFragments(body)
	doc := &Document{Entries: make([]Entry, 0, len(fragments))}
	for _, f := range fragments {
		doc.Entries = append(doc.Entries, decodeEntry(f))
	}
	return doc
}

// Bytes serializes the document as a bracketed array and a trailing newline.
func (d *Document) Bytes() []byte {
	parts := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		parts[i] = e.Text()
	}
	return []byte("[" + strings.Join(parts, ",") + "]\n")
}

// Tasks returns the decoded tasks in file order.
func (d *Document) Tasks() []task.Task {
	tasks := make([]task.Task, 0, len(d.Entries))
	for _, e := range d.Entries {
		if t, ok := e.Task(); ok {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// OpaqueCount returns the number of undecodable entries.
func (d *Document) OpaqueCount() int {
	n := 0
	for _, e := range d.Entries {
		if e.IsOpaque() {
			n++
		}
	}
	return n
}

// Find returns the first task with the given id.
func (d *Document) Find(id uint64) (task.Task, bool) {
	for _, e := range d.Entries {
		if t, ok := e.Task(); ok && t.ID == id {
			return t, true
		}
	}
	return task.Task{}, false
}

// NextID returns the lowest id not used by any task. Ids still readable
// from opaque object fragments count as used.
func (d *Document) NextID() uint64 {
	ids := make([]uint64, 0, len(d.Entries))
	for _, e := range d.Entries {
		if t, ok := e.Task(); ok {
			ids = append(ids, t.ID)
		} else if id, ok := e.opaqueID(); ok {
			ids = append(ids, id)
		}
	}
	return LowestAvailableID(ids)
}

// Insert appends t.
func (d *Document) Insert(t task.Task) {
	d.Entries = append(d.Entries, Decoded(t))
}

// Update applies the field change to every task with the given id and
// returns how many were changed.
func (d *Document) Update(id uint64, field task.Field, value string, clock task.Clock) int {
	n := 0
	for i, e := range d.Entries {
		t, ok := e.Task()
		if !ok || t.ID != id {
			continue
		}
		t.Apply(field, value, clock)
		d.Entries[i] = Decoded(t)
		n++
	}
	return n
}

// Delete removes every task with the given id and returns how many were
// removed. Opaque entries are always kept.
func (d *Document) Delete(id uint64) int {
	kept := d.Entries[:0]
	removed := 0
	for _, e := range d.Entries {
		if t, ok := e.Task(); ok && t.ID == id {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	d.Entries = kept
	return removed
}

// LowestAvailableID returns the first gap in ids counting up from zero.
// Duplicates count once.
func LowestAvailableID(ids []uint64) uint64 {
	sorted := make([]uint64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var candidate uint64
	for _, id := range sorted {
		if id < candidate {
			continue
		}
		if id != candidate {
			break
		}
		candidate++
	}
	return candidate
}
