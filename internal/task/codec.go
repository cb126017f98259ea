package task

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var fieldPaths = []string{"id", "description", "status", "created_at", "updated_at"}

// Encode returns the task as a single-line JSON object fragment.
func Encode(t Task) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Task holds only strings and integers, so encoding cannot fail.
	_ = enc.Encode(t)
	return strings.TrimSuffix(buf.String(), "\n")
}

// Decode recovers a task from a fragment. It reports false when the
// fragment is not a complete task record.
func Decode(fragment string) (Task, bool) {
	if !gjson.Valid(fragment) {
		return Task{}, false
	}
	if !gjson.Parse(fragment).IsObject() {
		return Task{}, false
	}

	values := gjson.GetMany(fragment, fieldPaths...)

	id, ok := uintValue(values[0])
	if !ok {
		return Task{}, false
	}
	description, ok := textValue(values[1])
	if !ok {
		return Task{}, false
	}
	status, ok := textValue(values[2])
	if !ok {
		return Task{}, false
	}
	createdAt, ok := intValue(values[3])
	if !ok {
		return Task{}, false
	}
	updatedAt, ok := intValue(values[4])
	if !ok {
		return Task{}, false
	}

	return Task{
		ID:          id,
		Description: description,
		Status:      status,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, true
}

func textValue(r gjson.Result) (string, bool) {
	if r.Type != gjson.String {
		return "", false
	}
	return r.Str, true
}

// numericText returns the decimal text of a number or a quoted number.
func numericText(r gjson.Result) (string, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Raw, true
	case gjson.String:
		return strings.TrimSpace(r.Str), true
	default:
		return "", false
	}
}

func uintValue(r gjson.Result) (uint64, bool) {
	raw, ok := numericText(r)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func intValue(r gjson.Result) (int64, bool) {
	raw, ok := numericText(r)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
