package store

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed task.schema.json
var taskSchema []byte

const taskSchemaURL = "https://github.com/nibzard/tasks-go/task.schema.json"

// ValidationError represents a validation finding with its location.
type ValidationError struct {
	Path string // location such as "[2].id"
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidationResult contains validation results for one document.
type ValidationResult struct {
	Valid  bool
	Errors []error
	Tasks  int
	Opaque int
}

// CompileSchema compiles the task record schema. An empty path selects the
// built-in schema.
func CompileSchema(path string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()

	if path == "" {
		if err := compiler.AddResource(taskSchemaURL, bytes.NewReader(taskSchema)); err != nil {
			return nil, fmt.Errorf("load built-in schema: %w", err)
		}
		schema, err := compiler.Compile(taskSchemaURL)
		if err != nil {
			return nil, fmt.Errorf("compile built-in schema: %w", err)
		}
		return schema, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid schema path: %w", err)
	}
	schema, err := compiler.Compile(absPath)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", absPath, err)
	}
	return schema, nil
}

// Validate loads the file and checks it against the schema at schemaPath,
// or the built-in schema when schemaPath is empty.
func (s *Store) Validate(ctx context.Context, schemaPath string) (*ValidationResult, error) {
	schema, err := CompileSchema(schemaPath)
	if err != nil {
		return nil, err
	}
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Validate(doc, schema), nil
}

// Validate checks every fragment of doc against schema and reports opaque
// fragments and duplicate ids.
func Validate(doc *Document, schema *jsonschema.Schema) *ValidationResult {
	result := &ValidationResult{
		Valid:  true,
		Errors: make([]error, 0),
	}
	fail := func(err error) {
		result.Valid = false
		result.Errors = append(result.Errors, err)
	}

	if doc.Malformed {
		fail(&ValidationError{Err: errors.New("no JSON array found")})
		return result
	}

	seen := make(map[uint64]int)
	for i, e := range doc.Entries {
		path := fmt.Sprintf("[%d]", i)

		if e.IsOpaque() {
			result.Opaque++
			fail(&ValidationError{Path: path, Err: errors.New("fragment is not a task record")})
		} else {
			result.Tasks++
			t, _ := e.Task()
			if first, dup := seen[t.ID]; dup {
				fail(&ValidationError{
					Path: path + ".id",
					Err:  fmt.Errorf("duplicate id %d (first at [%d])", t.ID, first),
				})
			} else {
				seen[t.ID] = i
			}
		}

		for _, err := range validateFragment(schema, e.Raw(), path) {
			fail(err)
		}
	}

	return result
}

func validateFragment(schema *jsonschema.Schema, fragment, path string) []error {
	dec := json.NewDecoder(strings.NewReader(fragment))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return []error{&ValidationError{Path: path, Err: fmt.Errorf("invalid JSON: %w", err)}}
	}
	if dec.More() {
		return []error{&ValidationError{Path: path, Err: errors.New("invalid JSON: trailing data")}}
	}

	err := schema.Validate(value)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []error{&ValidationError{Path: path, Err: err}}
	}
	var errs []error
	collectSchemaErrors(&errs, ve, path)
	return errs
}

func collectSchemaErrors(errs *[]error, err *jsonschema.ValidationError, prefix string) {
	if len(err.Causes) == 0 {
		*errs = append(*errs, &ValidationError{
			Path: joinPath(prefix, jsonPointerToPath(err.InstanceLocation)),
			Err:  errors.New(err.Message),
		})
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(errs, cause, prefix)
	}
}

func joinPath(prefix, sub string) string {
	switch {
	case sub == "":
		return prefix
	case strings.HasPrefix(sub, "["):
		return prefix + sub
	default:
		return prefix + "." + sub
	}
}

// jsonPointerToPath converts "/a/0/b" to "a[0].b".
func jsonPointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}

	var b strings.Builder
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil {
			fmt.Fprintf(&b, "[%d]", idx)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}
