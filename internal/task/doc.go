// Package task defines the task record and its text encoding.
//
// A task is stored in the store file as one JSON object with exactly five
// keys, written in this order:
//
//	{"id":0,"description":"buy milk","status":"todo","created_at":1760700000,"updated_at":1760700000}
//
// # Fields
//
//   - id: non-negative integer, unique within one store file
//   - description: free-form text
//   - status: free-form text, "todo" for new tasks
//   - created_at: epoch seconds, set once
//   - updated_at: epoch seconds, refreshed on every mutation
//
// # Encoding
//
// Text fields are written as escaped JSON string literals, so descriptions
// and statuses may contain commas, colons, braces and quotes. Numeric fields
// are never quoted.
//
// # Decoding
//
// Decode is lenient about layout and strict about content. Whitespace outside
// string literals is ignored. Numeric fields may be JSON numbers or quoted
// decimal strings. A fragment missing any of the five keys, or holding a
// value of the wrong shape, is not a task: Decode reports false and the
// caller keeps the fragment as opaque text.
package task
