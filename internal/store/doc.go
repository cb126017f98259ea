// Package store implements whole-file procedures over a task store file.
//
// A store file holds one JSON array of task records:
//
//	[{"id":0,"description":"buy milk","status":"done","created_at":1760700000,"updated_at":1760700300}]
//
// Bytes before the first '[' and after the last ']' are ignored on read and
// dropped on the next rewrite.
//
// # Procedures
//
// Every mutating procedure reads the whole file, parses it into a Document,
// applies one change, and writes the whole document back. Reads (List,
// Read, NextID, Validate) never write.
//
// # Fragments
//
// The array body is cut into fragments at top-level commas; commas inside
// string literals or nested objects never cut. Whitespace outside string
// literals is dropped and an object missing its closing brace gets one.
// A fragment that is not valid JSON, such as a record with an unescaped
// quote, is cut again at its first "}," and scanning resumes there, so it
// cannot hide the records after it. NextID also skips any id still
// readable from an opaque object, keeping new ids unique.
// A fragment that decodes into a task becomes a decoded Entry and is
// re-encoded on write. Anything else becomes an opaque Entry and is written
// back byte for byte, so a rewrite never loses content it does not
// understand. Decoded entries are written in canonical form: keys other
// than the five task fields are not preserved.
//
// # Durability
//
// Writes go to a temporary file in the same directory, which is synced and
// renamed over the store file. Readers see either the old or the new
// contents, never a truncated file.
//
// # Locking
//
// Mutations hold an exclusive flock on "<file>.lock" for the whole
// read-modify-write cycle. Lock waits end when the caller's context does,
// with ErrLocked. On platforms without flock the lock is a no-op.
package store
