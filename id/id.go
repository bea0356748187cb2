// Package id provides a generic, type-safe record ID system with
// consistent table prefixes and UUID-based uniqueness, mirroring the
// entity key namespace described in the data model (every ID carries an
// entity-type prefix).
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind is implemented by marker types for each ID family. It exists purely
// at the type level — values are never constructed — so that ID[K] can
// recover the table prefix without per-instance storage.
type Kind interface {
	// Prefix returns the table/namespace prefix for this ID family, e.g.
	// "agent" or "mem".
	Prefix() string
}

// ID is a type-safe, prefixed identifier. Two IDs of different Kind never
// unify even if their underlying string is equal, because the generic
// parameter is encoded in the Go type system.
type ID[K Kind] struct {
	value string
}

// New generates a fresh ID with a random UUIDv4 body.
func New[K Kind]() ID[K] {
	return ID[K]{value: uuid.New().String()}
}

// FromString wraps an existing key (e.g. loaded from storage) as a typed
// ID without validation beyond non-emptiness.
func FromString[K Kind](key string) (ID[K], error) {
	if strings.TrimSpace(key) == "" {
		return ID[K]{}, fmt.Errorf("id: empty key for %T", *new(K))
	}
	return ID[K]{value: key}, nil
}

// MustFromString is FromString but panics on error; intended for
// compile-time-known constants and tests.
func MustFromString[K Kind](key string) ID[K] {
	v, err := FromString[K](key)
	if err != nil {
		panic(err)
	}
	return v
}

// Nil returns the zero-value ID for K (the nil UUID), used as a sentinel.
func Nil[K Kind]() ID[K] {
	return ID[K]{value: uuid.Nil.String()}
}

// IsNil reports whether this is the sentinel nil ID.
func (i ID[K]) IsNil() bool {
	return i.value == "" || i.value == uuid.Nil.String()
}

// String returns the bare key (no prefix) — this is what's stored as the
// primary key column; the table name itself carries the prefix.
func (i ID[K]) String() string {
	return i.value
}

// RecordID returns "prefix:key", the canonical on-the-wire form used in
// log output and relation tables.
func (i ID[K]) RecordID() string {
	var k K
	return fmt.Sprintf("%s:%s", k.Prefix(), i.value)
}

// MarshalText implements encoding.TextMarshaler so IDs serialize as plain
// strings in JSON/YAML rather than as objects.
func (i ID[K]) MarshalText() ([]byte, error) {
	return []byte(i.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID[K]) UnmarshalText(text []byte) error {
	i.value = string(text)
	return nil
}

// Equal reports whether two IDs of the same kind refer to the same record.
func (i ID[K]) Equal(other ID[K]) bool {
	return i.value == other.value
}
