package entity

import "fmt"

// NotFoundError is returned by Load/LoadWithRelations when no row matches
// the given ID. It is distinct from QueryFailedError: a miss is not a
// database failure.
type NotFoundError struct {
	Table string
	ID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("entity: %s %q not found", e.Table, e.ID)
}

// QueryFailedError wraps an underlying database/sql error with the query
// and table that produced it.
type QueryFailedError struct {
	Table string
	Query string
	Cause error
}

func (e *QueryFailedError) Error() string {
	return fmt.Sprintf("entity: query against %s failed: %v", e.Table, e.Cause)
}

func (e *QueryFailedError) Unwrap() error { return e.Cause }

// SerializationError wraps a marshal/unmarshal failure for a field value,
// carrying the offending Go type name.
type SerializationError struct {
	TypeName string
	Cause    error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("entity: serialize %s: %v", e.TypeName, e.Cause)
}

func (e *SerializationError) Unwrap() error { return e.Cause }

func queryFailed(table, query string, cause error) error {
	return &QueryFailedError{Table: table, Query: query, Cause: cause}
}

func notFound(table, id string) error {
	return &NotFoundError{Table: table, ID: id}
}

func serializationFailed(typeName string, cause error) error {
	return &SerializationError{TypeName: typeName, Cause: cause}
}
