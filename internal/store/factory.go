package store

import (
	"fmt"
)

// Backend names an Engine implementation.
type Backend string

const (
	// BackendBleve uses an in-memory Bleve index (default).
	BackendBleve Backend = "bleve"

	// BackendSQLite uses an in-memory SQLite FTS5 table.
	BackendSQLite Backend = "sqlite"
)

// EngineFactory creates an uninitialized engine. The IndexStore calls it on
// first use.
type EngineFactory func() (Engine, error)

// ValidBackends lists the accepted backend names.
func ValidBackends() []string {
	return []string{string(BackendBleve), string(BackendSQLite)}
}

// NewEngineFactory returns the factory for backend. An empty backend selects
// Bleve.
func NewEngineFactory(backend string) (EngineFactory, error) {
	switch Backend(backend) {
	case BackendBleve, "":
		return func() (Engine, error) { return NewBleveEngine(), nil }, nil
	case BackendSQLite:
		return func() (Engine, error) { return NewSQLiteEngine(), nil }, nil
	default:
		return nil, fmt.Errorf("unknown search backend: %s (valid options: bleve, sqlite)", backend)
	}
}
