package db

import "fmt"

// DB defines the interface for database operations. Get returns nil, nil
// for a missing key.
type DB interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, error)
	// Iterate calls fn for every key with the given prefix in key order and
	// stops at the first error fn returns.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

const (
	EngineLevelDB = "leveldb"
	EngineBolt    = "bolt"
)

// Open opens the request store at path with the named engine.
func Open(engine, path string) (DB, error) {
	switch engine {
	case EngineLevelDB, "":
		return NewLevelDB(path)
	case EngineBolt:
		return NewBoltDB(path)
	default:
		return nil, fmt.Errorf("unknown database engine %q", engine)
	}
}
