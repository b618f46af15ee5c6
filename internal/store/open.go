package store

import (
	"context"
	"fmt"
	"strings"
)

// Backend driver names.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// StorageConfig selects and configures a record store backend.
type StorageConfig struct {
	Driver        string
	MongoURI      string
	MongoDatabase string
	SQLitePath    string
}

// ResolveDriver returns the backend Open would use. An empty driver means
// mongo when a URI is configured, memory otherwise.
func (c StorageConfig) ResolveDriver() string {
	d := strings.ToLower(strings.TrimSpace(c.Driver))
	if d != "" {
		return d
	}
	if c.MongoURI != "" {
		return DriverMongo
	}
	return DriverMemory
}

// Open builds the backend described by cfg.
func Open(ctx context.Context, cfg StorageConfig) (Store, error) {
	switch d := cfg.ResolveDriver(); d {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
		return NewSQLiteStore(cfg.SQLitePath)
	case DriverMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("storage.mongo_uri is required for the mongo driver")
		}
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", d)
	}
}
