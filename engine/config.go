// Package engine implements the facade that binds the
// classifier, sanitizer, secret store, secret injector, connection pool,
// connection handlers, Arrow streaming executor, stream manager, and
// connection store into the single surface the UI bridge commands call.
package engine

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pondpilot/pondpilot-sub000/arrowexec"
	"github.com/pondpilot/pondpilot-sub000/connhandler"
	"github.com/pondpilot/pondpilot-sub000/connstore"
	"github.com/pondpilot/pondpilot-sub000/pool"
	"github.com/pondpilot/pondpilot-sub000/secretstore"
	"github.com/pondpilot/pondpilot-sub000/streammgr"
)

// Config is the initialize() input.
type Config struct {
	EngineType  string
	StorageType string
	StoragePath string
	Extensions  []string
	Options     map[string]string

	MaxConnections          int
	MaxStreamingConnections int
	SecretIndexPath         string
	ConnectionIndexPath     string

	PathValidator PathValidator
	Logger        *logrus.Entry
}

// PathValidator is the external collaborator
// assigns to an OS-specific user-directory allowlist helper. The engine
// core only calls it; it never implements directory discovery itself.
type PathValidator interface {
	// Validate canonicalizes path and returns it, or an error if it falls
	// outside the allowlisted directories or contains ".." after
	// canonicalization.
	Validate(path string) (string, error)
}

// Engine is the bound facade. All of its component fields are safe for
// concurrent use by multiple command-surface callers.
type Engine struct {
	cfg Config

	pool        *pool.Pool
	executor    *arrowexec.Executor
	streams     *streammgr.Manager
	secrets     *secretstore.Store
	connections *connstore.Index
	handlers    *connhandler.Manager
	pathValid   PathValidator
	logger      *logrus.Entry

	filesMu sync.Mutex
	files   map[string]FileMetadata
}

// FileMetadata is recorded on a successful register_file call.
type FileMetadata struct {
	TableName string
	Path      string
	Type      string
	SizeBytes int64
	ModTime   time.Time
}
