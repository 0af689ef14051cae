// Package pool implements the thread-affine, permit-gated DuckDB connection
// pool: a semaphore-bounded admission control in front of a connection
// factory that replays
// attachments and allowlisted extensions on every freshly opened
// connection, because each one starts from a blank session.
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/pondpilot/pondpilot-sub000/engineerr"
)

// AllowedExtensions is the exact allowlist. Extensions named in Config
// outside this set are ignored with a warning; LoadExtension refuses them
// with an InvalidOperation error.
var AllowedExtensions = map[string]bool{
	"httpfs": true, "parquet": true, "json": true, "excel": true,
	"spatial": true, "arrow": true, "aws": true, "azure": true,
	"gsheets": true, "read_stat": true, "motherduck": true,
	"iceberg": true, "delta": true, "postgres": true,
	"postgres_scanner": true, "mysql": true, "mysql_scanner": true,
	"sqlite": true, "sqlite_scanner": true,
}

const defaultPermitTimeout = 5 * time.Second

// Config configures a Pool at construction time.
type Config struct {
	DatabasePath            string
	MaxConnections          int
	MaxStreamingConnections int
	Extensions              []string
	Limits                  ResourceLimits
	PermitTimeout           time.Duration
	Logger                  *logrus.Entry
}

// Pool is the sole admission control for engine connections. It owns the
// attachment registry and the MotherDuck token reference because
// places them here to avoid a facade/pool/registry cycle.
type Pool struct {
	cfg            Config
	db             *sql.DB
	connSem        *semaphore.Weighted
	streamSem      *semaphore.Weighted
	attachments    *AttachmentRegistry
	motherDuck     *MotherDuckToken
	nextConnID     atomic.Uint64
	logger         *logrus.Entry
	extMu          sync.RWMutex
	allowExtension map[string]bool
}

// New opens the underlying DuckDB handle and builds the pool around it. The
// returned Pool holds no live connections yet; connections are created
// lazily by AcquirePermit + CreateConnection.
func New(cfg Config) (*Pool, error) {
	if cfg.MaxConnections <= 0 {
		return nil, &engineerr.InitializationError{Message: "pool: max_connections must be positive"}
	}
	if cfg.MaxStreamingConnections <= 0 || cfg.MaxStreamingConnections > cfg.MaxConnections {
		return nil, &engineerr.InitializationError{Message: "pool: max_streaming_connections must be in (0, max_connections]"}
	}
	if cfg.PermitTimeout <= 0 {
		cfg.PermitTimeout = defaultPermitTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	db, err := sql.Open("duckdb", cfg.DatabasePath)
	if err != nil {
		return nil, &engineerr.InitializationError{Message: errors.Wrap(err, "open duckdb handle").Error()}
	}
	// database/sql pools its own *sql.Conn instances; SetMaxOpenConns keeps
	// it from silently exceeding the semaphore-enforced bound.
	db.SetMaxOpenConns(cfg.MaxConnections)

	extensions := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		if AllowedExtensions[e] {
			extensions[e] = true
		} else {
			logger.WithField("extension", e).Warn("ignoring non-allowlisted extension request")
		}
	}

	return &Pool{
		cfg:            cfg,
		db:             db,
		connSem:        semaphore.NewWeighted(int64(cfg.MaxConnections)),
		streamSem:      semaphore.NewWeighted(int64(cfg.MaxStreamingConnections)),
		attachments:    NewAttachmentRegistry(),
		motherDuck:     GlobalMotherDuckToken(),
		logger:         logger,
		allowExtension: extensions,
	}, nil
}

func (p *Pool) Attachments() *AttachmentRegistry { return p.attachments }

// Permit is the right to hold one live engine connection, acquired before a
// connection exists.
type Permit struct {
	pool      *Pool
	streaming bool
	released  atomic.Bool
}

// Release returns the permit's slot to the pool. Safe to call more than
// once; only the first call has effect.
func (perm *Permit) Release() {
	if perm.released.Swap(true) {
		return
	}
	if perm.streaming {
		perm.pool.streamSem.Release(1)
	}
	perm.pool.connSem.Release(1)
}

// AcquirePermit awaits the connection semaphore with cfg.PermitTimeout. On
// timeout it returns *engineerr.PoolExhausted.
func (p *Pool) AcquirePermit(ctx context.Context) (*Permit, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PermitTimeout)
	defer cancel()
	if err := p.connSem.Acquire(ctx, 1); err != nil {
		return nil, &engineerr.PoolExhausted{Message: "timed out waiting for a connection permit"}
	}
	return &Permit{pool: p}, nil
}

// AcquireStreamingPermit acquires both a connection permit and a streaming
// permit, as required by the Arrow streaming executor.
// If either times out the connection permit (if obtained) is released and a
// *engineerr.PoolExhausted error is returned.
func (p *Pool) AcquireStreamingPermit(ctx context.Context) (*Permit, error) {
	perm, err := p.AcquirePermit(ctx)
	if err != nil {
		return nil, err
	}
	streamCtx, cancel := context.WithTimeout(ctx, p.cfg.PermitTimeout)
	defer cancel()
	if err := p.streamSem.Acquire(streamCtx, 1); err != nil {
		perm.Release()
		return nil, &engineerr.PoolExhausted{Message: "timed out waiting for a streaming permit"}
	}
	perm.streaming = true
	return perm, nil
}

// Connection is a thread-affine handle: obtained on the goroutine that will
// use it exclusively, never shared across goroutines, and returned via
// Close() which relinquishes the underlying *sql.Conn to the driver pool.
type Connection struct {
	Raw    *sql.Conn
	connID uint64
}

func (c *Connection) ID() uint64 { return c.connID }

func (c *Connection) Close() error {
	return c.Raw.Close()
}

// CreateConnection implements.5 "Create flow": open the engine,
// apply pragmas, install+load each allowlisted extension, then replay every
// registered attachment. Must be invoked from the goroutine that will use
// the returned Connection exclusively.
func (p *Pool) CreateConnection(ctx context.Context) (*Connection, error) {
	raw, err := p.db.Conn(ctx)
	if err != nil {
		return nil, &engineerr.ConnectionError{Message: "failed to open engine connection", Context: err.Error()}
	}

	connID := p.nextConnID.Add(1)
	conn := &Connection{Raw: raw, connID: connID}

	if err := p.applyPragmas(ctx, raw); err != nil {
		raw.Close()
		return nil, &engineerr.ConnectionError{Message: "failed to apply pragmas", Context: err.Error()}
	}

	for _, ext := range p.loadedExtensions() {
		if err := p.installAndLoad(ctx, raw, ext); err != nil {
			p.logger.WithError(err).WithField("extension", ext).Warn("extension install/load failed, continuing")
		}
	}

	p.replayAttachments(ctx, raw)

	return conn, nil
}

func (p *Pool) applyPragmas(ctx context.Context, raw *sql.Conn) error {
	stmts := []string{
		fmt.Sprintf("PRAGMA threads=%d", p.cfg.Limits.PoolThreads),
		fmt.Sprintf("PRAGMA memory_limit='%dMB'", p.cfg.Limits.PoolMemoryBytes/mib),
		"PRAGMA enable_progress_bar=false",
	}
	for _, s := range stmts {
		if _, err := raw.ExecContext(ctx, s); err != nil {
			return errors.Wrapf(err, "pragma %q", s)
		}
	}
	return nil
}

func (p *Pool) installAndLoad(ctx context.Context, raw *sql.Conn, ext string) error {
	if _, err := raw.ExecContext(ctx, fmt.Sprintf("INSTALL %s", ext)); err != nil {
		return errors.Wrapf(err, "install %s", ext)
	}
	if _, err := raw.ExecContext(ctx, fmt.Sprintf("LOAD %s", ext)); err != nil {
		return errors.Wrapf(err, "load %s", ext)
	}
	return nil
}

func (p *Pool) loadedExtensions() []string {
	p.extMu.RLock()
	defer p.extMu.RUnlock()
	out := make([]string, 0, len(p.allowExtension))
	for ext := range p.allowExtension {
		out = append(out, ext)
	}
	return out
}

// LoadExtension installs and loads ext on a scratch connection, then
// records it so every connection CreateConnection opens afterwards loads
// it too.
func (p *Pool) LoadExtension(ctx context.Context, ext string) error {
	if !AllowedExtensions[ext] {
		return &engineerr.InvalidOperation{Message: fmt.Sprintf("extension %q is not allowlisted", ext), Operation: "load_extension"}
	}

	if err := p.ExecuteWithConnection(ctx, func(conn *Connection) error {
		return p.installAndLoad(ctx, conn.Raw, ext)
	}); err != nil {
		return &engineerr.ConnectionError{Message: "failed to install/load extension", Context: err.Error()}
	}

	p.extMu.Lock()
	p.allowExtension[ext] = true
	p.extMu.Unlock()
	return nil
}

// replayAttachments runs every registered attachment in registration order.
// Per-attachment failures are logged and skipped: one broken attachment
// must not prevent the connection from opening.
func (p *Pool) replayAttachments(ctx context.Context, raw *sql.Conn) {
	for _, a := range p.attachments.Snapshot() {
		if err := p.replayOne(ctx, raw, a); err != nil {
			p.logger.WithError(err).WithField("alias", a.Alias).Warn("attachment replay failed, skipping")
		}
	}
}

func (p *Pool) replayOne(ctx context.Context, raw *sql.Conn, a Attachment) error {
	if a.Kind == AttachmentMotherDuck {
		token := p.motherDuck.Get()
		if token != "" {
			if _, err := raw.ExecContext(ctx, fmt.Sprintf("SET motherduck_token='%s'", escapeSetValue(token))); err != nil {
				return errors.Wrap(err, "set motherduck_token")
			}
		}
	}

	if a.SecretSQL != "" {
		if _, err := raw.ExecContext(ctx, a.SecretSQL); err != nil {
			p.logger.WithError(err).WithField("alias", a.Alias).Warn("secret DDL failed during attachment replay")
		}
	}

	attachSQL, err := attachStatement(a)
	if err != nil {
		return err
	}
	if _, err := raw.ExecContext(ctx, attachSQL); err != nil {
		return errors.Wrapf(err, "attach %s", a.Alias)
	}
	return nil
}

func attachStatement(a Attachment) (string, error) {
	switch a.Kind {
	case AttachmentMotherDuck:
		return fmt.Sprintf("ATTACH '%s'", escapeSetValue(a.ConnectionString)), nil
	case AttachmentPlain:
		stmt := fmt.Sprintf("ATTACH '%s' AS %s", escapeSetValue(a.ConnectionString), a.Alias)
		if a.ReadOnly {
			stmt += " (READ_ONLY)"
		}
		return stmt, nil
	case AttachmentPostgres, AttachmentMySQL:
		return fmt.Sprintf(`ATTACH '%s' AS %s (TYPE %s, SECRET "%s")`,
			escapeSetValue(a.ConnectionString), a.Alias, a.Kind, a.SecretName), nil
	default:
		return "", fmt.Errorf("pool: unknown attachment kind %q", a.Kind)
	}
}

func escapeSetValue(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

// AttachSQL exposes attachStatement to callers outside the package (the
// engine facade replays attachments against already-open long-lived
// connections, not just fresh ones created by CreateConnection).
func AttachSQL(a Attachment) (string, error) {
	return attachStatement(a)
}

// ExecuteWithConnection is the only sanctioned way the async side may drive
// the engine: acquire a
// permit, open a fresh connection, run f, and tear both down regardless of
// outcome.
func (p *Pool) ExecuteWithConnection(ctx context.Context, f func(*Connection) error) error {
	perm, err := p.AcquirePermit(ctx)
	if err != nil {
		return err
	}
	defer perm.Release()

	conn, err := p.CreateConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return f(conn)
}

// Close releases the underlying database/sql handle. It does not affect
// outstanding permits; callers must have drained all connections first.
func (p *Pool) Close() error {
	return p.db.Close()
}
