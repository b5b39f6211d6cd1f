// Package neo4j executes compiled statements against a Neo4j server
// through the official driver. It owns session lifecycle, causal
// consistency via bookmark chaining, and translation of server-side
// authorization failures back into ForbiddenError.
package neo4j

import (
	"context"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/neogql/neogql"
)

// Config holds the connection settings for an Executor.
type Config struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Database selects the target database; empty means the server default.
	Database string `yaml:"database"`
}

// Executor runs statements over one driver instance. Writes chain
// bookmarks so that subsequent reads observe their effects; the zero
// bookmark state is ready to use. Safe for concurrent use.
type Executor struct {
	driver   neo4j.DriverWithContext
	database string
	log      logrus.FieldLogger

	mu        sync.Mutex
	bookmarks neo4j.Bookmarks
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the statement logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Executor) { e.log = log }
}

// New connects an Executor and verifies server reachability.
func New(ctx context.Context, cfg Config, opts ...Option) (*Executor, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, err
	}
	e := &Executor{driver: driver, database: cfg.Database, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the underlying driver.
func (e *Executor) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

// Read runs a statement in a read transaction and returns the result
// rows keyed by their return aliases.
func (e *Executor) Read(ctx context.Context, stmt *neogql.Statement) ([]map[string]any, error) {
	session := e.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return e.collect(ctx, tx, stmt)
	})
	if err != nil {
		return nil, e.mapError(err)
	}
	return rows.([]map[string]any), nil
}

// Write runs a statement in a write transaction, records the resulting
// bookmarks for causal chaining and returns rows plus write counters.
func (e *Executor) Write(ctx context.Context, stmt *neogql.Statement) ([]map[string]any, *neogql.WriteSummary, error) {
	session := e.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	var summary neogql.WriteSummary
	rows, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, stmt.Cypher, stmt.Params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rs, err := result.Consume(ctx)
		if err != nil {
			return nil, err
		}
		c := rs.Counters()
		summary = neogql.WriteSummary{
			NodesCreated:         c.NodesCreated(),
			NodesDeleted:         c.NodesDeleted(),
			RelationshipsCreated: c.RelationshipsCreated(),
			RelationshipsDeleted: c.RelationshipsDeleted(),
			PropertiesSet:        c.PropertiesSet(),
		}
		return recordMaps(records), nil
	})
	if err != nil {
		return nil, nil, e.mapError(err)
	}

	e.mu.Lock()
	e.bookmarks = session.LastBookmarks()
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"nodes_created": summary.NodesCreated,
		"nodes_deleted": summary.NodesDeleted,
	}).Debug("write statement executed")
	return rows.([]map[string]any), &summary, nil
}

func (e *Executor) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	e.mu.Lock()
	bookmarks := e.bookmarks
	e.mu.Unlock()
	return e.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: e.database,
		Bookmarks:    bookmarks,
	})
}

func (e *Executor) collect(ctx context.Context, tx neo4j.ManagedTransaction, stmt *neogql.Statement) ([]map[string]any, error) {
	result, err := tx.Run(ctx, stmt.Cypher, stmt.Params)
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return recordMaps(records), nil
}

func recordMaps(records []*neo4j.Record) []map[string]any {
	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		rows = append(rows, record.AsMap())
	}
	return rows
}

// mapError rewrites server-side authorization failures raised by
// generated apoc.util.validate calls into the library's error taxonomy.
// The transaction has already been rolled back by the time this runs.
func (e *Executor) mapError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), neogql.ForbiddenMessage) {
		return neogql.ErrForbidden
	}
	return err
}
