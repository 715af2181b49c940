// Package graph owns every interaction with the Neo4j property graph: schema,
// idempotent writes, deferred edge resolution and the read side used for
// review context assembly.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"
)

// Traversal bounds. Queries are depth-bounded so cyclic INHERITS/CALLS shapes
// cannot blow up a request.
const (
	MaxHierarchyDepth = 5
	MaxImpactDepth    = 3
	MaxCallers        = 10
	MaxDependencies   = 15
)

const (
	maxRetries       = 3
	retryBackoffBase = time.Second
	// edgeBatchSize bounds how many deferred edges go into one transaction.
	edgeBatchSize = 1000
)

// Client wraps the Neo4j driver with database selection and bounded retries on
// transient failures. Sessions are created per call and never shared.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *logrus.Logger
}

// NewClient connects to Neo4j and verifies connectivity before returning.
func NewClient(ctx context.Context, uri, username, password, database string, logger *logrus.Logger) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j at %s: %w", uri, err)
	}

	return &Client{driver: driver, database: database, logger: logger}, nil
}

// Close releases the driver's connection pool.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// QueryWithParams runs a read query and returns each record as a map keyed by
// column name.
func (c *Client) QueryWithParams(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	var result *neo4j.EagerResult
	err := c.withRetry(ctx, "read", func() error {
		var runErr error
		result, runErr = neo4j.ExecuteQuery(ctx, c.driver, query, params,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(c.database),
			neo4j.ExecuteQueryWithReadersRouting())
		return runErr
	})
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	rows := make([]map[string]any, 0, len(result.Records))
	for _, record := range result.Records {
		row := make(map[string]any, len(record.Keys))
		for _, key := range record.Keys {
			if value, ok := record.Get(key); ok {
				row[key] = value
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Write runs a single write statement through the retry wrapper.
func (c *Client) Write(ctx context.Context, query string, params map[string]any) error {
	return c.withRetry(ctx, "write", func() error {
		_, err := neo4j.ExecuteQuery(ctx, c.driver, query, params,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(c.database))
		return err
	})
}

// WriteTx runs fn inside one write transaction. All statements issued through
// the transaction commit or roll back together.
func (c *Client) WriteTx(ctx context.Context, fn func(tx neo4j.ManagedTransaction) error) error {
	return c.withRetry(ctx, "write-tx", func() error {
		session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
		defer session.Close(ctx)

		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return nil, fn(tx)
		})
		return err
	})
}

// withRetry retries transient driver errors with exponential backoff. Fatal
// errors propagate immediately.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !neo4j.IsRetryable(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}

		backoff := retryBackoffBase * time.Duration(1<<(attempt-1))
		c.logger.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
			"backoff": backoff.String(),
		}).WithError(err).Warn("transient graph error, retrying")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, maxRetries, err)
}
