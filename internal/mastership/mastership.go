// Package mastership elects exactly one controller instance per managed
// cluster as its authoritative master (spec.md §4.4). No leader-election
// library appears anywhere in the example corpus, so this package builds
// on the one primitive the teacher's own Postgres dependency already
// offers: session-scoped advisory locks. One long-lived pgx connection per
// cluster holds `pg_try_advisory_lock(key)`, key being lockKey's FNV-64a
// hash of the cluster name;
// releasing the connection (crash or graceful stop) releases the lock
// automatically, which is exactly the failure-detection property
// mastership needs. Wiring/logging idiom grounded on
// coordinator/internal/service/cleanup_service.go's goroutine+ticker
// background-loop style.
package mastership

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/verrors"
)

// Controller manages this process's mastership of one managed cluster.
type Controller struct {
	connString   string
	cluster      string
	joinTimeout  time.Duration
	pollInterval time.Duration
	logger       *zap.Logger

	mu      sync.RWMutex
	conn    *pgx.Conn
	isLead  bool
	stopCh  chan struct{}
	stopped chan struct{}
}

// NewController creates a mastership controller for one cluster. The
// connString is independent of the metadata pool's pgxpool.Pool because
// an advisory lock must be held on a single, long-lived connection
// rather than one borrowed from a pool that might hand it back.
func NewController(connString, cluster string, joinTimeout, pollInterval time.Duration, logger *zap.Logger) *Controller {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Controller{
		connString:   connString,
		cluster:      cluster,
		joinTimeout:  joinTimeout,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// lockKey maps the cluster name to the bigint pg_try_advisory_lock takes:
// an FNV-64a hash computed here, not Postgres's hashtext(). Every
// controller process computes the same key for a cluster, which is what
// makes the lock exclusive across processes.
func (c *Controller) lockKey() int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(c.cluster))
	return int64(h.Sum64())
}

// Start blocks until mastership is acquired or joinTimeout elapses,
// polling every pollInterval, then launches a background goroutine that
// holds the connection open until Stop is called. Returns
// verrors.KindJoinTimeout if the cluster could not be led in time.
func (c *Controller) Start(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, c.connString)
	if err != nil {
		return verrors.Wrap(verrors.KindCoordinatorUnavailable, "Start", err)
	}

	deadline := time.Now().Add(c.joinTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var acquired bool
		err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, c.lockKey()).Scan(&acquired)
		if err != nil {
			conn.Close(ctx)
			return verrors.Wrap(verrors.KindCoordinatorUnavailable, "Start", err)
		}
		if acquired {
			c.mu.Lock()
			c.conn = conn
			c.isLead = true
			c.stopCh = make(chan struct{})
			c.stopped = make(chan struct{})
			c.mu.Unlock()
			c.logger.Info("acquired cluster mastership", zap.String("cluster", c.cluster))
			go c.holdLock()
			return nil
		}

		if time.Now().After(deadline) {
			conn.Close(ctx)
			return verrors.New(verrors.KindJoinTimeout, "Start", "timed out acquiring mastership for cluster "+c.cluster)
		}

		select {
		case <-ctx.Done():
			conn.Close(ctx)
			return verrors.Wrap(verrors.KindJoinTimeout, "Start", ctx.Err())
		case <-ticker.C:
		}
	}
}

// holdLock keeps the advisory-lock connection alive with periodic pings
// until Stop closes stopCh; losing the connection (network partition,
// Postgres restart) silently releases the lock at the Postgres level, and
// IsLeader will reflect that on the next check.
func (c *Controller) holdLock() {
	defer close(c.stopped)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn == nil {
				return
			}
			if err := conn.Ping(context.Background()); err != nil {
				c.logger.Warn("lost mastership connection", zap.String("cluster", c.cluster), zap.Error(err))
				c.mu.Lock()
				c.isLead = false
				c.mu.Unlock()
				return
			}
		}
	}
}

// IsLeader reports whether this process currently holds mastership.
func (c *Controller) IsLeader() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isLead
}

// Stop releases mastership and closes the held connection, which releases
// the underlying Postgres advisory lock.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	stopCh := c.stopCh
	c.isLead = false
	c.conn = nil
	c.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}
	if conn == nil {
		return nil
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, c.lockKey()); err != nil {
		c.logger.Warn("failed to explicitly release advisory lock", zap.Error(err))
	}
	return conn.Close(ctx)
}
