package cassandra

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gocql/gocql"

	"github.com/stawikopa-del/fitfly-sub001/internal/config"
	"github.com/stawikopa-del/fitfly-sub001/pkg/logger"
)

// Client wraps a gocql.Session and provides connection management
type Client struct {
	session *gocql.Session
	config  config.CassandraConfig
	logger  *logger.Logger
}

// NewClient creates a new Cassandra client and prepares the completion schema
func NewClient(cfg config.CassandraConfig, log *logger.Logger) (*Client, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)

	cluster.Timeout = cfg.Timeout
	cluster.ConnectTimeout = cfg.Timeout
	cluster.Consistency = parseConsistency(cfg.Consistency)
	cluster.SerialConsistency = gocql.LocalSerial
	cluster.RetryPolicy = RetryPolicy(3)

	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	cluster.NumConns = 2
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Cassandra session: %w", err)
	}

	log.Info("Connected to Cassandra", logger.F("hosts", strings.Join(cfg.Hosts, ",")), logger.F("keyspace", cfg.Keyspace))

	client := &Client{
		session: session,
		config:  cfg,
		logger:  log,
	}

	if err := client.initializeSchema(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return client, nil
}

// Session returns the underlying gocql.Session
func (c *Client) Session() *gocql.Session {
	return c.session
}

// Keyspace returns the configured keyspace
func (c *Client) Keyspace() string {
	return c.config.Keyspace
}

// Close closes the Cassandra session
func (c *Client) Close() {
	if c.session != nil {
		c.session.Close()
		c.logger.Info("Cassandra session closed")
	}
}

func (c *Client) initializeSchema() error {
	for _, stmt := range schemaStatements(c.config.Keyspace) {
		if err := c.session.Query(stmt).Exec(); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	c.logger.Info("Cassandra schema initialized", logger.F("keyspace", c.config.Keyspace))
	return nil
}

// schemaStatements returns the DDL for completion history.
//
// completions_by_user is partitioned by user and clustered newest first, so
// a user's history is a single-partition read. completions_by_session
// guards against recording the same session twice.
func schemaStatements(keyspace string) []string {
	return []string{
		fmt.Sprintf(`
		CREATE KEYSPACE IF NOT EXISTS %s
		WITH replication = {
			'class': 'SimpleStrategy',
			'replication_factor': 1
		}`, keyspace),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.completions_by_session (
			session_id text PRIMARY KEY,
			user_id text,
			completed_at timestamp
		)`, keyspace),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.completions_by_user (
			user_id text,
			completed_at timestamp,
			session_id text,
			kind text,
			preset text,
			completed_steps int,
			total_steps int,
			points int,
			PRIMARY KEY ((user_id), completed_at, session_id)
		) WITH CLUSTERING ORDER BY (completed_at DESC, session_id ASC)`, keyspace),
	}
}

// parseConsistency parses a consistency level string
func parseConsistency(consistencyStr string) gocql.Consistency {
	switch strings.ToUpper(consistencyStr) {
	case "ONE":
		return gocql.One
	case "TWO":
		return gocql.Two
	case "THREE":
		return gocql.Three
	case "QUORUM":
		return gocql.Quorum
	case "ALL":
		return gocql.All
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "EACH_QUORUM":
		return gocql.EachQuorum
	case "LOCAL_ONE":
		return gocql.LocalOne
	default:
		return gocql.Quorum
	}
}

// RetryPolicy retries timeouts and connection failures up to maxRetries times
func RetryPolicy(maxRetries int) gocql.RetryPolicy {
	return &simpleRetryPolicy{maxRetries: maxRetries}
}

type simpleRetryPolicy struct {
	maxRetries int
}

func (p *simpleRetryPolicy) Attempt(q gocql.RetryableQuery) bool {
	return q.Attempts() <= p.maxRetries
}

func (p *simpleRetryPolicy) GetRetryType(err error) gocql.RetryType {
	if err == nil {
		return gocql.Ignore
	}
	if errors.Is(err, gocql.ErrTimeoutNoResponse) {
		return gocql.Retry
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "connection") || strings.Contains(msg, "unavailable") {
		return gocql.Retry
	}
	return gocql.Rethrow
}
