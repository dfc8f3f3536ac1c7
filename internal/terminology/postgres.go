package terminology

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/logger"
)

// PostgresStore serves vocabulary lookups from <vocab>_concepts and
// <vocab>_synonyms tables. Every query is bounded by the configured
// timeout; a deadline exceeded propagates to the caller, which treats the
// vocabulary as unreachable for that term.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
	logger  logger.Logger
}

// NewPostgresStore creates a SQL-backed vocabulary store.
func NewPostgresStore(db *sql.DB, timeout time.Duration, log logger.Logger) *PostgresStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresStore{
		db:      db,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "postgres-store"}),
	}
}

// Ping implements Pinger.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Lookup implements Store.
func (s *PostgresStore) Lookup(ctx context.Context, vocab Vocabulary, normalized string) ([]Concept, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(
		`SELECT code, display, entity_type FROM %s_concepts WHERE normalized_term = $1`,
		vocab,
	)
	return s.scanConcepts(ctx, vocab, query, normalized)
}

// Synonyms implements Store.
func (s *PostgresStore) Synonyms(ctx context.Context, vocab Vocabulary, normalized string) ([]Concept, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(
		`SELECT c.code, c.display, c.entity_type
		 FROM %s_synonyms s
		 JOIN %s_concepts c ON c.code = s.code
		 WHERE s.normalized_term = $1`,
		vocab, vocab,
	)
	return s.scanConcepts(ctx, vocab, query, normalized)
}

// Candidates implements Store. The prefilter mirrors the in-memory store:
// shared first character or a length window around the query, bounded by
// the candidate budget.
func (s *PostgresStore) Candidates(ctx context.Context, vocab Vocabulary, normalized string, budget int) ([]Concept, error) {
	if normalized == "" || budget <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	qlen := len(normalized)
	query := fmt.Sprintf(
		`SELECT code, display, entity_type FROM %s_concepts
		 WHERE (left(normalized_term, 1) = $1
		        OR length(normalized_term) BETWEEN $2 AND $3)
		 ORDER BY abs(length(normalized_term) - $4), code
		 LIMIT $5`,
		vocab,
	)

	rows, err := s.db.QueryContext(ctx, query,
		normalized[:1], qlen-qlen/2, qlen+qlen/2, qlen, budget)
	if err != nil {
		return nil, fmt.Errorf("candidate query for %s: %w", vocab, err)
	}
	defer rows.Close()

	return collectConcepts(rows, vocab)
}

func (s *PostgresStore) scanConcepts(ctx context.Context, vocab Vocabulary, query, normalized string) ([]Concept, error) {
	rows, err := s.db.QueryContext(ctx, query, normalized)
	if err != nil {
		return nil, fmt.Errorf("lookup query for %s: %w", vocab, err)
	}
	defer rows.Close()

	return collectConcepts(rows, vocab)
}

func collectConcepts(rows *sql.Rows, vocab Vocabulary) ([]Concept, error) {
	var out []Concept
	for rows.Next() {
		var c Concept
		var entityType sql.NullString
		if err := rows.Scan(&c.Code, &c.Display, &entityType); err != nil {
			return nil, fmt.Errorf("scan concept: %w", err)
		}
		c.Vocabulary = vocab
		c.EntityType = entityType.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate concepts: %w", err)
	}
	return out, nil
}
