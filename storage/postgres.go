package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"property-scraper/utils"
)

// Postgres is the PostgreSQL-backed crawl state store.
type Postgres struct {
	db     *sqlx.DB
	logger *utils.Logger
}

// NewPostgres opens a connection pool and waits for the server to accept it.
func NewPostgres(ctx context.Context, dsn string, logger *utils.Logger) (*Postgres, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		logger.Warn("[postgres] ping failed (attempt %d/10): %v", i+1, err)
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	return &Postgres{db: db, logger: logger}, nil
}

// BeginTx opens a read-committed transaction for one batch.
func (p *Postgres) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return tx, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// IsRetryable reports whether err is a serialization failure, deadlock or
// lock timeout that a fresh transaction may not hit.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

// valuesClause renders "($1,$2),($3,$4)" for rows × cols placeholders.
func valuesClause(rows, cols int) string {
	var b strings.Builder
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// chunks splits n items into [start, end) ranges of at most size.
func chunks(n, size int) [][2]int {
	var out [][2]int
	for i := 0; i < n; i += size {
		end := i + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{i, end})
	}
	return out
}
