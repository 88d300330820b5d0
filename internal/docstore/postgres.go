package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ledgerkite/ledgerkite/internal/billing"
	"github.com/ledgerkite/ledgerkite/internal/platform/db"
)

const uniqueViolation = "23505"

// PostgresStore persists billing documents as JSONB rows, one collection
// per path, and drives subscriptions from a Redis change feed: every
// committed write publishes the collection path, and each subscriber
// re-reads its query on notification. Notifications carry no payload, so
// a lost message degrades to a stale snapshot rather than a wrong one.
type PostgresStore struct {
	pool   *pgxpool.Pool
	redis  *redis.Client
	logger *slog.Logger
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, client *redis.Client, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, redis: client, logger: logger}
}

func changeChannel(path Path) string {
	return "docstore:changed:" + path.String()
}

// List implements Store. Ordering and windowing run in-process so all
// adapters share one set of query semantics.
func (s *PostgresStore) List(ctx context.Context, path Path, q Query) (Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM billing_documents WHERE collection = $1`, path.String())
	if err != nil {
		return Snapshot{}, fmt.Errorf("docstore: list %s: %w", path, err)
	}
	defer rows.Close()

	var docs []billing.Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return Snapshot{}, fmt.Errorf("docstore: scan %s: %w", path, err)
		}
		var doc billing.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return Snapshot{}, fmt.Errorf("docstore: decode %s: %w", path, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("docstore: list %s: %w", path, err)
	}
	return applyQuery(docs, q), nil
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, path Path, doc billing.Document) (string, error) {
	now := time.Now().UTC()
	doc.ID = uuid.NewString()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("docstore: encode document: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO billing_documents (id, collection, doc, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)`,
		doc.ID, path.String(), raw, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", ErrConflict
		}
		return "", fmt.Errorf("docstore: create in %s: %w", path, err)
	}

	s.publish(ctx, path)
	return doc.ID, nil
}

// Update implements Store with merge-patch semantics. The row is locked
// for the read-merge-write cycle so two patches to the same document
// cannot interleave.
func (s *PostgresStore) Update(ctx context.Context, path Path, id string, patch map[string]any) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var raw []byte
		err := tx.QueryRow(ctx,
			`SELECT doc FROM billing_documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
			path.String(), id).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("docstore: load %s/%s: %w", path, id, err)
		}

		var doc billing.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("docstore: decode %s/%s: %w", path, id, err)
		}
		merged, err := applyPatch(doc, patch)
		if err != nil {
			return fmt.Errorf("docstore: patch %s/%s: %w", path, id, err)
		}
		merged.ID = id
		merged.UpdatedAt = time.Now().UTC()

		out, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("docstore: encode %s/%s: %w", path, id, err)
		}
		_, err = tx.Exec(ctx,
			`UPDATE billing_documents SET doc = $3, updated_at = $4 WHERE collection = $1 AND id = $2`,
			path.String(), id, out, merged.UpdatedAt)
		if err != nil {
			return fmt.Errorf("docstore: update %s/%s: %w", path, id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, path)
	return nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, path Path, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM billing_documents WHERE collection = $1 AND id = $2`,
		path.String(), id)
	if err != nil {
		return fmt.Errorf("docstore: delete %s/%s: %w", path, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.publish(ctx, path)
	return nil
}

// Subscribe implements Store. The first snapshot is delivered as soon as
// the initial read completes; afterwards every change-feed notification
// triggers a fresh read of the query.
func (s *PostgresStore) Subscribe(ctx context.Context, path Path, q Query) (Subscription, error) {
	pubsub := s.redis.Subscribe(ctx, changeChannel(path))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("docstore: subscribe %s: %w", path, err)
	}

	sub := &pgSubscription{
		store:  s,
		path:   path,
		query:  q,
		pubsub: pubsub,
		ch:     make(chan Snapshot, 16),
	}
	go sub.run(ctx)
	return sub, nil
}

// publish signals subscribers of the path. Delivery is best effort: a
// failed publish leaves readers on their previous snapshot.
func (s *PostgresStore) publish(ctx context.Context, path Path) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Publish(ctx, changeChannel(path), "1").Err(); err != nil {
		s.logger.Warn("docstore: publish change", slog.String("path", path.String()), slog.Any("error", err))
	}
}

type pgSubscription struct {
	store  *PostgresStore
	path   Path
	query  Query
	pubsub *redis.PubSub

	mu     sync.Mutex
	ch     chan Snapshot
	err    error
	closed bool
}

// Snapshots implements Subscription.
func (p *pgSubscription) Snapshots() <-chan Snapshot { return p.ch }

// Err implements Subscription.
func (p *pgSubscription) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Close implements Subscription.
func (p *pgSubscription) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()

	_ = p.pubsub.Close()
}

func (p *pgSubscription) run(ctx context.Context) {
	p.reload(ctx)
	msgs := p.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			p.Close()
			return
		case _, ok := <-msgs:
			if !ok {
				return
			}
			p.reload(ctx)
		}
	}
}

func (p *pgSubscription) reload(ctx context.Context) {
	snap, err := p.store.List(ctx, p.path, p.query)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if err != nil {
		p.err = err
		return
	}
	p.err = nil
	for {
		select {
		case p.ch <- snap:
			return
		default:
			select {
			case <-p.ch:
			default:
			}
		}
	}
}
