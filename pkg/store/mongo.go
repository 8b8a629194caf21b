package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/scriptorium/scriptorium/pkg/config"
)

// Mongo implements Store on a MongoDB database. Single-document atomicity of
// FindOneAndUpdate is the serialization primitive the whole pipeline rests on.
type Mongo struct {
	cfg    *config.StoreConfig
	client *mongo.Client
	db     *mongo.Database

	// Reconnects are rate-limited so a flapping store does not turn worker
	// polls into a connection storm.
	mu            sync.Mutex
	lastReconnect time.Time
}

var _ Store = (*Mongo)(nil)

// Connect establishes the initial client and verifies reachability.
func Connect(ctx context.Context, cfg *config.StoreConfig) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("connecting to document store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging document store: %w", err)
	}

	return &Mongo{
		cfg:    cfg,
		client: client,
		db:     client.Database(cfg.Database),
	}, nil
}

func (m *Mongo) topics() *mongo.Collection {
	return m.db.Collection(m.cfg.TopicsCollection)
}

func (m *Mongo) generations() *mongo.Collection {
	return m.db.Collection(m.cfg.GenerationsCollection)
}

func (m *Mongo) chunks() *mongo.Collection {
	return m.db.Collection(m.cfg.ChunksCollection)
}

// Ping verifies the connection, attempting a rate-limited reconnect when it
// fails. Callers treat a ping failure as "store temporarily unavailable" and
// retry on their next tick rather than crash.
func (m *Mongo) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, nil); err != nil {
		return m.reconnect(ctx, err)
	}
	return nil
}

func (m *Mongo) reconnect(ctx context.Context, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if since := time.Since(m.lastReconnect); since < m.cfg.ReconnectMinInterval {
		return fmt.Errorf("store unreachable (next reconnect in %s): %w",
			(m.cfg.ReconnectMinInterval - since).Round(time.Second), cause)
	}
	m.lastReconnect = time.Now()

	slog.Warn("Store unreachable, reconnecting", "error", cause)
	_ = m.client.Disconnect(ctx)

	client, err := mongo.Connect(options.Client().
		ApplyURI(m.cfg.URI).
		SetConnectTimeout(m.cfg.ConnectTimeout))
	if err != nil {
		return fmt.Errorf("reconnecting to document store: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("pinging document store after reconnect: %w", err)
	}

	m.client = client
	m.db = client.Database(m.cfg.Database)
	slog.Info("Store reconnected")
	return nil
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
