package config

import "time"

// StoreConfig contains document store connection settings.
type StoreConfig struct {
	// URI is the MongoDB connection string.
	URI string

	// Database is the database name.
	Database string

	// TopicsCollection, GenerationsCollection and ChunksCollection name the
	// three durable collections.
	TopicsCollection      string
	GenerationsCollection string
	ChunksCollection      string

	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration

	// ReconnectMinInterval is the minimum spacing between reconnect attempts
	// when the store becomes unreachable.
	ReconnectMinInterval time.Duration
}

// DefaultStoreConfig returns the built-in store defaults.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		URI:                   "mongodb://localhost:27017",
		Database:              "scriptorium",
		TopicsCollection:      "topics",
		GenerationsCollection: "generations",
		ChunksCollection:      "script_chunks",
		ConnectTimeout:        10 * time.Second,
		ReconnectMinInterval:  30 * time.Second,
	}
}

// LoadStoreConfig applies environment overrides to the defaults.
// MONGO_URI is required.
func LoadStoreConfig() (*StoreConfig, error) {
	cfg := DefaultStoreConfig()
	uri, err := requireEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.URI = uri
	cfg.Database = getEnv("MONGODB_DB_NAME", cfg.Database)
	cfg.TopicsCollection = getEnv("TOPICS_COLLECTION", cfg.TopicsCollection)
	cfg.GenerationsCollection = getEnv("GENERATIONS_COLLECTION", cfg.GenerationsCollection)
	cfg.ChunksCollection = getEnv("CHUNKS_COLLECTION", cfg.ChunksCollection)
	return cfg, nil
}
