// Package config loads engine configuration from the environment. A .env
// file in the working directory is picked up when present; variables
// already set in the environment win over the file.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for the engine binaries.
type Config struct {
	Port       string
	CORSOrigin string
	DataDir    string

	EmbeddingModel string
	HFBaseURL      string
	HFToken        string

	Model           string
	TogetherBaseURL string
	TogetherKey     string

	QdrantURL  string
	Collection string
	Namespace  string

	ChunkSize    int
	ChunkOverlap int
	TopK         int

	NATSURL string
}

// Load reads configuration, applying defaults for anything unset.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:       envOr("PORT", "8080"),
		CORSOrigin: envOr("CORS_ORIGIN", "*"),
		DataDir:    envOr("DATA_DIR", "data"),

		EmbeddingModel: envOr("EMBEDDING_MODEL", "BAAI/bge-large-en-v1.5"),
		HFBaseURL:      os.Getenv("HF_API_URL"),
		HFToken:        os.Getenv("HF_API_TOKEN"),

		Model:           envOr("MODEL_NAME", "mistralai/Mixtral-8x7B-Instruct-v0.1"),
		TogetherBaseURL: os.Getenv("TOGETHER_API_URL"),
		TogetherKey:     os.Getenv("TOGETHER_API_KEY"),

		QdrantURL:  envOr("QDRANT_URL", "localhost:6334"),
		Collection: envOr("QDRANT_COLLECTION", "medical-chatbot"),
		Namespace:  os.Getenv("QDRANT_NAMESPACE"),

		ChunkSize:    envInt("CHUNK_SIZE", 1000),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 200),
		TopK:         envInt("TOP_K", 5),

		NATSURL: envOr("NATS_URL", "nats://localhost:4222"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
