package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.EmbeddingModel != "BAAI/bge-large-en-v1.5" {
		t.Errorf("EmbeddingModel = %q", cfg.EmbeddingModel)
	}
	if cfg.Model != "mistralai/Mixtral-8x7B-Instruct-v0.1" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 || cfg.TopK != 5 {
		t.Errorf("unexpected tuning defaults %+v", cfg)
	}
	if cfg.QdrantURL != "localhost:6334" {
		t.Errorf("QdrantURL = %q", cfg.QdrantURL)
	}
}

func TestLoad_EnvironmentWins(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("QDRANT_NAMESPACE", "medical")
	t.Setenv("PORT", "9090")

	cfg := Load()

	if cfg.ChunkSize != 500 {
		t.Errorf("ChunkSize = %d", cfg.ChunkSize)
	}
	if cfg.Namespace != "medical" {
		t.Errorf("Namespace = %q", cfg.Namespace)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("TOP_K", "many")

	if cfg := Load(); cfg.TopK != 5 {
		t.Errorf("TopK = %d, want fallback 5", cfg.TopK)
	}
}
