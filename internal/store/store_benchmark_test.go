package store

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/mmalewski/kartotherian/pkg/logger"
)

const benchTileSize = 10 * 1024 // 10KB, a typical mid-zoom vector tile

func setupBenchStore(b *testing.B) *Store {
	b.Helper()
	s, err := New(Config{
		Driver:          "sqlite",
		Database:        filepath.Join(b.TempDir(), "bench.db"),
		CreateIfMissing: true,
	}, logger.NewNop())
	if err != nil {
		b.Fatalf("failed to create store: %v", err)
	}
	b.Cleanup(func() { s.Close() })
	return s
}

func benchTile() []byte {
	data := make([]byte, benchTileSize)
	rand.Read(data)
	return data
}

func BenchmarkPutTile(b *testing.B) {
	s := setupBenchStore(b)
	data := benchTile()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.PutTile(context.Background(), 10, i%1024, (i/1024)%1024, data); err != nil {
			b.Fatalf("PutTile failed: %v", err)
		}
	}
}

func BenchmarkPutTileBatched(b *testing.B) {
	s := setupBenchStore(b)
	s.batch.maxSize = 500
	data := benchTile()

	b.ResetTimer()
	s.BeginBatch()
	for i := 0; i < b.N; i++ {
		if err := s.PutTile(context.Background(), 10, i%1024, (i/1024)%1024, data); err != nil {
			b.Fatalf("PutTile failed: %v", err)
		}
	}
	if err := s.EndBatch(context.Background()); err != nil {
		b.Fatalf("EndBatch failed: %v", err)
	}
}

func BenchmarkGetTile(b *testing.B) {
	s := setupBenchStore(b)
	data := benchTile()
	for i := 0; i < 1024; i++ {
		if err := s.PutTile(context.Background(), 10, i, i, data); err != nil {
			b.Fatalf("PutTile failed: %v", err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := s.GetTile(context.Background(), 10, i%1024, i%1024); err != nil {
			b.Fatalf("GetTile failed: %v", err)
		}
	}
}
