// Package benchmark holds engine benchmarks. Sizes can be overridden with
// environment variables (optionally from a .env file) so the same suite runs
// as a quick smoke test or a heavier soak.
package benchmark

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"

	"github.com/joho/godotenv"

	"github.com/quern/quern/internal/config"
	"github.com/quern/quern/internal/db"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

// envInt reads an integer override from the environment.
func envInt(name string, fallback int) int {
	_ = godotenv.Load("../../.env")
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// benchSchema declares one indexed table for the benchmarks.
func benchSchema(b *testing.B) *schema.Database {
	b.Helper()
	sb := schema.NewBuilder("bench", 1)
	sb.Table("Event").
		Column("id", types.TypeInteger).
		Column("user", types.TypeString).
		Column("value", types.TypeNumber).
		PrimaryKey("id").
		Index("idx_user", "user").
		Index("idx_value", "value")
	sch, err := sb.Build()
	if err != nil {
		b.Fatalf("failed to build schema: %v", err)
	}
	return sch
}

// openBenchDB opens an in-memory database seeded with n events.
func openBenchDB(b *testing.B, n int) *db.Database {
	b.Helper()
	ctx := context.Background()
	d, err := db.Open(ctx, config.DefaultConfig(), benchSchema(b), nil)
	if err != nil {
		b.Fatalf("failed to open database: %v", err)
	}
	b.Cleanup(func() { d.Close(ctx) })

	event, err := d.Table("Event")
	if err != nil {
		b.Fatalf("failed to resolve table: %v", err)
	}

	const chunk = 1000
	for offset := 0; offset < n; offset += chunk {
		end := offset + chunk
		if end > n {
			end = n
		}
		payloads := make([]map[string]interface{}, 0, end-offset)
		for i := offset; i < end; i++ {
			payloads = append(payloads, map[string]interface{}{
				"id":    int64(i),
				"user":  fmt.Sprintf("user-%d", i%100),
				"value": float64(i % 1000),
			})
		}
		if _, err := d.Insert().Into(event).Values(payloads...).Exec(ctx); err != nil {
			b.Fatalf("failed to seed rows: %v", err)
		}
	}
	return d
}
