// Package workload drives synthetic Arrow allocation churn through a
// memory allocator so allocation profiling can be observed end to end.
package workload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
)

// Config controls the churn generator.
type Config struct {
	// Goroutines is the number of concurrent builders.
	Goroutines int
	// Batches is the number of record batches each goroutine builds.
	Batches int
	// Rows is the number of rows per batch.
	Rows int
	// Pause is an optional delay between batches.
	Pause time.Duration
}

// Validate applies defaults and rejects nonsensical settings.
func (c *Config) Validate() error {
	if c.Goroutines <= 0 {
		c.Goroutines = 4
	}
	if c.Batches <= 0 {
		c.Batches = 100
	}
	if c.Rows < 0 {
		return fmt.Errorf("rows must be non-negative, got %d", c.Rows)
	}
	if c.Rows == 0 {
		c.Rows = 1024
	}
	return nil
}

// churnSchema is the batch shape every worker builds: fixed-width and
// variable-width columns so both buffer growth paths get exercised.
var churnSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "value", Type: arrow.PrimitiveTypes.Float64},
	{Name: "label", Type: arrow.BinaryTypes.String},
}, nil)

// Run builds and releases record batches with alloc across cfg.Goroutines
// goroutines until each has produced cfg.Batches batches or ctx is
// cancelled. Every batch is released as soon as it is built, so a run that
// completes leaves no memory outstanding.
func Run(ctx context.Context, alloc memory.Allocator, cfg Config, logger zerolog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid workload config: %w", err)
	}

	logger.Info().
		Int("goroutines", cfg.Goroutines).
		Int("batches", cfg.Batches).
		Int("rows", cfg.Rows).
		Msg("Starting allocation churn")

	start := time.Now()
	var wg sync.WaitGroup
	for g := 0; g < cfg.Goroutines; g++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < cfg.Batches; i++ {
				select {
				case <-ctx.Done():
					return
				default:
				}

				rec := buildBatch(alloc, cfg.Rows, worker*cfg.Batches+i)
				rec.Release()

				if cfg.Pause > 0 {
					select {
					case <-ctx.Done():
						return
					case <-time.After(cfg.Pause):
					}
				}
			}
		}(g)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	logger.Info().
		Dur("elapsed", time.Since(start)).
		Int("total_batches", cfg.Goroutines*cfg.Batches).
		Msg("Allocation churn complete")
	return nil
}

// buildBatch builds one record batch through alloc.
func buildBatch(alloc memory.Allocator, rows, seed int) arrow.Record {
	b := array.NewRecordBuilder(alloc, churnSchema)
	defer b.Release()

	idB := b.Field(0).(*array.Int64Builder)
	valB := b.Field(1).(*array.Float64Builder)
	labelB := b.Field(2).(*array.StringBuilder)

	for i := 0; i < rows; i++ {
		idB.Append(int64(seed*rows + i))
		valB.Append(float64(i) * 0.5)
		labelB.Append(fmt.Sprintf("row-%d", i))
	}

	return b.NewRecord()
}
