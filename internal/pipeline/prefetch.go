package pipeline

import (
	"context"

	"github.com/ramonehamilton/cubeml/internal/encoder"
	"github.com/ramonehamilton/cubeml/internal/metrics"
)

// Result is one prefetched batch, or the error that stopped the producer.
type Result struct {
	Epoch int
	Step  int
	Batch *encoder.Batch
	Err   error
}

// Prefetch builds batches on a single goroutine, up to depth ahead of the
// consumer, and delivers them in order. The producer starts a new epoch
// after every Len() batches, exactly as Run does. With limit > 0 it builds
// exactly limit batches and, when the last one closes an epoch, prepares the
// next epoch before exiting, leaving the generator where a synchronous Run
// would. With limit <= 0 it runs until ctx is cancelled. It stops early after
// the first error (delivered as the last Result); the channel is closed when
// it exits.
//
// The generator belongs to the producer until the channel is closed.
func (g *Generator) Prefetch(ctx context.Context, depth, limit int) <-chan Result {
	if depth < 1 {
		depth = 1
	}
	out := make(chan Result, depth)
	gauge := metrics.PrefetchDepth.WithLabelValues(g.cfg.Split)

	go func() {
		defer close(out)
		defer gauge.Set(0)

		for produced := 0; limit <= 0 || produced < limit; produced++ {
			if g.step >= g.numBatches {
				g.PrepNextEpoch()
			}
			res := Result{Epoch: g.Epoch(), Step: g.step}
			res.Batch, res.Err = g.Next(ctx)

			select {
			case out <- res:
				gauge.Set(float64(len(out)))
			case <-ctx.Done():
				return
			}
			if res.Err != nil {
				g.log.Error().Err(res.Err).Int("epoch", res.Epoch).Int("step", res.Step).Msg("Prefetch stopped")
				return
			}
		}

		if g.step >= g.numBatches {
			g.PrepNextEpoch()
		}
	}()

	return out
}
