package worker

// reconciliacion_cron.go
// Periodically re-queues paid orders still waiting for their stock
// decrement, so orders whose jobs hit the DLQ during an inventory outage
// are reconciled once the system is back.

import (
	"context"
	"encoding/json"
	"time"

	"cajapos/internal/infra"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const reconciliacionBatchSize = 50

type InventarioQueue interface {
	EnqueueInventario(ctx context.Context, job InventarioJob) error
}

// DeadLetters is the part of *DLQ the sweep needs.
type DeadLetters interface {
	Entradas(ctx context.Context, limit int) ([]DLQEntry, error)
	Quitar(ctx context.Context, e DLQEntry) error
}

type ReconciliacionConfig struct {
	Ordenes repository.OrdenRepository
	Queue   InventarioQueue
	CB      *infra.CircuitBreaker // optional
	DLQ     DeadLetters           // optional, inventory dead letters to purge
	// Interval between sweeps (default 5m).
	Interval time.Duration
	// MinAntiguedad skips orders paid more recently, whose first retry
	// may still be in flight (default 10m).
	MinAntiguedad time.Duration
}

// StartReconciliacion launches the sweep goroutine; it stops with ctx.
func StartReconciliacion(ctx context.Context, cfg ReconciliacionConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.MinAntiguedad <= 0 {
		cfg.MinAntiguedad = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Msg("reconciliacion: started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("reconciliacion: shutting down")
				return
			case <-ticker.C:
				reconciliar(ctx, cfg, time.Now())
			}
		}
	}()
}

// reconciliar runs one sweep and returns how many orders were re-queued.
func reconciliar(ctx context.Context, cfg ReconciliacionConfig, now time.Time) int {
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("reconciliacion: circuit breaker is open, skipping tick")
		return 0
	}

	ordenes, err := cfg.Ordenes.ListInventarioPendiente(ctx, now.Add(-cfg.MinAntiguedad), reconciliacionBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("reconciliacion: failed to query pending orders")
		return 0
	}

	n := 0
	for i := range ordenes {
		o := &ordenes[i]
		if err := cfg.Queue.EnqueueInventario(ctx, InventarioJob{OrdenID: o.ID.String()}); err != nil {
			log.Error().Err(err).Str("orden_id", o.ID.String()).Msg("reconciliacion: enqueue failed")
			continue
		}
		n++
	}
	if n > 0 {
		log.Info().Int("count", n).Msg("reconciliacion: pending stock decrements re-queued")
	}
	if cfg.DLQ != nil {
		purgarDLQ(ctx, cfg)
	}
	return n
}

// purgarDLQ drops inventory dead letters whose order no longer waits for
// its stock decrement. It returns how many were removed.
func purgarDLQ(ctx context.Context, cfg ReconciliacionConfig) int {
	entradas, err := cfg.DLQ.Entradas(ctx, reconciliacionBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("reconciliacion: failed to read DLQ")
		return 0
	}
	n := 0
	for _, e := range entradas {
		if e.JobType != JobInventario {
			continue
		}
		var job InventarioJob
		if err := json.Unmarshal(e.Payload, &job); err != nil {
			continue
		}
		id, err := uuid.Parse(job.OrdenID)
		if err != nil {
			continue
		}
		o, err := cfg.Ordenes.FindByID(ctx, id)
		if err != nil || o.InventarioPendiente {
			continue
		}
		if err := cfg.DLQ.Quitar(ctx, e); err != nil {
			log.Error().Err(err).Str("orden_id", job.OrdenID).Msg("reconciliacion: DLQ remove failed")
			continue
		}
		n++
	}
	if n > 0 {
		log.Info().Int("count", n).Msg("reconciliacion: resolved dead letters purged")
	}
	return n
}
