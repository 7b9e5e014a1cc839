package worker

// inventario_worker.go
// Retries the stock decrement of paid orders whose synchronous notification
// failed. The payment is never undone: the order keeps inventario_pendiente
// until the inventory system confirms, or the job lands in the DLQ. A 4xx
// rejection is recorded on the order so reconciliation stops retrying it.

import (
	"context"
	"encoding/json"
	"fmt"

	"cajapos/internal/infra"
	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type InventarioJob struct {
	OrdenID string `json:"orden_id"`
}

// Descontador is the inventory side-effect notifier.
type Descontador interface {
	Descontar(ctx context.Context, req infra.DescuentoInventario) ([]string, error)
}

type InventarioWorker struct {
	notifier Descontador
	ordenes  repository.OrdenRepository
}

func NewInventarioWorker(notifier Descontador, ordenes repository.OrdenRepository) *InventarioWorker {
	return &InventarioWorker{notifier: notifier, ordenes: ordenes}
}

func (w *InventarioWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var job InventarioJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return fmt.Errorf("inventario_worker: invalid payload: %w", err)
	}
	id, err := uuid.Parse(job.OrdenID)
	if err != nil {
		return fmt.Errorf("inventario_worker: invalid orden_id %q", job.OrdenID)
	}

	orden, err := w.ordenes.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("inventario_worker: load orden %s: %w", id, err)
	}
	if !orden.InventarioPendiente || orden.InventarioError != nil || orden.Estado != model.OrdenPagada {
		log.Debug().Str("orden_id", job.OrdenID).Msg("inventario_worker: nothing pending, skipping")
		return nil
	}

	req := infra.DescuentoDesdeOrden(orden)
	var movimientos []string
	err = withRetry(ctx, maxAttempts, func(attempt int) error {
		m, err := w.notifier.Descontar(ctx, req)
		if err != nil {
			log.Warn().Err(err).Str("orden_id", job.OrdenID).Int("attempt", attempt+1).
				Msg("inventario_worker: decrement failed")
			if infra.IsRechazo(err) {
				return permanent(err)
			}
			return err
		}
		movimientos = m
		return nil
	})
	if infra.IsRechazo(err) {
		// the job still reaches the DLQ once; the sweep no longer re-queues it
		if merr := w.ordenes.MarcarRechazoInventario(ctx, id, err.Error()); merr != nil {
			log.Error().Err(merr).Str("orden_id", job.OrdenID).Msg("inventario_worker: could not record rejection")
		}
	}
	if err != nil {
		return fmt.Errorf("inventario_worker: orden %s: %w", orden.NumeroOrden, err)
	}

	if err := w.ordenes.MarcarInventario(ctx, id, movimientos); err != nil {
		return fmt.Errorf("inventario_worker: mark orden %s: %w", orden.NumeroOrden, err)
	}
	log.Info().Str("orden_id", job.OrdenID).Str("numero_orden", orden.NumeroOrden).
		Int("movimientos", len(movimientos)).Msg("inventario_worker: stock decremented")
	return nil
}
