package service

import (
	"context"

	"cajapos/internal/dto"
	"cajapos/internal/infra"
	"cajapos/internal/realtime"
	"cajapos/internal/worker"

	"gorm.io/gorm"
)

// Collaborators the services reach outside the database. Any of them may
// be nil; the services then skip that side effect.

type InventarioNotifier interface {
	Descontar(ctx context.Context, req infra.DescuentoInventario) ([]string, error)
}

type JobQueue interface {
	EnqueueInventario(ctx context.Context, job worker.InventarioJob) error
	EnqueueEmail(ctx context.Context, job worker.EmailJob) error
}

type EventPublisher interface {
	Publish(ev realtime.Evento)
}

// SesionCache: Set is conditional on the generation read before the
// database lookup; Invalidate bumps it.
type SesionCache interface {
	Get(ctx context.Context, tiendaID string) (*dto.SesionCajaResponse, bool)
	Generacion(ctx context.Context, tiendaID string) int64
	Set(ctx context.Context, tiendaID string, s *dto.SesionCajaResponse, gen int64)
	Invalidate(ctx context.Context, tiendaID string)
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// efectos bundles the optional side effects shared by both services.
type efectos struct {
	events EventPublisher
	cache  SesionCache
	queue  JobQueue
}

func (e efectos) publicar(tipo, tiendaID string, data any) {
	if e.events != nil {
		e.events.Publish(realtime.Evento{Tipo: tipo, TiendaID: tiendaID, Data: data})
	}
}

func (e efectos) invalidar(ctx context.Context, tiendaID string) {
	if e.cache != nil {
		e.cache.Invalidate(ctx, tiendaID)
	}
}
