// Package repotest provides in-memory repositories for unit tests. They
// ignore the tx argument and mimic the postgres constraints the services
// rely on (one open session per store, unique numero_orden).
package repotest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	_ repository.CajaRepository  = (*CajaRepo)(nil)
	_ repository.OrdenRepository = (*OrdenRepo)(nil)
)

// ── CajaRepo ─────────────────────────────────────────────────────────────────

type CajaRepo struct {
	mu          sync.Mutex
	sesiones    map[uuid.UUID]model.SesionCaja
	movimientos []model.MovimientoEfectivo
	// SkipOpenCheck makes FindSesionAbiertaPorTienda report nothing, to
	// exercise the unique-index path of a concurrent open.
	SkipOpenCheck bool
	// FailListMovimientos, when set, is returned by ListMovimientos.
	FailListMovimientos error
}

func NewCajaRepo() *CajaRepo {
	return &CajaRepo{sesiones: make(map[uuid.UUID]model.SesionCaja)}
}

func (r *CajaRepo) DB() *gorm.DB { return nil }

func (r *CajaRepo) CreateSesion(_ context.Context, _ *gorm.DB, s *model.SesionCaja) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.Estado == model.SesionAbierta {
		for _, o := range r.sesiones {
			if o.TiendaID == s.TiendaID && o.Estado == model.SesionAbierta {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	model.NewID(&s.ID)
	now := time.Now()
	s.CreatedAt, s.UpdatedAt = now, now
	r.sesiones[s.ID] = *s
	return nil
}

func (r *CajaRepo) CountSesionesPorTienda(_ context.Context, _ *gorm.DB, tiendaID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sesiones {
		if s.TiendaID == tiendaID {
			n++
		}
	}
	return n, nil
}

func (r *CajaRepo) FindSesionByID(_ context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sesiones[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	s.Movimientos = r.movimientosDe(id)
	return &s, nil
}

func (r *CajaRepo) FindSesionForUpdate(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.SesionCaja, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sesiones[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (r *CajaRepo) FindSesionAbiertaPorTienda(_ context.Context, tiendaID string) (*model.SesionCaja, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SkipOpenCheck {
		return nil, gorm.ErrRecordNotFound
	}
	for id, s := range r.sesiones {
		if s.TiendaID == tiendaID && s.Estado == model.SesionAbierta {
			s.Movimientos = r.movimientosDe(id)
			return &s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *CajaRepo) ListSesiones(_ context.Context, f dto.SesionFilter) ([]model.SesionCaja, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SesionCaja
	for _, s := range r.sesiones {
		if f.TiendaID != "" && s.TiendaID != f.TiendaID {
			continue
		}
		if f.Estado != "" && string(s.Estado) != f.Estado {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FechaApertura.After(out[j].FechaApertura) })
	total := int64(len(out))
	return paginar(out, f.Paginacion), total, nil
}

func (r *CajaRepo) UpdateSesion(_ context.Context, _ *gorm.DB, s *model.SesionCaja) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sesiones[s.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	s.UpdatedAt = time.Now()
	cp := *s
	cp.Movimientos = nil
	r.sesiones[s.ID] = cp
	return nil
}

func (r *CajaRepo) CreateMovimiento(_ context.Context, _ *gorm.DB, m *model.MovimientoEfectivo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !m.Monto.IsPositive() {
		return fmt.Errorf("chk_movimientos_efectivo_monto violated")
	}
	model.NewID(&m.ID)
	r.movimientos = append(r.movimientos, *m)
	return nil
}

func (r *CajaRepo) ListMovimientos(_ context.Context, sesionID uuid.UUID) ([]model.MovimientoEfectivo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailListMovimientos != nil {
		return nil, r.FailListMovimientos
	}
	return r.movimientosDe(sesionID), nil
}

func (r *CajaRepo) movimientosDe(id uuid.UUID) []model.MovimientoEfectivo {
	var out []model.MovimientoEfectivo
	for _, m := range r.movimientos {
		if m.SesionCajaID == id {
			out = append(out, m)
		}
	}
	return out
}

// ── OrdenRepo ────────────────────────────────────────────────────────────────

type OrdenRepo struct {
	mu      sync.Mutex
	ordenes map[uuid.UUID]model.OrdenCompra
	seq     int64
	// FailCreatePagos, when set, is returned by CreatePagos.
	FailCreatePagos error
}

func NewOrdenRepo() *OrdenRepo {
	return &OrdenRepo{ordenes: make(map[uuid.UUID]model.OrdenCompra)}
}

func (r *OrdenRepo) DB() *gorm.DB { return nil }

func (r *OrdenRepo) NextNumeroOrden(_ context.Context, _ *gorm.DB) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq, nil
}

func (r *OrdenRepo) Create(_ context.Context, _ *gorm.DB, o *model.OrdenCompra) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.ordenes {
		if x.NumeroOrden == o.NumeroOrden {
			return gorm.ErrDuplicatedKey
		}
	}
	model.NewID(&o.ID)
	for i := range o.Items {
		model.NewID(&o.Items[i].ID)
		o.Items[i].OrdenID = o.ID
	}
	now := time.Now()
	o.CreatedAt, o.UpdatedAt = now, now
	r.ordenes[o.ID] = clonar(*o)
	return nil
}

func (r *OrdenRepo) FindByID(_ context.Context, id uuid.UUID) (*model.OrdenCompra, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.ordenes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	o = clonar(o)
	return &o, nil
}

func (r *OrdenRepo) FindForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.OrdenCompra, error) {
	o, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Pagos = nil
	return o, nil
}

func (r *OrdenRepo) List(_ context.Context, f dto.OrdenFilter) ([]model.OrdenCompra, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.OrdenCompra
	for _, o := range r.ordenes {
		if f.SesionCajaID != "" && o.SesionCajaID.String() != f.SesionCajaID {
			continue
		}
		if f.TiendaID != "" && o.TiendaID != f.TiendaID {
			continue
		}
		if f.Estado != "" && string(o.Estado) != f.Estado {
			continue
		}
		out = append(out, clonar(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NumeroOrden > out[j].NumeroOrden })
	total := int64(len(out))
	return paginar(out, f.Paginacion), total, nil
}

func (r *OrdenRepo) Update(_ context.Context, _ *gorm.DB, o *model.OrdenCompra) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.ordenes[o.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.UpdatedAt = time.Now()
	cp := clonar(*o)
	// associations are written through ReplaceItems / CreatePagos only
	cp.Items, cp.Pagos = prev.Items, prev.Pagos
	r.ordenes[o.ID] = cp
	return nil
}

func (r *OrdenRepo) ReplaceItems(_ context.Context, _ *gorm.DB, ordenID uuid.UUID, items []model.ItemOrden) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.ordenes[ordenID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range items {
		model.NewID(&items[i].ID)
		items[i].OrdenID = ordenID
	}
	o.Items = append([]model.ItemOrden(nil), items...)
	r.ordenes[ordenID] = o
	return nil
}

func (r *OrdenRepo) CreatePagos(_ context.Context, _ *gorm.DB, pagos []model.Pago) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailCreatePagos != nil {
		return r.FailCreatePagos
	}
	for i := range pagos {
		model.NewID(&pagos[i].ID)
		pagos[i].CreatedAt = time.Now()
		o, ok := r.ordenes[pagos[i].OrdenID]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		o.Pagos = append(o.Pagos, pagos[i])
		r.ordenes[o.ID] = o
	}
	return nil
}

func (r *OrdenRepo) MarcarInventario(_ context.Context, id uuid.UUID, movimientos []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.ordenes[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.InventarioPendiente = false
	o.MovimientosInventario = append(model.StringList(nil), movimientos...)
	r.ordenes[id] = o
	return nil
}

func (r *OrdenRepo) MarcarRechazoInventario(_ context.Context, id uuid.UUID, motivo string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.ordenes[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.InventarioError = &motivo
	r.ordenes[id] = o
	return nil
}

func (r *OrdenRepo) ListInventarioPendiente(_ context.Context, antesDe time.Time, limit int) ([]model.OrdenCompra, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.OrdenCompra
	for _, o := range r.ordenes {
		if o.InventarioPendiente && o.InventarioError == nil && o.Estado == model.OrdenPagada && o.FechaPago != nil && o.FechaPago.Before(antesDe) {
			out = append(out, clonar(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FechaPago.Before(*out[j].FechaPago) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *OrdenRepo) ContarPorEstado(_ context.Context, sesionID uuid.UUID) (map[model.EstadoOrden]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[model.EstadoOrden]int64)
	for _, o := range r.ordenes {
		if o.SesionCajaID == sesionID {
			out[o.Estado]++
		}
	}
	return out, nil
}

// Put stores o as is, for arranging test fixtures.
func (r *OrdenRepo) Put(o model.OrdenCompra) {
	r.mu.Lock()
	defer r.mu.Unlock()
	model.NewID(&o.ID)
	r.ordenes[o.ID] = clonar(o)
}

func clonar(o model.OrdenCompra) model.OrdenCompra {
	o.Items = append([]model.ItemOrden(nil), o.Items...)
	o.Pagos = append([]model.Pago(nil), o.Pagos...)
	o.MovimientosInventario = append(model.StringList(nil), o.MovimientosInventario...)
	return o
}

func paginar[T any](items []T, p dto.Paginacion) []T {
	p.Normalizar()
	start := p.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
