package repository

import (
	"context"

	"cajapos/internal/dto"
	"cajapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CajaRepository persists sessions and their cash movements. Movements are
// append-only: there is no update or delete.
// Methods taking tx run on it when non-nil, on the repository's DB otherwise.
type CajaRepository interface {
	CreateSesion(ctx context.Context, tx *gorm.DB, s *model.SesionCaja) error
	CountSesionesPorTienda(ctx context.Context, tx *gorm.DB, tiendaID string) (int64, error)
	FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error)
	// FindSesionForUpdate locks the session row until tx ends.
	FindSesionForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.SesionCaja, error)
	FindSesionAbiertaPorTienda(ctx context.Context, tiendaID string) (*model.SesionCaja, error)
	ListSesiones(ctx context.Context, filter dto.SesionFilter) ([]model.SesionCaja, int64, error)
	UpdateSesion(ctx context.Context, tx *gorm.DB, s *model.SesionCaja) error
	CreateMovimiento(ctx context.Context, tx *gorm.DB, m *model.MovimientoEfectivo) error
	ListMovimientos(ctx context.Context, sesionID uuid.UUID) ([]model.MovimientoEfectivo, error)
	DB() *gorm.DB
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) DB() *gorm.DB { return r.db }

func (r *cajaRepo) CreateSesion(ctx context.Context, tx *gorm.DB, s *model.SesionCaja) error {
	model.NewID(&s.ID)
	return conn(r.db, tx).WithContext(ctx).Omit(clause.Associations).Create(s).Error
}

func (r *cajaRepo) CountSesionesPorTienda(ctx context.Context, tx *gorm.DB, tiendaID string) (int64, error) {
	var n int64
	err := conn(r.db, tx).WithContext(ctx).Model(&model.SesionCaja{}).
		Where("tienda_id = ?", tiendaID).Count(&n).Error
	return n, err
}

func (r *cajaRepo) FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).
		Preload("Movimientos", func(db *gorm.DB) *gorm.DB { return db.Order("fecha ASC") }).
		First(&s, "id = ?", id).Error
	return &s, err
}

func (r *cajaRepo) FindSesionForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := conn(r.db, tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, "id = ?", id).Error
	return &s, err
}

func (r *cajaRepo) FindSesionAbiertaPorTienda(ctx context.Context, tiendaID string) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).
		Preload("Movimientos", func(db *gorm.DB) *gorm.DB { return db.Order("fecha ASC") }).
		Where("tienda_id = ? AND estado = ?", tiendaID, model.SesionAbierta).
		First(&s).Error
	return &s, err
}

func (r *cajaRepo) ListSesiones(ctx context.Context, filter dto.SesionFilter) ([]model.SesionCaja, int64, error) {
	var sesiones []model.SesionCaja
	var total int64

	q := r.db.WithContext(ctx).Model(&model.SesionCaja{})
	if filter.TiendaID != "" {
		q = q.Where("tienda_id = ?", filter.TiendaID)
	}
	if filter.Estado != "" {
		q = q.Where("estado = ?", filter.Estado)
	}
	if filter.FechaDesde != "" {
		q = q.Where("DATE(fecha_apertura) >= ?", filter.FechaDesde)
	}
	if filter.FechaHasta != "" {
		q = q.Where("DATE(fecha_apertura) <= ?", filter.FechaHasta)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("fecha_apertura DESC").
		Offset(filter.Offset()).Limit(filter.Limit).
		Find(&sesiones).Error
	return sesiones, total, err
}

func (r *cajaRepo) UpdateSesion(ctx context.Context, tx *gorm.DB, s *model.SesionCaja) error {
	return conn(r.db, tx).WithContext(ctx).Omit(clause.Associations).Save(s).Error
}

func (r *cajaRepo) CreateMovimiento(ctx context.Context, tx *gorm.DB, m *model.MovimientoEfectivo) error {
	model.NewID(&m.ID)
	return conn(r.db, tx).WithContext(ctx).Create(m).Error
}

func (r *cajaRepo) ListMovimientos(ctx context.Context, sesionID uuid.UUID) ([]model.MovimientoEfectivo, error) {
	var movs []model.MovimientoEfectivo
	err := r.db.WithContext(ctx).Where("sesion_caja_id = ?", sesionID).Order("fecha ASC").Find(&movs).Error
	return movs, err
}
