package repository

import (
	"context"
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrdenRepository interface {
	NextNumeroOrden(ctx context.Context, tx *gorm.DB) (int64, error)
	Create(ctx context.Context, tx *gorm.DB, o *model.OrdenCompra) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.OrdenCompra, error)
	// FindForUpdate locks the order row until tx ends and loads its items.
	FindForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.OrdenCompra, error)
	List(ctx context.Context, filter dto.OrdenFilter) ([]model.OrdenCompra, int64, error)
	Update(ctx context.Context, tx *gorm.DB, o *model.OrdenCompra) error
	ReplaceItems(ctx context.Context, tx *gorm.DB, ordenID uuid.UUID, items []model.ItemOrden) error
	CreatePagos(ctx context.Context, tx *gorm.DB, pagos []model.Pago) error
	// MarcarInventario records the stock movements of a paid order and
	// clears its pending flag.
	MarcarInventario(ctx context.Context, id uuid.UUID, movimientos []string) error
	// MarcarRechazoInventario stores a permanent rejection. The order stays
	// pending but drops out of ListInventarioPendiente.
	MarcarRechazoInventario(ctx context.Context, id uuid.UUID, motivo string) error
	ListInventarioPendiente(ctx context.Context, pagadaAntesDe time.Time, limit int) ([]model.OrdenCompra, error)
	ContarPorEstado(ctx context.Context, sesionID uuid.UUID) (map[model.EstadoOrden]int64, error)
	DB() *gorm.DB
}

type ordenRepo struct{ db *gorm.DB }

func NewOrdenRepository(db *gorm.DB) OrdenRepository { return &ordenRepo{db: db} }

func (r *ordenRepo) DB() *gorm.DB { return r.db }

func (r *ordenRepo) NextNumeroOrden(ctx context.Context, tx *gorm.DB) (int64, error) {
	var num int64
	err := conn(r.db, tx).WithContext(ctx).Raw("SELECT nextval('ordenes_compra_numero_seq')").Scan(&num).Error
	return num, err
}

func (r *ordenRepo) Create(ctx context.Context, tx *gorm.DB, o *model.OrdenCompra) error {
	model.NewID(&o.ID)
	for i := range o.Items {
		model.NewID(&o.Items[i].ID)
		o.Items[i].OrdenID = o.ID
	}
	return conn(r.db, tx).WithContext(ctx).Omit("Pagos").Create(o).Error
}

func (r *ordenRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.OrdenCompra, error) {
	var o model.OrdenCompra
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Pagos", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&o, "id = ?", id).Error
	return &o, err
}

func (r *ordenRepo) FindForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.OrdenCompra, error) {
	var o model.OrdenCompra
	err := conn(r.db, tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items").
		First(&o, "id = ?", id).Error
	return &o, err
}

func (r *ordenRepo) List(ctx context.Context, filter dto.OrdenFilter) ([]model.OrdenCompra, int64, error) {
	var ordenes []model.OrdenCompra
	var total int64

	q := r.db.WithContext(ctx).Model(&model.OrdenCompra{})
	if filter.SesionCajaID != "" {
		q = q.Where("sesion_caja_id = ?", filter.SesionCajaID)
	}
	if filter.TiendaID != "" {
		q = q.Where("tienda_id = ?", filter.TiendaID)
	}
	if filter.Estado != "" {
		q = q.Where("estado = ?", filter.Estado)
	}
	if filter.FechaDesde != "" {
		q = q.Where("DATE(fecha_creacion) >= ?", filter.FechaDesde)
	}
	if filter.FechaHasta != "" {
		q = q.Where("DATE(fecha_creacion) <= ?", filter.FechaHasta)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Preload("Items").Preload("Pagos").
		Order("fecha_creacion DESC").
		Offset(filter.Offset()).Limit(filter.Limit).
		Find(&ordenes).Error
	return ordenes, total, err
}

func (r *ordenRepo) Update(ctx context.Context, tx *gorm.DB, o *model.OrdenCompra) error {
	return conn(r.db, tx).WithContext(ctx).Omit(clause.Associations).Save(o).Error
}

func (r *ordenRepo) ReplaceItems(ctx context.Context, tx *gorm.DB, ordenID uuid.UUID, items []model.ItemOrden) error {
	db := conn(r.db, tx).WithContext(ctx)
	if err := db.Where("orden_id = ?", ordenID).Delete(&model.ItemOrden{}).Error; err != nil {
		return err
	}
	for i := range items {
		model.NewID(&items[i].ID)
		items[i].OrdenID = ordenID
	}
	return db.Create(&items).Error
}

func (r *ordenRepo) CreatePagos(ctx context.Context, tx *gorm.DB, pagos []model.Pago) error {
	for i := range pagos {
		model.NewID(&pagos[i].ID)
	}
	return conn(r.db, tx).WithContext(ctx).Create(&pagos).Error
}

func (r *ordenRepo) MarcarInventario(ctx context.Context, id uuid.UUID, movimientos []string) error {
	return r.db.WithContext(ctx).Model(&model.OrdenCompra{}).Where("id = ?", id).
		Updates(map[string]any{
			"inventario_pendiente":   false,
			"movimientos_inventario": model.StringList(movimientos),
		}).Error
}

func (r *ordenRepo) MarcarRechazoInventario(ctx context.Context, id uuid.UUID, motivo string) error {
	return r.db.WithContext(ctx).Model(&model.OrdenCompra{}).Where("id = ?", id).
		Update("inventario_error", motivo).Error
}

func (r *ordenRepo) ListInventarioPendiente(ctx context.Context, pagadaAntesDe time.Time, limit int) ([]model.OrdenCompra, error) {
	var ordenes []model.OrdenCompra
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("inventario_pendiente = ? AND inventario_error IS NULL AND estado = ? AND fecha_pago < ?", true, model.OrdenPagada, pagadaAntesDe).
		Order("fecha_pago ASC").
		Limit(limit).
		Find(&ordenes).Error
	return ordenes, err
}

func (r *ordenRepo) ContarPorEstado(ctx context.Context, sesionID uuid.UUID) (map[model.EstadoOrden]int64, error) {
	var rows []struct {
		Estado model.EstadoOrden
		N      int64
	}
	err := r.db.WithContext(ctx).Model(&model.OrdenCompra{}).
		Select("estado, COUNT(*) AS n").
		Where("sesion_caja_id = ?", sesionID).
		Group("estado").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[model.EstadoOrden]int64, len(rows))
	for _, row := range rows {
		out[row.Estado] = row.N
	}
	return out, nil
}
