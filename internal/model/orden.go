package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrdenCompra is a sale in a cash session. Amounts are persisted exactly as
// computed by the order builder so that
// Total == (Subtotal - DescuentoMonto) + ImpuestoMonto holds on every row.
//
// InventarioPendiente stays true until the inventory system confirms the
// stock decrement of a paid order. InventarioError records a permanent
// rejection; such orders wait for manual reconciliation and are no longer
// retried.
type OrdenCompra struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NumeroOrden           string          `gorm:"type:varchar(32);uniqueIndex;not null"`
	SesionCajaID          uuid.UUID       `gorm:"type:uuid;index;not null"`
	TiendaID              string          `gorm:"type:varchar(64);index;not null"`
	ClienteID             *string         `gorm:"type:varchar(64)"`
	ClienteNombre         *string         `gorm:"type:varchar(160)"`
	ClienteCI             *string         `gorm:"column:cliente_ci;type:varchar(32)"`
	ClienteTelefono       *string         `gorm:"type:varchar(32)"`
	FechaCreacion         time.Time       `gorm:"not null"`
	FechaPago             *time.Time      `gorm:"index"`
	Subtotal              decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ImpuestoPorcentaje    decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	ImpuestoMonto         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DescuentoPorcentaje   decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	DescuentoMonto        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Total                 decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Estado                EstadoOrden     `gorm:"type:varchar(20);not null;default:'pendiente';index"`
	MetodoPago            *MetodoPago     `gorm:"type:varchar(20)"`
	AlmacenID             *string         `gorm:"type:varchar(64)"`
	Notas                 *string         `gorm:"type:text"`
	UsuarioCreacion       string          `gorm:"type:varchar(120);not null"`
	InventarioPendiente   bool            `gorm:"not null;default:false"`
	InventarioError       *string         `gorm:"type:text"`
	MovimientosInventario StringList      `gorm:"type:jsonb"`
	CreatedAt             time.Time       `gorm:"autoCreateTime"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime"`

	Items []ItemOrden `gorm:"foreignKey:OrdenID"`
	Pagos []Pago      `gorm:"foreignKey:OrdenID"`
}

func (OrdenCompra) TableName() string { return "ordenes_compra" }

// ItemOrden is a line of an order; immutable once the order is paid.
type ItemOrden struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrdenID        uuid.UUID       `gorm:"type:uuid;index;not null"`
	MaterialCodigo string          `gorm:"type:varchar(64);not null"`
	Descripcion    string          `gorm:"not null"`
	Cantidad       decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Categoria      *string         `gorm:"type:varchar(64)"`
	AlmacenID      *string         `gorm:"type:varchar(64)"`
}

func (ItemOrden) TableName() string { return "items_orden" }

// Pago is one payment allocation against an order. MontoRecibido and
// Cambio are only set for cash.
type Pago struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrdenID       uuid.UUID        `gorm:"type:uuid;index;not null"`
	Metodo        MetodoPago       `gorm:"type:varchar(20);not null"`
	Monto         decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	MontoRecibido *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Cambio        *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Referencia    *string          `gorm:"type:varchar(120)"`
	CreatedAt     time.Time        `gorm:"autoCreateTime"`
}

func (Pago) TableName() string { return "pagos_orden" }

// ItemAlmacen returns the warehouse stock for item i is taken from: the
// item's own warehouse when set, otherwise the order's.
func (o *OrdenCompra) ItemAlmacen(i int) string {
	if a := o.Items[i].AlmacenID; a != nil && *a != "" {
		return *a
	}
	if o.AlmacenID != nil {
		return *o.AlmacenID
	}
	return ""
}

// NewID assigns a fresh uuid when id is unset. Used by repositories so the
// id is known before insert (the column default only covers raw SQL).
func NewID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
