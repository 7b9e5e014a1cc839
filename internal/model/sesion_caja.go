package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SesionCaja is the period during which a store's cash drawer is open.
// Running totals are kept on the row and updated in the same transaction
// as the payment or movement that changes them. EfectivoEsperado is set on
// close to EfectivoApertura + TotalEfectivo at that moment.
type SesionCaja struct {
	ID                      uuid.UUID                `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TiendaID                string                   `gorm:"type:varchar(64);not null;index"`
	NumeroSesion            string                   `gorm:"type:varchar(32);not null"`
	FechaApertura           time.Time                `gorm:"not null"`
	FechaCierre             *time.Time               `gorm:"index"`
	EfectivoApertura        decimal.Decimal          `gorm:"type:decimal(12,2);not null"`
	EfectivoCierre          *decimal.Decimal         `gorm:"type:decimal(12,2)"`
	NotaApertura            *string                  `gorm:"type:text"`
	NotaCierre              *string                  `gorm:"type:text"`
	UsuarioApertura         string                   `gorm:"type:varchar(120);not null"`
	UsuarioCierre           *string                  `gorm:"type:varchar(120)"`
	Estado                  EstadoSesion             `gorm:"type:varchar(20);not null;default:'abierta'"`
	TotalVentas             decimal.Decimal          `gorm:"type:decimal(12,2);not null;default:0"`
	TotalEfectivo           decimal.Decimal          `gorm:"type:decimal(12,2);not null;default:0"`
	TotalTarjeta            decimal.Decimal          `gorm:"type:decimal(12,2);not null;default:0"`
	TotalTransferencia      decimal.Decimal          `gorm:"type:decimal(12,2);not null;default:0"`
	EfectivoEsperado        *decimal.Decimal         `gorm:"type:decimal(12,2)"`
	Diferencia              *decimal.Decimal         `gorm:"type:decimal(12,2)"`
	ClasificacionDiferencia *ClasificacionDiferencia `gorm:"type:varchar(20)"`
	CreatedAt               time.Time                `gorm:"autoCreateTime"`
	UpdatedAt               time.Time                `gorm:"autoUpdateTime"`

	Movimientos []MovimientoEfectivo `gorm:"foreignKey:SesionCajaID"`
}

func (SesionCaja) TableName() string { return "sesiones_caja" }

func (s *SesionCaja) Abierta() bool { return s.Estado == SesionAbierta }

// AplicarMovimiento adds a manual cash movement to the running cash total.
func (s *SesionCaja) AplicarMovimiento(tipo TipoMovimiento, monto decimal.Decimal) {
	if tipo == MovimientoSalida {
		monto = monto.Neg()
	}
	s.TotalEfectivo = s.TotalEfectivo.Add(monto)
}

// AplicarVenta adds a settled order to the running totals. porMetodo holds
// the amount applied per payment method (cash net of change).
func (s *SesionCaja) AplicarVenta(total decimal.Decimal, porMetodo map[MetodoPago]decimal.Decimal) {
	s.TotalVentas = s.TotalVentas.Add(total)
	s.TotalEfectivo = s.TotalEfectivo.Add(porMetodo[MetodoEfectivo])
	s.TotalTarjeta = s.TotalTarjeta.Add(porMetodo[MetodoTarjeta])
	s.TotalTransferencia = s.TotalTransferencia.Add(porMetodo[MetodoTransferencia])
}

// EfectivoEsperadoActual is the cash the drawer should hold right now.
func (s *SesionCaja) EfectivoEsperadoActual() decimal.Decimal {
	return s.EfectivoApertura.Add(s.TotalEfectivo)
}

// MovimientoEfectivo is an immutable manual adjustment of the cash drawer.
// Monto is always positive; Tipo carries the sign.
type MovimientoEfectivo struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SesionCajaID uuid.UUID       `gorm:"type:uuid;index;not null"`
	Tipo         TipoMovimiento  `gorm:"type:varchar(10);not null"`
	Monto        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Motivo       string          `gorm:"not null"`
	Fecha        time.Time       `gorm:"not null"`
	Usuario      *string         `gorm:"type:varchar(120)"`
}

func (MovimientoEfectivo) TableName() string { return "movimientos_efectivo" }
