package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirSesionRequest struct {
	TiendaID         string          `json:"tienda_id"         validate:"required,max=64"`
	EfectivoApertura decimal.Decimal `json:"efectivo_apertura" validate:"min=0"`
	NotaApertura     *string         `json:"nota_apertura"`
}

type CerrarSesionRequest struct {
	EfectivoCierre decimal.Decimal `json:"efectivo_cierre" validate:"min=0"`
	NotaCierre     *string         `json:"nota_cierre"`
}

// MovimientoEfectivoRequest: monto is re-checked by the service so non-HTTP
// callers get the same ValidationError.
type MovimientoEfectivoRequest struct {
	Tipo   string          `json:"tipo"   validate:"required,oneof=entrada salida"`
	Monto  decimal.Decimal `json:"monto"  validate:"gt=0"`
	Motivo string          `json:"motivo" validate:"required,min=3"`
}

// SesionFilter is bound from the query string of GET /api/caja/sesiones.
type SesionFilter struct {
	TiendaID   string `form:"tienda_id"`
	Estado     string `form:"estado"      validate:"omitempty,oneof=abierta cerrada"`
	FechaDesde string `form:"fecha_desde" validate:"omitempty,datetime=2006-01-02"`
	FechaHasta string `form:"fecha_hasta" validate:"omitempty,datetime=2006-01-02"`
	Paginacion
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MovimientoEfectivoResponse struct {
	ID           string          `json:"id"`
	SesionCajaID string          `json:"sesion_caja_id"`
	Tipo         string          `json:"tipo"`
	Monto        decimal.Decimal `json:"monto"`
	Motivo       string          `json:"motivo"`
	Fecha        string          `json:"fecha"`
	Usuario      *string         `json:"usuario"`
}

type SesionCajaResponse struct {
	ID                  string                       `json:"id"`
	TiendaID            string                       `json:"tienda_id"`
	NumeroSesion        string                       `json:"numero_sesion"`
	FechaApertura       string                       `json:"fecha_apertura"`
	FechaCierre         *string                      `json:"fecha_cierre"`
	EfectivoApertura    decimal.Decimal              `json:"efectivo_apertura"`
	EfectivoCierre      *decimal.Decimal             `json:"efectivo_cierre"`
	NotaApertura        *string                      `json:"nota_apertura"`
	NotaCierre          *string                      `json:"nota_cierre"`
	UsuarioApertura     string                       `json:"usuario_apertura"`
	UsuarioCierre       *string                      `json:"usuario_cierre"`
	Estado              string                       `json:"estado"`
	TotalVentas         decimal.Decimal              `json:"total_ventas"`
	TotalEfectivo       decimal.Decimal              `json:"total_efectivo"`
	TotalTarjeta        decimal.Decimal              `json:"total_tarjeta"`
	TotalTransferencia  decimal.Decimal              `json:"total_transferencia"`
	MovimientosEfectivo []MovimientoEfectivoResponse `json:"movimientos_efectivo"`
	CreatedAt           string                       `json:"created_at"`
	UpdatedAt           string                       `json:"updated_at"`
}

type DiferenciaResponse struct {
	Monto         decimal.Decimal `json:"monto"`
	Porcentaje    decimal.Decimal `json:"porcentaje"`
	Clasificacion string          `json:"clasificacion"` // normal | advertencia | critico
}

// ReporteSesionResponse is the reconciliation of a session. Before close
// it reports the live expectation and Declarado/Diferencia are null.
type ReporteSesionResponse struct {
	Sesion            SesionCajaResponse  `json:"sesion"`
	EfectivoEsperado  decimal.Decimal     `json:"efectivo_esperado"`
	EfectivoDeclarado *decimal.Decimal    `json:"efectivo_declarado"`
	Diferencia        *DiferenciaResponse `json:"diferencia"`
	TotalEntradas     decimal.Decimal     `json:"total_entradas"`
	TotalSalidas      decimal.Decimal     `json:"total_salidas"`
	OrdenesPagadas    int64               `json:"ordenes_pagadas"`
	OrdenesPendientes int64               `json:"ordenes_pendientes"`
}

// CierreSesionResponse is returned by POST /sesiones/:id/cerrar.
type CierreSesionResponse struct {
	Sesion     SesionCajaResponse `json:"sesion"`
	Diferencia DiferenciaResponse `json:"diferencia"`
}
