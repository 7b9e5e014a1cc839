package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ItemOrdenRequest struct {
	MaterialCodigo string          `json:"material_codigo" validate:"required,max=64"`
	Descripcion    string          `json:"descripcion"     validate:"required"`
	Cantidad       decimal.Decimal `json:"cantidad"        validate:"min=0"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario" validate:"min=0"`
	Categoria      *string         `json:"categoria"`
	AlmacenID      *string         `json:"almacen_id"      validate:"omitempty,max=64"`
}

// ClienteOrden holds the optional customer reference of an order.
type ClienteOrden struct {
	ClienteID       *string `json:"cliente_id"       validate:"omitempty,max=64"`
	ClienteNombre   *string `json:"cliente_nombre"`
	ClienteCI       *string `json:"cliente_ci"       validate:"omitempty,max=32"`
	ClienteTelefono *string `json:"cliente_telefono" validate:"omitempty,max=32"`
}

// CrearOrdenRequest: a nil ImpuestoPorcentaje means the default 16%.
type CrearOrdenRequest struct {
	SesionCajaID string `json:"sesion_caja_id" validate:"required,uuid"`
	TiendaID     string `json:"tienda_id"      validate:"required,max=64"`
	ClienteOrden
	Items               []ItemOrdenRequest `json:"items"                validate:"required,min=1,dive"`
	ImpuestoPorcentaje  *decimal.Decimal   `json:"impuesto_porcentaje"  validate:"omitempty,min=0,max=100"`
	DescuentoPorcentaje decimal.Decimal    `json:"descuento_porcentaje" validate:"min=0,max=100"`
	Notas               *string            `json:"notas"`
}

// ActualizarOrdenRequest replaces items, rates and customer data of a
// pending order. Nil fields are left unchanged.
type ActualizarOrdenRequest struct {
	ClienteOrden
	Items               []ItemOrdenRequest `json:"items"                validate:"omitempty,min=1,dive"`
	ImpuestoPorcentaje  *decimal.Decimal   `json:"impuesto_porcentaje"  validate:"omitempty,min=0,max=100"`
	DescuentoPorcentaje *decimal.Decimal   `json:"descuento_porcentaje" validate:"omitempty,min=0,max=100"`
	Notas               *string            `json:"notas"`
}

type PagoDetalleRequest struct {
	Metodo        string           `json:"metodo"         validate:"required,oneof=efectivo tarjeta transferencia"`
	Monto         decimal.Decimal  `json:"monto"          validate:"gt=0"`
	MontoRecibido *decimal.Decimal `json:"monto_recibido" validate:"omitempty,min=0"`
	Referencia    *string          `json:"referencia"     validate:"omitempty,max=120"`
}

// PagarOrdenRequest: MetodoPago, when sent, must agree with the methods in
// Pagos (a single method, or mixto).
type PagarOrdenRequest struct {
	MetodoPago string               `json:"metodo_pago" validate:"omitempty,oneof=efectivo tarjeta transferencia mixto"`
	AlmacenID  string               `json:"almacen_id"  validate:"required,max=64"`
	Pagos      []PagoDetalleRequest `json:"pagos"       validate:"required,min=1,dive"`
}

// OrdenFilter is bound from the query string of GET /api/caja/ordenes.
type OrdenFilter struct {
	SesionCajaID string `form:"sesion_caja_id" validate:"omitempty,uuid"`
	TiendaID     string `form:"tienda_id"`
	Estado       string `form:"estado"         validate:"omitempty,oneof=pendiente pagada cancelada"`
	FechaDesde   string `form:"fecha_desde"    validate:"omitempty,datetime=2006-01-02"`
	FechaHasta   string `form:"fecha_hasta"    validate:"omitempty,datetime=2006-01-02"`
	Paginacion
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemOrdenResponse struct {
	MaterialCodigo string          `json:"material_codigo"`
	Descripcion    string          `json:"descripcion"`
	Cantidad       decimal.Decimal `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Categoria      *string         `json:"categoria"`
	AlmacenID      *string         `json:"almacen_id"`
}

type PagoResponse struct {
	ID            string           `json:"id"`
	OrdenID       string           `json:"orden_id"`
	Metodo        string           `json:"metodo"`
	Monto         decimal.Decimal  `json:"monto"`
	MontoRecibido *decimal.Decimal `json:"monto_recibido"`
	Cambio        *decimal.Decimal `json:"cambio"`
	Referencia    *string          `json:"referencia"`
	CreatedAt     string           `json:"created_at"`
}

type OrdenResponse struct {
	ID           string `json:"id"`
	NumeroOrden  string `json:"numero_orden"`
	SesionCajaID string `json:"sesion_caja_id"`
	TiendaID     string `json:"tienda_id"`
	ClienteOrden
	FechaCreacion         string              `json:"fecha_creacion"`
	FechaPago             *string             `json:"fecha_pago"`
	Items                 []ItemOrdenResponse `json:"items"`
	Subtotal              decimal.Decimal     `json:"subtotal"`
	ImpuestoPorcentaje    decimal.Decimal     `json:"impuesto_porcentaje"`
	ImpuestoMonto         decimal.Decimal     `json:"impuesto_monto"`
	DescuentoPorcentaje   decimal.Decimal     `json:"descuento_porcentaje"`
	DescuentoMonto        decimal.Decimal     `json:"descuento_monto"`
	Total                 decimal.Decimal     `json:"total"`
	Estado                string              `json:"estado"`
	MetodoPago            *string             `json:"metodo_pago"`
	Pagos                 []PagoResponse      `json:"pagos"`
	AlmacenID             *string             `json:"almacen_id"`
	Notas                 *string             `json:"notas"`
	InventarioPendiente   bool                `json:"inventario_pendiente"`
	InventarioError       *string             `json:"inventario_error"`
	MovimientosInventario []string            `json:"movimientos_inventario"`
	CreatedAt             string              `json:"created_at"`
	UpdatedAt             string              `json:"updated_at"`
}

// PagarOrdenResponse: MovimientosInventario is empty when the inventory
// system could not be reached; the decrement is then retried in background.
type PagarOrdenResponse struct {
	Success               bool            `json:"success"`
	Orden                 OrdenResponse   `json:"orden"`
	Cambio                decimal.Decimal `json:"cambio"`
	MovimientosInventario []string        `json:"movimientos_inventario"`
}
