package model

// EstadoSesion: "abierta" | "cerrada". cerrada is terminal.
type EstadoSesion string

const (
	SesionAbierta EstadoSesion = "abierta"
	SesionCerrada EstadoSesion = "cerrada"
)

// EstadoOrden: "pendiente" | "pagada" | "cancelada". pagada and cancelada are terminal.
type EstadoOrden string

const (
	OrdenPendiente EstadoOrden = "pendiente"
	OrdenPagada    EstadoOrden = "pagada"
	OrdenCancelada EstadoOrden = "cancelada"
)

// MetodoPago is the method of a single payment or, for an order, the
// method(s) it was settled with. MetodoMixto only ever describes an order.
type MetodoPago string

const (
	MetodoEfectivo      MetodoPago = "efectivo"
	MetodoTarjeta       MetodoPago = "tarjeta"
	MetodoTransferencia MetodoPago = "transferencia"
	MetodoMixto         MetodoPago = "mixto"
)

// ValidoParaPago reports whether m can be used on an individual payment.
func (m MetodoPago) ValidoParaPago() bool {
	switch m {
	case MetodoEfectivo, MetodoTarjeta, MetodoTransferencia:
		return true
	}
	return false
}

// TipoMovimiento: "entrada" adds cash to the drawer, "salida" removes it.
type TipoMovimiento string

const (
	MovimientoEntrada TipoMovimiento = "entrada"
	MovimientoSalida  TipoMovimiento = "salida"
)

func (t TipoMovimiento) Valido() bool {
	return t == MovimientoEntrada || t == MovimientoSalida
}

// ClasificacionDiferencia grades a close-of-shift cash discrepancy.
type ClasificacionDiferencia string

const (
	DiferenciaNormal      ClasificacionDiferencia = "normal"
	DiferenciaAdvertencia ClasificacionDiferencia = "advertencia"
	DiferenciaCritica     ClasificacionDiferencia = "critico"
)
