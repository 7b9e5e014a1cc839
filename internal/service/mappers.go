package service

import (
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/model"
)

func fecha(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func fechaPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fecha(*t)
	return &s
}

func movimientoResponse(m *model.MovimientoEfectivo) dto.MovimientoEfectivoResponse {
	return dto.MovimientoEfectivoResponse{
		ID:           m.ID.String(),
		SesionCajaID: m.SesionCajaID.String(),
		Tipo:         string(m.Tipo),
		Monto:        m.Monto,
		Motivo:       m.Motivo,
		Fecha:        fecha(m.Fecha),
		Usuario:      m.Usuario,
	}
}

func sesionResponse(s *model.SesionCaja) *dto.SesionCajaResponse {
	movs := make([]dto.MovimientoEfectivoResponse, 0, len(s.Movimientos))
	for i := range s.Movimientos {
		movs = append(movs, movimientoResponse(&s.Movimientos[i]))
	}
	return &dto.SesionCajaResponse{
		ID:                  s.ID.String(),
		TiendaID:            s.TiendaID,
		NumeroSesion:        s.NumeroSesion,
		FechaApertura:       fecha(s.FechaApertura),
		FechaCierre:         fechaPtr(s.FechaCierre),
		EfectivoApertura:    s.EfectivoApertura,
		EfectivoCierre:      s.EfectivoCierre,
		NotaApertura:        s.NotaApertura,
		NotaCierre:          s.NotaCierre,
		UsuarioApertura:     s.UsuarioApertura,
		UsuarioCierre:       s.UsuarioCierre,
		Estado:              string(s.Estado),
		TotalVentas:         s.TotalVentas,
		TotalEfectivo:       s.TotalEfectivo,
		TotalTarjeta:        s.TotalTarjeta,
		TotalTransferencia:  s.TotalTransferencia,
		MovimientosEfectivo: movs,
		CreatedAt:           fecha(s.CreatedAt),
		UpdatedAt:           fecha(s.UpdatedAt),
	}
}

func ordenResponse(o *model.OrdenCompra) *dto.OrdenResponse {
	items := make([]dto.ItemOrdenResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, dto.ItemOrdenResponse{
			MaterialCodigo: it.MaterialCodigo,
			Descripcion:    it.Descripcion,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			Subtotal:       it.Subtotal,
			Categoria:      it.Categoria,
			AlmacenID:      it.AlmacenID,
		})
	}
	pagos := make([]dto.PagoResponse, 0, len(o.Pagos))
	for _, p := range o.Pagos {
		pagos = append(pagos, dto.PagoResponse{
			ID:            p.ID.String(),
			OrdenID:       p.OrdenID.String(),
			Metodo:        string(p.Metodo),
			Monto:         p.Monto,
			MontoRecibido: p.MontoRecibido,
			Cambio:        p.Cambio,
			Referencia:    p.Referencia,
			CreatedAt:     fecha(p.CreatedAt),
		})
	}
	var metodo *string
	if o.MetodoPago != nil {
		m := string(*o.MetodoPago)
		metodo = &m
	}
	movs := []string(o.MovimientosInventario)
	if movs == nil {
		movs = []string{}
	}
	return &dto.OrdenResponse{
		ID:           o.ID.String(),
		NumeroOrden:  o.NumeroOrden,
		SesionCajaID: o.SesionCajaID.String(),
		TiendaID:     o.TiendaID,
		ClienteOrden: dto.ClienteOrden{
			ClienteID:       o.ClienteID,
			ClienteNombre:   o.ClienteNombre,
			ClienteCI:       o.ClienteCI,
			ClienteTelefono: o.ClienteTelefono,
		},
		FechaCreacion:         fecha(o.FechaCreacion),
		FechaPago:             fechaPtr(o.FechaPago),
		Items:                 items,
		Subtotal:              o.Subtotal,
		ImpuestoPorcentaje:    o.ImpuestoPorcentaje,
		ImpuestoMonto:         o.ImpuestoMonto,
		DescuentoPorcentaje:   o.DescuentoPorcentaje,
		DescuentoMonto:        o.DescuentoMonto,
		Total:                 o.Total,
		Estado:                string(o.Estado),
		MetodoPago:            metodo,
		Pagos:                 pagos,
		AlmacenID:             o.AlmacenID,
		Notas:                 o.Notas,
		InventarioPendiente:   o.InventarioPendiente,
		InventarioError:       o.InventarioError,
		MovimientosInventario: movs,
		CreatedAt:             fecha(o.CreatedAt),
		UpdatedAt:             fecha(o.UpdatedAt),
	}
}
