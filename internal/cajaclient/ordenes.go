package cajaclient

import (
	"context"
	"net/http"
	"net/url"

	"cajapos/internal/apierror"
	"cajapos/internal/calculo"
	"cajapos/internal/dto"
	"cajapos/internal/model"

	"github.com/shopspring/decimal"
)

// Borrador prices an order request locally with the same rules the server
// applies, so a UI can show totals before submitting.
func Borrador(items []dto.ItemOrdenRequest, impuesto *decimal.Decimal, descuento decimal.Decimal) (calculo.Totales, error) {
	b := calculo.NuevaOrden()
	for _, it := range items {
		if err := b.AgregarItem(calculo.Linea{
			MaterialCodigo: it.MaterialCodigo,
			Descripcion:    it.Descripcion,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
		}); err != nil {
			return calculo.Totales{}, err
		}
	}
	tasa := calculo.ImpuestoPorDefecto
	if impuesto != nil {
		tasa = *impuesto
	}
	if err := b.FijarImpuesto(tasa); err != nil {
		return calculo.Totales{}, err
	}
	if err := b.FijarDescuento(descuento); err != nil {
		return calculo.Totales{}, err
	}
	if err := b.Validar(); err != nil {
		return calculo.Totales{}, err
	}
	return b.Totales(), nil
}

func (s *Sesion) CrearOrden(ctx context.Context, req dto.CrearOrdenRequest) (*dto.OrdenResponse, error) {
	if _, err := Borrador(req.Items, req.ImpuestoPorcentaje, req.DescuentoPorcentaje); err != nil {
		return nil, err
	}
	var out dto.OrdenResponse
	if err := s.do(ctx, http.MethodPost, "/ordenes", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Sesion) ObtenerOrden(ctx context.Context, id string) (*dto.OrdenResponse, error) {
	var out dto.OrdenResponse
	if err := s.do(ctx, http.MethodGet, pathID("/ordenes/%s", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Sesion) ListarOrdenes(ctx context.Context, f dto.OrdenFilter) (*dto.Page[dto.OrdenResponse], error) {
	q := url.Values{}
	setSi(q, "sesion_caja_id", f.SesionCajaID)
	setSi(q, "tienda_id", f.TiendaID)
	setSi(q, "estado", f.Estado)
	setSi(q, "fecha_desde", f.FechaDesde)
	setSi(q, "fecha_hasta", f.FechaHasta)
	paginacion(q, f.Paginacion)

	var out dto.Page[dto.OrdenResponse]
	if err := s.do(ctx, http.MethodGet, "/ordenes", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Sesion) ActualizarOrden(ctx context.Context, id string, req dto.ActualizarOrdenRequest) (*dto.OrdenResponse, error) {
	if req.Items != nil {
		desc := decimal.Zero
		if req.DescuentoPorcentaje != nil {
			desc = *req.DescuentoPorcentaje
		}
		if _, err := Borrador(req.Items, req.ImpuestoPorcentaje, desc); err != nil {
			return nil, err
		}
	}
	var out dto.OrdenResponse
	if err := s.do(ctx, http.MethodPut, pathID("/ordenes/%s", id), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Sesion) CancelarOrden(ctx context.Context, id string) (*dto.OrdenResponse, error) {
	var out dto.OrdenResponse
	if err := s.do(ctx, http.MethodDelete, pathID("/ordenes/%s", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PagarOrden checks each payment locally; the total is only known to the
// server, so a sum mismatch is reported by it.
func (s *Sesion) PagarOrden(ctx context.Context, id string, req dto.PagarOrdenRequest) (*dto.PagarOrdenResponse, error) {
	if len(req.Pagos) == 0 {
		return nil, apierror.Validation("se requiere al menos un pago")
	}
	for _, p := range req.Pagos {
		if err := calculo.ValidarPago(calculo.PagoDetalle{
			Metodo:        model.MetodoPago(p.Metodo),
			Monto:         p.Monto,
			MontoRecibido: p.MontoRecibido,
		}); err != nil {
			return nil, err
		}
	}
	var out dto.PagarOrdenResponse
	if err := s.do(ctx, http.MethodPost, pathID("/ordenes/%s/pagar", id), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PagarConTotal is PagarOrden with the sum checked against a known total.
func (s *Sesion) PagarConTotal(ctx context.Context, id string, total decimal.Decimal, req dto.PagarOrdenRequest) (*dto.PagarOrdenResponse, error) {
	detalles := make([]calculo.PagoDetalle, 0, len(req.Pagos))
	for _, p := range req.Pagos {
		detalles = append(detalles, calculo.PagoDetalle{Metodo: model.MetodoPago(p.Metodo), Monto: p.Monto, MontoRecibido: p.MontoRecibido})
	}
	if _, err := calculo.Liquidar(total, detalles); err != nil {
		return nil, err
	}
	return s.PagarOrden(ctx, id, req)
}
