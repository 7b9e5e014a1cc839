package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cajapos/internal/apierror"
	"cajapos/internal/calculo"
	"cajapos/internal/dto"
	"cajapos/internal/infra"
	"cajapos/internal/model"
	"cajapos/internal/realtime"
	"cajapos/internal/repository"
	"cajapos/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrdenService covers the order lifecycle (pendiente → pagada | cancelada)
// and the payment processor.
type OrdenService interface {
	CrearOrden(ctx context.Context, usuario string, req dto.CrearOrdenRequest) (*dto.OrdenResponse, error)
	ObtenerOrden(ctx context.Context, id uuid.UUID) (*dto.OrdenResponse, error)
	ListarOrdenes(ctx context.Context, filter dto.OrdenFilter) (*dto.Page[dto.OrdenResponse], error)
	ActualizarOrden(ctx context.Context, id uuid.UUID, req dto.ActualizarOrdenRequest) (*dto.OrdenResponse, error)
	CancelarOrden(ctx context.Context, id uuid.UUID) (*dto.OrdenResponse, error)
	PagarOrden(ctx context.Context, id uuid.UUID, req dto.PagarOrdenRequest) (*dto.PagarOrdenResponse, error)
}

type ordenService struct {
	repo       repository.OrdenRepository
	cajaRepo   repository.CajaRepository
	inventario InventarioNotifier
	efectos
	now func() time.Time
}

func NewOrdenService(
	repo repository.OrdenRepository,
	cajaRepo repository.CajaRepository,
	inventario InventarioNotifier,
	queue JobQueue,
	events EventPublisher,
	cache SesionCache,
) OrdenService {
	return &ordenService{
		repo:       repo,
		cajaRepo:   cajaRepo,
		inventario: inventario,
		efectos:    efectos{events: events, cache: cache, queue: queue},
		now:        time.Now,
	}
}

// ── CrearOrden ────────────────────────────────────────────────────────────────

func (s *ordenService) CrearOrden(ctx context.Context, usuario string, req dto.CrearOrdenRequest) (*dto.OrdenResponse, error) {
	sesionID, err := uuid.Parse(req.SesionCajaID)
	if err != nil {
		return nil, apierror.Validation("sesion_caja_id inválido")
	}
	impuesto := calculo.ImpuestoPorDefecto
	if req.ImpuestoPorcentaje != nil {
		impuesto = *req.ImpuestoPorcentaje
	}
	builder, err := construirOrden(req.Items, impuesto, req.DescuentoPorcentaje)
	if err != nil {
		return nil, err
	}

	sesion, err := s.cajaRepo.FindSesionByID(ctx, sesionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFound("sesión de caja %s no encontrada", sesionID)
		}
		return nil, fmt.Errorf("buscar sesión: %w", err)
	}
	if !sesion.Abierta() {
		return nil, apierror.State("la sesión %s está cerrada", sesion.NumeroSesion)
	}
	if sesion.TiendaID != req.TiendaID {
		return nil, apierror.Validation("la sesión %s no pertenece a la tienda %s", sesion.NumeroSesion, req.TiendaID)
	}

	orden := &model.OrdenCompra{
		SesionCajaID:    sesionID,
		TiendaID:        req.TiendaID,
		ClienteID:       req.ClienteID,
		ClienteNombre:   req.ClienteNombre,
		ClienteCI:       req.ClienteCI,
		ClienteTelefono: req.ClienteTelefono,
		FechaCreacion:   s.now(),
		Estado:          model.OrdenPendiente,
		Notas:           req.Notas,
		UsuarioCreacion: usuario,
	}
	aplicarTotales(orden, builder)

	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		n, err := s.repo.NextNumeroOrden(ctx, tx)
		if err != nil {
			return err
		}
		orden.NumeroOrden = fmt.Sprintf("ORD-%06d", n)
		return s.repo.Create(ctx, tx, orden)
	})
	if err != nil {
		return nil, fmt.Errorf("crear orden: %w", err)
	}

	log.Info().Str("orden_id", orden.ID.String()).Str("numero_orden", orden.NumeroOrden).
		Str("sesion_id", sesionID.String()).Str("total", orden.Total.StringFixed(2)).Msg("orden creada")

	resp := ordenResponse(orden)
	s.publicar(realtime.OrdenCreada, orden.TiendaID, resp)
	return resp, nil
}

// ── Lecturas ──────────────────────────────────────────────────────────────────

func (s *ordenService) ObtenerOrden(ctx context.Context, id uuid.UUID) (*dto.OrdenResponse, error) {
	o, err := s.buscarOrden(ctx, id)
	if err != nil {
		return nil, err
	}
	return ordenResponse(o), nil
}

func (s *ordenService) ListarOrdenes(ctx context.Context, filter dto.OrdenFilter) (*dto.Page[dto.OrdenResponse], error) {
	filter.Normalizar()
	ordenes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listar órdenes: %w", err)
	}
	items := make([]dto.OrdenResponse, 0, len(ordenes))
	for i := range ordenes {
		items = append(items, *ordenResponse(&ordenes[i]))
	}
	return &dto.Page[dto.OrdenResponse]{Items: items, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// ── ActualizarOrden ───────────────────────────────────────────────────────────

func (s *ordenService) ActualizarOrden(ctx context.Context, id uuid.UUID, req dto.ActualizarOrdenRequest) (*dto.OrdenResponse, error) {
	var orden *model.OrdenCompra
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		orden, err = s.bloquearOrden(ctx, tx, id)
		if err != nil {
			return err
		}
		if orden.Estado != model.OrdenPendiente {
			return apierror.State("la orden %s está %s y no puede modificarse", orden.NumeroOrden, orden.Estado)
		}

		items := req.Items
		if items == nil {
			items = itemsRequest(orden.Items)
		}
		impuesto := orden.ImpuestoPorcentaje
		if req.ImpuestoPorcentaje != nil {
			impuesto = *req.ImpuestoPorcentaje
		}
		descuento := orden.DescuentoPorcentaje
		if req.DescuentoPorcentaje != nil {
			descuento = *req.DescuentoPorcentaje
		}
		builder, err := construirOrden(items, impuesto, descuento)
		if err != nil {
			return err
		}
		aplicarTotales(orden, builder)

		if req.ClienteID != nil {
			orden.ClienteID = req.ClienteID
		}
		if req.ClienteNombre != nil {
			orden.ClienteNombre = req.ClienteNombre
		}
		if req.ClienteCI != nil {
			orden.ClienteCI = req.ClienteCI
		}
		if req.ClienteTelefono != nil {
			orden.ClienteTelefono = req.ClienteTelefono
		}
		if req.Notas != nil {
			orden.Notas = req.Notas
		}

		if req.Items != nil {
			if err := s.repo.ReplaceItems(ctx, tx, orden.ID, orden.Items); err != nil {
				return err
			}
		}
		return s.repo.Update(ctx, tx, orden)
	})
	if err != nil {
		return nil, wrapInterno("actualizar orden", err)
	}

	resp := ordenResponse(orden)
	s.publicar(realtime.OrdenActualizada, orden.TiendaID, resp)
	return resp, nil
}

// ── CancelarOrden ─────────────────────────────────────────────────────────────

func (s *ordenService) CancelarOrden(ctx context.Context, id uuid.UUID) (*dto.OrdenResponse, error) {
	var orden *model.OrdenCompra
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		orden, err = s.bloquearOrden(ctx, tx, id)
		if err != nil {
			return err
		}
		if orden.Estado != model.OrdenPendiente {
			return apierror.State("la orden %s está %s y no puede cancelarse", orden.NumeroOrden, orden.Estado)
		}
		orden.Estado = model.OrdenCancelada
		return s.repo.Update(ctx, tx, orden)
	})
	if err != nil {
		return nil, wrapInterno("cancelar orden", err)
	}

	log.Info().Str("orden_id", id.String()).Str("numero_orden", orden.NumeroOrden).Msg("orden cancelada")

	resp := ordenResponse(orden)
	s.publicar(realtime.OrdenCancelada, orden.TiendaID, resp)
	return resp, nil
}

// ── PagarOrden ────────────────────────────────────────────────────────────────
// Settles a pending order against an open session. Lock order is always
// order first, then session. The inventory decrement happens after commit
// and never undoes the payment.

func (s *ordenService) PagarOrden(ctx context.Context, id uuid.UUID, req dto.PagarOrdenRequest) (*dto.PagarOrdenResponse, error) {
	detalles := make([]calculo.PagoDetalle, 0, len(req.Pagos))
	for _, p := range req.Pagos {
		detalles = append(detalles, calculo.PagoDetalle{
			Metodo:        model.MetodoPago(p.Metodo),
			Monto:         p.Monto,
			MontoRecibido: p.MontoRecibido,
			Referencia:    p.Referencia,
		})
	}
	// rules independent of the total are checked before any I/O
	if len(detalles) == 0 {
		return nil, apierror.Validation("se requiere al menos un pago")
	}
	for _, d := range detalles {
		if err := calculo.ValidarPago(d); err != nil {
			return nil, err
		}
	}
	almacen := strings.TrimSpace(req.AlmacenID)
	if almacen == "" {
		return nil, apierror.Validation("almacen_id es obligatorio")
	}

	var (
		orden *model.OrdenCompra
		liq   *calculo.Liquidacion
	)
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		orden, err = s.bloquearOrden(ctx, tx, id)
		if err != nil {
			return err
		}
		if orden.Estado != model.OrdenPendiente {
			return apierror.State("la orden %s está %s", orden.NumeroOrden, orden.Estado)
		}
		sesion, err := s.cajaRepo.FindSesionForUpdate(ctx, tx, orden.SesionCajaID)
		if err != nil {
			if repository.IsNotFound(err) {
				return apierror.NotFound("sesión de caja %s no encontrada", orden.SesionCajaID)
			}
			return err
		}
		if !sesion.Abierta() {
			return apierror.State("la sesión %s está cerrada", sesion.NumeroSesion)
		}

		liq, err = calculo.Liquidar(orden.Total, detalles)
		if err != nil {
			return err
		}
		if req.MetodoPago != "" && model.MetodoPago(req.MetodoPago) != liq.Metodo {
			return apierror.Validation("metodo_pago %s no coincide con los pagos (%s)", req.MetodoPago, liq.Metodo)
		}

		pagos := make([]model.Pago, 0, len(liq.Pagos))
		for _, p := range liq.Pagos {
			pagos = append(pagos, model.Pago{
				OrdenID:       orden.ID,
				Metodo:        p.Metodo,
				Monto:         p.Monto,
				MontoRecibido: p.MontoRecibido,
				Cambio:        p.Cambio,
				Referencia:    p.Referencia,
			})
		}
		if err := s.repo.CreatePagos(ctx, tx, pagos); err != nil {
			return err
		}

		pagada := s.now()
		metodo := liq.Metodo
		orden.Estado = model.OrdenPagada
		orden.FechaPago = &pagada
		orden.MetodoPago = &metodo
		orden.AlmacenID = &almacen
		orden.InventarioPendiente = true
		orden.Pagos = pagos
		if err := s.repo.Update(ctx, tx, orden); err != nil {
			return err
		}

		sesion.AplicarVenta(orden.Total, liq.PorMetodo)
		return s.cajaRepo.UpdateSesion(ctx, tx, sesion)
	})
	if err != nil {
		return nil, wrapInterno("pagar orden", err)
	}

	// drop the cached session before the inventory round trip
	s.invalidar(ctx, orden.TiendaID)
	log.Info().Str("orden_id", id.String()).Str("numero_orden", orden.NumeroOrden).
		Str("metodo", string(liq.Metodo)).Str("total", orden.Total.StringFixed(2)).Msg("orden pagada")

	movimientos := s.descontarInventario(ctx, orden)

	resp := &dto.PagarOrdenResponse{
		Success:               true,
		Orden:                 *ordenResponse(orden),
		Cambio:                liq.Cambio,
		MovimientosInventario: movimientos,
	}
	s.publicar(realtime.OrdenPagada, orden.TiendaID, resp)
	return resp, nil
}

// descontarInventario notifies the inventory system synchronously. On a
// transient failure the order stays inventario_pendiente and a retry job is
// queued; a rejection is recorded on the order instead.
func (s *ordenService) descontarInventario(ctx context.Context, orden *model.OrdenCompra) []string {
	logger := log.With().Str("orden_id", orden.ID.String()).Logger()

	if s.inventario != nil {
		movs, err := s.inventario.Descontar(ctx, infra.DescuentoDesdeOrden(orden))
		if err == nil {
			if err := s.repo.MarcarInventario(ctx, orden.ID, movs); err != nil {
				// the worker re-checks inventario_pendiente, a duplicate job is harmless
				logger.Error().Err(err).Msg("inventario: no se pudo marcar la orden")
			} else {
				orden.InventarioPendiente = false
				orden.MovimientosInventario = model.StringList(movs)
				if movs == nil {
					movs = []string{}
				}
				return movs
			}
		} else if infra.IsRechazo(err) {
			// retrying cannot succeed; the order waits for manual reconciliation
			logger.Error().Err(err).Msg("inventario: descuento rechazado")
			if merr := s.repo.MarcarRechazoInventario(ctx, orden.ID, err.Error()); merr != nil {
				logger.Error().Err(merr).Msg("inventario: no se pudo registrar el rechazo")
			} else {
				motivo := err.Error()
				orden.InventarioError = &motivo
				return []string{}
			}
		} else {
			logger.Warn().Err(err).Msg("inventario: descuento fallido, se reintentará en segundo plano")
		}
	}

	if s.queue != nil {
		if err := s.queue.EnqueueInventario(ctx, worker.InventarioJob{OrdenID: orden.ID.String()}); err != nil {
			// the reconciliation sweep picks the order up later
			logger.Error().Err(err).Msg("inventario: no se pudo encolar el reintento")
		}
	}
	return []string{}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *ordenService) buscarOrden(ctx context.Context, id uuid.UUID) (*model.OrdenCompra, error) {
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFound("orden %s no encontrada", id)
		}
		return nil, fmt.Errorf("buscar orden: %w", err)
	}
	return o, nil
}

func (s *ordenService) bloquearOrden(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.OrdenCompra, error) {
	o, err := s.repo.FindForUpdate(ctx, tx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFound("orden %s no encontrada", id)
		}
		return nil, err
	}
	return o, nil
}

func construirOrden(items []dto.ItemOrdenRequest, impuesto, descuento decimal.Decimal) (*calculo.Orden, error) {
	b := calculo.NuevaOrden()
	for _, it := range items {
		err := b.AgregarItem(calculo.Linea{
			MaterialCodigo: strings.TrimSpace(it.MaterialCodigo),
			Descripcion:    it.Descripcion,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			Categoria:      it.Categoria,
			AlmacenID:      it.AlmacenID,
		})
		if err != nil {
			return nil, err
		}
	}
	if err := b.FijarImpuesto(impuesto); err != nil {
		return nil, err
	}
	if err := b.FijarDescuento(descuento); err != nil {
		return nil, err
	}
	if err := b.Validar(); err != nil {
		return nil, err
	}
	return b, nil
}

// aplicarTotales copies the builder's lines and totals onto the order.
func aplicarTotales(o *model.OrdenCompra, b *calculo.Orden) {
	lineas := b.Lineas()
	o.Items = make([]model.ItemOrden, 0, len(lineas))
	for _, l := range lineas {
		o.Items = append(o.Items, model.ItemOrden{
			OrdenID:        o.ID,
			MaterialCodigo: l.MaterialCodigo,
			Descripcion:    l.Descripcion,
			Cantidad:       l.Cantidad,
			PrecioUnitario: l.PrecioUnitario,
			Subtotal:       l.Subtotal(),
			Categoria:      l.Categoria,
			AlmacenID:      l.AlmacenID,
		})
	}
	t := b.Totales()
	o.Subtotal = t.Subtotal
	o.DescuentoPorcentaje = b.DescuentoPorcentaje()
	o.DescuentoMonto = t.DescuentoMonto
	o.ImpuestoPorcentaje = b.ImpuestoPorcentaje()
	o.ImpuestoMonto = t.ImpuestoMonto
	o.Total = t.Total
}

func itemsRequest(items []model.ItemOrden) []dto.ItemOrdenRequest {
	out := make([]dto.ItemOrdenRequest, 0, len(items))
	for _, it := range items {
		out = append(out, dto.ItemOrdenRequest{
			MaterialCodigo: it.MaterialCodigo,
			Descripcion:    it.Descripcion,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			Categoria:      it.Categoria,
			AlmacenID:      it.AlmacenID,
		})
	}
	return out
}
