package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cajapos/internal/apierror"
	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/realtime"
	"cajapos/internal/repository"
	"cajapos/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CajaService manages the cash session lifecycle (abierta → cerrada) and
// the append-only ledger of manual cash movements.
type CajaService interface {
	AbrirSesion(ctx context.Context, usuario string, req dto.AbrirSesionRequest) (*dto.SesionCajaResponse, error)
	ObtenerSesion(ctx context.Context, id uuid.UUID) (*dto.SesionCajaResponse, error)
	ListarSesiones(ctx context.Context, filter dto.SesionFilter) (*dto.Page[dto.SesionCajaResponse], error)
	// SesionActiva returns apierror.ErrNotFound when the store has no open session.
	SesionActiva(ctx context.Context, tiendaID string) (*dto.SesionCajaResponse, error)
	CerrarSesion(ctx context.Context, usuario string, id uuid.UUID, req dto.CerrarSesionRequest) (*dto.CierreSesionResponse, error)
	RegistrarMovimiento(ctx context.Context, usuario string, id uuid.UUID, req dto.MovimientoEfectivoRequest) (*dto.MovimientoEfectivoResponse, error)
	ListarMovimientos(ctx context.Context, id uuid.UUID) ([]dto.MovimientoEfectivoResponse, error)
	ObtenerReporte(ctx context.Context, id uuid.UUID) (*dto.ReporteSesionResponse, error)
}

type cajaService struct {
	repo    repository.CajaRepository
	ordenes repository.OrdenRepository
	efectos
	// notifyEmail receives the report of closes with a non-normal difference.
	notifyEmail string
	now         func() time.Time
}

func NewCajaService(
	repo repository.CajaRepository,
	ordenes repository.OrdenRepository,
	cache SesionCache,
	events EventPublisher,
	queue JobQueue,
	notifyEmail string,
) CajaService {
	return &cajaService{
		repo:        repo,
		ordenes:     ordenes,
		efectos:     efectos{events: events, cache: cache, queue: queue},
		notifyEmail: notifyEmail,
		now:         time.Now,
	}
}

// ── AbrirSesion ───────────────────────────────────────────────────────────────

func (s *cajaService) AbrirSesion(ctx context.Context, usuario string, req dto.AbrirSesionRequest) (*dto.SesionCajaResponse, error) {
	tiendaID := strings.TrimSpace(req.TiendaID)
	if tiendaID == "" {
		return nil, apierror.Validation("tienda_id es obligatorio")
	}
	if req.EfectivoApertura.IsNegative() {
		return nil, apierror.Validation("efectivo_apertura no puede ser negativo")
	}

	// Guard: one open session per store. The partial unique index catches
	// the race between two concurrent opens.
	existing, err := s.repo.FindSesionAbiertaPorTienda(ctx, tiendaID)
	switch {
	case err == nil && existing != nil:
		return nil, errSesionDuplicada(tiendaID)
	case err != nil && !repository.IsNotFound(err):
		return nil, fmt.Errorf("buscar sesión abierta: %w", err)
	}

	sesion := &model.SesionCaja{
		TiendaID:         tiendaID,
		FechaApertura:    s.now(),
		EfectivoApertura: req.EfectivoApertura.Round(2),
		NotaApertura:     req.NotaApertura,
		UsuarioApertura:  usuario,
		Estado:           model.SesionAbierta,
	}
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		n, err := s.repo.CountSesionesPorTienda(ctx, tx, tiendaID)
		if err != nil {
			return err
		}
		sesion.NumeroSesion = fmt.Sprintf("CAJA-%04d", n+1)
		return s.repo.CreateSesion(ctx, tx, sesion)
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, errSesionDuplicada(tiendaID)
		}
		return nil, fmt.Errorf("crear sesión: %w", err)
	}

	log.Info().Str("sesion_id", sesion.ID.String()).Str("tienda_id", tiendaID).
		Str("numero_sesion", sesion.NumeroSesion).Msg("caja: sesión abierta")

	resp := sesionResponse(sesion)
	s.invalidar(ctx, tiendaID)
	s.publicar(realtime.SesionAbierta, tiendaID, resp)
	return resp, nil
}

func errSesionDuplicada(tiendaID string) error {
	return apierror.Conflict("ya existe una sesión abierta para la tienda %s", tiendaID)
}

// ── Lecturas ──────────────────────────────────────────────────────────────────

func (s *cajaService) ObtenerSesion(ctx context.Context, id uuid.UUID) (*dto.SesionCajaResponse, error) {
	sesion, err := s.buscarSesion(ctx, id)
	if err != nil {
		return nil, err
	}
	return sesionResponse(sesion), nil
}

func (s *cajaService) ListarSesiones(ctx context.Context, filter dto.SesionFilter) (*dto.Page[dto.SesionCajaResponse], error) {
	filter.Normalizar()
	sesiones, total, err := s.repo.ListSesiones(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listar sesiones: %w", err)
	}
	items := make([]dto.SesionCajaResponse, 0, len(sesiones))
	for i := range sesiones {
		items = append(items, *sesionResponse(&sesiones[i]))
	}
	return &dto.Page[dto.SesionCajaResponse]{Items: items, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *cajaService) SesionActiva(ctx context.Context, tiendaID string) (*dto.SesionCajaResponse, error) {
	gen := int64(-1)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, tiendaID); ok {
			return cached, nil
		}
		gen = s.cache.Generacion(ctx, tiendaID)
	}
	sesion, err := s.repo.FindSesionAbiertaPorTienda(ctx, tiendaID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFound("no hay sesión abierta para la tienda %s", tiendaID)
		}
		return nil, fmt.Errorf("buscar sesión activa: %w", err)
	}
	resp := sesionResponse(sesion)
	if s.cache != nil {
		s.cache.Set(ctx, tiendaID, resp, gen)
	}
	return resp, nil
}

func (s *cajaService) ListarMovimientos(ctx context.Context, id uuid.UUID) ([]dto.MovimientoEfectivoResponse, error) {
	if _, err := s.buscarSesion(ctx, id); err != nil {
		return nil, err
	}
	movs, err := s.repo.ListMovimientos(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listar movimientos: %w", err)
	}
	out := make([]dto.MovimientoEfectivoResponse, 0, len(movs))
	for i := range movs {
		out = append(out, movimientoResponse(&movs[i]))
	}
	return out, nil
}

// ── RegistrarMovimiento ───────────────────────────────────────────────────────
// Manual entrada / salida. Movements are immutable, there is no Update/Delete.

func (s *cajaService) RegistrarMovimiento(ctx context.Context, usuario string, id uuid.UUID, req dto.MovimientoEfectivoRequest) (*dto.MovimientoEfectivoResponse, error) {
	tipo := model.TipoMovimiento(req.Tipo)
	if !tipo.Valido() {
		return nil, apierror.Validation("tipo debe ser entrada o salida")
	}
	if !req.Monto.IsPositive() {
		return nil, apierror.Validation("el monto debe ser mayor que 0")
	}
	motivo := strings.TrimSpace(req.Motivo)
	if motivo == "" {
		return nil, apierror.Validation("motivo es obligatorio")
	}

	mov := &model.MovimientoEfectivo{
		SesionCajaID: id,
		Tipo:         tipo,
		Monto:        req.Monto.Round(2),
		Motivo:       motivo,
		Fecha:        s.now(),
		Usuario:      &usuario,
	}
	var tiendaID string
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sesion, err := s.bloquearSesion(ctx, tx, id)
		if err != nil {
			return err
		}
		if !sesion.Abierta() {
			return apierror.State("la sesión %s está cerrada", sesion.NumeroSesion)
		}
		tiendaID = sesion.TiendaID
		if err := s.repo.CreateMovimiento(ctx, tx, mov); err != nil {
			return err
		}
		sesion.AplicarMovimiento(tipo, mov.Monto)
		return s.repo.UpdateSesion(ctx, tx, sesion)
	})
	if err != nil {
		return nil, wrapInterno("registrar movimiento", err)
	}

	log.Info().Str("sesion_id", id.String()).Str("tipo", string(tipo)).
		Str("monto", mov.Monto.StringFixed(2)).Msg("caja: movimiento registrado")

	resp := movimientoResponse(mov)
	s.invalidar(ctx, tiendaID)
	s.publicar(realtime.MovimientoRegistrado, tiendaID, resp)
	return &resp, nil
}

// ── CerrarSesion ──────────────────────────────────────────────────────────────
// Records the declared cash and the reconciliation against the expected
// cash. A difference is reported, never blocks closing.

func (s *cajaService) CerrarSesion(ctx context.Context, usuario string, id uuid.UUID, req dto.CerrarSesionRequest) (*dto.CierreSesionResponse, error) {
	if req.EfectivoCierre.IsNegative() {
		return nil, apierror.Validation("efectivo_cierre no puede ser negativo")
	}
	declarado := req.EfectivoCierre.Round(2)

	var sesion *model.SesionCaja
	var dif dto.DiferenciaResponse
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		sesion, err = s.bloquearSesion(ctx, tx, id)
		if err != nil {
			return err
		}
		if !sesion.Abierta() {
			return apierror.State("la sesión %s ya está cerrada", sesion.NumeroSesion)
		}

		esperado := sesion.EfectivoEsperadoActual()
		dif = calcularDiferencia(esperado, declarado)
		clasif := model.ClasificacionDiferencia(dif.Clasificacion)
		cierre := s.now()

		sesion.EfectivoCierre = &declarado
		sesion.EfectivoEsperado = &esperado
		sesion.Diferencia = &dif.Monto
		sesion.ClasificacionDiferencia = &clasif
		sesion.FechaCierre = &cierre
		sesion.UsuarioCierre = &usuario
		sesion.NotaCierre = req.NotaCierre
		sesion.Estado = model.SesionCerrada
		return s.repo.UpdateSesion(ctx, tx, sesion)
	})
	if err != nil {
		return nil, wrapInterno("cerrar sesión", err)
	}

	s.invalidar(ctx, sesion.TiendaID)
	log.Info().Str("sesion_id", id.String()).Str("tienda_id", sesion.TiendaID).
		Str("diferencia", dif.Monto.StringFixed(2)).Str("clasificacion", dif.Clasificacion).
		Msg("caja: sesión cerrada")

	// the close is committed; a failed read only trims the response
	movs, err := s.repo.ListMovimientos(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("sesion_id", id.String()).Msg("caja: movimientos no disponibles para la respuesta de cierre")
	}
	sesion.Movimientos = movs
	resp := &dto.CierreSesionResponse{Sesion: *sesionResponse(sesion), Diferencia: dif}
	s.publicar(realtime.SesionCerrada, sesion.TiendaID, resp)
	s.notificarDiferencia(ctx, sesion, dif)
	return resp, nil
}

// notificarDiferencia queues the discrepancy email for non-normal closes.
func (s *cajaService) notificarDiferencia(ctx context.Context, sesion *model.SesionCaja, dif dto.DiferenciaResponse) {
	if dif.Clasificacion == string(model.DiferenciaNormal) || s.notifyEmail == "" || s.queue == nil {
		return
	}
	job := worker.EmailJob{
		To:      []string{s.notifyEmail},
		Subject: fmt.Sprintf("[%s] Cierre de caja %s con diferencia %s", dif.Clasificacion, sesion.NumeroSesion, dif.Clasificacion),
		Text: fmt.Sprintf(
			"Tienda: %s\nSesión: %s\nCerrada por: %s\nEfectivo esperado: %s\nEfectivo declarado: %s\nDiferencia: %s (%s%%)\n",
			sesion.TiendaID, sesion.NumeroSesion, deref(sesion.UsuarioCierre),
			sesion.EfectivoEsperado.StringFixed(2), sesion.EfectivoCierre.StringFixed(2),
			dif.Monto.StringFixed(2), dif.Porcentaje.StringFixed(2)),
	}
	if err := s.queue.EnqueueEmail(ctx, job); err != nil {
		log.Error().Err(err).Str("sesion_id", sesion.ID.String()).Msg("caja: no se pudo encolar el aviso de diferencia")
	}
}

// ── ObtenerReporte ────────────────────────────────────────────────────────────

func (s *cajaService) ObtenerReporte(ctx context.Context, id uuid.UUID) (*dto.ReporteSesionResponse, error) {
	sesion, err := s.buscarSesion(ctx, id)
	if err != nil {
		return nil, err
	}
	conteo, err := s.ordenes.ContarPorEstado(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("contar órdenes: %w", err)
	}

	rep := &dto.ReporteSesionResponse{
		Sesion:            *sesionResponse(sesion),
		EfectivoEsperado:  sesion.EfectivoEsperadoActual(),
		EfectivoDeclarado: sesion.EfectivoCierre,
		TotalEntradas:     decimal.Zero,
		TotalSalidas:      decimal.Zero,
		OrdenesPagadas:    conteo[model.OrdenPagada],
		OrdenesPendientes: conteo[model.OrdenPendiente],
	}
	for _, m := range sesion.Movimientos {
		if m.Tipo == model.MovimientoEntrada {
			rep.TotalEntradas = rep.TotalEntradas.Add(m.Monto)
		} else {
			rep.TotalSalidas = rep.TotalSalidas.Add(m.Monto)
		}
	}
	if sesion.EfectivoEsperado != nil {
		rep.EfectivoEsperado = *sesion.EfectivoEsperado
	}
	if sesion.EfectivoCierre != nil {
		dif := calcularDiferencia(rep.EfectivoEsperado, *sesion.EfectivoCierre)
		rep.Diferencia = &dif
	}
	return rep, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *cajaService) buscarSesion(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	sesion, err := s.repo.FindSesionByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFound("sesión de caja %s no encontrada", id)
		}
		return nil, fmt.Errorf("buscar sesión: %w", err)
	}
	return sesion, nil
}

func (s *cajaService) bloquearSesion(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.SesionCaja, error) {
	sesion, err := s.repo.FindSesionForUpdate(ctx, tx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFound("sesión de caja %s no encontrada", id)
		}
		return nil, err
	}
	return sesion, nil
}

var (
	unoPorCiento   = decimal.NewFromInt(1)
	cincoPorCiento = decimal.NewFromInt(5)
	cien           = decimal.NewFromInt(100)
)

// calcularDiferencia compares declared and expected cash. The percentage is
// relative to expected; with nothing expected any difference counts as 100%.
func calcularDiferencia(esperado, declarado decimal.Decimal) dto.DiferenciaResponse {
	monto := declarado.Sub(esperado)
	var pct decimal.Decimal
	switch {
	case monto.IsZero():
		pct = decimal.Zero
	case esperado.IsZero():
		pct = cien
		if monto.IsNegative() {
			pct = cien.Neg()
		}
	default:
		pct = monto.Div(esperado).Mul(cien).Round(2)
	}
	return dto.DiferenciaResponse{
		Monto:         monto,
		Porcentaje:    pct,
		Clasificacion: string(clasificarDiferencia(pct)),
	}
}

// clasificarDiferencia: normal |pct| <= 1%, advertencia <= 5%, critico > 5%.
func clasificarDiferencia(pct decimal.Decimal) model.ClasificacionDiferencia {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(unoPorCiento):
		return model.DiferenciaNormal
	case abs.LessThanOrEqual(cincoPorCiento):
		return model.DiferenciaAdvertencia
	default:
		return model.DiferenciaCritica
	}
}

// wrapInterno keeps classified errors intact and wraps the rest.
func wrapInterno(op string, err error) error {
	if _, ok := apierror.As(err); ok {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
