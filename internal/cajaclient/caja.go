package cajaclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"cajapos/internal/apierror"
	"cajapos/internal/dto"
	"cajapos/internal/model"
)

func (s *Sesion) AbrirSesion(ctx context.Context, req dto.AbrirSesionRequest) (*dto.SesionCajaResponse, error) {
	if strings.TrimSpace(req.TiendaID) == "" {
		return nil, apierror.Validation("tienda_id es obligatorio")
	}
	if req.EfectivoApertura.IsNegative() {
		return nil, apierror.Validation("efectivo_apertura no puede ser negativo")
	}
	var out dto.SesionCajaResponse
	if err := s.do(ctx, http.MethodPost, "/sesiones", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Sesion) ObtenerSesion(ctx context.Context, id string) (*dto.SesionCajaResponse, error) {
	var out dto.SesionCajaResponse
	if err := s.do(ctx, http.MethodGet, pathID("/sesiones/%s", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Sesion) ListarSesiones(ctx context.Context, f dto.SesionFilter) (*dto.Page[dto.SesionCajaResponse], error) {
	q := url.Values{}
	setSi(q, "tienda_id", f.TiendaID)
	setSi(q, "estado", f.Estado)
	setSi(q, "fecha_desde", f.FechaDesde)
	setSi(q, "fecha_hasta", f.FechaHasta)
	paginacion(q, f.Paginacion)

	var out dto.Page[dto.SesionCajaResponse]
	if err := s.do(ctx, http.MethodGet, "/sesiones", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SesionActiva returns the store's open session, or nil when there is none.
func (s *Sesion) SesionActiva(ctx context.Context, tiendaID string) (*dto.SesionCajaResponse, error) {
	var out dto.SesionCajaResponse
	err := s.do(ctx, http.MethodGet, pathID("/tiendas/%s/sesion-activa", tiendaID), nil, nil, &out)
	if errors.Is(err, apierror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Sesion) CerrarSesion(ctx context.Context, id string, req dto.CerrarSesionRequest) (*dto.CierreSesionResponse, error) {
	if req.EfectivoCierre.IsNegative() {
		return nil, apierror.Validation("efectivo_cierre no puede ser negativo")
	}
	var out dto.CierreSesionResponse
	if err := s.do(ctx, http.MethodPost, pathID("/sesiones/%s/cerrar", id), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegistrarMovimiento rejects a non-positive monto without calling the server.
func (s *Sesion) RegistrarMovimiento(ctx context.Context, sesionID string, req dto.MovimientoEfectivoRequest) (*dto.MovimientoEfectivoResponse, error) {
	if !model.TipoMovimiento(req.Tipo).Valido() {
		return nil, apierror.Validation("tipo debe ser entrada o salida")
	}
	if !req.Monto.IsPositive() {
		return nil, apierror.Validation("el monto debe ser mayor que 0")
	}
	if strings.TrimSpace(req.Motivo) == "" {
		return nil, apierror.Validation("motivo es obligatorio")
	}
	var out dto.MovimientoEfectivoResponse
	if err := s.do(ctx, http.MethodPost, pathID("/sesiones/%s/movimientos-efectivo", sesionID), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Sesion) ListarMovimientos(ctx context.Context, sesionID string) ([]dto.MovimientoEfectivoResponse, error) {
	var out []dto.MovimientoEfectivoResponse
	if err := s.do(ctx, http.MethodGet, pathID("/sesiones/%s/movimientos-efectivo", sesionID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Sesion) ObtenerReporte(ctx context.Context, sesionID string) (*dto.ReporteSesionResponse, error) {
	var out dto.ReporteSesionResponse
	if err := s.do(ctx, http.MethodGet, pathID("/sesiones/%s/reporte", sesionID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
