package handler

import (
	"context"
	"net/http"

	"cajapos/internal/dto"
	"cajapos/internal/realtime"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type CajaHandler struct{ svc service.CajaService }

func NewCajaHandler(svc service.CajaService) *CajaHandler { return &CajaHandler{svc: svc} }

// AbrirSesion handles POST /api/caja/sesiones.
func (h *CajaHandler) AbrirSesion(c *gin.Context) {
	var req dto.AbrirSesionRequest
	if !bindAndValidate(c, &req) || !enTienda(c, req.TiendaID) {
		return
	}
	resp, err := h.svc.AbrirSesion(c.Request.Context(), usuario(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, resp)
}

func (h *CajaHandler) ListarSesiones(c *gin.Context) {
	var filter dto.SesionFilter
	if !bindQuery(c, &filter) || !filtrarTienda(c, &filter.TiendaID) {
		return
	}
	page, err := h.svc.ListarSesiones(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, page)
}

func (h *CajaHandler) ObtenerSesion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerSesion(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if !enTienda(c, resp.TiendaID) {
		return
	}
	respond(c, http.StatusOK, resp)
}

// sesionEnAlcance loads the session only for store-bound callers.
func (h *CajaHandler) sesionEnAlcance(c *gin.Context, id uuid.UUID) bool {
	if !restringido(c) {
		return true
	}
	s, err := h.svc.ObtenerSesion(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return false
	}
	return enTienda(c, s.TiendaID)
}

// ObtenerReporte handles GET /api/caja/sesiones/:id/reporte.
func (h *CajaHandler) ObtenerReporte(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerReporte(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, resp)
}

// CerrarSesion handles POST /api/caja/sesiones/:id/cerrar. A cash
// discrepancy is part of the response, never an error.
func (h *CajaHandler) CerrarSesion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.CerrarSesionRequest
	if !bindAndValidate(c, &req) || !h.sesionEnAlcance(c, id) {
		return
	}
	resp, err := h.svc.CerrarSesion(c.Request.Context(), usuario(c), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, resp)
}

func (h *CajaHandler) RegistrarMovimiento(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.MovimientoEfectivoRequest
	if !bindAndValidate(c, &req) || !h.sesionEnAlcance(c, id) {
		return
	}
	resp, err := h.svc.RegistrarMovimiento(c.Request.Context(), usuario(c), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, resp)
}

func (h *CajaHandler) ListarMovimientos(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok || !h.sesionEnAlcance(c, id) {
		return
	}
	resp, err := h.svc.ListarMovimientos(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, resp)
}

// SesionActiva handles GET /api/caja/tiendas/:tiendaId/sesion-activa and
// answers 404 when the store has no open session.
func (h *CajaHandler) SesionActiva(c *gin.Context) {
	resp, err := h.svc.SesionActiva(c.Request.Context(), c.Param("tiendaId"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, resp)
}

// ── Eventos ───────────────────────────────────────────────────────────────────

// EventosHandler upgrades GET /api/caja/tiendas/:tiendaId/eventos to a
// websocket streaming that store's events.
type EventosHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	// done ends every open stream on shutdown.
	done context.Context
}

func NewEventosHandler(ctx context.Context, hub *realtime.Hub, origins []string) *EventosHandler {
	permitidos := make(map[string]bool, len(origins))
	for _, o := range origins {
		permitidos[o] = true
	}
	return &EventosHandler{
		hub:  hub,
		done: ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(permitidos) == 0 || permitidos[origin]
			},
		},
	}
}

func (h *EventosHandler) Stream(c *gin.Context) {
	tienda := c.Param("tiendaId")
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		log.Debug().Err(err).Str("tienda_id", tienda).Msg("realtime: upgrade rechazado")
		return
	}
	defer conn.Close()

	sub := h.hub.Suscribir(tienda)
	log.Debug().Str("tienda_id", tienda).Str("usuario", usuario(c)).Msg("realtime: suscriptor conectado")
	if err := realtime.Transmitir(h.done, conn, sub); err != nil {
		log.Debug().Err(err).Str("tienda_id", tienda).Msg("realtime: stream terminado")
	}
}
