package handler

import (
	"net/http"

	"cajapos/internal/dto"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrdenesHandler struct{ svc service.OrdenService }

func NewOrdenesHandler(svc service.OrdenService) *OrdenesHandler {
	return &OrdenesHandler{svc: svc}
}

// Crear handles POST /api/caja/ordenes.
func (h *OrdenesHandler) Crear(c *gin.Context) {
	var req dto.CrearOrdenRequest
	if !bindAndValidate(c, &req) || !enTienda(c, req.TiendaID) {
		return
	}
	resp, err := h.svc.CrearOrden(c.Request.Context(), usuario(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, resp)
}

func (h *OrdenesHandler) Listar(c *gin.Context) {
	var filter dto.OrdenFilter
	if !bindQuery(c, &filter) || !filtrarTienda(c, &filter.TiendaID) {
		return
	}
	page, err := h.svc.ListarOrdenes(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, page)
}

func (h *OrdenesHandler) Obtener(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerOrden(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if !enTienda(c, resp.TiendaID) {
		return
	}
	respond(c, http.StatusOK, resp)
}

// ordenEnAlcance loads the order only for store-bound callers.
func (h *OrdenesHandler) ordenEnAlcance(c *gin.Context, id uuid.UUID) bool {
	if !restringido(c) {
		return true
	}
	o, err := h.svc.ObtenerOrden(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return false
	}
	return enTienda(c, o.TiendaID)
}

func (h *OrdenesHandler) Actualizar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.ActualizarOrdenRequest
	if !bindAndValidate(c, &req) || !h.ordenEnAlcance(c, id) {
		return
	}
	resp, err := h.svc.ActualizarOrden(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, resp)
}

// Cancelar handles DELETE /api/caja/ordenes/:id. Orders are never removed,
// only moved to cancelada.
func (h *OrdenesHandler) Cancelar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok || !h.ordenEnAlcance(c, id) {
		return
	}
	resp, err := h.svc.CancelarOrden(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, resp)
}

// Pagar handles POST /api/caja/ordenes/:id/pagar.
func (h *OrdenesHandler) Pagar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.PagarOrdenRequest
	if !bindAndValidate(c, &req) || !h.ordenEnAlcance(c, id) {
		return
	}
	resp, err := h.svc.PagarOrden(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, resp)
}
