package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cajapos/internal/config"
	"cajapos/internal/middleware"
	"cajapos/internal/realtime"
	"cajapos/internal/repository/repotest"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "router-test-secret-with-32-characters!!"

// cajeroT2 keys the token of a cashier bound to store T2.
const cajeroT2 middleware.Rol = "cajero@T2"

type testEnv struct {
	engine *gin.Engine
	hub    *realtime.Hub
	tokens map[middleware.Rol]string
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cajaRepo := repotest.NewCajaRepo()
	ordenRepo := repotest.NewOrdenRepo()
	hub := realtime.NewHub(16)
	cfg := &config.Config{JWTSecret: secret, RateLimitRPS: 1000, RateLimitBurst: 1000}

	env := &testEnv{
		hub: hub,
		engine: New(ctx, cfg, Deps{
			Hub:     hub,
			Caja:    service.NewCajaService(cajaRepo, ordenRepo, nil, hub, nil, ""),
			Ordenes: service.NewOrdenService(ordenRepo, cajaRepo, nil, nil, hub, nil),
		}),
		tokens: map[middleware.Rol]string{},
	}
	for _, rol := range []middleware.Rol{middleware.RolCajero, middleware.RolSupervisor} {
		tok, err := middleware.FirmarToken(secret, "u-"+string(rol), rol, "T1", time.Hour)
		require.NoError(t, err)
		env.tokens[rol] = tok
	}
	tok, err := middleware.FirmarToken(secret, "u-t2", middleware.RolCajero, "T2", time.Hour)
	require.NoError(t, err)
	env.tokens[cajeroT2] = tok
	return env
}

func (e *testEnv) do(t *testing.T, rol middleware.Rol, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok := e.tokens[rol]; tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type errorBody struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var out errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type idResp struct {
	ID     string `json:"id"`
	Estado string `json:"estado"`
}

func TestFlujoCompletoDeCaja(t *testing.T) {
	e := setup(t)
	caj := middleware.RolCajero

	w := e.do(t, caj, http.MethodGet, "/api/caja/tiendas/T1/sesion-activa", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeErr(t, w).Code)

	w = e.do(t, caj, http.MethodPost, "/api/caja/sesiones", map[string]any{"tienda_id": "T1", "efectivo_apertura": 100})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sesion := decode[idResp](t, w)
	assert.Equal(t, "abierta", sesion.Estado)

	w = e.do(t, caj, http.MethodPost, "/api/caja/sesiones", map[string]any{"tienda_id": "T1", "efectivo_apertura": 0})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", decodeErr(t, w).Code)

	w = e.do(t, caj, http.MethodPost, "/api/caja/sesiones/"+sesion.ID+"/movimientos-efectivo",
		map[string]any{"tipo": "salida", "monto": 10, "motivo": "compra de bolsas"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, caj, http.MethodPost, "/api/caja/ordenes", map[string]any{
		"sesion_caja_id":      sesion.ID,
		"tienda_id":           "T1",
		"impuesto_porcentaje": 0,
		"items": []map[string]any{
			{"material_codigo": "CEM-50", "descripcion": "Cemento", "cantidad": 2, "precio_unitario": 25},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	orden := decode[struct {
		ID          string  `json:"id"`
		NumeroOrden string  `json:"numero_orden"`
		Total       float64 `json:"total"`
	}](t, w)
	assert.Equal(t, "ORD-000001", orden.NumeroOrden)
	assert.InDelta(t, 50.0, orden.Total, 0.0001)

	w = e.do(t, caj, http.MethodPost, "/api/caja/ordenes/"+orden.ID+"/pagar", map[string]any{
		"almacen_id": "central",
		"pagos":      []map[string]any{{"metodo": "efectivo", "monto": 49}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decodeErr(t, w).Detail, "payment total does not match order total")

	w = e.do(t, caj, http.MethodPost, "/api/caja/ordenes/"+orden.ID+"/pagar", map[string]any{
		"almacen_id": "central",
		"pagos":      []map[string]any{{"metodo": "efectivo", "monto": 50, "monto_recibido": 100}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pago := decode[struct {
		Success bool    `json:"success"`
		Cambio  float64 `json:"cambio"`
		Orden   idResp  `json:"orden"`
	}](t, w)
	assert.True(t, pago.Success)
	assert.InDelta(t, 50.0, pago.Cambio, 0.0001)
	assert.Equal(t, "pagada", pago.Orden.Estado)

	w = e.do(t, caj, http.MethodPost, "/api/caja/ordenes/"+orden.ID+"/pagar", map[string]any{
		"almacen_id": "central",
		"pagos":      []map[string]any{{"metodo": "tarjeta", "monto": 50}},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "state", decodeErr(t, w).Code)

	w = e.do(t, caj, http.MethodGet, "/api/caja/tiendas/T1/sesion-activa", nil)
	require.Equal(t, http.StatusOK, w.Code)
	activa := decode[struct {
		TotalEfectivo float64 `json:"total_efectivo"`
		TotalVentas   float64 `json:"total_ventas"`
	}](t, w)
	assert.InDelta(t, 40.0, activa.TotalEfectivo, 0.0001)
	assert.InDelta(t, 50.0, activa.TotalVentas, 0.0001)

	w = e.do(t, caj, http.MethodPost, "/api/caja/sesiones/"+sesion.ID+"/cerrar", map[string]any{"efectivo_cierre": 140})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cierre := decode[struct {
		Sesion     idResp `json:"sesion"`
		Diferencia struct {
			Monto         float64 `json:"monto"`
			Clasificacion string  `json:"clasificacion"`
		} `json:"diferencia"`
	}](t, w)
	assert.Equal(t, "cerrada", cierre.Sesion.Estado)
	assert.Zero(t, cierre.Diferencia.Monto)
	assert.Equal(t, "normal", cierre.Diferencia.Clasificacion)

	w = e.do(t, middleware.RolSupervisor, http.MethodGet, "/api/caja/sesiones/"+sesion.ID+"/reporte", nil)
	require.Equal(t, http.StatusOK, w.Code)
	reporte := decode[struct {
		OrdenesPagadas int64   `json:"ordenes_pagadas"`
		TotalSalidas   float64 `json:"total_salidas"`
	}](t, w)
	assert.EqualValues(t, 1, reporte.OrdenesPagadas)
	assert.InDelta(t, 10.0, reporte.TotalSalidas, 0.0001)

	w = e.do(t, caj, http.MethodGet, "/api/caja/sesiones/"+sesion.ID+"/movimientos-efectivo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]idResp](t, w), 1)

	w = e.do(t, caj, http.MethodGet, "/api/caja/ordenes?sesion_caja_id="+sesion.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[struct {
		Total int64    `json:"total"`
		Items []idResp `json:"items"`
	}](t, w)
	assert.EqualValues(t, 1, page.Total)
}

func TestPermisosPorRuta(t *testing.T) {
	e := setup(t)

	w := e.do(t, "", http.MethodGet, "/api/caja/sesiones", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, middleware.RolCajero, http.MethodGet, "/api/caja/sesiones/00000000-0000-0000-0000-000000000001/reporte", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, middleware.RolCajero, http.MethodDelete, "/api/caja/ordenes/00000000-0000-0000-0000-000000000001", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, middleware.RolSupervisor, http.MethodDelete, "/api/caja/ordenes/00000000-0000-0000-0000-000000000001", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAlcancePorTienda(t *testing.T) {
	e := setup(t)
	caj := middleware.RolCajero

	w := e.do(t, caj, http.MethodPost, "/api/caja/sesiones", map[string]any{"tienda_id": "T1", "efectivo_apertura": 20})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sesion := decode[idResp](t, w)
	w = e.do(t, caj, http.MethodPost, "/api/caja/ordenes", map[string]any{
		"sesion_caja_id": sesion.ID,
		"tienda_id":      "T1",
		"items":          []map[string]any{{"material_codigo": "CEM-50", "descripcion": "Cemento", "cantidad": 1, "precio_unitario": 10}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	orden := decode[idResp](t, w)

	fuera := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/api/caja/sesiones", map[string]any{"tienda_id": "T1", "efectivo_apertura": 0}},
		{http.MethodGet, "/api/caja/tiendas/T1/sesion-activa", nil},
		{http.MethodGet, "/api/caja/sesiones/" + sesion.ID, nil},
		{http.MethodGet, "/api/caja/sesiones?tienda_id=T1", nil},
		{http.MethodGet, "/api/caja/sesiones/" + sesion.ID + "/movimientos-efectivo", nil},
		{http.MethodPost, "/api/caja/sesiones/" + sesion.ID + "/movimientos-efectivo", map[string]any{"tipo": "entrada", "monto": 5, "motivo": "cambio"}},
		{http.MethodPost, "/api/caja/sesiones/" + sesion.ID + "/cerrar", map[string]any{"efectivo_cierre": 20}},
		{http.MethodPost, "/api/caja/ordenes", map[string]any{
			"sesion_caja_id": sesion.ID,
			"tienda_id":      "T1",
			"items":          []map[string]any{{"material_codigo": "CEM-50", "descripcion": "Cemento", "cantidad": 1, "precio_unitario": 10}},
		}},
		{http.MethodGet, "/api/caja/ordenes?tienda_id=T1", nil},
		{http.MethodGet, "/api/caja/ordenes/" + orden.ID, nil},
		{http.MethodPost, "/api/caja/ordenes/" + orden.ID + "/pagar", map[string]any{
			"almacen_id": "central", "pagos": []map[string]any{{"metodo": "tarjeta", "monto": 11.6}},
		}},
	}
	for _, tc := range fuera {
		w := e.do(t, cajeroT2, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s: %s", tc.method, tc.path, w.Body.String())
	}

	// without a filter a cashier only sees its own store
	w = e.do(t, cajeroT2, http.MethodGet, "/api/caja/sesiones", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[struct {
		Items []idResp `json:"items"`
	}](t, w).Items)

	// supervisors work across stores and the T1 session is untouched
	w = e.do(t, middleware.RolSupervisor, http.MethodGet, "/api/caja/sesiones/"+sesion.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abierta", decode[idResp](t, w).Estado)
	w = e.do(t, middleware.RolSupervisor, http.MethodGet, "/api/caja/ordenes/"+orden.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pendiente", decode[idResp](t, w).Estado)
}

func TestErroresDeEntrada(t *testing.T) {
	e := setup(t)
	caj := middleware.RolCajero

	w := e.do(t, caj, http.MethodPost, "/api/caja/sesiones", `{"tienda_id":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decodeErr(t, w).Code)

	w = e.do(t, caj, http.MethodPost, "/api/caja/sesiones", map[string]any{"efectivo_apertura": -1})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "validation", decodeErr(t, w).Code)

	w = e.do(t, caj, http.MethodPost, "/api/caja/sesiones/no-es-uuid/movimientos-efectivo",
		map[string]any{"tipo": "entrada", "monto": 1, "motivo": "fondo"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, caj, http.MethodGet, "/api/caja/sesiones?estado=rota", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = e.do(t, caj, http.MethodGet, "/api/caja/sesiones?limit=500", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHealthSinDependencias(t *testing.T) {
	e := setup(t)
	w := e.do(t, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"inventario":"disabled"`)
}

func TestEventosPorWebsocket(t *testing.T) {
	e := setup(t)
	srv := httptest.NewServer(e.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/caja/tiendas/T1/eventos?token=" + e.tokens[middleware.RolCajero]
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return e.hub.Suscriptores("T1") == 1 }, time.Second, 10*time.Millisecond)

	w := e.do(t, middleware.RolCajero, http.MethodPost, "/api/caja/sesiones", map[string]any{"tienda_id": "T1", "efectivo_apertura": 0})
	require.Equal(t, http.StatusCreated, w.Code)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev realtime.Evento
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, realtime.SesionAbierta, ev.Tipo)
	assert.Equal(t, "T1", ev.TiendaID)
}
