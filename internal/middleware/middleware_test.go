package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cajapos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-with-at-least-32-characters"

func init() { gin.SetMode(gin.TestMode) }

func TestParseRol(t *testing.T) {
	cases := map[string]Rol{
		"cajero":         RolCajero,
		"  Cajera ":      RolCajero,
		"SUPERVISÓR":     RolSupervisor,
		"Administrador":  RolAdministrador,
		"ADMINISTRADORA": RolAdministrador,
		"admin":          RolAdministrador,
	}
	for in, want := range cases {
		got, err := ParseRol(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseRol("gerente")
	assert.Error(t, err)
}

func TestPermisos(t *testing.T) {
	assert.True(t, RolCajero.Tiene(PermOrdenesPagar))
	assert.False(t, RolCajero.Tiene(PermCajaReportes))
	assert.False(t, RolCajero.Tiene(PermOrdenesCancelar))
	assert.True(t, RolSupervisor.Tiene(PermOrdenesCancelar))
	assert.True(t, RolAdministrador.Tiene(PermCajaReportes))
	assert.False(t, Rol("desconocido").Tiene(PermCajaVer))
}

func TestPuedeOperar(t *testing.T) {
	cajero := &Principal{Usuario: "ana", Rol: RolCajero, TiendaID: "T1"}
	assert.True(t, cajero.PuedeOperar("T1"))
	assert.False(t, cajero.PuedeOperar("T2"))
	assert.False(t, cajero.PuedeOperar(""))

	sinTienda := &Principal{Usuario: "ana", Rol: RolCajero}
	assert.False(t, sinTienda.PuedeOperar(""))
	assert.False(t, sinTienda.PuedeOperar("T1"))

	sup := &Principal{Usuario: "marta", Rol: RolSupervisor, TiendaID: "T1"}
	assert.True(t, sup.PuedeOperar("T2"))
	assert.True(t, (&Principal{Rol: RolAdministrador}).PuedeOperar("T9"))

	var nadie *Principal
	assert.False(t, nadie.PuedeOperar("T1"))
}

func TestRequireTienda(t *testing.T) {
	r := gin.New()
	r.GET("/tiendas/:tiendaId", JWTAuth(secret), RequireTienda("tiendaId"), func(c *gin.Context) {
		c.String(http.StatusOK, c.Param("tiendaId"))
	})
	caj, err := FirmarToken(secret, "ana", RolCajero, "T1", time.Hour)
	require.NoError(t, err)
	sup, err := FirmarToken(secret, "marta", RolSupervisor, "T1", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(r, "/tiendas/T1", caj).Code)
	assert.Equal(t, http.StatusForbidden, get(r, "/tiendas/T2", caj).Code)
	assert.Equal(t, http.StatusOK, get(r, "/tiendas/T2", sup).Code)
}

func engineConAuth(p Permiso) *gin.Engine {
	r := gin.New()
	r.GET("/x", JWTAuth(secret), RequirePermiso(p), func(c *gin.Context) {
		c.String(http.StatusOK, GetPrincipal(c).Usuario)
	})
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := engineConAuth(PermCajaReportes)

	sup, err := FirmarToken(secret, "marta", RolSupervisor, "T1", time.Hour)
	require.NoError(t, err)
	w := get(r, "/x", sup)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "marta", w.Body.String())

	caj, err := FirmarToken(secret, "ana", RolCajero, "T1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, get(r, "/x", caj).Code)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/x", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/x", "basura").Code)

	vencido, err := FirmarToken(secret, "ana", RolSupervisor, "", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/x", vencido).Code)

	otraClave, err := FirmarToken("otra-clave-distinta-de-32-caracteres!!", "ana", RolSupervisor, "", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/x", otraClave).Code)

	// websocket style
	assert.Equal(t, http.StatusOK, get(r, "/x?token="+sup, "").Code)
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), ErrorHandler())
	r.GET("/:kind", func(c *gin.Context) {
		switch c.Param("kind") {
		case "validation":
			_ = c.Error(apierror.Validation("monto inválido"))
		case "state":
			_ = c.Error(fmt.Errorf("pagar: %w", apierror.State("orden pagada")))
		case "network":
			_ = c.Error(apierror.Network(errors.New("dial"), "inventario no disponible"))
		default:
			_ = c.Error(errors.New("pq: connection refused"))
		}
	})

	cases := []struct {
		path   string
		status int
		body   string
	}{
		{"/validation", http.StatusUnprocessableEntity, `{"detail":"monto inválido","code":"validation"}`},
		{"/state", http.StatusConflict, `{"detail":"orden pagada","code":"state"}`},
		{"/network", http.StatusBadGateway, `{"detail":"inventario no disponible","code":"network"}`},
		{"/otro", http.StatusInternalServerError, `{"detail":"Error interno del servidor"}`},
	}
	for _, tc := range cases {
		w := get(r, tc.path, "")
		assert.Equal(t, tc.status, w.Code, tc.path)
		assert.JSONEq(t, tc.body, w.Body.String(), tc.path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(*gin.Context) { panic("boom") })
	w := get(r, "/", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestRequestIDPropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Body.String())
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(1, 2)
	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, get(r, "/", "").Code)
	assert.Equal(t, http.StatusOK, get(r, "/", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/", "").Code)

	assert.Equal(t, 1, l.purge(time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusOK, get(r, "/", "").Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://pos.local"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://pos.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://pos.local", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
