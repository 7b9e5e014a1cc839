package cajaclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cajapos/internal/apierror"
	"cajapos/internal/config"
	"cajapos/internal/dto"
	"cajapos/internal/middleware"
	"cajapos/internal/realtime"
	"cajapos/internal/repository/repotest"
	"cajapos/internal/router"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "client-test-secret-with-32-characters!"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// servidor runs the real router over in-memory repositories.
func servidor(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cajaRepo := repotest.NewCajaRepo()
	ordenRepo := repotest.NewOrdenRepo()
	hub := realtime.NewHub(8)
	engine := router.New(ctx, &config.Config{JWTSecret: secret, RateLimitRPS: 1000, RateLimitBurst: 1000}, router.Deps{
		Hub:     hub,
		Caja:    service.NewCajaService(cajaRepo, ordenRepo, nil, hub, nil, ""),
		Ordenes: service.NewOrdenService(ordenRepo, cajaRepo, nil, nil, hub, nil),
	})
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	tok, err := middleware.FirmarToken(secret, "ana", middleware.RolSupervisor, "T1", time.Hour)
	require.NoError(t, err)
	return srv, tok
}

func TestNuevaSesion_Validacion(t *testing.T) {
	_, err := NuevaSesion("no es url", "tok")
	assert.Error(t, err)
	_, err = NuevaSesion("http://localhost:8000", " ")
	assert.Error(t, err)

	s, err := NuevaSesion("http://localhost:8000/", "tok", ConTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "tok", s.Token())
	s.Cerrar()
	assert.Empty(t, s.Token())
}

func TestEscenarioCompleto(t *testing.T) {
	srv, tok := servidor(t)
	s, err := NuevaSesion(srv.URL, tok)
	require.NoError(t, err)
	ctx := context.Background()

	activa, err := s.SesionActiva(ctx, "T1")
	require.NoError(t, err)
	assert.Nil(t, activa)

	sesion, err := s.AbrirSesion(ctx, dto.AbrirSesionRequest{TiendaID: "T1", EfectivoApertura: dec("100")})
	require.NoError(t, err)
	assert.Equal(t, "abierta", sesion.Estado)
	assert.True(t, sesion.TotalVentas.IsZero())

	_, err = s.AbrirSesion(ctx, dto.AbrirSesionRequest{TiendaID: "T1"})
	assert.ErrorIs(t, err, apierror.ErrConflict)

	orden, err := s.CrearOrden(ctx, dto.CrearOrdenRequest{
		SesionCajaID:       sesion.ID,
		TiendaID:           "T1",
		Items:              []dto.ItemOrdenRequest{{MaterialCodigo: "CEM-50", Descripcion: "Cemento", Cantidad: dec("2"), PrecioUnitario: dec("10")}},
		ImpuestoPorcentaje: decPtr("10"),
	})
	require.NoError(t, err)
	assert.True(t, orden.Subtotal.Equal(dec("20")))
	assert.True(t, orden.ImpuestoMonto.Equal(dec("2")))
	assert.True(t, orden.Total.Equal(dec("22")))

	_, err = s.PagarOrden(ctx, orden.ID, dto.PagarOrdenRequest{
		AlmacenID: "central",
		Pagos:     []dto.PagoDetalleRequest{{Metodo: "efectivo", Monto: dec("20")}},
	})
	assert.ErrorIs(t, err, apierror.ErrValidation)

	pago, err := s.PagarOrden(ctx, orden.ID, dto.PagarOrdenRequest{
		MetodoPago: "mixto",
		AlmacenID:  "central",
		Pagos: []dto.PagoDetalleRequest{
			{Metodo: "tarjeta", Monto: dec("15")},
			{Metodo: "efectivo", Monto: dec("7"), MontoRecibido: decPtr("10")},
		},
	})
	require.NoError(t, err)
	assert.True(t, pago.Success)
	assert.True(t, pago.Cambio.Equal(dec("3")))
	assert.Equal(t, "pagada", pago.Orden.Estado)

	_, err = s.PagarOrden(ctx, orden.ID, dto.PagarOrdenRequest{
		AlmacenID: "central", Pagos: []dto.PagoDetalleRequest{{Metodo: "tarjeta", Monto: dec("22")}},
	})
	assert.ErrorIs(t, err, apierror.ErrState)

	_, err = s.RegistrarMovimiento(ctx, sesion.ID, dto.MovimientoEfectivoRequest{Tipo: "salida", Monto: dec("5"), Motivo: "petty cash"})
	require.NoError(t, err)
	got, err := s.ObtenerSesion(ctx, sesion.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalEfectivo.Equal(dec("2")), got.TotalEfectivo.String())

	cierre, err := s.CerrarSesion(ctx, sesion.ID, dto.CerrarSesionRequest{EfectivoCierre: dec("102")})
	require.NoError(t, err)
	assert.Equal(t, "cerrada", cierre.Sesion.Estado)
	assert.Equal(t, "normal", cierre.Diferencia.Clasificacion)

	_, err = s.CerrarSesion(ctx, sesion.ID, dto.CerrarSesionRequest{EfectivoCierre: dec("102")})
	assert.ErrorIs(t, err, apierror.ErrState)
	_, err = s.RegistrarMovimiento(ctx, sesion.ID, dto.MovimientoEfectivoRequest{Tipo: "salida", Monto: dec("5"), Motivo: "petty cash"})
	assert.ErrorIs(t, err, apierror.ErrState)

	page, err := s.ListarOrdenes(ctx, dto.OrdenFilter{SesionCajaID: sesion.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	movs, err := s.ListarMovimientos(ctx, sesion.ID)
	require.NoError(t, err)
	assert.Len(t, movs, 1)

	rep, err := s.ObtenerReporte(ctx, sesion.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rep.OrdenesPagadas)
}

func TestValidacionLocalNoLlamaAlServidor(t *testing.T) {
	var llamadas atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		llamadas.Add(1)
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	s, err := NuevaSesion(srv.URL, "tok")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.RegistrarMovimiento(ctx, "x", dto.MovimientoEfectivoRequest{Tipo: "entrada", Monto: dec("0"), Motivo: "fondo"})
	assert.ErrorIs(t, err, apierror.ErrValidation)
	_, err = s.RegistrarMovimiento(ctx, "x", dto.MovimientoEfectivoRequest{Tipo: "salida", Monto: dec("-1"), Motivo: "fondo"})
	assert.ErrorIs(t, err, apierror.ErrValidation)
	_, err = s.CrearOrden(ctx, dto.CrearOrdenRequest{SesionCajaID: "x", TiendaID: "T1"})
	assert.ErrorIs(t, err, apierror.ErrValidation)
	_, err = s.PagarOrden(ctx, "x", dto.PagarOrdenRequest{Pagos: []dto.PagoDetalleRequest{{Metodo: "efectivo", Monto: dec("10"), MontoRecibido: decPtr("5")}}})
	assert.ErrorIs(t, err, apierror.ErrValidation)
	_, err = s.PagarConTotal(ctx, "x", dec("22"), dto.PagarOrdenRequest{Pagos: []dto.PagoDetalleRequest{{Metodo: "tarjeta", Monto: dec("20")}}})
	assert.ErrorIs(t, err, apierror.ErrValidation)

	assert.Zero(t, llamadas.Load())
}

func TestErroresDelServidor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/caja/sesiones/con-codigo":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"detail":"la sesión ya está cerrada","code":"state"}`))
		case "/api/caja/sesiones/sin-codigo":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"detail":"duplicada"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`oops`))
		}
	}))
	defer srv.Close()

	s, err := NuevaSesion(srv.URL, "tok")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.ObtenerSesion(ctx, "con-codigo")
	assert.ErrorIs(t, err, apierror.ErrState)
	e, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, "la sesión ya está cerrada", e.Msg)

	_, err = s.ObtenerSesion(ctx, "sin-codigo")
	assert.ErrorIs(t, err, apierror.ErrConflict)

	_, err = s.ObtenerSesion(ctx, "otra")
	assert.ErrorIs(t, err, apierror.ErrNetwork)
}

func TestErrorDeTransporte(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s, err := NuevaSesion(url, "tok")
	require.NoError(t, err)
	_, err = s.ObtenerOrden(context.Background(), "x")
	assert.ErrorIs(t, err, apierror.ErrNetwork)
}

func TestSesionCerrada(t *testing.T) {
	srv, tok := servidor(t)
	s, err := NuevaSesion(srv.URL, tok)
	require.NoError(t, err)
	s.Cerrar()

	_, err = s.SesionActiva(context.Background(), "T1")
	assert.ErrorIs(t, err, ErrSesionCerrada)
}

func TestBorrador(t *testing.T) {
	tot, err := Borrador([]dto.ItemOrdenRequest{
		{MaterialCodigo: "A", Cantidad: dec("2"), PrecioUnitario: dec("10")},
	}, nil, dec("10"))
	require.NoError(t, err)
	assert.True(t, tot.Total.Equal(dec("20.88")))
}
