package router

import (
	"context"

	"cajapos/internal/config"
	"cajapos/internal/handler"
	"cajapos/internal/infra"
	"cajapos/internal/middleware"
	"cajapos/internal/realtime"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the collaborators the HTTP layer needs. DB, Redis and
// InventarioCB only feed /health and may be nil in tests.
type Deps struct {
	DB           *gorm.DB
	Redis        *redis.Client
	InventarioCB *infra.CircuitBreaker
	Hub          *realtime.Hub
	Caja         service.CajaService
	Ordenes      service.OrdenService
}

// New returns a configured Gin engine. ctx ends open websocket streams.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	limiter := middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	limiter.StartPurge(ctx)

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(middleware.ErrorHandler())
	r.Use(limiter.Middleware())

	// ── Handlers ─────────────────────────────────────────────────────────────
	cajaH := handler.NewCajaHandler(d.Caja)
	ordenesH := handler.NewOrdenesHandler(d.Ordenes)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(d.DB, d.Redis, d.InventarioCB))

	api := r.Group("/api/caja", middleware.JWTAuth(cfg.JWTSecret))
	{
		ses := api.Group("/sesiones")
		ses.POST("", middleware.RequirePermiso(middleware.PermCajaAbrir), cajaH.AbrirSesion)
		ses.GET("", middleware.RequirePermiso(middleware.PermCajaVer), cajaH.ListarSesiones)
		ses.GET("/:id", middleware.RequirePermiso(middleware.PermCajaVer), cajaH.ObtenerSesion)
		ses.GET("/:id/reporte", middleware.RequirePermiso(middleware.PermCajaReportes), cajaH.ObtenerReporte)
		ses.POST("/:id/cerrar", middleware.RequirePermiso(middleware.PermCajaCerrar), cajaH.CerrarSesion)
		ses.POST("/:id/movimientos-efectivo", middleware.RequirePermiso(middleware.PermCajaMovimientos), cajaH.RegistrarMovimiento)
		ses.GET("/:id/movimientos-efectivo", middleware.RequirePermiso(middleware.PermCajaVer), cajaH.ListarMovimientos)

		tiendas := api.Group("/tiendas/:tiendaId",
			middleware.RequirePermiso(middleware.PermCajaVer), middleware.RequireTienda("tiendaId"))
		tiendas.GET("/sesion-activa", cajaH.SesionActiva)
		if d.Hub != nil {
			eventosH := handler.NewEventosHandler(ctx, d.Hub, cfg.AllowedOrigins())
			tiendas.GET("/eventos", eventosH.Stream)
		}

		ord := api.Group("/ordenes")
		ord.POST("", middleware.RequirePermiso(middleware.PermOrdenesCrear), ordenesH.Crear)
		ord.GET("", middleware.RequirePermiso(middleware.PermCajaVer), ordenesH.Listar)
		ord.GET("/:id", middleware.RequirePermiso(middleware.PermCajaVer), ordenesH.Obtener)
		ord.PUT("/:id", middleware.RequirePermiso(middleware.PermOrdenesCrear), ordenesH.Actualizar)
		ord.DELETE("/:id", middleware.RequirePermiso(middleware.PermOrdenesCancelar), ordenesH.Cancelar)
		ord.POST("/:id/pagar", middleware.RequirePermiso(middleware.PermOrdenesPagar), ordenesH.Pagar)
	}

	return r
}
