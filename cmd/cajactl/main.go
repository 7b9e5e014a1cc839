// cmd/cajactl is a small operator CLI over the caja API.
//
// The API URL and token come from --url/--token or CAJA_API_URL/CAJA_TOKEN.
//
//	cajactl sesion-activa --tienda T1
//	cajactl abrir --tienda T1 --efectivo 100
//	cajactl movimiento --sesion <id> --tipo salida --monto 20 --motivo "cambio"
//	cajactl cerrar --sesion <id> --efectivo 180.50
//	cajactl reporte --sesion <id>
//	cajactl ordenes --sesion <id> [--estado pendiente]
//	cajactl cancelar --orden <id>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"cajapos/internal/apierror"
	"cajapos/internal/cajaclient"
	"cajapos/internal/dto"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type comando struct {
	ayuda string
	flags func(fs *pflag.FlagSet)
	run   func(ctx context.Context, c *cajaclient.Sesion, v *viper.Viper) (any, error)
}

var comandos = map[string]comando{
	"sesion-activa": {
		ayuda: "muestra la sesión abierta de una tienda",
		flags: func(fs *pflag.FlagSet) { fs.String("tienda", "", "tienda_id") },
		run: func(ctx context.Context, c *cajaclient.Sesion, v *viper.Viper) (any, error) {
			s, err := c.SesionActiva(ctx, v.GetString("tienda"))
			if err == nil && s == nil {
				return map[string]string{"detail": "sin sesión abierta"}, nil
			}
			return s, err
		},
	},
	"abrir": {
		ayuda: "abre una sesión de caja",
		flags: func(fs *pflag.FlagSet) {
			fs.String("tienda", "", "tienda_id")
			fs.String("efectivo", "0", "efectivo de apertura")
			fs.String("nota", "", "nota de apertura")
		},
		run: func(ctx context.Context, c *cajaclient.Sesion, v *viper.Viper) (any, error) {
			efectivo, err := monto(v, "efectivo")
			if err != nil {
				return nil, err
			}
			return c.AbrirSesion(ctx, dto.AbrirSesionRequest{
				TiendaID:         v.GetString("tienda"),
				EfectivoApertura: efectivo,
				NotaApertura:     opcional(v.GetString("nota")),
			})
		},
	},
	"movimiento": {
		ayuda: "registra una entrada o salida de efectivo",
		flags: func(fs *pflag.FlagSet) {
			fs.String("sesion", "", "id de la sesión")
			fs.String("tipo", "", "entrada | salida")
			fs.String("monto", "0", "monto (> 0)")
			fs.String("motivo", "", "motivo")
		},
		run: func(ctx context.Context, c *cajaclient.Sesion, v *viper.Viper) (any, error) {
			m, err := monto(v, "monto")
			if err != nil {
				return nil, err
			}
			return c.RegistrarMovimiento(ctx, v.GetString("sesion"), dto.MovimientoEfectivoRequest{
				Tipo:   v.GetString("tipo"),
				Monto:  m,
				Motivo: v.GetString("motivo"),
			})
		},
	},
	"cerrar": {
		ayuda: "cierra una sesión con el efectivo contado",
		flags: func(fs *pflag.FlagSet) {
			fs.String("sesion", "", "id de la sesión")
			fs.String("efectivo", "0", "efectivo contado")
			fs.String("nota", "", "nota de cierre")
		},
		run: func(ctx context.Context, c *cajaclient.Sesion, v *viper.Viper) (any, error) {
			efectivo, err := monto(v, "efectivo")
			if err != nil {
				return nil, err
			}
			return c.CerrarSesion(ctx, v.GetString("sesion"), dto.CerrarSesionRequest{
				EfectivoCierre: efectivo,
				NotaCierre:     opcional(v.GetString("nota")),
			})
		},
	},
	"reporte": {
		ayuda: "muestra el reporte de una sesión",
		flags: func(fs *pflag.FlagSet) { fs.String("sesion", "", "id de la sesión") },
		run: func(ctx context.Context, c *cajaclient.Sesion, v *viper.Viper) (any, error) {
			return c.ObtenerReporte(ctx, v.GetString("sesion"))
		},
	},
	"ordenes": {
		ayuda: "lista las órdenes de una sesión",
		flags: func(fs *pflag.FlagSet) {
			fs.String("sesion", "", "id de la sesión")
			fs.String("estado", "", "pendiente | pagada | cancelada")
			fs.Int("page", 1, "página")
			fs.Int("limit", 20, "tamaño de página")
		},
		run: func(ctx context.Context, c *cajaclient.Sesion, v *viper.Viper) (any, error) {
			return c.ListarOrdenes(ctx, dto.OrdenFilter{
				SesionCajaID: v.GetString("sesion"),
				Estado:       v.GetString("estado"),
				Paginacion:   dto.Paginacion{Page: v.GetInt("page"), Limit: v.GetInt("limit")},
			})
		},
	},
	"cancelar": {
		ayuda: "cancela una orden pendiente",
		flags: func(fs *pflag.FlagSet) { fs.String("orden", "", "id de la orden") },
		run: func(ctx context.Context, c *cajaclient.Sesion, v *viper.Viper) (any, error) {
			return c.CancelarOrden(ctx, v.GetString("orden"))
		},
	},
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" {
		uso()
		os.Exit(2)
	}
	nombre := os.Args[1]
	cmd, ok := comandos[nombre]
	if !ok {
		fmt.Fprintf(os.Stderr, "comando desconocido: %s\n\n", nombre)
		uso()
		os.Exit(2)
	}

	fs := pflag.NewFlagSet(nombre, pflag.ExitOnError)
	fs.String("url", "http://localhost:8000", "URL base de la API")
	fs.String("token", "", "token JWT")
	fs.Duration("timeout", 15*time.Second, "timeout por petición")
	cmd.flags(fs)
	_ = fs.Parse(os.Args[2:])

	v := viper.New()
	v.SetEnvPrefix("CAJA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(fs)
	_ = v.BindEnv("url", "CAJA_API_URL")

	cliente, err := cajaclient.NuevaSesion(v.GetString("url"), v.GetString("token"),
		cajaclient.ConTimeout(v.GetDuration("timeout")))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer cliente.Cerrar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, err := cmd.run(ctx, cliente, v)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(codigoSalida(err))
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func monto(v *viper.Viper, flag string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.GetString(flag))
	if err != nil {
		return decimal.Zero, apierror.Validation("--%s: monto inválido %q", flag, v.GetString(flag))
	}
	return d, nil
}

func opcional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// codigoSalida: 3 for rejected input, 4 for state/conflict, 5 for not found,
// 1 for everything else.
func codigoSalida(err error) int {
	e, ok := apierror.As(err)
	if !ok {
		return 1
	}
	switch e.Kind {
	case apierror.KindValidation:
		return 3
	case apierror.KindState, apierror.KindConflict:
		return 4
	case apierror.KindNotFound:
		return 5
	default:
		return 1
	}
}

func uso() {
	fmt.Fprintln(os.Stderr, "uso: cajactl <comando> [flags]\n\ncomandos:")
	nombres := make([]string, 0, len(comandos))
	for n := range comandos {
		nombres = append(nombres, n)
	}
	sort.Strings(nombres)
	for _, n := range nombres {
		fmt.Fprintf(os.Stderr, "  %-14s %s\n", n, comandos[n].ayuda)
	}
}
