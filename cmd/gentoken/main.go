// cmd/gentoken/main.go prints a signed JWT for a cashier, supervisor or
// administrator. The secret comes from --secret or JWT_SECRET.
//
// Uso: go run ./cmd/gentoken --usuario ana --rol supervisor --tienda T1
package main

import (
	"fmt"
	"os"
	"time"

	"cajapos/internal/middleware"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	flags := pflag.NewFlagSet("gentoken", pflag.ExitOnError)
	flags.String("usuario", "", "nombre del usuario (obligatorio)")
	flags.String("rol", "cajero", "cajero | supervisor | administrador")
	flags.String("tienda", "", "tienda_id del usuario (obligatorio)")
	flags.Duration("ttl", 8*time.Hour, "vigencia del token")
	flags.String("secret", "", "secreto HMAC; por defecto JWT_SECRET")
	_ = flags.Parse(os.Args[1:])

	v := viper.New()
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)
	_ = v.BindEnv("secret", "JWT_SECRET")

	usuario, tienda := v.GetString("usuario"), v.GetString("tienda")
	if usuario == "" || tienda == "" {
		fmt.Fprintln(os.Stderr, "--usuario y --tienda son obligatorios")
		flags.PrintDefaults()
		os.Exit(2)
	}
	rol, err := middleware.ParseRol(v.GetString("rol"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	secret := v.GetString("secret")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "falta el secreto: --secret o JWT_SECRET")
		os.Exit(2)
	}

	tok, err := middleware.FirmarToken(secret, usuario, rol, tienda, v.GetDuration("ttl"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
