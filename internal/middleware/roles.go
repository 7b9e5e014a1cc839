package middleware

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Rol is the closed set of roles a token can carry.
type Rol string

const (
	RolCajero        Rol = "cajero"
	RolSupervisor    Rol = "supervisor"
	RolAdministrador Rol = "administrador"
)

type Permiso string

const (
	PermCajaAbrir       Permiso = "caja:abrir"
	PermCajaVer         Permiso = "caja:ver"
	PermCajaCerrar      Permiso = "caja:cerrar"
	PermCajaMovimientos Permiso = "caja:movimientos"
	PermCajaReportes    Permiso = "caja:reportes"
	PermOrdenesCrear    Permiso = "ordenes:crear"
	PermOrdenesPagar    Permiso = "ordenes:pagar"
	PermOrdenesCancelar Permiso = "ordenes:cancelar"
)

var permisosCajero = []Permiso{
	PermCajaAbrir, PermCajaVer, PermCajaCerrar, PermCajaMovimientos,
	PermOrdenesCrear, PermOrdenesPagar,
}

var permisosPorRol = map[Rol]map[Permiso]bool{
	RolCajero:        setDe(permisosCajero...),
	RolSupervisor:    setDe(append(permisosCajero, PermCajaReportes, PermOrdenesCancelar)...),
	RolAdministrador: setDe(append(permisosCajero, PermCajaReportes, PermOrdenesCancelar)...),
}

func setDe(ps ...Permiso) map[Permiso]bool {
	m := make(map[Permiso]bool, len(ps))
	for _, p := range ps {
		m[p] = true
	}
	return m
}

// Tiene reports whether r grants p.
func (r Rol) Tiene(p Permiso) bool { return permisosPorRol[r][p] }

// aliases accepted in tokens minted by older tooling
var aliasesRol = map[string]Rol{
	"cajero":         RolCajero,
	"cajera":         RolCajero,
	"supervisor":     RolSupervisor,
	"supervisora":    RolSupervisor,
	"administrador":  RolAdministrador,
	"administradora": RolAdministrador,
	"admin":          RolAdministrador,
}

// ParseRol resolves a role name ignoring case, accents and surrounding
// space ("Administrador", "SUPERVISÓR"). Unknown names are an error.
func ParseRol(s string) (Rol, error) {
	folded, _, err := transform.String(plegador(), strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("rol %q: %w", s, err)
	}
	if r, ok := aliasesRol[folded]; ok {
		return r, nil
	}
	return "", fmt.Errorf("rol desconocido: %q", s)
}

// plegador strips combining marks and case-folds. A transformer is
// stateful, so a new chain is built per call.
func plegador() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
}
