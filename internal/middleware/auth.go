package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cajapos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const PrincipalKey = "principal"

// JWTClaims are the custom claims embedded in every access token.
type JWTClaims struct {
	Usuario  string `json:"usuario"`
	Rol      string `json:"rol"`
	TiendaID string `json:"tienda_id,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller. The role is resolved once, when
// the token is validated.
type Principal struct {
	Usuario  string
	Rol      Rol
	TiendaID string
}

// PuedeOperar reports whether the caller may act on tiendaID. Cashiers are
// bound to the store in their token; a cashier token without one grants
// no store. Supervisors and administrators work across stores.
func (p *Principal) PuedeOperar(tiendaID string) bool {
	if p == nil {
		return false
	}
	if p.Rol != RolCajero {
		return true
	}
	return p.TiendaID != "" && p.TiendaID == tiendaID
}

// FirmarToken issues an HS256 token for usuario with the given role.
func FirmarToken(secret, usuario string, rol Rol, tiendaID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Usuario:  usuario,
		Rol:      string(rol),
		TiendaID: tiendaID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   usuario,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidarToken parses tokenStr and resolves its principal.
func ValidarToken(secret, tokenStr string) (*Principal, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token inválido")
	}
	rol, err := ParseRol(claims.Rol)
	if err != nil {
		return nil, err
	}
	usuario := claims.Usuario
	if usuario == "" {
		usuario = claims.Subject
	}
	if usuario == "" {
		return nil, fmt.Errorf("token sin usuario")
	}
	return &Principal{Usuario: usuario, Rol: rol, TiendaID: claims.TiendaID}, nil
}

// JWTAuth validates the Bearer token on every protected route. Browsers
// cannot set headers on a websocket upgrade, so GET requests may also
// pass the token as ?token=.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			tokenStr = strings.TrimPrefix(header, "Bearer ")
		} else if c.Request.Method == http.MethodGet {
			tokenStr = c.Query("token")
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Autenticacion requerida"))
			return
		}

		p, err := ValidarToken(secret, tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Token invalido o expirado"))
			return
		}

		c.Set(PrincipalKey, p)
		c.Next()
	}
}

// RequirePermiso rejects requests whose role does not grant p.
func RequirePermiso(p Permiso) gin.HandlerFunc {
	return func(c *gin.Context) {
		pr := GetPrincipal(c)
		if pr == nil || !pr.Rol.Tiene(p) {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("Permisos insuficientes"))
			return
		}
		c.Next()
	}
}

// RequireTienda rejects callers outside the store named by the path
// parameter param.
func RequireTienda(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetPrincipal(c).PuedeOperar(c.Param(param)) {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("Tienda fuera del alcance del usuario"))
			return
		}
		c.Next()
	}
}

// GetPrincipal returns the caller set by JWTAuth, or nil.
func GetPrincipal(c *gin.Context) *Principal {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}
