package handler

import (
	"errors"
	"net/http"
	"reflect"

	"cajapos/internal/apierror"
	"cajapos/internal/dto"
	"cajapos/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, &apierror.APIError{
			Detail: "JSON invalido: " + err.Error(),
			Code:   apierror.KindValidation,
		})
		return false
	}
	return validateStruct(c, req)
}

// bindQuery is bindAndValidate for filters in the query string.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, &apierror.APIError{
			Detail: "parametros invalidos: " + err.Error(),
			Code:   apierror.KindValidation,
		})
		return false
	}
	return validateStruct(c, req)
}

func validateStruct(c *gin.Context, req interface{}) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, apierror.New(err.Error()))
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fe.Tag()
	}
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
	return false
}

// paramID parses a uuid path parameter. A malformed id cannot name an
// existing resource, so it is reported as not found.
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		fail(c, apierror.NotFound("%s no encontrado", name))
		return uuid.Nil, false
	}
	return id, true
}

// respond writes v inside the {data: ...} envelope.
func respond[T any](c *gin.Context, status int, v T) {
	c.JSON(status, dto.Envelope[T]{Data: v})
}

// fail hands err to middleware.ErrorHandler.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func usuario(c *gin.Context) string {
	if p := middleware.GetPrincipal(c); p != nil {
		return p.Usuario
	}
	return ""
}

// enTienda writes 403 and returns false when the caller may not act on
// tiendaID.
func enTienda(c *gin.Context, tiendaID string) bool {
	if middleware.GetPrincipal(c).PuedeOperar(tiendaID) {
		return true
	}
	c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("Tienda fuera del alcance del usuario"))
	return false
}

// filtrarTienda pins a list filter to the cashier's own store.
func filtrarTienda(c *gin.Context, tiendaID *string) bool {
	p := middleware.GetPrincipal(c)
	if p != nil && p.Rol == middleware.RolCajero && *tiendaID == "" {
		*tiendaID = p.TiendaID
	}
	return enTienda(c, *tiendaID)
}

// restringido reports whether the caller is bound to a single store, so
// id-addressed resources need a store check before acting.
func restringido(c *gin.Context) bool {
	p := middleware.GetPrincipal(c)
	return p == nil || p.Rol == middleware.RolCajero
}
