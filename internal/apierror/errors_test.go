package apierror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cajapos/internal/apierror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("pagar: %w", apierror.State("la orden ya está pagada"))

	assert.ErrorIs(t, err, apierror.ErrState)
	assert.NotErrorIs(t, err, apierror.ErrValidation)
	assert.ErrorIs(t, err, apierror.State("la orden ya está pagada"))
	assert.NotErrorIs(t, err, apierror.State("otro mensaje"))
}

func TestAsUnwrapsChain(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("inventario: %w", apierror.Network(cause, "inventario no disponible"))

	e, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.KindNetwork, e.Kind)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, e.Error(), "dial tcp")
}

func TestHTTPStatusRoundTrip(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, apierror.HTTPStatus(apierror.KindValidation))
	assert.Equal(t, http.StatusConflict, apierror.HTTPStatus(apierror.KindState))
	assert.Equal(t, http.StatusConflict, apierror.HTTPStatus(apierror.KindConflict))
	assert.Equal(t, http.StatusNotFound, apierror.HTTPStatus(apierror.KindNotFound))
	assert.Equal(t, http.StatusBadGateway, apierror.HTTPStatus(apierror.KindNetwork))
	assert.Equal(t, http.StatusInternalServerError, apierror.HTTPStatus(""))

	assert.Equal(t, apierror.KindValidation, apierror.KindFromStatus(http.StatusBadRequest))
	assert.Equal(t, apierror.KindNotFound, apierror.KindFromStatus(http.StatusNotFound))
	assert.Equal(t, apierror.KindNetwork, apierror.KindFromStatus(http.StatusServiceUnavailable))
}
