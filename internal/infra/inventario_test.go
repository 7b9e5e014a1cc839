package infra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cajapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordenPagada() *model.OrdenCompra {
	central, norte := "central", "norte"
	return &model.OrdenCompra{
		ID:          uuid.MustParse("6f1c1c52-7f53-4c8e-9a0e-3c7b8a9d0e11"),
		NumeroOrden: "ORD-000007",
		AlmacenID:   &central,
		Items: []model.ItemOrden{
			{MaterialCodigo: "CEM-50", Cantidad: decimal.NewFromInt(2)},
			{MaterialCodigo: "VAR-12", Cantidad: decimal.RequireFromString("1.5"), AlmacenID: &norte},
		},
	}
}

func TestDescuentoDesdeOrden(t *testing.T) {
	req := DescuentoDesdeOrden(ordenPagada())
	assert.Equal(t, "ORD-000007", req.NumeroOrden)
	require.Len(t, req.Items, 2)
	assert.Equal(t, "central", req.Items[0].AlmacenID)
	assert.Equal(t, "norte", req.Items[1].AlmacenID)
}

func TestInventarioClient_Descontar(t *testing.T) {
	var got DescuentoInventario
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movimientos/descuento", r.URL.Path)
		assert.Equal(t, "6f1c1c52-7f53-4c8e-9a0e-3c7b8a9d0e11", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"movimientos":["mov-1","mov-2"]}`))
	}))
	defer srv.Close()

	c := NewInventarioClient(srv.URL+"/", time.Second, NewCircuitBreaker(DefaultCBConfig("inventario")))
	movs, err := c.Descontar(context.Background(), DescuentoDesdeOrden(ordenPagada()))
	require.NoError(t, err)
	assert.Equal(t, []string{"mov-1", "mov-2"}, movs)
	assert.Len(t, got.Items, 2)
}

func TestInventarioClient_RechazoNoAbreCircuito(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "stock insuficiente", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "inventario", FailureThreshold: 1})
	c := NewInventarioClient(srv.URL, time.Second, cb)

	_, err := c.Descontar(context.Background(), DescuentoDesdeOrden(ordenPagada()))
	require.Error(t, err)
	assert.True(t, IsRechazo(err))
	assert.Contains(t, err.Error(), "stock insuficiente")
	assert.Equal(t, CBClosed, cb.State())
}

func TestInventarioClient_ErrorServidorAbreCircuito(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "inventario", FailureThreshold: 1})
	c := NewInventarioClient(srv.URL, time.Second, cb)

	_, err := c.Descontar(context.Background(), DescuentoDesdeOrden(ordenPagada()))
	require.Error(t, err)
	assert.False(t, IsRechazo(err))
	assert.Equal(t, CBOpen, cb.State())

	_, err = c.Descontar(context.Background(), DescuentoDesdeOrden(ordenPagada()))
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
