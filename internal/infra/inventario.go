package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cajapos/internal/model"

	"github.com/shopspring/decimal"
)

// ItemDescuento is one stock decrement line sent to the inventory system.
type ItemDescuento struct {
	MaterialCodigo string          `json:"material_codigo"`
	Cantidad       decimal.Decimal `json:"cantidad"`
	AlmacenID      string          `json:"almacen_id"`
}

// DescuentoInventario asks the inventory system to take a paid order's items
// out of stock. OrdenID doubles as the idempotency key on the remote side.
type DescuentoInventario struct {
	OrdenID     string          `json:"orden_id"`
	NumeroOrden string          `json:"numero_orden"`
	Items       []ItemDescuento `json:"items"`
}

// DescuentoResultado lists the ids of the stock movements created remotely.
type DescuentoResultado struct {
	Movimientos []string `json:"movimientos"`
}

// DescuentoDesdeOrden builds the decrement request for a paid order.
func DescuentoDesdeOrden(o *model.OrdenCompra) DescuentoInventario {
	req := DescuentoInventario{
		OrdenID:     o.ID.String(),
		NumeroOrden: o.NumeroOrden,
		Items:       make([]ItemDescuento, 0, len(o.Items)),
	}
	for i, it := range o.Items {
		req.Items = append(req.Items, ItemDescuento{
			MaterialCodigo: it.MaterialCodigo,
			Cantidad:       it.Cantidad,
			AlmacenID:      o.ItemAlmacen(i),
		})
	}
	return req
}

// RechazoError is a 4xx answer from the inventory system: the request will
// not succeed on retry and does not count against the circuit breaker.
type RechazoError struct {
	Status int
	Detail string
}

func (e *RechazoError) Error() string {
	return fmt.Sprintf("inventario: rejected with %d: %s", e.Status, e.Detail)
}

func IsRechazo(err error) bool {
	var r *RechazoError
	return errors.As(err, &r)
}

// InventarioClient talks to the external inventory system over HTTP.
// Every call goes through the circuit breaker.
type InventarioClient struct {
	baseURL    string
	httpClient *http.Client
	cb         *CircuitBreaker
}

func NewInventarioClient(baseURL string, timeout time.Duration, cb *CircuitBreaker) *InventarioClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &InventarioClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cb:         cb,
	}
}

// Breaker exposes the breaker state for /health.
func (c *InventarioClient) Breaker() *CircuitBreaker { return c.cb }

// Descontar posts the decrement and returns the created movement ids.
func (c *InventarioClient) Descontar(ctx context.Context, req DescuentoInventario) ([]string, error) {
	var result *DescuentoResultado
	err := c.cb.Execute(func() error {
		r, err := c.post(ctx, req)
		result = r
		return err
	}, IsRechazo)
	if err != nil {
		return nil, err
	}
	return result.Movimientos, nil
}

func (c *InventarioClient) post(ctx context.Context, payload DescuentoInventario) (*DescuentoResultado, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("inventario: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/movimientos/descuento", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("inventario: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", payload.OrdenID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inventario: unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &RechazoError{Status: resp.StatusCode, Detail: strings.TrimSpace(string(detail))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("inventario: returned %d", resp.StatusCode)
	}

	var result DescuentoResultado
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("inventario: decode response: %w", err)
	}
	if result.Movimientos == nil {
		result.Movimientos = []string{}
	}
	return &result, nil
}
