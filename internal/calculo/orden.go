// Package calculo holds the pure pricing rules of the cash register: the
// order builder (line items, tax and discount) and payment settlement.
// Nothing here does I/O; the service layer and the client both use it so
// a draft is priced identically on either side of the wire.
package calculo

import (
	"cajapos/internal/apierror"

	"github.com/shopspring/decimal"
)

var cien = decimal.NewFromInt(100)

// ImpuestoPorDefecto is applied when a request omits the tax rate.
var ImpuestoPorDefecto = decimal.NewFromInt(16)

// Linea is one line item of a draft order.
type Linea struct {
	MaterialCodigo string
	Descripcion    string
	Cantidad       decimal.Decimal
	PrecioUnitario decimal.Decimal
	Categoria      *string
	AlmacenID      *string
}

// Subtotal is cantidad × precio_unitario rounded to cents.
func (l Linea) Subtotal() decimal.Decimal {
	return l.Cantidad.Mul(l.PrecioUnitario).Round(2)
}

// Totales is the priced breakdown of an order.
type Totales struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DescuentoMonto decimal.Decimal `json:"descuento_monto"`
	BaseImponible  decimal.Decimal `json:"base_imponible"`
	ImpuestoMonto  decimal.Decimal `json:"impuesto_monto"`
	Total          decimal.Decimal `json:"total"`
}

// Orden accumulates line items and rates for a draft order.
// The zero value is an empty order with 0% tax and 0% discount.
type Orden struct {
	lineas       []Linea
	impuestoPct  decimal.Decimal
	descuentoPct decimal.Decimal
}

func NuevaOrden() *Orden { return &Orden{} }

// AgregarItem appends a line. Negative quantity or price is rejected.
func (o *Orden) AgregarItem(l Linea) error {
	if l.MaterialCodigo == "" {
		return apierror.Validation("material_codigo es obligatorio")
	}
	if l.Cantidad.IsNegative() {
		return apierror.Validation("cantidad negativa en %s", l.MaterialCodigo)
	}
	if l.PrecioUnitario.IsNegative() {
		return apierror.Validation("precio_unitario negativo en %s", l.MaterialCodigo)
	}
	o.lineas = append(o.lineas, l)
	return nil
}

// FijarImpuesto sets the tax rate in percent, within [0, 100].
func (o *Orden) FijarImpuesto(pct decimal.Decimal) error {
	if err := validarPorcentaje("impuesto_porcentaje", pct); err != nil {
		return err
	}
	o.impuestoPct = pct
	return nil
}

// FijarDescuento sets the discount rate in percent, within [0, 100].
func (o *Orden) FijarDescuento(pct decimal.Decimal) error {
	if err := validarPorcentaje("descuento_porcentaje", pct); err != nil {
		return err
	}
	o.descuentoPct = pct
	return nil
}

func (o *Orden) Lineas() []Linea { return o.lineas }

func (o *Orden) ImpuestoPorcentaje() decimal.Decimal { return o.impuestoPct }

func (o *Orden) DescuentoPorcentaje() decimal.Decimal { return o.descuentoPct }

// Validar checks the order can be submitted.
func (o *Orden) Validar() error {
	if len(o.lineas) == 0 {
		return apierror.Validation("order must have at least one item")
	}
	return nil
}

// Totales prices the order. Discount applies to the subtotal and tax to
// the discounted base; both amounts are rounded to cents before the total
// is formed, so Total == BaseImponible + ImpuestoMonto exactly.
func (o *Orden) Totales() Totales {
	subtotal := decimal.Zero
	for _, l := range o.lineas {
		subtotal = subtotal.Add(l.Subtotal())
	}
	descuento := subtotal.Mul(o.descuentoPct).Div(cien).Round(2)
	base := subtotal.Sub(descuento)
	impuesto := base.Mul(o.impuestoPct).Div(cien).Round(2)
	return Totales{
		Subtotal:       subtotal,
		DescuentoMonto: descuento,
		BaseImponible:  base,
		ImpuestoMonto:  impuesto,
		Total:          base.Add(impuesto),
	}
}

func validarPorcentaje(campo string, pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(cien) {
		return apierror.Validation("%s debe estar entre 0 y 100", campo)
	}
	return nil
}
