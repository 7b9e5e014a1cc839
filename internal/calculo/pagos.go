package calculo

import (
	"cajapos/internal/apierror"
	"cajapos/internal/model"

	"github.com/shopspring/decimal"
)

// toleranciaPago is the largest accepted gap between Σ pagos and the total.
var toleranciaPago = decimal.New(5, -3)

// PagoDetalle is one payment allocation as submitted by the cashier.
// A cash payment without MontoRecibido is taken as paid exactly.
type PagoDetalle struct {
	Metodo        model.MetodoPago
	Monto         decimal.Decimal
	MontoRecibido *decimal.Decimal
	Referencia    *string
}

// PagoLiquidado is a validated allocation; MontoRecibido and Cambio are
// set for cash only.
type PagoLiquidado struct {
	PagoDetalle
	Cambio *decimal.Decimal
}

// Liquidacion is the outcome of settling an order.
type Liquidacion struct {
	Pagos     []PagoLiquidado
	Cambio    decimal.Decimal
	PorMetodo map[model.MetodoPago]decimal.Decimal
	// Metodo is the single method used, or MetodoMixto.
	Metodo model.MetodoPago
}

// ValidarPago checks the rules that do not depend on the order total.
func ValidarPago(p PagoDetalle) error {
	if !p.Metodo.ValidoParaPago() {
		return apierror.Validation("método de pago inválido: %q", p.Metodo)
	}
	if !p.Monto.IsPositive() {
		return apierror.Validation("el monto de cada pago debe ser mayor que 0")
	}
	if p.Metodo == model.MetodoEfectivo && p.MontoRecibido != nil && p.MontoRecibido.LessThan(p.Monto) {
		return apierror.Validation("monto_recibido (%s) es menor que el monto (%s)",
			p.MontoRecibido.StringFixed(2), p.Monto.StringFixed(2))
	}
	return nil
}

// Liquidar validates pagos against total and computes change per cash
// payment. Σ monto must equal total; change never counts toward it.
func Liquidar(total decimal.Decimal, pagos []PagoDetalle) (*Liquidacion, error) {
	if len(pagos) == 0 {
		return nil, apierror.Validation("se requiere al menos un pago")
	}

	liq := &Liquidacion{
		Pagos:     make([]PagoLiquidado, 0, len(pagos)),
		Cambio:    decimal.Zero,
		PorMetodo: make(map[model.MetodoPago]decimal.Decimal, 3),
	}
	suma := decimal.Zero
	for _, p := range pagos {
		if err := ValidarPago(p); err != nil {
			return nil, err
		}
		suma = suma.Add(p.Monto)
		liq.PorMetodo[p.Metodo] = liq.PorMetodo[p.Metodo].Add(p.Monto)

		pl := PagoLiquidado{PagoDetalle: p}
		if p.Metodo == model.MetodoEfectivo {
			recibido := p.Monto
			if p.MontoRecibido != nil {
				recibido = *p.MontoRecibido
			}
			cambio := recibido.Sub(p.Monto)
			pl.MontoRecibido = &recibido
			pl.Cambio = &cambio
			liq.Cambio = liq.Cambio.Add(cambio)
		} else {
			// tendered amount only means something for cash
			pl.MontoRecibido = nil
		}
		liq.Pagos = append(liq.Pagos, pl)
	}

	if suma.Sub(total).Abs().GreaterThan(toleranciaPago) {
		return nil, apierror.Validation("payment total does not match order total (%s != %s)",
			suma.StringFixed(2), total.StringFixed(2))
	}

	if len(liq.PorMetodo) == 1 {
		liq.Metodo = pagos[0].Metodo
	} else {
		liq.Metodo = model.MetodoMixto
	}
	return liq, nil
}
