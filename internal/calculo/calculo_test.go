package calculo_test

import (
	"testing"

	"cajapos/internal/apierror"
	"cajapos/internal/calculo"
	"cajapos/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func linea(codigo, cant, precio string) calculo.Linea {
	return calculo.Linea{MaterialCodigo: codigo, Cantidad: d(cant), PrecioUnitario: d(precio)}
}

// ─── Order builder ───────────────────────────────────────────────────────────

func TestTotales_ConImpuestoYDescuento(t *testing.T) {
	o := calculo.NuevaOrden()
	require.NoError(t, o.AgregarItem(linea("A", "2", "10")))
	require.NoError(t, o.FijarImpuesto(d("16")))
	require.NoError(t, o.FijarDescuento(d("10")))

	tot := o.Totales()
	assert.Equal(t, "20", tot.Subtotal.String())
	assert.Equal(t, "2", tot.DescuentoMonto.String())
	assert.Equal(t, "18", tot.BaseImponible.String())
	assert.Equal(t, "2.88", tot.ImpuestoMonto.String())
	assert.Equal(t, "20.88", tot.Total.String())
}

func TestTotales_RedondeaACentavos(t *testing.T) {
	o := calculo.NuevaOrden()
	require.NoError(t, o.AgregarItem(linea("A", "3", "0.333")))
	require.NoError(t, o.AgregarItem(linea("B", "1.5", "2.01")))
	require.NoError(t, o.FijarImpuesto(d("16")))

	tot := o.Totales()
	// 0.999 → 1.00 ; 3.015 → 3.02
	assert.True(t, tot.Subtotal.Equal(d("4.02")), tot.Subtotal.String())
	assert.True(t, tot.ImpuestoMonto.Equal(d("0.64")), tot.ImpuestoMonto.String())
	assert.True(t, tot.Total.Equal(tot.BaseImponible.Add(tot.ImpuestoMonto)))
}

func TestTotales_EsIdempotente(t *testing.T) {
	o := calculo.NuevaOrden()
	require.NoError(t, o.AgregarItem(linea("A", "1", "99.99")))
	require.NoError(t, o.FijarImpuesto(d("16")))
	a, b := o.Totales(), o.Totales()
	assert.True(t, a.Total.Equal(b.Total))
	assert.True(t, a.ImpuestoMonto.Equal(b.ImpuestoMonto))
	assert.Equal(t, "115.99", a.Total.StringFixed(2))
}

func TestTotales_PrecioCeroPermitido(t *testing.T) {
	o := calculo.NuevaOrden()
	require.NoError(t, o.AgregarItem(linea("REGALO", "1", "0")))
	assert.True(t, o.Totales().Total.IsZero())
	assert.NoError(t, o.Validar())
}

func TestAgregarItem_RechazaNegativos(t *testing.T) {
	o := calculo.NuevaOrden()
	err := o.AgregarItem(linea("A", "-1", "10"))
	assert.ErrorIs(t, err, apierror.ErrValidation)

	err = o.AgregarItem(linea("A", "1", "-10"))
	assert.ErrorIs(t, err, apierror.ErrValidation)

	assert.Empty(t, o.Lineas())
}

func TestFijarPorcentajes_FueraDeRango(t *testing.T) {
	o := calculo.NuevaOrden()
	for _, pct := range []string{"-0.01", "100.01"} {
		assert.ErrorIs(t, o.FijarImpuesto(d(pct)), apierror.ErrValidation, pct)
		assert.ErrorIs(t, o.FijarDescuento(d(pct)), apierror.ErrValidation, pct)
	}
	assert.NoError(t, o.FijarImpuesto(d("0")))
	assert.NoError(t, o.FijarDescuento(d("100")))
}

func TestValidar_SinItems(t *testing.T) {
	err := calculo.NuevaOrden().Validar()
	require.Error(t, err)
	assert.ErrorIs(t, err, apierror.ErrValidation)
	assert.Contains(t, err.Error(), "order must have at least one item")
}

// ─── Settlement ──────────────────────────────────────────────────────────────

func TestLiquidar_EfectivoConCambio(t *testing.T) {
	liq, err := calculo.Liquidar(d("20.88"), []calculo.PagoDetalle{
		{Metodo: model.MetodoEfectivo, Monto: d("20.88"), MontoRecibido: dp("50")},
	})
	require.NoError(t, err)
	assert.Equal(t, "29.12", liq.Cambio.StringFixed(2))
	assert.Equal(t, model.MetodoEfectivo, liq.Metodo)
	require.Len(t, liq.Pagos, 1)
	assert.Equal(t, "29.12", liq.Pagos[0].Cambio.StringFixed(2))
}

func TestLiquidar_Mixto(t *testing.T) {
	liq, err := calculo.Liquidar(d("22"), []calculo.PagoDetalle{
		{Metodo: model.MetodoTarjeta, Monto: d("15")},
		{Metodo: model.MetodoEfectivo, Monto: d("7"), MontoRecibido: dp("10")},
	})
	require.NoError(t, err)
	assert.Equal(t, model.MetodoMixto, liq.Metodo)
	assert.Equal(t, "3", liq.Cambio.String())
	assert.Equal(t, "15", liq.PorMetodo[model.MetodoTarjeta].String())
	assert.Equal(t, "7", liq.PorMetodo[model.MetodoEfectivo].String())
	assert.Nil(t, liq.Pagos[0].Cambio)
}

func TestLiquidar_EfectivoExactoSinRecibido(t *testing.T) {
	liq, err := calculo.Liquidar(d("5"), []calculo.PagoDetalle{
		{Metodo: model.MetodoEfectivo, Monto: d("5")},
	})
	require.NoError(t, err)
	assert.True(t, liq.Cambio.IsZero())
	assert.Equal(t, "5", liq.Pagos[0].MontoRecibido.String())
}

func TestLiquidar_RecibidoSoloEnEfectivo(t *testing.T) {
	liq, err := calculo.Liquidar(d("30"), []calculo.PagoDetalle{
		{Metodo: model.MetodoTarjeta, Monto: d("20"), MontoRecibido: dp("25")},
		{Metodo: model.MetodoTransferencia, Monto: d("10"), MontoRecibido: dp("10")},
	})
	require.NoError(t, err)
	for _, p := range liq.Pagos {
		assert.Nil(t, p.MontoRecibido, string(p.Metodo))
		assert.Nil(t, p.Cambio, string(p.Metodo))
	}
	assert.True(t, liq.Cambio.IsZero())
}

func TestLiquidar_MismoMetodoRepetidoNoEsMixto(t *testing.T) {
	liq, err := calculo.Liquidar(d("10"), []calculo.PagoDetalle{
		{Metodo: model.MetodoTarjeta, Monto: d("4")},
		{Metodo: model.MetodoTarjeta, Monto: d("6")},
	})
	require.NoError(t, err)
	assert.Equal(t, model.MetodoTarjeta, liq.Metodo)
}

func TestLiquidar_Errores(t *testing.T) {
	cases := []struct {
		name  string
		total string
		pagos []calculo.PagoDetalle
		msg   string
	}{
		{"sin pagos", "10", nil, "al menos un pago"},
		{"suma distinta", "22", []calculo.PagoDetalle{
			{Metodo: model.MetodoTarjeta, Monto: d("15")},
			{Metodo: model.MetodoEfectivo, Monto: d("5")},
		}, "payment total does not match order total"},
		{"recibido insuficiente", "10", []calculo.PagoDetalle{
			{Metodo: model.MetodoEfectivo, Monto: d("10"), MontoRecibido: dp("9.99")},
		}, "monto_recibido"},
		{"monto cero", "0", []calculo.PagoDetalle{
			{Metodo: model.MetodoTarjeta, Monto: d("0")},
		}, "mayor que 0"},
		{"mixto por pago", "10", []calculo.PagoDetalle{
			{Metodo: model.MetodoMixto, Monto: d("10")},
		}, "inválido"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := calculo.Liquidar(d(tc.total), tc.pagos)
			require.Error(t, err)
			assert.ErrorIs(t, err, apierror.ErrValidation)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestLiquidar_ToleranciaDeRedondeo(t *testing.T) {
	_, err := calculo.Liquidar(d("10.00"), []calculo.PagoDetalle{
		{Metodo: model.MetodoTarjeta, Monto: d("10.004")},
	})
	assert.NoError(t, err)

	_, err = calculo.Liquidar(d("10.00"), []calculo.PagoDetalle{
		{Metodo: model.MetodoTarjeta, Monto: d("10.01")},
	})
	assert.ErrorIs(t, err, apierror.ErrValidation)
}
