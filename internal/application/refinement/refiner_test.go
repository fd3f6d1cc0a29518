package refinement_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/ventas-sim/internal/application/refinement"
	"github.com/jhoicas/ventas-sim/internal/domain/entity"
	"github.com/jhoicas/ventas-sim/internal/domain/ledger"
	"github.com/jhoicas/ventas-sim/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tests del refinador iterativo: convergencia hacia arriba (deduciendo stock),
// hacia abajo (sin reponer), eliminación de líneas en cero y el reporte
// honesto cuando no converge.
// ──────────────────────────────────────────────────────────────────────────────

var vat15 = decimal.NewFromFloat(0.15)

func mustLot(t *testing.T, decl, item string, qty int, price float64) *entity.Lot {
	t.Helper()
	lot, err := entity.NewLot(decl, item, entity.ClassOutsideInspection,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		qty, decimal.NewFromFloat(price/2), decimal.NewFromFloat(price))
	require.NoError(t, err)
	return lot
}

// invoiceFor arma una factura deduciendo qty unidades del lote en el libro,
// igual que lo haría el compositor.
func invoiceFor(t *testing.T, led *ledger.Ledger, lot *entity.Lot, qty int, issuedAt time.Time) *entity.Invoice {
	t.Helper()
	rec, err := led.Deduct(lot.LotID, qty)
	require.NoError(t, err)
	line, err := entity.NewLineItem(rec, vat15)
	require.NoError(t, err)

	inv := &entity.Invoice{
		Type:         entity.InvoiceTypeSimplified,
		CustomerName: entity.CashCustomerName,
		IssuedAt:     issuedAt,
		Lines:        []entity.LineItem{line},
	}
	inv.Recalculate()
	return inv
}

func TestRefine_YaDentroDeTolerancia(t *testing.T) {
	lot := mustLot(t, "D-1", "a", 100, 10)
	led, err := ledger.New([]*entity.Lot{lot})
	require.NoError(t, err)

	inv := invoiceFor(t, led, lot, 10, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC))
	// Total = 10 × 10 × 1.15 = 115.00
	r := refinement.New(led, vat15, 50, logger.Nop())
	res := r.Refine([]*entity.Invoice{inv}, decimal.NewFromInt(115), decimal.NewFromInt(5))

	assert.True(t, res.Converged)
	assert.Zero(t, res.Iterations, "dentro de tolerancia no se itera")
	assert.Equal(t, 10, inv.Lines[0].Quantity, "la factura no debe tocarse")
}

// TestRefine_ConvergeHaciaArriba: cuando falta venta, el refinador suma
// unidades deduciéndolas del libro hasta quedar dentro de la tolerancia.
func TestRefine_ConvergeHaciaArriba(t *testing.T) {
	lot := mustLot(t, "D-1", "a", 100, 10)
	led, err := ledger.New([]*entity.Lot{lot})
	require.NoError(t, err)

	inv := invoiceFor(t, led, lot, 10, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC))
	// Total actual 115.00; meta 161.00 = 14 × 11.50: faltan 4 unidades.
	r := refinement.New(led, vat15, 50, logger.Nop())
	res := r.Refine([]*entity.Invoice{inv}, decimal.NewFromInt(161), decimal.NewFromInt(5))

	assert.True(t, res.Converged)
	assert.Equal(t, 14, inv.Lines[0].Quantity)
	assert.Equal(t, 100-14, lot.QtyRemaining, "cada unidad extra debe salir del libro")
	assert.True(t, res.FinalVariance.Abs().LessThanOrEqual(decimal.NewFromInt(5)))
}

// TestRefine_ConvergeHaciaAbajo: cuando sobra venta, se restan unidades sin
// reponer stock al libro.
func TestRefine_ConvergeHaciaAbajo(t *testing.T) {
	lot := mustLot(t, "D-1", "a", 100, 10)
	led, err := ledger.New([]*entity.Lot{lot})
	require.NoError(t, err)

	inv := invoiceFor(t, led, lot, 20, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC))
	// Total actual 230.00; meta 172.50 = 15 × 11.50: sobran 5 unidades.
	r := refinement.New(led, vat15, 50, logger.Nop())
	res := r.Refine([]*entity.Invoice{inv}, decimal.NewFromFloat(172.50), decimal.NewFromInt(5))

	assert.True(t, res.Converged)
	assert.Equal(t, 15, inv.Lines[0].Quantity)
	assert.Equal(t, 80, lot.QtyRemaining,
		"los decrementos no reponen stock: no existe primitiva de reposición")
}

// TestRefine_EliminaLineaEnCero: una línea que llega a cantidad cero se
// elimina de la factura en lugar de quedar como línea fantasma.
func TestRefine_EliminaLineaEnCero(t *testing.T) {
	barato := mustLot(t, "D-1", "a", 100, 2)
	caro := mustLot(t, "D-2", "b", 100, 50)
	led, err := ledger.New([]*entity.Lot{barato, caro})
	require.NoError(t, err)

	recA, err := led.Deduct(barato.LotID, 1)
	require.NoError(t, err)
	recB, err := led.Deduct(caro.LotID, 4)
	require.NoError(t, err)
	lineA, err := entity.NewLineItem(recA, vat15)
	require.NoError(t, err)
	lineB, err := entity.NewLineItem(recB, vat15)
	require.NoError(t, err)

	inv := &entity.Invoice{
		Type:     entity.InvoiceTypeSimplified,
		IssuedAt: time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC),
		Lines:    []entity.LineItem{lineA, lineB},
	}
	inv.Recalculate()
	// Total = (1×2 + 4×50) × 1.15 = 232.30; meta 230.00: sobra exactamente la
	// línea barata (2.30 inc. IVA).
	r := refinement.New(led, vat15, 50, logger.Nop())
	res := r.Refine([]*entity.Invoice{inv}, decimal.NewFromInt(230), decimal.NewFromInt(1))

	assert.True(t, res.Converged)
	require.Len(t, inv.Lines, 1, "la línea en cero debe eliminarse")
	assert.Equal(t, caro.LotID, inv.Lines[0].LotID)
	assert.True(t, inv.Total.Equal(decimal.NewFromInt(230)))
}

// TestRefine_SinStockReportaVarianza: si la meta pide subir pero el libro está
// seco, el refinador se detiene y reporta la varianza final sin inventar venta.
func TestRefine_SinStockReportaVarianza(t *testing.T) {
	lot := mustLot(t, "D-1", "a", 10, 10)
	led, err := ledger.New([]*entity.Lot{lot})
	require.NoError(t, err)

	inv := invoiceFor(t, led, lot, 10, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC))
	// El lote quedó agotado; la meta pide 50 más.
	r := refinement.New(led, vat15, 50, logger.Nop())
	res := r.Refine([]*entity.Invoice{inv}, decimal.NewFromInt(165), decimal.NewFromInt(5))

	assert.False(t, res.Converged)
	assert.Equal(t, 10, inv.Lines[0].Quantity, "sin stock no se suben cantidades")
	assert.True(t, res.FinalVariance.Equal(decimal.NewFromInt(50)))
}

// TestRefine_PrefiereDiasPicoParaSubir: con varianza positiva el refinador
// ajusta primero facturas de jueves, sábado o la ventana de salario.
func TestRefine_PrefiereDiasPicoParaSubir(t *testing.T) {
	lotPico := mustLot(t, "D-1", "a", 100, 10)
	lotLento := mustLot(t, "D-2", "b", 100, 10)
	led, err := ledger.New([]*entity.Lot{lotPico, lotLento})
	require.NoError(t, err)

	jueves := time.Date(2024, 2, 8, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Thursday, jueves.Weekday())
	lunes := time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, lunes.Weekday())

	invPico := invoiceFor(t, led, lotPico, 10, jueves)
	invLento := invoiceFor(t, led, lotLento, 10, lunes)

	// Faltan 2 unidades (23.00 inc. IVA) para la meta.
	r := refinement.New(led, vat15, 50, logger.Nop())
	res := r.Refine([]*entity.Invoice{invPico, invLento}, decimal.NewFromInt(253), decimal.NewFromInt(1))

	assert.True(t, res.Converged)
	assert.Equal(t, 12, invPico.Lines[0].Quantity, "las unidades extra van al día pico")
	assert.Equal(t, 10, invLento.Lines[0].Quantity)
}

// TestRefine_TopeDeIteraciones: el presupuesto de iteraciones acota el lazo
// aunque no se haya convergido.
func TestRefine_TopeDeIteraciones(t *testing.T) {
	lot := mustLot(t, "D-1", "a", 10000, 1)
	led, err := ledger.New([]*entity.Lot{lot})
	require.NoError(t, err)

	inv := invoiceFor(t, led, lot, 1, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC))
	// Meta lejanísima con líneas de 1.15 inc. IVA: imposible en 5 iteraciones.
	r := refinement.New(led, vat15, 5, logger.Nop())
	res := r.Refine([]*entity.Invoice{inv}, decimal.NewFromInt(5000), decimal.NewFromFloat(0.1))

	assert.False(t, res.Converged)
	assert.Equal(t, 5, res.Iterations)
}
