package entity_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/ventas-sim/internal/domain"
	"github.com/jhoicas/ventas-sim/internal/domain/entity"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tests de entidades: aritmética de punto fijo (redondeo a 2 decimales en cada
// paso), validación de constructores y el invariante agregado de la factura.
// ──────────────────────────────────────────────────────────────────────────────

var vat15 = decimal.NewFromFloat(0.15)

func TestNewLot_RechazaPrecioBajoCosto(t *testing.T) {
	_, err := entity.NewLot("D-100", "Aceite", entity.ClassOutsideInspection,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		10, decimal.NewFromInt(10), decimal.NewFromInt(9))
	assert.ErrorIs(t, err, domain.ErrBelowCost,
		"un lote a pérdida jamás debe entrar al libro")
}

func TestNewLot_RechazaIdentidadVacia(t *testing.T) {
	_, err := entity.NewLot("", "Aceite", entity.ClassOutsideInspection,
		time.Time{}, time.Time{}, 10, decimal.Zero, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = entity.NewLot("D-100", "  ", entity.ClassOutsideInspection,
		time.Time{}, time.Time{}, 10, decimal.Zero, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewLot_RechazaClasificacionDesconocida(t *testing.T) {
	_, err := entity.NewLot("D-100", "Aceite", "CLASE_INVENTADA",
		time.Time{}, time.Time{}, 10, decimal.Zero, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// TestNewLot_FechaBodegaNuncaAntesDeImportacion: una fecha de bodega anterior
// a la importación se ajusta en silencio al día de importación.
func TestNewLot_FechaBodegaNuncaAntesDeImportacion(t *testing.T) {
	importDate := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	lot, err := entity.NewLot("D-101", "Harina", entity.ClassInspectionSelective,
		importDate, importDate.AddDate(0, 0, -3),
		10, decimal.NewFromInt(1), decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.True(t, lot.StockDate.Equal(importDate))
}

func TestMakeLotID(t *testing.T) {
	assert.Equal(t, "D-5:Té negro", entity.MakeLotID("D-5", "Té negro"))
}

// TestLineItem_ArithmeticaCerrada verifica la política de redondeo: subtotal
// redondeado, IVA redondeado sobre el subtotal ya redondeado, total = suma
// exacta de los dos. Nunca total = subtotal×1.15 directo.
func TestLineItem_ArithmeticaCerrada(t *testing.T) {
	li, err := entity.NewLineItem(entity.DeductionRecord{
		LotID:          "D-1:Caramelo",
		Quantity:       3,
		UnitPriceExVAT: decimal.NewFromFloat(3.33),
		UnitCostExVAT:  decimal.NewFromFloat(1),
	}, vat15)
	require.NoError(t, err)

	// 3 × 3.33 = 9.99; IVA = 9.99 × 0.15 = 1.4985 → 1.50; total = 11.49
	assert.True(t, li.Subtotal.Equal(decimal.NewFromFloat(9.99)), "subtotal = %s", li.Subtotal)
	assert.True(t, li.VATAmount.Equal(decimal.NewFromFloat(1.50)), "IVA = %s", li.VATAmount)
	assert.True(t, li.Total.Equal(li.Subtotal.Add(li.VATAmount)),
		"el total debe ser la suma exacta de subtotal + IVA")
}

func TestNewLineItem_Rechazos(t *testing.T) {
	_, err := entity.NewLineItem(entity.DeductionRecord{
		LotID:          "D-1:X",
		Quantity:       1,
		UnitPriceExVAT: decimal.NewFromInt(5),
		UnitCostExVAT:  decimal.NewFromInt(6),
	}, vat15)
	assert.ErrorIs(t, err, domain.ErrBelowCost)

	_, err = entity.NewLineItem(entity.DeductionRecord{
		LotID:          "D-1:X",
		Quantity:       0,
		UnitPriceExVAT: decimal.NewFromInt(5),
		UnitCostExVAT:  decimal.NewFromInt(1),
	}, vat15)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLineItem_RepriceTrasCambioDeCantidad(t *testing.T) {
	li, err := entity.NewLineItem(entity.DeductionRecord{
		LotID:          "D-2:Yogur",
		Quantity:       4,
		UnitPriceExVAT: decimal.NewFromFloat(2.50),
		UnitCostExVAT:  decimal.NewFromInt(1),
	}, vat15)
	require.NoError(t, err)

	li.Quantity = 7
	li.Reprice(vat15)

	assert.True(t, li.Subtotal.Equal(decimal.NewFromFloat(17.50)))
	assert.True(t, li.VATAmount.Equal(decimal.NewFromFloat(2.63)), "17.50 × 0.15 = 2.625 → 2.63")
	assert.True(t, li.Total.Equal(decimal.NewFromFloat(20.13)))
}

// TestInvoice_Recalculate: los agregados de la factura deben igualar la suma
// de sus líneas tras cualquier mutación.
func TestInvoice_Recalculate(t *testing.T) {
	l1, err := entity.NewLineItem(entity.DeductionRecord{
		LotID: "D-1:A", Quantity: 2,
		UnitPriceExVAT: decimal.NewFromInt(10), UnitCostExVAT: decimal.NewFromInt(5),
	}, vat15)
	require.NoError(t, err)
	l2, err := entity.NewLineItem(entity.DeductionRecord{
		LotID: "D-2:B", Quantity: 1,
		UnitPriceExVAT: decimal.NewFromFloat(7.77), UnitCostExVAT: decimal.NewFromInt(1),
	}, vat15)
	require.NoError(t, err)

	inv := &entity.Invoice{Type: entity.InvoiceTypeSimplified, Lines: []entity.LineItem{l1, l2}}
	inv.Recalculate()

	wantSub := l1.Subtotal.Add(l2.Subtotal)
	wantVAT := l1.VATAmount.Add(l2.VATAmount)
	assert.True(t, inv.Subtotal.Equal(wantSub))
	assert.True(t, inv.VATAmount.Equal(wantVAT))
	assert.True(t, inv.Total.Equal(wantSub.Add(wantVAT)))
}

func TestInvoice_RemoveLine(t *testing.T) {
	inv := &entity.Invoice{Lines: []entity.LineItem{
		{LotID: "a"}, {LotID: "b"}, {LotID: "c"},
	}}

	inv.RemoveLine(1)
	require.Len(t, inv.Lines, 2)
	assert.Equal(t, "a", inv.Lines[0].LotID)
	assert.Equal(t, "c", inv.Lines[1].LotID)

	inv.RemoveLine(99) // fuera de rango: no-op
	assert.Len(t, inv.Lines, 2)
}

func TestCustomerIntent_SubtotalExVAT(t *testing.T) {
	c := entity.CustomerIntent{AmountIncVAT: decimal.NewFromInt(1150)}
	assert.True(t, c.SubtotalExVAT(vat15).Equal(decimal.NewFromInt(1000)),
		"1150 / 1.15 = 1000.00")
}

// ── QuarterTarget ─────────────────────────────────────────────────────────────

func TestQuarterTarget_NormalizeFormaModerna(t *testing.T) {
	q := &entity.QuarterTarget{
		Name:        "2024-Q1",
		PeriodStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		SalesIncVAT: decimal.NewFromInt(115000),
	}
	require.NoError(t, q.Normalize(vat15))

	assert.True(t, q.SalesExVAT.Equal(decimal.NewFromInt(100000)))
	assert.True(t, q.VATAmount.Equal(decimal.NewFromInt(15000)))
	assert.True(t, q.SalesIncVAT.Equal(q.SalesExVAT.Add(q.VATAmount)),
		"las tres cifras deben cerrar exactamente")
}

func TestQuarterTarget_NormalizeFormaHeredada(t *testing.T) {
	q := &entity.QuarterTarget{
		Name:        "2024-Q2",
		PeriodStart: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		SalesExVAT:  decimal.NewFromInt(80000),
		VATAmount:   decimal.NewFromInt(12000),
	}
	require.NoError(t, q.Normalize(vat15))
	assert.True(t, q.SalesIncVAT.Equal(decimal.NewFromInt(92000)))
}

func TestQuarterTarget_NormalizeRechazos(t *testing.T) {
	q := &entity.QuarterTarget{Name: "vacío"}
	assert.ErrorIs(t, q.Normalize(vat15), domain.ErrInvalidInput,
		"un trimestre sin meta de ventas es un insumo inválido")

	q = &entity.QuarterTarget{
		Name:        "invertido",
		SalesIncVAT: decimal.NewFromInt(100),
		PeriodStart: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	assert.ErrorIs(t, q.Normalize(vat15), domain.ErrInvalidInput)
}

func TestQuarterTarget_CustomersInPeriod(t *testing.T) {
	q := &entity.QuarterTarget{
		PeriodStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Customers: []entity.CustomerIntent{
			{Name: "dentro", PurchaseDate: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)},
			{Name: "fuera", PurchaseDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
			{Name: "borde", PurchaseDate: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)},
		},
	}
	dentro := q.CustomersInPeriod()
	require.Len(t, dentro, 2, "el período es inclusivo en ambos extremos")
	assert.Equal(t, "dentro", dentro[0].Name)
	assert.Equal(t, "borde", dentro[1].Name)
}
