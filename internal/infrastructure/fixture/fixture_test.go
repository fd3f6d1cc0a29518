package fixture_test

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/ventas-sim/internal/application/reporting"
	"github.com/jhoicas/ventas-sim/internal/domain/entity"
	"github.com/jhoicas/ventas-sim/internal/infrastructure/fixture"
	"github.com/jhoicas/ventas-sim/pkg/config"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tests del adaptador JSON: carga de lotes con demora de bodega, archivos
// opcionales y escritura del resultado trimestral.
// ──────────────────────────────────────────────────────────────────────────────

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newSource(t *testing.T, dir string) *fixture.Source {
	t.Helper()
	return fixture.NewSource(dir,
		config.InventoryConfig{MinStockDelayDays: 7, MaxStockDelayDays: 12},
		rand.New(rand.NewSource(1)))
}

func TestSource_Lots(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lots.json", `[
		{
			"customs_declaration_no": "D-2024-001",
			"item_description": "Té verde",
			"shipment_class": "OUTSIDE_INSPECTION",
			"import_date": "2024-01-10",
			"quantity": 500,
			"unit_cost_ex_vat": "2.50",
			"unit_price_ex_vat": "4.00"
		}
	]`)

	lots, err := newSource(t, dir).Lots()
	require.NoError(t, err)
	require.Len(t, lots, 1)

	lot := lots[0]
	assert.Equal(t, "D-2024-001:Té verde", lot.LotID)
	assert.Equal(t, 500, lot.QtyRemaining)
	assert.True(t, lot.UnitPriceExVAT.Equal(decimal.NewFromFloat(4)))

	// La demora de bodega cae dentro de la ventana configurada (7-12 días).
	delay := int(lot.StockDate.Sub(lot.ImportDate).Hours() / 24)
	assert.GreaterOrEqual(t, delay, 7)
	assert.LessOrEqual(t, delay, 12)
}

func TestSource_LotsRechazaInsumoInvalido(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lots.json", `[
		{
			"customs_declaration_no": "D-1",
			"item_description": "Aceite",
			"shipment_class": "OUTSIDE_INSPECTION",
			"import_date": "2024-01-10",
			"quantity": 10,
			"unit_cost_ex_vat": "5.00",
			"unit_price_ex_vat": "4.00"
		}
	]`)

	_, err := newSource(t, dir).Lots()
	assert.Error(t, err, "un lote a pérdida en el insumo debe rechazar la carga completa")
}

func TestSource_ArchivosOpcionales(t *testing.T) {
	dir := t.TempDir()
	src := newSource(t, dir)

	customers, err := src.Customers()
	require.NoError(t, err, "customers.json es opcional")
	assert.Empty(t, customers)

	holidays, err := src.Holidays()
	require.NoError(t, err, "holidays.json es opcional")
	assert.Empty(t, holidays)
}

func TestSource_QuartersAdjuntaClientes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "quarters.json", `[
		{
			"name": "2024-Q1",
			"period_start": "2024-01-01",
			"period_end": "2024-03-31",
			"sales_inc_vat": "115000.00",
			"allow_variance": false
		}
	]`)
	writeFile(t, dir, "customers.json", `[
		{
			"name": "Comercial Al-Noor",
			"tax_number": "300123456700003",
			"address": "Riyadh",
			"amount_inc_vat": "11500.00",
			"purchase_date": "2024-02-05"
		}
	]`)

	quarters, err := newSource(t, dir).Quarters()
	require.NoError(t, err)
	require.Len(t, quarters, 1)

	q := quarters[0]
	assert.Equal(t, "2024-Q1", q.Name)
	assert.False(t, q.AllowVariance)
	require.Len(t, q.Customers, 1)
	assert.Equal(t, "Comercial Al-Noor", q.Customers[0].Name)
}

func TestWriter_WriteQuarter(t *testing.T) {
	dir := t.TempDir()
	w, err := fixture.NewWriter(filepath.Join(dir, "salida"))
	require.NoError(t, err)

	summary := reporting.QuarterSummary{
		Quarter:      "2024-Q1",
		PeriodStart:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:    time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Invoices:     1,
		TargetIncVAT: decimal.NewFromInt(115000),
		ActualIncVAT: decimal.NewFromFloat(114998.85),
	}
	inv := &entity.Invoice{
		ID:           "id-1",
		Number:       "INV-SIMP-000001",
		Type:         entity.InvoiceTypeSimplified,
		CustomerName: entity.CashCustomerName,
		IssuedAt:     time.Date(2024, 2, 5, 13, 30, 0, 0, time.UTC),
		Lines: []entity.LineItem{{
			LotID:          "D-1:Té verde",
			Quantity:       3,
			UnitPriceExVAT: decimal.NewFromInt(4),
			Subtotal:       decimal.NewFromInt(12),
			VATAmount:      decimal.NewFromFloat(1.80),
			Total:          decimal.NewFromFloat(13.80),
		}},
		Subtotal:  decimal.NewFromInt(12),
		VATAmount: decimal.NewFromFloat(1.80),
		Total:     decimal.NewFromFloat(13.80),
	}

	require.NoError(t, w.WriteQuarter(summary, []*entity.Invoice{inv}))

	data, err := os.ReadFile(filepath.Join(dir, "salida", "2024-Q1.json"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	sum := doc["summary"].(map[string]any)
	assert.Equal(t, "2024-Q1", sum["quarter"])
	assert.Equal(t, "115000.00", sum["target_inc_vat"])

	invoices := doc["invoices"].([]any)
	require.Len(t, invoices, 1)
	first := invoices[0].(map[string]any)
	assert.Equal(t, "INV-SIMP-000001", first["number"])
	assert.Equal(t, "13.80", first["total"])
}
