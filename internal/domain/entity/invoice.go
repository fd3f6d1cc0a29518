package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/ventas-sim/internal/domain"
)

// Tipos de factura.
const (
	InvoiceTypeTax        = "TAX"        // B2B: cliente identificado con número fiscal
	InvoiceTypeSimplified = "SIMPLIFIED" // B2C: cliente de contado, anónimo
)

// CashCustomerName nombre genérico del cliente de contado.
const CashCustomerName = "عميل نقدي"

// LineItem es una línea de factura referida a exactamente un lote. El precio
// y el costo se copian del lote al momento de la deducción; el mismo artículo
// vendido desde dos lotes produce dos líneas separadas, nunca se fusionan.
type LineItem struct {
	LotID                string
	CustomsDeclarationNo string
	ItemDescription      string
	ShipmentClass        string
	Quantity             int
	UnitPriceExVAT       decimal.Decimal
	UnitCostExVAT        decimal.Decimal
	Subtotal             decimal.Decimal
	VATAmount            decimal.Decimal
	Total                decimal.Decimal
}

// NewLineItem construye una línea desde un registro de deducción del libro.
// Rechaza precio < costo: la validación es previa a cualquier venta.
func NewLineItem(d DeductionRecord, vatRate decimal.Decimal) (LineItem, error) {
	if d.UnitPriceExVAT.LessThan(d.UnitCostExVAT) {
		return LineItem{}, fmt.Errorf("%w: lote %s", domain.ErrBelowCost, d.LotID)
	}
	if d.Quantity <= 0 {
		return LineItem{}, fmt.Errorf("%w: cantidad %d", domain.ErrInvalidInput, d.Quantity)
	}
	li := LineItem{
		LotID:                d.LotID,
		CustomsDeclarationNo: d.CustomsDeclarationNo,
		ItemDescription:      d.ItemDescription,
		ShipmentClass:        d.ShipmentClass,
		Quantity:             d.Quantity,
		UnitPriceExVAT:       d.UnitPriceExVAT,
		UnitCostExVAT:        d.UnitCostExVAT,
	}
	li.Reprice(vatRate)
	return li, nil
}

// Reprice re-deriva subtotal, IVA y total de la línea tras un cambio de
// cantidad. Redondeo a 2 decimales en cada paso (política de punto fijo).
func (li *LineItem) Reprice(vatRate decimal.Decimal) {
	li.Subtotal = li.UnitPriceExVAT.Mul(decimal.NewFromInt(int64(li.Quantity))).Round(2)
	li.VATAmount = li.Subtotal.Mul(vatRate).Round(2)
	li.Total = li.Subtotal.Add(li.VATAmount)
}

// UnitPriceIncVAT precio unitario con IVA, usado por el refinador para
// estimar el efecto de ajustar una unidad.
func (li *LineItem) UnitPriceIncVAT(vatRate decimal.Decimal) decimal.Decimal {
	return li.UnitPriceExVAT.Mul(decimal.NewFromInt(1).Add(vatRate))
}

// DeductionRecord es la instantánea de precio/costo que devuelve el libro de
// lotes al deducir existencias. La deducción es permanente: no hay rollback.
type DeductionRecord struct {
	LotID                string
	CustomsDeclarationNo string
	ItemDescription      string
	ShipmentClass        string
	Quantity             int
	UnitPriceExVAT       decimal.Decimal
	UnitCostExVAT        decimal.Decimal
}

// Invoice representa una factura TAX o SIMPLIFIED. Los agregados deben
// igualar la suma de sus líneas siempre que la factura se considere cerrada;
// tras cualquier mutación del refinador se re-derivan con Recalculate.
type Invoice struct {
	ID                string // UUID interno
	Number            string // consecutivo legible por tipo: INV-TAX-000001
	Type              string
	CustomerName      string
	CustomerTaxNumber string // vacío para cliente de contado
	CustomerAddress   string // vacío para cliente de contado
	IssuedAt          time.Time
	Lines             []LineItem
	Subtotal          decimal.Decimal
	VATAmount         decimal.Decimal
	Total             decimal.Decimal
}

// Recalculate restaura el invariante agregado: subtotal, IVA y total de la
// factura iguales a la suma de sus líneas.
func (inv *Invoice) Recalculate() {
	subtotal := decimal.Zero
	vat := decimal.Zero
	for i := range inv.Lines {
		subtotal = subtotal.Add(inv.Lines[i].Subtotal)
		vat = vat.Add(inv.Lines[i].VATAmount)
	}
	inv.Subtotal = subtotal.Round(2)
	inv.VATAmount = vat.Round(2)
	inv.Total = inv.Subtotal.Add(inv.VATAmount).Round(2)
}

// RemoveLine elimina la línea en idx (el refinador la usa cuando una cantidad
// llega a cero). No devuelve existencias al libro: no existe primitiva de
// reposición.
func (inv *Invoice) RemoveLine(idx int) {
	if idx < 0 || idx >= len(inv.Lines) {
		return
	}
	inv.Lines = append(inv.Lines[:idx], inv.Lines[idx+1:]...)
}

// TotalsOf suma subtotal, IVA y total de un conjunto de facturas.
func TotalsOf(invoices []*Invoice) (subtotal, vat, total decimal.Decimal) {
	subtotal, vat, total = decimal.Zero, decimal.Zero, decimal.Zero
	for _, inv := range invoices {
		subtotal = subtotal.Add(inv.Subtotal)
		vat = vat.Add(inv.VATAmount)
		total = total.Add(inv.Total)
	}
	return subtotal, vat, total
}
