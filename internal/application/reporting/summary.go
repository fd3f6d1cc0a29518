// Package reporting calcula los agregados real-vs-meta por trimestre que el
// núcleo entrega al colaborador de reportes. Son cifras observacionales, no
// parte del contrato de datos de las facturas.
package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/ventas-sim/internal/domain/entity"
)

// QuarterSummary cifras agregadas de un trimestre generado.
type QuarterSummary struct {
	Quarter     string
	PeriodStart time.Time
	PeriodEnd   time.Time

	Invoices           int
	TaxInvoices        int
	SimplifiedInvoices int
	LineItems          int

	TargetExVAT  decimal.Decimal
	ActualExVAT  decimal.Decimal
	TargetVAT    decimal.Decimal
	ActualVAT    decimal.Decimal
	TargetIncVAT decimal.Decimal
	ActualIncVAT decimal.Decimal

	Variance        decimal.Decimal // actual - meta, inc. IVA
	VariancePct     decimal.Decimal
	WithinTolerance bool
}

// Summarize agrega las facturas finales contra la meta del trimestre.
func Summarize(q *entity.QuarterTarget, invoices []*entity.Invoice, tolerance decimal.Decimal) QuarterSummary {
	subtotal, vat, total := entity.TotalsOf(invoices)

	s := QuarterSummary{
		Quarter:      q.Name,
		PeriodStart:  q.PeriodStart,
		PeriodEnd:    q.PeriodEnd,
		Invoices:     len(invoices),
		TargetExVAT:  q.SalesExVAT,
		ActualExVAT:  subtotal,
		TargetVAT:    q.VATAmount,
		ActualVAT:    vat,
		TargetIncVAT: q.SalesIncVAT,
		ActualIncVAT: total,
	}

	for _, inv := range invoices {
		s.LineItems += len(inv.Lines)
		switch inv.Type {
		case entity.InvoiceTypeTax:
			s.TaxInvoices++
		case entity.InvoiceTypeSimplified:
			s.SimplifiedInvoices++
		}
	}

	s.Variance = total.Sub(q.SalesIncVAT)
	if q.SalesIncVAT.IsPositive() {
		s.VariancePct = s.Variance.Div(q.SalesIncVAT).Mul(decimal.NewFromInt(100)).Round(3)
	}
	s.WithinTolerance = s.Variance.Abs().LessThanOrEqual(tolerance)

	return s
}
