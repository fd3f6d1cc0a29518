package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/ventas-sim/internal/domain"
)

// QuarterTarget es la meta financiera externa de un período de reporte.
// Admite dos formas: la moderna (SalesIncVAT) y la heredada (SalesExVAT +
// VATAmount por separado); Normalize reconcilia ambas.
type QuarterTarget struct {
	Name        string
	PeriodStart time.Time
	PeriodEnd   time.Time

	SalesIncVAT decimal.Decimal // forma moderna: total con IVA
	SalesExVAT  decimal.Decimal // forma heredada
	VATAmount   decimal.Decimal // forma heredada

	// AllowVariance activa el modo best-effort: se acepta el mejor total
	// alcanzable cuando el inventario no da para la meta exacta.
	AllowVariance bool

	Customers []CustomerIntent
}

// Normalize completa la forma que falte a partir de la otra. Con SalesIncVAT
// presente se deriva el desglose; con el par heredado se deriva el total.
func (q *QuarterTarget) Normalize(vatRate decimal.Decimal) error {
	one := decimal.NewFromInt(1)
	switch {
	case q.SalesIncVAT.IsPositive():
		q.SalesExVAT = q.SalesIncVAT.Div(one.Add(vatRate)).Round(2)
		q.VATAmount = q.SalesIncVAT.Sub(q.SalesExVAT)
	case q.SalesExVAT.IsPositive():
		q.SalesIncVAT = q.SalesExVAT.Add(q.VATAmount).Round(2)
	default:
		return fmt.Errorf("%w: trimestre %s sin meta de ventas", domain.ErrInvalidInput, q.Name)
	}
	if q.PeriodEnd.Before(q.PeriodStart) {
		return fmt.Errorf("%w: trimestre %s con período invertido", domain.ErrInvalidInput, q.Name)
	}
	return nil
}

// CustomersInPeriod filtra los compromisos B2B cuya fecha cae en el período.
func (q *QuarterTarget) CustomersInPeriod() []CustomerIntent {
	var out []CustomerIntent
	for _, c := range q.Customers {
		if !c.PurchaseDate.Before(q.PeriodStart) && !c.PurchaseDate.After(q.PeriodEnd) {
			out = append(out, c)
		}
	}
	return out
}
