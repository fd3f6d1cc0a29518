package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerIntent es una compra B2B pre-comprometida: el cliente ya acordó un
// monto (inc. IVA) y una fecha; el alineador debe reconstruir una canasta que
// lo aproxime con lotes reales.
type CustomerIntent struct {
	Name         string
	TaxNumber    string
	Address      string
	AmountIncVAT decimal.Decimal
	PurchaseDate time.Time
}

// SubtotalExVAT deriva el subtotal sin IVA del monto comprometido.
func (c CustomerIntent) SubtotalExVAT(vatRate decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	return c.AmountIncVAT.Div(one.Add(vatRate)).Round(2)
}
