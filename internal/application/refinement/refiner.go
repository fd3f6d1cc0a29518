// Package refinement implementa el corrector de lazo cerrado: ajusta
// cantidades de línea de a una unidad hasta que el total agregado quede
// dentro de la tolerancia de la meta, sin deshacer la distribución realista
// ya generada. Es un hill-climb local y acotado, no un óptimo global.
package refinement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/ventas-sim/internal/domain/entity"
	"github.com/jhoicas/ventas-sim/internal/domain/ledger"
	"github.com/jhoicas/ventas-sim/pkg/logger"
)

// Refiner ajusta un conjunto de facturas hacia la meta. Los incrementos
// consultan y deducen el libro (una unidad más es una unidad vendida); los
// decrementos no reponen stock porque no existe primitiva de reposición.
type Refiner struct {
	ledger        *ledger.Ledger
	vatRate       decimal.Decimal
	maxIterations int
	log           *logger.Logger
}

// New construye el refinador.
func New(led *ledger.Ledger, vatRate decimal.Decimal, maxIterations int, log *logger.Logger) *Refiner {
	return &Refiner{
		ledger:        led,
		vatRate:       vatRate,
		maxIterations: maxIterations,
		log:           log,
	}
}

// Result resultado observacional del refinamiento.
type Result struct {
	Iterations      int
	InitialVariance decimal.Decimal // meta - total, antes
	FinalVariance   decimal.Decimal // meta - total, después
	Converged       bool
}

type candidate struct {
	inv     *entity.Invoice
	lineIdx int
}

// Refine acerca el total inc. IVA de las facturas a la meta mutándolas en el
// lugar. Prefiere subir cantidades en facturas de días pico y bajarlas en
// días lentos para conservar el sesgo realista.
func (r *Refiner) Refine(invoices []*entity.Invoice, targetIncVAT, tolerance decimal.Decimal) Result {
	_, _, total := entity.TotalsOf(invoices)
	res := Result{InitialVariance: targetIncVAT.Sub(total)}

	if res.InitialVariance.Abs().LessThanOrEqual(tolerance) {
		res.FinalVariance = res.InitialVariance
		res.Converged = true
		return res
	}

	peak, slow := splitByDayType(invoices)

	for res.Iterations < r.maxIterations {
		_, _, total = entity.TotalsOf(invoices)
		variance := targetIncVAT.Sub(total)
		if variance.Abs().LessThanOrEqual(tolerance) {
			res.Converged = true
			break
		}
		res.Iterations++

		var ok bool
		if variance.IsPositive() {
			// Falta venta: +1 unidad, preferiblemente en día pico.
			ok = r.increaseOne(peak, variance)
			if !ok {
				ok = r.increaseOne(invoices, variance)
			}
		} else {
			// Sobra venta: -1 unidad, preferiblemente en día lento.
			ok = r.decreaseOne(slow, variance.Abs())
			if !ok {
				ok = r.decreaseOne(invoices, variance.Abs())
			}
		}
		if !ok {
			// Sin líneas ajustables: se reporta la varianza final y listo.
			break
		}
	}

	_, _, total = entity.TotalsOf(invoices)
	res.FinalVariance = targetIncVAT.Sub(total)
	if res.FinalVariance.Abs().LessThanOrEqual(tolerance) {
		res.Converged = true
	}

	r.log.Debug().
		Int("iterations", res.Iterations).
		Str("initial_variance", res.InitialVariance.StringFixed(2)).
		Str("final_variance", res.FinalVariance.StringFixed(2)).
		Bool("converged", res.Converged).
		Msg("refinamiento iterativo terminado")

	return res
}

// increaseOne suma una unidad a la mejor línea candidata, deduciendo la
// unidad extra del libro. Falla si ninguna línea tiene stock disponible.
func (r *Refiner) increaseOne(invoices []*entity.Invoice, variance decimal.Decimal) bool {
	var cands []candidate
	for _, inv := range invoices {
		for i := range inv.Lines {
			if r.ledger.HasLotStock(inv.Lines[i].LotID, 1) {
				cands = append(cands, candidate{inv: inv, lineIdx: i})
			}
		}
	}
	best, ok := r.pickClosest(cands, variance)
	if !ok {
		return false
	}

	line := &best.inv.Lines[best.lineIdx]
	if _, err := r.ledger.Deduct(line.LotID, 1); err != nil {
		return false
	}
	line.Quantity++
	line.Reprice(r.vatRate)
	best.inv.Recalculate()
	return true
}

// decreaseOne resta una unidad a la mejor línea candidata; al llegar a cero
// la línea se elimina de la factura. No repone stock al libro.
func (r *Refiner) decreaseOne(invoices []*entity.Invoice, variance decimal.Decimal) bool {
	var cands []candidate
	for _, inv := range invoices {
		for i := range inv.Lines {
			if inv.Lines[i].Quantity >= 1 {
				cands = append(cands, candidate{inv: inv, lineIdx: i})
			}
		}
	}
	best, ok := r.pickClosest(cands, variance)
	if !ok {
		return false
	}

	line := &best.inv.Lines[best.lineIdx]
	line.Quantity--
	if line.Quantity == 0 {
		best.inv.RemoveLine(best.lineIdx)
	} else {
		line.Reprice(r.vatRate)
	}
	best.inv.Recalculate()
	return true
}

// pickClosest elige la línea cuyo precio unitario inc. IVA más se acerca a la
// varianza sin excederla en más de 1.5x; si ninguna califica, la más barata.
func (r *Refiner) pickClosest(cands []candidate, variance decimal.Decimal) (candidate, bool) {
	if len(cands) == 0 {
		return candidate{}, false
	}

	limit := variance.Mul(decimal.NewFromFloat(1.5))
	var best *candidate
	var bestDiff decimal.Decimal

	for i := range cands {
		line := cands[i].inv.Lines[cands[i].lineIdx]
		unitIncVAT := line.UnitPriceIncVAT(r.vatRate)
		if unitIncVAT.GreaterThan(limit) {
			continue
		}
		diff := variance.Sub(unitIncVAT).Abs()
		if best == nil || diff.LessThan(bestDiff) {
			best = &cands[i]
			bestDiff = diff
		}
	}
	if best != nil {
		return *best, true
	}

	// Fallback: la línea más barata disponible.
	cheapest := cands[0]
	cheapestPrice := cands[0].inv.Lines[cands[0].lineIdx].UnitPriceExVAT
	for _, c := range cands[1:] {
		if p := c.inv.Lines[c.lineIdx].UnitPriceExVAT; p.LessThan(cheapestPrice) {
			cheapest = c
			cheapestPrice = p
		}
	}
	return cheapest, true
}

// splitByDayType separa facturas de días pico (jueves, sábado, ventana de
// salario 25-28) de las de días lentos.
func splitByDayType(invoices []*entity.Invoice) (peak, slow []*entity.Invoice) {
	for _, inv := range invoices {
		d := inv.IssuedAt
		isPeak := d.Weekday() == time.Thursday || d.Weekday() == time.Saturday ||
			(d.Day() >= 25 && d.Day() <= 28)
		if isPeak {
			peak = append(peak, inv)
		} else {
			slow = append(slow, inv)
		}
	}
	return peak, slow
}
