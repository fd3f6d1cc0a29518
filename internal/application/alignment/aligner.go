// Package alignment orquesta la generación de un trimestre completo: primero
// las facturas B2B pre-comprometidas, después el relleno con ventas de
// contado y finalmente el refinamiento iterativo hacia la meta exacta.
package alignment

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/ventas-sim/internal/application/composer"
	"github.com/jhoicas/ventas-sim/internal/application/refinement"
	"github.com/jhoicas/ventas-sim/internal/domain"
	"github.com/jhoicas/ventas-sim/internal/domain/calendar"
	"github.com/jhoicas/ventas-sim/internal/domain/entity"
	"github.com/jhoicas/ventas-sim/internal/domain/ledger"
	"github.com/jhoicas/ventas-sim/internal/domain/weighting"
	"github.com/jhoicas/ventas-sim/pkg/config"
	"github.com/jhoicas/ventas-sim/pkg/logger"
)

// Phase estados de la máquina del alineador.
type Phase int

const (
	PhasePendingCustomerInvoices Phase = iota
	PhasePendingCashFill
	PhaseRefining
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhasePendingCustomerInvoices:
		return "PendingCustomerInvoices"
	case PhasePendingCashFill:
		return "PendingCashFill"
	case PhaseRefining:
		return "Refining"
	case PhaseDone:
		return "Done"
	}
	return "Unknown"
}

// Aligner genera las facturas de un período de reporte contra un libro de
// lotes compartido. El procesamiento es secuencial: cada deducción observa
// el efecto de todas las anteriores.
type Aligner struct {
	ledger   *ledger.Ledger
	engine   *weighting.Engine
	composer *composer.Composer
	refiner  *refinement.Refiner
	cal      *calendar.BusinessCalendar
	rng      *rand.Rand
	cfg      *config.Config
	log      *logger.Logger

	// useSmart selecciona la estrategia ponderada; en false opera el modo
	// heredado de selección uniforme.
	useSmart bool

	taxSeq  int
	simpSeq int
}

// New construye el alineador trimestral.
func New(
	led *ledger.Ledger,
	engine *weighting.Engine,
	comp *composer.Composer,
	ref *refinement.Refiner,
	cal *calendar.BusinessCalendar,
	rng *rand.Rand,
	cfg *config.Config,
	useSmart bool,
	log *logger.Logger,
) *Aligner {
	return &Aligner{
		ledger:   led,
		engine:   engine,
		composer: comp,
		refiner:  ref,
		cal:      cal,
		rng:      rng,
		cfg:      cfg,
		useSmart: useSmart,
		log:      log,
	}
}

// Result facturas finales de un trimestre más sus diagnósticos.
type Result struct {
	Quarter          string
	Phase            Phase
	Invoices         []*entity.Invoice
	CustomerInvoices int
	CashInvoices     int
	SkippedCustomers int
	Refinement       refinement.Result
}

// Todas las clasificaciones son elegibles para la venta. Las canastas de
// contado filtran además por llegada a bodega; las B2B son preventa y no.
var eligibleClasses = []string{
	entity.ClassInspectionNonSelective,
	entity.ClassInspectionSelective,
	entity.ClassOutsideInspection,
}

// AlignQuarter ejecuta la máquina de estados completa para un trimestre y
// devuelve las facturas generadas. El resultado queda inmutable para el
// llamador; el libro queda con las existencias ya consumidas.
func (a *Aligner) AlignQuarter(q *entity.QuarterTarget) (*Result, error) {
	if err := q.Normalize(a.cfg.Tax.VATRate); err != nil {
		return nil, err
	}

	res := &Result{Quarter: q.Name, Phase: PhasePendingCustomerInvoices}

	a.log.Info().
		Str("quarter", q.Name).
		Str("target_inc_vat", q.SalesIncVAT.StringFixed(2)).
		Str("target_ex_vat", q.SalesExVAT.StringFixed(2)).
		Bool("allow_variance", q.AllowVariance).
		Bool("smart", a.useSmart).
		Msg("alineando trimestre")

	// ── Fase 1: facturas de clientes B2B pre-comprometidos ───────────────
	customerInvoices := a.customerPhase(q, res)
	customerSubtotal, customerVAT, _ := entity.TotalsOf(customerInvoices)

	// ── Fase 2: relleno con ventas de contado ────────────────────────────
	// El hueco se calcula con los totales B2B REALES, no los pretendidos:
	// el sobre/sub-cumplimiento de la fase 1 se propaga aquí a propósito.
	res.Phase = PhasePendingCashFill
	remainingSales := q.SalesExVAT.Sub(customerSubtotal)
	remainingVAT := q.VATAmount.Sub(customerVAT)

	cashInvoices := a.cashPhase(q, remainingSales)

	// ── Fase 3: refinamiento iterativo ───────────────────────────────────
	// Se omite solo en best-effort puro sin algoritmo ponderado.
	if !q.AllowVariance || a.useSmart {
		res.Phase = PhaseRefining
		tolerance := a.cfg.Alignment.StrictTolerance
		if q.AllowVariance {
			tolerance = a.cfg.Alignment.BestEffortTolerance
		}
		remainingIncVAT := remainingSales.Add(remainingVAT).Round(2)
		res.Refinement = a.refiner.Refine(cashInvoices, remainingIncVAT, tolerance)
	}

	res.Invoices = append(customerInvoices, cashInvoices...)
	res.CustomerInvoices = len(customerInvoices)
	res.CashInvoices = len(cashInvoices)
	res.Phase = PhaseDone

	_, _, actualTotal := entity.TotalsOf(res.Invoices)
	a.log.Info().
		Str("quarter", q.Name).
		Int("invoices", len(res.Invoices)).
		Int("b2b", res.CustomerInvoices).
		Int("b2c", res.CashInvoices).
		Str("actual_inc_vat", actualTotal.StringFixed(2)).
		Str("variance", actualTotal.Sub(q.SalesIncVAT).StringFixed(2)).
		Msg("trimestre alineado")

	return res, nil
}

// customerPhase genera una factura TAX por cada compromiso B2B del período.
// Un cliente cuyo monto no puede aproximarse con los lotes disponibles se
// omite y su faltante fluye a la fase de contado.
func (a *Aligner) customerPhase(q *entity.QuarterTarget, res *Result) []*entity.Invoice {
	customers := q.CustomersInPeriod()

	// En modo estricto, si el compromiso B2B excede la meta se toma un
	// prefijo de clientes hasta el 95% de la meta para no sobregirarla.
	if len(customers) > 0 && !q.AllowVariance {
		committed := decimal.Zero
		for _, c := range customers {
			committed = committed.Add(c.SubtotalExVAT(a.cfg.Tax.VATRate))
		}
		if committed.GreaterThan(q.SalesExVAT) {
			limit := q.SalesExVAT.Mul(decimal.NewFromFloat(0.95))
			var selected []entity.CustomerIntent
			cumulative := decimal.Zero
			for _, c := range customers {
				sub := c.SubtotalExVAT(a.cfg.Tax.VATRate)
				if cumulative.Add(sub).GreaterThan(limit) {
					break
				}
				selected = append(selected, c)
				cumulative = cumulative.Add(sub)
			}
			a.log.Warn().
				Str("quarter", q.Name).
				Str("committed", committed.StringFixed(2)).
				Int("selected", len(selected)).
				Int("total", len(customers)).
				Msg("compromiso B2B excede la meta: se toma un subconjunto")
			customers = selected
		}
	}

	var invoices []*entity.Invoice
	for _, c := range customers {
		inv, err := a.buildCustomerInvoice(c)
		if err != nil {
			res.SkippedCustomers++
			a.log.Warn().
				Err(err).
				Str("customer", c.Name).
				Str("amount_inc_vat", c.AmountIncVAT.StringFixed(2)).
				Msg("cliente omitido: no se pudo armar su factura")
			continue
		}
		invoices = append(invoices, inv)
	}
	return invoices
}

// buildCustomerInvoice reconstruye una canasta que aproxime el subtotal del
// compromiso en dos pases: volumen (cantidades cercanas al tope, del lote
// rentable más barato al más caro, hasta quedar dentro de la banda) y ajuste
// fino; al final la última línea se redimensiona para cerrar el residuo.
// La compra B2B es preventa: no se restringe por fecha de llegada a bodega.
func (a *Aligner) buildCustomerInvoice(c entity.CustomerIntent) (*entity.Invoice, error) {
	target := c.SubtotalExVAT(a.cfg.Tax.VATRate)

	pool := a.profitableLotsByPrice(eligibleClasses)
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: cliente %s", domain.ErrNoCandidateLots, c.Name)
	}

	band := a.cfg.Alignment.CustomerBand
	maxQty := a.cfg.Basket.MaxQtyPerItem
	remaining := target

	var lines []entity.LineItem
	used := make(map[string]struct{})

	// Pase 1: volumen al tope desde lo más barato.
	for _, lot := range pool {
		if remaining.LessThanOrEqual(band) {
			break
		}
		qty := int(remaining.Div(lot.UnitPriceExVAT).IntPart())
		if qty > maxQty {
			qty = maxQty
		}
		if qty > lot.QtyRemaining {
			qty = lot.QtyRemaining
		}
		if qty < 1 {
			continue
		}
		line, ok := a.deductLine(lot.LotID, qty)
		if !ok {
			continue
		}
		lines = append(lines, line)
		remaining = remaining.Sub(line.Subtotal)
		used[lot.LotID] = struct{}{}
	}

	// Pase 2: ajuste fino con cantidades chicas sobre los lotes no usados.
	one := decimal.NewFromInt(1)
	for _, lot := range pool {
		if remaining.LessThanOrEqual(one) {
			break
		}
		if _, taken := used[lot.LotID]; taken {
			continue
		}
		qty := int(remaining.Div(lot.UnitPriceExVAT).IntPart())
		if qty < 1 {
			continue
		}
		if qty > 10 {
			qty = 10
		}
		if qty > lot.QtyRemaining {
			qty = lot.QtyRemaining
		}
		if qty < 1 {
			continue
		}
		line, ok := a.deductLine(lot.LotID, qty)
		if !ok {
			continue
		}
		lines = append(lines, line)
		remaining = remaining.Sub(line.Subtotal)
		used[lot.LotID] = struct{}{}
	}

	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cliente %s", domain.ErrCustomerTarget, c.Name)
	}

	// Ajuste final: redimensionar la última línea para cerrar el residuo.
	// Crecer deduce stock adicional; encoger nunca repone (no hay rollback).
	a.resizeLastLine(lines, remaining)

	inv := &entity.Invoice{
		ID:                uuid.New().String(),
		Number:            a.nextNumber(entity.InvoiceTypeTax),
		Type:              entity.InvoiceTypeTax,
		CustomerName:      c.Name,
		CustomerTaxNumber: c.TaxNumber,
		CustomerAddress:   c.Address,
		IssuedAt:          a.randomBusinessTime(c.PurchaseDate),
		Lines:             lines,
	}
	inv.Recalculate()
	return inv, nil
}

// resizeLastLine cierra el residuo moviendo la cantidad de la última línea.
func (a *Aligner) resizeLastLine(lines []entity.LineItem, residual decimal.Decimal) {
	last := &lines[len(lines)-1]
	delta := int(residual.Div(last.UnitPriceExVAT).Round(0).IntPart())
	switch {
	case delta > 0:
		if _, err := a.ledger.Deduct(last.LotID, delta); err == nil {
			last.Quantity += delta
		}
	case delta < 0:
		dec := -delta
		if dec >= last.Quantity {
			dec = last.Quantity - 1
		}
		last.Quantity -= dec
	}
	last.Reprice(a.cfg.Tax.VATRate)
}

// cashPhase rellena el hueco restante con facturas de contado hasta quedar
// dentro del umbral (estricto) o del rango best-effort, o hasta agotar el
// inventario o el presupuesto de intentos.
func (a *Aligner) cashPhase(q *entity.QuarterTarget, targetSales decimal.Decimal) []*entity.Invoice {
	workdays := a.cal.WorkingDays(q.PeriodStart, q.PeriodEnd)
	if len(workdays) == 0 {
		return nil
	}

	maxInvoices := len(workdays) * a.cfg.Alignment.InvoicesPerWorkday
	if q.AllowVariance {
		maxInvoices = len(workdays) * a.cfg.Alignment.BestEffortPerDay
	}

	nearZero := decimal.NewFromFloat(0.10)
	var invoices []*entity.Invoice
	actualSales := decimal.Zero

	for i := 0; i < maxInvoices; i++ {
		remaining := targetSales.Sub(actualSales)

		if q.AllowVariance {
			// Best-effort: parar al llegar al 99-120% de la meta.
			if actualSales.GreaterThanOrEqual(targetSales.Mul(decimal.NewFromFloat(1.2))) {
				break
			}
			if actualSales.GreaterThanOrEqual(targetSales.Mul(decimal.NewFromFloat(0.99))) &&
				remaining.LessThanOrEqual(decimal.NewFromInt(1000)) {
				break
			}
		} else if remaining.LessThanOrEqual(nearZero) {
			break
		}

		// Solo días con inventario ya llegado a bodega.
		available := a.datesWithStock(workdays)
		if len(available) == 0 {
			a.log.Info().Str("quarter", q.Name).Msg("sin inventario disponible: fase de contado termina")
			break
		}

		var invoiceDate time.Time
		if a.useSmart {
			invoiceDate, _ = a.engine.WeightedDate(available, q.PeriodStart, q.PeriodEnd)
		} else {
			invoiceDate = available[a.rng.Intn(len(available))]
		}

		size := a.invoiceSize(q, invoiceDate, remaining, workdays)

		lines := a.composer.Compose(composer.Request{
			TargetSubtotal: size,
			Date:           invoiceDate,
			Classes:        eligibleClasses,
		})
		if len(lines) == 0 {
			continue
		}

		inv := &entity.Invoice{
			ID:           uuid.New().String(),
			Number:       a.nextNumber(entity.InvoiceTypeSimplified),
			Type:         entity.InvoiceTypeSimplified,
			CustomerName: entity.CashCustomerName,
			IssuedAt:     a.engine.RealisticTime(invoiceDate),
			Lines:        lines,
		}
		inv.Recalculate()

		invoices = append(invoices, inv)
		actualSales = actualSales.Add(inv.Subtotal)
	}

	a.log.Info().
		Str("quarter", q.Name).
		Int("invoices", len(invoices)).
		Str("actual_sales", actualSales.StringFixed(2)).
		Str("target_sales", targetSales.StringFixed(2)).
		Msg("fase de contado completa")

	return invoices
}

// invoiceSize decide el tamaño objetivo (ex IVA) de la siguiente factura.
func (a *Aligner) invoiceSize(q *entity.QuarterTarget, d time.Time, remaining decimal.Decimal, workdays []time.Time) decimal.Decimal {
	if a.useSmart {
		daysLeft := 0
		for _, wd := range workdays {
			if !wd.Before(d) {
				daysLeft++
			}
		}
		return a.engine.InvoiceSize(d, remaining, daysLeft, q.PeriodStart, q.PeriodEnd)
	}

	// Modo heredado: rangos aleatorios planos.
	if q.AllowVariance {
		switch {
		case remaining.GreaterThan(decimal.NewFromInt(50000)):
			return decimal.NewFromInt(int64(2000 + a.rng.Intn(6001)))
		case remaining.GreaterThan(decimal.NewFromInt(10000)):
			return decimal.NewFromInt(int64(1000 + a.rng.Intn(4001)))
		default:
			return decimal.NewFromInt(int64(500 + a.rng.Intn(1501)))
		}
	}
	ceiling := decimal.NewFromInt(3000)
	if remaining.LessThan(ceiling) {
		return remaining
	}
	return ceiling
}

// datesWithStock filtra los días hábiles en que ya hay algún lote vendible.
func (a *Aligner) datesWithStock(workdays []time.Time) []time.Time {
	var out []time.Time
	for _, d := range workdays {
		if a.ledger.AnyStockAt(d) {
			out = append(out, d)
		}
	}
	return out
}

// profitableLotsByPrice lotes rentables de las clasificaciones dadas, sin
// filtro de llegada (preventa), ordenados de más barato a más caro.
func (a *Aligner) profitableLotsByPrice(classes []string) []*entity.Lot {
	candidates := a.composer.Candidates(composer.Request{
		Classes:         classes,
		IgnoreStockDate: true,
	})
	var pool []*entity.Lot
	for _, lot := range candidates {
		if lot.IsProfitable() {
			pool = append(pool, lot)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].UnitPriceExVAT.LessThan(pool[j].UnitPriceExVAT)
	})
	return pool
}

// deductLine deduce qty del lote y arma la línea correspondiente.
func (a *Aligner) deductLine(lotID string, qty int) (entity.LineItem, bool) {
	rec, err := a.ledger.Deduct(lotID, qty)
	if err != nil {
		return entity.LineItem{}, false
	}
	line, err := entity.NewLineItem(rec, a.cfg.Tax.VATRate)
	if err != nil {
		return entity.LineItem{}, false
	}
	return line, true
}

// nextNumber consecutivo legible por tipo de factura.
func (a *Aligner) nextNumber(invoiceType string) string {
	if invoiceType == entity.InvoiceTypeTax {
		a.taxSeq++
		return fmt.Sprintf("INV-TAX-%06d", a.taxSeq)
	}
	a.simpSeq++
	return fmt.Sprintf("INV-SIMP-%06d", a.simpSeq)
}

// randomBusinessTime hora aleatoria dentro del horario comercial (9-21).
func (a *Aligner) randomBusinessTime(d time.Time) time.Time {
	hour := 9 + a.rng.Intn(13)
	minute := a.rng.Intn(60)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, d.Location())
}
