// Package weighting implementa el motor de pesos del generador: qué tan
// probable es vender en una fecha, de qué tamaño es una factura y qué
// productos rotan más. Todas las funciones son reproducibles dado el mismo
// *rand.Rand sembrado y el mismo estado de entrada.
package weighting

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/ventas-sim/internal/domain/calendar"
	"github.com/jhoicas/ventas-sim/internal/domain/entity"
)

// Config límites para el tamaño de factura generado.
type Config struct {
	MinInvoiceSize decimal.Decimal // clamp inferior (ex IVA)
	MaxInvoiceSize decimal.Decimal // clamp superior (ex IVA)
}

type cacheKey struct {
	lotID string
	month time.Month
}

// Engine calcula pesos de fechas, tamaños y productos. El caché de pesos de
// producto vive en la instancia (una por corrida), nunca en estado global:
// dos corridas con la misma semilla producen la misma secuencia.
type Engine struct {
	cfg Config
	rng *rand.Rand

	// caché por (lote, mes calendario): el peso de un producto solo varía
	// con el mes (estacionalidad) y su nivel de stock al momento de cachear.
	productWeights map[cacheKey]float64
}

// NewEngine construye el motor con su fuente pseudoaleatoria explícita.
func NewEngine(cfg Config, rng *rand.Rand) *Engine {
	return &Engine{
		cfg:            cfg,
		rng:            rng,
		productWeights: make(map[cacheKey]float64),
	}
}

// DateWeight calcula qué tan probable es vender en la fecha. Multiplicativo:
// día de semana, ciclo de salario, urgencia de cierre de período, temporada
// religiosa y arranque lento de la primera semana.
func (e *Engine) DateWeight(d, periodStart, periodEnd time.Time) float64 {
	weight := 1.0

	// Día de semana: pico jueves (previo al fin de semana), valle viernes.
	switch d.Weekday() {
	case time.Wednesday:
		weight *= 1.1
	case time.Thursday:
		weight *= 1.5
	case time.Friday:
		weight *= 0.3
	case time.Saturday:
		weight *= 1.3
	case time.Sunday:
		weight *= 1.2
	}

	// Ciclo de salario: 25-28 pago, 1-5 gasto post-pago, 20-24 antesala,
	// 10-15 valle de mitad de mes.
	switch dom := d.Day(); {
	case dom >= 25 && dom <= 28:
		weight *= 2.0
	case dom >= 1 && dom <= 5:
		weight *= 1.5
	case dom >= 20 && dom <= 24:
		weight *= 1.3
	case dom >= 10 && dom <= 15:
		weight *= 0.9
	}

	// Urgencia de cierre del período.
	switch daysToEnd := daysBetween(d, periodEnd); {
	case daysToEnd <= 3:
		weight *= 2.0
	case daysToEnd <= 7:
		weight *= 1.8
	case daysToEnd <= 14:
		weight *= 1.4
	}

	// Ramadán: la venta minorista se dispara.
	if calendar.IsRamadan(d) {
		weight *= 2.5
	}

	// Primera semana del período: arranque lento.
	if daysBetween(periodStart, d) <= 7 {
		weight *= 0.8
	}

	return weight
}

// InvoiceSize genera un tamaño de factura realista (ex IVA): media igual al
// objetivo diario restante ajustado por tipo de día, distribución normal con
// desviación del 30% de la media, y clamp a [min, min(restante, max)].
func (e *Engine) InvoiceSize(
	d time.Time,
	remainingTarget decimal.Decimal,
	daysRemaining int,
	periodStart, periodEnd time.Time,
) decimal.Decimal {
	if daysRemaining <= 0 {
		daysRemaining = 1
	}
	avgDaily := remainingTarget.InexactFloat64() / float64(daysRemaining)

	multiplier := 1.0
	switch d.Weekday() {
	case time.Thursday:
		multiplier *= 1.5
	case time.Saturday, time.Sunday:
		multiplier *= 1.3
	case time.Friday:
		multiplier *= 0.5
	}
	switch dom := d.Day(); {
	case dom >= 25 && dom <= 28:
		multiplier *= 1.8
	case dom >= 1 && dom <= 5:
		multiplier *= 1.4
	}
	switch daysToEnd := daysBetween(d, periodEnd); {
	case daysToEnd <= 7:
		multiplier *= 1.5
	case daysToEnd <= 14:
		multiplier *= 1.3
	}

	mean := avgDaily * multiplier
	stdDev := mean * 0.3
	size := e.rng.NormFloat64()*stdDev + mean

	minSize := e.cfg.MinInvoiceSize.InexactFloat64()
	maxSize := math.Min(remainingTarget.InexactFloat64(), e.cfg.MaxInvoiceSize.InexactFloat64())
	size = math.Max(minSize, math.Min(size, maxSize))

	return decimal.NewFromFloat(size).Round(2)
}

// ProductWeight calcula qué tan probable es que el lote se venda en la fecha:
// franja de precio (lo barato rota más), nivel de stock como proxy de
// popularidad, velocidad de la clasificación y estacionalidad por palabras
// clave del artículo.
func (e *Engine) ProductWeight(lot *entity.Lot, d time.Time) float64 {
	weight := 1.0

	switch price := lot.UnitPriceExVAT.InexactFloat64(); {
	case price < 10:
		weight *= 2.5
	case price < 20:
		weight *= 2.0
	case price < 50:
		weight *= 1.5
	case price < 100:
		weight *= 1.0
	default:
		weight *= 0.5
	}

	switch qty := lot.QtyRemaining; {
	case qty > 1000:
		weight *= 1.8
	case qty > 500:
		weight *= 1.5
	case qty > 200:
		weight *= 1.2
	case qty > 50:
		weight *= 1.0
	default:
		weight *= 0.7
	}

	// Velocidad de rotación por clasificación aduanera.
	switch lot.ShipmentClass {
	case entity.ClassOutsideInspection:
		weight *= 1.3
	case entity.ClassInspectionNonSelective:
		weight *= 1.1
	}

	weight *= seasonalBoost(lot.ItemDescription, d)

	return weight
}

// Palabras clave de temporada. Incluyen los nombres en árabe de los artículos
// tal como vienen del insumo aduanero.
var (
	summerDrinkWords = []string{"juice", "drink", "عصير", "شراب", "مشروب"}
	ramadanHotWords  = []string{"coffee", "tea", "date", "قهوة", "شاي", "تمر"}
	ramadanColdWords = []string{"juice", "milk", "عصير", "حليب"}
	winterWords      = []string{"chocolate", "coffee", "soup", "شوكولاتة", "قهوة", "شوربة"}
)

func seasonalBoost(itemDescription string, d time.Time) float64 {
	name := strings.ToLower(itemDescription)
	boost := 1.0

	// Bebidas frías en verano.
	if m := d.Month(); m >= time.June && m <= time.August {
		if containsAny(name, summerDrinkWords) {
			boost *= 1.8
		}
	}

	// Ramadán: café, té y dátiles para el iftar; jugos y leche también suben.
	if calendar.IsRamadan(d) {
		if containsAny(name, ramadanHotWords) {
			boost *= 2.0
		}
		if containsAny(name, ramadanColdWords) {
			boost *= 1.6
		}
	}

	// Invierno: chocolates, café, sopas.
	if m := d.Month(); m == time.December || m <= time.February {
		if containsAny(name, winterWords) {
			boost *= 1.4
		}
	}

	return boost
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// cachedProductWeight consulta el caché (lote, mes) antes de recalcular.
func (e *Engine) cachedProductWeight(lot *entity.Lot, d time.Time) float64 {
	key := cacheKey{lotID: lot.LotID, month: d.Month()}
	if w, ok := e.productWeights[key]; ok {
		return w
	}
	w := e.ProductWeight(lot, d)
	e.productWeights[key] = w
	return w
}

// SelectWeightedLots muestrea n lotes sin reemplazo con probabilidad
// proporcional a su peso; si todos los pesos son cero cae a muestreo
// uniforme. Devuelve menos de n si el pool es más chico.
func (e *Engine) SelectWeightedLots(pool []*entity.Lot, d time.Time, n int) []*entity.Lot {
	if len(pool) == 0 || n <= 0 {
		return nil
	}
	if n > len(pool) {
		n = len(pool)
	}

	candidates := make([]*entity.Lot, len(pool))
	copy(candidates, pool)

	weights := make([]float64, len(candidates))
	total := 0.0
	for i, lot := range candidates {
		weights[i] = e.cachedProductWeight(lot, d)
		total += weights[i]
	}
	if total == 0 {
		// Fallback uniforme.
		for i := range weights {
			weights[i] = 1.0
		}
		total = float64(len(weights))
	}

	selected := make([]*entity.Lot, 0, n)
	for len(selected) < n {
		r := e.rng.Float64() * total
		cum := 0.0
		idx := len(candidates) - 1
		for i, w := range weights {
			cum += w
			if r < cum {
				idx = i
				break
			}
		}
		selected = append(selected, candidates[idx])
		total -= weights[idx]
		candidates = append(candidates[:idx], candidates[idx+1:]...)
		weights = append(weights[:idx], weights[idx+1:]...)
	}
	return selected
}

// WeightedDate muestrea una fecha con probabilidad proporcional a su
// DateWeight; con pesos nulos elige uniforme.
func (e *Engine) WeightedDate(candidates []time.Time, periodStart, periodEnd time.Time) (time.Time, bool) {
	if len(candidates) == 0 {
		return time.Time{}, false
	}

	weights := make([]float64, len(candidates))
	total := 0.0
	for i, d := range candidates {
		weights[i] = e.DateWeight(d, periodStart, periodEnd)
		total += weights[i]
	}
	if total == 0 {
		return candidates[e.rng.Intn(len(candidates))], true
	}

	r := e.rng.Float64() * total
	cum := 0.0
	for i, w := range weights {
		cum += w
		if r < cum {
			return candidates[i], true
		}
	}
	return candidates[len(candidates)-1], true
}

// Pesos por hora del día comercial (9:00 a 21:00): almuerzo y tarde-noche
// concentran la venta.
var hourWeights = [13]float64{
	0.3, // 09
	0.5, // 10
	0.8, // 11
	1.2, // 12
	1.5, // 13
	1.0, // 14
	0.8, // 15
	0.9, // 16
	1.3, // 17
	1.8, // 18
	1.5, // 19
	1.0, // 20
	0.6, // 21
}

// RealisticTime asigna una hora verosímil del día a la factura. El viernes
// (medio día) concentra la venta en la mañana.
func (e *Engine) RealisticTime(d time.Time) time.Time {
	weights := hourWeights
	if d.Weekday() == time.Friday {
		for h := 15; h <= 21; h++ {
			weights[h-9] *= 0.2
		}
		for h := 9; h <= 12; h++ {
			weights[h-9] *= 1.5
		}
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := e.rng.Float64() * total
	hour := 21
	cum := 0.0
	for i, w := range weights {
		cum += w
		if r < cum {
			hour = 9 + i
			break
		}
	}
	minute := e.rng.Intn(60)

	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, d.Location())
}

// daysBetween días calendario completos entre a y b (b - a).
func daysBetween(a, b time.Time) int {
	return int(calendar.DateOnly(b).Sub(calendar.DateOnly(a)).Hours() / 24)
}
