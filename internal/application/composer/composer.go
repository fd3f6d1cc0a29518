// Package composer arma canastas de venta: dado un monto objetivo y un pool
// de lotes, selecciona lotes y cantidades que se aproximen al objetivo sin
// vender nunca por debajo del costo.
package composer

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/ventas-sim/internal/domain/entity"
	"github.com/jhoicas/ventas-sim/internal/domain/ledger"
	"github.com/jhoicas/ventas-sim/internal/domain/weighting"
	"github.com/jhoicas/ventas-sim/pkg/config"
	"github.com/jhoicas/ventas-sim/pkg/logger"
)

// LotSelector es la estrategia de selección de lotes. Hay dos
// implementaciones: ponderada (recomendada) y uniforme (modo heredado).
type LotSelector interface {
	// SelectLot elige un lote del pool para la fecha dada, o false si no hay.
	SelectLot(pool []*entity.Lot, d time.Time) (*entity.Lot, bool)
}

// WeightedSelector selecciona con el motor de pesos (popularidad por precio,
// stock, clasificación y temporada).
type WeightedSelector struct {
	Engine *weighting.Engine
}

func (s *WeightedSelector) SelectLot(pool []*entity.Lot, d time.Time) (*entity.Lot, bool) {
	lots := s.Engine.SelectWeightedLots(pool, d, 1)
	if len(lots) == 0 {
		return nil, false
	}
	return lots[0], true
}

// UniformSelector selecciona uniforme al azar (modo heredado).
type UniformSelector struct {
	RNG *rand.Rand
}

func (s *UniformSelector) SelectLot(pool []*entity.Lot, d time.Time) (*entity.Lot, bool) {
	if len(pool) == 0 {
		return nil, false
	}
	return pool[s.RNG.Intn(len(pool))], true
}

// Escalera de cantidades de reintento cuando el lote no alcanza para la
// cantidad ideal: se prueba de mayor a menor contra el libro.
var probeQuantities = []int{30, 20, 10, 5, 3, 1}

// Composer construye canastas contra el libro de lotes. No es dueño del
// libro: lo recibe por referencia y toda mutación pasa por la API de
// deducción.
type Composer struct {
	ledger   *ledger.Ledger
	selector LotSelector
	rng      *rand.Rand
	cfg      config.BasketConfig
	vatRate  decimal.Decimal
	log      *logger.Logger
}

// New construye el compositor de canastas.
func New(
	led *ledger.Ledger,
	selector LotSelector,
	rng *rand.Rand,
	cfg config.BasketConfig,
	vatRate decimal.Decimal,
	log *logger.Logger,
) *Composer {
	return &Composer{
		ledger:   led,
		selector: selector,
		rng:      rng,
		cfg:      cfg,
		vatRate:  vatRate,
		log:      log,
	}
}

// Request parámetros de una canasta.
type Request struct {
	TargetSubtotal  decimal.Decimal // objetivo ex IVA
	Date            time.Time       // fecha de la factura
	Classes         []string        // clasificaciones permitidas
	IgnoreStockDate bool            // true en preventa B2B: no filtra por llegada
}

// Compose arma una canasta que se aproxime al objetivo. Devuelve las líneas
// generadas; una canasta vacía significa "no se puede construir esta factura"
// y el llamador debe saltarla, no es un error fatal. Cada lote usado queda
// deducido del libro de forma permanente.
func (c *Composer) Compose(req Request) []entity.LineItem {
	pool := c.Candidates(req)
	if len(pool) == 0 {
		c.log.Debug().
			Time("date", req.Date).
			Strs("classes", req.Classes).
			Msg("sin lotes candidatos para la canasta")
		return nil
	}

	var lines []entity.LineItem
	remaining := req.TargetSubtotal
	used := make(map[string]struct{}) // un lote no se reparte en dos líneas de la misma factura

	one := decimal.NewFromInt(1)
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if remaining.LessThanOrEqual(one) {
			break
		}

		available := unusedLots(pool, used)
		if len(available) == 0 {
			break
		}

		lot, ok := c.selector.SelectLot(available, req.Date)
		if !ok {
			break
		}

		// Invariante duro: jamás vender por debajo del costo.
		if !lot.IsProfitable() {
			c.log.Warn().
				Str("lot_id", lot.LotID).
				Str("price", lot.UnitPriceExVAT.StringFixed(2)).
				Str("cost", lot.UnitCostExVAT.StringFixed(2)).
				Msg("lote omitido: precio por debajo del costo")
			used[lot.LotID] = struct{}{}
			continue
		}

		qty := c.idealQuantity(remaining, lot.UnitPriceExVAT)
		if !c.ledger.HasLotStock(lot.LotID, qty) {
			qty = 0
			for _, probe := range probeQuantities {
				if c.ledger.HasLotStock(lot.LotID, probe) {
					qty = probe
					break
				}
			}
			if qty == 0 {
				used[lot.LotID] = struct{}{}
				continue
			}
		}

		lineSubtotal := lot.UnitPriceExVAT.Mul(decimal.NewFromInt(int64(qty))).Round(2)
		if lineSubtotal.GreaterThan(remaining.Add(c.cfg.OvershootMargin)) {
			// Sobregiraría demasiado el objetivo; probar otro lote.
			used[lot.LotID] = struct{}{}
			continue
		}

		rec, err := c.ledger.Deduct(lot.LotID, qty)
		if err != nil {
			// Otro candidato; la deducción fallida no mutó nada.
			used[lot.LotID] = struct{}{}
			continue
		}
		line, err := entity.NewLineItem(rec, c.vatRate)
		if err != nil {
			// La rentabilidad ya se validó; esto sería un bug del generador.
			c.log.Error().Err(err).Str("lot_id", lot.LotID).Msg("línea inválida tras deducción")
			continue
		}

		lines = append(lines, line)
		remaining = remaining.Sub(line.Subtotal)
		used[lot.LotID] = struct{}{}
	}

	return lines
}

// Candidates junta los lotes vendibles para las clasificaciones pedidas.
// Con IgnoreStockDate en true (preventa B2B) no se filtra por llegada.
func (c *Composer) Candidates(req Request) []*entity.Lot {
	asOf := req.Date
	if req.IgnoreStockDate {
		asOf = time.Time{}
	}
	var pool []*entity.Lot
	for _, class := range req.Classes {
		pool = append(pool, c.ledger.LotsByClassification(class, asOf)...)
	}
	return pool
}

// idealQuantity cantidad ideal: floor(restante/precio) con jitter de ±20%
// para realismo, acotada a los límites configurados.
func (c *Composer) idealQuantity(remaining, price decimal.Decimal) int {
	qty := int(remaining.Div(price).IntPart())

	if c.cfg.QtyJitterPct > 0 && qty > 1 {
		jitter := 1.0 + (c.rng.Float64()*2-1)*c.cfg.QtyJitterPct
		qty = int(float64(qty) * jitter)
	}

	if qty < c.cfg.MinQtyPerItem {
		qty = c.cfg.MinQtyPerItem
	}
	if qty > c.cfg.MaxQtyPerItem {
		qty = c.cfg.MaxQtyPerItem
	}
	return qty
}

func unusedLots(pool []*entity.Lot, used map[string]struct{}) []*entity.Lot {
	var out []*entity.Lot
	for _, lot := range pool {
		if _, ok := used[lot.LotID]; !ok {
			out = append(out, lot)
		}
	}
	return out
}
