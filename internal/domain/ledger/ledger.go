// Package ledger implementa el libro de lotes: la única fuente de verdad
// sobre qué puede venderse y a qué precio. Todas las mutaciones pasan por su
// API de deducción para que los invariantes se apliquen en un solo lugar.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/ventas-sim/internal/domain"
	"github.com/jhoicas/ventas-sim/internal/domain/entity"
)

// Ledger mantiene el inventario por lotes con consumo FIFO. Se construye una
// vez por corrida y se comparte por referencia explícita (nunca singleton):
// cada deducción observa el efecto de todas las anteriores.
type Ledger struct {
	lots  []*entity.Lot
	index map[string]*entity.Lot // lot_id -> lote
}

// New construye el libro a partir de los lotes cargados por el colaborador
// externo. Los lotes se copian al índice; la identidad duplicada es un error
// del insumo.
func New(lots []*entity.Lot) (*Ledger, error) {
	l := &Ledger{
		lots:  make([]*entity.Lot, 0, len(lots)),
		index: make(map[string]*entity.Lot, len(lots)),
	}
	for _, lot := range lots {
		if _, dup := l.index[lot.LotID]; dup {
			return nil, fmt.Errorf("%w: lot_id duplicado %s", domain.ErrInvalidInput, lot.LotID)
		}
		l.lots = append(l.lots, lot)
		l.index[lot.LotID] = lot
	}
	return l, nil
}

// Lot devuelve un lote por identidad (incluye lotes agotados, para auditoría).
func (l *Ledger) Lot(lotID string) (*entity.Lot, error) {
	lot, ok := l.index[lotID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLotNotFound, lotID)
	}
	return lot, nil
}

// LotsByClassification devuelve los lotes de una clasificación con
// existencias y ya llegados a bodega en asOf. Con asOf cero no se filtra por
// fecha de llegada (semántica de preventa B2B).
func (l *Ledger) LotsByClassification(class string, asOf time.Time) []*entity.Lot {
	var out []*entity.Lot
	for _, lot := range l.lots {
		if lot.ShipmentClass != class || lot.Depleted() {
			continue
		}
		if !asOf.IsZero() && !lot.InStockAt(asOf) {
			continue
		}
		out = append(out, lot)
	}
	return out
}

// AllLots devuelve todos los lotes con existencias, de cualquier
// clasificación, con el mismo filtro opcional de fecha.
func (l *Ledger) AllLots(asOf time.Time) []*entity.Lot {
	var out []*entity.Lot
	for _, lot := range l.lots {
		if lot.Depleted() {
			continue
		}
		if !asOf.IsZero() && !lot.InStockAt(asOf) {
			continue
		}
		out = append(out, lot)
	}
	return out
}

// LotsForItem devuelve los lotes con existencias de un artículo en orden
// FIFO: ascendente por (stock_date, import_date).
func (l *Ledger) LotsForItem(itemDescription string) []*entity.Lot {
	var out []*entity.Lot
	for _, lot := range l.lots {
		if lot.ItemDescription == itemDescription && !lot.Depleted() {
			out = append(out, lot)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StockDate.Equal(out[j].StockDate) {
			return out[i].StockDate.Before(out[j].StockDate)
		}
		return out[i].ImportDate.Before(out[j].ImportDate)
	})
	return out
}

// AvailableQuantityForItem suma las existencias de un artículo en todos sus lotes.
func (l *Ledger) AvailableQuantityForItem(itemDescription string) int {
	total := 0
	for _, lot := range l.lots {
		if lot.ItemDescription == itemDescription {
			total += lot.QtyRemaining
		}
	}
	return total
}

// HasLotStock indica si un lote específico tiene al menos qty unidades.
func (l *Ledger) HasLotStock(lotID string, qty int) bool {
	lot, ok := l.index[lotID]
	return ok && lot.QtyRemaining >= qty
}

// HasItemStock indica si un artículo tiene al menos qty unidades entre todos
// sus lotes.
func (l *Ledger) HasItemStock(itemDescription string, qty int) bool {
	return l.AvailableQuantityForItem(itemDescription) >= qty
}

// Deduct descuenta qty unidades de un lote específico de forma atómica y
// devuelve la instantánea de precio/costo del lote. Falla con
// ErrInsufficientStock sin mutar nada si no alcanza. La deducción es
// permanente: no existe rollback, el llamador valida antes de comprometerse.
func (l *Ledger) Deduct(lotID string, qty int) (entity.DeductionRecord, error) {
	lot, ok := l.index[lotID]
	if !ok {
		return entity.DeductionRecord{}, fmt.Errorf("%w: %s", domain.ErrLotNotFound, lotID)
	}
	if qty <= 0 {
		return entity.DeductionRecord{}, fmt.Errorf("%w: cantidad %d", domain.ErrInvalidInput, qty)
	}
	if lot.QtyRemaining < qty {
		return entity.DeductionRecord{}, fmt.Errorf(
			"%w: lote %s solicitado %d disponible %d",
			domain.ErrInsufficientStock, lotID, qty, lot.QtyRemaining)
	}

	lot.QtyRemaining -= qty

	return entity.DeductionRecord{
		LotID:                lot.LotID,
		CustomsDeclarationNo: lot.CustomsDeclarationNo,
		ItemDescription:      lot.ItemDescription,
		ShipmentClass:        lot.ShipmentClass,
		Quantity:             qty,
		UnitPriceExVAT:       lot.UnitPriceExVAT,
		UnitCostExVAT:        lot.UnitCostExVAT,
	}, nil
}

// DeductFIFO descuenta qty unidades de un artículo consumiendo lotes en orden
// de llegada (el más antiguo primero) y devuelve un registro por lote usado.
// Es todo-o-nada: si el total disponible no alcanza, falla con
// ErrInsufficientStock sin deducción parcial.
func (l *Ledger) DeductFIFO(itemDescription string, qty int) ([]entity.DeductionRecord, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: cantidad %d", domain.ErrInvalidInput, qty)
	}
	available := l.AvailableQuantityForItem(itemDescription)
	if available < qty {
		return nil, fmt.Errorf(
			"%w: artículo %q solicitado %d disponible %d",
			domain.ErrInsufficientStock, itemDescription, qty, available)
	}

	var records []entity.DeductionRecord
	remaining := qty
	for _, lot := range l.LotsForItem(itemDescription) {
		if remaining <= 0 {
			break
		}
		take := remaining
		if lot.QtyRemaining < take {
			take = lot.QtyRemaining
		}
		rec, err := l.Deduct(lot.LotID, take)
		if err != nil {
			// La disponibilidad ya se verificó; un fallo aquí es un bug.
			return nil, err
		}
		records = append(records, rec)
		remaining -= take
	}
	return records, nil
}

// Summary estadísticas del inventario para diagnóstico.
type Summary struct {
	TotalLots            int
	LotsWithStock        int
	LotsDepleted         int
	QuantityRemaining    int
	UniqueItems          int
	UniqueItemsAvailable int
	LotsByClass          map[string]int
}

// Summarize calcula las estadísticas actuales del libro.
func (l *Ledger) Summarize() Summary {
	s := Summary{LotsByClass: make(map[string]int)}
	items := make(map[string]struct{})
	itemsAvail := make(map[string]struct{})

	s.TotalLots = len(l.lots)
	for _, lot := range l.lots {
		items[lot.ItemDescription] = struct{}{}
		if lot.Depleted() {
			s.LotsDepleted++
			continue
		}
		s.LotsWithStock++
		s.QuantityRemaining += lot.QtyRemaining
		s.LotsByClass[lot.ShipmentClass]++
		itemsAvail[lot.ItemDescription] = struct{}{}
	}
	s.UniqueItems = len(items)
	s.UniqueItemsAvailable = len(itemsAvail)
	return s
}

// AnyStockAt indica si existe al menos un lote vendible en la fecha dada.
// El alineador lo usa para descartar días sin inventario.
func (l *Ledger) AnyStockAt(d time.Time) bool {
	for _, lot := range l.lots {
		if !lot.Depleted() && lot.InStockAt(d) {
			return true
		}
	}
	return false
}
