package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/ventas-sim/internal/domain"
)

// Clasificaciones de embarque (aduana). Determinan qué tipo de factura
// puede comprar el lote: las facturas TAX (B2B) solo compran
// ClassInspectionNonSelective; las SIMPLIFIED compran cualquiera.
const (
	ClassOutsideInspection      = "OUTSIDE_INSPECTION"       // fuera de inspección, no selectiva
	ClassInspectionNonSelective = "INSPECTION_NON_SELECTIVE" // bajo inspección, no selectiva
	ClassInspectionSelective    = "INSPECTION_SELECTIVE"     // bajo inspección, selectiva
)

// Lot representa un embarque aduanero de un artículo. Cada lote conserva su
// propio precio y costo: dos lotes del mismo artículo se venden por separado.
// QtyRemaining es el único campo mutable y solo lo modifica el libro de lotes.
type Lot struct {
	LotID                string
	CustomsDeclarationNo string
	ItemDescription      string
	ShipmentClass        string
	ImportDate           time.Time
	StockDate            time.Time // primera fecha en que el lote puede venderse
	QtyImported          int
	QtyRemaining         int
	UnitCostExVAT        decimal.Decimal
	UnitPriceExVAT       decimal.Decimal
}

// MakeLotID deriva la identidad estable del lote: declaración + descripción.
func MakeLotID(customsDeclarationNo, itemDescription string) string {
	return customsDeclarationNo + ":" + itemDescription
}

// NewLot construye un lote validando los invariantes en el constructor:
// identidad no vacía, cantidades coherentes y nunca precio < costo
// (un lote a pérdida jamás debe entrar al libro).
func NewLot(
	customsDeclarationNo, itemDescription, shipmentClass string,
	importDate, stockDate time.Time,
	qtyImported int,
	unitCost, unitPrice decimal.Decimal,
) (*Lot, error) {
	if strings.TrimSpace(customsDeclarationNo) == "" || strings.TrimSpace(itemDescription) == "" {
		return nil, fmt.Errorf("%w: lote sin declaración o descripción", domain.ErrInvalidInput)
	}
	switch shipmentClass {
	case ClassOutsideInspection, ClassInspectionNonSelective, ClassInspectionSelective:
	default:
		return nil, fmt.Errorf("%w: clasificación desconocida %q", domain.ErrInvalidInput, shipmentClass)
	}
	if qtyImported < 0 {
		return nil, fmt.Errorf("%w: cantidad importada negativa", domain.ErrInvalidInput)
	}
	if unitCost.IsNegative() || unitPrice.IsNegative() {
		return nil, fmt.Errorf("%w: precio o costo negativo", domain.ErrInvalidInput)
	}
	if unitPrice.LessThan(unitCost) {
		return nil, fmt.Errorf("%w: lote %s precio %s < costo %s",
			domain.ErrBelowCost,
			MakeLotID(customsDeclarationNo, itemDescription),
			unitPrice.StringFixed(2), unitCost.StringFixed(2))
	}
	if stockDate.Before(importDate) {
		stockDate = importDate
	}

	return &Lot{
		LotID:                MakeLotID(customsDeclarationNo, itemDescription),
		CustomsDeclarationNo: customsDeclarationNo,
		ItemDescription:      itemDescription,
		ShipmentClass:        shipmentClass,
		ImportDate:           importDate,
		StockDate:            stockDate,
		QtyImported:          qtyImported,
		QtyRemaining:         qtyImported,
		UnitCostExVAT:        unitCost,
		UnitPriceExVAT:       unitPrice,
	}, nil
}

// IsProfitable indica si el lote puede venderse sin pérdida.
func (l *Lot) IsProfitable() bool {
	return !l.UnitPriceExVAT.LessThan(l.UnitCostExVAT)
}

// InStockAt indica si el lote ya llegó a bodega en la fecha dada.
func (l *Lot) InStockAt(d time.Time) bool {
	return !l.StockDate.After(d)
}

// Depleted indica si el lote quedó sin existencias (sigue siendo consultable
// para auditoría, solo deja de estar disponible para la venta).
func (l *Lot) Depleted() bool {
	return l.QtyRemaining <= 0
}
