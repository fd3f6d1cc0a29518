// Package fixture implementa los puertos de datos sobre archivos JSON: la
// carga de lotes, clientes, feriados y metas, y la escritura de resultados.
// Es el colaborador de I/O del CLI; el núcleo nunca toca archivos.
package fixture

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/ventas-sim/internal/application/ports"
	"github.com/jhoicas/ventas-sim/internal/domain"
	"github.com/jhoicas/ventas-sim/internal/domain/entity"
	"github.com/jhoicas/ventas-sim/pkg/config"
)

const dateLayout = "2006-01-02"

// Nombres de archivo esperados dentro del directorio de datos.
const (
	lotsFile      = "lots.json"
	customersFile = "customers.json"
	holidaysFile  = "holidays.json"
	quartersFile  = "quarters.json"
)

// Source carga las colecciones de entrada desde un directorio de archivos
// JSON. La fecha de bodega de cada lote se deriva de la de importación más
// una demora aleatoria dentro de la ventana configurada, con la fuente
// sembrada de la corrida (reproducible).
type Source struct {
	dir string
	cfg config.InventoryConfig
	rng *rand.Rand
}

var _ ports.DataSource = (*Source)(nil)

// NewSource construye la fuente de datos.
func NewSource(dir string, cfg config.InventoryConfig, rng *rand.Rand) *Source {
	return &Source{dir: dir, cfg: cfg, rng: rng}
}

type lotRecord struct {
	CustomsDeclarationNo string          `json:"customs_declaration_no"`
	ItemDescription      string          `json:"item_description"`
	ShipmentClass        string          `json:"shipment_class"`
	ImportDate           string          `json:"import_date"`
	Quantity             int             `json:"quantity"`
	UnitCostExVAT        decimal.Decimal `json:"unit_cost_ex_vat"`
	UnitPriceExVAT       decimal.Decimal `json:"unit_price_ex_vat"`
}

// Lots carga los lotes del archivo de declaraciones aduaneras.
func (s *Source) Lots() ([]*entity.Lot, error) {
	var records []lotRecord
	if err := s.read(lotsFile, &records); err != nil {
		return nil, err
	}

	lots := make([]*entity.Lot, 0, len(records))
	for i, r := range records {
		importDate, err := time.Parse(dateLayout, r.ImportDate)
		if err != nil {
			return nil, fmt.Errorf("%w: lote #%d fecha de importación %q", domain.ErrInvalidInput, i, r.ImportDate)
		}
		stockDate := importDate.AddDate(0, 0, s.stockDelayDays())

		lot, err := entity.NewLot(
			r.CustomsDeclarationNo, r.ItemDescription, r.ShipmentClass,
			importDate, stockDate, r.Quantity,
			r.UnitCostExVAT, r.UnitPriceExVAT)
		if err != nil {
			return nil, fmt.Errorf("lote #%d: %w", i, err)
		}
		lots = append(lots, lot)
	}
	return lots, nil
}

// stockDelayDays demora de llegada a bodega dentro de la ventana configurada.
func (s *Source) stockDelayDays() int {
	min, max := s.cfg.MinStockDelayDays, s.cfg.MaxStockDelayDays
	if max <= min {
		return min
	}
	return min + s.rng.Intn(max-min+1)
}

type customerRecord struct {
	Name         string          `json:"name"`
	TaxNumber    string          `json:"tax_number"`
	Address      string          `json:"address"`
	AmountIncVAT decimal.Decimal `json:"amount_inc_vat"`
	PurchaseDate string          `json:"purchase_date"`
}

// Customers carga los compromisos B2B.
func (s *Source) Customers() ([]entity.CustomerIntent, error) {
	var records []customerRecord
	if err := s.read(customersFile, &records); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil // archivo opcional
		}
		return nil, err
	}

	customers := make([]entity.CustomerIntent, 0, len(records))
	for i, r := range records {
		purchaseDate, err := time.Parse(dateLayout, r.PurchaseDate)
		if err != nil {
			return nil, fmt.Errorf("%w: cliente #%d fecha de compra %q", domain.ErrInvalidInput, i, r.PurchaseDate)
		}
		customers = append(customers, entity.CustomerIntent{
			Name:         r.Name,
			TaxNumber:    r.TaxNumber,
			Address:      r.Address,
			AmountIncVAT: r.AmountIncVAT,
			PurchaseDate: purchaseDate,
		})
	}
	return customers, nil
}

// Holidays carga la lista de feriados. El archivo es opcional.
func (s *Source) Holidays() ([]time.Time, error) {
	var records []string
	if err := s.read(holidaysFile, &records); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	holidays := make([]time.Time, 0, len(records))
	for i, r := range records {
		d, err := time.Parse(dateLayout, r)
		if err != nil {
			return nil, fmt.Errorf("%w: feriado #%d %q", domain.ErrInvalidInput, i, r)
		}
		holidays = append(holidays, d)
	}
	return holidays, nil
}

type quarterRecord struct {
	Name          string          `json:"name"`
	PeriodStart   string          `json:"period_start"`
	PeriodEnd     string          `json:"period_end"`
	SalesIncVAT   decimal.Decimal `json:"sales_inc_vat"`
	SalesExVAT    decimal.Decimal `json:"sales_ex_vat"`
	VATAmount     decimal.Decimal `json:"vat_amount"`
	AllowVariance bool            `json:"allow_variance"`
}

// Quarters carga las metas trimestrales y les adjunta los compromisos B2B;
// cada meta filtra después los de su período.
func (s *Source) Quarters() ([]*entity.QuarterTarget, error) {
	var records []quarterRecord
	if err := s.read(quartersFile, &records); err != nil {
		return nil, err
	}
	customers, err := s.Customers()
	if err != nil {
		return nil, err
	}

	quarters := make([]*entity.QuarterTarget, 0, len(records))
	for i, r := range records {
		start, err := time.Parse(dateLayout, r.PeriodStart)
		if err != nil {
			return nil, fmt.Errorf("%w: trimestre #%d inicio %q", domain.ErrInvalidInput, i, r.PeriodStart)
		}
		end, err := time.Parse(dateLayout, r.PeriodEnd)
		if err != nil {
			return nil, fmt.Errorf("%w: trimestre #%d fin %q", domain.ErrInvalidInput, i, r.PeriodEnd)
		}
		quarters = append(quarters, &entity.QuarterTarget{
			Name:          r.Name,
			PeriodStart:   start,
			PeriodEnd:     end,
			SalesIncVAT:   r.SalesIncVAT,
			SalesExVAT:    r.SalesExVAT,
			VATAmount:     r.VATAmount,
			AllowVariance: r.AllowVariance,
			Customers:     customers,
		})
	}
	return quarters, nil
}

func (s *Source) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
