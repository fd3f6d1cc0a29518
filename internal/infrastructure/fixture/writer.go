package fixture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jhoicas/ventas-sim/internal/application/ports"
	"github.com/jhoicas/ventas-sim/internal/application/reporting"
	"github.com/jhoicas/ventas-sim/internal/domain/entity"
)

// Writer persiste el resultado de cada trimestre como un archivo JSON en el
// directorio de salida: el agregado real-vs-meta y las facturas completas.
type Writer struct {
	dir string
}

var _ ports.ResultWriter = (*Writer)(nil)

// NewWriter construye el escritor de resultados, creando el directorio si no
// existe.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creando directorio de salida: %w", err)
	}
	return &Writer{dir: dir}, nil
}

type quarterDocument struct {
	Summary  summaryDocument   `json:"summary"`
	Invoices []invoiceDocument `json:"invoices"`
}

type summaryDocument struct {
	Quarter            string `json:"quarter"`
	PeriodStart        string `json:"period_start"`
	PeriodEnd          string `json:"period_end"`
	Invoices           int    `json:"invoices"`
	TaxInvoices        int    `json:"tax_invoices"`
	SimplifiedInvoices int    `json:"simplified_invoices"`
	LineItems          int    `json:"line_items"`
	TargetIncVAT       string `json:"target_inc_vat"`
	ActualIncVAT       string `json:"actual_inc_vat"`
	TargetExVAT        string `json:"target_ex_vat"`
	ActualExVAT        string `json:"actual_ex_vat"`
	TargetVAT          string `json:"target_vat"`
	ActualVAT          string `json:"actual_vat"`
	Variance           string `json:"variance"`
	VariancePct        string `json:"variance_pct"`
	WithinTolerance    bool   `json:"within_tolerance"`
}

type invoiceDocument struct {
	ID                string         `json:"id"`
	Number            string         `json:"number"`
	Type              string         `json:"type"`
	CustomerName      string         `json:"customer_name"`
	CustomerTaxNumber string         `json:"customer_tax_number,omitempty"`
	CustomerAddress   string         `json:"customer_address,omitempty"`
	IssuedAt          string         `json:"issued_at"`
	Subtotal          string         `json:"subtotal"`
	VATAmount         string         `json:"vat_amount"`
	Total             string         `json:"total"`
	Lines             []lineDocument `json:"lines"`
}

type lineDocument struct {
	LotID                string `json:"lot_id"`
	CustomsDeclarationNo string `json:"customs_declaration_no"`
	ItemDescription      string `json:"item_description"`
	ShipmentClass        string `json:"shipment_class"`
	Quantity             int    `json:"quantity"`
	UnitPriceExVAT       string `json:"unit_price_ex_vat"`
	Subtotal             string `json:"subtotal"`
	VATAmount            string `json:"vat_amount"`
	Total                string `json:"total"`
}

// WriteQuarter escribe <nombre-del-trimestre>.json con el resultado completo.
func (w *Writer) WriteQuarter(summary reporting.QuarterSummary, invoices []*entity.Invoice) error {
	doc := quarterDocument{
		Summary: summaryDocument{
			Quarter:            summary.Quarter,
			PeriodStart:        summary.PeriodStart.Format(dateLayout),
			PeriodEnd:          summary.PeriodEnd.Format(dateLayout),
			Invoices:           summary.Invoices,
			TaxInvoices:        summary.TaxInvoices,
			SimplifiedInvoices: summary.SimplifiedInvoices,
			LineItems:          summary.LineItems,
			TargetIncVAT:       summary.TargetIncVAT.StringFixed(2),
			ActualIncVAT:       summary.ActualIncVAT.StringFixed(2),
			TargetExVAT:        summary.TargetExVAT.StringFixed(2),
			ActualExVAT:        summary.ActualExVAT.StringFixed(2),
			TargetVAT:          summary.TargetVAT.StringFixed(2),
			ActualVAT:          summary.ActualVAT.StringFixed(2),
			Variance:           summary.Variance.StringFixed(2),
			VariancePct:        summary.VariancePct.StringFixed(3),
			WithinTolerance:    summary.WithinTolerance,
		},
		Invoices: make([]invoiceDocument, 0, len(invoices)),
	}

	for _, inv := range invoices {
		doc.Invoices = append(doc.Invoices, toInvoiceDocument(inv))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(w.dir, summary.Quarter+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("escribiendo %s: %w", path, err)
	}
	return nil
}

func toInvoiceDocument(inv *entity.Invoice) invoiceDocument {
	d := invoiceDocument{
		ID:                inv.ID,
		Number:            inv.Number,
		Type:              inv.Type,
		CustomerName:      inv.CustomerName,
		CustomerTaxNumber: inv.CustomerTaxNumber,
		CustomerAddress:   inv.CustomerAddress,
		IssuedAt:          inv.IssuedAt.Format(time.RFC3339),
		Subtotal:          inv.Subtotal.StringFixed(2),
		VATAmount:         inv.VATAmount.StringFixed(2),
		Total:             inv.Total.StringFixed(2),
		Lines:             make([]lineDocument, 0, len(inv.Lines)),
	}
	for _, line := range inv.Lines {
		d.Lines = append(d.Lines, lineDocument{
			LotID:                line.LotID,
			CustomsDeclarationNo: line.CustomsDeclarationNo,
			ItemDescription:      line.ItemDescription,
			ShipmentClass:        line.ShipmentClass,
			Quantity:             line.Quantity,
			UnitPriceExVAT:       line.UnitPriceExVAT.StringFixed(2),
			Subtotal:             line.Subtotal.StringFixed(2),
			VATAmount:            line.VATAmount.StringFixed(2),
			Total:                line.Total.StringFixed(2),
		})
	}
	return d
}
