// Package ports define los contratos con los colaboradores externos del
// núcleo: la carga de datos (planillas) y la escritura de resultados
// (reportes, PDF). El núcleo no hace I/O; solo consume y produce estas
// colecciones en memoria.
package ports

import (
	"time"

	"github.com/jhoicas/ventas-sim/internal/application/reporting"
	"github.com/jhoicas/ventas-sim/internal/domain/entity"
)

// DataSource entrega las colecciones de entrada ya parseadas.
type DataSource interface {
	Lots() ([]*entity.Lot, error)
	Customers() ([]entity.CustomerIntent, error)
	Holidays() ([]time.Time, error)
	Quarters() ([]*entity.QuarterTarget, error)
}

// ResultWriter persiste el resultado de un trimestre: las facturas finales y
// el agregado real-vs-meta.
type ResultWriter interface {
	WriteQuarter(summary reporting.QuarterSummary, invoices []*entity.Invoice) error
}
