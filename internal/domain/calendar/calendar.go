// Package calendar concentra las reglas de calendario comercial: día de
// descanso semanal, feriados y la conversión al calendario Hijri
// (Umm al-Qura) para las temporadas religiosas.
package calendar

import (
	"time"

	"github.com/hablullah/go-hijri"
)

// Meses Hijri relevantes para los refuerzos estacionales.
const (
	HijriShaaban = 8
	HijriRamadan = 9
)

// BusinessCalendar conoce los días no laborables del negocio. El viernes es
// el día de descanso semanal fijo; los feriados vienen del insumo externo.
type BusinessCalendar struct {
	holidays map[time.Time]struct{}
}

// New construye el calendario con la lista de feriados (fechas a medianoche).
func New(holidays []time.Time) *BusinessCalendar {
	set := make(map[time.Time]struct{}, len(holidays))
	for _, h := range holidays {
		set[DateOnly(h)] = struct{}{}
	}
	return &BusinessCalendar{holidays: set}
}

// IsWorkingDay indica si se vende en la fecha: ni viernes ni feriado.
func (c *BusinessCalendar) IsWorkingDay(d time.Time) bool {
	if d.Weekday() == time.Friday {
		return false
	}
	_, holiday := c.holidays[DateOnly(d)]
	return !holiday
}

// WorkingDays enumera los días hábiles del período [start, end], inclusive.
func (c *BusinessCalendar) WorkingDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d := DateOnly(start); !d.After(DateOnly(end)); d = d.AddDate(0, 0, 1) {
		if c.IsWorkingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// IsRamadan indica si la fecha cae en el mes 9 del calendario Umm al-Qura.
// Si la conversión falla (fuera de rango del calendario) se asume que no.
func IsRamadan(d time.Time) bool {
	return hijriMonthIs(d, HijriRamadan)
}

// IsHolySeason indica Sha'ban o Ramadán, la temporada de mayor venta.
func IsHolySeason(d time.Time) bool {
	return hijriMonthIs(d, HijriShaaban) || hijriMonthIs(d, HijriRamadan)
}

func hijriMonthIs(d time.Time, month int64) bool {
	h, err := hijri.CreateUmmAlQuraDate(d)
	if err != nil {
		return false
	}
	return h.Month == month
}

// DateOnly normaliza una fecha a medianoche UTC para usarla como llave.
func DateOnly(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
