package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrLotNotFound       = errors.New("lote no encontrado")
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrBelowCost         = errors.New("precio por debajo del costo")
	ErrNoCandidateLots   = errors.New("sin lotes candidatos")
	ErrCustomerTarget    = errors.New("no se pudo aproximar el monto del cliente")
)
