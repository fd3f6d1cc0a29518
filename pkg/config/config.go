package config

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config agrupa la configuración del motor de generación (lectura vía Viper
// desde env y opcionalmente archivo). Son constantes de negocio, no flags:
// los defaults reproducen los parámetros calibrados del generador.
type Config struct {
	App        AppConfig
	Tax        TaxConfig
	Basket     BasketConfig
	Inventory  InventoryConfig
	Alignment  AlignmentConfig
	Refinement RefinementConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env  string // development, staging, production
	Name string
	Seed int64 // semilla del generador pseudoaleatorio (reproducibilidad)
}

// TaxConfig parámetros fiscales.
type TaxConfig struct {
	VATRate decimal.Decimal // IVA, ej. 0.15 = 15%
}

// BasketConfig límites de composición de canastas.
type BasketConfig struct {
	MinItemsPerInvoice int
	MaxItemsPerInvoice int
	MinQtyPerItem      int
	MaxQtyPerItem      int
	MaxAttempts        int             // tope de intentos por canasta
	QtyJitterPct       float64         // ±jitter sobre la cantidad ideal, ej. 0.20
	OvershootMargin    decimal.Decimal // margen permitido por encima del objetivo por línea
}

// InventoryConfig parámetros del libro de lotes.
type InventoryConfig struct {
	MinStockDelayDays int // días mínimos entre importación y disponibilidad
	MaxStockDelayDays int
}

// AlignmentConfig parámetros del alineador trimestral.
type AlignmentConfig struct {
	StrictTolerance     decimal.Decimal // tolerancia inc. IVA en modo estricto
	BestEffortTolerance decimal.Decimal // tolerancia inc. IVA en modo best-effort
	MinInvoiceSize      decimal.Decimal // clamp inferior del tamaño de factura (ex IVA)
	MaxInvoiceSize      decimal.Decimal // clamp superior del tamaño de factura (ex IVA)
	CustomerBand        decimal.Decimal // banda de corte del primer pase B2B
	InvoicesPerWorkday  int             // presupuesto de facturas por día hábil (estricto)
	BestEffortPerDay    int             // presupuesto por día hábil (best-effort)
}

// RefinementConfig parámetros del refinador iterativo.
type RefinementConfig struct {
	MaxIterations int
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde
// archivo .env o config.env). Las env vars tienen prioridad sobre los defaults.
func Load() (*Config, error) {
	v := viper.New()

	// Opcional: archivo de configuración (.env o config.env)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:  getString(v, "APP_ENV", "development"),
			Name: getString(v, "APP_NAME", "ventas-sim"),
			Seed: int64(getInt(v, "GEN_SEED", 42)),
		},
		Tax: TaxConfig{
			VATRate: getDecimal(v, "VAT_RATE", "0.15"),
		},
		Basket: BasketConfig{
			MinItemsPerInvoice: getInt(v, "BASKET_MIN_ITEMS", 2),
			MaxItemsPerInvoice: getInt(v, "BASKET_MAX_ITEMS", 10),
			MinQtyPerItem:      getInt(v, "BASKET_MIN_QTY", 1),
			MaxQtyPerItem:      getInt(v, "BASKET_MAX_QTY", 40),
			MaxAttempts:        getInt(v, "BASKET_MAX_ATTEMPTS", 50),
			QtyJitterPct:       getFloat(v, "BASKET_QTY_JITTER", 0.20),
			OvershootMargin:    getDecimal(v, "BASKET_OVERSHOOT_MARGIN", "100.00"),
		},
		Inventory: InventoryConfig{
			MinStockDelayDays: getInt(v, "STOCK_DELAY_MIN_DAYS", 7),
			MaxStockDelayDays: getInt(v, "STOCK_DELAY_MAX_DAYS", 12),
		},
		Alignment: AlignmentConfig{
			StrictTolerance:     getDecimal(v, "ALIGN_STRICT_TOLERANCE", "5.00"),
			BestEffortTolerance: getDecimal(v, "ALIGN_BEST_EFFORT_TOLERANCE", "50.00"),
			MinInvoiceSize:      getDecimal(v, "ALIGN_MIN_INVOICE_SIZE", "500.00"),
			MaxInvoiceSize:      getDecimal(v, "ALIGN_MAX_INVOICE_SIZE", "10000.00"),
			CustomerBand:        getDecimal(v, "ALIGN_CUSTOMER_BAND", "50.00"),
			InvoicesPerWorkday:  getInt(v, "ALIGN_INVOICES_PER_WORKDAY", 20),
			BestEffortPerDay:    getInt(v, "ALIGN_BEST_EFFORT_PER_DAY", 50),
		},
		Refinement: RefinementConfig{
			MaxIterations: getInt(v, "REFINE_MAX_ITERATIONS", 50),
		},
	}

	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, _ := strconv.Atoi(v.GetString(key))
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getFloat(v *viper.Viper, key string, def float64) float64 {
	if v.IsSet(key) {
		return v.GetFloat64(key)
	}
	return def
}

// getDecimal parsea montos como decimal fijo; el default debe ser un literal válido.
func getDecimal(v *viper.Viper, key, def string) decimal.Decimal {
	raw := def
	if v.IsSet(key) {
		raw = v.GetString(key)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		d, _ = decimal.NewFromString(def)
	}
	return d
}
