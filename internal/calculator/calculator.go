// Package calculator estimates monthly savings and avoided CO2 for a
// household switching its electricity to a renewable system.
package calculator

import (
	"errors"
	"math"
	"strings"
)

const (
	TypeSolar  = "solar"
	TypeWind   = "wind"
	TypeHybrid = "hybrid"
)

// ErrInvalidUsage is returned for a usage that is not a positive number.
var ErrInvalidUsage = errors.New("calculator: energy usage must be a positive number")

// Rate is the saving per kWh in euros and the CO2 avoided per kWh in kg.
type Rate struct {
	Savings float64
	CO2     float64
}

var (
	defaultRate = Rate{Savings: 0.10, CO2: 0.5}

	rates = map[string]Rate{
		TypeSolar:  {Savings: 0.15, CO2: 0.8},
		TypeWind:   {Savings: 0.12, CO2: 0.7},
		TypeHybrid: {Savings: 0.18, CO2: 0.9},
	}
)

type Result struct {
	SystemType     string  `json:"type"`
	MonthlySavings float64 `json:"monthlySavings"`
	AnnualSavings  float64 `json:"annualSavings"`
	AnnualCO2Kg    float64 `json:"annualCO2Kg"`
}

// RateFor returns the rate of systemType, or the generic rate for unknown types.
func RateFor(systemType string) Rate {
	if r, ok := rates[strings.ToLower(strings.TrimSpace(systemType))]; ok {
		return r
	}
	return defaultRate
}

// Calculate projects savings for a monthly consumption of kwh.
func Calculate(kwh float64, systemType string) (Result, error) {
	if math.IsNaN(kwh) || math.IsInf(kwh, 0) || kwh <= 0 {
		return Result{}, ErrInvalidUsage
	}
	r := RateFor(systemType)
	monthly := kwh * r.Savings
	return Result{
		SystemType:     strings.ToLower(strings.TrimSpace(systemType)),
		MonthlySavings: monthly,
		AnnualSavings:  monthly * 12,
		AnnualCO2Kg:    kwh * r.CO2 * 12,
	}, nil
}
