package marketdata

import (
	"math"
	"strconv"
	"strings"
)

// Unknown fills every absent optional text field.
const Unknown = "Unknown"

// PriceTypeMarginal is the price category of procured balancing reserves.
const PriceTypeMarginal = "Marginal"

var directionLabels = map[string]string{
	"A01": "Up",
	"A02": "Down",
	"A03": "Up and Down (Symmetric)",
}

var timeHorizonLabels = map[string]string{
	"A01": "Daily",
	"A02": "Weekly",
	"A03": "Monthly",
	"A04": "Yearly",
	"A06": "Long term",
	"A07": "Intraday",
	"A13": "Hourly",
}

var reserveSourceLabels = map[string]string{
	"A03": "Mixed",
	"A04": "Generation",
	"A05": "Load",
}

// NormalizeText trims the value and fills Unknown when it is absent or blank.
func NormalizeText(value *string) string {
	if value == nil {
		return Unknown
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return Unknown
	}
	return trimmed
}

// NormalizeDirection maps flowDirection codes to labels. Unmapped codes are echoed unchanged.
func NormalizeDirection(code *string) string {
	return lookupLabel(directionLabels, code)
}

// NormalizeTimeHorizon maps type_MarketAgreement codes to labels.
func NormalizeTimeHorizon(code *string) string {
	return lookupLabel(timeHorizonLabels, code)
}

// NormalizeReserveSource maps psrType codes to labels.
func NormalizeReserveSource(code *string) string {
	return lookupLabel(reserveSourceLabels, code)
}

func lookupLabel(labels map[string]string, code *string) string {
	text := NormalizeText(code)
	if text == Unknown {
		return Unknown
	}
	if label, ok := labels[text]; ok {
		return label
	}
	return text
}

// NormalizeNumeric parses numeric text. Absent text yields def; present text that is not a number is an error.
func NormalizeNumeric(text *string, def float64) (float64, error) {
	if text == nil {
		return def, nil
	}
	trimmed := strings.TrimSpace(*text)
	if trimmed == "" {
		return def, nil
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, malformed("", noLocation, "non-numeric value "+strconv.Quote(trimmed), err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, malformed("", noLocation, "non-finite value "+strconv.Quote(trimmed), nil)
	}
	return value, nil
}
