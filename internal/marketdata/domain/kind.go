package marketdata

import "strings"

// DocumentKind selects how a document is parsed and where its records go.
type DocumentKind string

const (
	KindBalancingReserve DocumentKind = "balancing_reserve"
	KindDayAheadPrice    DocumentKind = "day_ahead_price"
)

// Kinds lists every supported document kind.
func Kinds() []DocumentKind {
	return []DocumentKind{KindBalancingReserve, KindDayAheadPrice}
}

// IsValid reports whether k is a supported kind.
func (k DocumentKind) IsValid() bool {
	switch k {
	case KindBalancingReserve, KindDayAheadPrice:
		return true
	default:
		return false
	}
}

func (k DocumentKind) String() string { return string(k) }

// ParseDocumentKind accepts the canonical names plus the ENTSO-E document type codes.
func ParseDocumentKind(value string) (DocumentKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "balancing_reserve", "balancing", "a81":
		return KindBalancingReserve, nil
	case "day_ahead_price", "day_ahead", "dayahead", "a44":
		return KindDayAheadPrice, nil
	default:
		return "", ErrUnknownDocumentKind
	}
}
