package marketdata

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Resolution is the duration code of one point on a period's time grid.
type Resolution string

const (
	Resolution15M Resolution = "PT15M"
	Resolution30M Resolution = "PT30M"
	Resolution60M Resolution = "PT60M"
)

// PeriodStartLayout is the ENTSO-E timeInterval layout (UTC, minute precision).
const PeriodStartLayout = "2006-01-02T15:04Z"

const deliveryLabelLayout = "02.01.2006 15:04"

var targetLocation = mustLoadLocation("Europe/Berlin")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("marketdata: load location %s: %v", name, err))
	}
	return loc
}

// TargetLocation returns the CET/CEST zone all record timestamps are expressed in.
func TargetLocation() *time.Location { return targetLocation }

// Delta returns the grid step. Codes other than PT15M and PT30M fall back to one hour.
func (r Resolution) Delta() time.Duration {
	switch r {
	case Resolution15M:
		return 15 * time.Minute
	case Resolution30M:
		return 30 * time.Minute
	default:
		return time.Hour
	}
}

// IntervalFor returns the [start, end) pair of a 1-based position. position is not validated.
func IntervalFor(periodStart time.Time, res Resolution, position int) (time.Time, time.Time) {
	delta := res.Delta()
	start := periodStart.Add(delta * time.Duration(position-1)).In(targetLocation)
	end := periodStart.Add(delta * time.Duration(position)).In(targetLocation)
	return start, end
}

// ParsePeriodStart parses a timeInterval start into the target location.
func ParsePeriodStart(value string) (time.Time, error) {
	t, err := time.Parse(PeriodStartLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(targetLocation), nil
}

// DeliveryLabel renders an interval with the zone abbreviation of each side, e.g.
// "25.09.2024 00:00 CEST - 25.09.2024 00:15 CEST".
func DeliveryLabel(start, end time.Time) string {
	start = start.In(targetLocation)
	end = end.In(targetLocation)
	return fmt.Sprintf("%s %s - %s %s",
		start.Format(deliveryLabelLayout), start.Format("MST"),
		end.Format(deliveryLabelLayout), end.Format("MST"))
}
