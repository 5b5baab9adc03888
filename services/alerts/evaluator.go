package alerts

import (
	"github.com/shopspring/decimal"

	"github.com/Kubojah-Dan/CoinVista/models"
)

// Outcome is the result of evaluating an alert against a price
type Outcome int

const (
	NoChange Outcome = iota
	ShouldTrigger
)

// Evaluate decides whether an alert should fire at the given price. It is a
// pure function: the caller applies the transition. Equality counts as a
// crossing so an alert still fires when the price lands exactly on the
// threshold and moves away before the next poll.
func Evaluate(alert models.Alert, currentPrice decimal.Decimal) Outcome {
	if alert.Triggered {
		return NoChange
	}

	switch alert.Direction {
	case models.DirectionAbove:
		if currentPrice.GreaterThanOrEqual(alert.TargetPrice) {
			return ShouldTrigger
		}
	case models.DirectionBelow:
		if currentPrice.LessThanOrEqual(alert.TargetPrice) {
			return ShouldTrigger
		}
	}

	return NoChange
}
