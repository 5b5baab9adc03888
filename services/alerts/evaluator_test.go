package alerts

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Kubojah-Dan/CoinVista/models"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		target    string
		triggered bool
		price     string
		want      Outcome
	}{
		{"above below target", models.DirectionAbove, "50000", false, "49000", NoChange},
		{"above exactly at target", models.DirectionAbove, "50000", false, "50000", ShouldTrigger},
		{"above past target", models.DirectionAbove, "50000", false, "51000", ShouldTrigger},
		{"below above target", models.DirectionBelow, "40000", false, "45000", NoChange},
		{"below exactly at target", models.DirectionBelow, "40000", false, "40000", ShouldTrigger},
		{"below past target", models.DirectionBelow, "40000", false, "39000", ShouldTrigger},
		{"already triggered above", models.DirectionAbove, "50000", true, "60000", NoChange},
		{"already triggered below", models.DirectionBelow, "40000", true, "30000", NoChange},
		{"unknown direction", "sideways", "50000", false, "60000", NoChange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := models.Alert{
				Direction:   tt.direction,
				TargetPrice: decimal.RequireFromString(tt.target),
				Triggered:   tt.triggered,
			}
			got := Evaluate(alert, decimal.RequireFromString(tt.price))
			if got != tt.want {
				t.Errorf("Evaluate(%s %s at %s) = %v, want %v",
					tt.direction, tt.target, tt.price, got, tt.want)
			}
		})
	}
}

func TestEvaluateOppositeDirectionsBetweenThresholds(t *testing.T) {
	price := decimal.RequireFromString("45000")

	above := models.Alert{Direction: models.DirectionAbove, TargetPrice: decimal.RequireFromString("60000")}
	below := models.Alert{Direction: models.DirectionBelow, TargetPrice: decimal.RequireFromString("40000")}

	if Evaluate(above, price) != NoChange {
		t.Error("above 60000 should not trigger at 45000")
	}
	if Evaluate(below, price) != NoChange {
		t.Error("below 40000 should not trigger at 45000")
	}
}

func TestEvaluateDoesNotMutate(t *testing.T) {
	alert := models.Alert{Direction: models.DirectionAbove, TargetPrice: decimal.RequireFromString("100")}
	Evaluate(alert, decimal.RequireFromString("200"))
	if alert.Triggered || alert.TriggeredAt != nil {
		t.Errorf("Evaluate mutated the alert: %+v", alert)
	}
}
