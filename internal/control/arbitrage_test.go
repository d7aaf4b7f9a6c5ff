package control

import "testing"

func TestArbitrageNoPriceDataIsIdle(t *testing.T) {
	a := NewArbitrageController(0.10, 0.30, 20, 90, 50, 50)
	action, _, _ := a.Decide(5, 60)
	if action != "IDLE" {
		t.Errorf("got %s, want IDLE (no price data)", action)
	}
}

func TestArbitrageChargesBelowBuyThreshold(t *testing.T) {
	a := NewArbitrageController(0.10, 0.30, 20, 90, 50, 50)
	a.UpdatePriceTable(map[int]float64{3: 0.05})
	action, power, _ := a.Decide(3, 60)
	if action != "CHARGE" || power != 50 {
		t.Errorf("got %s %.1f, want CHARGE 50", action, power)
	}
}

func TestArbitrageDischargesAboveSellThreshold(t *testing.T) {
	a := NewArbitrageController(0.10, 0.30, 20, 90, 50, 50)
	a.UpdatePriceTable(map[int]float64{18: 0.40})
	action, power, _ := a.Decide(18, 60)
	if action != "DISCHARGE" || power != 50 {
		t.Errorf("got %s %.1f, want DISCHARGE 50", action, power)
	}
}

func TestArbitrageInhibitedByMaxSOCForBuy(t *testing.T) {
	a := NewArbitrageController(0.10, 0.30, 20, 90, 50, 50)
	a.UpdatePriceTable(map[int]float64{3: 0.05})
	action, _, _ := a.Decide(3, 95)
	if action != "IDLE" {
		t.Errorf("got %s, want IDLE (SOC already above max-for-buy)", action)
	}
}

func TestArbitrageInhibitedByMinSOCForSell(t *testing.T) {
	a := NewArbitrageController(0.10, 0.30, 20, 90, 50, 50)
	a.UpdatePriceTable(map[int]float64{18: 0.40})
	action, _, _ := a.Decide(18, 15)
	if action != "IDLE" {
		t.Errorf("got %s, want IDLE (SOC below min-for-sell)", action)
	}
}

func TestArbitrageNeutralBandIsIdle(t *testing.T) {
	a := NewArbitrageController(0.10, 0.30, 20, 90, 50, 50)
	a.UpdatePriceTable(map[int]float64{12: 0.20})
	action, _, _ := a.Decide(12, 60)
	if action != "IDLE" {
		t.Errorf("got %s, want IDLE (neutral price band)", action)
	}
}
