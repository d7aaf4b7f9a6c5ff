package control

// ArbitrageController charges on cheap power and discharges on expensive
// power, bounded by SOC reserve/headroom so arbitrage never competes with
// the longevity tier's bounds.
type ArbitrageController struct {
	buyThreshold      float64
	sellThreshold     float64
	minSOCForSell     float64
	maxSOCForBuy      float64
	maxChargeKW       float64
	maxDischargeKW    float64
	priceTable        map[int]float64 // hour-of-day -> price per kWh
}

// NewArbitrageController configures the controller.
func NewArbitrageController(buyThreshold, sellThreshold, minSOCForSell, maxSOCForBuy, maxChargeKW, maxDischargeKW float64) *ArbitrageController {
	return &ArbitrageController{
		buyThreshold:   buyThreshold,
		sellThreshold:  sellThreshold,
		minSOCForSell:  minSOCForSell,
		maxSOCForBuy:   maxSOCForBuy,
		maxChargeKW:    maxChargeKW,
		maxDischargeKW: maxDischargeKW,
		priceTable:     make(map[int]float64),
	}
}

// UpdatePriceTable replaces the hour-of-day price table with a cloud-
// delivered forecast.
func (a *ArbitrageController) UpdatePriceTable(prices map[int]float64) {
	a.priceTable = prices
}

// Decide returns an action/power pair for the given hour's price and SOC.
func (a *ArbitrageController) Decide(hour int, soc float64) (action string, powerKW float64, reason string) {
	price, ok := a.priceTable[hour]
	if !ok {
		return "IDLE", 0, "no price data for current hour"
	}

	if price <= a.buyThreshold && soc < a.maxSOCForBuy {
		return "CHARGE", a.maxChargeKW, "price below buy threshold"
	}
	if price >= a.sellThreshold && soc > a.minSOCForSell {
		return "DISCHARGE", a.maxDischargeKW, "price above sell threshold"
	}
	return "IDLE", 0, "price within neutral band"
}
