package control

// SolarSelfConsumptionController prefers storing excess solar generation
// over exporting it, and discharges at night to cover load from the
// battery instead of the grid when SOC allows.
type SolarSelfConsumptionController struct {
	minSolarExcessKW float64
	targetSOC        float64
	nightDischarge   bool
	maxChargeKW      float64
	maxDischargeKW   float64
}

// NewSolarSelfConsumptionController configures the controller.
func NewSolarSelfConsumptionController(minSolarExcessKW, targetSOC float64, nightDischarge bool, maxChargeKW, maxDischargeKW float64) *SolarSelfConsumptionController {
	return &SolarSelfConsumptionController{
		minSolarExcessKW: minSolarExcessKW,
		targetSOC:        targetSOC,
		nightDischarge:   nightDischarge,
		maxChargeKW:      maxChargeKW,
		maxDischargeKW:   maxDischargeKW,
	}
}

// Decide returns an action/power pair given current solar generation,
// site load, and SOC.
func (s *SolarSelfConsumptionController) Decide(soc, solarGenKW, loadKW float64) (action string, powerKW float64, reason string) {
	excess := solarGenKW - loadKW

	if excess > s.minSolarExcessKW {
		if soc >= s.targetSOC {
			return "IDLE", 0, "solar excess available but SOC already at target"
		}
		power := excess
		if power > s.maxChargeKW {
			power = s.maxChargeKW
		}
		return "CHARGE", power, "storing excess solar generation"
	}

	if solarGenKW < 0.5 && s.nightDischarge && soc > s.targetSOC {
		power := loadKW
		if power > s.maxDischargeKW {
			power = s.maxDischargeKW
		}
		return "DISCHARGE", power, "covering night load from stored solar"
	}

	return "IDLE", 0, "no solar self-consumption opportunity"
}
