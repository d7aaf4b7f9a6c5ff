package control

// PeakShavingController discharges the battery once demand crosses a
// trigger fraction of the contractual demand limit, and latches off only
// once demand has fallen back under 0.7 of that trigger, so it never
// chatters in and out right at the threshold.
type PeakShavingController struct {
	demandLimitKW  float64
	triggerPercent float64
	minSOCPercent  float64
	maxDischargeKW float64
	active         bool
}

// NewPeakShavingController configures the controller. triggerPercent is the
// fraction of demandLimitKW at which shaving engages (e.g. 0.9 engages at
// 90% of the limit, ahead of an actual breach).
func NewPeakShavingController(demandLimitKW, triggerPercent, minSOCPercent, maxDischargeKW float64) *PeakShavingController {
	return &PeakShavingController{
		demandLimitKW:  demandLimitKW,
		triggerPercent: triggerPercent,
		minSOCPercent:  minSOCPercent,
		maxDischargeKW: maxDischargeKW,
	}
}

// UpdateConfig applies a cloud-delivered demand limit update.
func (p *PeakShavingController) UpdateConfig(demandLimitKW float64) {
	p.demandLimitKW = demandLimitKW
}

// Decide returns an action/power pair, or ("IDLE", 0) if peak shaving
// should not act this cycle.
func (p *PeakShavingController) Decide(currentDemandKW, soc float64) (action string, powerKW float64, reason string) {
	if soc < p.minSOCPercent {
		p.active = false
		return "IDLE", 0, "peak shaving inhibited: SOC below reserve"
	}

	trigger := p.triggerPercent * p.demandLimitKW
	release := 0.7 * trigger

	if !p.active {
		if currentDemandKW < trigger {
			return "IDLE", 0, "demand below trigger"
		}
		p.active = true
	} else if currentDemandKW < release {
		p.active = false
		return "IDLE", 0, "demand fell below release threshold"
	}

	excess := currentDemandKW - p.demandLimitKW
	if excess < 0 {
		excess = 0
	}
	power := excess
	if power > p.maxDischargeKW {
		power = p.maxDischargeKW
	}
	return "DISCHARGE", power, "shaving demand above contractual limit"
}
