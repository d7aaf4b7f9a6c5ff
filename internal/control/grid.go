package control

// GridState is the black-start/grid-code state machine's current state.
type GridState string

const (
	GridConnected         GridState = "grid_connected"
	GridFailureDetected   GridState = "grid_failure_detected"
	GridTransferring      GridState = "transferring"
	GridIslandMode        GridState = "island_mode"
	GridReconnecting      GridState = "reconnecting"
	GridSynchronizing     GridState = "synchronizing"
)

// gridCodeThresholds are the nominal bounds outside which the grid is
// considered failed. 50Hz/230V system, ±2% frequency, ±10% voltage.
const (
	nominalFrequencyHz = 50.0
	freqToleranceHz    = 1.0  // ±2%
	nominalVoltageV    = 230.0
	voltageToleranceV  = 23.0 // ±10%
)

// BlackStartController tracks grid connection state across cycles and
// drives the island-mode / reconnection sequence.
type BlackStartController struct {
	state GridState
}

// NewBlackStartController starts assuming the grid is connected.
func NewBlackStartController() *BlackStartController {
	return &BlackStartController{state: GridConnected}
}

// Process advances the state machine given the latest grid measurements
// and returns the resulting state.
func (b *BlackStartController) Process(frequencyHz, gridVoltageV float64) GridState {
	gridOK := abs(frequencyHz-nominalFrequencyHz) <= freqToleranceHz &&
		abs(gridVoltageV-nominalVoltageV) <= voltageToleranceV

	switch b.state {
	case GridConnected:
		if !gridOK {
			b.state = GridFailureDetected
		}
	case GridFailureDetected:
		b.state = GridTransferring
	case GridTransferring:
		b.state = GridIslandMode
	case GridIslandMode:
		if gridOK {
			b.state = GridSynchronizing
		}
	case GridSynchronizing:
		if gridOK {
			b.state = GridReconnecting
		} else {
			b.state = GridIslandMode
		}
	case GridReconnecting:
		if gridOK {
			b.state = GridConnected
		} else {
			b.state = GridIslandMode
		}
	default:
		b.state = GridConnected
	}
	return b.state
}

// State returns the controller's current state without advancing it.
func (b *BlackStartController) State() GridState {
	return b.state
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
