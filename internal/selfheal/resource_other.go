//go:build !linux

package selfheal

// readMemUsedPercent and readDiskUsedPercent have no portable
// implementation outside Linux here; they return 0 (safe default — no
// throttle) rather than guess. The controller's target deployment is
// Linux-based edge hardware.
func readMemUsedPercent() float64 { return 0 }

func readDiskUsedPercent(path string) float64 { return 0 }
