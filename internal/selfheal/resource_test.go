package selfheal

import "testing"

func TestClassify(t *testing.T) {
	th := ResourceThresholds{WarnPercent: 80, CriticalPercent: 90}
	tests := []struct {
		pct  float64
		want ResourceLevel
	}{
		{50, ResourceNormal},
		{80, ResourceWarning},
		{89.9, ResourceWarning},
		{90, ResourceCritical},
		{99, ResourceCritical},
	}
	for _, tt := range tests {
		if got := Classify(tt.pct, th); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.pct, got, tt.want)
		}
	}
}

func TestResourceLevelString(t *testing.T) {
	if ResourceWarning.String() != "warning" || ResourceCritical.String() != "critical" || ResourceNormal.String() != "normal" {
		t.Error("ResourceLevel.String() produced unexpected labels")
	}
}
