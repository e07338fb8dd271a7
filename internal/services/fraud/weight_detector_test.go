package fraud

import (
	"testing"
	"time"

	"Gavel/internal/domain/models"

	"github.com/stretchr/testify/require"
)

func TestWeightDetectorVarianceBands(t *testing.T) {
	d := NewWeightDetector(10, 5, 3)
	now := time.Now().UTC()

	tests := []struct {
		name     string
		declared float64
		actual   float64
		severity models.Severity
		action   models.RecommendedAction
		none     bool
	}{
		{"exact match", 100, 100, "", "", true},
		{"inside warn band", 100, 102, "", "", true},
		{"warn band", 100, 104, models.SeverityMedium, models.ActionNotifyBuyer, false},
		{"dispute band", 100, 93, models.SeverityHigh, models.ActionCreateDispute, false},
		{"block band", 100, 112, models.SeverityCritical, models.ActionBlockTransaction, false},
		{"gross shortfall", 100, 40, models.SeverityCritical, models.ActionBlockTransaction, false},
		{"zero declared", 0, 50, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := d.Evaluate("order-1", tt.declared, tt.actual, now)
			if tt.none {
				require.Nil(t, alert)
				return
			}
			require.NotNil(t, alert)
			require.Equal(t, tt.severity, alert.Severity)
			require.Equal(t, tt.action, alert.Action)
			require.Equal(t, models.SubjectOrder, alert.SubjectType)
			require.Equal(t, "order-1", alert.SubjectID)
			require.Equal(t, "weight_fraud", alert.Detector)
		})
	}
}

func TestWeightDetectorScoreCapsAtHundred(t *testing.T) {
	d := NewWeightDetector(10, 5, 3)

	alert := d.Evaluate("order-1", 100, 112, time.Now().UTC())
	require.NotNil(t, alert)
	require.Equal(t, 100, alert.Score)
	require.Equal(t, 12, alert.Factors["weight_variance_pct"])

	alert = d.Evaluate("order-1", 100, 104, time.Now().UTC())
	require.NotNil(t, alert)
	require.Equal(t, 40, alert.Score)
}
