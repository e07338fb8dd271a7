package fraud

import (
	"math"
	"time"

	"Gavel/internal/domain/models"
	"Gavel/pkg/util"
)

// WeightDetector flags orders whose actual shipped weight diverges from
// the declared weight. Variance bands are percentages of the declared
// weight.
type WeightDetector struct {
	blockVariance   float64
	disputeVariance float64
	warnVariance    float64
}

// NewWeightDetector creates a detector with the given variance bands.
func NewWeightDetector(block, dispute, warn float64) *WeightDetector {
	return &WeightDetector{blockVariance: block, disputeVariance: dispute, warnVariance: warn}
}

// Evaluate compares declared and actual weight for an order. It returns
// nil when the variance is inside the warn band.
func (d *WeightDetector) Evaluate(orderID string, declared, actual float64, now time.Time) *models.FraudAlert {
	if declared <= 0 {
		return nil
	}
	variance := math.Abs(actual-declared) / declared * 100

	alert := &models.FraudAlert{
		ID:          util.NewID(),
		SubjectType: models.SubjectOrder,
		SubjectID:   orderID,
		Score:       int(math.Min(variance*10, 100)),
		Factors:     map[string]int{"weight_variance_pct": int(variance)},
		Detector:    "weight_fraud",
		CreatedAt:   now,
	}
	switch {
	case variance >= d.blockVariance:
		alert.Severity = models.SeverityCritical
		alert.Action = models.ActionBlockTransaction
	case variance >= d.disputeVariance:
		alert.Severity = models.SeverityHigh
		alert.Action = models.ActionCreateDispute
	case variance >= d.warnVariance:
		alert.Severity = models.SeverityMedium
		alert.Action = models.ActionNotifyBuyer
	default:
		return nil
	}
	return alert
}
