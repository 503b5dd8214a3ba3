package classifier

import (
	"github.com/okian/warden/internal/domain/feature"
	"github.com/okian/warden/internal/domain/model"
)

// maxReasons caps the explanation list.
const maxReasons = 4

// ExplainReasons derives up to four human-readable contributing factors from
// vector positions. Pure threshold rules in a fixed order: age, usage,
// errors, failures, maintenance, care habits. The label does not influence
// the rules; it is accepted to mirror the inference contract.
func ExplainReasons(features []float64, _ model.RiskLabel) []string {
	if len(features) < len(feature.Names) {
		return []string{"Not enough data yet."}
	}
	age := features[feature.IdxAgeMonths]
	usage := features[feature.IdxUsageHoursPerDay]
	errs := features[feature.IdxErrorCount]
	failures := features[feature.IdxFailureCount]
	maintenance := features[feature.IdxMaintenanceCount]
	behaviour := features[feature.IdxBehaviourScore]
	care := features[feature.IdxCareScore]
	resp := features[feature.IdxResponsivenessScore]

	var reasons []string
	if age > 30 {
		reasons = append(reasons, "Device is older and may see more wear.")
	} else if age < 12 {
		reasons = append(reasons, "Device is relatively new.")
	}
	if usage > 4 {
		reasons = append(reasons, "High daily use.")
	} else {
		reasons = append(reasons, "Light to moderate daily use.")
	}
	if errs >= 3 {
		reasons = append(reasons, "Multiple errors recorded.")
	}
	if failures >= 1 {
		reasons = append(reasons, "Past breakdowns detected.")
	}
	if maintenance == 0 {
		reasons = append(reasons, "No maintenance recorded.")
	}
	if behaviour < 0.4 || care < 0.4 || resp < 0.4 {
		reasons = append(reasons, "Habits suggest limited care or responsiveness.")
	}
	if behaviour > 0.7 && care > 0.7 && resp > 0.7 {
		reasons = append(reasons, "Good care habits help keep risk low.")
	}

	if len(reasons) == 0 {
		return []string{"Data looks healthy so far."}
	}
	if len(reasons) > maxReasons {
		reasons = reasons[:maxReasons]
	}
	return reasons
}
