package domain

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

const (
	IndicatorVelocity    = "velocity_anomaly"
	IndicatorAmount      = "amount_anomaly"
	IndicatorLocation    = "location_anomaly"
	IndicatorDevice      = "unrecognized_device"
	IndicatorBeneficiary = "suspicious_beneficiary"
)

func (l RiskLevel) rank() int {
	switch l {
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	default:
		return 0
	}
}

// Max returns the more severe of the two levels.
func (l RiskLevel) Max(other RiskLevel) RiskLevel {
	if other.rank() > l.rank() {
		return other
	}
	if l == "" {
		return RiskLow
	}
	return l
}

func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l.rank() >= other.rank()
}

type FraudAssessment struct {
	Level      RiskLevel `json:"level"`
	Score      float64   `json:"score"`
	Indicators []string  `json:"indicators,omitempty"`
	Confidence float64   `json:"confidence"`
}
