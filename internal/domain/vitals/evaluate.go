package vitals

// Alert type codes produced by the evaluator.
const (
	AlertTypeNoValue = "SIN_VALOR"
	AlertTypeNoRange = "SIN_RANGO"
	AlertTypeOK      = "OK"

	outOfRangeSuffix = "_FUERA_RANGO"
)

// Evaluation is the classification of a single measured value.
type Evaluation struct {
	OutOfRange bool
	Severity   Severity
	AlertType  string
}

// Evaluate classifies value against the patient's reference range. It is
// pure and deterministic.
//
// A nil value (text-only reading) yields SIN_VALOR; a nil range yields
// SIN_RANGO; a value inside [min_normal, max_normal] yields OK. Otherwise
// the severity bucket follows the deviation from the nearest band edge
// relative to the band width: more than half the span is critica, more
// than a quarter is moderada, anything else leve. Boundary deviations of
// exactly 25% and 50% fall into the lower bucket.
func Evaluate(value *float64, r *PatientRange) Evaluation {
	if value == nil {
		return Evaluation{OutOfRange: false, Severity: SeverityNone, AlertType: AlertTypeNoValue}
	}
	if r == nil {
		return Evaluation{OutOfRange: false, Severity: SeverityNone, AlertType: AlertTypeNoRange}
	}

	v := *value
	if v >= r.MinNormal && v <= r.MaxNormal {
		return Evaluation{OutOfRange: false, Severity: SeverityNone, AlertType: AlertTypeOK}
	}

	edge := r.MinNormal
	if v > r.MaxNormal {
		edge = r.MaxNormal
	}
	deviation := v - edge
	if deviation < 0 {
		deviation = -deviation
	}
	span := r.MaxNormal - r.MinNormal

	severity := SeverityLeve
	switch {
	case deviation > 0.5*span:
		severity = SeverityCritica
	case deviation > 0.25*span:
		severity = SeverityModerada
	}

	return Evaluation{
		OutOfRange: true,
		Severity:   severity,
		AlertType:  r.ParameterCode + outOfRangeSuffix,
	}
}
