// Package restriction decides whether an implant barcode may be linked to a case
// under a given insurance plan.
package restriction

import (
	"strings"

	"opmelink-api/internal/model"
)

// Decision is the outcome of Evaluate. Rule is set only when the barcode is blocked.
type Decision struct {
	Allowed bool
	Rule    *model.RestrictionRule
}

// Normalize trims surrounding whitespace and folds case.
func Normalize(plan string) string {
	return strings.ToLower(strings.TrimSpace(plan))
}

// Evaluate reports whether barcode may be linked to a case under insurancePlan.
// A rule matches on exact barcode and normalized plan equality; the first match wins.
func Evaluate(insurancePlan, barcode string, rules []model.RestrictionRule) Decision {
	plan := Normalize(insurancePlan)
	for i := range rules {
		r := rules[i]
		if r.Barcode == barcode && Normalize(r.InsurancePlanName) == plan {
			return Decision{Allowed: false, Rule: &r}
		}
	}
	return Decision{Allowed: true}
}

// Err converts a blocked decision into a *model.RestrictionError, or nil when allowed.
func (d Decision) Err() error {
	if d.Allowed || d.Rule == nil {
		return nil
	}
	return &model.RestrictionError{Rule: *d.Rule}
}
