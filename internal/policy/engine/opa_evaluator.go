package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	devicedomain "github.com/pyle/loaner/internal/device/domain"
	settingsdomain "github.com/pyle/loaner/internal/settings/domain"
)

// Default Rego policy: an extension must land strictly in the future and
// inside the maximum loan horizon measured from the assignment date.
const defaultRegoPolicy = `package loaner.loan

default extend_allowed = false

extend_allowed if {
	input.requested_days > 0
	input.loan_age_days + input.requested_days <= input.max_loan_days
}
`

const extendQuery = "data.loaner.loan.extend_allowed"

// OPAEvaluator evaluates loan policy using OPA Rego in process.
type OPAEvaluator struct {
	compiler *ast.Compiler
}

// NewOPAEvaluator compiles the default loan policy and returns an evaluator.
func NewOPAEvaluator() (*OPAEvaluator, error) {
	compiler, err := ast.CompileModules(map[string]string{"loan_policy.rego": defaultRegoPolicy})
	if err != nil {
		return nil, fmt.Errorf("compile loan policy: %w", err)
	}
	return &OPAEvaluator{compiler: compiler}, nil
}

// HealthCheck verifies the compiled policy evaluates. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.eval(ctx, map[string]interface{}{
		"requested_days": 1,
		"loan_age_days":  0,
		"max_loan_days":  14,
	})
	return err
}

// EvaluateExtend decides whether the loan may be extended to newDueDate.
func (e *OPAEvaluator) EvaluateExtend(
	ctx context.Context,
	settings *settingsdomain.LoanSettings,
	device *devicedomain.Device,
	newDueDate time.Time,
	now time.Time,
) (ExtendResult, error) {
	loanAgeDays := 0
	loanStart := now
	if device.AssignmentDate != nil {
		loanStart = *device.AssignmentDate
		loanAgeDays = daysBetween(loanStart, now)
	}
	requestedDays := daysBetween(now, newDueDate)

	input := map[string]interface{}{
		"requested_days": requestedDays,
		"loan_age_days":  loanAgeDays,
		"max_loan_days":  settings.MaximumLoanDurationDays,
	}
	allowed, err := e.eval(ctx, input)
	if err != nil {
		return ExtendResult{}, err
	}

	res := ExtendResult{
		Allowed:    allowed,
		MaxDueDate: loanStart.Add(time.Duration(settings.MaximumLoanDurationDays) * 24 * time.Hour),
	}
	if !allowed {
		if requestedDays <= 0 {
			res.DeniedReason = "requested due date is not in the future"
		} else {
			res.DeniedReason = fmt.Sprintf("requested due date exceeds the %d day loan limit", settings.MaximumLoanDurationDays)
		}
	}
	return res, nil
}

func (e *OPAEvaluator) eval(ctx context.Context, input map[string]interface{}) (bool, error) {
	q := rego.New(
		rego.Query(extendQuery),
		rego.Compiler(e.compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("eval loan policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("loan policy query returned no result")
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("loan policy returned non-boolean %T", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}

// daysBetween rounds the span from a to b up to whole days; a request due
// any time tomorrow counts as one day out.
func daysBetween(a, b time.Time) int {
	return int(math.Ceil(b.Sub(a).Hours() / 24))
}
