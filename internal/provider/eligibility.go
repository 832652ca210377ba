package provider

import (
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/hrygo/loomchat/internal/errs"
)

// Eligible reports whether profile may serve modelID for userGroup: the
// static allow-list and cost-map rules first, then the optional CEL rule
// for profiles that configure EligibilityExpr.
func Eligible(p Profile, modelID, userGroup string) (bool, error) {
	switch {
	case p.hasAllowedModels():
		if !containsString(p.AllowedModels, modelID) {
			return false, nil
		}
	case p.hasModelCosts():
		if _, ok := p.ModelCosts[modelID]; !ok {
			return false, nil
		}
	}

	if len(p.AllowedUserGroups) > 0 && !containsString(p.AllowedUserGroups, userGroup) {
		return false, nil
	}

	if p.EligibilityExpr == "" {
		return true, nil
	}
	return evalEligibilityExpr(p.EligibilityExpr, modelID, userGroup)
}

var (
	celEnv     *cel.Env
	celEnvOnce sync.Once
	celEnvErr  error

	programCache   = map[string]cel.Program{}
	programCacheMu sync.Mutex
)

func eligibilityEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("model", cel.StringType),
			cel.Variable("userGroup", cel.StringType),
		)
	})
	return celEnv, celEnvErr
}

func evalEligibilityExpr(expr, modelID, userGroup string) (bool, error) {
	env, err := eligibilityEnv()
	if err != nil {
		return false, errs.Wrap(err, errs.Internal, "build eligibility CEL environment")
	}

	programCacheMu.Lock()
	prg, ok := programCache[expr]
	programCacheMu.Unlock()
	if !ok {
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return false, errs.Wrap(issues.Err(), errs.Validation, "invalid eligibility expression")
		}
		prg, err = env.Program(ast)
		if err != nil {
			return false, errs.Wrap(err, errs.Validation, "build eligibility program")
		}
		programCacheMu.Lock()
		programCache[expr] = prg
		programCacheMu.Unlock()
	}

	out, _, err := prg.Eval(map[string]any{"model": modelID, "userGroup": userGroup})
	if err != nil {
		return false, errs.Wrap(err, errs.Internal, "evaluate eligibility expression")
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, errs.New(errs.Internal, "eligibility expression did not evaluate to bool")
	}
	return result, nil
}
