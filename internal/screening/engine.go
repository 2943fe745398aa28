// Package screening provides the CEL-Go based claim screening engine.
//
// Screening rules are tenant-configured expressions evaluated on the
// approval path after adjudication. A matching band surfaces as a warning
// on the outcome; screening never rejects a claim.
package screening

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/openhealth-claims/heron/internal/domain"
)

// Engine compiles and evaluates screening rules. Rules are held as a
// reloadable snapshot behind a RWMutex so the API can hot-swap them from
// the database without pausing evaluations.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*compiledRule
	maxWorkers    int
}

type compiledRule struct {
	rule    *domain.ScreeningRule
	program cel.Program
}

// NewEngine creates a screening engine with the claim variable environment.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("claim", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("cost", cel.DoubleType),
		cel.Variable("payable", cel.DoubleType),
		cel.Variable("category_id", cel.StringType),
		cel.Variable("category_name", cel.StringType),
		cel.Variable("provider_id", cel.StringType),
		cel.Variable("member_id", cel.StringType),
		cel.Variable("usage_count", cel.IntType),
		cel.Variable("usage_total", cel.DoubleType),
		cel.Variable("fraud_score", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("screening: create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*compiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(rule *domain.ScreeningRule) error {
	if rule == nil {
		return fmt.Errorf("screening rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compile(rule)
	return err
}

// LoadRule compiles and loads a single rule.
func (e *Engine) LoadRule(rule *domain.ScreeningRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compile(rule)
	if err != nil {
		return err
	}
	e.compiledRules[rule.ID] = compiled
	return nil
}

// ReloadRules swaps the entire rule set. Disabled rules are skipped. The
// swap is atomic: a compile failure leaves the current set untouched.
func (e *Engine) ReloadRules(rules []*domain.ScreeningRule) error {
	newRules := make(map[string]*compiledRule)
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		compiled, err := e.compile(r)
		if err != nil {
			return err
		}
		newRules[r.ID] = compiled
	}

	e.mu.Lock()
	e.compiledRules = newRules
	e.mu.Unlock()
	return nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// LoadedRules returns the currently loaded rule configurations.
func (e *Engine) LoadedRules() []*domain.ScreeningRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.ScreeningRule, 0, len(e.compiledRules))
	for _, c := range e.compiledRules {
		rules = append(rules, c.rule)
	}
	return rules
}

// Input holds the claim data screening rules evaluate against.
type Input struct {
	ClaimID      string
	MemberID     string
	CategoryID   string
	CategoryName string
	ProviderID   string
	Cost         float64
	Payable      float64
	UsageCount   int64
	UsageTotal   float64
	FraudScore   float64
}

// EvaluateAll runs every loaded rule against the claim in parallel and
// returns all results, including clear ones. The ctx deadline bounds the
// whole batch.
func (e *Engine) EvaluateAll(ctx context.Context, in *Input) []domain.ScreeningResult {
	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.compiledRules))
	for _, r := range e.compiledRules {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	// Results and warnings come back in rule ID order regardless of map
	// iteration, so identical claims produce identical outcomes.
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].rule.ID < rules[j].rule.ID
	})

	activation := map[string]any{
		"claim": map[string]any{
			"id":          in.ClaimID,
			"member_id":   in.MemberID,
			"category_id": in.CategoryID,
			"provider_id": in.ProviderID,
			"cost":        in.Cost,
		},
		"cost":          in.Cost,
		"payable":       in.Payable,
		"category_id":   in.CategoryID,
		"category_name": in.CategoryName,
		"provider_id":   in.ProviderID,
		"member_id":     in.MemberID,
		"usage_count":   in.UsageCount,
		"usage_total":   in.UsageTotal,
		"fraud_score":   in.FraudScore,
	}

	results := make([]domain.ScreeningResult, len(rules))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *compiledRule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = e.evaluate(r, activation, in.ClaimID)
		}(i, rule)
	}

	wg.Wait()
	return results
}

// Warnings runs all rules and keeps only the ones that did not clear,
// formatted for the outcome's warning list.
func (e *Engine) Warnings(ctx context.Context, in *Input) []string {
	var warnings []string
	for _, r := range e.EvaluateAll(ctx, in) {
		if r.Outcome == domain.ScreeningClear {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("screening %s: %s", r.RuleID, r.Message))
	}
	return warnings
}

func (e *Engine) evaluate(rule *compiledRule, activation map[string]any, claimID string) domain.ScreeningResult {
	result := domain.ScreeningResult{
		RuleID:  rule.rule.ID,
		ClaimID: claimID,
	}

	out, _, err := rule.program.Eval(activation)
	if err != nil {
		result.Outcome = domain.ScreeningError
		result.Message = fmt.Sprintf("evaluation error: %v", err)
		return result
	}

	result.Score = toScore(out)
	result.Outcome, result.Message = matchBand(result.Score, rule.rule.Bands)
	return result
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// matchBand finds the band covering a score. Lower bound inclusive, upper
// exclusive; a nil upper bound is unbounded. No match clears.
func matchBand(score float64, bands []domain.ScreeningBand) (string, string) {
	for _, band := range bands {
		lower := 0.0
		if band.LowerLimit != nil {
			lower = *band.LowerLimit
		}
		if score < lower {
			continue
		}
		if band.UpperLimit != nil && score >= *band.UpperLimit {
			continue
		}
		return band.Outcome, band.Message
	}
	return domain.ScreeningClear, ""
}

// Close clears all loaded rules.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*compiledRule)
	return nil
}

func (e *Engine) compile(rule *domain.ScreeningRule) (*compiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("screening: compile rule %s: %w", rule.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("screening: rule %s must return bool, int, or double, got %s", rule.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("screening: build program for rule %s: %w", rule.ID, err)
	}

	return &compiledRule{rule: rule, program: program}, nil
}
