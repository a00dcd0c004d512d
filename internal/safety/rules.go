package safety

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"github.com/payops/sentinel/internal/decision"
)

// Rule is a single hot-reloadable safety predicate expressed as a CEL
// expression over an intervention option. If the expression evaluates to
// true the candidate is blocked with Reason.
type Rule struct {
	Name       string `yaml:"name" json:"name"`
	Expression string `yaml:"expression" json:"expression"`
	Reason     string `yaml:"reason" json:"reason"`
}

// compiledRule pairs a Rule with its compiled CEL program.
type compiledRule struct {
	rule    Rule
	program cel.Program
}

// RuleEvaluator evaluates a set of CEL-based safety rules against
// intervention options. This is the extension point for operator-supplied
// rules beyond the static checks in Constraints — e.g. "never suppress a
// path carrying more than 40% of total volume" without a code change.
type RuleEvaluator struct {
	env    *cel.Env
	rules  []compiledRule
	logger *slog.Logger
}

// NewRuleEvaluator creates a CEL environment with the option fields that
// safety rules may reference.
func NewRuleEvaluator(logger *slog.Logger) (*RuleEvaluator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	env, err := cel.NewEnv(
		cel.Variable("option.kind", cel.StringType),
		cel.Variable("option.target", cel.StringType),
		cel.Variable("option.blast_radius", cel.DoubleType),
		cel.Variable("option.reversible", cel.BoolType),
		cel.Variable("option.delta_success", cel.DoubleType),
		cel.Variable("option.delta_latency", cel.DoubleType),
		cel.Variable("option.delta_cost", cel.DoubleType),
		cel.Variable("option.confidence", cel.DoubleType),
		cel.Variable("option.risk_impact", cel.DoubleType),
		cel.Variable("option.friction_impact", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create safety CEL environment: %w", err)
	}

	return &RuleEvaluator{
		env:    env,
		logger: logger.With("component", "safety.RuleEvaluator"),
	}, nil
}

// LoadRules compiles the given rules, replacing any previously loaded set.
func (r *RuleEvaluator) LoadRules(rules []Rule) error {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		ast, issues := r.env.Compile(rule.Expression)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("safety rule %q: compile error: %w", rule.Name, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return fmt.Errorf("safety rule %q: expression must evaluate to bool, got %s", rule.Name, ast.OutputType())
		}
		prg, err := r.env.Program(ast)
		if err != nil {
			return fmt.Errorf("safety rule %q: program creation failed: %w", rule.Name, err)
		}
		compiled = append(compiled, compiledRule{rule: rule, program: prg})
	}

	r.rules = compiled
	r.logger.Info("safety rules loaded", "count", len(compiled))
	return nil
}

// Evaluate checks opt against every loaded rule, returning the reason of
// the first rule that fires, or ok=false if none fire. A rule evaluation
// error fails closed — the option is blocked and the error logged.
func (r *RuleEvaluator) Evaluate(opt decision.InterventionOption) (reason string, blocked bool) {
	if len(r.rules) == 0 {
		return "", false
	}

	vars := map[string]interface{}{
		"option.kind":            string(opt.Kind),
		"option.target":          opt.Target,
		"option.blast_radius":    opt.BlastRadius,
		"option.reversible":      opt.Reversible,
		"option.delta_success":   opt.Estimate.DeltaSuccess,
		"option.delta_latency":   opt.Estimate.DeltaLatency,
		"option.delta_cost":      opt.Estimate.DeltaCost,
		"option.confidence":      opt.Estimate.Confidence,
		"option.risk_impact":     opt.Tradeoffs.RiskImpact,
		"option.friction_impact": opt.Tradeoffs.FrictionImpact,
	}

	for _, cr := range r.rules {
		out, _, err := cr.program.Eval(vars)
		if err != nil {
			r.logger.Error("safety rule evaluation error, failing closed", "rule", cr.rule.Name, "error", err)
			return fmt.Sprintf("rule %q failed to evaluate: %v", cr.rule.Name, err), true
		}
		matched, ok := out.Value().(bool)
		if !ok {
			r.logger.Error("safety rule returned non-bool, failing closed", "rule", cr.rule.Name)
			return fmt.Sprintf("rule %q returned a non-bool result", cr.rule.Name), true
		}
		if matched {
			return cr.rule.Reason, true
		}
	}

	return "", false
}

// RuleCount returns the number of currently loaded rules.
func (r *RuleEvaluator) RuleCount() int {
	return len(r.rules)
}

// ruleFile is the on-disk shape of config.SafetyConfig.RulesPath.
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRulesFile reads and compiles the rule set at path, replacing
// whatever was previously loaded. A missing file is not an error — it
// just leaves the evaluator empty, so RulesPath is optional.
func (r *RuleEvaluator) LoadRulesFile(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		r.logger.Info("safety rules file not found, continuing without custom rules", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read safety rules file %s: %w", path, err)
	}

	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse safety rules file %s: %w", path, err)
	}

	return r.LoadRules(f.Rules)
}
