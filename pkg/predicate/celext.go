package predicate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
)

// CELDPProfileID names this package's deterministic CEL profile, carried
// into error messages and trace atoms the same way the teacher's
// governance package stamps cel-dp-v1 onto every CEL-DP result.
const CELDPProfileID = "cel-dp-v1"

// bannedFunctions mirrors the teacher's CELDPValidator deny-list: any
// expression calling one of these is rejected before it is ever
// evaluated, because they are sources of non-determinism (wall clock,
// randomness, regex backtracking cost) that would make a rule's firing
// depend on something other than the compound's declared elements/tags.
var bannedFunctions = map[string]bool{
	"now":                true,
	"timestamp":          true,
	"duration":           true,
	"random":             true,
	"uuid":               true,
	"matches":            true,
	"getDate":            true,
	"getDayOfMonth":      true,
	"getDayOfWeek":       true,
	"getDayOfYear":       true,
	"getMonth":           true,
	"getFullYear":        true,
	"getHours":           true,
	"getMinutes":         true,
	"getSeconds":         true,
	"getMilliseconds":    true,
	"getTimezoneOffset":  true,
}

// bannedTypes mirrors the teacher's CELDPValidator: floating-point types
// are banned because IEEE-754 arithmetic is not guaranteed bit-identical
// across compilers/architectures, which would break the determinism
// property every hashed artifact depends on.
var bannedTypes = map[string]bool{
	"double": true,
	"float":  true,
}

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*\s*\(`)
var typePattern = regexp.MustCompile(`\b(double|float)\b`)

// ValidationIssue is one reason a CEL-DP expression was rejected.
type ValidationIssue struct {
	Kind    string // "banned_function" | "banned_type" | "dynamic_op"
	Detail  string
}

// ValidateExpression statically rejects any construct on the CEL-DP
// deny-list, the same regex-based pre-check the teacher's
// CELDPValidator.ValidateExpression performs before compilation.
func ValidateExpression(expr string) []ValidationIssue {
	var issues []ValidationIssue

	for _, m := range identifierPattern.FindAllStringSubmatch(expr, -1) {
		name := strings.TrimSpace(strings.TrimSuffix(m[0], "("))
		if bannedFunctions[name] {
			issues = append(issues, ValidationIssue{Kind: "banned_function", Detail: name})
		}
	}
	for _, m := range typePattern.FindAllString(expr, -1) {
		if bannedTypes[m] {
			issues = append(issues, ValidationIssue{Kind: "banned_type", Detail: m})
		}
	}
	if strings.Contains(expr, "dyn(") || strings.Contains(expr, "type(") {
		issues = append(issues, ValidationIssue{Kind: "dynamic_op", Detail: expr})
	}
	return issues
}

// HashErrorMessage normalizes and hashes an evaluation error message, the
// same normalize-then-sha256 pattern the teacher's
// CELDPValidator.HashErrorMessage uses so error text never leaks
// environment-specific detail (file paths, pointer addresses) into a
// hashed artifact.
func HashErrorMessage(msg string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(msg)), " ")
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:8])
}

// CELEnv is a compiled, reusable CEL-DP environment declaring the
// variables an x_cel_when expression may reference: the compound's
// element id set, tag set, and table set.
type CELEnv struct {
	env *cel.Env
}

// NewCELEnv builds the deterministic-profile CEL environment.
func NewCELEnv() (*CELEnv, error) {
	env, err := cel.NewEnv(
		cel.Variable("elements", cel.ListType(cel.StringType)),
		cel.Variable("tags", cel.ListType(cel.StringType)),
		cel.Variable("tables", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel-dp: environment construction failed: %w", err)
	}
	return &CELEnv{env: env}, nil
}

// EvalCELWhen compiles and evaluates an x_cel_when expression against a
// compound view, after rejecting any banned construct. A banned construct,
// a non-boolean result or a compile/eval error yields false plus an error.
// Rule evaluation in this module does not call it; x_cel_when is checked
// only statically, by strategy.CheckCELWhenProfiles.
func (c *CELEnv) EvalCELWhen(expr string, cv CompoundView) (bool, error) {
	if issues := ValidateExpression(expr); len(issues) > 0 {
		return false, fmt.Errorf("cel-dp: expression rejected: %+v", issues)
	}

	ast, iss := c.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return false, fmt.Errorf("cel-dp: compile error: %w", iss.Err())
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("cel-dp: program construction failed: %w", err)
	}

	elementIDs := make([]string, 0, len(cv.ElementIDs))
	for id := range cv.ElementIDs {
		elementIDs = append(elementIDs, id)
	}
	tags := make([]string, 0, len(cv.Tags))
	for t := range cv.Tags {
		tags = append(tags, t)
	}
	tables := make([]string, 0, len(cv.Tables))
	for t := range cv.Tables {
		tables = append(tables, string(t))
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"elements": elementIDs,
		"tags":     tags,
		"tables":   tables,
	})
	if err != nil {
		return false, fmt.Errorf("cel-dp: evaluation error: %w", err)
	}

	boolVal, ok := out.Value().(bool)
	if !ok {
		if rv, ok := out.(ref.Val); ok {
			return false, fmt.Errorf("cel-dp: expression did not evaluate to bool, got %v", rv.Type())
		}
		return false, fmt.Errorf("cel-dp: expression did not evaluate to bool")
	}
	return boolVal, nil
}
