// Package formulas provides the pure numeric building blocks of the underwriter:
// a closed-grammar expression evaluator over named facts, annuity math, and rounding.
package formulas

import (
	"math"
	"strconv"
	"strings"
)

// Facts maps fact keys to values. A nil pointer is a known-but-null fact.
type Facts map[string]*float64

// ExpressionResult is the outcome of evaluating a formula.
// Value is nil when the result cannot be determined; MissingInputs lists
// every fact key that was absent, null, or non-finite, in first-seen order.
type ExpressionResult struct {
	Value         *float64 `json:"value" msgpack:"value"`
	MissingInputs []string `json:"missingInputs" msgpack:"missingInputs"`
}

type tokenKind int

const (
	tokenOperand tokenKind = iota
	tokenOperator
)

type token struct {
	kind  tokenKind
	op    byte
	value *float64
}

// Evaluate computes expr against facts.
//
// The grammar is deliberately closed: whitespace-separated numbers, fact keys,
// and the operators + - * /. Multiplication and division bind tighter than
// addition and subtraction; both levels associate left to right. A null operand
// makes its operation null, division by zero is null, and malformed input is
// null. Evaluate never panics and never returns NaN or Inf.
func Evaluate(expr string, facts Facts) ExpressionResult {
	result := ExpressionResult{MissingInputs: make([]string, 0)}

	tokens, missing := tokenize(expr, facts)
	result.MissingInputs = append(result.MissingInputs, missing...)

	operands, operators, ok := split(tokens)
	if !ok {
		return result
	}

	// Pass 1: collapse * and /
	highOperands := []*float64{operands[0]}
	var lowOperators []byte
	for i, op := range operators {
		next := operands[i+1]
		if op == '*' || op == '/' {
			last := len(highOperands) - 1
			highOperands[last] = apply(highOperands[last], op, next)
			continue
		}
		highOperands = append(highOperands, next)
		lowOperators = append(lowOperators, op)
	}

	// Pass 2: collapse + and -
	acc := highOperands[0]
	for i, op := range lowOperators {
		acc = apply(acc, op, highOperands[i+1])
	}

	result.Value = acc
	return result
}

// tokenize resolves every whitespace-separated token. Unknown words are
// treated as fact keys and reported missing when they cannot be resolved.
func tokenize(expr string, facts Facts) ([]token, []string) {
	fields := strings.Fields(expr)
	tokens := make([]token, 0, len(fields))
	var missing []string
	seen := make(map[string]bool)

	for _, field := range fields {
		if len(field) == 1 && isOperator(field[0]) {
			tokens = append(tokens, token{kind: tokenOperator, op: field[0]})
			continue
		}

		if n, err := strconv.ParseFloat(field, 64); err == nil && IsFinite(n) {
			tokens = append(tokens, token{kind: tokenOperand, value: &n})
			continue
		}

		value, ok := facts[field]
		if !ok || value == nil || !IsFinite(*value) {
			if !seen[field] {
				seen[field] = true
				missing = append(missing, field)
			}
			tokens = append(tokens, token{kind: tokenOperand})
			continue
		}

		v := *value
		tokens = append(tokens, token{kind: tokenOperand, value: &v})
	}

	return tokens, missing
}

// split checks the operand (operator operand)* shape and separates the two streams.
func split(tokens []token) ([]*float64, []byte, bool) {
	if len(tokens) == 0 || len(tokens)%2 == 0 {
		return nil, nil, false
	}

	operands := make([]*float64, 0, len(tokens)/2+1)
	operators := make([]byte, 0, len(tokens)/2)
	for i, tok := range tokens {
		wantOperand := i%2 == 0
		if wantOperand != (tok.kind == tokenOperand) {
			return nil, nil, false
		}
		if wantOperand {
			operands = append(operands, tok.value)
		} else {
			operators = append(operators, tok.op)
		}
	}
	return operands, operators, true
}

func apply(a *float64, op byte, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}

	var out float64
	switch op {
	case '+':
		out = *a + *b
	case '-':
		out = *a - *b
	case '*':
		out = *a * *b
	case '/':
		if *b == 0 {
			return nil
		}
		out = *a / *b
	default:
		return nil
	}

	if !IsFinite(out) {
		return nil
	}
	return &out
}

func isOperator(c byte) bool {
	return c == '+' || c == '-' || c == '*' || c == '/'
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
