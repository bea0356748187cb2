package builtin

import (
	"fmt"

	"github.com/patterncore/pattern/tool"
)

// CalculatorInput carries a single arithmetic expression to evaluate.
type CalculatorInput struct {
	Expression string `json:"expression" jsonschema:"required,description=Arithmetic expression using + - * / and parentheses"`
}

// NewCalculator builds the calculator tool: a pure computation example
// that touches no memory state.
func NewCalculator() (tool.Tool, error) {
	return tool.New[CalculatorInput](tool.Config{
		Name:        "calculator",
		Description: "Evaluate a basic arithmetic expression (+ - * / and parentheses).",
		Rule:        tool.UsageContinues,
	}, calculatorCall)
}

func calculatorCall(_ tool.Context, in CalculatorInput) (map[string]any, error) {
	result, err := evalExpression(in.Expression)
	if err != nil {
		return nil, fmt.Errorf("calculator: %w", err)
	}
	return map[string]any{"expression": in.Expression, "result": result}, nil
}

// evalExpression parses and evaluates a +-*/() arithmetic expression with
// standard precedence, using a small recursive-descent parser. No
// third-party expression-evaluation library exists anywhere in the
// example pack, so this stays on the standard library.
func evalExpression(expr string) (float64, error) {
	p := &exprParser{input: expr}
	p.skipSpace()
	val, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("unexpected trailing input at position %d", p.pos)
	}
	return val, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

// parseExpr handles + and -.
func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

// parseTerm handles * and /.
func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		default:
			return left, nil
		}
	}
}

// parseFactor handles unary sign, parentheses, and numeric literals.
func (p *exprParser) parseFactor() (float64, error) {
	p.skipSpace()
	switch p.peek() {
	case '-':
		p.pos++
		val, err := p.parseFactor()
		return -val, err
	case '+':
		p.pos++
		return p.parseFactor()
	case '(':
		p.pos++
		val, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, fmt.Errorf("expected ')' at position %d", p.pos)
		}
		p.pos++
		return val, nil
	}
	return p.parseNumber()
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && (isDigit(p.input[p.pos]) || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected a number at position %d", p.pos)
	}
	var val float64
	_, err := fmt.Sscanf(p.input[start:p.pos], "%g", &val)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return val, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
