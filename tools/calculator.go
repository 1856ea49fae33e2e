package tools

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

var calculatorExprPattern = regexp.MustCompile(`^[\d.+\-*/() ]*$`)

// NewCalculatorTool evaluates arithmetic expressions locally.
func NewCalculatorTool() Tool {
	return Tool{
		Name:        "calculator",
		Summary:     "Executing an arithmetic expression.",
		Description: "Execute arithmetic expressions (no limits on amount of operands)",
		Parameters: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "The expression to execute. (532.1 + 93, 24 * 12, (5 + 5) * 2, etc...)",
				},
			},
			Required: []string{"expression"},
		},

		Execute: func(ctx context.Context, params map[string]any, tc Context) (Output, error) {
			expression, ok := toString(params["expression"])
			if !ok {
				return Output{Data: "ERROR: invalid expression"}, nil
			}
			if !calculatorExprPattern.MatchString(expression) {
				return Output{Data: "ERROR: invalid expression"}, nil
			}

			result, err := evalExpression(expression)
			if err != nil {
				return Output{Data: "ERROR: " + err.Error()}, nil
			}
			return Output{Data: result}, nil
		},
	}
}

// evalExpression evaluates +, -, *, / and parentheses with conventional
// precedence.
func evalExpression(expression string) (float64, error) {
	p := &exprParser{input: expression}
	value, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected character %q", p.input[p.pos])
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("expression result is not a finite number")
	}
	return value, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) parseSum() (float64, error) {
	left, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseProduct() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
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
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	switch c := p.peek(); {
	case c == '(':
		p.pos++
		value, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return value, nil
	case c == '-':
		p.pos++
		value, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -value, nil
	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()
	default:
		return 0, fmt.Errorf("expected a number")
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
		p.pos++
	}
	literal := p.input[start:p.pos]
	if literal == "" || literal == "." || strings.Count(literal, ".") > 1 {
		return 0, fmt.Errorf("malformed number %q", literal)
	}
	return strconv.ParseFloat(literal, 64)
}
