package domain

import (
	"context"
)

// DivideByZeroText is returned as content when calculate divides by zero.
const DivideByZeroText = "Error: Cannot divide by zero"

// ArithmeticOp names one calculate operation.
type ArithmeticOp string

const (
	OpAdd      ArithmeticOp = "add"
	OpSubtract ArithmeticOp = "subtract"
	OpMultiply ArithmeticOp = "multiply"
	OpDivide   ArithmeticOp = "divide"
)

// arithmeticOps lists calculate operations in declaration order.
var arithmeticOps = []ArithmeticOp{OpAdd, OpSubtract, OpMultiply, OpDivide}

var arithmeticFuncs = map[ArithmeticOp]func(a, b float64) float64{
	OpAdd:      func(a, b float64) float64 { return a + b },
	OpSubtract: func(a, b float64) float64 { return a - b },
	OpMultiply: func(a, b float64) float64 { return a * b },
	OpDivide:   func(a, b float64) float64 { return a / b },
}

// AddInput represents the add operation input.
type AddInput struct {
	A float64
	B float64
}

// CalculateInput represents the calculate operation input.
type CalculateInput struct {
	Operation ArithmeticOp
	A         float64
	B         float64
}

// AddOperation returns the add operation definition.
func AddOperation() Operation {
	return Operation{
		Name:        "add",
		Description: "Adds two numbers",
		Schema: Schema{Fields: []Field{
			{Name: "a", Kind: FieldNumber, Description: "first addend"},
			{Name: "b", Kind: FieldNumber, Description: "second addend"},
		}},
		Handler: func(ctx context.Context, args Args) (Result, error) {
			return Add(AddInput{A: args.Number("a"), B: args.Number("b")}), nil
		},
	}
}

// CalculateOperation returns the calculate operation definition.
func CalculateOperation() Operation {
	names := make([]string, 0, len(arithmeticOps))
	for _, op := range arithmeticOps {
		names = append(names, string(op))
	}
	return Operation{
		Name:        "calculate",
		Description: "Performs add, subtract, multiply or divide on two numbers",
		Schema: Schema{Fields: []Field{
			{Name: "operation", Kind: FieldEnum, Enum: names, Description: "arithmetic operation to apply"},
			{Name: "a", Kind: FieldNumber, Description: "left operand"},
			{Name: "b", Kind: FieldNumber, Description: "right operand"},
		}},
		Handler: func(ctx context.Context, args Args) (Result, error) {
			return Calculate(CalculateInput{
				Operation: ArithmeticOp(args.Enum("operation")),
				A:         args.Number("a"),
				B:         args.Number("b"),
			}), nil
		},
	}
}

// Add returns the sum of the inputs as text.
func Add(in AddInput) Result {
	return TextResult(FormatNumber(in.A + in.B))
}

// Calculate applies the requested operation. Division by zero yields a text
// result carrying DivideByZeroText rather than an error.
func Calculate(in CalculateInput) Result {
	apply, ok := arithmeticFuncs[in.Operation]
	if !ok {
		return TextResult("Error: Unknown operation " + string(in.Operation))
	}
	if in.Operation == OpDivide && in.B == 0 {
		return TextResult(DivideByZeroText)
	}
	return TextResult(FormatNumber(apply(in.A, in.B)))
}
