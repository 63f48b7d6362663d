// Package strategy defines the entry/exit condition contracts the backtest
// engine evaluates, their AND/OR/NOT composition, the catalog of concrete
// conditions, and the rankers used to order same-day candidates.
//
// The engine only sees EntryStrategy, ExitStrategy and StockRanker. New
// condition types are added to the registry without touching the engine.
package strategy

import (
	"fmt"
	"strings"

	"trading-backtest/internal/model"
)

// EntryCondition is one boolean entry rule.
type EntryCondition interface {
	Evaluate(stock *model.Stock, q model.Quote, bc *model.BacktestContext) bool
	Description() string
}

// DetailedEntryCondition explains its verdict for diagnostics.
type DetailedEntryCondition interface {
	EntryCondition
	EvaluateWithDetails(stock *model.Stock, q model.Quote, bc *model.BacktestContext) ConditionResult
}

// ExitCondition is one boolean exit rule evaluated against the entry quote.
type ExitCondition interface {
	ShouldExit(stock *model.Stock, entry, q model.Quote, bc *model.BacktestContext) bool
	ExitReason() string
	Description() string
}

// EntryStrategy decides whether q is an entry bar.
type EntryStrategy interface {
	Test(stock *model.Stock, q model.Quote, bc *model.BacktestContext) bool
	Description() string
}

// ExitStrategy decides whether q closes a position opened at entry.
type ExitStrategy interface {
	Match(stock *model.Stock, entry, q model.Quote, bc *model.BacktestContext) bool
	// Reason is the reported exit reason for a matching bar.
	Reason(stock *model.Stock, entry, q model.Quote, bc *model.BacktestContext) string
	// ExitPrice is the fill price for an exit on q.
	ExitPrice(stock *model.Stock, entry, q model.Quote) float64
	Description() string
}

// ConditionResult is a structured pass/fail explanation.
type ConditionResult struct {
	Type        string `json:"condition_type"`
	Description string `json:"description"`
	Passed      bool   `json:"passed"`
	Actual      string `json:"actual_value,omitempty"`
	Threshold   string `json:"threshold,omitempty"`
	Message     string `json:"message"`
}

// EntrySignalDetails explains a composite entry verdict.
type EntrySignalDetails struct {
	Strategy    string            `json:"strategy_name"`
	Description string            `json:"strategy_description"`
	Conditions  []ConditionResult `json:"conditions"`
	AllMet      bool              `json:"all_conditions_met"`
}

// Operator combines conditions.
type Operator string

const (
	And Operator = "AND"
	Or  Operator = "OR"
	Not Operator = "NOT"
)

// ParseOperator parses AND/OR/NOT case-insensitively. Empty yields def.
func ParseOperator(s string, def Operator) (Operator, error) {
	switch Operator(strings.ToUpper(strings.TrimSpace(s))) {
	case "":
		return def, nil
	case And:
		return And, nil
	case Or:
		return Or, nil
	case Not:
		return Not, nil
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

// combine applies op to the verdicts produced by eval, in order.
// An empty list never matches.
func combine(op Operator, n int, eval func(i int) bool) bool {
	if n == 0 {
		return false
	}
	switch op {
	case Or:
		for i := 0; i < n; i++ {
			if eval(i) {
				return true
			}
		}
		return false
	case Not:
		return !eval(0)
	default:
		for i := 0; i < n; i++ {
			if !eval(i) {
				return false
			}
		}
		return true
	}
}

func joinDescriptions(op Operator, descs []string) string {
	if op == Not {
		if len(descs) == 0 {
			return "NOT"
		}
		return "NOT " + descs[0]
	}
	return strings.Join(descs, " "+string(op)+" ")
}

func mark(passed bool) string {
	if passed {
		return "✓"
	}
	return "✗"
}

// detailsOf returns c's detailed verdict, or a plain one when c does not
// explain itself.
func detailsOf(c EntryCondition, stock *model.Stock, q model.Quote, bc *model.BacktestContext) ConditionResult {
	if d, ok := c.(DetailedEntryCondition); ok {
		return d.EvaluateWithDetails(stock, q, bc)
	}
	passed := c.Evaluate(stock, q, bc)
	return ConditionResult{
		Type:        fmt.Sprintf("%T", c),
		Description: c.Description(),
		Passed:      passed,
		Message:     c.Description() + " " + mark(passed),
	}
}
