package strategy

import (
	"log/slog"

	"trading-backtest/internal/model"
)

// CompositeEntry combines entry conditions with one operator.
type CompositeEntry struct {
	name       string
	op         Operator
	conditions []EntryCondition
}

// NewCompositeEntry creates an entry strategy. An empty op means AND.
func NewCompositeEntry(name string, op Operator, conditions ...EntryCondition) *CompositeEntry {
	if op == "" {
		op = And
	}
	return &CompositeEntry{name: name, op: op, conditions: conditions}
}

// Test reports whether q is an entry bar. No conditions never matches.
func (c *CompositeEntry) Test(stock *model.Stock, q model.Quote, bc *model.BacktestContext) bool {
	return combine(c.op, len(c.conditions), func(i int) bool {
		return c.conditions[i].Evaluate(stock, q, bc)
	})
}

// TestWithDetails evaluates every condition and explains the verdict.
func (c *CompositeEntry) TestWithDetails(stock *model.Stock, q model.Quote, bc *model.BacktestContext) EntrySignalDetails {
	results := make([]ConditionResult, len(c.conditions))
	for i, cond := range c.conditions {
		results[i] = detailsOf(cond, stock, q, bc)
	}
	return EntrySignalDetails{
		Strategy:    c.name,
		Description: c.Description(),
		Conditions:  results,
		AllMet: combine(c.op, len(results), func(i int) bool {
			return results[i].Passed
		}),
	}
}

func (c *CompositeEntry) Description() string {
	descs := make([]string, len(c.conditions))
	for i, cond := range c.conditions {
		descs[i] = cond.Description()
	}
	return joinDescriptions(c.op, descs)
}

// CompositeExit combines exit conditions with one operator.
type CompositeExit struct {
	name       string
	op         Operator
	conditions []ExitCondition
}

// NewCompositeExit creates an exit strategy. An empty op means OR.
func NewCompositeExit(name string, op Operator, conditions ...ExitCondition) *CompositeExit {
	if op == "" {
		op = Or
	}
	if op == And && len(conditions) > 1 {
		slog.Warn("strategy: exit conditions combined with AND, all must trigger on the same bar",
			"strategy", name, "conditions", len(conditions))
	}
	return &CompositeExit{name: name, op: op, conditions: conditions}
}

func (c *CompositeExit) Match(stock *model.Stock, entry, q model.Quote, bc *model.BacktestContext) bool {
	return combine(c.op, len(c.conditions), func(i int) bool {
		return c.conditions[i].ShouldExit(stock, entry, q, bc)
	})
}

// Reason returns the reason of the first condition, in configured order,
// that triggers on q. A NOT match has no triggering condition and reports
// the strategy description instead.
func (c *CompositeExit) Reason(stock *model.Stock, entry, q model.Quote, bc *model.BacktestContext) string {
	for _, cond := range c.conditions {
		if cond.ShouldExit(stock, entry, q, bc) {
			return cond.ExitReason()
		}
	}
	if c.op == Not && len(c.conditions) > 0 {
		return c.Description()
	}
	return ""
}

// ExitPrice is the close, or the previous close when the close is below
// 1.0 (bad print). 0 when there is no previous bar.
func (c *CompositeExit) ExitPrice(stock *model.Stock, _ model.Quote, q model.Quote) float64 {
	if q.Close >= 1.0 {
		return q.Close
	}
	if prev, ok := stock.PreviousQuote(q.Date); ok {
		return prev.Close
	}
	return 0
}

func (c *CompositeExit) Description() string {
	descs := make([]string, len(c.conditions))
	for i, cond := range c.conditions {
		descs[i] = cond.Description()
	}
	return joinDescriptions(c.op, descs)
}
