// Package notification delivers backtest run alerts to external channels.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel        `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	RunID   string            `json:"run_id,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// RunSummary is what a finished run reports.
type RunSummary struct {
	RunID        string
	Strategy     string
	Mode         string
	Symbols      int
	Trades       int
	MissedTrades int
	WinRate      float64
	AvgProfit    float64
	Duration     time.Duration
}

// RunCompleteAlert builds the INFO alert for a successful run.
func RunCompleteAlert(s RunSummary) Alert {
	return Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("Backtest %s finished", s.Strategy),
		Message: fmt.Sprintf("%d trades (%d missed) over %d symbols, win rate %.1f%%, avg %.2f%%",
			s.Trades, s.MissedTrades, s.Symbols, s.WinRate, s.AvgProfit),
		RunID: s.RunID,
		Fields: map[string]string{
			"mode":     s.Mode,
			"duration": s.Duration.Round(time.Millisecond).String(),
		},
	}
}

// RunFailedAlert builds the CRITICAL alert for a run that returned err.
func RunFailedAlert(runID, strategy string, err error) Alert {
	return Alert{
		Level:   AlertCritical,
		Title:   fmt.Sprintf("Backtest %s failed", strategy),
		Message: err.Error(),
		RunID:   runID,
	}
}

// fieldLines renders fields as sorted "k: v" lines.
func fieldLines(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, fields[k])
	}
	return b.String()
}

// LogNotifier writes alerts to the standard logger.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s run=%s", alert.Level, alert.Title, alert.Message, alert.RunID)
	return nil
}

// Multi sends every alert to all of its notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
