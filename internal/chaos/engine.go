// internal/chaos/engine.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Experiment is one hypothesis about system behavior under load or faults.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Inject      func(ctx context.Context) error
	Validation  []Assertion
}

// Metric is a measurable system property with an acceptable range.
type Metric struct {
	Name      string
	Query     func(ctx context.Context) (float64, error)
	Threshold Threshold
}

// Threshold bounds a metric value.
type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Assertion validates a metric after the injection phase.
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

// Violation records a metric outside its threshold.
type Violation struct {
	MetricName string    `json:"metric_name"`
	Expected   float64   `json:"expected"`
	Actual     float64   `json:"actual"`
	Timestamp  time.Time `json:"timestamp"`
}

// Result captures one experiment execution.
type Result struct {
	ExperimentName   string             `json:"experiment_name"`
	StartTime        time.Time          `json:"start_time"`
	Duration         time.Duration      `json:"duration"`
	SteadyStateValid bool               `json:"steady_state_valid"`
	HypothesisHeld   bool               `json:"hypothesis_held"`
	Violations       []Violation        `json:"violations"`
	FinalValues      map[string]float64 `json:"final_values"`
}

// Engine runs consistency experiments against a live database.
type Engine struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

// NewEngine creates a chaos engine.
func NewEngine(db *sqlx.DB) *Engine {
	return &Engine{
		db:     db,
		tracer: otel.Tracer("libris/chaos"),
	}
}

// Run executes one experiment: verify steady state, inject, then re-check
// every metric and the experiment's assertions.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	result := &Result{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		FinalValues:    make(map[string]float64),
	}

	span.AddEvent("validating_steady_state")
	if violations := e.checkMetrics(ctx, exp.SteadyState); len(violations) > 0 {
		result.Violations = violations
		return result, errors.New("steady state invalid, aborting experiment")
	}
	result.SteadyStateValid = true

	span.AddEvent("injecting")
	if err := exp.Inject(ctx); err != nil {
		span.RecordError(err)
		return result, fmt.Errorf("injection failed: %w", err)
	}

	span.AddEvent("validating_outcome")
	result.Violations = append(result.Violations, e.checkMetrics(ctx, exp.SteadyState)...)

	result.HypothesisHeld = len(result.Violations) == 0
	for _, metric := range exp.SteadyState {
		value, err := metric.Query(ctx)
		if err != nil {
			continue
		}
		result.FinalValues[metric.Name] = value
	}
	for _, assertion := range exp.Validation {
		value, ok := result.FinalValues[assertion.Metric]
		if !ok || !assertion.Condition(value) {
			result.HypothesisHeld = false
			span.AddEvent("assertion_failed", trace.WithAttributes(
				attribute.String("assertion.message", assertion.Message),
			))
		}
	}

	result.Duration = time.Since(result.StartTime)
	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)

	return result, nil
}

func (e *Engine) checkMetrics(ctx context.Context, metrics []Metric) []Violation {
	var violations []Violation
	for _, metric := range metrics {
		value, err := metric.Query(ctx)
		if err != nil {
			violations = append(violations, Violation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     -1,
				Timestamp:  time.Now(),
			})
			continue
		}
		if !evaluateThreshold(value, metric.Threshold) {
			violations = append(violations, Violation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     value,
				Timestamp:  time.Now(),
			})
		}
	}
	return violations
}

func evaluateThreshold(value float64, threshold Threshold) bool {
	switch threshold.Operator {
	case ">":
		return value > threshold.Value
	case "<":
		return value < threshold.Value
	case ">=":
		return value >= threshold.Value
	case "<=":
		return value <= threshold.Value
	case "==":
		return value == threshold.Value
	default:
		return false
	}
}
