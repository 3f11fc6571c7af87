// Package metrics exposes OpenTelemetry instruments for the feedback engine,
// exported in Prometheus format.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelglobal "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const meterName = "servewell_backend"

// Attribute keys shared by the instruments.
var (
	AttrOutcome      = attribute.Key("outcome")
	AttrKind         = attribute.Key("kind")
	AttrStatus       = attribute.Key("status")
	AttrCollaborator = attribute.Key("collaborator")
	AttrAction       = attribute.Key("action")
	AttrSentiment    = attribute.Key("sentiment")
)

var (
	initOnce             sync.Once
	stepsCounter         metric.Int64Counter
	stepDuration         metric.Float64Histogram
	messagesCounter      metric.Int64Counter
	collaboratorFailures metric.Int64Counter
	sweepOrdersCounter   metric.Int64Counter
	analysesCounter      metric.Int64Counter
)

// InitMeterProvider installs a global MeterProvider backed by a Prometheus
// registry and returns the /metrics handler. Call once per process.
func InitMeterProvider(ctx context.Context, serviceName string) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otelglobal.SetMeterProvider(provider)

	if err := initInstruments(); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}), nil
}

func initInstruments() error {
	var err error
	initOnce.Do(func() {
		m := otelglobal.Meter(meterName)
		stepsCounter, err = m.Int64Counter("servewell_conversation_steps_total", metric.WithDescription("Conversation steps processed, by outcome"))
		if err != nil {
			return
		}
		stepDuration, err = m.Float64Histogram("servewell_conversation_step_duration_seconds", metric.WithDescription("Conversation step duration in seconds"))
		if err != nil {
			return
		}
		messagesCounter, err = m.Int64Counter("servewell_messages_sent_total", metric.WithDescription("Outbound chat messages, by kind and delivery status"))
		if err != nil {
			return
		}
		collaboratorFailures, err = m.Int64Counter("servewell_collaborator_failures_total", metric.WithDescription("Degraded calls to transcription, synthesis or delivery"))
		if err != nil {
			return
		}
		sweepOrdersCounter, err = m.Int64Counter("servewell_sweep_orders_total", metric.WithDescription("Orders touched by the review sweep, by action"))
		if err != nil {
			return
		}
		analysesCounter, err = m.Int64Counter("servewell_conversation_analyses_total", metric.WithDescription("Stored conversation analyses, by sentiment"))
	})
	return err
}

// RecordStep records one conversation step and how long it took.
func RecordStep(ctx context.Context, outcome string, d time.Duration) {
	if stepsCounter != nil {
		stepsCounter.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
	}
	if stepDuration != nil {
		stepDuration.Record(ctx, d.Seconds(), metric.WithAttributes(AttrOutcome.String(outcome)))
	}
}

// RecordMessage records one outbound message attempt.
func RecordMessage(ctx context.Context, kind string, delivered bool) {
	if messagesCounter == nil {
		return
	}
	status := "delivered"
	if !delivered {
		status = "failed"
	}
	messagesCounter.Add(ctx, 1, metric.WithAttributes(AttrKind.String(kind), AttrStatus.String(status)))
}

// RecordCollaboratorFailure counts a degraded external call.
func RecordCollaboratorFailure(ctx context.Context, collaborator string) {
	if collaboratorFailures != nil {
		collaboratorFailures.Add(ctx, 1, metric.WithAttributes(AttrCollaborator.String(collaborator)))
	}
}

// RecordSweepOrder counts an order handled by the review sweep.
func RecordSweepOrder(ctx context.Context, action string) {
	if sweepOrdersCounter != nil {
		sweepOrdersCounter.Add(ctx, 1, metric.WithAttributes(AttrAction.String(action)))
	}
}

// RecordAnalysis counts a stored conversation analysis.
func RecordAnalysis(ctx context.Context, sentiment string) {
	if analysesCounter != nil {
		analysesCounter.Add(ctx, 1, metric.WithAttributes(AttrSentiment.String(sentiment)))
	}
}
