package otel

import (
	"context"
	"errors"
	"fmt"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goAccount.MetricsSnapshot
	ActivityDropped() uint64
}

type observedCounter struct {
	id         goAccount.MetricID
	instrument metric.Int64ObservableCounter
}

type OTelExporter struct {
	source          metricsSource
	registration    metric.Registration
	counters        []observedCounter
	activityDropped metric.Int64ObservableCounter
}

func NewOTelExporter(meter metric.Meter, engine *goAccount.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source:   source,
		counters: make([]observedCounter, 0, len(internaldefs.CounterDefs)),
	}

	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+1)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	activityDropped, err := meter.Int64ObservableCounter(
		"goaccount_activity_dropped_total",
		metric.WithDescription("Dropped activity events due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create activity dropped counter: %w", err)
	}
	exporter.activityDropped = activityDropped
	observables = append(observables, activityDropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		observer.ObserveInt64(exporter.activityDropped, int64(exporter.source.ActivityDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
