package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/consolelogin"
	"github.com/MrEthical07/consolelogin/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is what the exporter reads on every collection. *consolelogin.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() consolelogin.MetricsSnapshot
	AuditDropped() uint64
}

type observedCounter struct {
	id         consolelogin.MetricID
	instrument metric.Int64ObservableCounter
}

type observedHistogram struct {
	id      consolelogin.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// Exporter holds the registered instruments. Close unregisters them.
type Exporter struct {
	source       Source
	registration metric.Registration
	counters     []observedCounter
	histograms   []observedHistogram
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers instruments for source on meter.
func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h, ins, err := newHistogram(meter, def)
		if err != nil {
			return nil, err
		}
		e.histograms = append(e.histograms, h)
		observables = append(observables, ins...)
	}

	dropped, err := meter.Int64ObservableCounter(
		internaldefs.AuditDropped,
		metric.WithDescription("Audit events dropped on a full dispatcher buffer."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func newHistogram(meter metric.Meter, def internaldefs.HistogramDef) (observedHistogram, []metric.Observable, error) {
	h := observedHistogram{id: def.ID}
	observables := make([]metric.Observable, 0, len(h.buckets)+1)

	for i, suffix := range internaldefs.HistogramBoundSuffix {
		name := def.Name + "_bucket_le_" + suffix
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative bucket count: "+def.Help))
		if err != nil {
			return h, nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
		}
		h.buckets[i] = ins
		observables = append(observables, ins)
	}

	count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription("Sample count: "+def.Help))
	if err != nil {
		return h, nil, fmt.Errorf("create histogram count gauge %s: %w", def.Name, err)
	}
	h.count = count
	observables = append(observables, count)
	return h, observables, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i, v := range cumulative {
			o.ObserveInt64(h.buckets[i], int64(v))
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
