package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilCounter is returned when a counter builder has no instrument.
	ErrNilCounter = errors.New("counter instrument is nil")
	// ErrNilGauge is returned when a gauge builder has no instrument.
	ErrNilGauge = errors.New("gauge instrument is nil")
	// ErrNilHistogram is returned when a histogram builder has no instrument.
	ErrNilHistogram = errors.New("histogram instrument is nil")
)

// labelAttrs converts a label map into attributes with deterministic key
// order, so repeated recordings of the same label set produce identical
// attribute slices.
func labelAttrs(labels map[string]string) []attribute.KeyValue {
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, key := range keys {
		attrs = append(attrs, attribute.String(key, labels[key]))
	}

	return attrs
}

// mergeAttrs returns a fresh slice combining base and extra; builders are
// immutable, every With* call works on a copy.
func mergeAttrs(base, extra []attribute.KeyValue) []attribute.KeyValue {
	merged := make([]attribute.KeyValue, 0, len(base)+len(extra))
	merged = append(merged, base...)

	return append(merged, extra...)
}

// CounterBuilder records monotonic counts with optional labels.
type CounterBuilder struct {
	counter metric.Int64Counter
	name    string
	attrs   []attribute.KeyValue
}

// WithLabels returns a copy of the builder carrying the given labels as
// string attributes.
func (b *CounterBuilder) WithLabels(labels map[string]string) *CounterBuilder {
	return &CounterBuilder{
		counter: b.counter,
		name:    b.name,
		attrs:   mergeAttrs(b.attrs, labelAttrs(labels)),
	}
}

// WithAttributes returns a copy of the builder carrying the given attributes.
func (b *CounterBuilder) WithAttributes(attrs ...attribute.KeyValue) *CounterBuilder {
	return &CounterBuilder{
		counter: b.counter,
		name:    b.name,
		attrs:   mergeAttrs(b.attrs, attrs),
	}
}

// Add increments the counter by value.
func (b *CounterBuilder) Add(ctx context.Context, value int64) error {
	if b.counter == nil {
		return fmt.Errorf("%w: %s", ErrNilCounter, b.name)
	}

	b.counter.Add(ctx, value, metric.WithAttributes(b.attrs...))

	return nil
}

// AddOne increments the counter by one.
func (b *CounterBuilder) AddOne(ctx context.Context) error {
	return b.Add(ctx, 1)
}

// GaugeBuilder records instantaneous values such as queue depth.
type GaugeBuilder struct {
	gauge metric.Int64Gauge
	name  string
	attrs []attribute.KeyValue
}

// WithLabels returns a copy of the builder carrying the given labels as
// string attributes.
func (b *GaugeBuilder) WithLabels(labels map[string]string) *GaugeBuilder {
	return &GaugeBuilder{
		gauge: b.gauge,
		name:  b.name,
		attrs: mergeAttrs(b.attrs, labelAttrs(labels)),
	}
}

// WithAttributes returns a copy of the builder carrying the given attributes.
func (b *GaugeBuilder) WithAttributes(attrs ...attribute.KeyValue) *GaugeBuilder {
	return &GaugeBuilder{
		gauge: b.gauge,
		name:  b.name,
		attrs: mergeAttrs(b.attrs, attrs),
	}
}

// Set records the gauge's current value.
func (b *GaugeBuilder) Set(ctx context.Context, value int64) error {
	if b.gauge == nil {
		return fmt.Errorf("%w: %s", ErrNilGauge, b.name)
	}

	b.gauge.Record(ctx, value, metric.WithAttributes(b.attrs...))

	return nil
}

// HistogramBuilder records value distributions such as call latency.
type HistogramBuilder struct {
	histogram metric.Int64Histogram
	name      string
	attrs     []attribute.KeyValue
}

// WithLabels returns a copy of the builder carrying the given labels as
// string attributes.
func (b *HistogramBuilder) WithLabels(labels map[string]string) *HistogramBuilder {
	return &HistogramBuilder{
		histogram: b.histogram,
		name:      b.name,
		attrs:     mergeAttrs(b.attrs, labelAttrs(labels)),
	}
}

// WithAttributes returns a copy of the builder carrying the given attributes.
func (b *HistogramBuilder) WithAttributes(attrs ...attribute.KeyValue) *HistogramBuilder {
	return &HistogramBuilder{
		histogram: b.histogram,
		name:      b.name,
		attrs:     mergeAttrs(b.attrs, attrs),
	}
}

// Record adds one observation to the distribution.
func (b *HistogramBuilder) Record(ctx context.Context, value int64) error {
	if b.histogram == nil {
		return fmt.Errorf("%w: %s", ErrNilHistogram, b.name)
	}

	b.histogram.Record(ctx, value, metric.WithAttributes(b.attrs...))

	return nil
}
