package metrics

import (
	"fmt"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// SampleKind identifies how a Sample's value should be read.
type SampleKind string

const (
	// KindCounter is a monotonically increasing count.
	KindCounter SampleKind = "counter"
	// KindGauge is a point-in-time value that may go up or down.
	KindGauge SampleKind = "gauge"
	// KindTimer is accumulated duration in seconds.
	KindTimer SampleKind = "timer"
)

// Sample is one flattened metric value taken at snapshot time.
//
// Histograms are flattened into two samples: a timer carrying the
// accumulated sum of observations in seconds, and a "<name>_count"
// counter carrying the observation count. Dashboards that want a mean
// divide one by the other.
type Sample struct {
	Name   string
	Kind   SampleKind
	Value  float64
	Labels map[string]string
	At     time.Time
}

// Snapshot gathers every registered metric and returns it as a flat,
// name-sorted sample list. It is safe to call concurrently with
// recording; Prometheus collectors are internally synchronized.
//
// The snapshot is a copy: mutating it does not affect live metrics.
func (r *Registry) Snapshot() ([]Sample, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gathering metrics: %w", err)
	}

	now := time.Now()
	var samples []Sample

	for _, family := range families {
		name := family.GetName()
		for _, metric := range family.GetMetric() {
			labels := labelMap(metric)

			switch family.GetType() {
			case dto.MetricType_COUNTER:
				samples = append(samples, Sample{
					Name:   name,
					Kind:   KindCounter,
					Value:  metric.GetCounter().GetValue(),
					Labels: labels,
					At:     now,
				})
			case dto.MetricType_GAUGE:
				samples = append(samples, Sample{
					Name:   name,
					Kind:   KindGauge,
					Value:  metric.GetGauge().GetValue(),
					Labels: labels,
					At:     now,
				})
			case dto.MetricType_HISTOGRAM:
				hist := metric.GetHistogram()
				samples = append(samples,
					Sample{
						Name:   name,
						Kind:   KindTimer,
						Value:  hist.GetSampleSum(),
						Labels: labels,
						At:     now,
					},
					Sample{
						Name:   name + "_count",
						Kind:   KindCounter,
						Value:  float64(hist.GetSampleCount()),
						Labels: copyLabels(labels),
						At:     now,
					},
				)
			default:
				// Summaries and untyped metrics are not produced by this
				// registry; skip anything a third-party collector adds.
			}
		}
	}

	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return labelKey(samples[i].Labels) < labelKey(samples[j].Labels)
	})

	return samples, nil
}

func labelMap(metric *dto.Metric) map[string]string {
	if len(metric.GetLabel()) == 0 {
		return nil
	}
	labels := make(map[string]string, len(metric.GetLabel()))
	for _, pair := range metric.GetLabel() {
		labels[pair.GetName()] = pair.GetValue()
	}
	return labels
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	cp := make(map[string]string, len(labels))
	for k, v := range labels {
		cp[k] = v
	}
	return cp
}

func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	key := ""
	for _, k := range keys {
		key += k + "=" + labels[k] + ","
	}
	return key
}
