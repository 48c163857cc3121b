package sssnss

import (
	"fmt"
	"strings"

	"github.com/rcrowley/go-metrics"
)

// Metric names registered in Config.MetricRegistry.
const (
	metricRequestRate     = "request-rate"
	metricRequestLatency  = "request-latency-in-ms"
	metricReplySize       = "reply-size"
	metricRecordsDecoded  = "records-decoded"
	metricDecodeErrorRate = "decode-error-rate"
	metricBatchSize       = "batch-size"
	metricGroupsAppended  = "initgroups-appended"
	metricReconnectRate   = "reconnect-rate"
)

func getOrRegisterHistogram(name string, r metrics.Registry) metrics.Histogram {
	return r.GetOrRegister(name, func() metrics.Histogram {
		return metrics.NewHistogram(metrics.NewExpDecaySample(1028, 0.015))
	}).(metrics.Histogram)
}

func getMetricNameForCommand(name string, cmd Command) string {
	return fmt.Sprintf(name+"-for-command-%s", strings.ToLower(cmd.String()))
}

func getOrRegisterCommandMeter(name string, cmd Command, r metrics.Registry) metrics.Meter {
	return metrics.GetOrRegisterMeter(getMetricNameForCommand(name, cmd), r)
}

// clientMetrics holds the instruments the Client updates; they all live in
// the configured registry.
type clientMetrics struct {
	registry        metrics.Registry
	recordsDecoded  metrics.Meter
	decodeErrorRate metrics.Meter
	batchSize       metrics.Histogram
	groupsAppended  metrics.Histogram
}

func newClientMetrics(r metrics.Registry) *clientMetrics {
	return &clientMetrics{
		registry:        r,
		recordsDecoded:  metrics.GetOrRegisterMeter(metricRecordsDecoded, r),
		decodeErrorRate: metrics.GetOrRegisterMeter(metricDecodeErrorRate, r),
		batchSize:       getOrRegisterHistogram(metricBatchSize, r),
		groupsAppended:  getOrRegisterHistogram(metricGroupsAppended, r),
	}
}

// decoded records the outcome of one record decode.
func (m *clientMetrics) decoded(err error) {
	if err != nil {
		m.decodeErrorRate.Mark(1)
		return
	}
	m.recordsDecoded.Mark(1)
}
