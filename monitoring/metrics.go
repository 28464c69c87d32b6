package monitoring

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricType 指标类型
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeGauge   MetricType = "gauge"
)

const (
	MetricPredictRequests  = "predict_requests_total"
	MetricPredictionLabels = "prediction_labels_total"
	MetricPredictErrors    = "predict_errors_total"
	MetricFallbacks        = "unknown_category_fallbacks_total"
)

// Metric 指标
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Help      string            `json:"help,omitempty"`
}

var metricHelp = map[string]string{
	MetricPredictRequests:  "Prediction requests by outcome",
	MetricPredictionLabels: "Predicted labels",
	MetricPredictErrors:    "Rejected prediction requests by error kind",
	MetricFallbacks:        "Unknown categorical values replaced by the imputation category",
}

// MetricsCollector 指标收集器
type MetricsCollector struct {
	metrics     map[string]*Metric
	metricsLock sync.RWMutex

	startTime time.Time
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics:   make(map[string]*Metric),
		startTime: time.Now(),
	}
}

// IncrCounter 增加计数器
func (mc *MetricsCollector) IncrCounter(name string, value float64, labels map[string]string) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	key := seriesKey(name, labels)
	metric, ok := mc.metrics[key]
	if !ok {
		metric = &Metric{
			Name:   name,
			Type:   MetricTypeCounter,
			Labels: copyLabels(labels),
			Help:   metricHelp[name],
		}
		mc.metrics[key] = metric
	}
	metric.Value += value
	metric.Timestamp = time.Now()
}

// RecordPrediction 记录一次成功预测
func (mc *MetricsCollector) RecordPrediction(label string) {
	mc.IncrCounter(MetricPredictRequests, 1, map[string]string{"outcome": "ok"})
	mc.IncrCounter(MetricPredictionLabels, 1, map[string]string{"label": label})
}

// RecordError 记录一次被拒绝的预测
func (mc *MetricsCollector) RecordError(kind string) {
	mc.IncrCounter(MetricPredictRequests, 1, map[string]string{"outcome": "error"})
	mc.IncrCounter(MetricPredictErrors, 1, map[string]string{"kind": kind})
}

// Value 返回某个序列的当前值，未记录时为0
func (mc *MetricsCollector) Value(name string, labels map[string]string) float64 {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	if metric, ok := mc.metrics[seriesKey(name, labels)]; ok {
		return metric.Value
	}
	return 0
}

// GetAllMetrics 获取所有指标，按序列排序
func (mc *MetricsCollector) GetAllMetrics() []Metric {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	keys := make([]string, 0, len(mc.metrics))
	for key := range mc.metrics {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Metric, 0, len(keys))
	for _, key := range keys {
		m := *mc.metrics[key]
		m.Labels = copyLabels(m.Labels)
		result = append(result, m)
	}
	return result
}

// ExportPrometheus 导出Prometheus格式
func (mc *MetricsCollector) ExportPrometheus() string {
	var b strings.Builder
	seen := make(map[string]bool)
	for _, metric := range mc.GetAllMetrics() {
		if !seen[metric.Name] {
			seen[metric.Name] = true
			help := metric.Help
			if help == "" {
				help = fmt.Sprintf("Metric %s", metric.Name)
			}
			fmt.Fprintf(&b, "# HELP %s %s\n", metric.Name, help)
			fmt.Fprintf(&b, "# TYPE %s %s\n", metric.Name, metric.Type)
		}
		fmt.Fprintf(&b, "%s%s %g\n", metric.Name, formatLabels(metric.Labels), metric.Value)
	}
	return b.String()
}

// GetUptime 获取运行时间
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

func seriesKey(name string, labels map[string]string) string {
	return name + formatLabels(labels)
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)

	pairs := make([]string, len(names))
	for i, k := range names {
		pairs[i] = fmt.Sprintf("%s=%q", k, labels[k])
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}
