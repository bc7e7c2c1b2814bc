package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для метки result.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// BillingMetrics содержит метрики операций со счетами.
type BillingMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec

	// Распределения по сохранённым счетам
	billValue *prometheus.HistogramVec
	lineCount prometheus.Histogram

	inFlight prometheus.Gauge
}

// NewBillingMetrics создаёт метрики в DefaultRegisterer.
// Повторный вызов возвращает уже зарегистрированные коллекторы.
func NewBillingMetrics() *BillingMetrics {
	return NewBillingMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewBillingMetricsWithRegisterer создаёт метрики в указанном registerer.
func NewBillingMetricsWithRegisterer(registerer prometheus.Registerer) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &BillingMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_bill_operations_total",
			Help: "Total number of bill operations grouped by operation and result",
		}, []string{"operation", "result"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "shop_bill_operation_duration_seconds",
			Help:    "Duration of bill operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		billValue: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "shop_bill_value_minor",
			Help:    "Bill amounts in minor currency units",
			Buckets: prometheus.ExponentialBuckets(1000, 4, 10),
		}, []string{"kind"}),
		lineCount: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_bill_lines",
			Help:    "Number of detail lines per saved bill",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 50},
		}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "shop_bill_operations_in_flight",
			Help: "Number of bill operations currently being processed",
		}),
	}
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// Start отмечает начало операции и возвращает функцию её завершения.
// Метрики с nil-получателем ничего не делают.
func (m *BillingMetrics) Start(operation string) func(err error) {
	if m == nil {
		return func(error) {}
	}

	started := time.Now()
	m.inFlight.Inc()
	return func(err error) {
		m.inFlight.Dec()
		m.RecordOperation(operation, err == nil, time.Since(started))
	}
}

// RecordOperation учитывает результат и длительность операции.
func (m *BillingMetrics) RecordOperation(operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBill записывает суммы и число строк сохранённого счёта.
func (m *BillingMetrics) RecordBill(originalMinor, discountedMinor int64, lines int) {
	if m == nil {
		return
	}
	m.billValue.WithLabelValues("original").Observe(float64(originalMinor))
	m.billValue.WithLabelValues("discounted").Observe(float64(discountedMinor))
	m.lineCount.Observe(float64(lines))
}
