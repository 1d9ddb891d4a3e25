// Package metrics exports HTTP and vendor-call metrics to Prometheus
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "imagegen"

type Metrics struct {
	requestDuration *prometheus.HistogramVec
	vendorDuration  *prometheus.HistogramVec
	vendorErrors    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers collectors in reg; nil reg means a fresh registry
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		vendorDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vendor_call_duration_seconds",
			Help:      "Latency of third-party image API calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 90, 120},
		}, []string{"vendor", "operation"}),
		vendorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vendor_call_errors_total",
			Help:      "Count of failed third-party image API calls.",
		}, []string{"vendor", "operation"}),
		gatherer: reg,
	}

	var err error
	if m.requestDuration, err = register(reg, m.requestDuration); err != nil {
		return nil, err
	}
	if m.vendorDuration, err = register(reg, m.vendorDuration); err != nil {
		return nil, err
	}
	if m.vendorErrors, err = register(reg, m.vendorErrors); err != nil {
		return nil, err
	}
	return m, nil
}

// register возвращает уже зарегистрированный коллектор, если такой есть
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

// Middleware измеряет длительность запроса; route - шаблон пути gin
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// ObserveVendor records one vendor call
func (m *Metrics) ObserveVendor(vendor, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.vendorDuration.WithLabelValues(vendor, operation).Observe(d.Seconds())
	if err != nil {
		m.vendorErrors.WithLabelValues(vendor, operation).Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
