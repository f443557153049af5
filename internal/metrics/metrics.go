// Package metrics exposes Prometheus collectors for scheduling and check-in.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the runner and the web boundary report to.
type Recorder interface {
	RecordScheduled(withWindow bool)
	RecordScheduleFailure(reason string)
	RecordCheckIn(outcome string)
	RecordAPIResponse(op string, status int, d time.Duration)
	RecordClaimed(claimed int)
}

type Collector struct {
	scheduled    *prometheus.CounterVec
	scheduleFail *prometheus.CounterVec
	checkIns     *prometheus.CounterVec
	apiStatus    *prometheus.CounterVec
	apiLatency   *prometheus.HistogramVec
	claimed      prometheus.Histogram
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_scheduled_total",
			Help: "Reservations scheduled, by whether a future check-in window existed.",
		}, []string{"has_window"}),
		scheduleFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_schedule_failures_total",
			Help: "Scheduling attempts that produced no task.",
		}, []string{"reason"}),
		checkIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_attempts_total",
			Help: "Check-in attempts by outcome.",
		}, []string{"outcome"}),
		apiStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_airline_responses_total",
			Help: "Airline API responses by operation and status code.",
		}, []string{"op", "status_code"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "checkin_airline_latency_seconds",
			Help:    "Airline API round-trip latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		claimed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkin_claimed_tasks",
			Help:    "Tasks claimed per runner tick.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
		}),
	}
	reg.MustRegister(c.scheduled, c.scheduleFail, c.checkIns, c.apiStatus, c.apiLatency, c.claimed)
	return c
}

func (c *Collector) RecordScheduled(withWindow bool) {
	c.scheduled.WithLabelValues(strconv.FormatBool(withWindow)).Inc()
}

func (c *Collector) RecordScheduleFailure(reason string) {
	c.scheduleFail.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordCheckIn(outcome string) {
	c.checkIns.WithLabelValues(outcome).Inc()
}

// RecordAPIResponse takes status 0 for requests that got no response.
func (c *Collector) RecordAPIResponse(op string, status int, d time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	c.apiStatus.WithLabelValues(op, code).Inc()
	c.apiLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (c *Collector) RecordClaimed(claimed int) {
	c.claimed.Observe(float64(claimed))
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordScheduled(bool) {}
func (Nop) RecordScheduleFailure(string) {}
func (Nop) RecordCheckIn(string) {}
func (Nop) RecordAPIResponse(string, int, time.Duration) {}
func (Nop) RecordClaimed(int) {}
