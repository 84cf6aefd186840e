package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "salonbook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_submissions_total",
			Help:      "Booking submissions by outcome.",
		},
		[]string{"outcome"},
	)

	appointmentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_transitions_total",
			Help:      "Appointment status transitions by target status and outcome.",
		},
		[]string{"to", "outcome"},
	)

	occupancyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "occupancy_fetch_failures_total",
			Help:      "Occupancy lookups that degraded to an empty busy set.",
		},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_tasks_total",
			Help:      "Journal and calendar sync tasks by final status.",
		},
		[]string{"task_type", "status"},
	)

	slotListDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_list_duration_seconds",
			Help:      "Time spent computing a day's slot grid.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			bookingSubmissions,
			appointmentTransitions,
			occupancyFailures,
			syncTasks,
			slotListDuration,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncSubmission records a booking submission outcome ("created" or an error kind).
func IncSubmission(outcome string) {
	bookingSubmissions.WithLabelValues(outcome).Inc()
}

func IncTransition(to, outcome string) {
	appointmentTransitions.WithLabelValues(to, outcome).Inc()
}

func IncOccupancyFailure() {
	occupancyFailures.Inc()
}

func IncSyncTask(taskType, status string) {
	syncTasks.WithLabelValues(taskType, status).Inc()
}

func ObserveSlotList(seconds float64) {
	slotListDuration.Observe(seconds)
}
