package booking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricBooked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appointments_booked_total",
		Help: "Appointments booked, including waitlist promotions.",
	})
	metricCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appointments_cancelled_total",
		Help: "Appointments cancelled by a consumer, provider, or admin.",
	})
	metricCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appointments_completed_total",
		Help: "Appointments marked completed by their provider.",
	})
	metricPromoted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_promotions_total",
		Help: "Waitlist consumers promoted into a booking after a cancellation.",
	})
	metricSlotsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slots_expired_total",
		Help: "Slots transitioned to expired by the reconciler.",
	})
	metricAppointmentsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appointments_expired_total",
		Help: "Booked appointments expired by the reconciler.",
	})
	metricNotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Best-effort notifications handed to the sink.",
	})
	metricRemindersSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminders_sent_total",
		Help: "Appointment reminders emitted by the reconciler.",
	})
	metricReconcileRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_runs_total",
		Help: "Completed reconciliation ticks.",
	})
	metricReconcileSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_runs_skipped_total",
		Help: "Reconciliation ticks skipped because a run was in flight.",
	})
)
