package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitfly_sessions_started_total",
		Help: "Guided sessions started by kind",
	}, []string{"kind"})

	sessionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitfly_sessions_completed_total",
		Help: "Guided sessions that reached the end by kind",
	}, []string{"kind"})

	sessionsExited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitfly_sessions_exited_total",
		Help: "Guided sessions left before completion by kind",
	}, []string{"kind"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fitfly_sessions_active",
		Help: "Sessions currently hosted by this instance",
	})

	controlActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitfly_session_actions_total",
		Help: "Control actions applied to sessions",
	}, []string{"action", "outcome"}) // outcome=ok|rejected

	pointsAwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fitfly_points_awarded_total",
		Help: "Gamification points awarded for completed sessions",
	})

	persistErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitfly_persist_errors_total",
		Help: "Failed writes of session snapshots or completions",
	}, []string{"target"}) // target=session|completion
)

// RecordSessionStarted counts a new session and bumps the active gauge.
func RecordSessionStarted(kind string) {
	sessionsStarted.WithLabelValues(kind).Inc()
	activeSessions.Inc()
}

// RecordSessionCompleted counts a completion and the points it earned.
func RecordSessionCompleted(kind string, points int) {
	sessionsCompleted.WithLabelValues(kind).Inc()
	activeSessions.Dec()
	if points > 0 {
		pointsAwarded.Add(float64(points))
	}
}

// RecordSessionExited counts a session left early.
func RecordSessionExited(kind string) {
	sessionsExited.WithLabelValues(kind).Inc()
	activeSessions.Dec()
}

// RecordAction counts a control action.
func RecordAction(action string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "rejected"
	}
	controlActions.WithLabelValues(action, outcome).Inc()
}

// RecordPersistError counts a failed store write.
func RecordPersistError(target string) {
	persistErrors.WithLabelValues(target).Inc()
}
