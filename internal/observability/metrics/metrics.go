package metrics

import "github.com/prometheus/client_golang/prometheus"

// SignupMetrics exposes counters/histograms for the signup wizard.
type SignupMetrics struct {
	sessionsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	effectLatency    *prometheus.HistogramVec
	analyticsTotal   *prometheus.CounterVec
}

func NewSignupMetrics(reg prometheus.Registerer) *SignupMetrics {
	m := &SignupMetrics{
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careerjournal",
			Subsystem: "signup",
			Name:      "sessions_started_total",
			Help:      "Wizard sessions started, by utm_source",
		}, []string{"utm_source"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careerjournal",
			Subsystem: "signup",
			Name:      "commands_total",
			Help:      "Wizard commands by outcome",
		}, []string{"command", "outcome"}),
		effectLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "careerjournal",
			Subsystem: "signup",
			Name:      "effect_latency_seconds",
			Help:      "Latency of account effects awaited by transitions",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5, 10},
		}, []string{"effect", "status"}),
		analyticsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careerjournal",
			Subsystem: "analytics",
			Name:      "events_total",
			Help:      "Analytics events by name and delivery status",
		}, []string{"event", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sessionsTotal, m.transitionsTotal, m.effectLatency, m.analyticsTotal)
	return m
}

func (m *SignupMetrics) ObserveSessionStarted(utmSource string) {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues(utmSource).Inc()
}

func (m *SignupMetrics) ObserveTransition(command, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(command, outcome).Inc()
}

func (m *SignupMetrics) ObserveEffect(effect string, ok bool, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.effectLatency.WithLabelValues(effect, status).Observe(seconds)
}

// ObserveAnalytics counts tracked events; status is "accepted" or "dropped".
func (m *SignupMetrics) ObserveAnalytics(event, status string) {
	if m == nil {
		return
	}
	m.analyticsTotal.WithLabelValues(event, status).Inc()
}

// AnalyticsCounter returns the counter behind ObserveAnalytics for one label pair.
func (m *SignupMetrics) AnalyticsCounter(event, status string) prometheus.Counter {
	return m.analyticsTotal.WithLabelValues(event, status)
}

// TransitionCounter returns the counter behind ObserveTransition for one label pair.
func (m *SignupMetrics) TransitionCounter(command, outcome string) prometheus.Counter {
	return m.transitionsTotal.WithLabelValues(command, outcome)
}
