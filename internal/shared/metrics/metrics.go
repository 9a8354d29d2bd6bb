package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interview"

// Registry holds every collector this service exports.
var Registry = prometheus.NewRegistry()

var (
	sessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_started_total",
		Help:      "Interview sessions that passed initialization.",
	})
	sessionsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_finished_total",
		Help:      "Interview sessions by terminal state.",
	}, []string{"outcome"})
	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Interview sessions currently running.",
	})
	questionsAsked = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "questions_asked_total",
		Help:      "Questions emitted to candidates.",
	})
	answerTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answer_timeouts_total",
		Help:      "Questions closed because the answer window elapsed.",
	})
	evaluationFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evaluation_fallbacks_total",
		Help:      "Evaluations that used the fallback result.",
	})
	generationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generation_duration_seconds",
		Help:      "Time to stream one interviewer reply.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
	}, []string{"result"})
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		sessionsStarted,
		sessionsFinished,
		sessionsActive,
		questionsAsked,
		answerTimeouts,
		evaluationFallbacks,
		generationDuration,
		httpRequests,
	)
}

// SessionStarted counts a session and marks it active.
func SessionStarted() {
	sessionsStarted.Inc()
	sessionsActive.Inc()
}

// SessionFinished records the outcome of a started session.
func SessionFinished(outcome string) {
	sessionsFinished.WithLabelValues(outcome).Inc()
	sessionsActive.Dec()
}

// IncQuestionsAsked increments the emitted question counter.
func IncQuestionsAsked() {
	questionsAsked.Inc()
}

// IncAnswerTimeouts increments the answer timeout counter.
func IncAnswerTimeouts() {
	answerTimeouts.Inc()
}

// IncEvaluationFallbacks increments the evaluation fallback counter.
func IncEvaluationFallbacks() {
	evaluationFallbacks.Inc()
}

// ObserveGeneration records how long one reply took to stream.
func ObserveGeneration(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	generationDuration.WithLabelValues(result).Observe(d.Seconds())
}

// ObserveRequest counts a finished HTTP request.
func ObserveRequest(method, route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
