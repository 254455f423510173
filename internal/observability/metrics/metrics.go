package metrics

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "bridge_"

var (
	registerOnce sync.Once

	commandsReceived *prometheus.CounterVec
	commandsIssued   prometheus.Counter
	actionResults    *prometheus.CounterVec

	remoteCalls       *prometheus.CounterVec
	credentialRefresh *prometheus.CounterVec
	circuitState      prometheus.Gauge

	pollAttempts *prometheus.CounterVec
	liveActions  prometheus.Gauge

	dataRefreshes      *prometheus.CounterVec
	dataRefreshLatency *prometheus.HistogramVec

	mqttPublishErrors prometheus.Counter
)

// Init registers bridge metrics. Safe to call more than once.
func Init(logger *log.Logger) {
	registerOnce.Do(func() {
		commandsReceived = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_received_total",
				Help: "Inbound commands by kind and parse result",
			},
			[]string{"kind", "result"},
		)
		commandsIssued = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_issued_total",
				Help: "Commands dispatched to the remote API",
			},
		)
		actionResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "action_results_total",
				Help: "Terminal action outcomes by status",
			},
			[]string{"status"},
		)
		remoteCalls = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "remote_calls_total",
				Help: "Remote API calls by operation class and result",
			},
			[]string{"class", "result"},
		)
		credentialRefresh = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "credential_refresh_total",
				Help: "Credential refresh attempts by result",
			},
			[]string{"result"},
		)
		circuitState = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "circuit_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
		)
		pollAttempts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_attempts_total",
				Help: "Status poll attempts by result",
			},
			[]string{"result"},
		)
		liveActions = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "live_actions",
				Help: "Actions currently tracked to a terminal state",
			},
		)
		dataRefreshes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "data_refresh_total",
				Help: "Vehicle data refreshes by strategy and result",
			},
			[]string{"strategy", "result"},
		)
		dataRefreshLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "data_refresh_latency_seconds",
				Help:    "Vehicle data refresh latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"strategy"},
		)
		mqttPublishErrors = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "mqtt_publish_errors_total",
				Help: "Failed MQTT publish attempts",
			},
		)

		prometheus.MustRegister(
			commandsReceived,
			commandsIssued,
			actionResults,
			remoteCalls,
			credentialRefresh,
			circuitState,
			pollAttempts,
			liveActions,
			dataRefreshes,
			dataRefreshLatency,
			mqttPublishErrors,
		)
		if logger != nil {
			logger.Printf("metrics registered")
		}
	})
}

// IncCommandReceived counts an inbound command parse attempt.
func IncCommandReceived(kind, result string) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = "success"
	}
	if commandsReceived != nil {
		commandsReceived.WithLabelValues(kind, result).Inc()
	}
}

// IncCommandIssued counts a successful remote dispatch.
func IncCommandIssued() {
	if commandsIssued != nil {
		commandsIssued.Inc()
	}
}

// IncActionResult counts a terminal action outcome.
func IncActionResult(status string) {
	if status == "" {
		status = "unknown"
	}
	if actionResults != nil {
		actionResults.WithLabelValues(status).Inc()
	}
}

// IncRemoteCall counts one protected remote call.
func IncRemoteCall(class, result string) {
	if remoteCalls != nil {
		remoteCalls.WithLabelValues(class, result).Inc()
	}
}

// IncCredentialRefresh counts a physical credential refresh.
func IncCredentialRefresh(result string) {
	if credentialRefresh != nil {
		credentialRefresh.WithLabelValues(result).Inc()
	}
}

// SetCircuitState records the breaker state as a gauge.
func SetCircuitState(state string) {
	if circuitState == nil {
		return
	}
	switch state {
	case "open":
		circuitState.Set(2)
	case "half_open":
		circuitState.Set(1)
	default:
		circuitState.Set(0)
	}
}

// IncPollAttempt counts a status poll attempt.
func IncPollAttempt(result string) {
	if result == "" {
		result = "success"
	}
	if pollAttempts != nil {
		pollAttempts.WithLabelValues(result).Inc()
	}
}

// SetLiveActions records the size of the live-action index.
func SetLiveActions(count int) {
	if liveActions != nil {
		liveActions.Set(float64(count))
	}
}

// ObserveDataRefresh records a read-path refresh.
func ObserveDataRefresh(strategy, result string, duration time.Duration) {
	if strategy == "" {
		strategy = "unknown"
	}
	if result == "" {
		result = "success"
	}
	if dataRefreshes != nil {
		dataRefreshes.WithLabelValues(strategy, result).Inc()
	}
	if dataRefreshLatency != nil {
		dataRefreshLatency.WithLabelValues(strategy).Observe(duration.Seconds())
	}
}

// IncMQTTPublishError counts a failed broker publish.
func IncMQTTPublishError() {
	if mqttPublishErrors != nil {
		mqttPublishErrors.Inc()
	}
}
