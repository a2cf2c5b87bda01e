package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RepliesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autoreply_replies_sent_total",
		Help: "Количество отправленных автоответов",
	})
	RepliesSuppressedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autoreply_replies_suppressed_total",
		Help: "Количество подавленных автоответов по причинам",
	}, []string{"reason"})
	SendErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autoreply_send_errors_total",
		Help: "Ошибки отправки сообщений",
	})
	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autoreply_commands_total",
		Help: "Количество обработанных команд владельца",
	}, []string{"command"})
	ConfirmationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autoreply_confirmations_total",
		Help: "Исходы подтверждений деструктивных операций",
	}, []string{"outcome"})
	AnalyticsEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autoreply_analytics_events_total",
		Help: "События аналитики по статусам обработки",
	}, []string{"status"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 25, 30, 35, 40, 45, 50, 55, 60, 65, 70, 75, 80, 85, 90, 95, 100, 105, 110, 115, 120, 125, 130, 135, 140, 145, 150, 155, 160, 165, 170, 175, 180, 185, 190, 195, 200, 250, 300, 350, 400, 450, 500, 550, 600},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		RepliesSentTotal,
		RepliesSuppressedTotal,
		SendErrorsTotal,
		CommandsTotal,
		ConfirmationsTotal,
		AnalyticsEventsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// IncReplySent увеличивает счётчик отправленных автоответов.
func IncReplySent() {
	RepliesSentTotal.Inc()
}

// IncReplySuppressed увеличивает счётчик подавленных ответов по причине.
func IncReplySuppressed(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	RepliesSuppressedTotal.WithLabelValues(reason).Inc()
}

// IncCommand увеличивает счётчик обработанных команд.
func IncCommand(name string) {
	if name == "" {
		name = "unknown"
	}
	CommandsTotal.WithLabelValues(name).Inc()
}

// IncConfirmation увеличивает счётчик исходов подтверждений.
func IncConfirmation(outcome string) {
	ConfirmationsTotal.WithLabelValues(outcome).Inc()
}

// IncAnalyticsEvent увеличивает счётчик событий аналитики.
func IncAnalyticsEvent(status string) {
	AnalyticsEventsTotal.WithLabelValues(status).Inc()
}
