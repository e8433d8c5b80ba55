package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements the Collector interface using Prometheus metrics.
type PrometheusCollector struct {
	connectionsTotal   *prometheus.CounterVec
	connectionsActive  *prometheus.GaugeVec
	tlsConnectionTotal *prometheus.CounterVec

	authAttemptsTotal *prometheus.CounterVec

	commandsTotal *prometheus.CounterVec

	messagesRetrievedTotal *prometheus.CounterVec
	messagesStoredTotal    *prometheus.CounterVec
	messagesDeletedTotal   *prometheus.CounterVec
	messagesListedTotal    *prometheus.CounterVec
	messagesSizeBytes      *prometheus.HistogramVec

	idleSessionsActive prometheus.Gauge
	watcherEventsTotal *prometheus.CounterVec
}

// NewPrometheusCollector creates a new PrometheusCollector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailstackd_connections_total",
			Help: "Total number of connections opened.",
		}, []string{"protocol"}),
		connectionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mailstackd_connections_active",
			Help: "Number of currently active connections.",
		}, []string{"protocol"}),
		tlsConnectionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailstackd_tls_connections_total",
			Help: "Total number of TLS connections established.",
		}, []string{"protocol"}),

		authAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailstackd_auth_attempts_total",
			Help: "Total number of authentication attempts.",
		}, []string{"protocol", "domain", "result"}),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailstackd_commands_total",
			Help: "Total number of protocol commands processed.",
		}, []string{"protocol", "command"}),

		messagesRetrievedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailstackd_messages_retrieved_total",
			Help: "Total number of messages retrieved.",
		}, []string{"protocol", "user_domain"}),
		messagesStoredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailstackd_messages_stored_total",
			Help: "Total number of messages stored (APPEND/DATA).",
		}, []string{"protocol", "user_domain"}),
		messagesDeletedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailstackd_messages_deleted_total",
			Help: "Total number of messages expunged.",
		}, []string{"protocol", "user_domain"}),
		messagesListedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailstackd_messages_listed_total",
			Help: "Total number of message list operations.",
		}, []string{"protocol", "user_domain"}),
		messagesSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mailstackd_messages_size_bytes",
			Help:    "Size of transferred messages in bytes.",
			Buckets: []float64{1024, 10240, 102400, 1048576, 10485760, 26214400, 52428800},
		}, []string{"protocol"}),

		idleSessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mailstackd_idle_sessions_active",
			Help: "Number of IMAP connections currently in the IDLE state.",
		}),
		watcherEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailstackd_watcher_events_total",
			Help: "Total number of maildir filesystem watcher events observed.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.connectionsTotal,
		c.connectionsActive,
		c.tlsConnectionTotal,
		c.authAttemptsTotal,
		c.commandsTotal,
		c.messagesRetrievedTotal,
		c.messagesStoredTotal,
		c.messagesDeletedTotal,
		c.messagesListedTotal,
		c.messagesSizeBytes,
		c.idleSessionsActive,
		c.watcherEventsTotal,
	)

	return c
}

func (c *PrometheusCollector) ConnectionOpened(protocol string) {
	c.connectionsTotal.WithLabelValues(protocol).Inc()
	c.connectionsActive.WithLabelValues(protocol).Inc()
}

func (c *PrometheusCollector) ConnectionClosed(protocol string) {
	c.connectionsActive.WithLabelValues(protocol).Dec()
}

func (c *PrometheusCollector) TLSConnectionEstablished(protocol string) {
	c.tlsConnectionTotal.WithLabelValues(protocol).Inc()
}

func (c *PrometheusCollector) AuthAttempt(protocol, authDomain string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.authAttemptsTotal.WithLabelValues(protocol, authDomain, result).Inc()
}

func (c *PrometheusCollector) CommandProcessed(protocol, command string) {
	c.commandsTotal.WithLabelValues(protocol, command).Inc()
}

func (c *PrometheusCollector) MessageRetrieved(protocol, userDomain string, sizeBytes int64) {
	c.messagesRetrievedTotal.WithLabelValues(protocol, userDomain).Inc()
	c.messagesSizeBytes.WithLabelValues(protocol).Observe(float64(sizeBytes))
}

func (c *PrometheusCollector) MessageStored(protocol, userDomain string, sizeBytes int64) {
	c.messagesStoredTotal.WithLabelValues(protocol, userDomain).Inc()
	c.messagesSizeBytes.WithLabelValues(protocol).Observe(float64(sizeBytes))
}

func (c *PrometheusCollector) MessageDeleted(protocol, userDomain string) {
	c.messagesDeletedTotal.WithLabelValues(protocol, userDomain).Inc()
}

func (c *PrometheusCollector) MessageListed(protocol, userDomain string) {
	c.messagesListedTotal.WithLabelValues(protocol, userDomain).Inc()
}

func (c *PrometheusCollector) IdleSessionStarted() {
	c.idleSessionsActive.Inc()
}

func (c *PrometheusCollector) IdleSessionEnded() {
	c.idleSessionsActive.Dec()
}

func (c *PrometheusCollector) WatcherEvent(kind string) {
	c.watcherEventsTotal.WithLabelValues(kind).Inc()
}
