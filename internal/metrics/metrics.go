package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_persisted_total",
		Help: "Messages durably appended to the store.",
	})
	MessagesPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_pushed_total",
		Help: "Live pushes delivered to reachable connections, echoes included.",
	})
	SendRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_send_rejections_total",
		Help: "Inbound message events rejected before fan-out.",
	}, []string{"code"})
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections_active",
		Help: "Currently registered live connections.",
	})
)

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
