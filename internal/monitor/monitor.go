package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the process counters behind its own registry, so tests
// can build as many instances as they need.
type Metrics struct {
	registry *prometheus.Registry

	OnlinePlayers    prometheus.Gauge
	ActiveGames      prometheus.Gauge
	MessagesReceived prometheus.Counter
	MovesTotal       prometheus.Counter
	GamesFinished    *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of connected players",
		}),
		ActiveGames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_games",
			Help:      "Number of games currently in progress",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of envelopes read from clients",
		}),
		MovesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Total number of accepted moves",
		}),
		GamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Total number of finished games by outcome",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.OnlinePlayers,
		m.ActiveGames,
		m.MessagesReceived,
		m.MovesTotal,
		m.GamesFinished,
	)

	return m
}

// Handler exposes the metrics in prometheus text format.
func (that *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(that.registry, promhttp.HandlerOpts{})
}
