package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the gateway and the coordinators report to.
type Recorder interface {
	ConnectionOpened()
	ConnectionClosed()
	AuthRejected(reason string)
	SessionsActive(n int)
	RoomsActive(n int)
	RoomOp(op, result string)
	GameFinished(outcome string)
	MessageDropped()
}

// Nop discards everything.
type Nop struct{}

func (Nop) ConnectionOpened()     {}
func (Nop) ConnectionClosed()     {}
func (Nop) AuthRejected(string)   {}
func (Nop) SessionsActive(int)    {}
func (Nop) RoomsActive(int)       {}
func (Nop) RoomOp(string, string) {}
func (Nop) GameFinished(string)   {}
func (Nop) MessageDropped()       {}

type Collector struct {
	connections    prometheus.Gauge
	authRejections *prometheus.CounterVec
	sessions       prometheus.Gauge
	rooms          prometheus.Gauge
	roomOps        *prometheus.CounterVec
	gamesFinished  *prometheus.CounterVec
	dropped        prometheus.Counter
}

// NewCollector registers the lobby metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lobby_connections_active",
			Help: "Open authenticated WebSocket connections.",
		}),
		authRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lobby_auth_rejections_total",
			Help: "Rejected connection handshakes by reason.",
		}, []string{"reason"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lobby_sessions_active",
			Help: "Users with at least one open connection.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lobby_rooms_active",
			Help: "Rooms currently held in memory.",
		}),
		roomOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lobby_room_ops_total",
			Help: "Room operations by name and result.",
		}, []string{"op", "result"}),
		gamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lobby_games_finished_total",
			Help: "Finished games by outcome (win or draw).",
		}, []string{"outcome"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lobby_messages_dropped_total",
			Help: "Outbound messages dropped because a client queue was full.",
		}),
	}

	reg.MustRegister(
		c.connections,
		c.authRejections,
		c.sessions,
		c.rooms,
		c.roomOps,
		c.gamesFinished,
		c.dropped,
	)
	return c
}

func (c *Collector) ConnectionOpened() { c.connections.Inc() }
func (c *Collector) ConnectionClosed() { c.connections.Dec() }

func (c *Collector) AuthRejected(reason string) {
	c.authRejections.WithLabelValues(reason).Inc()
}

func (c *Collector) SessionsActive(n int) { c.sessions.Set(float64(n)) }
func (c *Collector) RoomsActive(n int)    { c.rooms.Set(float64(n)) }

func (c *Collector) RoomOp(op, result string) {
	c.roomOps.WithLabelValues(op, result).Inc()
}

func (c *Collector) GameFinished(outcome string) {
	c.gamesFinished.WithLabelValues(outcome).Inc()
}

func (c *Collector) MessageDropped() { c.dropped.Inc() }

// Handler serves the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
