// Package metrics exposes prometheus counters for the realtime core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the coordinator, fan-out and adapters report into.
type Recorder interface {
	VoiceJoined()
	VoiceLeft()
	JoinRejected(kind string)
	PersistenceError(op string)
	PresenceTransition(status string)
	SignalRelayed(kind string)
	SignalDropped(kind string)
	EventDelivered(event string, n int)
	EventDropped(event string, n int)
	RateLimited(op string)

	SetConnections(n int)
	SetOnline(n int)
	SetRooms(n int)
}

type Collector struct {
	joins       prometheus.Counter
	leaves      prometheus.Counter
	rejected    *prometheus.CounterVec
	persistErrs *prometheus.CounterVec
	presence    *prometheus.CounterVec
	signals     *prometheus.CounterVec
	signalDrops *prometheus.CounterVec
	delivered   *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	connections prometheus.Gauge
	online      prometheus.Gauge
	rooms       prometheus.Gauge
}

// NewCollector registers every metric on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parley_voice_joins_total",
			Help: "Accepted voice joins.",
		}),
		leaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parley_voice_leaves_total",
			Help: "Voice leaves, explicit, implicit and on disconnect.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_voice_join_rejected_total",
			Help: "Rejected voice joins by error kind.",
		}, []string{"kind"}),
		persistErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_persistence_errors_total",
			Help: "Swallowed persistence failures by operation.",
		}, []string{"op"}),
		presence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_presence_transitions_total",
			Help: "Online/offline transitions.",
		}, []string{"status"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_signals_relayed_total",
			Help: "Relayed signaling payloads by kind.",
		}, []string{"kind"}),
		signalDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_signals_dropped_total",
			Help: "Signaling payloads dropped because the target was offline.",
		}, []string{"kind"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_events_delivered_total",
			Help: "Event frames queued to connections.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_events_dropped_total",
			Help: "Event frames dropped on full or closed connections.",
		}, []string{"event"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_rate_limited_total",
			Help: "Requests refused by the per-identity limiter.",
		}, []string{"op"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "parley_connections",
			Help: "Registered connections.",
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "parley_online_identities",
			Help: "Identities with at least one connection.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "parley_voice_rooms",
			Help: "Live voice rooms.",
		}),
	}

	reg.MustRegister(
		c.joins,
		c.leaves,
		c.rejected,
		c.persistErrs,
		c.presence,
		c.signals,
		c.signalDrops,
		c.delivered,
		c.dropped,
		c.rateLimited,
		c.connections,
		c.online,
		c.rooms,
	)
	return c
}

func (c *Collector) VoiceJoined() { c.joins.Inc() }
func (c *Collector) VoiceLeft()   { c.leaves.Inc() }

func (c *Collector) JoinRejected(kind string) {
	c.rejected.WithLabelValues(kind).Inc()
}

func (c *Collector) PersistenceError(op string) {
	c.persistErrs.WithLabelValues(op).Inc()
}

func (c *Collector) PresenceTransition(status string) {
	c.presence.WithLabelValues(status).Inc()
}

func (c *Collector) SignalRelayed(kind string) {
	c.signals.WithLabelValues(kind).Inc()
}

func (c *Collector) SignalDropped(kind string) {
	c.signalDrops.WithLabelValues(kind).Inc()
}

func (c *Collector) EventDelivered(event string, n int) {
	c.delivered.WithLabelValues(event).Add(float64(n))
}

func (c *Collector) EventDropped(event string, n int) {
	c.dropped.WithLabelValues(event).Add(float64(n))
}

func (c *Collector) RateLimited(op string) {
	c.rateLimited.WithLabelValues(op).Inc()
}

func (c *Collector) SetConnections(n int) { c.connections.Set(float64(n)) }
func (c *Collector) SetOnline(n int)      { c.online.Set(float64(n)) }
func (c *Collector) SetRooms(n int)       { c.rooms.Set(float64(n)) }

// Handler returns the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Used when metrics are disabled and in tests.
type Nop struct{}

func (Nop) VoiceJoined()               {}
func (Nop) VoiceLeft()                 {}
func (Nop) JoinRejected(string)        {}
func (Nop) PersistenceError(string)    {}
func (Nop) PresenceTransition(string)  {}
func (Nop) SignalRelayed(string)       {}
func (Nop) SignalDropped(string)       {}
func (Nop) EventDelivered(string, int) {}
func (Nop) EventDropped(string, int)   {}
func (Nop) RateLimited(string)         {}
func (Nop) SetConnections(int)         {}
func (Nop) SetOnline(int)              {}
func (Nop) SetRooms(int)               {}
