// Package metrics defines the Prometheus collectors for peer links and the conference.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voicemesh"

// Drop reasons for outbound frames.
const (
	DropEncode    = "encode"
	DropTransport = "transport"
)

// Metrics holds every collector, labelled by peer id where it applies.
type Metrics struct {
	PacketsReceived  *prometheus.CounterVec
	PacketsLost      *prometheus.CounterVec
	PacketsDuplicate *prometheus.CounterVec
	PacketsMalformed *prometheus.CounterVec
	FramesSent       *prometheus.CounterVec
	FramesDropped    *prometheus.CounterVec
	Resyncs          *prometheus.CounterVec
	EmptyReads       *prometheus.CounterVec
	StateTransitions *prometheus.CounterVec
	BufferedSamples  *prometheus.GaugeVec
	RoundTripSeconds *prometheus.GaugeVec
	LinksActive      prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	peer := []string{"peer"}

	return &Metrics{
		PacketsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "peer", Name: "packets_received_total",
			Help: "Datagrams accepted from a peer.",
		}, peer),
		PacketsLost: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "peer", Name: "packets_lost_total",
			Help: "Sequence numbers skipped by a peer.",
		}, peer),
		PacketsDuplicate: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "peer", Name: "packets_duplicate_total",
			Help: "Datagrams that arrived out of order or repeated.",
		}, peer),
		PacketsMalformed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "peer", Name: "packets_malformed_total",
			Help: "Datagrams dropped by the framing layer.",
		}, peer),
		FramesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "peer", Name: "frames_sent_total",
			Help: "Audio frames handed to the transport.",
		}, peer),
		FramesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "peer", Name: "frames_dropped_total",
			Help: "Outbound audio frames that were not sent.",
		}, []string{"peer", "reason"}),
		Resyncs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "peer", Name: "resyncs_total",
			Help: "Clock realignments after playback starvation.",
		}, peer),
		EmptyReads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "peer", Name: "empty_reads_total",
			Help: "Playback reads that found no buffered samples.",
		}, peer),
		StateTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "peer", Name: "state_transitions_total",
			Help: "Link state machine transitions by destination state.",
		}, []string{"state"}),
		BufferedSamples: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "peer", Name: "buffered_samples",
			Help: "Samples per channel held in the jitter buffer.",
		}, peer),
		RoundTripSeconds: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "peer", Name: "round_trip_seconds",
			Help: "Last measured ping round trip.",
		}, peer),
		LinksActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "conference", Name: "links",
			Help: "Peer links in the conference table.",
		}),
	}
}

// Peer holds the collectors of one peer with labels already resolved, so the
// audio path never does a label lookup.
type Peer struct {
	PacketsReceived  prometheus.Counter
	PacketsLost      prometheus.Counter
	PacketsDuplicate prometheus.Counter
	PacketsMalformed prometheus.Counter
	FramesSent       prometheus.Counter
	DroppedEncode    prometheus.Counter
	DroppedTransport prometheus.Counter
	Resyncs          prometheus.Counter
	EmptyReads       prometheus.Counter
	BufferedSamples  prometheus.Gauge
	RoundTripSeconds prometheus.Gauge

	transitions *prometheus.CounterVec
}

// ForPeer resolves the per-peer children for id.
func (m *Metrics) ForPeer(id string) *Peer {
	return &Peer{
		PacketsReceived:  m.PacketsReceived.WithLabelValues(id),
		PacketsLost:      m.PacketsLost.WithLabelValues(id),
		PacketsDuplicate: m.PacketsDuplicate.WithLabelValues(id),
		PacketsMalformed: m.PacketsMalformed.WithLabelValues(id),
		FramesSent:       m.FramesSent.WithLabelValues(id),
		DroppedEncode:    m.FramesDropped.WithLabelValues(id, DropEncode),
		DroppedTransport: m.FramesDropped.WithLabelValues(id, DropTransport),
		Resyncs:          m.Resyncs.WithLabelValues(id),
		EmptyReads:       m.EmptyReads.WithLabelValues(id),
		BufferedSamples:  m.BufferedSamples.WithLabelValues(id),
		RoundTripSeconds: m.RoundTripSeconds.WithLabelValues(id),
		transitions:      m.StateTransitions,
	}
}

// Transition counts a move into state.
func (p *Peer) Transition(state string) {
	p.transitions.WithLabelValues(state).Inc()
}

// ForgetPeer drops every series labelled with id.
func (m *Metrics) ForgetPeer(id string) {
	labels := prometheus.Labels{"peer": id}
	for _, vec := range []*prometheus.CounterVec{
		m.PacketsReceived, m.PacketsLost, m.PacketsDuplicate, m.PacketsMalformed,
		m.FramesSent, m.FramesDropped, m.Resyncs, m.EmptyReads,
	} {
		vec.DeletePartialMatch(labels)
	}
	m.BufferedSamples.DeletePartialMatch(labels)
	m.RoundTripSeconds.DeletePartialMatch(labels)
}
