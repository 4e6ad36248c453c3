package channel

import "github.com/prometheus/client_golang/prometheus"

var (
	requestsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftlink",
		Subsystem: "channel",
		Name:      "requests_sent_total",
		Help:      "Number of pull/command requests sent, grouped by action.",
	}, []string{"action"})

	requestErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftlink",
		Subsystem: "channel",
		Name:      "request_errors_total",
		Help:      "Number of requests that failed to send, grouped by action.",
	}, []string{"action"})

	requestTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftlink",
		Subsystem: "channel",
		Name:      "request_timeouts_total",
		Help:      "Number of requests whose reply never arrived, grouped by action.",
	}, []string{"action"})

	pushesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftlink",
		Subsystem: "channel",
		Name:      "pushes_sent_total",
		Help:      "Number of snapshot pushes delivered, grouped by action.",
	}, []string{"action"})

	pushesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftlink",
		Subsystem: "channel",
		Name:      "pushes_dropped_total",
		Help:      "Number of snapshot pushes dropped while the peer was unreachable.",
	}, []string{"action"})

	staleReplies = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlink",
		Subsystem: "channel",
		Name:      "stale_replies_total",
		Help:      "Number of replies dropped because their request was no longer pending.",
	})

	decodeDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlink",
		Subsystem: "channel",
		Name:      "decode_drops_total",
		Help:      "Number of messages dropped at the channel boundary as undecodable.",
	})
)

func init() {
	prometheus.MustRegister(requestsSent, requestErrors, requestTimeouts, pushesSent, pushesDropped, staleReplies, decodeDrops)
}
