package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector tracks notification delivery accounting. Delivery is best-effort
// by design, so counters are the only record of how fan-outs actually went.
type Collector struct {
	reg *prometheus.Registry

	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
	TokensPruned        prometheus.Counter

	LastMinuteChanges *prometheus.CounterVec // kind label: dropped_out|joining|changed_stop
	Broadcasts        prometheus.Counter
	ChatNotifications prometheus.Counter
	ReturnReminders   prometheus.Counter

	FanoutDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "combiapp_notifications_sent_total",
			Help: "Push notifications delivered successfully.",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "combiapp_notifications_failed_total",
			Help: "Push notification deliveries that failed.",
		}),
		TokensPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "combiapp_tokens_pruned_total",
			Help: "Dead push tokens removed from the rider directory.",
		}),
		LastMinuteChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "combiapp_last_minute_changes_total",
			Help: "Schedule edits classified as last-minute, by kind.",
		}, []string{"kind"}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "combiapp_broadcasts_total",
			Help: "Admin broadcasts sent.",
		}),
		ChatNotifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "combiapp_chat_notifications_total",
			Help: "Chat message fan-outs performed.",
		}),
		ReturnReminders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "combiapp_return_reminders_total",
			Help: "Afternoon return reminders sent.",
		}),
		FanoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "combiapp_fanout_duration_seconds",
			Help:    "Duration of one multicast fan-out pass.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.NotificationsSent,
		c.NotificationsFailed,
		c.TokensPruned,
		c.LastMinuteChanges,
		c.Broadcasts,
		c.ChatNotifications,
		c.ReturnReminders,
		c.FanoutDuration,
	)

	return c
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
