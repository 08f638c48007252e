// Prometheus metrics for rxzip
// 协调器的Prometheus指标：订阅路径、发射轮次、终止结果、丢弃错误、rail融合模式
package rxzip

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 终止结果标签
const (
	outcomeComplete = "complete"
	outcomeError    = "error"
	outcomeCancel   = "cancel"
)

// Metrics 持有所有zip指标，nil值的*Metrics可以安全使用
type Metrics struct {
	Subscriptions *prometheus.CounterVec
	RoundsEmitted prometheus.Counter
	Terminations  *prometheus.CounterVec
	DroppedErrors prometheus.Counter
	RailModes     *prometheus.CounterVec
}

// NewMetrics 创建指标并注册到reg，reg为nil时不注册
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Subscriptions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxzip_subscriptions_total",
				Help: "Zip subscriptions by execution path",
			},
			[]string{"path"},
		),
		RoundsEmitted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rxzip_rounds_emitted_total",
				Help: "Combined rounds delivered downstream",
			},
		),
		Terminations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxzip_terminations_total",
				Help: "Zip coordinators reaching a terminal state by outcome",
			},
			[]string{"outcome"},
		),
		DroppedErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rxzip_dropped_errors_total",
				Help: "Errors that arrived after the coordinator terminated",
			},
		),
		RailModes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxzip_rails_total",
				Help: "Rails subscribed by negotiated fusion mode",
			},
			[]string{"mode"},
		),
	}
}

func (m *Metrics) observeSubscription(path ZipPath) {
	if m == nil {
		return
	}
	m.Subscriptions.WithLabelValues(string(path)).Inc()
}

func (m *Metrics) observeRounds(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RoundsEmitted.Add(float64(n))
}

func (m *Metrics) observeTermination(outcome string) {
	if m == nil {
		return
	}
	m.Terminations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeDroppedError() {
	if m == nil {
		return
	}
	m.DroppedErrors.Inc()
}

func (m *Metrics) observeRailMode(mode int) {
	if m == nil {
		return
	}
	m.RailModes.WithLabelValues(FusionModeName(mode)).Inc()
}
