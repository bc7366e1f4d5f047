package relayergame

import (
	"slices"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const MetricsSubsystem = "relayer_game"

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of games opened.
	GamesOpened metrics.Counter
	// Number of affirmations admitted, labelled by kind (open, dispute, extend).
	Affirmations metrics.Counter
	// Number of settlements, labelled by outcome.
	Settlements metrics.Counter
	// Total amount slashed from relayers.
	Slashed metrics.Counter
	// Total amount minted as rewards.
	Rewarded metrics.Counter
	// Games currently open.
	OpenGames metrics.Gauge
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		GamesOpened: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "games_opened",
			Help:      "Number of games opened.",
		}, labels).With(labelsAndValues...),
		Affirmations: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "affirmations",
			Help:      "Number of affirmations admitted.",
		}, append(slices.Clone(labels), "kind")).With(labelsAndValues...),
		Settlements: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "settlements",
			Help:      "Number of due games processed, by outcome.",
		}, append(slices.Clone(labels), "outcome")).With(labelsAndValues...),
		Slashed: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "slashed",
			Help:      "Total amount slashed from relayers.",
		}, labels).With(labelsAndValues...),
		Rewarded: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "rewarded",
			Help:      "Total amount minted as relayer rewards.",
		}, labels).With(labelsAndValues...),
		OpenGames: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "open_games",
			Help:      "Number of open games.",
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		GamesOpened:  discard.NewCounter(),
		Affirmations: discard.NewCounter(),
		Settlements:  discard.NewCounter(),
		Slashed:      discard.NewCounter(),
		Rewarded:     discard.NewCounter(),
		OpenGames:    discard.NewGauge(),
	}
}
