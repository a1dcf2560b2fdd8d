package epochs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var (
	log = logrus.WithField("prefix", "epochs")

	nodeCountGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "epoch_changes_node_count",
			Help: "The number of epoch changes tracked across all seen forks.",
		},
	)
	importedCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "epoch_changes_imported_count",
			Help: "The number of epoch changes imported into the tracker.",
		},
	)
	prunedCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "epoch_changes_pruned_count",
			Help: "The number of times finalization pruning discarded epoch changes.",
		},
	)
	queryCacheHit = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "epoch_query_cache_hit",
			Help: "The number of epoch queries answered from the resolved-epoch cache.",
		},
	)
	queryCacheMiss = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "epoch_query_cache_miss",
			Help: "The number of epoch queries that had to walk the fork tree.",
		},
	)
)
