package state

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	subspaceWriteCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerdb_subspace_writes_total",
		Help: "Subspace values written",
	})
	subspaceDeleteCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerdb_subspace_deletes_total",
		Help: "Subspace values deleted",
	})
	blockCommitCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerdb_block_commits_total",
		Help: "Block records added to a batch",
	})
	rollbackCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerdb_rollbacks_total",
		Help: "Completed single-block rollbacks",
	})
	prunedDiffCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerdb_pruned_diff_rows_total",
		Help: "Non-persisted diff rows scheduled for deletion",
	})
)
