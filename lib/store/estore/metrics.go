package estore

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lbrandt/cedar/lib/wal"
)

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

// Counters are process-wide: multiple stores in one process share them,
// which matches how the metrics are scraped (per process, not per store).
var (
	metricGetOps           = metrics.GetOrCreateCounter(`cedar_ops_total{op="get"}`)
	metricWALAppendedBytes = metrics.GetOrCreateCounter(`cedar_wal_appended_bytes_total`)
	metricCompactions      = metrics.GetOrCreateCounter(`cedar_compactions_total`)
	metricRecoveredRecords = metrics.GetOrCreateCounter(`cedar_recovery_replayed_records_total`)
)

// opCounter returns the mutation counter for op.
func opCounter(op wal.Op) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`cedar_ops_total{op=%q}`, op.String()))
}
