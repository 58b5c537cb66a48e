package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementReconcile holds one point per slot reconciliation.
const MeasurementReconcile = "reconcile_stats"

// WriteReconcileMetric records the outcome of one slot reconciliation:
// the created/updated/deleted counts as integer fields, the elapsed time
// in milliseconds, and the view as a tag.
func (c *Client) WriteReconcileMetric(viewID string, counts map[string]int, elapsed time.Duration) {
	c.writePoint(reconcilePoint(viewID, counts, elapsed, time.Now()))
}

// WritePoint writes an arbitrary point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.writePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(p)
}

func reconcilePoint(viewID string, counts map[string]int, elapsed time.Duration, at time.Time) *write.Point {
	fields := make(map[string]any, len(counts)+1)
	for name, n := range counts {
		fields[name] = int64(n)
	}
	fields["elapsed_ms"] = float64(elapsed.Microseconds()) / 1000

	return write.NewPoint(MeasurementReconcile,
		map[string]string{"view_id": viewID},
		fields,
		at,
	)
}
