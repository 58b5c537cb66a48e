// Package influxdb writes reconciliation statistics to InfluxDB 2.x.
//
// Every slot reconciliation produces one reconcile_stats point tagged with
// the view ID, carrying slot and option create/update/delete counts and
// the elapsed time. The Client satisfies signage.MetricsWriter.
//
// InfluxDB is optional. With influxdb.enabled false, Connect returns
// ErrDisabled and the service runs without metrics.
package influxdb
