// Package prometheus provides Prometheus collectors for goAccount metrics.
//
// [NewPrometheusExporter] accepts a [goAccount.Engine] and exposes an
// [http.Handler] that renders all goAccount counters in Prometheus text
// exposition format. Counter names are prefixed goaccount_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate engine state.
package prometheus
