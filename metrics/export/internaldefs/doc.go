// Package internaldefs holds the shared metric name and help-text
// definitions used by the exporter packages. It exists so the
// Prometheus and OTel exporters render identical metric families.
package internaldefs
