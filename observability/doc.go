// Package observability provides a ready-made hook extension that
// records reliability lifecycle metrics through a go-utils
// MetricFactory.
package observability
