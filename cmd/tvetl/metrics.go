package main

import (
	"fmt"

	"tvetl/internal/metrics"
	"tvetl/internal/metrics/datadog"
	"tvetl/internal/metrics/prompush"
)

const (
	defaultPushGatewayURL = "http://localhost:9091"
	defaultDogStatsDAddr  = "127.0.0.1:8125"
)

// newMetricsBackend builds the named backend. "" and "none" return a nil
// backend so the package default (no-op) stays installed.
func newMetricsBackend(name, job, pushGatewayURL, ddAddr string) (metrics.Backend, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "pushgateway":
		return prompush.NewBackend(job, pick(pushGatewayURL, defaultPushGatewayURL))
	case "datadog":
		return datadog.NewBackend(datadog.Config{
			Addr:       pick(ddAddr, defaultDogStatsDAddr),
			Namespace:  "tvetl.",
			GlobalTags: []string{"job:" + job},
		})
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}
