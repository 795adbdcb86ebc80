package collectors

import (
	"math"

	"github.com/faultlinehq/faultline-engine/internal/repo"
)

// metricAnomaly is an anomalous sample within a single metric series.
type metricAnomaly struct {
	Metric string
	Value  float64
	Score  float64
}

// detectMetricAnomalies runs a z-score pass per metric name across the
// series. threshold <= 0 selects the default of 2.5 standard deviations.
func detectMetricAnomalies(points []repo.MetricPoint, threshold float64) []metricAnomaly {
	if len(points) == 0 {
		return nil
	}
	if threshold <= 0 {
		threshold = 2.5
	}

	byMetric := make(map[string][]repo.MetricPoint)
	order := make([]string, 0, 4)
	for _, p := range points {
		if _, ok := byMetric[p.Metric]; !ok {
			order = append(order, p.Metric)
		}
		byMetric[p.Metric] = append(byMetric[p.Metric], p)
	}

	var anomalies []metricAnomaly
	for _, name := range order {
		series := byMetric[name]
		if len(series) < 3 {
			continue
		}

		mean := 0.0
		for _, p := range series {
			mean += p.Value
		}
		mean /= float64(len(series))

		variance := 0.0
		for _, p := range series {
			variance += math.Pow(p.Value-mean, 2)
		}
		variance /= float64(len(series))
		stdDev := math.Sqrt(variance)
		if stdDev == 0 {
			stdDev = 0.01
		}

		for _, p := range series {
			score := (p.Value - mean) / stdDev
			if score >= threshold {
				anomalies = append(anomalies, metricAnomaly{Metric: name, Value: p.Value, Score: score})
			}
		}
	}
	return anomalies
}
