package statistics

import "time"

type StatHolder interface {
	// record a latency sample for the given endpoint
	Record(statType StatisticsType, endpoint string, d time.Duration)

	Quantile(statType StatisticsType, endpoint string, q float64) float64
	Count(statType StatisticsType, endpoint string) uint64
	Endpoints(statType StatisticsType) []string
}
