package ports

// Metric names shared by the simulation and the observability adapters.
const (
	MetricReadingsPublished = "bearingsim_readings_published_total"
	MetricPublishFailures   = "bearingsim_publish_failures_total"
	MetricParseErrors       = "bearingsim_parse_errors_total"
	MetricWindowsSubmitted  = "bearingsim_windows_submitted_total"
	MetricAnomalies         = "bearingsim_anomalies_total"
	MetricInferenceFailures = "bearingsim_inference_failures_total"
	MetricWindowOccupancy   = "bearingsim_window_occupancy"
	MetricInferenceLatency  = "bearingsim_inference_latency_seconds"
)
