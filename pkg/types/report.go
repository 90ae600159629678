package types

// Report mirrors the visualization template: task, data, model.
type Report struct {
	RunID string    `json:"run_id,omitempty"`
	Task  Task      `json:"task"`
	Data  DataInfo  `json:"data"`
	Model ModelInfo `json:"model"`
}

type DataInfo struct {
	Name        string             `json:"name"`
	Language    string             `json:"language"`
	Bias        map[string]float64 `json:"bias"`
	Output      string             `json:"output"`
	InputDigest string             `json:"input_digest,omitempty"`
	Examples    int                `json:"examples"`
	Skipped     int                `json:"skipped_lines"`
}

type ModelInfo struct {
	Name    string  `json:"name"`
	Results Results `json:"results"`
}

type Results struct {
	Overall      Overall           `json:"overall"`
	FineGrained  FineGrained       `json:"fine_grained"`
	Calibration  *Calibration      `json:"calibration"`
	FailedAspect map[string]string `json:"failed_aspects,omitempty"`
}

type Overall struct {
	Performance   string   `json:"performance"`
	ConfidenceLow string   `json:"confidence_low"`
	ConfidenceUp  string   `json:"confidence_up"`
	ErrorCase     []string `json:"error_case"`
}

type BucketEntry struct {
	BucketName      string   `json:"bucket_name"`
	BucketValue     string   `json:"bucket_value"`
	Num             int      `json:"num"`
	ConfidenceLow   string   `json:"confidence_low"`
	ConfidenceUp    string   `json:"confidence_up"`
	BucketErrorCase []string `json:"bucket_error_case"`
}

type Calibration struct {
	ECE     float64    `json:"ECE"`
	Details []CalibBin `json:"details"`
}

type CalibBin struct {
	Interval        string  `json:"interval"`
	AverageAccuracy float64 `json:"average_accuracy"`
	AverageConf     float64 `json:"average_confidence"`
	Samples         int     `json:"samples_number_in_this_bin"`
}
