package model

// StageCounts records how many rows survived each stage of a year's run.
type StageCounts struct {
	Fetched      int `json:"fetched"`
	Normalized   int `json:"normalized"`
	Deduplicated int `json:"deduplicated"`
	Enriched     int `json:"enriched"`
	Filtered     int `json:"filtered"`
}
