package models

// VolumeCreateRequest represents a volume create request
type VolumeCreateRequest struct {
	Name   string            `json:"name" validate:"required"`
	Driver string            `json:"driver"`
	Labels map[string]string `json:"labels"`
}

// VolumeSummary is the trimmed engine view of a volume
type VolumeSummary struct {
	Name       string `json:"name"`
	Driver     string `json:"driver"`
	Mountpoint string `json:"mountpoint"`
}
