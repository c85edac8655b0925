package models

import (
	"github.com/smazurov/ambilight/internal/ffmpeg"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc123" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"local" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Capture option models
type OptionsData struct {
	Options  []ffmpeg.Option     `json:"options" doc:"Screen capture options"`
	Defaults []ffmpeg.OptionType `json:"defaults" doc:"Options enabled when none are configured"`
}

type OptionsResponse struct {
	Body OptionsData
}

// Service models
type ServiceData struct {
	Unit  string `json:"unit" example:"ambilight.service" doc:"systemd unit the daemon runs as"`
	State string `json:"state" example:"active" doc:"Unit ActiveState"`
}

type ServiceResponse struct {
	Body ServiceData
}

type RestartResponse struct {
	Status int
	Body   struct {
		Message string `json:"message" example:"Restart queued" doc:"Result"`
	}
}
