package models

// Log models
type LogEntryData struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Sequence number"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"ledstrip" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

type LogListResponse struct {
	Body struct {
		Entries []LogEntryData `json:"entries" doc:"Buffered log entries, oldest first"`
	}
}

type LogLevelsResponse struct {
	Body struct {
		Levels map[string]string `json:"levels" doc:"Log level per module"`
	}
}

type LogLevelRequest struct {
	Module string `path:"module" example:"ledstrip" doc:"Module name"`
	Body   struct {
		Level string `json:"level" enum:"debug,info,warn,error" example:"debug" doc:"New level"`
	}
}
