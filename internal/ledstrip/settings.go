package ledstrip

import (
	"github.com/smazurov/ambilight/internal/types"
	"github.com/smazurov/ambilight/internal/zonemap"
)

// Settings is an immutable snapshot of everything the user can change.
// The owner hands a fresh copy to the render loop after every change.
type Settings struct {
	Mode       types.Mode
	Color      types.Color
	Brightness uint8
	Device     string
	Geometry   zonemap.Geometry
}

// Status is what the controller reports to the API.
type Status struct {
	Mode         types.Mode       `json:"mode"`
	Color        types.Color      `json:"color"`
	Brightness   uint8            `json:"brightness"`
	Device       string           `json:"device"`
	Geometry     zonemap.Geometry `json:"geometry"`
	Zones        int              `json:"zones"`
	Connected    bool             `json:"connected"`
	Running      bool             `json:"running"`
	Paused       bool             `json:"paused"`
	RetryPending bool             `json:"retry_pending"`
	Runs         uint64           `json:"runs"`
}
