package models

// Serial port models
type PortData struct {
	Path         string `json:"path" example:"/dev/ttyUSB0" doc:"Device node"`
	Product      string `json:"product,omitempty" example:"CP2102 USB to UART Bridge" doc:"USB product string"`
	USB          bool   `json:"usb" example:"true" doc:"Whether the port is a USB device"`
	VID          string `json:"vid,omitempty" example:"10c4" doc:"USB vendor id"`
	PID          string `json:"pid,omitempty" example:"ea60" doc:"USB product id"`
	SerialNumber string `json:"serial_number,omitempty" example:"0001" doc:"USB serial number"`
}

type PortListData struct {
	Ports []PortData `json:"ports" doc:"Serial ports present on the host"`
	Count int        `json:"count" example:"1" doc:"Number of ports"`
}

type PortListResponse struct {
	Body PortListData
}
