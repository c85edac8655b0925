package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/ambilight/internal/api/models"
)

func (s *Server) registerPortRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-ports",
		Method:      http.MethodGet,
		Path:        "/api/ports",
		Summary:     "List Serial Ports",
		Description: "List the serial ports present on the host",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, _ *struct{}) (*models.PortListResponse, error) {
		if s.options.Ports == nil {
			return &models.PortListResponse{Body: models.PortListData{Ports: []models.PortData{}}}, nil
		}

		found, err := s.options.Ports.FindDevices()
		if err != nil {
			s.logger.Error("Failed to enumerate serial ports", "error", err)
			return nil, huma.Error500InternalServerError("Failed to enumerate serial ports", err)
		}

		ports := make([]models.PortData, 0, len(found))
		for _, d := range found {
			ports = append(ports, models.PortData{
				Path:         d.Path,
				Product:      d.Product,
				USB:          d.USB,
				VID:          d.VID,
				PID:          d.PID,
				SerialNumber: d.SerialNumber,
			})
		}
		return &models.PortListResponse{
			Body: models.PortListData{Ports: ports, Count: len(ports)},
		}, nil
	})
}
