package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/ambilight/internal/api/models"
)

// ServiceController queries and restarts the daemon's systemd unit.
type ServiceController interface {
	Unit() string
	Status(ctx context.Context) (string, error)
	Restart(ctx context.Context) error
}

func (s *Server) registerSystemRoutes() {
	if s.options.Service == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-service",
		Method:      http.MethodGet,
		Path:        "/api/system/service",
		Summary:     "Service State",
		Description: "State of the systemd unit the daemon runs as",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 502},
	}, func(ctx context.Context, _ *struct{}) (*models.ServiceResponse, error) {
		state, err := s.options.Service.Status(ctx)
		if err != nil {
			return nil, huma.Error502BadGateway("Failed to query systemd", err)
		}
		return &models.ServiceResponse{
			Body: models.ServiceData{Unit: s.options.Service.Unit(), State: state},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "restart-service",
		Method:        http.MethodPost,
		Path:          "/api/system/restart",
		Summary:       "Restart Service",
		Description:   "Ask systemd to restart the daemon. The strip is blacked out on the way down.",
		Tags:          []string{"system"},
		Security:      withAuth(),
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{401, 502},
	}, func(ctx context.Context, _ *struct{}) (*models.RestartResponse, error) {
		if err := s.options.Service.Restart(ctx); err != nil {
			return nil, huma.Error502BadGateway("Failed to restart service", err)
		}
		resp := &models.RestartResponse{Status: http.StatusAccepted}
		resp.Body.Message = "Restart queued"
		return resp, nil
	})
}
