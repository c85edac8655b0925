package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/ambilight/internal/api/models"
	"github.com/smazurov/ambilight/internal/ffmpeg"
)

func (s *Server) registerOptionsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-capture-options",
		Method:      http.MethodGet,
		Path:        "/api/options",
		Summary:     "Capture Options",
		Description: "ffmpeg input flags the screen grabber and audio tap accept, and which are on by default",
		Tags:        []string{"configuration"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.OptionsResponse, error) {
		return &models.OptionsResponse{
			Body: models.OptionsData{
				Options:  ffmpeg.AllOptions,
				Defaults: ffmpeg.GetDefaultOptions(),
			},
		}, nil
	})
}
