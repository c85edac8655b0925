package api

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/ambilight/internal/api/models"
	"github.com/smazurov/ambilight/internal/config"
	"github.com/smazurov/ambilight/internal/ledstrip"
	"github.com/smazurov/ambilight/internal/metrics"
	"github.com/smazurov/ambilight/internal/types"
	"github.com/smazurov/ambilight/internal/zonemap"
)

func (s *Server) registerStripRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-strip",
		Method:      http.MethodGet,
		Path:        "/api/strip",
		Summary:     "Strip Status",
		Description: "Current mode, manual color, geometry and link state",
		Tags:        []string{"strip"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.StripStatusResponse, error) {
		return s.stripStatus()
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-mode",
		Method:      http.MethodPut,
		Path:        "/api/strip/mode",
		Summary:     "Set Mode",
		Description: "Switch between off, manual, audio and monitor",
		Tags:        []string{"strip"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 503},
	}, func(ctx context.Context, input *models.ModeRequest) (*models.StripStatusResponse, error) {
		mode, err := models.ParseMode(input.Body.Mode)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("Invalid mode", err)
		}
		if err := s.options.Strip.SetMode(mode); err != nil {
			return nil, stripError("Failed to set mode", err)
		}
		if err := s.persist(func(st *config.StripSettings) { st.Mode = mode }); err != nil {
			return nil, err
		}
		return s.stripStatus()
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-manual",
		Method:      http.MethodPut,
		Path:        "/api/strip/manual",
		Summary:     "Set Manual Color",
		Description: "Change the color and brightness shown in manual mode. Omitted fields are left unchanged.",
		Tags:        []string{"strip"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 503},
	}, func(ctx context.Context, input *models.ManualRequest) (*models.StripStatusResponse, error) {
		var color *types.Color
		if input.Body.Color != nil {
			c, err := types.ParseColor(*input.Body.Color)
			if err != nil {
				return nil, huma.Error422UnprocessableEntity("Invalid color", err)
			}
			color = &c
		}

		// Each field is saved once applied, so a later failure leaves the
		// file matching the strip.
		if color != nil {
			if err := s.options.Strip.SetManualColor(*color); err != nil {
				return nil, stripError("Failed to set color", err)
			}
			if err := s.persist(func(st *config.StripSettings) { st.Color = *color }); err != nil {
				return nil, err
			}
		}
		if input.Body.Brightness != nil {
			level := uint8(*input.Body.Brightness)
			if err := s.options.Strip.SetManualBrightness(level); err != nil {
				return nil, stripError("Failed to set brightness", err)
			}
			if err := s.persist(func(st *config.StripSettings) { st.Brightness = level }); err != nil {
				return nil, err
			}
		}
		return s.stripStatus()
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-geometry",
		Method:      http.MethodPut,
		Path:        "/api/strip/geometry",
		Summary:     "Set Geometry",
		Description: "Change the screen size, zone counts or corner. Horizontal and vertical zone counts must each be even and at least 2, with at most 252 zones in total.",
		Tags:        []string{"strip"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 503},
	}, func(ctx context.Context, input *models.GeometryRequest) (*models.GeometryResponse, error) {
		g, err := input.Body.ToDomain()
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("Invalid corner", err)
		}
		if err := s.options.Strip.SetGeometry(g); err != nil {
			return nil, stripError("Failed to set geometry", err)
		}
		if err := s.persist(func(st *config.StripSettings) { st.Geometry = g }); err != nil {
			return nil, err
		}
		return &models.GeometryResponse{Body: models.GeometryFromDomain(g)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-device",
		Method:      http.MethodPut,
		Path:        "/api/strip/device",
		Summary:     "Set Serial Device",
		Description: "Select the serial port the strip controller is attached to",
		Tags:        []string{"strip"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, input *models.DeviceRequest) (*models.StripStatusResponse, error) {
		if err := s.options.Strip.SetDevice(input.Body.Device); err != nil {
			return nil, stripError("Failed to set device", err)
		}
		if err := s.persist(func(st *config.StripSettings) { st.Device = input.Body.Device }); err != nil {
			return nil, err
		}
		return s.stripStatus()
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "pause-strip",
		Method:      http.MethodPost,
		Path:        "/api/strip/pause",
		Summary:     "Pause",
		Description: "Black out the strip, release the serial port and stop rendering",
		Tags:        []string{"strip"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.StripStatusResponse, error) {
		if err := s.options.Strip.Pause(); err != nil {
			return nil, stripError("Failed to pause", err)
		}
		return s.stripStatus()
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "resume-strip",
		Method:      http.MethodPost,
		Path:        "/api/strip/resume",
		Summary:     "Resume",
		Description: "Reconnect the serial port and restart rendering",
		Tags:        []string{"strip"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.StripStatusResponse, error) {
		if err := s.options.Strip.Resume(); err != nil {
			return nil, stripError("Failed to resume", err)
		}
		return s.stripStatus()
	})
}

func (s *Server) stripStatus() (*models.StripStatusResponse, error) {
	st, err := s.options.Strip.Status()
	if err != nil {
		return nil, stripError("Failed to read strip status", err)
	}
	snap := metrics.Current()
	helpers := make([]models.HelperData, 0, 2)
	for id, h := range metrics.GetAllHelperMetrics() {
		helpers = append(helpers, models.HelperData{ID: id, State: h.State, Crashes: h.Crashes, LastError: h.LastError})
	}
	slices.SortFunc(helpers, func(a, b models.HelperData) int { return strings.Compare(a.ID, b.ID) })
	return &models.StripStatusResponse{
		Body: models.StripStatusData{
			Mode:            models.ModeName(st.Mode.String()),
			Color:           st.Color.String(),
			Brightness:      st.Brightness,
			Device:          st.Device,
			Connected:       st.Connected,
			Running:         st.Running,
			Paused:          st.Paused,
			RetryPending:    st.RetryPending,
			Zones:           st.Zones,
			Geometry:        models.GeometryFromDomain(st.Geometry),
			FramesSent:      snap.FramesSent,
			Faults:          snap.Faults,
			CaptureTimeouts: snap.CaptureTimeouts,
			Helpers:         helpers,
		},
	}, nil
}

// persist writes an applied change back to the settings file.
func (s *Server) persist(fn func(*config.StripSettings)) error {
	if s.options.Settings == nil {
		return nil
	}
	if _, err := s.options.Settings.Update(fn); err != nil {
		s.logger.Error("Failed to save strip settings", "error", err)
		return huma.Error500InternalServerError("Change applied but not saved", err)
	}
	return nil
}

// stripError maps controller errors onto HTTP errors.
func stripError(msg string, err error) error {
	switch {
	case errors.Is(err, zonemap.ErrInvalidGeometry), errors.Is(err, ledstrip.ErrInvalidMode):
		return huma.Error422UnprocessableEntity(msg, err)
	case errors.Is(err, ledstrip.ErrOwnerStopped), errors.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
