package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/v4l2forward/internal/api/models"
)

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List V4L2 capture and output devices",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.DevicesResponse, error) {
		found, err := s.options.Detector.FindDevices()
		if err != nil {
			s.logger.Error("Failed to enumerate devices", "error", err)
			return nil, huma.Error500InternalServerError("Failed to enumerate devices", err)
		}

		resp := &models.DevicesResponse{}
		resp.Body.Devices = make([]models.DeviceData, 0, len(found))
		for _, d := range found {
			roles := make([]string, 0, 2)
			for _, r := range d.Roles() {
				roles = append(roles, string(r))
			}
			resp.Body.Devices = append(resp.Body.Devices, models.DeviceData{
				DevicePath: d.DevicePath,
				DeviceName: d.DeviceName,
				DeviceID:   d.DeviceID,
				Caps:       d.Caps,
				Roles:      roles,
			})
		}
		resp.Body.Count = len(resp.Body.Devices)
		return resp, nil
	})
}
