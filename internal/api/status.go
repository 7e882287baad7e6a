package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/v4l2forward/internal/api/models"
	"github.com/smazurov/v4l2forward/internal/forward"
)

func (s *Server) registerStatusRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Run Status",
		Description: "State, counters and negotiated format of the forwarding run",
		Tags:        []string{"forward"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StatusResponse, error) {
		st := forward.Status{State: forward.StateIdle}
		if s.options.Status != nil {
			st = s.options.Status.Status()
		}
		return &models.StatusResponse{Body: statusData(st)}, nil
	})
}

func statusData(st forward.Status) models.StatusData {
	data := models.StatusData{
		State:    string(st.State),
		Source:   st.Source,
		Sink:     st.Sink,
		Frames:   st.Frames,
		Bytes:    st.Bytes,
		LastMBps: st.LastMBps,
		MeanMBps: st.MeanMBps,
	}
	if st.Format != (forward.Format{}) {
		data.Format = &models.FormatData{
			Width:        st.Format.Width,
			Height:       st.Format.Height,
			FourCC:       forward.FourCCString(st.Format.FourCC),
			BytesPerLine: st.Format.BytesPerLine,
			SizeImage:    st.Format.SizeImage,
		}
	}
	if st.Err != nil {
		data.Error = st.Err.Error()
	}
	return data
}
