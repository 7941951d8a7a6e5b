package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/summitroofing/beacon/internal/domain"
)

type GetFunnelInput struct {
	Name string `path:"name" maxLength:"128" doc:"Funnel name, e.g. quote_request"`
}

// FunnelOverview is the per-step session reach of one funnel. Steps are
// ordered; drop-off between consecutive steps is the dashboard's math.
type FunnelOverview struct {
	FunnelName string                    `json:"funnelName"`
	Steps      []*domain.FunnelStepCount `json:"steps"`
}

type GetFunnelOutput struct {
	Body *FunnelOverview
}

func RegisterFunnelRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "get-funnel",
		Method:      http.MethodGet,
		Path:        "/funnels/{name}",
		Summary:     "Get per-step session counts for one conversion funnel",
		Tags:        []string{"Funnels"},
	}, func(ctx context.Context, input *GetFunnelInput) (*GetFunnelOutput, error) {
		steps, err := store.Funnels().Overview(ctx, input.Name)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load funnel overview", err)
		}

		if len(steps) == 0 {
			return nil, huma.Error404NotFound("funnel not found")
		}

		return &GetFunnelOutput{Body: &FunnelOverview{
			FunnelName: input.Name,
			Steps:      steps,
		}}, nil
	})
}
