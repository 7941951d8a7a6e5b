package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/summitroofing/beacon/internal/domain"
)

type ListLogsInput struct {
	MinLevel string `query:"minLevel" enum:"DEBUG,INFO,WARN,ERROR,FATAL" default:"WARN" doc:"Lowest severity to include"`
	Limit    int    `query:"limit" minimum:"1" maximum:"500" default:"100" doc:"Max entries to return"`
	Offset   int    `query:"offset" minimum:"0" default:"0" doc:"Pagination offset"`
}

type ListLogsOutput struct {
	Body []*domain.LogEntry
}

func RegisterLogRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-logs",
		Method:      http.MethodGet,
		Path:        "/logs",
		Summary:     "List recent structured log entries at or above a severity",
		Tags:        []string{"Logs"},
	}, func(ctx context.Context, input *ListLogsInput) (*ListLogsOutput, error) {
		entries, err := store.Logs().ListRecent(ctx, domain.ParseLogLevel(input.MinLevel), input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list logs", err)
		}

		return &ListLogsOutput{Body: entries}, nil
	})
}
