package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/summitroofing/beacon/internal/domain"
)

type ListSessionsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max sessions to return"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Pagination offset"`
}

type ListSessionsOutput struct {
	Body []*domain.Session
}

type GetSessionInput struct {
	ID string `path:"id" maxLength:"128" doc:"Session ID"`
}

// SessionDetail is a session row plus its per-type event counts, the shape
// the dashboard's session drill-down renders.
type SessionDetail struct {
	Session     *domain.Session            `json:"session"`
	EventCounts map[domain.EventType]int64 `json:"eventCounts"`
	FunnelSteps []*domain.FunnelStep       `json:"funnelSteps"`
}

type GetSessionOutput struct {
	Body *SessionDetail
}

type ListSessionEventsInput struct {
	ID     string `path:"id" maxLength:"128" doc:"Session ID"`
	Limit  int    `query:"limit" minimum:"1" maximum:"1000" default:"200" doc:"Max events to return"`
	Offset int    `query:"offset" minimum:"0" default:"0" doc:"Pagination offset"`
}

type ListSessionEventsOutput struct {
	Body []*domain.Event
}

func RegisterSessionRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/sessions",
		Summary:     "List recent visitor sessions",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *ListSessionsInput) (*ListSessionsOutput, error) {
		sessions, err := store.Sessions().ListRecent(ctx, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list sessions", err)
		}

		return &ListSessionsOutput{Body: sessions}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/sessions/{id}",
		Summary:     "Get one session with its event counts and funnel progress",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *GetSessionInput) (*GetSessionOutput, error) {
		session, err := store.Sessions().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("session not found")
			}
			return nil, huma.Error500InternalServerError("failed to load session", err)
		}

		counts, err := store.Events().CountByType(ctx, input.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to count events", err)
		}

		steps, err := store.Funnels().ListBySession(ctx, input.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load funnel steps", err)
		}

		return &GetSessionOutput{Body: &SessionDetail{
			Session:     session,
			EventCounts: counts,
			FunnelSteps: steps,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-session-events",
		Method:      http.MethodGet,
		Path:        "/sessions/{id}/events",
		Summary:     "List events for one session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *ListSessionEventsInput) (*ListSessionEventsOutput, error) {
		events, err := store.Events().ListBySession(ctx, input.ID, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list events", err)
		}

		return &ListSessionEventsOutput{Body: events}, nil
	})
}
