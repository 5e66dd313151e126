package queries

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	binding "github.com/goliatone/go-widgetbind/components/binding"
)

// ActiveBindingsInput requests the widgets with a running task.
type ActiveBindingsInput struct{}

type activeService interface {
	ActiveBindings() []string
}

// ActiveBindingsQuery lists widget ids whose task is running.
type ActiveBindingsQuery struct {
	service activeService
}

// NewActiveBindingsQuery builds the query.
func NewActiveBindingsQuery(service activeService) *ActiveBindingsQuery {
	return &ActiveBindingsQuery{service: service}
}

var _ gocommand.Querier[ActiveBindingsInput, []string] = (*ActiveBindingsQuery)(nil)

// Query returns the sorted ids of active bindings.
func (q *ActiveBindingsQuery) Query(ctx context.Context, _ ActiveBindingsInput) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return q.service.ActiveBindings(), nil
}

// OverviewInput requests the diagnostic overview.
type OverviewInput struct{}

type overviewService interface {
	Overview(ctx context.Context) (binding.Overview, error)
}

// OverviewQuery summarizes every bound widget.
type OverviewQuery struct {
	service overviewService
}

// NewOverviewQuery builds the query.
func NewOverviewQuery(service overviewService) *OverviewQuery {
	return &OverviewQuery{service: service}
}

var _ gocommand.Querier[OverviewInput, binding.Overview] = (*OverviewQuery)(nil)

// Query resolves the overview.
func (q *OverviewQuery) Query(ctx context.Context, _ OverviewInput) (binding.Overview, error) {
	return q.service.Overview(ctx)
}
