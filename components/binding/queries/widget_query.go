package queries

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	binding "github.com/goliatone/go-widgetbind/components/binding"
)

// WidgetInput identifies a widget instance.
type WidgetInput struct {
	WidgetID string `json:"widget_id"`
}

type widgetService interface {
	WidgetData(widgetID string) *binding.Container[binding.WidgetData]
	WidgetStatus(widgetID string) *binding.Container[binding.Status]
}

// WidgetDataQuery reads the latest accumulated value of a widget.
type WidgetDataQuery struct {
	service widgetService
}

// NewWidgetDataQuery builds the query.
func NewWidgetDataQuery(service widgetService) *WidgetDataQuery {
	return &WidgetDataQuery{service: service}
}

var _ gocommand.Querier[WidgetInput, binding.WidgetData] = (*WidgetDataQuery)(nil)

// Query returns the current value of the widget's data container.
func (q *WidgetDataQuery) Query(ctx context.Context, input WidgetInput) (binding.WidgetData, error) {
	if input.WidgetID == "" {
		return binding.EmptyWidgetData(), binding.ErrWidgetIDRequired
	}
	if err := ctx.Err(); err != nil {
		return binding.EmptyWidgetData(), err
	}
	return q.service.WidgetData(input.WidgetID).Get(), nil
}

// WidgetStatusQuery reads the status overlay of a widget.
type WidgetStatusQuery struct {
	service widgetService
}

// NewWidgetStatusQuery builds the query.
func NewWidgetStatusQuery(service widgetService) *WidgetStatusQuery {
	return &WidgetStatusQuery{service: service}
}

var _ gocommand.Querier[WidgetInput, binding.Status] = (*WidgetStatusQuery)(nil)

// Query returns the current value of the widget's status container.
func (q *WidgetStatusQuery) Query(ctx context.Context, input WidgetInput) (binding.Status, error) {
	if input.WidgetID == "" {
		return binding.Status{}, binding.ErrWidgetIDRequired
	}
	if err := ctx.Err(); err != nil {
		return binding.Status{}, err
	}
	return q.service.WidgetStatus(input.WidgetID).Get(), nil
}
