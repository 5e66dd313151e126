package binding

import (
	"context"
	"fmt"
	"io"
	"time"
)

const overviewTemplate = "bindings"

// WidgetView is the diagnostic view of one bound widget.
type WidgetView struct {
	ID         string            `json:"id"`
	TypeID     string            `json:"type_id"`
	State      BindingState      `json:"state"`
	Status     Status            `json:"status"`
	Bindings   map[string]string `json:"bindings,omitempty"`
	Shapes     []DataShape       `json:"shapes"`
	ErrorCount int               `json:"error_count"`
	Active     bool              `json:"active"`
}

// Overview summarizes every binding owned by a supervisor.
type Overview struct {
	Widgets      []WidgetView  `json:"widgets"`
	Active       int           `json:"active"`
	RenderConfig RenderConfig  `json:"render_config"`
	MinInterval  time.Duration `json:"min_interval"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

// Controller renders supervisor diagnostics for HTTP handlers.
type Controller struct {
	supervisor *Supervisor
	renderer   PageRenderer
}

// NewController wires a supervisor and an optional page renderer.
func NewController(supervisor *Supervisor, renderer PageRenderer) *Controller {
	return &Controller{supervisor: supervisor, renderer: renderer}
}

// Overview collects the current state of every bound widget.
func (c *Controller) Overview(ctx context.Context) (Overview, error) {
	if c.supervisor == nil {
		return Overview{}, nil
	}
	if err := ctx.Err(); err != nil {
		return Overview{}, err
	}
	active := toSet(c.supervisor.ActiveBindings())
	out := Overview{
		RenderConfig: c.supervisor.RenderConfig(),
		MinInterval:  c.supervisor.perf.MinInterval(),
		Active:       len(active),
		GeneratedAt:  time.Now().UTC(),
	}
	for _, widget := range c.supervisor.BoundWidgets() {
		_, running := active[widget.ID]
		out.Widgets = append(out.Widgets, WidgetView{
			ID:         widget.ID,
			TypeID:     widget.TypeID,
			State:      c.supervisor.State(widget.ID),
			Status:     c.supervisor.WidgetStatus(widget.ID).Get(),
			Bindings:   widget.DataSourceBindings,
			Shapes:     c.supervisor.WidgetData(widget.ID).Get().Shapes(),
			ErrorCount: c.supervisor.ErrorCount(widget.ID),
			Active:     running,
		})
	}
	return out, nil
}

// RenderPage writes the HTML diagnostics page.
func (c *Controller) RenderPage(ctx context.Context, out io.Writer) error {
	if c.renderer == nil {
		return fmt.Errorf("binding: page renderer not configured")
	}
	overview, err := c.Overview(ctx)
	if err != nil {
		return err
	}
	if _, err := c.renderer.Render(overviewTemplate, overview.templateData(), out); err != nil {
		return fmt.Errorf("binding: render %s: %w", overviewTemplate, err)
	}
	return nil
}

func (o Overview) templateData() map[string]any {
	widgets := make([]map[string]any, 0, len(o.Widgets))
	for _, w := range o.Widgets {
		shapes := make([]string, 0, len(w.Shapes))
		for _, shape := range w.Shapes {
			shapes = append(shapes, string(shape))
		}
		widgets = append(widgets, map[string]any{
			"id":          w.ID,
			"type_id":     w.TypeID,
			"state":       w.State.String(),
			"status":      w.Status.Kind.String(),
			"message":     w.Status.Message,
			"shapes":      shapes,
			"error_count": w.ErrorCount,
		})
	}
	return map[string]any{
		"title": "Widget bindings",
		"overview": map[string]any{
			"widgets":      widgets,
			"active":       o.Active,
			"render_mode":  o.RenderConfig.Mode.String(),
			"min_interval": o.MinInterval.String(),
		},
	}
}
