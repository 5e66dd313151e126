package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	binding "github.com/goliatone/go-widgetbind/components/binding"
)

type bindService interface {
	Bind(widget binding.WidgetInstance) error
}

// BindWidgetInput starts a binding for a widget instance.
type BindWidgetInput struct {
	Widget binding.WidgetInstance `json:"widget"`
}

// BindWidgetCommand wraps Supervisor.Bind so transports can start bindings
// without linking directly against the supervisor.
type BindWidgetCommand struct {
	service   bindService
	telemetry Telemetry
}

// NewBindWidgetCommand creates a command instance.
func NewBindWidgetCommand(service bindService, telemetry Telemetry) *BindWidgetCommand {
	return &BindWidgetCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[BindWidgetInput] = (*BindWidgetCommand)(nil)

// Execute delegates to the supervisor.
func (c *BindWidgetCommand) Execute(ctx context.Context, msg BindWidgetInput) error {
	if c.service == nil {
		return errors.New("bind command requires supervisor")
	}
	if err := c.service.Bind(msg.Widget); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "binding.command.bind", map[string]any{
		"widget_id": msg.Widget.ID,
		"type_id":   msg.Widget.TypeID,
	})
	return nil
}

type unbindService interface {
	Unbind(widgetID string)
}

// UnbindWidgetInput stops the binding of a widget.
type UnbindWidgetInput struct {
	WidgetID string `json:"widget_id"`
}

// UnbindWidgetCommand cancels a widget task and drops its state.
type UnbindWidgetCommand struct {
	service   unbindService
	telemetry Telemetry
}

// NewUnbindWidgetCommand creates the command.
func NewUnbindWidgetCommand(service unbindService, telemetry Telemetry) *UnbindWidgetCommand {
	return &UnbindWidgetCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[UnbindWidgetInput] = (*UnbindWidgetCommand)(nil)

// Execute delegates to the supervisor.
func (c *UnbindWidgetCommand) Execute(ctx context.Context, msg UnbindWidgetInput) error {
	if c.service == nil {
		return errors.New("unbind command requires supervisor")
	}
	if msg.WidgetID == "" {
		return binding.ErrWidgetIDRequired
	}
	c.service.Unbind(msg.WidgetID)
	c.telemetry.Record(ctx, "binding.command.unbind", map[string]any{
		"widget_id": msg.WidgetID,
	})
	return nil
}
