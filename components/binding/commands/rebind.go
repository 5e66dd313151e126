package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	binding "github.com/goliatone/go-widgetbind/components/binding"
)

type rebindService interface {
	Rebind(widgetID, providerID string) error
	RebindSlot(widgetID string, shape binding.DataShape, providerID string) error
}

// RebindWidgetInput overrides the provider of a widget slot. When Shape is
// empty the slot is the data shape served by the provider.
type RebindWidgetInput struct {
	WidgetID   string            `json:"widget_id"`
	Shape      binding.DataShape `json:"shape,omitempty"`
	ProviderID string            `json:"provider_id"`
}

// RebindWidgetCommand switches a widget slot to another provider.
type RebindWidgetCommand struct {
	service   rebindService
	telemetry Telemetry
}

// NewRebindWidgetCommand creates the command.
func NewRebindWidgetCommand(service rebindService, telemetry Telemetry) *RebindWidgetCommand {
	return &RebindWidgetCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[RebindWidgetInput] = (*RebindWidgetCommand)(nil)

// Execute delegates to the supervisor.
func (c *RebindWidgetCommand) Execute(ctx context.Context, msg RebindWidgetInput) error {
	if c.service == nil {
		return errors.New("rebind command requires supervisor")
	}
	if msg.WidgetID == "" {
		return binding.ErrWidgetIDRequired
	}
	if msg.ProviderID == "" {
		return errors.New("rebind command requires provider id")
	}
	var err error
	if msg.Shape == "" {
		err = c.service.Rebind(msg.WidgetID, msg.ProviderID)
	} else {
		err = c.service.RebindSlot(msg.WidgetID, msg.Shape, msg.ProviderID)
	}
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "binding.command.rebind", map[string]any{
		"widget_id":   msg.WidgetID,
		"shape":       string(msg.Shape),
		"provider_id": msg.ProviderID,
	})
	return nil
}
