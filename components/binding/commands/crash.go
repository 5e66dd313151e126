package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	binding "github.com/goliatone/go-widgetbind/components/binding"
)

type crashService interface {
	ReportCrash(widgetID, typeID string)
}

// ReportCrashInput records a crash raised by a widget renderer.
type ReportCrashInput struct {
	WidgetID string `json:"widget_id"`
	TypeID   string `json:"type_id"`
}

// ReportCrashCommand forwards renderer crashes to the crash reporter.
type ReportCrashCommand struct {
	service   crashService
	telemetry Telemetry
}

// NewReportCrashCommand creates the command.
func NewReportCrashCommand(service crashService, telemetry Telemetry) *ReportCrashCommand {
	return &ReportCrashCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[ReportCrashInput] = (*ReportCrashCommand)(nil)

// Execute delegates to the supervisor.
func (c *ReportCrashCommand) Execute(ctx context.Context, msg ReportCrashInput) error {
	if c.service == nil {
		return errors.New("report crash command requires supervisor")
	}
	if msg.WidgetID == "" {
		return binding.ErrWidgetIDRequired
	}
	c.service.ReportCrash(msg.WidgetID, msg.TypeID)
	c.telemetry.Record(ctx, "binding.command.report_crash", map[string]any{
		"widget_id": msg.WidgetID,
		"type_id":   msg.TypeID,
	})
	return nil
}

type entitlementService interface {
	ReevaluateEntitlements(active []string)
}

// UpdateEntitlementsInput carries the active entitlement set.
type UpdateEntitlementsInput struct {
	Active []string `json:"active"`
}

// UpdateEntitlementsCommand re-evaluates entitlement overlays for every widget.
type UpdateEntitlementsCommand struct {
	service   entitlementService
	telemetry Telemetry
}

// NewUpdateEntitlementsCommand creates the command.
func NewUpdateEntitlementsCommand(service entitlementService, telemetry Telemetry) *UpdateEntitlementsCommand {
	return &UpdateEntitlementsCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[UpdateEntitlementsInput] = (*UpdateEntitlementsCommand)(nil)

// Execute delegates to the supervisor.
func (c *UpdateEntitlementsCommand) Execute(ctx context.Context, msg UpdateEntitlementsInput) error {
	if c.service == nil {
		return errors.New("entitlements command requires supervisor")
	}
	c.service.ReevaluateEntitlements(msg.Active)
	c.telemetry.Record(ctx, "binding.command.entitlements", map[string]any{
		"count": len(msg.Active),
	})
	return nil
}
