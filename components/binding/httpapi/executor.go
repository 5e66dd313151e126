package httpapi

import (
	"context"
	"errors"
	"net/http"

	gocommand "github.com/goliatone/go-command"
	binding "github.com/goliatone/go-widgetbind/components/binding"
	"github.com/goliatone/go-widgetbind/components/binding/commands"
	"github.com/goliatone/go-widgetbind/components/binding/queries"
)

// Executor is the transport-neutral API used by HTTP adapters.
type Executor interface {
	Bind(ctx context.Context, input commands.BindWidgetInput) error
	Unbind(ctx context.Context, input commands.UnbindWidgetInput) error
	Rebind(ctx context.Context, input commands.RebindWidgetInput) error
	PauseAll(ctx context.Context) error
	ResumeAll(ctx context.Context) error
	ReportCrash(ctx context.Context, input commands.ReportCrashInput) error
	UpdateEntitlements(ctx context.Context, input commands.UpdateEntitlementsInput) error
	WidgetData(ctx context.Context, input queries.WidgetInput) (binding.WidgetData, error)
	WidgetStatus(ctx context.Context, input queries.WidgetInput) (binding.Status, error)
	ActiveBindings(ctx context.Context) ([]string, error)
}

// CommandExecutor implements Executor with go-command commanders and queriers.
type CommandExecutor struct {
	BindCmd         gocommand.Commander[commands.BindWidgetInput]
	UnbindCmd       gocommand.Commander[commands.UnbindWidgetInput]
	RebindCmd       gocommand.Commander[commands.RebindWidgetInput]
	PauseCmd        gocommand.Commander[commands.PauseAllInput]
	ResumeCmd       gocommand.Commander[commands.ResumeAllInput]
	CrashCmd        gocommand.Commander[commands.ReportCrashInput]
	EntitlementsCmd gocommand.Commander[commands.UpdateEntitlementsInput]
	DataQuery       gocommand.Querier[queries.WidgetInput, binding.WidgetData]
	StatusQuery     gocommand.Querier[queries.WidgetInput, binding.Status]
	ActiveQuery     gocommand.Querier[queries.ActiveBindingsInput, []string]
}

// NewCommandExecutor wires every command and query against a supervisor.
func NewCommandExecutor(supervisor *binding.Supervisor, telemetry commands.Telemetry) *CommandExecutor {
	return &CommandExecutor{
		BindCmd:         commands.NewBindWidgetCommand(supervisor, telemetry),
		UnbindCmd:       commands.NewUnbindWidgetCommand(supervisor, telemetry),
		RebindCmd:       commands.NewRebindWidgetCommand(supervisor, telemetry),
		PauseCmd:        commands.NewPauseAllCommand(supervisor, telemetry),
		ResumeCmd:       commands.NewResumeAllCommand(supervisor, telemetry),
		CrashCmd:        commands.NewReportCrashCommand(supervisor, telemetry),
		EntitlementsCmd: commands.NewUpdateEntitlementsCommand(supervisor, telemetry),
		DataQuery:       queries.NewWidgetDataQuery(supervisor),
		StatusQuery:     queries.NewWidgetStatusQuery(supervisor),
		ActiveQuery:     queries.NewActiveBindingsQuery(supervisor),
	}
}

var _ Executor = (*CommandExecutor)(nil)

var errNotConfigured = errors.New("httpapi: operation not configured")

func (e *CommandExecutor) Bind(ctx context.Context, input commands.BindWidgetInput) error {
	if e.BindCmd == nil {
		return errNotConfigured
	}
	return e.BindCmd.Execute(ctx, input)
}

func (e *CommandExecutor) Unbind(ctx context.Context, input commands.UnbindWidgetInput) error {
	if e.UnbindCmd == nil {
		return errNotConfigured
	}
	return e.UnbindCmd.Execute(ctx, input)
}

func (e *CommandExecutor) Rebind(ctx context.Context, input commands.RebindWidgetInput) error {
	if e.RebindCmd == nil {
		return errNotConfigured
	}
	return e.RebindCmd.Execute(ctx, input)
}

func (e *CommandExecutor) PauseAll(ctx context.Context) error {
	if e.PauseCmd == nil {
		return errNotConfigured
	}
	return e.PauseCmd.Execute(ctx, commands.PauseAllInput{})
}

func (e *CommandExecutor) ResumeAll(ctx context.Context) error {
	if e.ResumeCmd == nil {
		return errNotConfigured
	}
	return e.ResumeCmd.Execute(ctx, commands.ResumeAllInput{})
}

func (e *CommandExecutor) ReportCrash(ctx context.Context, input commands.ReportCrashInput) error {
	if e.CrashCmd == nil {
		return errNotConfigured
	}
	return e.CrashCmd.Execute(ctx, input)
}

func (e *CommandExecutor) UpdateEntitlements(ctx context.Context, input commands.UpdateEntitlementsInput) error {
	if e.EntitlementsCmd == nil {
		return errNotConfigured
	}
	return e.EntitlementsCmd.Execute(ctx, input)
}

func (e *CommandExecutor) WidgetData(ctx context.Context, input queries.WidgetInput) (binding.WidgetData, error) {
	if e.DataQuery == nil {
		return binding.EmptyWidgetData(), errNotConfigured
	}
	return e.DataQuery.Query(ctx, input)
}

func (e *CommandExecutor) WidgetStatus(ctx context.Context, input queries.WidgetInput) (binding.Status, error) {
	if e.StatusQuery == nil {
		return binding.Status{}, errNotConfigured
	}
	return e.StatusQuery.Query(ctx, input)
}

func (e *CommandExecutor) ActiveBindings(ctx context.Context) ([]string, error) {
	if e.ActiveQuery == nil {
		return nil, errNotConfigured
	}
	return e.ActiveQuery.Query(ctx, queries.ActiveBindingsInput{})
}

// StatusCode maps engine errors to HTTP status codes.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, binding.ErrWidgetIDRequired):
		return http.StatusBadRequest
	case errors.Is(err, binding.ErrWidgetNotBound), errors.Is(err, binding.ErrUnknownProvider):
		return http.StatusNotFound
	case errors.Is(err, binding.ErrSupervisorDestroyed), errors.Is(err, errNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
