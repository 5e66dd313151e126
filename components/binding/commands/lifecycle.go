package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
)

type lifecycleService interface {
	PauseAll()
	ResumeAll()
}

// PauseAllInput suspends every binding, typically when the host is backgrounded.
type PauseAllInput struct{}

// ResumeAllInput restarts every recorded binding.
type ResumeAllInput struct{}

// PauseAllCommand cancels every widget task while keeping the records.
type PauseAllCommand struct {
	service   lifecycleService
	telemetry Telemetry
}

// NewPauseAllCommand creates the command.
func NewPauseAllCommand(service lifecycleService, telemetry Telemetry) *PauseAllCommand {
	return &PauseAllCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[PauseAllInput] = (*PauseAllCommand)(nil)

// Execute delegates to the supervisor.
func (c *PauseAllCommand) Execute(ctx context.Context, _ PauseAllInput) error {
	if c.service == nil {
		return errors.New("pause command requires supervisor")
	}
	c.service.PauseAll()
	c.telemetry.Record(ctx, "binding.command.pause_all", nil)
	return nil
}

// ResumeAllCommand binds every recorded widget again.
type ResumeAllCommand struct {
	service   lifecycleService
	telemetry Telemetry
}

// NewResumeAllCommand creates the command.
func NewResumeAllCommand(service lifecycleService, telemetry Telemetry) *ResumeAllCommand {
	return &ResumeAllCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[ResumeAllInput] = (*ResumeAllCommand)(nil)

// Execute delegates to the supervisor.
func (c *ResumeAllCommand) Execute(ctx context.Context, _ ResumeAllInput) error {
	if c.service == nil {
		return errors.New("resume command requires supervisor")
	}
	c.service.ResumeAll()
	c.telemetry.Record(ctx, "binding.command.resume_all", nil)
	return nil
}
