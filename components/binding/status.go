package binding

import "fmt"

// StatusKind is the overlay shown on top of a widget.
type StatusKind int

const (
	StatusReady StatusKind = iota
	StatusProviderMissing
	StatusConnectionError
	StatusEntitlementRevoked
	StatusSetupRequired
)

var statusKindNames = map[StatusKind]string{
	StatusReady:              "Ready",
	StatusProviderMissing:    "ProviderMissing",
	StatusConnectionError:    "ConnectionError",
	StatusEntitlementRevoked: "EntitlementRevoked",
	StatusSetupRequired:      "SetupRequired",
}

func (k StatusKind) String() string {
	if name, ok := statusKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("StatusKind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k StatusKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Issue is a non-blocking problem attached to a status.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Status is the per-widget overlay state. The zero value is Ready.
type Status struct {
	Kind         StatusKind `json:"kind"`
	Message      string     `json:"message,omitempty"`
	Entitlement  string     `json:"entitlement,omitempty"`
	Requirements []string   `json:"requirements,omitempty"`
	Issues       []Issue    `json:"issues,omitempty"`
}

// ReadyStatus is the default status.
func ReadyStatus() Status { return Status{Kind: StatusReady} }

// ProviderMissingStatus reports a widget type without a renderer.
func ProviderMissingStatus(typeID string) Status {
	return Status{
		Kind:    StatusProviderMissing,
		Message: fmt.Sprintf("no renderer registered for %q", typeID),
	}
}

// ConnectionErrorStatus reports retries were exhausted.
func ConnectionErrorStatus(message string) Status {
	return Status{Kind: StatusConnectionError, Message: message}
}

// EntitlementRevokedStatus reports the widget lost access to a required entitlement.
func EntitlementRevokedStatus(entitlement string) Status {
	return Status{Kind: StatusEntitlementRevoked, Entitlement: entitlement}
}

// SetupRequiredStatus reports the widget needs user setup before it can show data.
func SetupRequiredStatus(requirements ...string) Status {
	return Status{Kind: StatusSetupRequired, Requirements: requirements}
}

// IsReady reports whether no overlay is shown.
func (s Status) IsReady() bool {
	return s.Kind == StatusReady
}

// WithIssue returns a copy of the status with an issue appended.
func (s Status) WithIssue(code, message string) Status {
	issues := make([]Issue, 0, len(s.Issues)+1)
	issues = append(issues, s.Issues...)
	s.Issues = append(issues, Issue{Code: code, Message: message})
	return s
}
