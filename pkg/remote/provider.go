// Package remote provides network providers that poll HTTP endpoints.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	binding "github.com/goliatone/go-widgetbind/components/binding"
)

const defaultPollInterval = time.Second

// PollerConfig configures a Poller.
type PollerConfig struct {
	Spec     binding.ProviderSpec
	Client   ReadingClient
	Path     string
	Interval time.Duration
	Clock    binding.Clock
}

// Poller is a Provider fetching a sample every interval. The first failed
// request fails the stream so the supervisor can retry with backoff.
type Poller struct {
	*binding.FuncProvider
	cfg PollerConfig
}

// NewPoller builds a polling provider. Priority defaults to network.
func NewPoller(cfg PollerConfig) (*Poller, error) {
	if cfg.Client == nil {
		return nil, errors.New("remote: client is required")
	}
	if cfg.Spec.SourceID == "" || cfg.Spec.DataType == "" {
		return nil, errors.New("remote: source id and data type are required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = binding.SystemClock()
	}
	p := &Poller{cfg: cfg}
	p.FuncProvider = binding.NewFuncProvider(cfg.Spec, p.stream)
	return p, nil
}

func (p *Poller) stream(ctx context.Context) (<-chan binding.Snapshot, <-chan error) {
	out := make(chan binding.Snapshot)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		for {
			sample, err := p.cfg.Client.FetchSample(ctx, p.cfg.Path)
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("remote: %s: %w", p.cfg.Spec.SourceID, err)
				}
				return
			}
			at := sample.At
			if at.IsZero() {
				at = p.cfg.Clock.Now()
			}
			select {
			case <-ctx.Done():
				return
			case out <- binding.Reading{Type: p.cfg.Spec.DataType, At: at, Value: sample.Value}:
			}
			select {
			case <-ctx.Done():
				return
			case <-p.cfg.Clock.After(p.cfg.Interval):
			}
		}
	}()
	return out, errs
}

// FromManifest builds a Poller for every manifest provider declaring a url.
// Entries without a priority poll at network priority.
func FromManifest(doc *binding.ManifestDocument, apiKey string, clock binding.Clock) ([]binding.Provider, error) {
	if doc == nil {
		return nil, errors.New("remote: manifest document is nil")
	}
	var providers []binding.Provider
	for _, entry := range doc.Providers {
		if entry.URL == "" {
			continue
		}
		if entry.Priority == "" {
			entry.Priority = binding.PriorityNetwork.String()
		}
		spec, err := entry.Spec()
		if err != nil {
			return nil, fmt.Errorf("remote: provider %s: %w", entry.SourceID, err)
		}
		client, err := NewHTTPClient(HTTPConfig{BaseURL: entry.URL, APIKey: apiKey})
		if err != nil {
			return nil, fmt.Errorf("remote: provider %s: %w", entry.SourceID, err)
		}
		poller, err := NewPoller(PollerConfig{
			Spec:     spec,
			Client:   client,
			Interval: entry.Interval,
			Clock:    clock,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, poller)
	}
	return providers, nil
}
