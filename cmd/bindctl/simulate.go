package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	binding "github.com/goliatone/go-widgetbind/components/binding"
	"github.com/goliatone/go-widgetbind/pkg/remote"
	"github.com/goliatone/go-widgetbind/pkg/simulated"
)

type simulateCmd struct {
	Manifest string        `arg:"" type:"existingfile" help:"Path to the manifest YAML/JSON file."`
	Config   string        `type:"path" help:"Optional engine config YAML (WIDGETBIND_* env vars override it)."`
	Duration time.Duration `default:"3s" help:"How long to run the simulation."`
	Mode     string        `default:"normal" enum:"normal,degraded,critical" help:"Render mode published by the performance signal."`
	Revoke   []string      `help:"Entitlements revoked halfway through the run."`
	Chart    string        `type:"path" help:"Write an ECharts timeline of binding events to this HTML file."`
	JSON     bool          `name:"json" help:"Print the final overview as JSON instead of a table."`
	APIKey   string        `name:"api-key" env:"WIDGETBIND_API_KEY" help:"Bearer token sent to remote providers."`
}

func (cmd *simulateCmd) Run(ctx context.Context) error {
	cfg, err := binding.LoadConfig(cmd.Config)
	if err != nil {
		return err
	}
	logger, err := binding.NewLogger(cfg.Logging, "bindctl")
	if err != nil {
		return err
	}
	doc, err := binding.ReadManifest(cmd.Manifest)
	if err != nil {
		return err
	}
	providers, err := providersFor(doc, cmd.APIKey)
	if err != nil {
		return err
	}
	mode, err := binding.ParseRenderMode(cmd.Mode)
	if err != nil {
		return err
	}

	widgets := binding.NewStaticWidgetRegistry()
	if err := widgets.LoadManifestDocument(doc); err != nil {
		return err
	}
	entitlements := simulated.NewEntitlementFeed(doc.Entitlements...)
	performance := simulated.NewPerformanceFeed()
	performance.Set(binding.RenderConfig{Mode: mode})
	timeline := binding.NewTimeline()
	crashes := binding.NewCrashLedger()

	supervisor := binding.NewSupervisor(binding.Options{
		Providers:     binding.NewProviderRegistry(providers...),
		Widgets:       widgets,
		CrashReporter: crashes,
		Entitlements:  entitlements,
		Performance:   performance,
		RefreshHook:   timeline,
		Logger:        &logger,
		Config:        cfg,
	})
	defer supervisor.Destroy()

	runCtx, cancel := context.WithTimeout(ctx, cmd.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for _, widget := range doc.Widgets {
		if err := supervisor.Bind(widget); err != nil {
			return fmt.Errorf("bindctl: bind %s: %w", widget.ID, err)
		}
		values, stop := supervisor.WidgetData(widget.ID).Subscribe()
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer stop()
			countEmissions(runCtx, id, values, timeline)
		}(widget.ID)
	}

	if len(cmd.Revoke) > 0 {
		revoke := time.AfterFunc(cmd.Duration/2, func() {
			for _, ent := range cmd.Revoke {
				entitlements.Revoke(ent)
			}
		})
		defer revoke.Stop()
	}

	<-runCtx.Done()
	wg.Wait()

	overview, err := binding.NewController(supervisor, nil).Overview(context.Background())
	if err != nil {
		return err
	}
	if cmd.JSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(overview); err != nil {
			return fmt.Errorf("bindctl: encode overview: %w", err)
		}
	} else {
		printOverview(os.Stdout, overview, timeline, crashes)
	}

	if cmd.Chart != "" {
		if err := writeChart(cmd.Chart, doc, timeline); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "✓ Wrote timeline chart to %s\n", cmd.Chart)
	}
	return nil
}

func countEmissions(ctx context.Context, widgetID string, values <-chan binding.WidgetData, timeline *binding.Timeline) {
	for {
		select {
		case <-ctx.Done():
			return
		case value, ok := <-values:
			if !ok {
				return
			}
			if value.HasData() {
				timeline.RecordEmission(widgetID)
			}
		}
	}
}

func printOverview(w io.Writer, overview binding.Overview, timeline *binding.Timeline, crashes *binding.CrashLedger) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WIDGET\tTYPE\tSTATE\tSTATUS\tSHAPES\tEMITS\tCRASHES")
	for _, widget := range overview.Widgets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			widget.ID,
			widget.TypeID,
			widget.State,
			widget.Status.Kind,
			len(widget.Shapes),
			timeline.Emissions(widget.ID),
			crashes.WidgetCount(widget.ID),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "render mode %s, throttle interval %s\n", overview.RenderConfig.Mode, overview.MinInterval)
}

func writeChart(path string, doc *binding.ManifestDocument, timeline *binding.Timeline) error {
	file, err := os.Create(path) //nolint:gosec
	if err != nil {
		return fmt.Errorf("bindctl: create chart %s: %w", path, err)
	}
	defer file.Close()
	title := doc.Name
	if title == "" {
		title = "Binding simulation"
	}
	if err := timeline.RenderChart(title, file); err != nil {
		return fmt.Errorf("bindctl: render chart: %w", err)
	}
	return nil
}

// providersFor builds simulated providers plus pollers for entries with a url.
func providersFor(doc *binding.ManifestDocument, apiKey string) ([]binding.Provider, error) {
	providers, err := simulated.FromManifest(doc, nil)
	if err != nil {
		return nil, err
	}
	pollers, err := remote.FromManifest(doc, apiKey, nil)
	if err != nil {
		return nil, err
	}
	return append(providers, pollers...), nil
}
