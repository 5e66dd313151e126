package binding

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	timelineEmit       = "emit"
	defaultChartHeight = "360px"
)

// Timeline counts binding events and value emissions per widget. It is a
// RefreshHook so it can be chained next to a BroadcastHook.
type Timeline struct {
	mu      sync.Mutex
	counts  map[string]map[string]int
	reasons map[string]struct{}
}

// NewTimeline builds an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{
		counts:  map[string]map[string]int{},
		reasons: map[string]struct{}{timelineEmit: {}},
	}
}

// WidgetUpdated implements RefreshHook.
func (t *Timeline) WidgetUpdated(_ context.Context, event BindingEvent) error {
	t.add(event.WidgetID, event.Reason)
	return nil
}

// RecordEmission counts one value delivered to a widget.
func (t *Timeline) RecordEmission(widgetID string) {
	t.add(widgetID, timelineEmit)
}

func (t *Timeline) add(widgetID, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.counts[widgetID]
	if !ok {
		row = map[string]int{}
		t.counts[widgetID] = row
	}
	row[reason]++
	t.reasons[reason] = struct{}{}
}

// Count returns how often reason was seen for a widget.
func (t *Timeline) Count(widgetID, reason string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[widgetID][reason]
}

// Emissions returns the value count of a widget.
func (t *Timeline) Emissions(widgetID string) int {
	return t.Count(widgetID, timelineEmit)
}

// Widgets lists the widgets seen so far, sorted.
func (t *Timeline) Widgets() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.counts)
}

// Reasons lists the event reasons seen so far, sorted.
func (t *Timeline) Reasons() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.reasons)
}

// RenderChart writes an ECharts bar chart with one series per reason.
func (t *Timeline) RenderChart(title string, out io.Writer) error {
	widgets := t.Widgets()
	reasons := t.Reasons()

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "events per widget"}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  "100%",
			Height: defaultChartHeight,
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(widgets)
	for _, reason := range reasons {
		data := make([]opts.BarData, len(widgets))
		for i, widget := range widgets {
			data[i] = opts.BarData{Name: widget, Value: t.Count(widget, reason)}
		}
		bar.AddSeries(reason, data)
	}
	return bar.Render(out)
}

// ChartHTML renders the chart into a string.
func (t *Timeline) ChartHTML(title string) (string, error) {
	var buf bytes.Buffer
	if err := t.RenderChart(title, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
