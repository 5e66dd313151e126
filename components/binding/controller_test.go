package binding

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

type stubRenderer struct {
	lastTemplate string
	lastPayload  map[string]any
	err          error
}

func (r *stubRenderer) Render(name string, data any, out ...io.Writer) (string, error) {
	r.lastTemplate = name
	if payload, ok := data.(map[string]any); ok {
		r.lastPayload = payload
	}
	if len(out) > 0 && out[0] != nil {
		out[0].Write([]byte("<html></html>"))
	}
	return "<html></html>", r.err
}

func TestControllerOverview(t *testing.T) {
	sup := newTestSupervisor(t, Options{
		Providers: NewProviderRegistry(holdingProvider(ProviderSpec{SourceID: "sim", DataType: "speed"}, 7)),
		Widgets:   NewStaticWidgetRegistry(speedometer()),
	})
	if err := sup.Bind(WidgetInstance{ID: "w1", TypeID: "speedometer"}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := sup.Bind(WidgetInstance{ID: "w2", TypeID: "unknown"}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	deadline := time.Now().Add(waitFor)
	for sup.State("w1") != StateBound {
		if time.Now().After(deadline) {
			t.Fatalf("w1 never bound, state %s", sup.State("w1"))
		}
		time.Sleep(5 * time.Millisecond)
	}

	overview, err := NewController(sup, nil).Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview returned error: %v", err)
	}
	if len(overview.Widgets) != 2 {
		t.Fatalf("expected 2 widgets, got %d", len(overview.Widgets))
	}
	if overview.Active != 1 {
		t.Fatalf("expected 1 active binding, got %d", overview.Active)
	}
	if overview.MinInterval != DefaultBaseInterval {
		t.Fatalf("expected %s throttle, got %s", DefaultBaseInterval, overview.MinInterval)
	}
	w1 := overview.Widgets[0]
	if w1.ID != "w1" || !w1.Active || len(w1.Shapes) != 1 || w1.Shapes[0] != "speed" {
		t.Fatalf("unexpected view for w1: %+v", w1)
	}
	w2 := overview.Widgets[1]
	if w2.Status.Kind != StatusProviderMissing || w2.Active {
		t.Fatalf("unexpected view for w2: %+v", w2)
	}
}

func TestControllerRenderPage(t *testing.T) {
	sup := newTestSupervisor(t, Options{Widgets: NewStaticWidgetRegistry(Renderer{TypeID: "clock"})})
	if err := sup.Bind(WidgetInstance{ID: "c1", TypeID: "clock"}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	renderer := &stubRenderer{}
	controller := NewController(sup, renderer)

	var buf bytes.Buffer
	if err := controller.RenderPage(context.Background(), &buf); err != nil {
		t.Fatalf("RenderPage returned error: %v", err)
	}
	if renderer.lastTemplate != "bindings" {
		t.Fatalf("expected bindings template, got %s", renderer.lastTemplate)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected output to be written")
	}
	overview, ok := renderer.lastPayload["overview"].(map[string]any)
	if !ok {
		t.Fatalf("expected overview payload, got %#v", renderer.lastPayload)
	}
	if overview["render_mode"] != "normal" {
		t.Fatalf("expected normal render mode, got %v", overview["render_mode"])
	}
	widgets, ok := overview["widgets"].([]map[string]any)
	if !ok || len(widgets) != 1 || widgets[0]["id"] != "c1" {
		t.Fatalf("unexpected widgets payload: %#v", overview["widgets"])
	}
}

func TestControllerRenderPageErrors(t *testing.T) {
	sup := newTestSupervisor(t, Options{})
	if err := NewController(sup, nil).RenderPage(context.Background(), io.Discard); err == nil {
		t.Fatalf("expected error without renderer")
	}
	renderer := &stubRenderer{err: errors.New("template broke")}
	if err := NewController(sup, renderer).RenderPage(context.Background(), io.Discard); err == nil {
		t.Fatalf("expected renderer error to propagate")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewController(sup, renderer).Overview(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
