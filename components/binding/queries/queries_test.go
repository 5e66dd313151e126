package queries

import (
	"context"
	"errors"
	"testing"
	"time"

	binding "github.com/goliatone/go-widgetbind/components/binding"
)

type stubService struct {
	data     *binding.Container[binding.WidgetData]
	status   *binding.Container[binding.Status]
	active   []string
	overview binding.Overview
	err      error
}

func newStubService() *stubService {
	data := binding.EmptyWidgetData().With(binding.Reading{Type: "speed", At: time.Now(), Value: 88})
	return &stubService{
		data:   binding.NewContainer(data),
		status: binding.NewContainer(binding.ConnectionErrorStatus("link lost")),
		active: []string{"w1", "w2"},
	}
}

func (s *stubService) WidgetData(string) *binding.Container[binding.WidgetData] { return s.data }
func (s *stubService) WidgetStatus(string) *binding.Container[binding.Status]   { return s.status }
func (s *stubService) ActiveBindings() []string                                 { return s.active }

func (s *stubService) Overview(context.Context) (binding.Overview, error) {
	return s.overview, s.err
}

func TestWidgetDataQuery(t *testing.T) {
	query := NewWidgetDataQuery(newStubService())
	data, err := query.Query(context.Background(), WidgetInput{WidgetID: "w1"})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	snap, ok := data.Get("speed")
	if !ok || snap.(binding.Reading).Value != 88 {
		t.Fatalf("expected speed reading, got %+v", data)
	}
	if _, err := query.Query(context.Background(), WidgetInput{}); !errors.Is(err, binding.ErrWidgetIDRequired) {
		t.Fatalf("expected ErrWidgetIDRequired, got %v", err)
	}
}

func TestWidgetStatusQuery(t *testing.T) {
	query := NewWidgetStatusQuery(newStubService())
	status, err := query.Query(context.Background(), WidgetInput{WidgetID: "w1"})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if status.Kind != binding.StatusConnectionError || status.Message != "link lost" {
		t.Fatalf("unexpected status %+v", status)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := query.Query(ctx, WidgetInput{WidgetID: "w1"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestActiveBindingsQuery(t *testing.T) {
	ids, err := NewActiveBindingsQuery(newStubService()).Query(context.Background(), ActiveBindingsInput{})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "w1" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestOverviewQuery(t *testing.T) {
	service := newStubService()
	service.overview = binding.Overview{Active: 3}
	overview, err := NewOverviewQuery(service).Query(context.Background(), OverviewInput{})
	if err != nil || overview.Active != 3 {
		t.Fatalf("unexpected overview %+v err %v", overview, err)
	}
	service.err = errors.New("boom")
	if _, err := NewOverviewQuery(service).Query(context.Background(), OverviewInput{}); err == nil {
		t.Fatalf("expected error to propagate")
	}
}
