package binding

import (
	"encoding/json"
	"sort"
)

// WidgetData is the accumulated value of a widget: the latest snapshot seen per
// data shape. Values are immutable; With returns a new value.
type WidgetData struct {
	slots map[DataShape]Snapshot
}

// EmptyWidgetData is the seed value every merged stream starts with.
func EmptyWidgetData() WidgetData {
	return WidgetData{}
}

// With returns a copy with the snapshot's slot replaced.
func (d WidgetData) With(s Snapshot) WidgetData {
	if s == nil {
		return d
	}
	slots := make(map[DataShape]Snapshot, len(d.slots)+1)
	for k, v := range d.slots {
		slots[k] = v
	}
	slots[s.Shape()] = s
	return WidgetData{slots: slots}
}

// Merge returns a copy holding every slot of d, replaced by the slots other
// has filled.
func (d WidgetData) Merge(other WidgetData) WidgetData {
	if !other.HasData() {
		return d
	}
	out := d
	for _, shape := range other.Shapes() {
		out = out.With(other.slots[shape])
	}
	return out
}

// Get returns the latest snapshot for a shape.
func (d WidgetData) Get(shape DataShape) (Snapshot, bool) {
	s, ok := d.slots[shape]
	return s, ok
}

// HasData reports whether any slot is filled.
func (d WidgetData) HasData() bool {
	return len(d.slots) > 0
}

// Len returns the number of filled slots.
func (d WidgetData) Len() int {
	return len(d.slots)
}

// Shapes returns the filled slots in sorted order.
func (d WidgetData) Shapes() []DataShape {
	shapes := make([]DataShape, 0, len(d.slots))
	for shape := range d.slots {
		shapes = append(shapes, shape)
	}
	sort.Slice(shapes, func(i, j int) bool { return shapes[i] < shapes[j] })
	return shapes
}

// MarshalJSON encodes the slots as an object keyed by shape.
func (d WidgetData) MarshalJSON() ([]byte, error) {
	if d.slots == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.slots)
}
