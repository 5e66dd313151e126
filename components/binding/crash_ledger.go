package binding

import (
	"sync"
	"time"
)

// CrashLedger is an in-memory CrashReporter that counts crashes per widget
// type and per widget.
type CrashLedger struct {
	mu       sync.Mutex
	byType   map[string]int
	byWidget map[string]int
	last     map[string]time.Time
	now      func() time.Time
}

// NewCrashLedger builds an empty ledger.
func NewCrashLedger() *CrashLedger {
	return &CrashLedger{
		byType:   map[string]int{},
		byWidget: map[string]int{},
		last:     map[string]time.Time{},
		now:      time.Now,
	}
}

// ReportCrash implements CrashReporter.
func (l *CrashLedger) ReportCrash(widgetID, typeID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byType[typeID]++
	l.byWidget[widgetID]++
	l.last[typeID] = l.now()
}

// Count returns the crashes recorded for a widget type.
func (l *CrashLedger) Count(typeID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byType[typeID]
}

// WidgetCount returns the crashes recorded for one widget instance.
func (l *CrashLedger) WidgetCount(widgetID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byWidget[widgetID]
}

// LastCrash returns when a widget type last crashed.
func (l *CrashLedger) LastCrash(typeID string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	at, ok := l.last[typeID]
	return at, ok
}

// Reset clears the counters of a widget type.
func (l *CrashLedger) Reset(typeID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byType, typeID)
	delete(l.last, typeID)
}
