package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	helperRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "helper",
		Name:      "running",
		Help:      "1 while the helper process (screen grabber, audio tap) is running",
	}, []string{"helper"})

	helperCrashes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "helper",
		Name:      "crashes_total",
		Help:      "Helper process exits that were not requested",
	}, []string{"helper"})

	// Local cache for the status endpoint.
	helperCache   = make(map[string]*HelperMetrics)
	helperCacheMu sync.RWMutex
)

// HelperMetrics holds the current values for one helper process.
type HelperMetrics struct {
	State     string
	Crashes   uint64
	LastError string
}

// RecordHelperState records a helper process state transition. err is the
// exit error when the helper crashed.
func RecordHelperState(helper, state string, err error) {
	running := 0.0
	if state == "running" {
		running = 1
	}
	helperRunning.WithLabelValues(helper).Set(running)
	if err != nil {
		helperCrashes.WithLabelValues(helper).Inc()
	}

	helperCacheMu.Lock()
	defer helperCacheMu.Unlock()
	m, ok := helperCache[helper]
	if !ok {
		m = &HelperMetrics{}
		helperCache[helper] = m
	}
	m.State = state
	if err != nil {
		m.Crashes++
		m.LastError = err.Error()
	}
}

// GetHelperMetrics returns current values for a helper, or nil if it never
// changed state.
func GetHelperMetrics(helper string) *HelperMetrics {
	helperCacheMu.RLock()
	defer helperCacheMu.RUnlock()
	if m, ok := helperCache[helper]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllHelperMetrics returns values for every helper seen so far.
func GetAllHelperMetrics() map[string]HelperMetrics {
	helperCacheMu.RLock()
	defer helperCacheMu.RUnlock()
	result := make(map[string]HelperMetrics, len(helperCache))
	for id, m := range helperCache {
		result[id] = *m
	}
	return result
}
