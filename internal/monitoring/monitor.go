package monitoring

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// GaugeFunc reports the current value of a named quantity, such as live games
// or buffered transitions.
type GaugeFunc func() int

// Monitor periodically samples the goroutine count and registered gauges and
// logs them. It warns when goroutines exceed the alert threshold.
type Monitor struct {
	mu             sync.RWMutex
	baseline       int
	current        int
	peak           int
	checkInterval  time.Duration
	alertThreshold int
	alertCooldown  time.Duration
	lastAlert      time.Time
	gauges         map[string]GaugeFunc
	lastValues     map[string]int

	logger   zerolog.Logger
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Config configures a Monitor. Zero fields take defaults.
type Config struct {
	CheckInterval  time.Duration
	AlertThreshold int
	AlertCooldown  time.Duration
}

func NewMonitor(cfg Config, logger zerolog.Logger) *Monitor {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = 1000
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = 5 * time.Minute
	}
	baseline := runtime.NumGoroutine()
	return &Monitor{
		baseline:       baseline,
		current:        baseline,
		peak:           baseline,
		checkInterval:  cfg.CheckInterval,
		alertThreshold: cfg.AlertThreshold,
		alertCooldown:  cfg.AlertCooldown,
		gauges:         make(map[string]GaugeFunc),
		lastValues:     make(map[string]int),
		logger:         logger.With().Str("component", "monitor").Logger(),
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Register adds a gauge sampled on every check. Registering a name twice
// replaces the earlier gauge.
func (m *Monitor) Register(name string, fn GaugeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = fn
}

// Start runs the sampling loop until Stop is called.
func (m *Monitor) Start() {
	go m.run()
	m.logger.Info().
		Int("baseline_goroutines", m.baseline).
		Dur("interval", m.checkInterval).
		Msg("Started monitoring")
}

// Stop ends the sampling loop and waits for it to exit. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		<-m.done
	})
}

func (m *Monitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			m.safeCheck(now)
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) safeCheck(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Msg("Monitor check panicked")
		}
	}()
	m.Check(now)
}

// Check takes one sample. It is what the loop calls on every tick.
func (m *Monitor) Check(now time.Time) Metrics {
	current := runtime.NumGoroutine()

	m.mu.Lock()
	m.current = current
	if current > m.peak {
		m.peak = current
	}
	shouldAlert := current > m.alertThreshold && now.Sub(m.lastAlert) > m.alertCooldown
	if shouldAlert {
		m.lastAlert = now
	}
	gauges := make(map[string]GaugeFunc, len(m.gauges))
	for name, fn := range m.gauges {
		gauges[name] = fn
	}
	m.mu.Unlock()

	// Gauges may take their own locks, so sample them outside m.mu.
	values := make(map[string]int, len(gauges))
	for name, fn := range gauges {
		values[name] = fn()
	}

	m.mu.Lock()
	m.lastValues = values
	metrics := m.metricsLocked()
	m.mu.Unlock()

	event := m.logger.Debug().
		Int("goroutines", metrics.Goroutines).
		Int("peak", metrics.Peak).
		Int("growth", metrics.Growth)
	for _, name := range sortedKeys(values) {
		event = event.Int(name, values[name])
	}
	event.Msg("Runtime metrics")

	if shouldAlert {
		m.logger.Warn().
			Int("goroutines", current).
			Int("threshold", m.alertThreshold).
			Msg("High goroutine count detected - possible leak")
	}
	return metrics
}

// Metrics returns the most recent sample.
func (m *Monitor) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metricsLocked()
}

func (m *Monitor) metricsLocked() Metrics {
	gauges := make(map[string]int, len(m.lastValues))
	for k, v := range m.lastValues {
		gauges[k] = v
	}
	return Metrics{
		Goroutines: m.current,
		Baseline:   m.baseline,
		Peak:       m.peak,
		Growth:     m.current - m.baseline,
		Gauges:     gauges,
	}
}

// Metrics is one monitoring sample.
type Metrics struct {
	Goroutines int            `json:"goroutines"`
	Baseline   int            `json:"baseline"`
	Peak       int            `json:"peak"`
	Growth     int            `json:"growth"`
	Gauges     map[string]int `json:"gauges"`
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
