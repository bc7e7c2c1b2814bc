// Package health отдаёт HTTP-пробы сервиса счетов: /healthz с подробным
// отчётом по компонентам, /readyz и /livez.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status — состояние компонента или сервиса целиком.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// severity упорядочивает статусы: худший определяет итог отчёта.
func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Check — результат одной проверки.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Report — сводный ответ /healthz.
type Report struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker проверяет один компонент. Реализация должна уважать ctx.
type Checker interface {
	Check(ctx context.Context) Check
}

const defaultEvaluateTimeout = 3 * time.Second

// Handler собирает зарегистрированные проверки и отвечает на пробы.
type Handler struct {
	mu       sync.RWMutex
	checkers map[string]Checker

	version string
	started time.Time
	timeout time.Duration
	now     func() time.Time
}

// NewHandler создаёт обработчик проб для указанной версии сборки.
func NewHandler(version string) *Handler {
	return &Handler{
		checkers: make(map[string]Checker),
		version:  version,
		started:  time.Now(),
		timeout:  defaultEvaluateTimeout,
		now:      time.Now,
	}
}

// RegisterChecker добавляет проверку; повторная регистрация имени заменяет её.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

func (h *Handler) snapshot() map[string]Checker {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]Checker, len(h.checkers))
	for name, c := range h.checkers {
		out[name] = c
	}
	return out
}

// Evaluate выполняет все проверки параллельно и сводит их в отчёт.
func (h *Handler) Evaluate(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	checkers := h.snapshot()
	results := make(chan Check, len(checkers))

	var wg sync.WaitGroup
	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()
			check := checker.Check(ctx)
			check.Name = name
			results <- check
		}(name, checker)
	}
	wg.Wait()
	close(results)

	report := Report{
		Status:        StatusHealthy,
		Timestamp:     h.now().UTC(),
		Checks:        make(map[string]Check, len(checkers)),
		Version:       h.version,
		UptimeSeconds: int64(h.now().Sub(h.started).Seconds()),
	}
	for check := range results {
		report.Checks[check.Name] = check
		if check.Status.severity() > report.Status.severity() {
			report.Status = check.Status
		}
	}
	return report
}

// Failing возвращает имена проверок со статусом unhealthy в порядке имени.
func (r Report) Failing() []string {
	var names []string
	for name, check := range r.Checks {
		if check.Status == StatusUnhealthy {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ServeHTTP отдаёт полный отчёт; unhealthy даёт 503.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Evaluate(r.Context())

	code := http.StatusOK
	if report.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}

// ReadinessHandler отвечает 503, пока хотя бы одна проверка unhealthy.
// Degraded-сервис продолжает принимать запросы.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if failing := h.Evaluate(r.Context()).Failing(); len(failing) > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// LivenessHandler всегда отвечает 200, пока процесс обслуживает HTTP.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// CheckFunc превращает функцию в Checker: ошибка означает unhealthy.
type CheckFunc func(ctx context.Context) error

// Check выполняет функцию и замеряет длительность.
func (f CheckFunc) Check(ctx context.Context) Check {
	start := time.Now()
	err := f(ctx)
	check := Check{Status: StatusHealthy, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}
	return check
}
