package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded", "not_configured"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// ConversionBacklog lists conversions still waiting for attribution.
type ConversionBacklog interface {
	Unresolved(ctx context.Context, limit int) ([]domain.ConversionEvent, error)
}

// backlogDegradedAt is the unresolved-conversion count above which the
// attribution worker is reported as falling behind.
const backlogDegradedAt = 500

// HealthChecker reports on the store, the balance cache and the
// attribution backlog. Nil dependencies report "not_configured", which is
// the normal state of the in-memory dev server.
type HealthChecker struct {
	db          *sql.DB
	redisClient *redis.Client
	backlog     ConversionBacklog
	startTime   time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redisClient: redisClient, startTime: time.Now()}
}

// WithBacklog enables the attribution backlog check.
func (hc *HealthChecker) WithBacklog(b ConversionBacklog) *HealthChecker {
	hc.backlog = b
	return hc
}

const healthVersion = "1.0.0"

// HandleHealth returns the status of all components. Always 200; the body
// carries the verdict.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	httputil.OK(w, HealthStatus{
		Status:  determineOverallStatus(checks),
		Version: healthVersion,
		Uptime:  formatUptime(time.Since(hc.startTime)),
		Checks:  checks,
	})
}

// HandleLiveness always returns 200 while the process is up.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status": "alive",
		"uptime": formatUptime(time.Since(hc.startTime)),
	})
}

// HandleReadiness returns 503 when a critical dependency is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	ready := overall != "unhealthy"
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]interface{}{
		"ready":  ready,
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	ch := make(chan result, 3)

	go func() { ch <- result{"database", hc.checkDatabase(ctx)} }()
	go func() { ch <- result{"redis", hc.checkRedis(ctx)} }()
	go func() { ch <- result{"attribution", hc.checkBacklog(ctx)} }()

	checks := make(map[string]ComponentCheck, 3)
	for i := 0; i < 3; i++ {
		r := <-ch
		checks[r.name] = r.check
	}
	return checks
}

// checkDatabase pings PostgreSQL with a 3-second timeout.
func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "not_configured", Message: "in-memory store"}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.db.PingContext(pingCtx)
	return latencyCheck(time.Since(start), err, time.Second)
}

// checkRedis pings Redis with a 2-second timeout.
func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redisClient == nil {
		return ComponentCheck{Status: "not_configured", Message: "balance cache disabled"}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.redisClient.Ping(pingCtx).Err()
	return latencyCheck(time.Since(start), err, 500*time.Millisecond)
}

func latencyCheck(latency time.Duration, err error, slow time.Duration) ComponentCheck {
	if err != nil {
		return ComponentCheck{
			Status:  "down",
			Latency: latency.String(),
			Message: fmt.Sprintf("ping failed: %v", err),
		}
	}
	if latency > slow {
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

// checkBacklog uses the unresolved conversion count as a proxy for
// attribution worker health.
func (hc *HealthChecker) checkBacklog(ctx context.Context) ComponentCheck {
	if hc.backlog == nil {
		return ComponentCheck{Status: "not_configured"}
	}
	queryCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	pending, err := hc.backlog.Unresolved(queryCtx, backlogDegradedAt+1)
	latency := time.Since(start)
	if err != nil {
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("backlog check failed: %v", err)}
	}
	if len(pending) > backlogDegradedAt {
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("more than %d conversions awaiting attribution", backlogDegradedAt)}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: fmt.Sprintf("%d conversions awaiting attribution", len(pending))}
}

// determineOverallStatus derives the aggregate status from individual checks.
//
// Rules:
//   - "unhealthy" if the database is down
//   - "degraded"  if any check is degraded or a non-critical check is down
//   - "healthy"   otherwise
func determineOverallStatus(checks map[string]ComponentCheck) string {
	if db, ok := checks["database"]; ok && db.Status == "down" {
		return "unhealthy"
	}
	for _, c := range checks {
		if c.Status == "degraded" || c.Status == "down" {
			return "degraded"
		}
	}
	return "healthy"
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
