package tracking

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/httputil"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
)

type publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Handler is the edge intake. It validates shape only and hands events to
// the queue; uniqueness is decided later by the recorder.
type Handler struct {
	pub publisher
	now func() time.Time
}

func NewHandler(pub publisher) *Handler {
	return &Handler{pub: pub, now: func() time.Time { return time.Now().UTC() }}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/track/view", h.HandleView)
	r.Post("/track/click", h.HandleClick)
	r.Post("/track/conversion", h.HandleConversion)
	r.Get("/health", h.HandleHealth)
	return r
}

func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	var v domain.ViewEvent
	if !httputil.Decode(w, r, &v) {
		return
	}
	if err := v.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	h.enqueue(w, r, Envelope{Kind: KindView, View: &v})
}

func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	var c domain.ClickEvent
	if !httputil.Decode(w, r, &c) {
		return
	}
	if c.DeviceInfo == nil {
		c.DeviceInfo = map[string]string{}
	}
	if _, ok := c.DeviceInfo["user_agent"]; !ok && r.UserAgent() != "" {
		c.DeviceInfo["user_agent"] = r.UserAgent()
	}
	if _, ok := c.DeviceInfo["device_type"]; !ok && r.UserAgent() != "" {
		c.DeviceInfo["device_type"] = detectDevice(r.UserAgent())
	}
	if _, ok := c.DeviceInfo["ip"]; !ok {
		c.DeviceInfo["ip"] = realIP(r)
	}
	if err := c.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	h.enqueue(w, r, Envelope{Kind: KindClick, Click: &c})
}

func (h *Handler) HandleConversion(w http.ResponseWriter, r *http.Request) {
	var c domain.ConversionEvent
	if !httputil.Decode(w, r, &c) {
		return
	}
	if err := c.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	h.enqueue(w, r, Envelope{Kind: KindConversion, Conversion: &c})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request, env Envelope) {
	env.ReceivedAt = h.now()
	if err := h.pub.Publish(r.Context(), env); err != nil {
		logger.Error("[Tracking] enqueue failed", "kind", string(env.Kind), "error", err)
		if errors.Is(err, context.Canceled) {
			return
		}
		httputil.Error(w, http.StatusServiceUnavailable, "event intake unavailable")
		return
	}
	httputil.Accepted(w, map[string]string{"status": "queued", "kind": string(env.Kind)})
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func detectDevice(ua string) string {
	ua = strings.ToLower(ua)
	if strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad") {
		return "tablet"
	}
	if strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone") {
		return "mobile"
	}
	return "desktop"
}
