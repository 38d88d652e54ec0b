package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ignite/affiliate-ledger/internal/domain"
)

// EventRepo implements recorder.Repository.
type EventRepo struct{ s *Store }

func viewKey(v *domain.ViewEvent) string {
	return v.ReelID + "\x00" + v.ViewerID + "\x00" + v.SessionID
}

func (r *EventRepo) InsertView(_ context.Context, v *domain.ViewEvent) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if v.Deduplicable() {
		key := viewKey(v)
		if id, ok := r.s.viewKeys[key]; ok {
			v.ID = id
			return false, nil
		}
		r.s.viewKeys[key] = v.ID
	}
	r.s.views = append(r.s.views, *v)
	return true, nil
}

func (r *EventRepo) InsertClick(_ context.Context, c *domain.ClickEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.clicks[c.ClickSessionID]; ok {
		return domain.ErrDuplicateSession
	}
	r.s.clicks[c.ClickSessionID] = *c
	return nil
}

func (r *EventRepo) InsertConversion(_ context.Context, c *domain.ConversionEvent) (*domain.ConversionEvent, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if i, ok := r.s.convByOrder[c.OrderID]; ok {
		stored := r.s.conversions[i]
		return &stored, false, nil
	}
	r.s.convByOrder[c.OrderID] = len(r.s.conversions)
	r.s.conversions = append(r.s.conversions, *c)
	return c, true, nil
}

func (r *EventRepo) GetClick(_ context.Context, clickSessionID string) (*domain.ClickEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.clicks[clickSessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r *EventRepo) ListUnresolvedConversions(_ context.Context, limit int) ([]domain.ConversionEvent, error) {
	return r.unresolved(time.Time{}, limit), nil
}

func (r *EventRepo) ListDueConversions(_ context.Context, now time.Time, limit int) ([]domain.ConversionEvent, error) {
	return r.unresolved(now, limit), nil
}

// unresolved lists conversions without a sale, oldest first. A non-zero
// now also drops conversions still waiting out a retry delay.
func (r *EventRepo) unresolved(now time.Time, limit int) []domain.ConversionEvent {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.ConversionEvent
	for _, c := range r.s.conversions {
		if _, done := r.s.saleByOrder[c.OrderID]; done {
			continue
		}
		if f, ok := r.s.failures[c.OrderID]; ok && !now.IsZero() && f.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *EventRepo) GetAttributionFailure(_ context.Context, orderID string) (*domain.AttributionFailure, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	f, ok := r.s.failures[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &f, nil
}

func (r *EventRepo) UpsertAttributionFailure(_ context.Context, f *domain.AttributionFailure) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.failures[f.OrderID] = *f
	return nil
}

func (r *EventRepo) CountEngagement(_ context.Context, promoterID string, since time.Time) (int, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var views, clicks int
	for _, v := range r.s.views {
		if v.PromoterID == promoterID && !v.OccurredAt.Before(since) {
			views++
		}
	}
	for _, c := range r.s.clicks {
		if c.PromoterID == promoterID && !c.OccurredAt.Before(since) {
			clicks++
		}
	}
	return views, clicks, nil
}
