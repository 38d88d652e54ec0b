package domain

import "time"

// ViewEvent is an analytics signal that a promoter's reel was watched.
type ViewEvent struct {
	ID              string    `json:"id" db:"id"`
	ReelID          string    `json:"reel_id" db:"reel_id"`
	PromoterID      string    `json:"promoter_id" db:"promoter_id"`
	ProductID       string    `json:"product_id,omitempty" db:"product_id"`
	ViewerID        string    `json:"viewer_id,omitempty" db:"viewer_id"`
	SessionID       string    `json:"session_id,omitempty" db:"session_id"`
	WatchDurationMs *int64    `json:"watch_duration_ms,omitempty" db:"watch_duration_ms"`
	CompletionRate  *float64  `json:"completion_rate,omitempty" db:"completion_rate"`
	OccurredAt      time.Time `json:"occurred_at" db:"occurred_at"`
	RecordedAt      time.Time `json:"recorded_at" db:"recorded_at"`
}

// Deduplicable reports whether the view carries enough identity to be
// recognised when a device replays it.
func (v *ViewEvent) Deduplicable() bool {
	return v.ViewerID != "" && v.SessionID != ""
}

// Validate checks required fields and value ranges.
func (v *ViewEvent) Validate() error {
	if err := ValidateID("reel_id", v.ReelID); err != nil {
		return err
	}
	if err := ValidateID("promoter_id", v.PromoterID); err != nil {
		return err
	}
	if err := ValidateOptionalID("product_id", v.ProductID); err != nil {
		return err
	}
	if err := ValidateOptionalID("viewer_id", v.ViewerID); err != nil {
		return err
	}
	if err := ValidateOptionalID("session_id", v.SessionID); err != nil {
		return err
	}
	if v.WatchDurationMs != nil && *v.WatchDurationMs < 0 {
		return Invalid("watch_duration_ms", "must not be negative")
	}
	if v.CompletionRate != nil && (*v.CompletionRate < 0 || *v.CompletionRate > 1) {
		return Invalid("completion_rate", "must be between 0 and 1")
	}
	return nil
}

// ClickEvent records a tap through from a reel to a product. The caller
// generates ClickSessionID and later quotes it on the conversion.
type ClickEvent struct {
	ClickSessionID string            `json:"click_session_id" db:"click_session_id"`
	ReelID         string            `json:"reel_id" db:"reel_id"`
	ProductID      string            `json:"product_id" db:"product_id"`
	PromoterID     string            `json:"promoter_id" db:"promoter_id"`
	ViewerID       string            `json:"viewer_id,omitempty" db:"viewer_id"`
	DeviceInfo     map[string]string `json:"device_info,omitempty" db:"device_info"`
	OccurredAt     time.Time         `json:"occurred_at" db:"occurred_at"`
	RecordedAt     time.Time         `json:"recorded_at" db:"recorded_at"`
}

const maxDeviceInfoKeys = 32

// Validate checks required fields.
func (c *ClickEvent) Validate() error {
	if err := ValidateID("click_session_id", c.ClickSessionID); err != nil {
		return err
	}
	if err := ValidateID("reel_id", c.ReelID); err != nil {
		return err
	}
	if err := ValidateID("product_id", c.ProductID); err != nil {
		return err
	}
	if err := ValidateID("promoter_id", c.PromoterID); err != nil {
		return err
	}
	if err := ValidateOptionalID("viewer_id", c.ViewerID); err != nil {
		return err
	}
	if len(c.DeviceInfo) > maxDeviceInfoKeys {
		return Invalid("device_info", "has too many keys")
	}
	return nil
}

// ConversionEvent declares that an order resulted from a click session.
// An order converts at most once.
type ConversionEvent struct {
	OrderID        string    `json:"order_id" db:"order_id"`
	ClickSessionID string    `json:"click_session_id" db:"click_session_id"`
	OccurredAt     time.Time `json:"occurred_at" db:"occurred_at"`
	RecordedAt     time.Time `json:"recorded_at" db:"recorded_at"`
}

// AttributionFailure tracks failed attempts to turn a conversion into a
// sale. The conversion is not offered to the attribution worker again
// before NextAttemptAt.
type AttributionFailure struct {
	OrderID       string    `json:"order_id" db:"order_id"`
	Attempts      int       `json:"attempts" db:"attempts"`
	LastError     string    `json:"last_error" db:"last_error"`
	LastAttemptAt time.Time `json:"last_attempt_at" db:"last_attempt_at"`
	NextAttemptAt time.Time `json:"next_attempt_at" db:"next_attempt_at"`
}

// Validate checks required fields.
func (c *ConversionEvent) Validate() error {
	if err := ValidateID("order_id", c.OrderID); err != nil {
		return err
	}
	return ValidateID("click_session_id", c.ClickSessionID)
}
