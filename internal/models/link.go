package models

import "time"

// CachedLink is the resolvable form of a short link, as mirrored into the
// link cache. TargetURL is always present; every other field is optional.
type CachedLink struct {
	ID                 string     `json:"id"`
	TargetURL          string     `json:"target_url"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	ExpiredRedirectURL *string    `json:"expired_redirect_url,omitempty"`
	OGTitle            *string    `json:"og_title,omitempty"`
	OGDescription      *string    `json:"og_description,omitempty"`
	OGImageURL         *string    `json:"og_image_url,omitempty"`
	OGVideoURL         *string    `json:"og_video_url,omitempty"`
	IOSURL             *string    `json:"ios_url,omitempty"`
	AndroidURL         *string    `json:"android_url,omitempty"`
}

// Expired reports whether the link is past its expiry at the given instant.
func (l *CachedLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// GeoRecord holds the geo fields derived from a client IP. All fields may be
// empty when the lookup is unavailable or the IP is not geolocatable.
type GeoRecord struct {
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
}

// ClickEvent is the record emitted to the analytics broker, one per
// deduplicated click, keyed by LinkID.
type ClickEvent struct {
	LinkID       string `json:"link_id"`
	Timestamp    string `json:"timestamp"`
	Referrer     string `json:"referrer"`
	UserAgent    string `json:"user_agent"`
	AnonymizedIP string `json:"anonymized_ip"`
	Country      string `json:"country,omitempty"`
	Region       string `json:"region,omitempty"`
	City         string `json:"city,omitempty"`
	BrowserName  string `json:"browser_name"`
	DeviceType   string `json:"device_type"`
}
