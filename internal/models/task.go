package models

import (
	"time"

	"github.com/google/uuid"
)

// Social platforms a task can target.
const (
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformTwitter   = "twitter"
	PlatformTikTok    = "tiktok"
	PlatformLinkedIn  = "linkedin"
	PlatformYouTube   = "youtube"
)

// KnownPlatforms is the set of platform tags tasks may carry.
var KnownPlatforms = map[string]bool{
	PlatformFacebook:  true,
	PlatformInstagram: true,
	PlatformTwitter:   true,
	PlatformTikTok:    true,
	PlatformLinkedIn:  true,
	PlatformYouTube:   true,
}

// Task is immutable once created; expiry is the only lifecycle event and an
// expired task is never un-expired.
type Task struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Platform    string    `json:"platform"`
	RewardCents int64     `json:"reward_cents"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Expired reports whether the task's expiry has passed at the given instant.
func (t *Task) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
