package domain

import (
	"encoding/json"
	"time"
)

// Bookmark is the local mirror of one remote post.
// URL is the natural key: a store never holds two bookmarks with the same URL.
type Bookmark struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// URL is the bookmarked address and the unique key.
	URL string `json:"url"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	Title       string `json:"title"`
	Description string `json:"description"`

	// Tags is the space separated tag list, as the remote service stores it.
	Tags string `json:"tags"`

	// ─────────────────────────────
	// Flags
	// ─────────────────────────────

	Private bool `json:"private"`
	Unread  bool `json:"unread"`

	// ─────────────────────────────
	// Sync metadata
	// ─────────────────────────────

	// Date is the remote modification time, or the local time of the last
	// create or edit until the next full sync replaces it.
	Date time.Time `json:"date"`

	// Fingerprint is the remote content token last observed for this URL.
	Fingerprint Fingerprint `json:"fingerprint"`
}

// Clone returns a deep copy.
func (b *Bookmark) Clone() *Bookmark {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// Fingerprint is the opaque content hash the remote service assigns to a
// post. The zero value is unconfirmed: the record was written locally and no
// full sync has reported it yet.
type Fingerprint struct {
	value     string
	confirmed bool
}

// Unconfirmed is the fingerprint of a locally written record.
func Unconfirmed() Fingerprint { return Fingerprint{} }

// Confirmed wraps a fingerprint reported by the remote service.
func Confirmed(value string) Fingerprint { return Fingerprint{value: value, confirmed: true} }

// Value returns the remote fingerprint and whether one is known.
func (f Fingerprint) Value() (string, bool) { return f.value, f.confirmed }

func (f Fingerprint) IsConfirmed() bool { return f.confirmed }

// Matches reports whether f is confirmed and equal to the remote value.
// An unconfirmed fingerprint never matches.
func (f Fingerprint) Matches(remote string) bool {
	return f.confirmed && f.value == remote
}

func (f Fingerprint) String() string {
	if !f.confirmed {
		return "unconfirmed"
	}
	return f.value
}

// MarshalJSON encodes an unconfirmed fingerprint as null.
func (f Fingerprint) MarshalJSON() ([]byte, error) {
	if !f.confirmed {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

func (f *Fingerprint) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Unconfirmed()
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Confirmed(v)
	return nil
}

// Patch is a partial edit. Nil fields are left untouched.
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Tags        *string `json:"tags,omitempty"`
	Private     *bool   `json:"private,omitempty"`
	Unread      *bool   `json:"unread,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Tags == nil && p.Private == nil && p.Unread == nil
}

// ApplyTo writes the set fields of p into b.
func (p Patch) ApplyTo(b *Bookmark) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Tags != nil {
		b.Tags = *p.Tags
	}
	if p.Private != nil {
		b.Private = *p.Private
	}
	if p.Unread != nil {
		b.Unread = *p.Unread
	}
}
