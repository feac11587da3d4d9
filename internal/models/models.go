package models

import "time"

// User represents a user in the system
type User struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Mood            string     `json:"mood"`
	MoodLastUpdated *time.Time `json:"mood_last_updated,omitempty"`
	PairedWith      *string    `json:"paired_with,omitempty"`
	PushToken       *string    `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
}

// IsPaired reports whether the user currently has a partner
func (u *User) IsPaired() bool {
	return u.PairedWith != nil && *u.PairedWith != ""
}

// PartnerID returns the partner's id or an empty string when unpaired
func (u *User) PartnerID() string {
	if !u.IsPaired() {
		return ""
	}
	return *u.PairedWith
}

// DisplayName returns the user's name, or fallback if the name is empty
func (u *User) DisplayName(fallback string) string {
	if u == nil || u.Name == "" {
		return fallback
	}
	return u.Name
}

// Mood is the current mood of a user
type Mood struct {
	UserID      string     `json:"user_id"`
	Emoji       string     `json:"emoji"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// MoodHistoryEntry is an immutable record of a past mood update
type MoodHistoryEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Mood      string    `json:"mood"`
	Timestamp time.Time `json:"timestamp"`
}

// Reaction is an emoji notification delivered into the recipient's inbox
type Reaction struct {
	ID         string    `json:"id"`
	ToUserID   string    `json:"to_user_id"`
	FromUserID string    `json:"from_user_id"`
	FromName   string    `json:"from_name"`
	Emoji      string    `json:"emoji"`
	Timestamp  time.Time `json:"timestamp"`
}

// PairingStatus describes who, if anyone, a user is paired with
type PairingStatus struct {
	PairedWith  *string `json:"paired_with"`
	PartnerName string  `json:"partner_name,omitempty"`
	PairID      string  `json:"pair_id,omitempty"`
}

// IsPaired reports whether the status carries a partner
func (s PairingStatus) IsPaired() bool {
	return s.PairedWith != nil && *s.PairedWith != ""
}

// PartnerMood is the mood of a user's partner. HasPartner is false when the
// user is not paired; Mood is nil in that case.
type PartnerMood struct {
	HasPartner  bool   `json:"has_partner"`
	PartnerID   string `json:"partner_id,omitempty"`
	PartnerName string `json:"partner_name,omitempty"`
	Mood        *Mood  `json:"mood,omitempty"`
}
