// Package customer manages the profiles that shape each tenant's
// assistant: identity, personality, greeting, and voice.
package customer

import (
	"errors"
	"time"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a customer does not exist.
	ErrNotFound = errors.New("customer: not found")

	// ErrEmptyCompanyName is returned when a profile has no company name.
	ErrEmptyCompanyName = errors.New("customer: company name is required")
)

// Defaults applied to fields a created profile leaves blank.
const (
	DefaultBotName     = "Assistant"
	DefaultPersonality = "Be friendly, professional, and concise."
	DefaultGreeting    = "Hello! How can I help you today?"
)

// Profile configures one customer's assistant.
type Profile struct {
	// ID is the customer's unique identifier.
	ID string `json:"id"`

	// CompanyName is the customer's company name.
	CompanyName string `json:"company_name"`

	// BotName is the assistant's spoken name.
	BotName string `json:"bot_name"`

	// Personality holds behavior instructions injected into every prompt.
	Personality string `json:"personality"`

	// Greeting is spoken when a call starts.
	Greeting string `json:"greeting"`

	// VoiceID selects the TTS voice (short name or provider voice ID).
	VoiceID string `json:"voice_id,omitempty"`

	// CreatedAt is when the profile was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the profile last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// applyDefaults fills blank optional fields.
func (p *Profile) applyDefaults() {
	if p.BotName == "" {
		p.BotName = DefaultBotName
	}
	if p.Personality == "" {
		p.Personality = DefaultPersonality
	}
	if p.Greeting == "" {
		p.Greeting = DefaultGreeting
	}
}

// Store persists customer profiles.
type Store interface {
	// Create adds a profile, assigning its ID and timestamps.
	Create(profile *Profile) error

	// Get returns a profile by ID.
	Get(id string) (*Profile, error)

	// List returns all profiles.
	List() ([]*Profile, error)

	// Update replaces a profile's mutable fields.
	Update(profile *Profile) error

	// Delete removes a profile.
	Delete(id string) error
}
