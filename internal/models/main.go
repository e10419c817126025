// Package models defines the core data structures shared by the GlycoKeeper
// client and the reference backend: users, glucose readings, tokens, profile
// data and dashboard module snapshots.
package models

import (
	"encoding/json"
	"time"
)

// User represents an account holder as returned by the backend.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`
	// Email is the login of the user.
	Email string `json:"email"`
	// FirstName and LastName are display names.
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	// PasswordHash is the bcrypt hash of the password. Never serialized.
	PasswordHash []byte `json:"-"`
}

// Source tells where a glucose reading came from.
type Source string

const (
	// SourceManual marks a reading typed in by the user.
	SourceManual Source = "manual"
	// SourceCGM marks a reading ingested from a continuous glucose monitor feed.
	SourceCGM Source = "cgm"
)

// GlycemiaEntry is a single stored glucose reading. Entries are immutable
// once stored and owned by the user's account.
type GlycemiaEntry struct {
	// ID is the unique identifier for the entry.
	ID string `json:"id"`
	// Value is the glucose level in mg/dL.
	Value int `json:"value"`
	// MeasuredAt is the time the reading was taken.
	MeasuredAt time.Time `json:"measured_at"`
	// Context is an optional free-form tag ("fasting", "after_meal", ...).
	Context string `json:"context,omitempty"`
	// Source is manual or cgm.
	Source Source `json:"source"`
	// Notes holds optional user notes.
	Notes string `json:"notes,omitempty"`
}

// NewEntry is the payload used to create a reading.
type NewEntry struct {
	Value      int       `json:"value" validate:"required,min=20,max=600"`
	MeasuredAt time.Time `json:"measured_at" validate:"required"`
	Context    string    `json:"context,omitempty" validate:"max=64"`
	Notes      string    `json:"notes,omitempty" validate:"max=500"`
}

// GlycemiaStats is the aggregate the backend computes over a period.
type GlycemiaStats struct {
	Period  string  `json:"period"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Min     int     `json:"min"`
	Max     int     `json:"max"`
	// TimeInRange is the fraction (0..1) of readings inside the target band.
	TimeInRange float64 `json:"time_in_range"`
	Below       int     `json:"below"`
	Above       int     `json:"above"`
	TargetMin   int     `json:"target_min"`
	TargetMax   int     `json:"target_max"`
}

// AuthTokens is the access/refresh pair issued by the backend.
type AuthTokens struct {
	Access  string `json:"access_token"`
	Refresh string `json:"refresh_token"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	AuthTokens
	User User `json:"user"`
}

// Profile holds the health profile of a user.
type Profile struct {
	UserID       string `json:"user_id"`
	FirstName    string `json:"first_name" validate:"max=100"`
	LastName     string `json:"last_name" validate:"max=100"`
	Phone        string `json:"phone,omitempty" validate:"max=32"`
	DiabetesType string `json:"diabetes_type,omitempty" validate:"omitempty,oneof=type1 type2 gestational other"`
	// TargetMin and TargetMax bound the time-in-range band in mg/dL.
	TargetMin int `json:"target_min" validate:"omitempty,min=40,max=400"`
	TargetMax int `json:"target_max" validate:"omitempty,min=40,max=400,gtfield=TargetMin"`
}

// EmergencyContact is a person to call in case of emergency.
type EmergencyContact struct {
	ID           string `json:"id"`
	Name         string `json:"name" validate:"required,max=100"`
	Phone        string `json:"phone" validate:"required,max=32"`
	Relationship string `json:"relationship,omitempty" validate:"max=50"`
}

// Doctor holds the contact details of the user's doctor.
type Doctor struct {
	Name      string  `json:"name" validate:"required,max=100"`
	Specialty string  `json:"specialty,omitempty" validate:"max=100"`
	Phone     string  `json:"phone,omitempty" validate:"max=32"`
	Email     string  `json:"email,omitempty" validate:"omitempty,email"`
	Address   string  `json:"address,omitempty" validate:"max=300"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// Module identifies a dashboard module.
type Module string

const (
	ModuleGlucose    Module = "glucose"
	ModuleMedication Module = "medication"
	ModuleNutrition  Module = "nutrition"
	ModuleActivity   Module = "activity"
	ModuleAlerts     Module = "alerts"
)

// DashboardModules lists the modules aggregated by the dashboard, in display order.
var DashboardModules = []Module{ModuleGlucose, ModuleMedication, ModuleNutrition, ModuleActivity, ModuleAlerts}

// Valid reports whether m is a known dashboard module.
func (m Module) Valid() bool {
	for _, known := range DashboardModules {
		if m == known {
			return true
		}
	}
	return false
}

// ModuleSnapshot is the latest state of one dashboard module.
type ModuleSnapshot struct {
	Module    Module          `json:"module"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// GlucoseSnapshot is the data of the glucose module.
type GlucoseSnapshot struct {
	Latest *GlycemiaEntry `json:"latest"`
	Stats  GlycemiaStats  `json:"stats"`
}
