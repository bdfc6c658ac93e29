// Package models defines the directory entities and their field rules.
package models

import "strings"

// Kind names an entity kind. It prefixes cache keys, event types and error messages.
type Kind string

const (
	KindLocation Kind = "location"
	KindService  Kind = "service"
	KindWorker   Kind = "worker"
)

// Title returns the capitalised kind for user-facing messages.
func (k Kind) Title() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Field names shared by projection schemas, query criteria and SQL column maps.
const (
	FieldID          = "id"
	FieldCity        = "city"
	FieldName        = "name"
	FieldFirstName   = "firstName"
	FieldLastName    = "lastName"
	FieldEmail       = "email"
	FieldPhoneFixed  = "phoneFixed"
	FieldPhoneMobile = "phoneMobile"
	FieldLocationID  = "locationId"
	FieldServiceID   = "serviceId"
)

// Location is a site workers are attached to. City is the natural key.
type Location struct {
	ID   int64  `json:"id"`
	City string `json:"city"`
}

// Service is a department workers belong to. Name is the natural key.
type Service struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Worker is a directory entry. Email is the natural key; LocationID and
// ServiceID must reference existing rows.
type Worker struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	PhoneFixed  string `json:"phoneFixed"`
	PhoneMobile string `json:"phoneMobile"`
	LocationID  int64  `json:"locationId"`
	ServiceID   int64  `json:"serviceId"`
}

// NormalizeKey folds a natural key for uniqueness comparison.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalize trims the text fields in place.
func (l *Location) Normalize() {
	l.City = strings.TrimSpace(l.City)
}

// Normalize trims the text fields in place.
func (s *Service) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
}

// Normalize trims the text fields in place.
func (w *Worker) Normalize() {
	w.FirstName = strings.TrimSpace(w.FirstName)
	w.LastName = strings.TrimSpace(w.LastName)
	w.Email = strings.TrimSpace(w.Email)
	w.PhoneFixed = strings.TrimSpace(w.PhoneFixed)
	w.PhoneMobile = strings.TrimSpace(w.PhoneMobile)
}
