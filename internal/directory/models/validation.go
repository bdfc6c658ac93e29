package models

import (
	"regexp"
	"strings"

	dErrors "directory/pkg/domain-errors"
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9\s-]{7,15}$`)
)

// IsValidName reports whether s has any non-space content.
func IsValidName(s string) bool {
	return strings.TrimSpace(s) != ""
}

// IsValidEmail reports whether s is email-shaped. Surrounding spaces are ignored.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// IsValidPhone accepts digits, spaces and dashes with an optional leading +,
// 7 to 15 characters after the +. Surrounding spaces are ignored.
func IsValidPhone(s string) bool {
	return phonePattern.MatchString(strings.TrimSpace(s))
}

// ValidateID rejects non-positive identifiers.
func ValidateID(id int64) error {
	if id <= 0 {
		return dErrors.New(dErrors.CodeValidation, "invalid ID provided: ID must be greater than 0")
	}
	return nil
}

func (l Location) Validate() error {
	if !IsValidName(l.City) {
		return invalidField(FieldCity, l.City, "must not be empty")
	}
	return nil
}

func (s Service) Validate() error {
	if !IsValidName(s.Name) {
		return invalidField(FieldName, s.Name, "must not be empty")
	}
	return nil
}

// Validate checks every worker field and reports the first offending one.
// Foreign keys are only checked for shape here; existence is the service's job.
func (w Worker) Validate() error {
	if !IsValidName(w.FirstName) {
		return invalidField(FieldFirstName, w.FirstName, "must not be empty")
	}
	if !IsValidName(w.LastName) {
		return invalidField(FieldLastName, w.LastName, "must not be empty")
	}
	if !IsValidEmail(w.Email) {
		return invalidField(FieldEmail, w.Email, "invalid email format")
	}
	if !IsValidPhone(w.PhoneFixed) {
		return invalidField(FieldPhoneFixed, w.PhoneFixed, "invalid phone number format")
	}
	if !IsValidPhone(w.PhoneMobile) {
		return invalidField(FieldPhoneMobile, w.PhoneMobile, "invalid phone number format")
	}
	if w.LocationID <= 0 {
		return dErrors.Newf(dErrors.CodeValidation, "%s: must be greater than 0, got %d", FieldLocationID, w.LocationID)
	}
	if w.ServiceID <= 0 {
		return dErrors.Newf(dErrors.CodeValidation, "%s: must be greater than 0, got %d", FieldServiceID, w.ServiceID)
	}
	return nil
}

func invalidField(field, value, reason string) error {
	return dErrors.Newf(dErrors.CodeValidation, "%s: %s '%s'", field, reason, value)
}
