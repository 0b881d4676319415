package patients

import "errors"

var (
	// ErrNotFound is returned when no patient matches the lookup.
	ErrNotFound = errors.New("patients: not found")

	// ErrMissingIdentity is returned when phone or doctor id is empty.
	ErrMissingIdentity = errors.New("patients: phone number and doctor id are required")
)
