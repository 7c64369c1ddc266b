package message

import (
	"encoding/json"
	"fmt"
)

// Status represents the lifecycle state of a connector message as it moves
// through receipt, filtering, transformation and dispatch.
type Status int

const (
	// StatusReceived marks a message that has been accepted but not yet processed.
	StatusReceived Status = iota
	// StatusFiltered marks a message rejected by a filter. Filtering is a normal
	// outcome, not an error.
	StatusFiltered
	// StatusTransformed marks a message whose transformer chain completed.
	StatusTransformed
	// StatusSent marks a message successfully delivered by a connector.
	StatusSent
	// StatusQueued marks a message accepted for deferred delivery.
	StatusQueued
	// StatusError marks a message whose processing or delivery failed.
	StatusError
	// StatusPending marks a destination placeholder that has not been
	// dispatched yet.
	StatusPending
)

var statusNames = map[Status]string{
	StatusReceived:    "RECEIVED",
	StatusFiltered:    "FILTERED",
	StatusTransformed: "TRANSFORMED",
	StatusSent:        "SENT",
	StatusQueued:      "QUEUED",
	StatusError:       "ERROR",
	StatusPending:     "PENDING",
}

var statusCodes = map[Status]string{
	StatusReceived:    "R",
	StatusFiltered:    "F",
	StatusTransformed: "T",
	StatusSent:        "S",
	StatusQueued:      "Q",
	StatusError:       "E",
	StatusPending:     "P",
}

// String returns the full status name, e.g. "SENT".
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Code returns the single-character status code used in compact
// representations: R, F, T, S, Q, E or P.
func (s Status) Code() string {
	if code, ok := statusCodes[s]; ok {
		return code
	}
	return "?"
}

// IsValid reports whether s is one of the defined statuses.
func (s Status) IsValid() bool {
	_, ok := statusNames[s]
	return ok
}

// StatusFromCode resolves a single-character status code back to its Status.
func StatusFromCode(code string) (Status, error) {
	for status, c := range statusCodes {
		if c == code {
			return status, nil
		}
	}
	return StatusError, fmt.Errorf("unknown status code: %q", code)
}

// MarshalJSON emits the status as its full name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts a full status name or a single-character code.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for status, n := range statusNames {
		if n == name {
			*s = status
			return nil
		}
	}
	if status, err := StatusFromCode(name); err == nil {
		*s = status
		return nil
	}
	return fmt.Errorf("unknown status: %q", name)
}
