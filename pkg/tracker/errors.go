package tracker

import (
	"errors"
	"fmt"
	"time"
)

// ErrTripConflict is returned when a trip start is requested for a vehicle
// that already has one in progress.
var ErrTripConflict = errors.New("vehicle already has a trip in progress")

// ErrNoActiveTrip is returned when a trip stop or cancel is requested for a
// vehicle with no trip in progress.
var ErrNoActiveTrip = errors.New("vehicle has no trip in progress")

// ValidationError reports a position that failed a structural or physical
// plausibility check. The report is dropped; ingestion for other vehicles
// continues.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid position: %s %s", e.Field, e.Reason)
}

// StaleWriteError reports a position older than the currently stored live
// state for its vehicle. The current pointer is unaffected.
type StaleWriteError struct {
	VehicleID string
	Stored    time.Time
	Attempted time.Time
}

func (e *StaleWriteError) Error() string {
	return fmt.Sprintf("stale write for vehicle %s: stored %s, attempted %s",
		e.VehicleID, e.Stored.Format(time.RFC3339), e.Attempted.Format(time.RFC3339))
}
