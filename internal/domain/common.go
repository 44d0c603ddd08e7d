package domain

import "fmt"

// Side represents the direction of a position or an execution.
type Side string

const (
	SideLong  Side = "Long"
	SideShort Side = "Short"
)

// Valid reports whether s is one of the known sides.
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// Opposite returns the side that closes a position opened on s.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// ParseSide converts a wire value into a Side.
func ParseSide(v string) (Side, error) {
	switch Side(v) {
	case SideLong, SideShort:
		return Side(v), nil
	default:
		return "", fmt.Errorf("unknown side %q", v)
	}
}

// CloseReason indicates why a simulated position was closed.
type CloseReason string

const (
	CloseReasonStopLoss  CloseReason = "SL"
	CloseReasonSignal    CloseReason = "SIGNAL"      // Opposite crossover or explicit close signal
	CloseReasonEndOfData CloseReason = "END_OF_DATA" // Position force-closed on the last kline
)

// JobStatus is the lifecycle state of an optimization job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusFailed    JobStatus = "failed"
)
