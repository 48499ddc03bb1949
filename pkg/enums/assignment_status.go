package enums

import "fmt"

// AssignmentStatus tracks the lifecycle of a delivery assignment.
type AssignmentStatus string

const (
	AssignmentStatusPending   AssignmentStatus = "pending"
	AssignmentStatusAccepted  AssignmentStatus = "accepted"
	AssignmentStatusPickedUp  AssignmentStatus = "picked_up"
	AssignmentStatusDelivered AssignmentStatus = "delivered"
	AssignmentStatusExpired   AssignmentStatus = "expired"
	AssignmentStatusCancelled AssignmentStatus = "cancelled"
)

var validAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusPending,
	AssignmentStatusAccepted,
	AssignmentStatusPickedUp,
	AssignmentStatusDelivered,
	AssignmentStatusExpired,
	AssignmentStatusCancelled,
}

// String implements fmt.Stringer.
func (a AssignmentStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AssignmentStatus.
func (a AssignmentStatus) IsValid() bool {
	for _, candidate := range validAssignmentStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (a AssignmentStatus) IsTerminal() bool {
	return a == AssignmentStatusDelivered || a == AssignmentStatusExpired || a == AssignmentStatusCancelled
}

// ParseAssignmentStatus converts raw input into an AssignmentStatus.
func ParseAssignmentStatus(value string) (AssignmentStatus, error) {
	for _, candidate := range validAssignmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment status %q", value)
}
