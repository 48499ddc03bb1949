package enums

import "fmt"

// AssignmentMode describes how a vendor dispatches an order.
type AssignmentMode string

const (
	AssignmentModeSelf        AssignmentMode = "self"
	AssignmentModeDirected    AssignmentMode = "directed"
	AssignmentModeMarketplace AssignmentMode = "marketplace"
)

var validAssignmentModes = []AssignmentMode{
	AssignmentModeSelf,
	AssignmentModeDirected,
	AssignmentModeMarketplace,
}

// String implements fmt.Stringer.
func (m AssignmentMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known AssignmentMode.
func (m AssignmentMode) IsValid() bool {
	for _, candidate := range validAssignmentModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseAssignmentMode converts raw input into an AssignmentMode.
func ParseAssignmentMode(value string) (AssignmentMode, error) {
	for _, candidate := range validAssignmentModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment mode %q", value)
}
