package eld

// DutyStatus is the duty status of a segment.
type DutyStatus int

const (
	OffDuty DutyStatus = iota
	Sleeper
	Driving
	OnDuty
	PersonalConveyance
	YardMove
)

var statusTags = [...]string{
	OffDuty:            "OffDuty",
	Sleeper:            "Sleeper",
	Driving:            "Driving",
	OnDuty:             "OnDuty",
	PersonalConveyance: "PersonalConveyance",
	YardMove:           "YardMove",
}

var statusLabels = [...]string{
	OffDuty:            "Off Duty",
	Sleeper:            "Sleeper Berth",
	Driving:            "Driving",
	OnDuty:             "On Duty",
	PersonalConveyance: "Personal Conveyance",
	YardMove:           "Yard Move",
}

// AllStatuses lists every duty status in display order.
var AllStatuses = []DutyStatus{OffDuty, Sleeper, Driving, OnDuty, PersonalConveyance, YardMove}

// BillableStatuses are the statuses counted in AggregateHours.
var BillableStatuses = []DutyStatus{OffDuty, Sleeper, Driving, OnDuty}

// String returns the persisted tag of the status.
func (s DutyStatus) String() string {
	if s < 0 || int(s) >= len(statusTags) {
		return "Unknown"
	}
	return statusTags[s]
}

// Label returns the human readable name shown on the log grid.
func (s DutyStatus) Label() string {
	if s < 0 || int(s) >= len(statusLabels) {
		return "Unknown"
	}
	return statusLabels[s]
}

// Billable reports whether the status contributes to aggregate hours.
func (s DutyStatus) Billable() bool {
	switch s {
	case OffDuty, Sleeper, Driving, OnDuty:
		return true
	default:
		return false
	}
}

// ParseStatus decodes any status tag, including PersonalConveyance and YardMove.
// ok is false for unrecognized tags.
func ParseStatus(tag string) (status DutyStatus, ok bool) {
	for i, t := range statusTags {
		if t == tag {
			return DutyStatus(i), true
		}
	}
	return OffDuty, false
}

// decodeStoredStatus decodes a tag read back from storage. Only the four
// billable tags are accepted; everything else takes the unrecognized branch.
func decodeStoredStatus(tag string) (DutyStatus, bool) {
	switch tag {
	case "OffDuty":
		return OffDuty, true
	case "Sleeper":
		return Sleeper, true
	case "Driving":
		return Driving, true
	case "OnDuty":
		return OnDuty, true
	default:
		return OffDuty, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s DutyStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *DutyStatus) UnmarshalText(data []byte) error {
	status, ok := ParseStatus(string(data))
	if !ok {
		return &ValidationError{Kind: KindInvalidStatus, Field: "status", Message: "unknown duty status: " + string(data)}
	}
	*s = status
	return nil
}
