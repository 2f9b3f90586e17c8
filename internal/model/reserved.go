package model

// Names reserved by the record layout. Feed payloads cannot use them.
const (
	FieldReceivedTS = "receivedTS"
	FieldSecurity   = "security"
	FieldBUID       = "buid"
	FieldPayload    = "fields"
	FieldSentinel   = "__sentinel"
)

// Payload field names consulted when bucketing ticks by hour.
const (
	FieldEventTime = "EVENT_TIME"
	FieldRawTime   = "TIME"
)

var reserved = [...]string{
	FieldReceivedTS,
	FieldSecurity,
	FieldBUID,
	FieldPayload,
	FieldSentinel,
}

// IsReserved reports whether name belongs to the record layout.
func IsReserved(name string) bool {
	for _, r := range reserved {
		if r == name {
			return true
		}
	}
	return false
}

// ReservedNames returns a copy of the reserved name set.
func ReservedNames() []string {
	out := make([]string, len(reserved))
	copy(out, reserved[:])
	return out
}
