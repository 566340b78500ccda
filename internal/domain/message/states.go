package message

// Status is the delivery state of a message.
type Status string

const (
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

var statusRank = map[Status]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// CanTransition reports whether a status change is legal. Status is
// monotonic except failed, which is reachable from sending only.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if to == StatusFailed {
		return from == StatusSending
	}
	if from == StatusFailed {
		return false
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}
