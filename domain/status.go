package domain

// Status is the delivery state of a message.
// The zero value is not valid; locally created messages start as StatusPending.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// rank defines the total order pending < sent < delivered < read.
var rank = map[Status]int{
	StatusPending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

func (s Status) Valid() bool {
	_, ok := rank[s]
	return ok
}

// AtLeast reports whether s ranks equal to or higher than other.
func (s Status) AtLeast(other Status) bool {
	return rank[s] >= rank[other]
}

// Merge returns the higher-ranked of the two statuses.
// Applying updates through Merge makes status handling idempotent and
// safe against duplicate or out-of-order delivery from the transport.
func (s Status) Merge(other Status) Status {
	if !other.Valid() {
		return s
	}
	if rank[other] > rank[s] {
		return other
	}
	return s
}
