package push

// Notification is the visible payload of a push message.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type multicastRequest struct {
	Notification Notification `json:"notification"`
	Tokens       []string     `json:"tokens"`
}

type multicastResponse struct {
	Responses []struct {
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	} `json:"responses"`
}

// SendResult is the delivery outcome for one token.
type SendResult struct {
	Token   string
	Success bool
	Error   string
}

// Unregistered reports whether the target is dead and should be pruned from
// the rider's directory entry, as opposed to a transient delivery failure.
func (r SendResult) Unregistered() bool {
	switch r.Error {
	case "unregistered", "invalid-token":
		return true
	}
	return false
}

// MulticastResult aggregates one fan-out pass. Responses are in token order
// across all batches.
type MulticastResult struct {
	SuccessCount int
	FailureCount int
	Responses    []SendResult
}
