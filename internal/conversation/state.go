// ABOUTME: Conversation state machine phases and the published projection
// ABOUTME: Snapshot is the immutable view handed to subscribers

package conversation

import "github.com/raikolabs/chatsync/internal/store"

// Phase is the coarse lifecycle of the active exchange.
type Phase int

const (
	// PhaseCompleted is the resting state: no exchange in flight.
	PhaseCompleted Phase = iota
	// PhaseLoading means a remote query is in flight.
	PhaseLoading
	// PhaseError is the resting state after a failed exchange.
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseError:
		return "error"
	default:
		return "completed"
	}
}

// State pairs a phase with the error message that put it there.
// Err is empty unless Phase is PhaseError.
type State struct {
	Phase Phase
	Err   string
}

// Snapshot is a point-in-time copy of the service projection. All
// slices and pointers are owned by the receiver; mutating them never
// affects the service.
type Snapshot struct {
	State         State
	Conversations []*store.Conversation
	Selected      *store.Conversation
	Messages      []*store.Message
}
