package negotiator

// State is where a connection to one remote peer stands in the handshake.
type State int

const (
	StateIdle State = iota
	StateOfferCreated
	StateOfferSent
	StateOfferReceived
	StateAnswerSent
	StateAnswerReceived
	StateCandidatesExchanging
	StateConnected
	StateClosed
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:                 "idle",
	StateOfferCreated:         "offer_created",
	StateOfferSent:            "offer_sent",
	StateOfferReceived:        "offer_received",
	StateAnswerSent:           "answer_sent",
	StateAnswerReceived:       "answer_received",
	StateCandidatesExchanging: "candidates_exchanging",
	StateConnected:            "connected",
	StateClosed:               "closed",
	StateFailed:               "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// transitions lists the forward moves. Closed and Failed are reachable from
// every non-terminal state and are not repeated here.
var transitions = map[State][]State{
	StateIdle:                 {StateOfferCreated, StateOfferReceived},
	StateOfferCreated:         {StateOfferSent},
	StateOfferSent:            {StateAnswerReceived},
	StateOfferReceived:        {StateAnswerSent},
	StateAnswerSent:           {StateCandidatesExchanging, StateConnected},
	StateAnswerReceived:       {StateCandidatesExchanging, StateConnected},
	StateCandidatesExchanging: {StateConnected},
}

func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to.Terminal() {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
