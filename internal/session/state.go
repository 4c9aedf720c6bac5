package session

// ConnState tracks the connection lifecycle. Transitions:
// disconnected → connecting → connected → listening, reconnecting after an
// unexpected drop, connError from any point.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Listening
	Reconnecting
	ConnError
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Listening:
		return "listening"
	case Reconnecting:
		return "reconnecting"
	case ConnError:
		return "error"
	}
	return "unknown"
}

// TurnState tracks one translation exchange. At most one turn is ever in
// flight: submit moves idle → submitted, the first delta moves submitted →
// streaming, completion or error returns to idle.
type TurnState int

const (
	TurnIdle TurnState = iota
	TurnSubmitted
	TurnStreaming
)

func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnSubmitted:
		return "submitted"
	case TurnStreaming:
		return "streaming"
	}
	return "unknown"
}

// inFlight reports whether a new submission must be withheld.
func (s TurnState) inFlight() bool {
	return s != TurnIdle
}
