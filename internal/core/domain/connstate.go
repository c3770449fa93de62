package domain

// ConnState is the live-channel lifecycle state. Exactly one is active at a
// time; the supervisory loop in usecases.LiveService owns all transitions.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StatePolledFallback
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StatePolledFallback:
		return "polled_fallback"
	default:
		return "unknown"
	}
}
