package session

// State is the turn-taking state of a session.
type State int

const (
	// StateIdle is the initial state before the stream is ready.
	StateIdle State = iota

	// StateListening means the session is waiting for user speech.
	StateListening

	// StateThinking means a reply is being generated.
	StateThinking

	// StateSpeaking means reply audio is streaming out.
	StateSpeaking
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateThinking:
		return "thinking"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}
