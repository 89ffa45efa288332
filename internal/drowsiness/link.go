package drowsiness

// DefaultHeartbeatFrames bounds how many frames may pass without a send.
const DefaultHeartbeatFrames = 30

// SendReason explains a scheduling decision.
type SendReason string

const (
	ReasonSkip      SendReason = "skip"
	ReasonChange    SendReason = "change"
	ReasonHeartbeat SendReason = "heartbeat"
)

// LinkState tracks delivery discipline only. LastSent is zero until the first
// send; zero is never a valid code.
type LinkState struct {
	LastSent        byte
	FramesSinceSend int
}

// Decision is the scheduler's verdict for one frame.
type Decision struct {
	Code   byte
	Send   bool
	Reason SendReason
}

// LinkScheduler decides each frame whether the current code goes out on the
// serial link. A changed code is sent immediately; an unchanged code is
// re-sent as a heartbeat so a receiver can tell a stalled sender from a
// steady state.
type LinkScheduler struct {
	heartbeat int
	state     LinkState
}

// NewLinkScheduler creates a scheduler with the given heartbeat interval in
// frames. Intervals below one are raised to one.
func NewLinkScheduler(heartbeatFrames int) *LinkScheduler {
	if heartbeatFrames < 1 {
		heartbeatFrames = 1
	}
	return &LinkScheduler{heartbeat: heartbeatFrames}
}

// Schedule updates the link state for this frame's level. The current frame
// counts toward the heartbeat, so an unchanged code is sent at least once in
// every run of heartbeatFrames consecutive frames.
func (s *LinkScheduler) Schedule(level Level) Decision {
	code := level.Code()
	s.state.FramesSinceSend++

	reason := ReasonSkip
	switch {
	case code != s.state.LastSent:
		reason = ReasonChange
	case s.state.FramesSinceSend >= s.heartbeat:
		reason = ReasonHeartbeat
	}

	if reason == ReasonSkip {
		return Decision{Code: code, Reason: reason}
	}
	s.state.LastSent = code
	s.state.FramesSinceSend = 0
	return Decision{Code: code, Send: true, Reason: reason}
}

// State returns a copy of the link state.
func (s *LinkScheduler) State() LinkState {
	return s.state
}
