package srv4

import "sync/atomic"

// State is the lifecycle state of a Protocol.
type State uint32

const (
	BootingState State = iota
	AwaitingVersionState
	ReadyState
	FaultedState
)

func (s State) String() string {
	switch s {
	case BootingState:
		return "Booting"
	case AwaitingVersionState:
		return "AwaitingVersionLine"
	case ReadyState:
		return "Ready"
	case FaultedState:
		return "Faulted"
	default:
		return "Unknown"
	}
}

// AtomicState is a State that can be read and moved concurrently.
type AtomicState struct {
	state atomic.Uint32
}

func (st *AtomicState) String() string {
	return st.Get().String()
}

// Get returns the current state.
func (st *AtomicState) Get() State {
	return State(st.state.Load())
}

// Set sets the state unconditionally.
func (st *AtomicState) Set(state State) {
	st.state.Store(uint32(state))
}

func (st *AtomicState) IsReady() bool {
	return st.Get() == ReadyState
}

func (st *AtomicState) IsFaulted() bool {
	return st.Get() == FaultedState
}

func (st *AtomicState) ToAwaitingVersion() bool {
	return st.state.CompareAndSwap(uint32(BootingState), uint32(AwaitingVersionState))
}

func (st *AtomicState) ToReady() bool {
	if st.IsReady() {
		return true
	}

	return st.state.CompareAndSwap(uint32(AwaitingVersionState), uint32(ReadyState))
}

// ToFaulted moves any state to Faulted. It reports whether this call made the move.
func (st *AtomicState) ToFaulted() bool {
	for {
		cur := st.state.Load()
		if State(cur) == FaultedState {
			return false
		}
		if st.state.CompareAndSwap(cur, uint32(FaultedState)) {
			return true
		}
	}
}
