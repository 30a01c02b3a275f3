package relay

// State is the position of one inbound event in the relay pipeline
type State int

const (
	Received State = iota
	Validated
	ConfigResolved
	SelfMessageCheck
	Orchestrated
	Relayed
	Dropped
	Errored
)

var stateNames = [...]string{
	Received:         "received",
	Validated:        "validated",
	ConfigResolved:   "config_resolved",
	SelfMessageCheck: "self_message_check",
	Orchestrated:     "orchestrated",
	Relayed:          "relayed",
	Dropped:          "dropped",
	Errored:          "errored",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether processing stops in this state
func (s State) Terminal() bool {
	return s == Relayed || s == Dropped || s == Errored
}
