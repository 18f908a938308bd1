package worker

type State int32

const (
	StateParsed State = iota
	StateInstalling
	StateInstalled
	StateActivating
	// StateReady is the only state in which Fetch serves requests.
	StateReady
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateReady:
		return "ready"
	case StateRedundant:
		return "redundant"
	default:
		return "unknown"
	}
}
