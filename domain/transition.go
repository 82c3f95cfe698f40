package domain

// Transition is the result of a registry mutation for one user.
type Transition int

const (
	// Untracked means the registry was not modified: the connection was never
	// registered or has already been removed.
	Untracked Transition = iota
	// FirstConnection means the user went from zero to one connection.
	FirstConnection
	AdditionalConnection
	StillConnected
	// LastConnection means the user went from one to zero connections.
	LastConnection
)

func (t Transition) String() string {
	switch t {
	case FirstConnection:
		return "first_connection"
	case AdditionalConnection:
		return "additional_connection"
	case StillConnected:
		return "still_connected"
	case LastConnection:
		return "last_connection"
	default:
		return "untracked"
	}
}

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)
