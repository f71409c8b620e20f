package tournament

import "fmt"

// Status values are persisted as integers.
type Status int

const (
	Created  Status = 0
	Started  Status = 1
	Aborted  Status = 2
	Finished Status = 3
	Archived Status = 4
)

func (s Status) String() string {
	switch s {
	case Created:
		return "created"
	case Started:
		return "started"
	case Aborted:
		return "aborted"
	case Finished:
		return "finished"
	case Archived:
		return "archived"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) valid() bool { return s >= Created && s <= Archived }

// Live reports created or started.
func (s Status) Live() bool { return s == Created || s == Started }

// Over reports aborted, finished or archived.
func (s Status) Over() bool { return s == Aborted || s == Finished || s == Archived }

var transitions = map[Status][]Status{
	Created:  {Started},
	Started:  {Aborted, Finished},
	Aborted:  {Archived},
	Finished: {Archived},
}

func canTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
