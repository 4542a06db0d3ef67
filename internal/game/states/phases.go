package states

import "fmt"

// GamePhase is the lifecycle phase of a single game.
type GamePhase int

const (
	// PhaseActive - at least one direction was legal at the last terminal check
	PhaseActive GamePhase = iota

	// PhaseTerminal - a terminal check found no legal direction; absorbing
	PhaseTerminal
)

func (p GamePhase) String() string {
	switch p {
	case PhaseActive:
		return "Active"
	case PhaseTerminal:
		return "Terminal"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

func (p GamePhase) IsTerminal() bool { return p == PhaseTerminal }

// CanReceiveActions returns true if the game can process actions in this phase
func (p GamePhase) CanReceiveActions() bool { return p == PhaseActive }

// AllowedTransitions returns the valid phases this phase can transition to
func (p GamePhase) AllowedTransitions() []GamePhase {
	switch p {
	case PhaseActive:
		return []GamePhase{PhaseTerminal}
	default:
		return []GamePhase{}
	}
}

func (p GamePhase) CanTransitionTo(target GamePhase) bool {
	for _, phase := range p.AllowedTransitions() {
		if phase == target {
			return true
		}
	}
	return false
}

// ParsePhase converts a string produced by String back to a GamePhase.
func ParsePhase(s string) (GamePhase, error) {
	switch s {
	case "Active":
		return PhaseActive, nil
	case "Terminal":
		return PhaseTerminal, nil
	default:
		return PhaseActive, fmt.Errorf("unknown phase %q", s)
	}
}
