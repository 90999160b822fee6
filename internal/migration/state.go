package migration

import "fmt"

// State is a step of a migration run.
type State string

const (
	StateIdle                  State = "IDLE"
	StateBackingUp             State = "BACKING_UP"
	StateAnalyzing             State = "ANALYZING"
	StateMigratingTransactions State = "MIGRATING_TRANSACTIONS"
	StateMigratingRules        State = "MIGRATING_RULES"
	StateClearingDerivedCaches State = "CLEARING_DERIVED_CACHES"
	StateReporting             State = "REPORTING"
	StateDone                  State = "DONE"
	StateRollingBack           State = "ROLLING_BACK"
	StateRolledBack            State = "ROLLED_BACK"
	StateFailed                State = "FAILED"
)

var transitions = map[State][]State{
	StateIdle:                  {StateBackingUp},
	StateBackingUp:             {StateAnalyzing, StateFailed},
	StateAnalyzing:             {StateMigratingTransactions, StateRollingBack},
	StateMigratingTransactions: {StateMigratingRules, StateRollingBack},
	StateMigratingRules:        {StateClearingDerivedCaches, StateRollingBack},
	StateClearingDerivedCaches: {StateReporting, StateRollingBack},
	StateReporting:             {StateDone, StateRollingBack},
	StateRollingBack:           {StateRolledBack, StateFailed},
}

// CanTransition reports whether the run may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

type stateMachine struct {
	current State
	history []State
}

func newStateMachine() *stateMachine {
	return &stateMachine{current: StateIdle, history: []State{StateIdle}}
}

func (m *stateMachine) to(next State) error {
	if !CanTransition(m.current, next) {
		return fmt.Errorf("illegal migration transition %s -> %s", m.current, next)
	}
	m.current = next
	m.history = append(m.history, next)
	return nil
}

func (m *stateMachine) State() State {
	return m.current
}
