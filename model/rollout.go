package model

// EpisodePhase is the lifecycle position of a rollout's environment episode.
type EpisodePhase int

const (
	PhasePending EpisodePhase = iota
	PhaseRunning
	PhaseTerminal
)

func (p EpisodePhase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseRunning:
		return "running"
	case PhaseTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Outcome describes how a terminal episode ended.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeFailure
	OutcomeTruncated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTruncated:
		return "truncated"
	default:
		return "none"
	}
}

// RolloutState is the per-episode state owned by the agent loop.
//
// Backends may mark a rollout terminal as a side effect of a call; the agent
// loop must stop driving a rollout once Finished is true. A RolloutState is
// owned by one rollout and is not safe for concurrent mutation.
type RolloutState struct {
	ID             int        `json:"id"`
	AvailableTools []ToolSpec `json:"available_tools"`
	// Functions holds the source of the functions bound to AvailableTools,
	// for datasets whose tools execute locally.
	Functions []string `json:"functions,omitempty"`
	Finished  bool     `json:"finished"`
	Success   bool     `json:"success"`
	Reward    float64  `json:"reward"`
	EnvID     *int     `json:"env_id,omitempty"`

	Phase   EpisodePhase `json:"-"`
	Outcome Outcome      `json:"-"`
	Steps   int          `json:"-"`
}

// EnvIndex returns the environment slot for this rollout: EnvID when set,
// otherwise ID.
func (s *RolloutState) EnvIndex() int {
	if s.EnvID != nil {
		return *s.EnvID
	}
	return s.ID
}

// Begin moves a pending episode to running and counts one step.
// It has no effect on a terminal episode.
func (s *RolloutState) Begin() {
	if s.Phase == PhaseTerminal {
		return
	}
	s.Phase = PhaseRunning
	s.Steps++
}

// Finish makes the episode terminal and sets the observable completion
// fields. Only the first call has an effect.
func (s *RolloutState) Finish(outcome Outcome, reward float64) {
	if s.Phase == PhaseTerminal {
		return
	}
	s.Phase = PhaseTerminal
	s.Outcome = outcome
	s.Finished = true
	s.Success = outcome == OutcomeSuccess
	s.Reward = reward
}

// Terminal reports whether the episode has ended.
func (s *RolloutState) Terminal() bool {
	return s.Phase == PhaseTerminal || s.Finished
}
