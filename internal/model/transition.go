package model

// Sample is one normalised (input, ground-truth mask) pair from a data source.
type Sample struct {
	Input  Field `json:"input"`
	Target Field `json:"target"`
}

// State is the environment state seen by the policy.
type State struct {
	Input  Field `json:"input"`
	Target Field `json:"target"`
}

// Transition is a single-step terminal episode. NextState equals State.
type Transition struct {
	Seq       uint64 `json:"seq"`
	State     State  `json:"state"`
	Action    Field  `json:"action"`
	Reward    Field  `json:"reward"`
	NextState State  `json:"next_state"`
	LogProb   Field  `json:"log_prob"`
}
