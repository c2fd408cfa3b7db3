package model

// Contestant is a registered participant and its judging history.
type Contestant struct {
	ID    string
	Name  string
	Color *string
	Score int
	// FinishedAt is the elapsed second the contestant finished at; 0 adds no penalty.
	FinishedAt int
	Finished   bool
	// ProblemStatus is the tracked problem set with the latest status of each.
	ProblemStatus map[string]SubmissionStatus
	Submissions   []*Submission
}

// NewContestant creates a contestant with an empty tracked set.
func NewContestant(id, name string, color *string) *Contestant {
	return &Contestant{
		ID:            id,
		Name:          name,
		Color:         color,
		ProblemStatus: make(map[string]SubmissionStatus),
	}
}

// Standing is the public scoreboard row of a contestant.
type Standing struct {
	UID      string                      `json:"uid"`
	Name     string                      `json:"name"`
	Color    *string                     `json:"color"`
	Score    int                         `json:"score"`
	Progress map[string]SubmissionStatus `json:"progress"`
	Finished int                         `json:"finished"`
}

// Standing returns a copy of the contestant's public state.
func (c *Contestant) Standing() Standing {
	progress := make(map[string]SubmissionStatus, len(c.ProblemStatus))
	for problem, status := range c.ProblemStatus {
		progress[problem] = status
	}
	return Standing{
		UID:      c.ID,
		Name:     c.Name,
		Color:    c.Color,
		Score:    c.Score,
		Progress: progress,
		Finished: c.FinishedAt,
	}
}
