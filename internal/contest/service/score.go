package service

import "codegame/internal/model"

const (
	acceptedReward  = 2000
	rejectedPenalty = 100
)

// ApplySubmission records a judged submission for c. It returns false without
// touching c when the problem is untracked, the status is still pending, or the
// problem was already accepted.
func ApplySubmission(c *model.Contestant, s *model.Submission) bool {
	current, tracked := c.ProblemStatus[s.Problem]
	if !tracked || s.Status == model.StatusPending || current == model.StatusAccepted {
		return false
	}
	c.ProblemStatus[s.Problem] = s.Status
	c.Submissions = append(c.Submissions, s)
	RecomputeScore(c)
	CheckAllSolved(c)
	return true
}

// RecomputeScore recalculates and stores the score of c. The result is not clamped.
func RecomputeScore(c *model.Contestant) int {
	score := 0
	for _, s := range c.Submissions {
		switch {
		case s.Status == model.StatusAccepted:
			score += acceptedReward
		case s.Status.Judged():
			score -= rejectedPenalty
		}
	}
	if c.FinishedAt > 0 {
		score -= c.FinishedAt
	}
	c.Score = score
	return score
}

// CheckAllSolved finishes c at its latest accepted submission once every tracked
// problem is accepted.
func CheckAllSolved(c *model.Contestant) bool {
	if len(c.ProblemStatus) == 0 {
		return false
	}
	for _, status := range c.ProblemStatus {
		if status != model.StatusAccepted {
			return false
		}
	}
	FinishAtBestTime(c)
	return true
}

// Finish marks c finished at elapsed second at. No-op when already finished.
func Finish(c *model.Contestant, at int) bool {
	if c.Finished {
		return false
	}
	c.Finished = true
	c.FinishedAt = at
	RecomputeScore(c)
	return true
}

// FinishAtBestTime finishes c at its latest accepted submission time, 0 without one.
func FinishAtBestTime(c *model.Contestant) bool {
	at := 0
	for _, s := range c.Submissions {
		if s.Status == model.StatusAccepted && s.SubmittedAt > at {
			at = s.SubmittedAt
		}
	}
	return Finish(c, at)
}
