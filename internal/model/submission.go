package model

// Submission is one solution attempt. Everything except Status is fixed at creation.
type Submission struct {
	ID           string
	ContestantID string
	Problem      string
	Language     string
	// SubmittedAt is the contest elapsed time in seconds.
	SubmittedAt int
	Code        []byte
	Status      SubmissionStatus
}

// SubmissionView is the client-facing form of a submission.
type SubmissionView struct {
	ID       string           `json:"id"`
	Problem  string           `json:"problem"`
	Language string           `json:"language"`
	Result   SubmissionStatus `json:"result"`
	Time     int              `json:"time"`
}

// View returns the client-facing form of s.
func (s *Submission) View() SubmissionView {
	return SubmissionView{
		ID:       s.ID,
		Problem:  s.Problem,
		Language: s.Language,
		Result:   s.Status,
		Time:     s.SubmittedAt,
	}
}
