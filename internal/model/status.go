// Package model holds the domain types shared by the sandbox fleet and the contest engine.
package model

// SubmissionStatus is the judging state of a submission.
type SubmissionStatus string

const (
	StatusPending             SubmissionStatus = "PENDING"
	StatusAccepted            SubmissionStatus = "ACCEPTED"
	StatusWrongAnswer         SubmissionStatus = "WRONG_ANSWER"
	StatusTimeLimitExceeded   SubmissionStatus = "TIME_LIMIT_EXCEEDED"
	StatusMemoryLimitExceeded SubmissionStatus = "MEMORY_LIMIT_EXCEEDED"
	StatusCompilationError    SubmissionStatus = "COMPILATION_ERROR"
	StatusRuntimeError        SubmissionStatus = "RUNTIME_ERROR"
	StatusInternalError       SubmissionStatus = "INTERNAL_ERROR"
)

// Terminal reports whether the status is a final judging outcome.
func (s SubmissionStatus) Terminal() bool {
	return s != StatusPending && s != ""
}

// Judged reports whether the sandbox produced a verdict about the code itself,
// as opposed to Pending or an internal failure.
func (s SubmissionStatus) Judged() bool {
	return s.Terminal() && s != StatusInternalError
}

// ContestProgress is the lifecycle state of a contest.
type ContestProgress string

const (
	ProgressNotStarted ContestProgress = "NOT_STARTED"
	ProgressInProgress ContestProgress = "IN_PROGRESS"
	ProgressFinished   ContestProgress = "FINISHED"
)
