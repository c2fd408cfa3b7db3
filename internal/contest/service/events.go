package service

import "codegame/internal/model"

// Event names carried in the "event" field of every broadcast.
const (
	EventNewContestant      = "NEW_CONTESTANT"
	EventContestStarted     = "CONTEST_STARTED"
	EventContestStopped     = "CONTEST_STOPPED"
	EventContestantFinished = "CONTESTANT_FINISHED"
	EventSubmissionResult   = "SUBMISSION_RESULT"
	EventContestReset       = "CONTEST_RESET"
)

// Broadcaster fans events out to every viewer. Broadcast must not block.
type Broadcaster interface {
	Broadcast(event any)
}

type NewContestantEvent struct {
	Event string  `json:"event"`
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Color *string `json:"color"`
}

type ContestStartedEvent struct {
	Event              string   `json:"event"`
	Duration           int      `json:"duration"`
	Problems           []string `json:"problems"`
	SupportedLanguages []string `json:"supported_languages"`
}

type ContestStoppedEvent struct {
	Event string `json:"event"`
}

type ContestantFinishedEvent struct {
	Event string `json:"event"`
	ID    string `json:"id"`
	Score int    `json:"score"`
}

type SubmissionResultEvent struct {
	Event      string                 `json:"event"`
	ID         string                 `json:"id"`
	Contestant string                 `json:"contestant"`
	Problem    string                 `json:"problem"`
	Language   string                 `json:"language"`
	Status     model.SubmissionStatus `json:"status"`
	Time       int                    `json:"time"`
	Score      int                    `json:"score"`
}

type ContestResetEvent struct {
	Event string `json:"event"`
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(any) {}
