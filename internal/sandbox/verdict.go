package sandbox

import "codegame/internal/model"

// Verdict is the judging outcome reported by a sandbox node.
type Verdict int

const (
	VerdictUnrecognized Verdict = iota
	VerdictAccepted
	VerdictWrongAnswer
	VerdictCompilationError
	VerdictRuntimeError
	VerdictTimeLimitExceeded
	VerdictMemoryLimitExceeded
	VerdictInternalError
)

var verdictNames = map[string]Verdict{
	"ACCEPTED":              VerdictAccepted,
	"WRONG_ANSWER":          VerdictWrongAnswer,
	"COMPILATION_ERROR":     VerdictCompilationError,
	"RUNTIME_ERROR":         VerdictRuntimeError,
	"TIME_LIMIT_EXCEEDED":   VerdictTimeLimitExceeded,
	"MEMORY_LIMIT_EXCEEDED": VerdictMemoryLimitExceeded,
	"INTERNAL_ERROR":        VerdictInternalError,
}

// ParseVerdict maps a wire status string. Unknown strings yield VerdictUnrecognized.
func ParseVerdict(raw string) Verdict {
	if v, ok := verdictNames[raw]; ok {
		return v
	}
	return VerdictUnrecognized
}

// Status converts the verdict into a submission status.
func (v Verdict) Status() model.SubmissionStatus {
	switch v {
	case VerdictAccepted:
		return model.StatusAccepted
	case VerdictWrongAnswer:
		return model.StatusWrongAnswer
	case VerdictCompilationError:
		return model.StatusCompilationError
	case VerdictRuntimeError:
		return model.StatusRuntimeError
	case VerdictTimeLimitExceeded:
		return model.StatusTimeLimitExceeded
	case VerdictMemoryLimitExceeded:
		return model.StatusMemoryLimitExceeded
	default:
		return model.StatusInternalError
	}
}
