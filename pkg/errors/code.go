package errors

// ErrorCode identifies an application error.
type ErrorCode int

// Error code ranges:
// 10000-10999: System & common
// 11000-11999: Authentication
// 12000-12999: Problems
// 13000-13999: Submission & judge
// 14000-14999: Contest lifecycle
// 15000-15999: Sandbox fleet

const (
	Success ErrorCode = 10000

	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	ValidationFailed ErrorCode = 10300
	InvalidFormat    ErrorCode = 10301

	TokenInvalid          ErrorCode = 11004
	TokenGenerationFailed ErrorCode = 11005

	ProblemNotFound   ErrorCode = 12000
	ProblemLoadFailed ErrorCode = 12001

	SubmissionCreateFailed ErrorCode = 13001
	LanguageNotSupported   ErrorCode = 13003
	ProblemAlreadySolved   ErrorCode = 13006
	JudgeSystemError       ErrorCode = 13101

	ContestNotStarted     ErrorCode = 14001
	ContestEnded          ErrorCode = 14002
	ContestAlreadyStarted ErrorCode = 14006
	ContestantFinished    ErrorCode = 14007
	InvalidContestantName ErrorCode = 14105
	NotRegistered         ErrorCode = 14103

	InvalidSandboxEndpoint ErrorCode = 15000
	SandboxNotFound        ErrorCode = 15001
)

var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	ValidationFailed: "Validation failed",
	InvalidFormat:    "Invalid format",

	TokenInvalid:          "Invalid token",
	TokenGenerationFailed: "Failed to generate token",

	ProblemNotFound:   "Problem not found",
	ProblemLoadFailed: "Failed to load problem",

	SubmissionCreateFailed: "Failed to create submission",
	LanguageNotSupported:   "Programming language not supported",
	ProblemAlreadySolved:   "You already solved this problem",
	JudgeSystemError:       "Judge system error",

	ContestNotStarted:     "Contest is not in progress",
	ContestEnded:          "Contest has ended",
	ContestAlreadyStarted: "Contest already started",
	ContestantFinished:    "Contestant has already finished",
	InvalidContestantName: "Invalid contestant name",
	NotRegistered:         "Not registered for this contest",

	InvalidSandboxEndpoint: "Invalid sandbox endpoint",
	SandboxNotFound:        "Sandbox node not found",
}

// Message returns the default message for the code.
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the HTTP status used when the code reaches a client.
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized, c == TokenInvalid, c == NotRegistered:
		return 401
	case c == Forbidden:
		return 403
	case c == NotFound, c == ProblemNotFound, c == SandboxNotFound:
		return 404
	case c == TooManyRequests:
		return 429
	case c == ServiceUnavailable:
		return 503
	case c >= 10300 && c < 10400:
		return 400
	case c == InvalidParams, c == LanguageNotSupported, c == ProblemAlreadySolved:
		return 400
	case c >= 14000 && c < 15000:
		return 400
	case c == InvalidSandboxEndpoint:
		return 400
	default:
		return 500
	}
}
