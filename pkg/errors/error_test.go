package errors_test

import (
	"errors"
	"fmt"
	"testing"

	. "codegame/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{ContestNotStarted, "Contest is not in progress"},
		{ProblemAlreadySolved, "You already solved this problem"},
		{ErrorCode(19999), "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{Success, 200},
		{InvalidParams, 400},
		{InvalidContestantName, 400},
		{ContestantFinished, 400},
		{LanguageNotSupported, 400},
		{InvalidSandboxEndpoint, 400},
		{Unauthorized, 401},
		{TokenInvalid, 401},
		{NotRegistered, 401},
		{ProblemNotFound, 404},
		{TooManyRequests, 429},
		{SubmissionCreateFailed, 500},
		{InternalServerError, 500},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(ProblemNotFound, "problem %s not found", "sum")

	if err.Code != ProblemNotFound {
		t.Errorf("Code = %v, want %v", err.Code, ProblemNotFound)
	}
	if err.Error() != "problem sum not found" {
		t.Errorf("Error() = %v", err.Error())
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("connection refused")
	wrappedErr := Wrap(originalErr, SubmissionCreateFailed)

	if wrappedErr.Code != SubmissionCreateFailed {
		t.Errorf("Code = %v, want %v", wrappedErr.Code, SubmissionCreateFailed)
	}
	if !errors.Is(wrappedErr, originalErr) {
		t.Error("wrapped error should match original")
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "nil error", err: nil, want: Success},
		{name: "custom error", err: New(NotRegistered), want: NotRegistered},
		{name: "wrapped custom error", err: fmt.Errorf("submit: %w", New(ContestantFinished)), want: ContestantFinished},
		{name: "standard error", err: errors.New("standard error"), want: InternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := New(ContestAlreadyStarted)

	if !Is(err, ContestAlreadyStarted) {
		t.Error("Is() should return true for matching code")
	}
	if Is(err, ContestNotStarted) {
		t.Error("Is() should return false for non-matching code")
	}
	if Is(nil, ContestAlreadyStarted) {
		t.Error("Is() should return false for nil error")
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError("name", "too short").WithMessage("name too short")

	if err.Code != ValidationFailed {
		t.Error("ValidationError should use ValidationFailed code")
	}
	if err.Details["field"] != "name" {
		t.Error("Field detail not set")
	}
	if err.Error() != "name too short" {
		t.Errorf("Error() = %v", err.Error())
	}
}

func TestGetErrorWrapsForeignError(t *testing.T) {
	cause := errors.New("disk full")
	got := GetError(cause)

	if got.Code != InternalServerError {
		t.Errorf("Code = %v, want %v", got.Code, InternalServerError)
	}
	if !errors.Is(got, cause) {
		t.Error("wrapped error should match original")
	}
	if GetError(nil) != nil {
		t.Error("GetError(nil) should be nil")
	}
}

func TestHelperCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		code ErrorCode
		msg  string
	}{
		{name: "bad request", err: BadRequest("Bad request"), code: InvalidParams, msg: "Bad request"},
		{name: "not found", err: NotFoundError("problem statement"), code: NotFound, msg: "problem statement not found"},
		{name: "unauthorized", err: UnauthorizedError("missing token"), code: Unauthorized, msg: "missing token"},
		{name: "unauthorized default", err: UnauthorizedError(""), code: Unauthorized, msg: Unauthorized.Message()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.code)
			}
			if tt.err.Error() != tt.msg {
				t.Errorf("Error() = %v, want %v", tt.err.Error(), tt.msg)
			}
		})
	}
}
