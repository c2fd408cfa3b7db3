package controller

import "codegame/internal/model"

// AddRequest registers a contestant.
type AddRequest struct {
	Name  string  `json:"name" binding:"required"`
	Color *string `json:"color" binding:"omitempty,max=32"`
}

// AddResponse returns the new contestant and its bearer token.
type AddResponse struct {
	UID   string  `json:"uid"`
	Name  string  `json:"name"`
	Token string  `json:"token"`
	Color *string `json:"color"`
}

// SubmitForm is the multipart body of a submission; the code travels as the "code" file.
type SubmitForm struct {
	Problem  string `form:"problem" binding:"required"`
	Language string `form:"language" binding:"required"`
}

// StandingsResponse is the public scoreboard.
type StandingsResponse struct {
	Progress    model.ContestProgress `json:"contest_progress"`
	Elapsed     int                   `json:"elapsed"`
	Contestants []model.Standing      `json:"contestants"`
}
