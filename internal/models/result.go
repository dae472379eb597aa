package models

import "time"

type Major struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type ResultResponse struct {
	ID           int64  `json:"id"`
	Question     int64  `json:"question"`
	QuestionText string `json:"question_text"`
	Choice       int64  `json:"choice"`
	ChoiceText   string `json:"choice_text"`
}

// QuestionnaireResult is a read-only record of one completed questionnaire.
// Responses are only present on the detail endpoint.
type QuestionnaireResult struct {
	ID        int64            `json:"id"`
	Major     Major            `json:"major"`
	Score     Score            `json:"score"`
	DateTaken time.Time        `json:"date_taken"`
	Responses []ResultResponse `json:"responses,omitempty"`
}
