package model

import "time"

// RequestLog is an append-only audit row for a metered call.
type RequestLog struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Endpoint        string    `json:"endpoint"`
	RequestData     string    `json:"request_data"`
	ResponseData    string    `json:"response_data"`
	StatusCode      int       `json:"status_code"`
	CreditsDeducted int       `json:"credits_deducted"`
	CreatedAt       time.Time `json:"created_at"`
}
