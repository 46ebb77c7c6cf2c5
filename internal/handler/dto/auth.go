// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/fxgate/fxgate/internal/model"
)

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	PlanID   *int64 `json:"plan_id"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by signup and login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	APIKey      string `json:"api_key"`
	Credits     int    `json:"credits"`
	RateLimit   int    `json:"rate_limit"`
}

// ToTokenResponse builds a TokenResponse for user.
func ToTokenResponse(user *model.User, token string) TokenResponse {
	return TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		APIKey:      user.APIKey,
		Credits:     user.Credits,
		RateLimit:   user.RateLimit(),
	}
}

// PlanResponse represents a plan in API responses.
type PlanResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	RateLimit      int    `json:"rate_limit"`
	InitialCredits int    `json:"initial_credits"`
}

// UserResponse is returned by GET /auth/me.
type UserResponse struct {
	ID      string        `json:"id"`
	Email   string        `json:"email"`
	Credits int           `json:"credits"`
	APIKey  string        `json:"api_key"`
	Plan    *PlanResponse `json:"plan"`
}

// ToUserResponse converts a user with its plan.
func ToUserResponse(user *model.User) UserResponse {
	resp := UserResponse{
		ID:      user.ID,
		Email:   user.Email,
		Credits: user.Credits,
		APIKey:  user.APIKey,
	}
	if user.Plan != nil {
		resp.Plan = &PlanResponse{
			ID:             user.Plan.ID,
			Name:           user.Plan.Name,
			RateLimit:      user.Plan.RateLimit,
			InitialCredits: user.Plan.InitialCredits,
		}
	}
	return resp
}

// RequestLogResponse is one entry of GET /auth/me/requests.
type RequestLogResponse struct {
	ID              string    `json:"id"`
	Endpoint        string    `json:"endpoint"`
	RequestData     string    `json:"request_data"`
	ResponseData    string    `json:"response_data"`
	StatusCode      int       `json:"status_code"`
	CreditsDeducted int       `json:"credits_deducted"`
	CreatedAt       time.Time `json:"created_at"`
}

// RequestLogListResponse wraps a page of request logs.
type RequestLogListResponse struct {
	Data []RequestLogResponse `json:"data"`
}

// ToRequestLogList converts logs, newest first as given.
func ToRequestLogList(logs []model.RequestLog) RequestLogListResponse {
	data := make([]RequestLogResponse, 0, len(logs))
	for _, l := range logs {
		data = append(data, RequestLogResponse{
			ID:              l.ID,
			Endpoint:        l.Endpoint,
			RequestData:     l.RequestData,
			ResponseData:    l.ResponseData,
			StatusCode:      l.StatusCode,
			CreditsDeducted: l.CreditsDeducted,
			CreatedAt:       l.CreatedAt,
		})
	}
	return RequestLogListResponse{Data: data}
}
