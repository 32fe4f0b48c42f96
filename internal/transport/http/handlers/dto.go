package handlers

import (
	"time"

	"github.com/JosephRemingston/insightAI/internal/models"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type saveConnectionRequest struct {
	MongoURI string `json:"mongoUri"`
	Name     string `json:"name"`
}

type connectRequest struct {
	ConnectionID string `json:"connectionId"`
}

type userResponse struct {
	User *models.User `json:"user"`
}

type loginResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// connectionView never carries cipherText, iv or authTag.
type connectionView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type connectionResponse struct {
	Connection connectionView `json:"connection"`
}

type statusResponse struct {
	Status         string     `json:"status"`
	Host           string     `json:"host,omitempty"`
	Database       string     `json:"database,omitempty"`
	ConnectionName string     `json:"connectionName,omitempty"`
	OpenedAt       *time.Time `json:"openedAt,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
}

type empty struct{}

func statusFromInfo(info *models.ConnectionInfo) statusResponse {
	out := statusResponse{
		Status:         info.Status,
		Host:           info.Host,
		Database:       info.Database,
		ConnectionName: info.Name,
	}
	if !info.OpenedAt.IsZero() {
		t := info.OpenedAt
		out.OpenedAt = &t
	}

	return out
}
