package handlers

import "github.com/pribylovaa/odyssey-auth/internal/models"

type registerRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	Message string            `json:"message"`
	User    models.PublicUser `json:"user"`
}

type loginResponse struct {
	Message      string            `json:"message"`
	User         models.PublicUser `json:"user"`
	Token        string            `json:"token"`
	RefreshToken string            `json:"refreshToken"`
}

type refreshResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type profilesResponse struct {
	Message  string              `json:"message"`
	Profiles []models.PublicUser `json:"profiles"`
}
