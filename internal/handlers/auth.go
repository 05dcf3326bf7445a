package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"marketplace/internal/models"
	"marketplace/internal/service"
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"omitempty,oneof=buyer seller"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

type AuthTokens struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         *models.User `json:"user"`
}

var authLog = logrus.WithField("area", "AUTH")

func authBody(result *service.AuthResult) AuthTokens {
	return AuthTokens{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		User:         result.User,
	}
}

/*
POST /api/auth/register
- role is buyer (default) or seller
*/
func Register(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/register"
		defer handlePanic(c, route)

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		result, err := accounts.Register(c.Request.Context(), service.RegisterInput{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Role:     req.Role,
			Phone:    req.Phone,
		})
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusCreated, authBody(result))
	}
}

func Login(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/login"
		defer handlePanic(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		result, err := accounts.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, route, err)
			return
		}
		authLog.WithField("user", result.User.ID.Hex()).Info("login succeeded")
		respondOK(c, http.StatusOK, authBody(result))
	}
}

/*
POST /api/auth/refresh
- the presented refresh token is revoked and replaced
*/
func Refresh(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/refresh"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		result, err := accounts.Refresh(c.Request.Context(), req.RefreshToken)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, authBody(result))
	}
}

func Logout(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/logout"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		if err := accounts.Logout(c.Request.Context(), req.RefreshToken); err != nil {
			respondError(c, route, err)
			return
		}
		respondMessage(c, http.StatusOK, "logged out")
	}
}

func GetMe(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /auth/me"
		defer handlePanic(c, route)

		user, err := accounts.Me(c.Request.Context(), actor(c))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, user)
	}
}

// ChangePassword signs every other session out.
func ChangePassword(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /auth/password"
		defer handlePanic(c, route)

		var req ChangePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		if err := accounts.ChangePassword(c.Request.Context(), actor(c), req.CurrentPassword, req.NewPassword); err != nil {
			respondError(c, route, err)
			return
		}
		respondMessage(c, http.StatusOK, "password updated")
	}
}
