package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"marketplace/internal/repository"
	"marketplace/internal/service"
)

type adminUserRequest struct {
	Name       *string `json:"name"`
	Role       *string `json:"role" binding:"omitempty,oneof=buyer seller admin"`
	IsActive   *bool   `json:"isActive"`
	IsVerified *bool   `json:"isVerified"`
}

/*
GET /api/admin/users
- ?role= and ?search= (name or email)
*/
func AdminListUsers(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/users"
		defer handlePanic(c, route)

		result, err := accounts.ListUsers(c.Request.Context(), repository.UserFilter{
			Role:   strings.TrimSpace(c.Query("role")),
			Search: strings.TrimSpace(c.Query("search")),
		}, parsePaginationParams(c))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondPage(c, result)
	}
}

func AdminUpdateUser(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/users/:id"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}
		var req adminUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		user, err := accounts.AdminUpdateUser(c.Request.Context(), actor(c), id, service.AdminUserPatch{
			Name:       req.Name,
			Role:       req.Role,
			IsActive:   req.IsActive,
			IsVerified: req.IsVerified,
		})
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, user)
	}
}

func AdminDeleteUser(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/users/:id"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}
		if err := accounts.DeleteUser(c.Request.Context(), actor(c), id); err != nil {
			respondError(c, route, err)
			return
		}
		respondMessage(c, http.StatusOK, "user deleted")
	}
}

/*
GET /api/admin/orders
- ?status= and ?orderNumber=
*/
func AdminListOrders(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/orders"
		defer handlePanic(c, route)

		result, err := orders.ListAll(c.Request.Context(), repository.OrderFilter{
			Status:      strings.TrimSpace(c.Query("status")),
			OrderNumber: strings.TrimSpace(c.Query("orderNumber")),
		}, parsePaginationParams(c))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondPage(c, result)
	}
}
