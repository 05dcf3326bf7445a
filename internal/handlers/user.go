package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace/internal/service"
)

type profileRequest struct {
	Name   *string `json:"name" binding:"omitempty,max=100"`
	Phone  *string `json:"phone"`
	Avatar *string `json:"avatar"`
}

type addressRequest struct {
	Street       string `json:"street" binding:"required"`
	Number       string `json:"number" binding:"required"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood" binding:"required"`
	City         string `json:"city" binding:"required"`
	State        string `json:"state" binding:"required"`
	ZipCode      string `json:"zipCode" binding:"required"`
	IsDefault    bool   `json:"isDefault"`
}

func (r addressRequest) input() service.AddressInput {
	return service.AddressInput{
		Street:       r.Street,
		Number:       r.Number,
		Complement:   r.Complement,
		Neighborhood: r.Neighborhood,
		City:         r.City,
		State:        r.State,
		ZipCode:      r.ZipCode,
		IsDefault:    r.IsDefault,
	}
}

type favoriteRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

// GetUserProfile is the public view of another account.
func GetUserProfile(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /users/:id"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}
		profile, err := accounts.Profile(c.Request.Context(), id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, profile)
	}
}

func UpdateProfile(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /users/profile"
		defer handlePanic(c, route)

		var req profileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		user, err := accounts.UpdateProfile(c.Request.Context(), actor(c), service.ProfilePatch{
			Name:   req.Name,
			Phone:  req.Phone,
			Avatar: req.Avatar,
		})
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, user)
	}
}

func GetUserAddresses(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /users/addresses"
		defer handlePanic(c, route)

		addresses, err := accounts.Addresses(c.Request.Context(), actor(c))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, addresses)
	}
}

/*
POST /api/users/addresses
- the first address, or one sent with isDefault, becomes the only default
*/
func CreateUserAddress(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /users/addresses"
		defer handlePanic(c, route)

		var req addressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		addresses, err := accounts.AddAddress(c.Request.Context(), actor(c), req.input())
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusCreated, addresses)
	}
}

func UpdateUserAddress(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /users/addresses/:id"
		defer handlePanic(c, route)

		var req addressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		addresses, err := accounts.UpdateAddress(c.Request.Context(), actor(c), c.Param("id"), req.input())
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, addresses)
	}
}

func DeleteUserAddress(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /users/addresses/:id"
		defer handlePanic(c, route)

		addresses, err := accounts.DeleteAddress(c.Request.Context(), actor(c), c.Param("id"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, addresses)
	}
}

func GetUserFavorites(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /users/favorites"
		defer handlePanic(c, route)

		products, err := accounts.Favorites(c.Request.Context(), actor(c))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, products)
	}
}

func AddUserFavorite(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /users/favorites"
		defer handlePanic(c, route)

		var req favoriteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		productID, err := parseObjectID(req.ProductID)
		if err != nil {
			respondError(c, route, err)
			return
		}

		if err := accounts.AddFavorite(c.Request.Context(), actor(c), productID); err != nil {
			respondError(c, route, err)
			return
		}
		respondMessage(c, http.StatusCreated, "product added to favorites")
	}
}

func DeleteUserFavorite(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /users/favorites/:productId"
		defer handlePanic(c, route)

		productID, err := paramID(c, "productId")
		if err != nil {
			respondError(c, route, err)
			return
		}
		if err := accounts.RemoveFavorite(c.Request.Context(), actor(c), productID); err != nil {
			respondError(c, route, err)
			return
		}
		respondMessage(c, http.StatusOK, "product removed from favorites")
	}
}
