package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace/internal/service"
)

type CategoryCreateRequest struct {
	Name        string `json:"name" binding:"required,max=50"`
	Description string `json:"description" binding:"max=200"`
	Icon        string `json:"icon"`
	Image       string `json:"image"`
	Parent      string `json:"parent"`
	Order       int    `json:"order"`
}

type CategoryUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	Image       *string `json:"image"`
	// Parent set to "" detaches the category from its parent.
	Parent   *string `json:"parent"`
	IsActive *bool   `json:"isActive"`
	Order    *int    `json:"order"`
}

func GetCategories(catalog *service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /categories"
		defer handlePanic(c, route)

		categories, err := catalog.ListCategories(c.Request.Context())
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, categories)
	}
}

func GetCategoryBySlug(catalog *service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /categories/:slug"
		defer handlePanic(c, route)

		category, err := catalog.CategoryBySlug(c.Request.Context(), c.Param("slug"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, category)
	}
}

/*
POST /api/categories
- admin only
- names are unique; the slug is derived from the name
*/
func CreateCategory(catalog *service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /categories"
		defer handlePanic(c, route)

		var req CategoryCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		parent, err := optionalObjectID(req.Parent)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid parent id")
			return
		}

		category, err := catalog.CreateCategory(c.Request.Context(), service.CategoryInput{
			Name:        req.Name,
			Description: req.Description,
			Icon:        req.Icon,
			Image:       req.Image,
			Parent:      parent,
			Order:       req.Order,
		})
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusCreated, category)
	}
}

func UpdateCategory(catalog *service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /categories/:id"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}
		var req CategoryUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		patch := service.CategoryPatch{
			Name:        req.Name,
			Description: req.Description,
			Icon:        req.Icon,
			Image:       req.Image,
			IsActive:    req.IsActive,
			Order:       req.Order,
		}
		if req.Parent != nil {
			parent, err := optionalObjectID(*req.Parent)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid parent id")
				return
			}
			patch.Parent = parent
			patch.ClearParent = parent == nil
		}

		category, err := catalog.UpdateCategory(c.Request.Context(), id, patch)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, category)
	}
}

func DeleteCategory(catalog *service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /categories/:id"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}
		if err := catalog.DeleteCategory(c.Request.Context(), id); err != nil {
			respondError(c, route, err)
			return
		}
		respondMessage(c, http.StatusOK, "category deleted")
	}
}
