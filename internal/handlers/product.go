package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/repository"
	"marketplace/internal/service"
)

type productRequest struct {
	Title          string                 `json:"title" binding:"required,max=200"`
	Description    string                 `json:"description" binding:"required,max=5000"`
	Price          float64                `json:"price" binding:"gte=0"`
	OriginalPrice  float64                `json:"originalPrice" binding:"gte=0"`
	Category       string                 `json:"category" binding:"required"`
	Stock          int                    `json:"stock" binding:"gte=0"`
	Condition      string                 `json:"condition" binding:"omitempty,oneof=new used refurbished"`
	Brand          string                 `json:"brand"`
	Specifications []models.Specification `json:"specifications"`
	Shipping       models.Shipping        `json:"shipping"`
	Tags           []string               `json:"tags"`
	IsFeatured     bool                   `json:"isFeatured"`
}

type productPatchRequest struct {
	Title          *string                 `json:"title"`
	Description    *string                 `json:"description"`
	Price          *float64                `json:"price"`
	OriginalPrice  *float64                `json:"originalPrice"`
	Category       *string                 `json:"category"`
	Stock          *int                    `json:"stock"`
	Condition      *string                 `json:"condition"`
	Brand          *string                 `json:"brand"`
	Specifications *[]models.Specification `json:"specifications"`
	Shipping       *models.Shipping        `json:"shipping"`
	Tags           *[]string               `json:"tags"`
	IsActive       *bool                   `json:"isActive"`
	IsFeatured     *bool                   `json:"isFeatured"`
}

type removeImageRequest struct {
	URL string `json:"url" binding:"required"`
}

func productFilterFromQuery(c *gin.Context) (repository.ProductFilter, error) {
	filter := repository.ProductFilter{
		MinPrice:  queryFloat(c, "minPrice"),
		MaxPrice:  queryFloat(c, "maxPrice"),
		MinRating: queryFloat(c, "minRating"),
		Condition: strings.TrimSpace(c.Query("condition")),
		Search:    strings.TrimSpace(c.Query("search")),
		Sort:      c.Query("sort"),
	}
	category, err := optionalObjectID(c.Query("category"))
	if err != nil {
		return filter, err
	}
	filter.Category = category
	if raw := c.Query("freeShipping"); raw != "" {
		filter.FreeShipping, _ = parseBoolValue(raw)
	}
	return filter, nil
}

/*
GET /api/products
- filters: category, minPrice, maxPrice, condition, freeShipping, minRating, search
- sort: whitelisted fields, "-" prefix for descending
*/
func GetProducts(catalog *service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products"
		defer handlePanic(c, route)

		filter, err := productFilterFromQuery(c)
		if err != nil {
			respondError(c, route, err)
			return
		}

		result, err := catalog.ListProducts(c.Request.Context(), filter, parsePaginationParams(c))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondPage(c, result)
	}
}

func GetFeaturedProducts(catalog *service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/featured"
		defer handlePanic(c, route)

		products, err := catalog.FeaturedProducts(c.Request.Context())
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, products)
	}
}

func GetSellerProducts(catalog *service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/seller/:sellerId"
		defer handlePanic(c, route)

		sellerID, err := paramID(c, "sellerId")
		if err != nil {
			respondError(c, route, err)
			return
		}

		result, err := catalog.SellerProducts(c.Request.Context(), middleware.OptionalActor(c), sellerID, parsePaginationParams(c))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondPage(c, result)
	}
}

func GetProduct(catalog *service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/:id"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}

		product, err := catalog.GetProduct(c.Request.Context(), middleware.OptionalActor(c), id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, product)
	}
}

func CreateProduct(catalog *service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /products"
		defer handlePanic(c, route)

		var req productRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		category, err := parseObjectID(req.Category)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid category id")
			return
		}

		product, err := catalog.CreateProduct(c.Request.Context(), actor(c), service.ProductInput{
			Title:          req.Title,
			Description:    req.Description,
			Price:          req.Price,
			OriginalPrice:  req.OriginalPrice,
			Category:       category,
			Stock:          req.Stock,
			Condition:      req.Condition,
			Brand:          req.Brand,
			Specifications: req.Specifications,
			Shipping:       req.Shipping,
			Tags:           req.Tags,
			IsFeatured:     req.IsFeatured,
		})
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusCreated, product)
	}
}

/*
PUT /api/products/:id
- owner or admin
- only fields present in the body change
*/
func UpdateProduct(catalog *service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /products/:id"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}

		var req productPatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		patch := service.ProductPatch{
			Title:          req.Title,
			Description:    req.Description,
			Price:          req.Price,
			OriginalPrice:  req.OriginalPrice,
			Stock:          req.Stock,
			Condition:      req.Condition,
			Brand:          req.Brand,
			Specifications: req.Specifications,
			Shipping:       req.Shipping,
			Tags:           req.Tags,
			IsActive:       req.IsActive,
			IsFeatured:     req.IsFeatured,
		}
		if req.Category != nil {
			category, err := parseObjectID(*req.Category)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid category id")
				return
			}
			patch.Category = &category
		}

		product, err := catalog.UpdateProduct(c.Request.Context(), actor(c), id, patch)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, product)
	}
}

// DeleteProduct also removes the product's uploaded images.
func DeleteProduct(catalog *service.CatalogService, uploadDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /products/:id"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}

		product, err := catalog.DeleteProduct(c.Request.Context(), actor(c), id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		for _, image := range product.Images {
			if err := safeDeleteUpload(uploadDir, image.URL); err != nil {
				uploadLog.WithError(err).WithField("product", id.Hex()).Warn("delete product image failed")
			}
		}
		respondMessage(c, http.StatusOK, "product deleted")
	}
}

/*
POST /api/products/:id/images
- multipart field "image", optional "alt"
- jpg, jpeg, png or webp up to 5MB
*/
func UploadProductImage(catalog *service.CatalogService, uploadDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /products/:id/images"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}

		file, err := c.FormFile("image")
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "image file is required")
			return
		}
		// Ownership is checked before anything touches the disk.
		if err := catalog.CheckOwnership(c.Request.Context(), actor(c), id); err != nil {
			respondError(c, route, err)
			return
		}

		url, err := saveImage(file, uploadDir)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		product, err := catalog.AddImage(c.Request.Context(), actor(c), id, models.ProductImage{
			URL: url,
			Alt: strings.TrimSpace(c.PostForm("alt")),
		})
		if err != nil {
			if cleanupErr := safeDeleteUpload(uploadDir, url); cleanupErr != nil {
				uploadLog.WithError(cleanupErr).Warn("cleanup after failed image attach failed")
			}
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusCreated, product)
	}
}

func DeleteProductImage(catalog *service.CatalogService, uploadDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /products/:id/images"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}
		var req removeImageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		product, err := catalog.RemoveImage(c.Request.Context(), actor(c), id, req.URL)
		if err != nil {
			respondError(c, route, err)
			return
		}
		if err := safeDeleteUpload(uploadDir, req.URL); err != nil {
			uploadLog.WithError(err).WithField("product", id.Hex()).Warn("delete image file failed")
		}
		respondOK(c, http.StatusOK, product)
	}
}
