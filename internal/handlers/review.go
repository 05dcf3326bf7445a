package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace/internal/service"
)

type reviewRequest struct {
	ProductID string   `json:"productId" binding:"required"`
	Rating    int      `json:"rating" binding:"required,min=1,max=5"`
	Title     string   `json:"title" binding:"max=100"`
	Comment   string   `json:"comment" binding:"required,max=1000"`
	Pros      []string `json:"pros"`
	Cons      []string `json:"cons"`
	Images    []string `json:"images"`
}

type reviewEditRequest struct {
	Rating  *int      `json:"rating" binding:"omitempty,min=1,max=5"`
	Title   *string   `json:"title"`
	Comment *string   `json:"comment"`
	Pros    *[]string `json:"pros"`
	Cons    *[]string `json:"cons"`
	Images  *[]string `json:"images"`
}

type reviewResponseRequest struct {
	Text string `json:"text" binding:"required,max=1000"`
}

/*
POST /api/reviews
- one review per product and user
- verified when the user has a delivered order with the product
*/
func CreateReview(reviews *service.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /reviews"
		defer handlePanic(c, route)

		var req reviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		productID, err := parseObjectID(req.ProductID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid product id")
			return
		}

		review, err := reviews.Create(c.Request.Context(), actor(c), service.ReviewInput{
			ProductID: productID,
			Rating:    req.Rating,
			Title:     req.Title,
			Comment:   req.Comment,
			Pros:      req.Pros,
			Cons:      req.Cons,
			Images:    req.Images,
		})
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusCreated, review)
	}
}

func GetProductReviews(reviews *service.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /reviews/product/:productId"
		defer handlePanic(c, route)

		productID, err := paramID(c, "productId")
		if err != nil {
			respondError(c, route, err)
			return
		}

		result, err := reviews.ListByProduct(c.Request.Context(), productID, c.Query("sort"), parsePaginationParams(c))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondPage(c, result)
	}
}

func UpdateReview(reviews *service.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /reviews/:id"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}
		var req reviewEditRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		review, err := reviews.Update(c.Request.Context(), actor(c), id, service.ReviewEdit{
			Rating:  req.Rating,
			Title:   req.Title,
			Comment: req.Comment,
			Pros:    req.Pros,
			Cons:    req.Cons,
			Images:  req.Images,
		})
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, review)
	}
}

func DeleteReview(reviews *service.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /reviews/:id"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}
		if err := reviews.Delete(c.Request.Context(), actor(c), id); err != nil {
			respondError(c, route, err)
			return
		}
		respondMessage(c, http.StatusOK, "review deleted")
	}
}

func MarkReviewHelpful(reviews *service.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /reviews/:id/helpful"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}
		review, err := reviews.MarkHelpful(c.Request.Context(), actor(c), id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"helpful": review.Helpful})
	}
}

func RespondToReview(reviews *service.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /reviews/:id/response"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}
		var req reviewResponseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		review, err := reviews.Respond(c.Request.Context(), actor(c), id, req.Text)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, review)
	}
}
