package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace/internal/middleware"
	"marketplace/internal/service"
)

/*
GET /api/search?q=
- relevance ordered, paginated
- the query is stored in the caller's history when signed in
*/
func SearchProducts(search *service.SearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /search"
		defer handlePanic(c, route)

		result, err := search.Search(c.Request.Context(), middleware.OptionalActor(c), c.Query("q"), parsePaginationParams(c))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondPage(c, result)
	}
}

func Autocomplete(search *service.SearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /search/autocomplete"
		defer handlePanic(c, route)

		titles, err := search.Autocomplete(c.Request.Context(), c.Query("q"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, titles)
	}
}

func TrendingSearches(search *service.SearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /search/trending"
		defer handlePanic(c, route)

		titles, err := search.TrendingSearches(c.Request.Context())
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, titles)
	}
}

func SearchHistory(search *service.SearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /search/history"
		defer handlePanic(c, route)

		queries, err := search.History(c.Request.Context(), actor(c))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, queries)
	}
}

func ClearSearchHistory(search *service.SearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /search/history"
		defer handlePanic(c, route)

		if err := search.ClearHistory(c.Request.Context(), actor(c)); err != nil {
			respondError(c, route, err)
			return
		}
		respondMessage(c, http.StatusOK, "search history cleared")
	}
}

func Recommendations(search *service.SearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /recommendations"
		defer handlePanic(c, route)

		products, err := search.Recommendations(c.Request.Context(), middleware.OptionalActor(c))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, products)
	}
}

func RelatedProducts(search *service.SearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /recommendations/related/:productId"
		defer handlePanic(c, route)

		id, err := paramID(c, "productId")
		if err != nil {
			respondError(c, route, err)
			return
		}
		products, err := search.Related(c.Request.Context(), id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, products)
	}
}

func BoughtTogether(search *service.SearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /recommendations/bought-together/:productId"
		defer handlePanic(c, route)

		id, err := paramID(c, "productId")
		if err != nil {
			respondError(c, route, err)
			return
		}
		products, err := search.BoughtTogether(c.Request.Context(), id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, products)
	}
}

func TrendingProducts(search *service.SearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /recommendations/trending"
		defer handlePanic(c, route)

		products, err := search.TrendingProducts(c.Request.Context())
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, products)
	}
}
