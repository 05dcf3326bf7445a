package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"marketplace/internal/repository"
	"marketplace/internal/service"
)

// parsePaginationParams reads ?page and ?limit. Missing or malformed values
// fall back to the defaults; limit is capped by repository.NewPage.
func parsePaginationParams(c *gin.Context) repository.Page {
	return repository.NewPage(queryInt(c, "page"), queryInt(c, "limit"))
}

func queryInt(c *gin.Context, key string) int64 {
	value, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func queryFloat(c *gin.Context, key string) *float64 {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &value
}

func paginationBody[T any](result service.PageResult[T]) gin.H {
	return gin.H{
		"page":  result.Page,
		"limit": result.Limit,
		"total": result.Total,
		"pages": result.Pages,
	}
}
