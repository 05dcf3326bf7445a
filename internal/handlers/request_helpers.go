package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"marketplace/internal/config"
	"marketplace/internal/middleware"
	"marketplace/internal/repository"
	"marketplace/internal/service"
)

var errInvalidID = errors.New("invalid id")

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		logrus.WithFields(logrus.Fields{"area": "HTTP", "route": route}).Errorf("panic recovered: %v", r)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal server error"})
	}
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": true, "message": message})
}

func respondPage[T any](c *gin.Context, result service.PageResult[T]) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       result.Items,
		"pagination": paginationBody(result),
	})
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	entry := logrus.WithFields(logrus.Fields{"area": "HTTP", "route": route, "status": status})
	if status >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Debug(message)
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

// respondError maps an error from the service layer onto a status code.
// Unknown errors become 500 and only show their cause in development.
func respondError(c *gin.Context, route string, err error) {
	var stock *service.InsufficientStockError
	var domain *service.Error

	switch {
	case errors.As(err, &stock):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": fmt.Sprintf("Insufficient stock for product %s", stock.Title),
			"details": gin.H{
				"productId": stock.ProductID.Hex(),
				"available": stock.Available,
				"requested": stock.Requested,
			},
		})
	case errors.As(err, &domain):
		respondWithError(c, statusFor(domain.Kind), route, domain.Message)
	case errors.Is(err, errInvalidID), errors.Is(err, primitive.ErrInvalidHex):
		respondWithError(c, http.StatusBadRequest, route, "invalid id")
	case errors.Is(err, repository.ErrNotFound):
		respondWithError(c, http.StatusNotFound, route, "resource not found")
	case errors.Is(err, repository.ErrDuplicate):
		respondWithError(c, http.StatusConflict, route, "resource already exists")
	case mongo.IsNetworkError(err), mongo.IsTimeout(err):
		logrus.WithFields(logrus.Fields{"area": "DB", "route": route}).WithError(err).Error("database unavailable")
		respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
	default:
		logrus.WithFields(logrus.Fields{"area": "HTTP", "route": route}).WithError(err).Error("request failed")
		body := gin.H{"success": false, "message": "internal server error"}
		if config.AppEnv.IsDevelopment() {
			body["error"] = err.Error()
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
	}
}

func statusFor(kind error) int {
	switch kind {
	case service.ErrValidation, service.ErrInvalidState, service.ErrInsufficientStock:
		return http.StatusBadRequest
	case service.ErrUnauthorized:
		return http.StatusUnauthorized
	case service.ErrForbidden:
		return http.StatusForbidden
	case service.ErrNotFound:
		return http.StatusNotFound
	case service.ErrConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func respondValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s is required", field))
			case "min", "gte", "gt":
				details = append(details, fmt.Sprintf("%s must be at least %s", field, fieldError.Param()))
			case "max", "lte", "lt":
				details = append(details, fmt.Sprintf("%s must be at most %s", field, fieldError.Param()))
			case "email":
				details = append(details, fmt.Sprintf("%s must be a valid email", field))
			case "oneof":
				details = append(details, fmt.Sprintf("%s must be one of: %s", field, fieldError.Param()))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", field))
			}
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "validation failed",
			"errors":  details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid body"})
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func paramID(c *gin.Context, name string) (primitive.ObjectID, error) {
	return parseObjectID(c.Param(name))
}

func parseObjectID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, errInvalidID
	}
	return id, nil
}

func optionalObjectID(raw string) (*primitive.ObjectID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseObjectID(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// actor returns the authenticated caller. Routes using it sit behind AuthGuard.
func actor(c *gin.Context) service.Actor {
	a, _ := middleware.ActorFrom(c)
	return a
}
