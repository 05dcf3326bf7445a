package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/repository"
	"marketplace/internal/service"
)

func recordError(t *testing.T, err error) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(c, "TEST", err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&service.Error{Kind: service.ErrValidation, Message: "bad"}, http.StatusBadRequest},
		{&service.Error{Kind: service.ErrUnauthorized, Message: "who"}, http.StatusUnauthorized},
		{&service.Error{Kind: service.ErrForbidden, Message: "no"}, http.StatusForbidden},
		{&service.Error{Kind: service.ErrNotFound, Message: "gone"}, http.StatusNotFound},
		{&service.Error{Kind: service.ErrConflict, Message: "dup"}, http.StatusConflict},
		{&service.Error{Kind: service.ErrInvalidState, Message: "late"}, http.StatusBadRequest},
		{errors.Wrap(&service.Error{Kind: service.ErrForbidden, Message: "wrapped"}, "ctx"), http.StatusForbidden},
		{errInvalidID, http.StatusBadRequest},
		{errors.Wrap(repository.ErrNotFound, "load"), http.StatusNotFound},
		{errors.WithMessage(repository.ErrDuplicate, "insert"), http.StatusConflict},
	}
	for _, tc := range cases {
		code, body := recordError(t, tc.err)
		assert.Equal(t, tc.want, code, tc.err.Error())
		assert.Equal(t, false, body["success"])
	}
}

func TestRespondErrorInsufficientStockDetails(t *testing.T) {
	productID := primitive.NewObjectID()
	code, body := recordError(t, &service.InsufficientStockError{
		ProductID: productID,
		Title:     "Phone",
		Available: 1,
		Requested: 3,
	})

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["message"], "Phone")
	details := body["details"].(map[string]interface{})
	assert.Equal(t, productID.Hex(), details["productId"])
	assert.EqualValues(t, 1, details["available"])
	assert.EqualValues(t, 3, details["requested"])
}

func TestRespondErrorHidesInternalsOutsideDevelopment(t *testing.T) {
	code, body := recordError(t, errors.New("connection string leaked"))

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal server error", body["message"])
	assert.NotContains(t, body, "error")
}

func TestRespondValidationErrorListsFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","password":"123"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	var req RegisterRequest
	err := c.ShouldBindJSON(&req)
	require.Error(t, err)
	respondValidationError(c, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Message string   `json:"message"`
		Errors  []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body.Message)
	assert.Contains(t, body.Errors, "name is required")
	assert.Contains(t, body.Errors, "email must be a valid email")
	assert.Contains(t, body.Errors, "password must be at least 6")
}

func TestMalformedIDsAreRejectedBeforeTheService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/products/:id", GetProduct(nil))
	router.GET("/reviews/product/:productId", GetProductReviews(nil))

	for _, path := range []string{"/products/nope", "/reviews/product/123"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestHandlePanicReturns500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/boom", func(c *gin.Context) {
		defer handlePanic(c, "GET /boom")
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
