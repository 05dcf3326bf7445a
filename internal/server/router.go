package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"marketplace/internal/config"
	"marketplace/internal/handlers"
	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/realtime"
	"marketplace/internal/service"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Config   config.Config
	Tokens   middleware.TokenParser
	Users    middleware.AccountLookup
	Accounts *service.AccountService
	Catalog  *service.CatalogService
	Orders   *service.OrderService
	Reviews  *service.ReviewService
	Messages *service.MessageService
	Search   *service.SearchService
	Socket   *realtime.Server
	Ping     handlers.Pinger
}

func NewRouter(d Deps) *gin.Engine {
	if !d.Config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), cors.New(corsConfig(d.Config.CORSOrigins)))
	r.Use(requestTimeout(d.Config.RequestTimeout))

	r.Static("/uploads", d.Config.UploadDir)
	r.GET("/socket", d.Socket.Handle)

	authed := middleware.AuthGuard(d.Tokens, d.Users)
	sellers := middleware.AuthGuard(d.Tokens, d.Users, models.RoleSeller, models.RoleAdmin)
	admins := middleware.AdminAuth(d.Tokens, d.Users)
	optional := middleware.OptionalAuth(d.Tokens, d.Users)

	api := r.Group("/api")
	api.Use(middleware.RateLimit(middleware.NewRateLimiter(d.Config.RateLimitWindow, d.Config.RateLimitMax)))
	api.GET("/health", handlers.Health(d.Ping, time.Now()))

	authLimit := middleware.FailedAttemptLimit(middleware.NewRateLimiter(d.Config.RateLimitWindow, d.Config.AuthRateLimit))
	auth := api.Group("/auth")
	{
		auth.POST("/register", authLimit, handlers.Register(d.Accounts))
		auth.POST("/login", authLimit, handlers.Login(d.Accounts))
		auth.POST("/refresh", handlers.Refresh(d.Accounts))
		auth.POST("/logout", handlers.Logout(d.Accounts))
		auth.GET("/me", authed, handlers.GetMe(d.Accounts))
		auth.PUT("/password", authed, handlers.ChangePassword(d.Accounts))
	}

	users := api.Group("/users")
	{
		users.PUT("/profile", authed, handlers.UpdateProfile(d.Accounts))
		users.GET("/addresses", authed, handlers.GetUserAddresses(d.Accounts))
		users.POST("/addresses", authed, handlers.CreateUserAddress(d.Accounts))
		users.PUT("/addresses/:id", authed, handlers.UpdateUserAddress(d.Accounts))
		users.DELETE("/addresses/:id", authed, handlers.DeleteUserAddress(d.Accounts))
		users.GET("/favorites", authed, handlers.GetUserFavorites(d.Accounts))
		users.POST("/favorites", authed, handlers.AddUserFavorite(d.Accounts))
		users.DELETE("/favorites/:productId", authed, handlers.DeleteUserFavorite(d.Accounts))
		users.GET("/:id", handlers.GetUserProfile(d.Accounts))
	}

	products := api.Group("/products")
	{
		products.GET("", handlers.GetProducts(d.Catalog))
		products.GET("/featured", handlers.GetFeaturedProducts(d.Catalog))
		products.GET("/seller/:sellerId", optional, handlers.GetSellerProducts(d.Catalog))
		products.GET("/:id", optional, handlers.GetProduct(d.Catalog))
		products.POST("", sellers, handlers.CreateProduct(d.Catalog))
		products.PUT("/:id", sellers, handlers.UpdateProduct(d.Catalog))
		products.DELETE("/:id", sellers, handlers.DeleteProduct(d.Catalog, d.Config.UploadDir))
		products.POST("/:id/images", sellers, handlers.UploadProductImage(d.Catalog, d.Config.UploadDir))
		products.DELETE("/:id/images", sellers, handlers.DeleteProductImage(d.Catalog, d.Config.UploadDir))
	}

	categories := api.Group("/categories")
	{
		categories.GET("", handlers.GetCategories(d.Catalog))
		categories.GET("/:slug", handlers.GetCategoryBySlug(d.Catalog))
		categories.POST("", admins, handlers.CreateCategory(d.Catalog))
		categories.PUT("/:id", admins, handlers.UpdateCategory(d.Catalog))
		categories.DELETE("/:id", admins, handlers.DeleteCategory(d.Catalog))
	}

	orders := api.Group("/orders", authed)
	{
		orders.POST("", handlers.CreateOrder(d.Orders))
		orders.GET("/my-orders", handlers.GetMyOrders(d.Orders))
		orders.GET("/my-sales", sellers, handlers.GetMySales(d.Orders))
		orders.GET("/:id", handlers.GetOrder(d.Orders))
		orders.PUT("/:id/cancel", handlers.CancelOrder(d.Orders))
		orders.PUT("/:id/status", sellers, handlers.UpdateOrderStatus(d.Orders))
		orders.PUT("/:id/payment", admins, handlers.UpdatePaymentStatus(d.Orders))
	}

	reviews := api.Group("/reviews")
	{
		reviews.GET("/product/:productId", handlers.GetProductReviews(d.Reviews))
		reviews.POST("", authed, handlers.CreateReview(d.Reviews))
		reviews.PUT("/:id", authed, handlers.UpdateReview(d.Reviews))
		reviews.DELETE("/:id", authed, handlers.DeleteReview(d.Reviews))
		reviews.POST("/:id/helpful", authed, handlers.MarkReviewHelpful(d.Reviews))
		reviews.POST("/:id/response", sellers, handlers.RespondToReview(d.Reviews))
	}

	messages := api.Group("/messages", authed)
	{
		messages.GET("/conversations", handlers.GetConversations(d.Messages))
		messages.GET("/conversation/:conversationId", handlers.GetConversationMessages(d.Messages))
		messages.GET("/unread-count", handlers.GetUnreadCount(d.Messages))
		messages.GET("/unread/count", handlers.GetUnreadCount(d.Messages))
		messages.POST("", handlers.SendMessage(d.Messages))
		messages.PUT("/:id/read", handlers.MarkMessageRead(d.Messages))
	}

	search := api.Group("/search")
	{
		search.GET("", optional, handlers.SearchProducts(d.Search))
		search.GET("/autocomplete", handlers.Autocomplete(d.Search))
		search.GET("/trending", handlers.TrendingSearches(d.Search))
		search.GET("/history", authed, handlers.SearchHistory(d.Search))
		search.DELETE("/history", authed, handlers.ClearSearchHistory(d.Search))
	}

	recommendations := api.Group("/recommendations")
	{
		recommendations.GET("", optional, handlers.Recommendations(d.Search))
		recommendations.GET("/related/:productId", handlers.RelatedProducts(d.Search))
		recommendations.GET("/bought-together/:productId", handlers.BoughtTogether(d.Search))
		recommendations.GET("/trending", handlers.TrendingProducts(d.Search))
	}

	admin := api.Group("/admin", admins)
	{
		admin.GET("/users", handlers.AdminListUsers(d.Accounts))
		admin.PUT("/users/:id", handlers.AdminUpdateUser(d.Accounts))
		admin.DELETE("/users/:id", handlers.AdminDeleteUser(d.Accounts))
		admin.GET("/orders", handlers.AdminListOrders(d.Orders))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "route not found"})
	})
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowCredentials = true
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	return cfg
}

// requestTimeout bounds store calls made on behalf of a request. The socket
// is long lived and keeps the unbounded context.
func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 || c.Request.URL.Path == "/socket" {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
