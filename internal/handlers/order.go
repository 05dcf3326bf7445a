package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace/internal/models"
	"marketplace/internal/service"
)

type createOrderItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type createOrderRequest struct {
	Items           []createOrderItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddress models.ShippingAddress   `json:"shippingAddress" binding:"required"`
	PaymentMethod   string                   `json:"paymentMethod" binding:"required,oneof=credit_card debit_card pix boleto wallet"`
	ShippingCost    float64                  `json:"shippingCost" binding:"gte=0"`
	Discount        float64                  `json:"discount" binding:"gte=0"`
	Notes           string                   `json:"notes" binding:"max=500"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// orderStatusRequest takes the new status as orderStatus or status.
type orderStatusRequest struct {
	OrderStatus string           `json:"orderStatus"`
	Status      string           `json:"status"`
	Note        string           `json:"note"`
	Tracking    *models.Tracking `json:"tracking"`
}

func (r orderStatusRequest) status() string {
	if r.OrderStatus != "" {
		return r.OrderStatus
	}
	return r.Status
}

type paymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus" binding:"required"`
}

/*
POST /api/orders
- prices and totals come from the stored products, never from the body
- every line reserves stock or the whole order is rejected
*/
func CreateOrder(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		lines := make([]service.OrderLine, 0, len(req.Items))
		for _, item := range req.Items {
			productID, err := parseObjectID(item.ProductID)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid product id")
				return
			}
			lines = append(lines, service.OrderLine{ProductID: productID, Quantity: item.Quantity})
		}

		order, err := orders.Create(c.Request.Context(), actor(c), service.CreateOrderInput{
			Items:           lines,
			ShippingAddress: req.ShippingAddress,
			PaymentMethod:   req.PaymentMethod,
			ShippingCost:    req.ShippingCost,
			Discount:        req.Discount,
			Notes:           req.Notes,
		})
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusCreated, order)
	}
}

func GetMyOrders(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/my-orders"
		defer handlePanic(c, route)

		result, err := orders.ListMine(c.Request.Context(), actor(c), c.Query("status"), parsePaginationParams(c))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondPage(c, result)
	}
}

func GetMySales(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/my-sales"
		defer handlePanic(c, route)

		result, err := orders.ListSales(c.Request.Context(), actor(c), c.Query("status"), parsePaginationParams(c))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondPage(c, result)
	}
}

func GetOrder(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}
		order, err := orders.Get(c.Request.Context(), actor(c), id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, order)
	}
}

func CancelOrder(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /orders/:id/cancel"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}
		var req cancelOrderRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondValidationError(c, err)
				return
			}
		}

		order, err := orders.Cancel(c.Request.Context(), actor(c), id, req.Reason)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, order)
	}
}

func UpdateOrderStatus(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /orders/:id/status"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}
		var req orderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if req.status() == "" {
			respondWithError(c, http.StatusBadRequest, route, "orderStatus is required")
			return
		}

		order, err := orders.UpdateStatus(c.Request.Context(), actor(c), id, service.StatusUpdate{
			Status:   req.status(),
			Note:     req.Note,
			Tracking: req.Tracking,
		})
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, order)
	}
}

func UpdatePaymentStatus(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /orders/:id/payment"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}
		var req paymentStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		order, err := orders.UpdatePaymentStatus(c.Request.Context(), actor(c), id, req.PaymentStatus)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, order)
	}
}
