package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/models"
	"marketplace/internal/repository"
)

type OrderProducts interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	ReserveStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error)
	ReleaseStock(ctx context.Context, id primitive.ObjectID, qty int) error
}

type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	ChangeStatus(ctx context.Context, id primitive.ObjectID, from []string, change repository.StatusChange) (*models.Order, error)
	ChangePaymentStatus(ctx context.Context, id primitive.ObjectID, from []string, to string) (*models.Order, error)
	List(ctx context.Context, filter repository.OrderFilter, page repository.Page) ([]models.Order, int64, error)
}

// cancellable lists the statuses an order can still be cancelled from.
var cancellable = []string{models.OrderPending, models.OrderConfirmed, models.OrderPreparing}

var orderTransitions = map[string][]string{
	models.OrderPending:   {models.OrderConfirmed, models.OrderCancelled},
	models.OrderConfirmed: {models.OrderPreparing, models.OrderCancelled},
	models.OrderPreparing: {models.OrderShipped, models.OrderCancelled},
	models.OrderShipped:   {models.OrderDelivered},
}

// paymentSources maps a payment status to the statuses it may be reached from.
var paymentSources = map[string][]string{
	models.PaymentApproved: {models.PaymentPending},
	models.PaymentRejected: {models.PaymentPending},
	models.PaymentRefunded: {models.PaymentApproved},
}

type OrderLine struct {
	ProductID primitive.ObjectID
	Quantity  int
}

type CreateOrderInput struct {
	Items           []OrderLine
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
	ShippingCost    float64
	Discount        float64
	Notes           string
}

type StatusUpdate struct {
	Status   string
	Note     string
	Tracking *models.Tracking
}

type OrderService struct {
	orders   OrderStore
	products OrderProducts
	log      *logrus.Entry
}

func NewOrderService(orders OrderStore, products OrderProducts) *OrderService {
	return &OrderService{
		orders:   orders,
		products: products,
		log:      logrus.WithField("area", "ORDER"),
	}
}

type reservation struct {
	product primitive.ObjectID
	qty     int
}

// Create reserves stock line by line with a conditional decrement. Any
// failure releases what was already reserved, so either every line is
// reserved and the order exists, or nothing changed.
func (s *OrderService) Create(ctx context.Context, buyer Actor, in CreateOrderInput) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, fail(ErrValidation, "order must contain at least one item")
	}
	if !models.ValidPaymentMethod(in.PaymentMethod) {
		return nil, fail(ErrValidation, "invalid payment method")
	}
	if in.ShippingCost < 0 || in.Discount < 0 {
		return nil, fail(ErrValidation, "shipping cost and discount must not be negative")
	}
	for _, line := range in.Items {
		if line.Quantity < 1 {
			return nil, fail(ErrValidation, "quantity must be at least 1")
		}
	}

	reserved := make([]reservation, 0, len(in.Items))
	items := make([]models.OrderItem, 0, len(in.Items))
	subtotal := decimal.Zero

	for _, line := range in.Items {
		product, err := s.products.FindByID(ctx, line.ProductID)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !product.IsActive) {
			s.release(ctx, reserved)
			return nil, fail(ErrNotFound, "product %s not found", line.ProductID.Hex())
		}
		if err != nil {
			s.release(ctx, reserved)
			return nil, errors.Wrap(err, "load product")
		}

		if product.Stock < line.Quantity {
			s.release(ctx, reserved)
			return nil, &InsufficientStockError{
				ProductID: product.ID,
				Title:     product.Title,
				Available: product.Stock,
				Requested: line.Quantity,
			}
		}

		ok, err := s.products.ReserveStock(ctx, product.ID, line.Quantity)
		if err != nil {
			s.release(ctx, reserved)
			return nil, errors.Wrap(err, "reserve stock")
		}
		if !ok {
			// stock moved between the read and the conditional write
			s.release(ctx, reserved)
			return nil, &InsufficientStockError{
				ProductID: product.ID,
				Title:     product.Title,
				Available: s.currentStock(ctx, product),
				Requested: line.Quantity,
			}
		}
		reserved = append(reserved, reservation{product: product.ID, qty: line.Quantity})

		price := decimal.NewFromFloat(product.Price)
		lineTotal := price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(lineTotal)

		items = append(items, models.OrderItem{
			Product:  product.ID,
			Seller:   product.Seller,
			Title:    product.Title,
			Image:    product.FirstImageURL(),
			Price:    product.Price,
			Quantity: line.Quantity,
			Subtotal: lineTotal.Round(2).InexactFloat64(),
		})
	}

	shipping := decimal.NewFromFloat(in.ShippingCost)
	discount := decimal.NewFromFloat(in.Discount)
	total := subtotal.Add(shipping).Sub(discount)
	if total.IsNegative() {
		s.release(ctx, reserved)
		return nil, fail(ErrValidation, "discount exceeds order value")
	}

	now := time.Now()
	order := &models.Order{
		OrderNumber:     newOrderNumber(now),
		Buyer:           buyer.ID,
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   models.PaymentPending,
		OrderStatus:     models.OrderPending,
		Subtotal:        subtotal.Round(2).InexactFloat64(),
		ShippingCost:    shipping.Round(2).InexactFloat64(),
		Discount:        discount.Round(2).InexactFloat64(),
		Total:           total.Round(2).InexactFloat64(),
		StatusHistory: []models.StatusEntry{
			{Status: models.OrderPending, Timestamp: now, Note: "order created"},
		},
		Notes: strings.TrimSpace(in.Notes),
	}

	if err := s.orders.Create(ctx, order); err != nil {
		s.release(ctx, reserved)
		return nil, errors.Wrap(err, "insert order")
	}

	s.log.WithFields(logrus.Fields{
		"order": order.OrderNumber,
		"buyer": buyer.ID.Hex(),
		"total": order.Total,
		"items": len(order.Items),
	}).Info("order created")
	return order, nil
}

// currentStock re-reads a product after a lost reservation race. It falls
// back to the earlier read when the product cannot be loaded.
func (s *OrderService) currentStock(ctx context.Context, product *models.Product) int {
	fresh, err := s.products.FindByID(ctx, product.ID)
	if err != nil {
		return product.Stock
	}
	if fresh.Stock < 0 {
		return 0
	}
	return fresh.Stock
}

// release puts reserved units back. It runs detached from the request
// context so a cancelled request still rolls back.
func (s *OrderService) release(ctx context.Context, reserved []reservation) {
	ctx = context.WithoutCancel(ctx)
	for _, r := range reserved {
		if err := s.products.ReleaseStock(ctx, r.product, r.qty); err != nil {
			s.log.WithError(err).WithField("product", r.product.Hex()).Error("release stock failed")
		}
	}
}

func (s *OrderService) Get(ctx context.Context, actor Actor, id primitive.ObjectID) (*models.Order, error) {
	order, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Buyer != actor.ID && !actor.IsAdmin() && !order.HasSeller(actor.ID) {
		return nil, fail(ErrForbidden, "not allowed to view this order")
	}
	return order, nil
}

func (s *OrderService) ListMine(ctx context.Context, actor Actor, status string, page repository.Page) (PageResult[models.Order], error) {
	return s.list(ctx, repository.OrderFilter{Buyer: &actor.ID, Status: status}, page)
}

func (s *OrderService) ListSales(ctx context.Context, actor Actor, status string, page repository.Page) (PageResult[models.Order], error) {
	return s.list(ctx, repository.OrderFilter{Seller: &actor.ID, Status: status}, page)
}

func (s *OrderService) ListAll(ctx context.Context, filter repository.OrderFilter, page repository.Page) (PageResult[models.Order], error) {
	return s.list(ctx, filter, page)
}

func (s *OrderService) list(ctx context.Context, filter repository.OrderFilter, page repository.Page) (PageResult[models.Order], error) {
	orders, total, err := s.orders.List(ctx, filter, page)
	if err != nil {
		return PageResult[models.Order]{}, errors.Wrap(err, "list orders")
	}
	return pageOf(orders, page, total), nil
}

// Cancel is allowed to the buyer and to admins.
func (s *OrderService) Cancel(ctx context.Context, actor Actor, id primitive.ObjectID, reason string) (*models.Order, error) {
	order, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Buyer != actor.ID && !actor.IsAdmin() {
		return nil, fail(ErrForbidden, "only the buyer or an admin can cancel this order")
	}
	return s.cancel(ctx, order, strings.TrimSpace(reason))
}

// cancel flips the status first with a conditional write; only the caller
// that wins that write restocks, so stock is restored exactly once.
func (s *OrderService) cancel(ctx context.Context, order *models.Order, reason string) (*models.Order, error) {
	if !contains(cancellable, order.OrderStatus) {
		return nil, fail(ErrInvalidState, "order cannot be cancelled when %s", order.OrderStatus)
	}

	note := "order cancelled"
	if reason != "" {
		note = reason
	}
	updated, err := s.orders.ChangeStatus(ctx, order.ID, cancellable, repository.StatusChange{
		Status:       models.OrderCancelled,
		Note:         note,
		CancelReason: reason,
		At:           time.Now(),
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrInvalidState, "order status changed, cannot cancel")
	}
	if err != nil {
		return nil, errors.Wrap(err, "cancel order")
	}

	// The order is cancelled from here on. A failed restock is logged with
	// the line so it can be repaired by hand; the caller still gets the order.
	for _, item := range updated.Items {
		if err := s.products.ReleaseStock(context.WithoutCancel(ctx), item.Product, item.Quantity); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"order":    updated.OrderNumber,
				"product":  item.Product.Hex(),
				"quantity": item.Quantity,
			}).Error("restock failed, stock needs repair")
		}
	}

	s.log.WithField("order", updated.OrderNumber).Info("order cancelled")
	return updated, nil
}

// UpdateStatus is allowed to admins and to sellers with items in the order.
func (s *OrderService) UpdateStatus(ctx context.Context, actor Actor, id primitive.ObjectID, update StatusUpdate) (*models.Order, error) {
	if !models.ValidOrderStatus(update.Status) {
		return nil, fail(ErrValidation, "invalid order status")
	}

	order, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !order.HasSeller(actor.ID) {
		return nil, fail(ErrForbidden, "not allowed to update this order")
	}

	// Sellers may cancel orders holding their items (e.g. they cannot ship);
	// buyers go through Cancel.
	if update.Status == models.OrderCancelled {
		return s.cancel(ctx, order, strings.TrimSpace(update.Note))
	}

	if !contains(orderTransitions[order.OrderStatus], update.Status) {
		return nil, fail(ErrInvalidState, "cannot move order from %s to %s", order.OrderStatus, update.Status)
	}

	updated, err := s.orders.ChangeStatus(ctx, order.ID, []string{order.OrderStatus}, repository.StatusChange{
		Status:   update.Status,
		Note:     strings.TrimSpace(update.Note),
		Tracking: update.Tracking,
		At:       time.Now(),
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrInvalidState, "order status changed, retry")
	}
	if err != nil {
		return nil, errors.Wrap(err, "update order status")
	}

	s.log.WithFields(logrus.Fields{
		"order": updated.OrderNumber,
		"from":  order.OrderStatus,
		"to":    updated.OrderStatus,
		"actor": actor.ID.Hex(),
	}).Info("order status changed")
	return updated, nil
}

func (s *OrderService) UpdatePaymentStatus(ctx context.Context, actor Actor, id primitive.ObjectID, status string) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, fail(ErrForbidden, "only admins can change payment status")
	}
	from, ok := paymentSources[status]
	if !ok {
		return nil, fail(ErrValidation, "invalid payment status")
	}

	updated, err := s.orders.ChangePaymentStatus(ctx, id, from, status)
	if errors.Is(err, repository.ErrNotFound) {
		order, findErr := s.find(ctx, id)
		if findErr != nil {
			return nil, findErr
		}
		return nil, fail(ErrInvalidState, "cannot move payment from %s to %s", order.PaymentStatus, status)
	}
	if err != nil {
		return nil, errors.Wrap(err, "update payment status")
	}
	return updated, nil
}

func (s *OrderService) find(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "order not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load order")
	}
	return order, nil
}

// newOrderNumber builds NM-<base36 millis>-<5 random chars>.
func newOrderNumber(now time.Time) string {
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:5])
	return "NM-" + stamp + "-" + random
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
