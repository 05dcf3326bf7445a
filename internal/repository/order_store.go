package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"marketplace/internal/models"
)

const orderCollectionName = "orders"

// StatusChange is applied by ChangeStatus together with its history entry.
type StatusChange struct {
	Status       string
	Note         string
	CancelReason string
	Tracking     *models.Tracking
	At           time.Time
}

type OrderFilter struct {
	Buyer       *primitive.ObjectID
	Seller      *primitive.ObjectID
	Status      string
	OrderNumber string
}

// CoPurchase is a product bought alongside another one and how often.
type CoPurchase struct {
	Product primitive.ObjectID `bson:"_id"`
	Count   int                `bson:"count"`
}

type MongoOrderStore struct {
	collection *mongo.Collection
}

func NewMongoOrderStore(db *mongo.Database) *MongoOrderStore {
	return &MongoOrderStore{collection: db.Collection(orderCollectionName)}
}

func (s *MongoOrderStore) Create(ctx context.Context, order *models.Order) error {
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	res, err := s.collection.InsertOne(ctx, order)
	if err != nil {
		return wrap(err, "insert order")
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = oid
	}
	return nil
}

func (s *MongoOrderStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return nil, wrap(err, "find order")
	}
	return &order, nil
}

// ChangeStatus is the only write that touches orderStatus. The update only
// matches while the order is still in one of from, and it appends the
// history entry in the same write. A nil order with ErrNotFound means the
// order is missing or its status moved concurrently.
func (s *MongoOrderStore) ChangeStatus(ctx context.Context, id primitive.ObjectID, from []string, change StatusChange) (*models.Order, error) {
	set := bson.M{
		"orderStatus": change.Status,
		"updatedAt":   change.At,
	}
	if change.CancelReason != "" {
		set["cancelReason"] = change.CancelReason
	}
	if change.Tracking != nil {
		set["tracking"] = change.Tracking
	}
	entry := models.StatusEntry{Status: change.Status, Timestamp: change.At, Note: change.Note}

	var updated models.Order
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "orderStatus": bson.M{"$in": from}},
		bson.M{"$set": set, "$push": bson.M{"statusHistory": entry}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return nil, wrap(err, "change order status")
	}
	return &updated, nil
}

func (s *MongoOrderStore) ChangePaymentStatus(ctx context.Context, id primitive.ObjectID, from []string, to string) (*models.Order, error) {
	var updated models.Order
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "paymentStatus": bson.M{"$in": from}},
		bson.M{"$set": bson.M{"paymentStatus": to, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return nil, wrap(err, "change payment status")
	}
	return &updated, nil
}

func (s *MongoOrderStore) List(ctx context.Context, filter OrderFilter, page Page) ([]models.Order, int64, error) {
	query := bson.M{}
	if filter.Buyer != nil {
		query["buyer"] = *filter.Buyer
	}
	if filter.Seller != nil {
		query["items.seller"] = *filter.Seller
	}
	if filter.Status != "" {
		query["orderStatus"] = filter.Status
	}
	if filter.OrderNumber != "" {
		query["orderNumber"] = prefixPattern(filter.OrderNumber)
	}

	total, err := s.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, wrap(err, "count orders")
	}
	cursor, err := s.collection.Find(ctx, query, page.findOptions(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, 0, wrap(err, "list orders")
	}
	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, wrap(err, "decode orders")
	}
	return orders, total, nil
}

// FindDeliveredContaining returns a delivered order of buyer that includes product.
func (s *MongoOrderStore) FindDeliveredContaining(ctx context.Context, buyer, product primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	err := s.collection.FindOne(ctx, bson.M{
		"buyer":         buyer,
		"items.product": product,
		"orderStatus":   models.OrderDelivered,
	}).Decode(&order)
	if err != nil {
		return nil, wrap(err, "find delivered order")
	}
	return &order, nil
}

// PurchasedCategories resolves the distinct categories of everything the
// buyer has ordered, cancelled orders excluded.
func (s *MongoOrderStore) PurchasedCategories(ctx context.Context, buyer primitive.ObjectID) ([]primitive.ObjectID, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"buyer": buyer, "orderStatus": bson.M{"$ne": models.OrderCancelled}}}},
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$lookup", Value: bson.M{
			"from":         productCollectionName,
			"localField":   "items.product",
			"foreignField": "_id",
			"as":           "product",
		}}},
		{{Key: "$unwind", Value: "$product"}},
		{{Key: "$group", Value: bson.M{"_id": "$product.category"}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrap(err, "aggregate purchased categories")
	}
	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, wrap(err, "decode purchased categories")
	}
	categories := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		if !row.ID.IsZero() {
			categories = append(categories, row.ID)
		}
	}
	return categories, nil
}

// BoughtTogether counts how often other products appear in delivered
// orders that contain product, most frequent first.
func (s *MongoOrderStore) BoughtTogether(ctx context.Context, product primitive.ObjectID, limit int64) ([]CoPurchase, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"items.product": product, "orderStatus": models.OrderDelivered}}},
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$match", Value: bson.M{"items.product": bson.M{"$ne": product}}}},
		{{Key: "$group", Value: bson.M{"_id": "$items.product", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrap(err, "aggregate bought together")
	}
	rows := make([]CoPurchase, 0)
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, wrap(err, "decode bought together")
	}
	return rows, nil
}
