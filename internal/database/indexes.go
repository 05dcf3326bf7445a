package database

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates every index the stores rely on. Unique indexes back
// the conflict checks (email, category name/slug, order number, one review
// per product and user).
func EnsureIndexes(db *mongo.Database) error {
	ensurers := []func(*mongo.Database) error{
		EnsureUserIndexes,
		EnsureProductIndexes,
		EnsureCategoryIndexes,
		EnsureOrderIndexes,
		EnsureReviewIndexes,
		EnsureMessageIndexes,
		EnsureRefreshTokenIndexes,
	}
	for _, ensure := range ensurers {
		if err := ensure(db); err != nil {
			return err
		}
	}
	return nil
}

func createIndexes(db *mongo.Database, collection string, models []mongo.IndexModel) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log := logrus.WithFields(logrus.Fields{"area": "DB", "collection": collection})
	names, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
	if err != nil {
		log.WithError(err).Error("index creation failed")
		return err
	}
	log.WithField("indexes", names).Info("indexes ensured")
	return nil
}

func EnsureUserIndexes(db *mongo.Database) error {
	return createIndexes(db, "users", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}},
			Options: options.Index().SetName("role_index"),
		},
	})
}

func EnsureProductIndexes(db *mongo.Database) error {
	return createIndexes(db, "products", []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "title", Value: "text"},
				{Key: "description", Value: "text"},
				{Key: "tags", Value: "text"},
			},
			Options: options.Index().SetName("product_text"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "isActive", Value: 1}},
			Options: options.Index().SetName("category_active"),
		},
		{
			Keys:    bson.D{{Key: "seller", Value: 1}},
			Options: options.Index().SetName("seller_index"),
		},
		{
			Keys:    bson.D{{Key: "price", Value: 1}},
			Options: options.Index().SetName("price_index"),
		},
		{
			Keys:    bson.D{{Key: "rating.average", Value: -1}},
			Options: options.Index().SetName("rating_index"),
		},
		{
			Keys:    bson.D{{Key: "sales", Value: -1}},
			Options: options.Index().SetName("sales_index"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("createdAt_index"),
		},
	})
}

func EnsureCategoryIndexes(db *mongo.Database) error {
	return createIndexes(db, "categories", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("name_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetName("slug_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "parent", Value: 1}},
			Options: options.Index().SetName("parent_index"),
		},
	})
}

func EnsureOrderIndexes(db *mongo.Database) error {
	return createIndexes(db, "orders", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "orderNumber", Value: 1}},
			Options: options.Index().SetName("orderNumber_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "buyer", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("buyer_createdAt"),
		},
		{
			Keys:    bson.D{{Key: "items.seller", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("seller_createdAt"),
		},
		{
			Keys:    bson.D{{Key: "orderStatus", Value: 1}},
			Options: options.Index().SetName("orderStatus_index"),
		},
		{
			Keys:    bson.D{{Key: "paymentStatus", Value: 1}},
			Options: options.Index().SetName("paymentStatus_index"),
		},
	})
}

func EnsureReviewIndexes(db *mongo.Database) error {
	return createIndexes(db, "reviews", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "product", Value: 1}, {Key: "user", Value: 1}},
			Options: options.Index().SetName("product_user_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "product", Value: 1}, {Key: "rating", Value: -1}},
			Options: options.Index().SetName("product_rating"),
		},
		{
			Keys:    bson.D{{Key: "user", Value: 1}},
			Options: options.Index().SetName("user_index"),
		},
	})
}

func EnsureMessageIndexes(db *mongo.Database) error {
	return createIndexes(db, "messages", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "conversation", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("conversation_createdAt"),
		},
		{
			Keys:    bson.D{{Key: "sender", Value: 1}, {Key: "receiver", Value: 1}},
			Options: options.Index().SetName("sender_receiver"),
		},
		{
			Keys:    bson.D{{Key: "receiver", Value: 1}, {Key: "isRead", Value: 1}},
			Options: options.Index().SetName("receiver_isRead"),
		},
	})
}

func EnsureRefreshTokenIndexes(db *mongo.Database) error {
	return createIndexes(db, "refresh_tokens", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tokenHash", Value: 1}},
			Options: options.Index().SetName("tokenHash_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetName("expiresAt_ttl").SetExpireAfterSeconds(0),
		},
	})
}
