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

const categoryCollectionName = "categories"

type CategoryUpdate struct {
	Name        *string
	Slug        *string
	Description *string
	Icon        *string
	Image       *string
	Parent      *primitive.ObjectID
	ClearParent bool
	IsActive    *bool
	Order       *int
}

type MongoCategoryStore struct {
	collection *mongo.Collection
}

func NewMongoCategoryStore(db *mongo.Database) *MongoCategoryStore {
	return &MongoCategoryStore{collection: db.Collection(categoryCollectionName)}
}

func (s *MongoCategoryStore) Create(ctx context.Context, category *models.Category) error {
	now := time.Now()
	category.CreatedAt = now
	category.UpdatedAt = now

	res, err := s.collection.InsertOne(ctx, category)
	if err != nil {
		return wrap(err, "insert category")
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		category.ID = oid
	}
	return nil
}

func (s *MongoCategoryStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Category, error) {
	var category models.Category
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&category); err != nil {
		return nil, wrap(err, "find category")
	}
	return &category, nil
}

func (s *MongoCategoryStore) FindBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := s.collection.FindOne(ctx, bson.M{"slug": slug, "isActive": true}).Decode(&category); err != nil {
		return nil, wrap(err, "find category by slug")
	}
	return &category, nil
}

// NameTaken reports whether another category already uses name.
func (s *MongoCategoryStore) NameTaken(ctx context.Context, name string, except *primitive.ObjectID) (bool, error) {
	query := bson.M{"name": name}
	if except != nil {
		query["_id"] = bson.M{"$ne": *except}
	}
	count, err := s.collection.CountDocuments(ctx, query, options.Count().SetLimit(1))
	if err != nil {
		return false, wrap(err, "count categories")
	}
	return count > 0, nil
}

func (s *MongoCategoryStore) ListActive(ctx context.Context) ([]models.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "name", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"isActive": true}, opts)
	if err != nil {
		return nil, wrap(err, "list categories")
	}
	categories := make([]models.Category, 0)
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, wrap(err, "decode categories")
	}
	return categories, nil
}

func (s *MongoCategoryStore) Update(ctx context.Context, id primitive.ObjectID, update CategoryUpdate) (*models.Category, error) {
	set := bson.M{"updatedAt": time.Now()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Slug != nil {
		set["slug"] = *update.Slug
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Icon != nil {
		set["icon"] = *update.Icon
	}
	if update.Image != nil {
		set["image"] = *update.Image
	}
	if update.Parent != nil {
		set["parent"] = *update.Parent
	}
	if update.ClearParent {
		set["parent"] = nil
	}
	if update.IsActive != nil {
		set["isActive"] = *update.IsActive
	}
	if update.Order != nil {
		set["order"] = *update.Order
	}

	var updated models.Category
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return nil, wrap(err, "update category")
	}
	return &updated, nil
}

func (s *MongoCategoryStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrap(err, "delete category")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
