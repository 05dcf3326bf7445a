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

const userCollectionName = "users"

type UserFilter struct {
	Role   string
	Search string
}

// ProfileUpdate holds optional profile fields; nil means unchanged.
type ProfileUpdate struct {
	Name   *string
	Phone  *string
	Avatar *string
}

type AdminUserUpdate struct {
	Name       *string
	Role       *string
	IsActive   *bool
	IsVerified *bool
}

type MongoUserStore struct {
	collection *mongo.Collection
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{collection: db.Collection(userCollectionName)}
}

func (s *MongoUserStore) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Addresses == nil {
		user.Addresses = []models.Address{}
	}
	if user.Favorites == nil {
		user.Favorites = []primitive.ObjectID{}
	}
	if user.SearchHistory == nil {
		user.SearchHistory = []models.SearchEntry{}
	}

	res, err := s.collection.InsertOne(ctx, user)
	if err != nil {
		return wrap(err, "insert user")
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid
	}
	return nil
}

func (s *MongoUserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, wrap(err, "find user")
	}
	return &user, nil
}

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, wrap(err, "find user by email")
	}
	return &user, nil
}

func (s *MongoUserStore) Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	out := make(map[primitive.ObjectID]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"name": 1, "avatar": 1})
	cursor, err := s.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, wrap(err, "find user summaries")
	}
	var summaries []models.UserSummary
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, wrap(err, "decode user summaries")
	}
	for _, summary := range summaries {
		out[summary.ID] = summary
	}
	return out, nil
}

func (s *MongoUserStore) TouchLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.collection.UpdateByID(ctx, id, bson.M{"$set": bson.M{"lastLogin": at}})
	return wrap(err, "update last login")
}

func (s *MongoUserStore) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	res, err := s.collection.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"passwordHash": hash,
		"updatedAt":    time.Now(),
	}})
	if err != nil {
		return wrap(err, "update password")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoUserStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, update ProfileUpdate) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Phone != nil {
		set["phone"] = *update.Phone
	}
	if update.Avatar != nil {
		set["avatar"] = *update.Avatar
	}
	return s.findOneAndSet(ctx, id, set, "update profile")
}

func (s *MongoUserStore) SetAddresses(ctx context.Context, id primitive.ObjectID, addresses []models.Address) error {
	res, err := s.collection.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"addresses": addresses,
		"updatedAt": time.Now(),
	}})
	if err != nil {
		return wrap(err, "set addresses")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AddFavorite returns false when the product was already a favorite.
func (s *MongoUserStore) AddFavorite(ctx context.Context, id, productID primitive.ObjectID) (bool, error) {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "favorites": bson.M{"$ne": productID}},
		bson.M{
			"$push": bson.M{"favorites": productID},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return false, wrap(err, "add favorite")
	}
	return res.MatchedCount == 1, nil
}

func (s *MongoUserStore) RemoveFavorite(ctx context.Context, id, productID primitive.ObjectID) error {
	_, err := s.collection.UpdateByID(ctx, id, bson.M{
		"$pull": bson.M{"favorites": productID},
		"$set":  bson.M{"updatedAt": time.Now()},
	})
	return wrap(err, "remove favorite")
}

// PushSearch appends a query and keeps only the most recent entries.
func (s *MongoUserStore) PushSearch(ctx context.Context, id primitive.ObjectID, query string, at time.Time) error {
	_, err := s.collection.UpdateByID(ctx, id, bson.M{
		"$push": bson.M{"searchHistory": bson.M{
			"$each":  []models.SearchEntry{{Query: query, Timestamp: at}},
			"$slice": -models.SearchHistoryLimit,
		}},
	})
	return wrap(err, "push search history")
}

func (s *MongoUserStore) ClearSearchHistory(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.collection.UpdateByID(ctx, id, bson.M{"$set": bson.M{"searchHistory": []models.SearchEntry{}}})
	return wrap(err, "clear search history")
}

func (s *MongoUserStore) List(ctx context.Context, filter UserFilter, page Page) ([]models.User, int64, error) {
	query := bson.M{}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	if filter.Search != "" {
		query["$or"] = []bson.M{
			{"name": containsPattern(filter.Search)},
			{"email": containsPattern(filter.Search)},
		}
	}

	total, err := s.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, wrap(err, "count users")
	}

	cursor, err := s.collection.Find(ctx, query, page.findOptions(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, 0, wrap(err, "list users")
	}
	users := make([]models.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, wrap(err, "decode users")
	}
	return users, total, nil
}

func (s *MongoUserStore) AdminUpdate(ctx context.Context, id primitive.ObjectID, update AdminUserUpdate) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Role != nil {
		set["role"] = *update.Role
	}
	if update.IsActive != nil {
		set["isActive"] = *update.IsActive
	}
	if update.IsVerified != nil {
		set["isVerified"] = *update.IsVerified
	}
	return s.findOneAndSet(ctx, id, set, "admin update user")
}

func (s *MongoUserStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrap(err, "delete user")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoUserStore) findOneAndSet(ctx context.Context, id primitive.ObjectID, set bson.M, op string) (*models.User, error) {
	var updated models.User
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return nil, wrap(err, op)
	}
	return &updated, nil
}

