package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"marketplace/internal/models"
)

const refreshTokenCollectionName = "refresh_tokens"

type MongoRefreshTokenStore struct {
	collection *mongo.Collection
}

func NewMongoRefreshTokenStore(db *mongo.Database) *MongoRefreshTokenStore {
	return &MongoRefreshTokenStore{collection: db.Collection(refreshTokenCollectionName)}
}

func (s *MongoRefreshTokenStore) Create(ctx context.Context, token *models.RefreshToken) error {
	token.CreatedAt = time.Now()
	res, err := s.collection.InsertOne(ctx, token)
	if err != nil {
		return wrap(err, "insert refresh token")
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		token.ID = oid
	}
	return nil
}

func (s *MongoRefreshTokenStore) FindActiveByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := s.collection.FindOne(ctx, bson.M{"tokenHash": hash, "revoked": false}).Decode(&token)
	if err != nil {
		return nil, wrap(err, "find refresh token")
	}
	return &token, nil
}

// Revoke marks a token revoked; it reports false if it was already revoked,
// which makes concurrent refreshes of the same token lose except one.
func (s *MongoRefreshTokenStore) Revoke(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) (bool, error) {
	set := bson.M{"revoked": true}
	if replacedBy != nil {
		set["replacedByToken"] = *replacedBy
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id, "revoked": false}, bson.M{"$set": set})
	if err != nil {
		return false, wrap(err, "revoke refresh token")
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoRefreshTokenStore) RevokeByHash(ctx context.Context, hash string) (bool, error) {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"tokenHash": hash, "revoked": false},
		bson.M{"$set": bson.M{"revoked": true}},
	)
	if err != nil {
		return false, wrap(err, "revoke refresh token")
	}
	return res.MatchedCount == 1, nil
}

func (s *MongoRefreshTokenStore) RevokeAllForUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.collection.UpdateMany(ctx,
		bson.M{"userId": userID, "revoked": false},
		bson.M{"$set": bson.M{"revoked": true}},
	)
	return wrap(err, "revoke user refresh tokens")
}
