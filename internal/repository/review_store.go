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

const reviewCollectionName = "reviews"

var ReviewSortFields = map[string]string{
	"createdAt": "createdAt",
	"rating":    "rating",
	"helpful":   "helpful",
}

type ReviewContent struct {
	Rating  *int
	Title   *string
	Comment *string
	Pros    *[]string
	Cons    *[]string
	Images  *[]string
}

// RatingStats is the raw aggregate over a product's reviews.
type RatingStats struct {
	Average float64 `bson:"average"`
	Count   int     `bson:"count"`
}

type MongoReviewStore struct {
	collection *mongo.Collection
}

func NewMongoReviewStore(db *mongo.Database) *MongoReviewStore {
	return &MongoReviewStore{collection: db.Collection(reviewCollectionName)}
}

// Create relies on the unique (product, user) index: a concurrent duplicate
// surfaces as ErrDuplicate.
func (s *MongoReviewStore) Create(ctx context.Context, review *models.Review) error {
	now := time.Now()
	review.CreatedAt = now
	review.UpdatedAt = now
	if review.HelpfulVotes == nil {
		review.HelpfulVotes = []primitive.ObjectID{}
	}

	res, err := s.collection.InsertOne(ctx, review)
	if err != nil {
		return wrap(err, "insert review")
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		review.ID = oid
	}
	return nil
}

func (s *MongoReviewStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	var review models.Review
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&review); err != nil {
		return nil, wrap(err, "find review")
	}
	return &review, nil
}

func (s *MongoReviewStore) Exists(ctx context.Context, product, user primitive.ObjectID) (bool, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{"product": product, "user": user}, options.Count().SetLimit(1))
	if err != nil {
		return false, wrap(err, "count reviews")
	}
	return count > 0, nil
}

func (s *MongoReviewStore) UpdateContent(ctx context.Context, id primitive.ObjectID, content ReviewContent) (*models.Review, error) {
	set := bson.M{"updatedAt": time.Now()}
	if content.Rating != nil {
		set["rating"] = *content.Rating
	}
	if content.Title != nil {
		set["title"] = *content.Title
	}
	if content.Comment != nil {
		set["comment"] = *content.Comment
	}
	if content.Pros != nil {
		set["pros"] = *content.Pros
	}
	if content.Cons != nil {
		set["cons"] = *content.Cons
	}
	if content.Images != nil {
		set["images"] = *content.Images
	}

	var updated models.Review
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return nil, wrap(err, "update review")
	}
	return &updated, nil
}

func (s *MongoReviewStore) SetResponse(ctx context.Context, id primitive.ObjectID, response models.ReviewResponse) (*models.Review, error) {
	var updated models.Review
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"response": response, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return nil, wrap(err, "set review response")
	}
	return &updated, nil
}

func (s *MongoReviewStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrap(err, "delete review")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoReviewStore) ListByProduct(ctx context.Context, product primitive.ObjectID, sort string, page Page) ([]models.Review, int64, error) {
	query := bson.M{"product": product}
	total, err := s.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, wrap(err, "count reviews")
	}

	order := ParseSort(sort, ReviewSortFields, bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.collection.Find(ctx, query, page.findOptions(order))
	if err != nil {
		return nil, 0, wrap(err, "list reviews")
	}
	reviews := make([]models.Review, 0)
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, 0, wrap(err, "decode reviews")
	}
	return reviews, total, nil
}

// RatingStats averages all ratings of product. Zero reviews yields zero stats.
func (s *MongoReviewStore) RatingStats(ctx context.Context, product primitive.ObjectID) (RatingStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"product": product}}},
		{{Key: "$group", Value: bson.M{
			"_id":     "$product",
			"average": bson.M{"$avg": "$rating"},
			"count":   bson.M{"$sum": 1},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return RatingStats{}, wrap(err, "aggregate rating")
	}
	var rows []RatingStats
	if err := cursor.All(ctx, &rows); err != nil {
		return RatingStats{}, wrap(err, "decode rating")
	}
	if len(rows) == 0 {
		return RatingStats{}, nil
	}
	return rows[0], nil
}

// AddHelpfulVote adds voter to the review's voter set and bumps the counter
// in one conditional write. It reports false when voter had already voted.
func (s *MongoReviewStore) AddHelpfulVote(ctx context.Context, id, voter primitive.ObjectID) (bool, error) {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "helpfulVotes": bson.M{"$ne": voter}},
		bson.M{
			"$push": bson.M{"helpfulVotes": voter},
			"$inc":  bson.M{"helpful": 1},
		},
	)
	if err != nil {
		return false, wrap(err, "add helpful vote")
	}
	return res.ModifiedCount == 1, nil
}
