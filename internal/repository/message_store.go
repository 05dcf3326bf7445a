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

const messageCollectionName = "messages"

type MongoMessageStore struct {
	collection *mongo.Collection
}

func NewMongoMessageStore(db *mongo.Database) *MongoMessageStore {
	return &MongoMessageStore{collection: db.Collection(messageCollectionName)}
}

func (s *MongoMessageStore) Create(ctx context.Context, message *models.Message) error {
	now := time.Now()
	message.CreatedAt = now
	message.UpdatedAt = now

	res, err := s.collection.InsertOne(ctx, message)
	if err != nil {
		return wrap(err, "insert message")
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		message.ID = oid
	}
	return nil
}

func (s *MongoMessageStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	var message models.Message
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&message); err != nil {
		return nil, wrap(err, "find message")
	}
	return &message, nil
}

// ListConversation returns one page of a conversation, newest first.
func (s *MongoMessageStore) ListConversation(ctx context.Context, conversation string, page Page) ([]models.Message, int64, error) {
	query := bson.M{"conversation": conversation}
	total, err := s.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, wrap(err, "count messages")
	}
	cursor, err := s.collection.Find(ctx, query, page.findOptions(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, 0, wrap(err, "list messages")
	}
	messages := make([]models.Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, 0, wrap(err, "decode messages")
	}
	return messages, total, nil
}

// MarkConversationRead flags every unread message addressed to receiver in
// the conversation as read.
func (s *MongoMessageStore) MarkConversationRead(ctx context.Context, conversation string, receiver primitive.ObjectID, at time.Time) (int64, error) {
	res, err := s.collection.UpdateMany(ctx,
		bson.M{"conversation": conversation, "receiver": receiver, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true, "readAt": at}},
	)
	if err != nil {
		return 0, wrap(err, "mark conversation read")
	}
	return res.ModifiedCount, nil
}

func (s *MongoMessageStore) MarkRead(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Message, error) {
	var updated models.Message
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"isRead": true, "readAt": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return nil, wrap(err, "mark message read")
	}
	return &updated, nil
}

func (s *MongoMessageStore) CountUnread(ctx context.Context, receiver primitive.ObjectID) (int64, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{"receiver": receiver, "isRead": false})
	if err != nil {
		return 0, wrap(err, "count unread")
	}
	return count, nil
}

// Conversations lists the user's threads with their latest message and the
// number of messages still unread by the user.
func (s *MongoMessageStore) Conversations(ctx context.Context, user primitive.ObjectID) ([]models.Conversation, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": []bson.M{{"sender": user}, {"receiver": user}}}}},
		{{Key: "$sort", Value: bson.M{"createdAt": -1}}},
		{{Key: "$group", Value: bson.M{
			"_id":         "$conversation",
			"lastMessage": bson.M{"$first": "$$ROOT"},
			"unreadCount": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$receiver", user}},
					bson.M{"$eq": bson.A{"$isRead", false}},
				}},
				1,
				0,
			}}},
		}}},
		{{Key: "$sort", Value: bson.M{"lastMessage.createdAt": -1}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrap(err, "aggregate conversations")
	}
	conversations := make([]models.Conversation, 0)
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, wrap(err, "decode conversations")
	}
	return conversations, nil
}
