package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReviewResponse struct {
	Text string    `bson:"text" json:"text"`
	Date time.Time `bson:"date" json:"date"`
}

// Review is unique per (product, user). Helpful must always equal
// len(HelpfulVotes).
type Review struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Product      primitive.ObjectID   `bson:"product" json:"product"`
	User         primitive.ObjectID   `bson:"user" json:"user"`
	Order        *primitive.ObjectID  `bson:"order,omitempty" json:"order,omitempty"`
	Rating       int                  `bson:"rating" json:"rating"`
	Title        string               `bson:"title,omitempty" json:"title,omitempty"`
	Comment      string               `bson:"comment" json:"comment"`
	Images       []string             `bson:"images,omitempty" json:"images,omitempty"`
	Pros         []string             `bson:"pros,omitempty" json:"pros,omitempty"`
	Cons         []string             `bson:"cons,omitempty" json:"cons,omitempty"`
	Helpful      int                  `bson:"helpful" json:"helpful"`
	HelpfulVotes []primitive.ObjectID `bson:"helpfulVotes" json:"helpfulVotes"`
	Verified     bool                 `bson:"verified" json:"verified"`
	Response     *ReviewResponse      `bson:"response,omitempty" json:"response,omitempty"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt" json:"updatedAt"`
}
