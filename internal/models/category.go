package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Category struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name        string              `bson:"name" json:"name"`
	Slug        string              `bson:"slug" json:"slug"`
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	Icon        string              `bson:"icon,omitempty" json:"icon,omitempty"`
	Image       string              `bson:"image,omitempty" json:"image,omitempty"`
	Parent      *primitive.ObjectID `bson:"parent" json:"parent"`
	IsActive    bool                `bson:"isActive" json:"isActive"`
	Order       int                 `bson:"order" json:"order"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}
