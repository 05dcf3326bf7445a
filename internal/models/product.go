package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ConditionNew         = "new"
	ConditionUsed        = "used"
	ConditionRefurbished = "refurbished"
)

type ProductImage struct {
	URL string `bson:"url" json:"url"`
	Alt string `bson:"alt,omitempty" json:"alt,omitempty"`
}

type Specification struct {
	Key   string `bson:"key" json:"key"`
	Value string `bson:"value" json:"value"`
}

type Dimensions struct {
	Length float64 `bson:"length" json:"length"`
	Width  float64 `bson:"width" json:"width"`
	Height float64 `bson:"height" json:"height"`
}

type Shipping struct {
	FreeShipping bool        `bson:"freeShipping" json:"freeShipping"`
	Weight       float64     `bson:"weight,omitempty" json:"weight,omitempty"`
	Dimensions   *Dimensions `bson:"dimensions,omitempty" json:"dimensions,omitempty"`
}

// Rating is the aggregate over all reviews of a product. It is only written
// by the review subsystem. Revision counts review writes; Applied is the
// revision the stored aggregate was computed at, so an older aggregate never
// overwrites a newer one.
type Rating struct {
	Average  float64 `bson:"average" json:"average"`
	Count    int     `bson:"count" json:"count"`
	Revision int64   `bson:"revision" json:"-"`
	Applied  int64   `bson:"applied" json:"-"`
}

type Product struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title          string             `bson:"title" json:"title"`
	Description    string             `bson:"description" json:"description"`
	Price          float64            `bson:"price" json:"price"`
	OriginalPrice  float64            `bson:"originalPrice,omitempty" json:"originalPrice,omitempty"`
	Discount       int                `bson:"discount" json:"discount"`
	Images         []ProductImage     `bson:"images" json:"images"`
	Category       primitive.ObjectID `bson:"category" json:"category"`
	Seller         primitive.ObjectID `bson:"seller" json:"seller"`
	Stock          int                `bson:"stock" json:"stock"`
	Condition      string             `bson:"condition" json:"condition"`
	Brand          string             `bson:"brand,omitempty" json:"brand,omitempty"`
	Specifications []Specification    `bson:"specifications,omitempty" json:"specifications,omitempty"`
	Shipping       Shipping           `bson:"shipping" json:"shipping"`
	Rating         Rating             `bson:"rating" json:"rating"`
	Views          int                `bson:"views" json:"views"`
	Sales          int                `bson:"sales" json:"sales"`
	IsActive       bool               `bson:"isActive" json:"isActive"`
	IsFeatured     bool               `bson:"isFeatured" json:"isFeatured"`
	Tags           StringList         `bson:"tags" json:"tags"`
	InStock        bool               `bson:"-" json:"inStock"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// FirstImageURL returns the cover image used in order snapshots.
func (p Product) FirstImageURL() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}

func ValidCondition(condition string) bool {
	switch condition {
	case ConditionNew, ConditionUsed, ConditionRefurbished:
		return true
	}
	return false
}
