package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// SearchHistoryLimit bounds the number of stored search queries per user.
const SearchHistoryLimit = 20

// Address represents a single address entry for a user.
type Address struct {
	ID           string `bson:"id" json:"id"`
	Street       string `bson:"street" json:"street"`
	Number       string `bson:"number" json:"number"`
	Complement   string `bson:"complement,omitempty" json:"complement,omitempty"`
	Neighborhood string `bson:"neighborhood" json:"neighborhood"`
	City         string `bson:"city" json:"city"`
	State        string `bson:"state" json:"state"`
	ZipCode      string `bson:"zipCode" json:"zipCode"`
	IsDefault    bool   `bson:"isDefault" json:"isDefault"`
}

type SearchEntry struct {
	Query     string    `bson:"query" json:"query"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// User represents the application user account.
type User struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name          string               `bson:"name" json:"name"`
	Email         string               `bson:"email" json:"email"`
	PasswordHash  string               `bson:"passwordHash" json:"-"`
	Role          string               `bson:"role" json:"role"`
	Avatar        string               `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Phone         string               `bson:"phone,omitempty" json:"phone,omitempty"`
	Addresses     []Address            `bson:"addresses" json:"addresses"`
	Favorites     []primitive.ObjectID `bson:"favorites" json:"favorites"`
	SearchHistory []SearchEntry        `bson:"searchHistory" json:"-"`
	IsVerified    bool                 `bson:"isVerified" json:"isVerified"`
	IsActive      bool                 `bson:"isActive" json:"isActive"`
	LastLogin     *time.Time           `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// UserSummary is the public projection embedded in other responses.
type UserSummary struct {
	ID     primitive.ObjectID `bson:"_id" json:"id"`
	Name   string             `bson:"name" json:"name"`
	Avatar string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
}

func ValidRole(role string) bool {
	switch role {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}
