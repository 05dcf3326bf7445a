package service

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/models"
)

// Actor is the authenticated caller of a command.
type Actor struct {
	ID   primitive.ObjectID
	Role string
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

func (a Actor) IsSeller() bool {
	return a.Role == models.RoleSeller
}

