package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"marketplace/internal/models"
)

// normalizeProductDocument repairs documents written by older importers
// before decoding: string category ids, float or missing stock and missing
// active flags.
func normalizeProductDocument(raw bson.M) (models.Product, error) {
	if cat, ok := raw["category"].(string); ok {
		if oid, err := primitive.ObjectIDFromHex(cat); err == nil {
			raw["category"] = oid
		} else {
			delete(raw, "category")
		}
	}

	raw["stock"] = normalizeCount(raw["stock"])
	raw["views"] = normalizeCount(raw["views"])
	raw["sales"] = normalizeCount(raw["sales"])

	if val, ok := raw["isActive"]; ok {
		switch typed := val.(type) {
		case string:
			raw["isActive"] = typed == "true"
		case bool:
		default:
			raw["isActive"] = true
		}
	} else {
		raw["isActive"] = true
	}

	data, err := bson.Marshal(raw)
	if err != nil {
		return models.Product{}, err
	}

	var p models.Product
	if err := bson.Unmarshal(data, &p); err != nil {
		return models.Product{}, err
	}
	if p.Images == nil {
		p.Images = []models.ProductImage{}
	}

	p.InStock = p.Stock > 0

	return p, nil
}

func normalizeCount(val interface{}) int {
	switch typed := val.(type) {
	case int32:
		return int(typed)
	case int64:
		return int(typed)
	case float64:
		return int(typed)
	case int:
		return typed
	default:
		return 0
	}
}

func decodeProduct(single *mongo.SingleResult) (*models.Product, error) {
	var raw bson.M
	if err := single.Decode(&raw); err != nil {
		return nil, err
	}
	product, err := normalizeProductDocument(raw)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]models.Product, error) {
	defer cursor.Close(ctx)

	products := make([]models.Product, 0)

	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}

		product, err := normalizeProductDocument(raw)
		if err != nil {
			return nil, err
		}

		products = append(products, product)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return products, nil
}
