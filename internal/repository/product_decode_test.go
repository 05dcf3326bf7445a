package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNormalizeProductDocumentRepairsLegacyFields(t *testing.T) {
	category := primitive.NewObjectID()
	raw := bson.M{
		"_id":      primitive.NewObjectID(),
		"title":    "Lamp",
		"price":    49.9,
		"category": category.Hex(),
		"stock":    float64(3),
		"isActive": "true",
		"tags":     "Home, Light, home",
	}

	product, err := normalizeProductDocument(raw)
	require.NoError(t, err)

	assert.Equal(t, category, product.Category)
	assert.Equal(t, 3, product.Stock)
	assert.True(t, product.InStock)
	assert.True(t, product.IsActive)
	assert.Equal(t, []string{"home", "light"}, []string(product.Tags))
	assert.NotNil(t, product.Images)
}

func TestNormalizeProductDocumentDefaults(t *testing.T) {
	product, err := normalizeProductDocument(bson.M{"title": "Bare", "category": "not-an-id"})
	require.NoError(t, err)

	assert.True(t, product.Category.IsZero())
	assert.Equal(t, 0, product.Stock)
	assert.False(t, product.InStock)
	assert.True(t, product.IsActive)
}
