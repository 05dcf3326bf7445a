package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/models"
	"marketplace/internal/repository"
	"marketplace/internal/service"
)

func TestSearchRequiresQuery(t *testing.T) {
	products := &searchProducts{fakeProducts: newFakeProducts()}
	svc := service.NewSearchService(products, newFakeUsers(), &fakePurchases{})

	_, err := svc.Search(context.Background(), nil, "   ", repository.NewPage(1, 20))
	assert.True(t, errors.Is(err, service.ErrValidation))
}

func TestSearchRecordsHistoryForSignedInUsers(t *testing.T) {
	user := &models.User{Name: "Caio", IsActive: true}
	users := newFakeUsers(user)
	products := &searchProducts{
		fakeProducts: newFakeProducts(),
		textResults:  []models.Product{{Title: "Red shoes"}},
	}
	svc := service.NewSearchService(products, users, &fakePurchases{})
	actor := &service.Actor{ID: user.ID, Role: models.RoleBuyer}
	ctx := context.Background()

	page, err := svc.Search(ctx, actor, " shoes ", repository.NewPage(1, 20))
	require.NoError(t, err)
	assert.Equal(t, "shoes", products.lastText)
	assert.Equal(t, int64(1), page.Total)

	_, err = svc.Search(ctx, nil, "boots", repository.NewPage(1, 20))
	require.NoError(t, err)

	history, err := svc.History(ctx, *actor)
	require.NoError(t, err)
	assert.Equal(t, []string{"shoes"}, history)

	require.NoError(t, svc.ClearHistory(ctx, *actor))
	history, err = svc.History(ctx, *actor)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHistoryNewestFirstAndBounded(t *testing.T) {
	user := &models.User{Name: "Bia", IsActive: true}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		user.SearchHistory = append(user.SearchHistory, models.SearchEntry{
			Query:     string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
	svc := service.NewSearchService(&searchProducts{fakeProducts: newFakeProducts()}, newFakeUsers(user), &fakePurchases{})

	history, err := svc.History(context.Background(), service.Actor{ID: user.ID})
	require.NoError(t, err)
	require.Len(t, history, 10)
	assert.Equal(t, "o", history[0])
	assert.Equal(t, "f", history[9])
}

func TestRecommendationsFallBackToPopular(t *testing.T) {
	popular := []models.Product{{Title: "Best seller"}}
	personal := []models.Product{{Title: "From your category"}}
	products := &searchProducts{fakeProducts: newFakeProducts(), popular: popular, inCategory: personal}
	purchases := &fakePurchases{}
	svc := service.NewSearchService(products, newFakeUsers(), purchases)
	ctx := context.Background()
	actor := &service.Actor{ID: primitive.NewObjectID(), Role: models.RoleBuyer}

	got, err := svc.Recommendations(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, popular, got)

	got, err = svc.Recommendations(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, popular, got)

	purchases.categories = []primitive.ObjectID{primitive.NewObjectID()}
	got, err = svc.Recommendations(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, personal, got)

	products.inCategory = nil
	got, err = svc.Recommendations(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, popular, got)
}

func TestBoughtTogetherKeepsFrequencyOrder(t *testing.T) {
	anchor := &models.Product{Title: "Camera", IsActive: true}
	lens := &models.Product{Title: "Lens", IsActive: true}
	strap := &models.Product{Title: "Strap", IsActive: true}
	hidden := &models.Product{Title: "Old bag", IsActive: false}
	products := &searchProducts{fakeProducts: newFakeProducts(anchor, lens, strap, hidden)}
	purchases := &fakePurchases{together: []repository.CoPurchase{
		{Product: strap.ID, Count: 7},
		{Product: hidden.ID, Count: 5},
		{Product: lens.ID, Count: 2},
	}}
	svc := service.NewSearchService(products, newFakeUsers(), purchases)

	got, err := svc.BoughtTogether(context.Background(), anchor.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Strap", got[0].Title)
	assert.Equal(t, "Lens", got[1].Title)

	_, err = svc.BoughtTogether(context.Background(), primitive.NewObjectID())
	assert.True(t, errors.Is(err, service.ErrNotFound))
}

func TestAutocompleteIgnoresBlankPrefix(t *testing.T) {
	svc := service.NewSearchService(&searchProducts{fakeProducts: newFakeProducts()}, newFakeUsers(), &fakePurchases{})

	got, err := svc.Autocomplete(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, got)
}
