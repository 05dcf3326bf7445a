package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/models"
	"marketplace/internal/repository"
)

const (
	autocompleteLimit    = 5
	trendingSearchLimit  = 10
	historyLimit         = 10
	recommendationLimit  = 10
	relatedLimit         = 8
	boughtTogetherLimit  = 5
	trendingProductLimit = 12
)

type SearchProducts interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	FindActiveByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
	TextSearch(ctx context.Context, text string, page repository.Page) ([]models.Product, int64, error)
	PrefixTitles(ctx context.Context, prefix string, limit int64) ([]string, error)
	TopTitles(ctx context.Context, limit int64) ([]string, error)
	FindInCategories(ctx context.Context, categories []primitive.ObjectID, limit int64) ([]models.Product, error)
	Popular(ctx context.Context, limit int64) ([]models.Product, error)
	Related(ctx context.Context, product *models.Product, limit int64) ([]models.Product, error)
	Trending(ctx context.Context, limit int64) ([]models.Product, error)
}

type SearchHistory interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	PushSearch(ctx context.Context, id primitive.ObjectID, query string, at time.Time) error
	ClearSearchHistory(ctx context.Context, id primitive.ObjectID) error
}

type PurchaseHistory interface {
	PurchasedCategories(ctx context.Context, buyer primitive.ObjectID) ([]primitive.ObjectID, error)
	BoughtTogether(ctx context.Context, product primitive.ObjectID, limit int64) ([]repository.CoPurchase, error)
}

type SearchService struct {
	products  SearchProducts
	history   SearchHistory
	purchases PurchaseHistory
	log       *logrus.Entry
}

func NewSearchService(products SearchProducts, history SearchHistory, purchases PurchaseHistory) *SearchService {
	return &SearchService{
		products:  products,
		history:   history,
		purchases: purchases,
		log:       logrus.WithField("area", "SEARCH"),
	}
}

// Search runs a relevance ordered full text query. An empty query is a
// client error; no matches is an empty page. The query is remembered for
// authenticated callers.
func (s *SearchService) Search(ctx context.Context, actor *Actor, query string, page repository.Page) (PageResult[models.Product], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return PageResult[models.Product]{}, fail(ErrValidation, "search query is required")
	}

	products, total, err := s.products.TextSearch(ctx, query, page)
	if err != nil {
		return PageResult[models.Product]{}, errors.Wrap(err, "search products")
	}

	if actor != nil {
		if err := s.history.PushSearch(ctx, actor.ID, query, time.Now()); err != nil {
			s.log.WithError(err).WithField("user", actor.ID.Hex()).Warn("record search history failed")
		}
	}
	return pageOf(products, page, total), nil
}

func (s *SearchService) Autocomplete(ctx context.Context, prefix string) ([]string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []string{}, nil
	}
	titles, err := s.products.PrefixTitles(ctx, prefix, autocompleteLimit)
	if err != nil {
		return nil, errors.Wrap(err, "autocomplete")
	}
	return titles, nil
}

func (s *SearchService) TrendingSearches(ctx context.Context) ([]string, error) {
	titles, err := s.products.TopTitles(ctx, trendingSearchLimit)
	if err != nil {
		return nil, errors.Wrap(err, "trending searches")
	}
	return titles, nil
}

// History returns the caller's most recent queries, newest first.
func (s *SearchService) History(ctx context.Context, actor Actor) ([]string, error) {
	user, err := s.history.FindByID(ctx, actor.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load search history")
	}

	entries := append([]models.SearchEntry(nil), user.SearchHistory...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if len(entries) > historyLimit {
		entries = entries[:historyLimit]
	}

	queries := make([]string, 0, len(entries))
	for _, entry := range entries {
		queries = append(queries, entry.Query)
	}
	return queries, nil
}

func (s *SearchService) ClearHistory(ctx context.Context, actor Actor) error {
	return errors.Wrap(s.history.ClearSearchHistory(ctx, actor.ID), "clear search history")
}

// Recommendations prefers products from categories the caller bought
// from, and falls back to featured or best selling products.
func (s *SearchService) Recommendations(ctx context.Context, actor *Actor) ([]models.Product, error) {
	if actor != nil {
		categories, err := s.purchases.PurchasedCategories(ctx, actor.ID)
		if err != nil {
			return nil, errors.Wrap(err, "purchased categories")
		}
		if len(categories) > 0 {
			products, err := s.products.FindInCategories(ctx, categories, recommendationLimit)
			if err != nil {
				return nil, errors.Wrap(err, "personal recommendations")
			}
			if len(products) > 0 {
				return products, nil
			}
		}
	}

	products, err := s.products.Popular(ctx, recommendationLimit)
	if err != nil {
		return nil, errors.Wrap(err, "popular products")
	}
	return products, nil
}

func (s *SearchService) Related(ctx context.Context, productID primitive.ObjectID) ([]models.Product, error) {
	product, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	related, err := s.products.Related(ctx, product, relatedLimit)
	if err != nil {
		return nil, errors.Wrap(err, "related products")
	}
	return related, nil
}

// BoughtTogether returns the products most often found next to productID
// in delivered orders, most frequent first.
func (s *SearchService) BoughtTogether(ctx context.Context, productID primitive.ObjectID) ([]models.Product, error) {
	if _, err := s.product(ctx, productID); err != nil {
		return nil, err
	}

	rows, err := s.purchases.BoughtTogether(ctx, productID, boughtTogetherLimit)
	if err != nil {
		return nil, errors.Wrap(err, "bought together")
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.Product)
	}

	found, err := s.products.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load bought together")
	}
	byID := make(map[primitive.ObjectID]models.Product, len(found))
	for _, product := range found {
		byID[product.ID] = product
	}

	products := make([]models.Product, 0, len(found))
	for _, id := range ids {
		if product, ok := byID[id]; ok {
			products = append(products, product)
		}
	}
	return products, nil
}

func (s *SearchService) TrendingProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.products.Trending(ctx, trendingProductLimit)
	if err != nil {
		return nil, errors.Wrap(err, "trending products")
	}
	return products, nil
}

func (s *SearchService) product(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "product not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load product")
	}
	return product, nil
}
