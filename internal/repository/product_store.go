package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"marketplace/internal/models"
)

const productCollectionName = "products"

// ProductSortFields maps public sort keys to stored paths.
var ProductSortFields = map[string]string{
	"price":     "price",
	"createdAt": "createdAt",
	"rating":    "rating.average",
	"sales":     "sales",
	"views":     "views",
	"title":     "title",
}

var defaultProductSort = bson.D{{Key: "createdAt", Value: -1}}

type ProductFilter struct {
	Category     *primitive.ObjectID
	Seller       *primitive.ObjectID
	MinPrice     *float64
	MaxPrice     *float64
	Condition    string
	FreeShipping bool
	MinRating    *float64
	Search       string
	Sort         string
	// IncludeInactive lists deactivated products too (seller and admin views).
	IncludeInactive bool
}

// ProductDetails is the editable part of a product. Pointers left nil are
// not written.
type ProductDetails struct {
	Title          *string
	Description    *string
	Price          *float64
	OriginalPrice  *float64
	Discount       *int
	Category       *primitive.ObjectID
	Stock          *int
	Condition      *string
	Brand          *string
	Specifications *[]models.Specification
	Shipping       *models.Shipping
	Tags           *models.StringList
	IsActive       *bool
	IsFeatured     *bool
}

type MongoProductStore struct {
	collection *mongo.Collection
}

func NewMongoProductStore(db *mongo.Database) *MongoProductStore {
	return &MongoProductStore{collection: db.Collection(productCollectionName)}
}

func (s *MongoProductStore) Create(ctx context.Context, product *models.Product) error {
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	if product.Images == nil {
		product.Images = []models.ProductImage{}
	}

	res, err := s.collection.InsertOne(ctx, product)
	if err != nil {
		return wrap(err, "insert product")
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		product.ID = oid
	}
	product.InStock = product.Stock > 0
	return nil
}

func (s *MongoProductStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	product, err := decodeProduct(s.collection.FindOne(ctx, bson.M{"_id": id}))
	if err != nil {
		return nil, wrap(err, "find product")
	}
	return product, nil
}

func (s *MongoProductStore) FindActiveByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	cursor, err := s.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}, "isActive": true})
	if err != nil {
		return nil, wrap(err, "find products")
	}
	products, err := decodeProducts(ctx, cursor)
	return products, wrap(err, "decode products")
}

// ReserveStock decrements stock and increments sales in one write, only if
// the product is active and has at least qty units. It reports false when
// the condition did not hold.
func (s *MongoProductStore) ReserveStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error) {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "isActive": true, "stock": bson.M{"$gte": qty}},
		bson.M{
			"$inc": bson.M{"stock": -qty, "sales": qty},
			"$set": bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return false, wrap(err, "reserve stock")
	}
	return res.ModifiedCount == 1, nil
}

// ReleaseStock is the exact inverse of ReserveStock.
func (s *MongoProductStore) ReleaseStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"stock": qty, "sales": -qty},
			"$set": bson.M{"updatedAt": time.Now()},
		},
	)
	return wrap(err, "release stock")
}

func (s *MongoProductStore) UpdateDetails(ctx context.Context, id primitive.ObjectID, details ProductDetails) (*models.Product, error) {
	set := bson.M{"updatedAt": time.Now()}
	if details.Title != nil {
		set["title"] = *details.Title
	}
	if details.Description != nil {
		set["description"] = *details.Description
	}
	if details.Price != nil {
		set["price"] = *details.Price
	}
	if details.OriginalPrice != nil {
		set["originalPrice"] = *details.OriginalPrice
	}
	if details.Discount != nil {
		set["discount"] = *details.Discount
	}
	if details.Category != nil {
		set["category"] = *details.Category
	}
	if details.Stock != nil {
		set["stock"] = *details.Stock
	}
	if details.Condition != nil {
		set["condition"] = *details.Condition
	}
	if details.Brand != nil {
		set["brand"] = *details.Brand
	}
	if details.Specifications != nil {
		set["specifications"] = *details.Specifications
	}
	if details.Shipping != nil {
		set["shipping"] = *details.Shipping
	}
	if details.Tags != nil {
		set["tags"] = *details.Tags
	}
	if details.IsActive != nil {
		set["isActive"] = *details.IsActive
	}
	if details.IsFeatured != nil {
		set["isFeatured"] = *details.IsFeatured
	}

	product, err := decodeProduct(s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	))
	if err != nil {
		return nil, wrap(err, "update product")
	}
	return product, nil
}

func (s *MongoProductStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrap(err, "delete product")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoProductStore) IncrementViews(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.collection.UpdateByID(ctx, id, bson.M{"$inc": bson.M{"views": 1}})
	return wrap(err, "increment views")
}

func (s *MongoProductStore) AddImage(ctx context.Context, id primitive.ObjectID, image models.ProductImage) (*models.Product, error) {
	product, err := decodeProduct(s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"images": image},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	))
	if err != nil {
		return nil, wrap(err, "add product image")
	}
	return product, nil
}

func (s *MongoProductStore) RemoveImage(ctx context.Context, id primitive.ObjectID, url string) (*models.Product, error) {
	product, err := decodeProduct(s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$pull": bson.M{"images": bson.M{"url": url}},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	))
	if err != nil {
		return nil, wrap(err, "remove product image")
	}
	return product, nil
}

// BumpRatingRevision marks a review write against the product and returns
// the new revision.
func (s *MongoProductStore) BumpRatingRevision(ctx context.Context, id primitive.ObjectID) (int64, error) {
	var doc struct {
		Rating struct {
			Revision int64 `bson:"revision"`
		} `bson:"rating"`
	}
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"rating.revision": 1}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"rating.revision": 1}),
	).Decode(&doc)
	if err != nil {
		return 0, wrap(err, "bump rating revision")
	}
	return doc.Rating.Revision, nil
}

// SetRating stores an aggregate computed at rating.Applied unless one from a
// later revision is already stored. It reports whether the write landed.
func (s *MongoProductStore) SetRating(ctx context.Context, id primitive.ObjectID, rating models.Rating) (bool, error) {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "rating.applied": bson.M{"$not": bson.M{"$gt": rating.Applied}}},
		bson.M{"$set": bson.M{
			"rating.average": rating.Average,
			"rating.count":   rating.Count,
			"rating.applied": rating.Applied,
		}},
	)
	if err != nil {
		return false, wrap(err, "set product rating")
	}
	return res.MatchedCount == 1, nil
}

func (s *MongoProductStore) List(ctx context.Context, filter ProductFilter, page Page) ([]models.Product, int64, error) {
	query := productQuery(filter)
	sort := ParseSort(filter.Sort, ProductSortFields, defaultProductSort)
	return s.findPage(ctx, query, page.findOptions(sort))
}

// TextSearch runs a $text query ordered by relevance.
func (s *MongoProductStore) TextSearch(ctx context.Context, text string, page Page) ([]models.Product, int64, error) {
	query := bson.M{"$text": bson.M{"$search": text}, "isActive": true}
	opts := page.findOptions(nil).
		SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetSort(bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}})
	return s.findPage(ctx, query, opts)
}

// findPage runs the count and the page query concurrently.
func (s *MongoProductStore) findPage(ctx context.Context, query bson.M, opts *options.FindOptions) ([]models.Product, int64, error) {
	var (
		total    int64
		products []models.Product
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.collection.CountDocuments(gctx, query)
		if err != nil {
			return wrap(err, "count products")
		}
		total = n
		return nil
	})
	g.Go(func() error {
		cursor, err := s.collection.Find(gctx, query, opts)
		if err != nil {
			return wrap(err, "list products")
		}
		found, err := decodeProducts(gctx, cursor)
		if err != nil {
			return wrap(err, "decode products")
		}
		products = found
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (s *MongoProductStore) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]models.Product, error) {
	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, wrap(err, "find products")
	}
	products, err := decodeProducts(ctx, cursor)
	return products, wrap(err, "decode products")
}

func (s *MongoProductStore) Featured(ctx context.Context, limit int64) ([]models.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sales", Value: -1}}).SetLimit(limit)
	return s.find(ctx, bson.M{"isActive": true, "isFeatured": true}, opts)
}

// PrefixTitles returns titles of active products starting with prefix.
func (s *MongoProductStore) PrefixTitles(ctx context.Context, prefix string, limit int64) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"title": 1}).SetLimit(limit)
	return s.titles(ctx, bson.M{"title": prefixPattern(prefix), "isActive": true}, opts)
}

// TopTitles returns titles of the most viewed active products.
func (s *MongoProductStore) TopTitles(ctx context.Context, limit int64) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"title": 1}).
		SetSort(bson.D{{Key: "views", Value: -1}, {Key: "sales", Value: -1}}).
		SetLimit(limit)
	return s.titles(ctx, bson.M{"isActive": true}, opts)
}

func (s *MongoProductStore) titles(ctx context.Context, query bson.M, opts *options.FindOptions) ([]string, error) {
	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, wrap(err, "find titles")
	}
	var rows []struct {
		Title string `bson:"title"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, wrap(err, "decode titles")
	}
	titles := make([]string, 0, len(rows))
	for _, row := range rows {
		titles = append(titles, row.Title)
	}
	return titles, nil
}

func (s *MongoProductStore) FindInCategories(ctx context.Context, categories []primitive.ObjectID, limit int64) ([]models.Product, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "rating.average", Value: -1}, {Key: "sales", Value: -1}}).
		SetLimit(limit)
	return s.find(ctx, bson.M{"category": bson.M{"$in": categories}, "isActive": true}, opts)
}

// Popular returns featured or already sold products.
func (s *MongoProductStore) Popular(ctx context.Context, limit int64) ([]models.Product, error) {
	query := bson.M{
		"isActive": true,
		"$or": []bson.M{
			{"isFeatured": true},
			{"sales": bson.M{"$gt": 0}},
		},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "sales", Value: -1}, {Key: "rating.average", Value: -1}}).
		SetLimit(limit)
	return s.find(ctx, query, opts)
}

// Related returns products sharing the category, a tag or the brand.
func (s *MongoProductStore) Related(ctx context.Context, product *models.Product, limit int64) ([]models.Product, error) {
	or := []bson.M{{"category": product.Category}}
	if len(product.Tags) > 0 {
		or = append(or, bson.M{"tags": bson.M{"$in": []string(product.Tags)}})
	}
	if product.Brand != "" {
		or = append(or, bson.M{"brand": product.Brand})
	}
	query := bson.M{
		"_id":      bson.M{"$ne": product.ID},
		"isActive": true,
		"$or":      or,
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "rating.average", Value: -1}, {Key: "sales", Value: -1}}).
		SetLimit(limit)
	return s.find(ctx, query, opts)
}

func (s *MongoProductStore) Trending(ctx context.Context, limit int64) ([]models.Product, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "views", Value: -1}, {Key: "sales", Value: -1}}).
		SetLimit(limit)
	return s.find(ctx, bson.M{"isActive": true}, opts)
}

func productQuery(filter ProductFilter) bson.M {
	query := bson.M{}
	if !filter.IncludeInactive {
		query["isActive"] = true
	}
	if filter.Category != nil {
		query["category"] = *filter.Category
	}
	if filter.Seller != nil {
		query["seller"] = *filter.Seller
	}
	price := bson.M{}
	if filter.MinPrice != nil {
		price["$gte"] = *filter.MinPrice
	}
	if filter.MaxPrice != nil {
		price["$lte"] = *filter.MaxPrice
	}
	if len(price) > 0 {
		query["price"] = price
	}
	if filter.Condition != "" {
		query["condition"] = filter.Condition
	}
	if filter.FreeShipping {
		query["shipping.freeShipping"] = true
	}
	if filter.MinRating != nil {
		query["rating.average"] = bson.M{"$gte": *filter.MinRating}
	}
	if filter.Search != "" {
		query["$text"] = bson.M{"$search": filter.Search}
	}
	return query
}
