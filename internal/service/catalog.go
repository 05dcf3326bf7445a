package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/models"
	"marketplace/internal/repository"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
	featuredLimit        = 10
)

type CatalogProducts interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	UpdateDetails(ctx context.Context, id primitive.ObjectID, details repository.ProductDetails) (*models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	IncrementViews(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, filter repository.ProductFilter, page repository.Page) ([]models.Product, int64, error)
	Featured(ctx context.Context, limit int64) ([]models.Product, error)
	AddImage(ctx context.Context, id primitive.ObjectID, image models.ProductImage) (*models.Product, error)
	RemoveImage(ctx context.Context, id primitive.ObjectID, url string) (*models.Product, error)
}

type CatalogCategories interface {
	Create(ctx context.Context, category *models.Category) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Category, error)
	FindBySlug(ctx context.Context, slug string) (*models.Category, error)
	NameTaken(ctx context.Context, name string, except *primitive.ObjectID) (bool, error)
	ListActive(ctx context.Context) ([]models.Category, error)
	Update(ctx context.Context, id primitive.ObjectID, update repository.CategoryUpdate) (*models.Category, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type ProductInput struct {
	Title          string
	Description    string
	Price          float64
	OriginalPrice  float64
	Category       primitive.ObjectID
	Stock          int
	Condition      string
	Brand          string
	Specifications []models.Specification
	Shipping       models.Shipping
	Tags           []string
	IsFeatured     bool
}

type ProductPatch struct {
	Title          *string
	Description    *string
	Price          *float64
	OriginalPrice  *float64
	Category       *primitive.ObjectID
	Stock          *int
	Condition      *string
	Brand          *string
	Specifications *[]models.Specification
	Shipping       *models.Shipping
	Tags           *[]string
	IsActive       *bool
	IsFeatured     *bool
}

type CategoryInput struct {
	Name        string
	Description string
	Icon        string
	Image       string
	Parent      *primitive.ObjectID
	Order       int
}

type CategoryPatch struct {
	Name        *string
	Description *string
	Icon        *string
	Image       *string
	Parent      *primitive.ObjectID
	ClearParent bool
	IsActive    *bool
	Order       *int
}

type CatalogService struct {
	products   CatalogProducts
	categories CatalogCategories
	log        *logrus.Entry
}

func NewCatalogService(products CatalogProducts, categories CatalogCategories) *CatalogService {
	return &CatalogService{
		products:   products,
		categories: categories,
		log:        logrus.WithField("area", "PRODUCT"),
	}
}

func (s *CatalogService) CreateProduct(ctx context.Context, actor Actor, in ProductInput) (*models.Product, error) {
	if !actor.IsSeller() && !actor.IsAdmin() {
		return nil, fail(ErrForbidden, "only sellers can create products")
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := validateProductText(&in.Title, &in.Description, true); err != nil {
		return nil, err
	}
	if err := validatePriceFields(in.Price, in.OriginalPrice); err != nil {
		return nil, err
	}
	if in.Stock < 0 {
		return nil, fail(ErrValidation, "stock must not be negative")
	}
	if in.Condition == "" {
		in.Condition = models.ConditionNew
	}
	if !models.ValidCondition(in.Condition) {
		return nil, fail(ErrValidation, "invalid condition")
	}
	if err := s.requireCategory(ctx, in.Category); err != nil {
		return nil, err
	}

	product := &models.Product{
		Title:          in.Title,
		Description:    in.Description,
		Price:          in.Price,
		OriginalPrice:  in.OriginalPrice,
		Discount:       discountPercent(in.Price, in.OriginalPrice),
		Images:         []models.ProductImage{},
		Category:       in.Category,
		Seller:         actor.ID,
		Stock:          in.Stock,
		Condition:      in.Condition,
		Brand:          strings.TrimSpace(in.Brand),
		Specifications: in.Specifications,
		Shipping:       in.Shipping,
		Rating:         models.Rating{},
		IsActive:       true,
		IsFeatured:     in.IsFeatured && actor.IsAdmin(),
		Tags:           normalizeTags(in.Tags),
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, errors.Wrap(err, "insert product")
	}

	s.log.WithFields(logrus.Fields{"product": product.ID.Hex(), "seller": actor.ID.Hex()}).Info("product created")
	return product, nil
}

// GetProduct counts a view. Inactive products are only visible to their
// seller and to admins.
func (s *CatalogService) GetProduct(ctx context.Context, actor *Actor, id primitive.ObjectID) (*models.Product, error) {
	product, err := s.findProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive && (actor == nil || (!actor.IsAdmin() && actor.ID != product.Seller)) {
		return nil, fail(ErrNotFound, "product not found")
	}

	if err := s.products.IncrementViews(ctx, id); err != nil {
		s.log.WithError(err).WithField("product", id.Hex()).Warn("increment views failed")
	} else {
		product.Views++
	}
	return product, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, filter repository.ProductFilter, page repository.Page) (PageResult[models.Product], error) {
	products, total, err := s.products.List(ctx, filter, page)
	if err != nil {
		return PageResult[models.Product]{}, errors.Wrap(err, "list products")
	}
	return pageOf(products, page, total), nil
}

func (s *CatalogService) FeaturedProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.products.Featured(ctx, featuredLimit)
	if err != nil {
		return nil, errors.Wrap(err, "featured products")
	}
	return products, nil
}

// SellerProducts lists a seller's catalog; the seller and admins also see
// inactive products.
func (s *CatalogService) SellerProducts(ctx context.Context, actor *Actor, sellerID primitive.ObjectID, page repository.Page) (PageResult[models.Product], error) {
	filter := repository.ProductFilter{
		Seller:          &sellerID,
		IncludeInactive: actor != nil && (actor.IsAdmin() || actor.ID == sellerID),
	}
	return s.ListProducts(ctx, filter, page)
}

// UpdateProduct is allowed to the owning seller and to admins. Price
// changes re-derive the discount.
func (s *CatalogService) UpdateProduct(ctx context.Context, actor Actor, id primitive.ObjectID, patch ProductPatch) (*models.Product, error) {
	product, err := s.ownedProduct(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if err := validateProductText(trimmed(patch.Title), trimmed(patch.Description), false); err != nil {
		return nil, err
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return nil, fail(ErrValidation, "stock must not be negative")
	}
	if patch.Condition != nil && !models.ValidCondition(*patch.Condition) {
		return nil, fail(ErrValidation, "invalid condition")
	}
	if patch.IsFeatured != nil && !actor.IsAdmin() {
		return nil, fail(ErrForbidden, "only admins can feature products")
	}
	if patch.Category != nil {
		if err := s.requireCategory(ctx, *patch.Category); err != nil {
			return nil, err
		}
	}

	details := repository.ProductDetails{
		Title:          trimmed(patch.Title),
		Description:    trimmed(patch.Description),
		Category:       patch.Category,
		Stock:          patch.Stock,
		Condition:      patch.Condition,
		Brand:          trimmed(patch.Brand),
		Specifications: patch.Specifications,
		Shipping:       patch.Shipping,
		IsActive:       patch.IsActive,
		IsFeatured:     patch.IsFeatured,
	}
	if patch.Price != nil || patch.OriginalPrice != nil {
		pricing, err := resolvePriceUpdate(product.Price, product.OriginalPrice, priceUpdateInput{
			Price:         patch.Price,
			OriginalPrice: patch.OriginalPrice,
		})
		if err != nil {
			return nil, err
		}
		details.Price = &pricing.Price
		details.OriginalPrice = &pricing.OriginalPrice
		details.Discount = &pricing.Discount
	}
	if patch.Tags != nil {
		tags := normalizeTags(*patch.Tags)
		details.Tags = &tags
	}

	updated, err := s.products.UpdateDetails(ctx, id, details)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "product not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	return updated, nil
}

// DeleteProduct returns the removed product so callers can clean up its files.
func (s *CatalogService) DeleteProduct(ctx context.Context, actor Actor, id primitive.ObjectID) (*models.Product, error) {
	product, err := s.ownedProduct(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fail(ErrNotFound, "product not found")
		}
		return nil, errors.Wrap(err, "delete product")
	}
	s.log.WithFields(logrus.Fields{"product": id.Hex(), "actor": actor.ID.Hex()}).Info("product deleted")
	return product, nil
}

func (s *CatalogService) AddImage(ctx context.Context, actor Actor, id primitive.ObjectID, image models.ProductImage) (*models.Product, error) {
	if _, err := s.ownedProduct(ctx, actor, id); err != nil {
		return nil, err
	}
	updated, err := s.products.AddImage(ctx, id, image)
	if err != nil {
		return nil, errors.Wrap(err, "add image")
	}
	return updated, nil
}

func (s *CatalogService) RemoveImage(ctx context.Context, actor Actor, id primitive.ObjectID, url string) (*models.Product, error) {
	product, err := s.ownedProduct(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	found := false
	for _, image := range product.Images {
		if image.URL == url {
			found = true
			break
		}
	}
	if !found {
		return nil, fail(ErrNotFound, "image not found")
	}

	updated, err := s.products.RemoveImage(ctx, id, url)
	if err != nil {
		return nil, errors.Wrap(err, "remove image")
	}
	return updated, nil
}

// CheckOwnership fails unless actor may modify the product.
func (s *CatalogService) CheckOwnership(ctx context.Context, actor Actor, id primitive.ObjectID) error {
	_, err := s.ownedProduct(ctx, actor, id)
	return err
}

// ownedProduct loads a product the actor may modify.
func (s *CatalogService) ownedProduct(ctx context.Context, actor Actor, id primitive.ObjectID) (*models.Product, error) {
	product, err := s.findProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.Seller != actor.ID && !actor.IsAdmin() {
		return nil, fail(ErrForbidden, "not allowed to modify this product")
	}
	return product, nil
}

func (s *CatalogService) findProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "product not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load product")
	}
	return product, nil
}

func (s *CatalogService) requireCategory(ctx context.Context, id primitive.ObjectID) error {
	if id.IsZero() {
		return fail(ErrValidation, "category is required")
	}
	if _, err := s.categories.FindByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(ErrValidation, "category does not exist")
		}
		return errors.Wrap(err, "load category")
	}
	return nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.categories.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return categories, nil
}

func (s *CatalogService) CategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	category, err := s.categories.FindBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "category not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load category")
	}
	return category, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	slug, err := s.checkCategoryName(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	if in.Parent != nil {
		if err := s.requireParent(ctx, *in.Parent, nil); err != nil {
			return nil, err
		}
	}

	category := &models.Category{
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(in.Description),
		Icon:        in.Icon,
		Image:       in.Image,
		Parent:      in.Parent,
		IsActive:    true,
		Order:       in.Order,
	}
	if err := s.categories.Create(ctx, category); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fail(ErrConflict, "category already exists")
		}
		return nil, errors.Wrap(err, "insert category")
	}
	return category, nil
}

// UpdateCategory re-derives the slug whenever the name changes.
func (s *CatalogService) UpdateCategory(ctx context.Context, id primitive.ObjectID, patch CategoryPatch) (*models.Category, error) {
	if _, err := s.findCategory(ctx, id); err != nil {
		return nil, err
	}

	update := repository.CategoryUpdate{
		Description: trimmed(patch.Description),
		Icon:        patch.Icon,
		Image:       patch.Image,
		ClearParent: patch.ClearParent,
		IsActive:    patch.IsActive,
		Order:       patch.Order,
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		slug, err := s.checkCategoryName(ctx, name, &id)
		if err != nil {
			return nil, err
		}
		update.Name = &name
		update.Slug = &slug
	}
	if patch.Parent != nil && !patch.ClearParent {
		if err := s.requireParent(ctx, *patch.Parent, &id); err != nil {
			return nil, err
		}
		update.Parent = patch.Parent
	}

	updated, err := s.categories.Update(ctx, id, update)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "category not found")
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, fail(ErrConflict, "category already exists")
	}
	if err != nil {
		return nil, errors.Wrap(err, "update category")
	}
	return updated, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id primitive.ObjectID) error {
	err := s.categories.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fail(ErrNotFound, "category not found")
	}
	return errors.Wrap(err, "delete category")
}

func (s *CatalogService) checkCategoryName(ctx context.Context, name string, except *primitive.ObjectID) (string, error) {
	if name == "" {
		return "", fail(ErrValidation, "name is required")
	}
	if len(name) > 50 {
		return "", fail(ErrValidation, "name must have at most 50 characters")
	}
	slug := Slugify(name)
	if slug == "" {
		return "", fail(ErrValidation, "name must contain letters or digits")
	}
	taken, err := s.categories.NameTaken(ctx, name, except)
	if err != nil {
		return "", errors.Wrap(err, "check category name")
	}
	if taken {
		return "", fail(ErrConflict, "category already exists")
	}
	return slug, nil
}

func (s *CatalogService) requireParent(ctx context.Context, parent primitive.ObjectID, self *primitive.ObjectID) error {
	if self != nil && parent == *self {
		return fail(ErrValidation, "category cannot be its own parent")
	}
	if _, err := s.categories.FindByID(ctx, parent); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(ErrValidation, "parent category does not exist")
		}
		return errors.Wrap(err, "load parent category")
	}
	return nil
}

func (s *CatalogService) findCategory(ctx context.Context, id primitive.ObjectID) (*models.Category, error) {
	category, err := s.categories.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "category not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load category")
	}
	return category, nil
}

func validateProductText(title, description *string, create bool) error {
	if title != nil {
		if *title == "" {
			return fail(ErrValidation, "title is required")
		}
		if len(*title) > maxTitleLength {
			return fail(ErrValidation, "title must have at most %d characters", maxTitleLength)
		}
	} else if create {
		return fail(ErrValidation, "title is required")
	}
	if description != nil {
		if *description == "" {
			return fail(ErrValidation, "description is required")
		}
		if len(*description) > maxDescriptionLength {
			return fail(ErrValidation, "description must have at most %d characters", maxDescriptionLength)
		}
	} else if create {
		return fail(ErrValidation, "description is required")
	}
	return nil
}

func normalizeTags(tags []string) models.StringList {
	return models.SplitTags(strings.Join(tags, ","))
}
