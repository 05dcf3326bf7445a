package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/models"
	"marketplace/internal/repository"
)

const (
	maxReviewTitle   = 100
	maxReviewComment = 1000
)

type ReviewStore interface {
	Create(ctx context.Context, review *models.Review) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error)
	Exists(ctx context.Context, product, user primitive.ObjectID) (bool, error)
	UpdateContent(ctx context.Context, id primitive.ObjectID, content repository.ReviewContent) (*models.Review, error)
	SetResponse(ctx context.Context, id primitive.ObjectID, response models.ReviewResponse) (*models.Review, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	ListByProduct(ctx context.Context, product primitive.ObjectID, sort string, page repository.Page) ([]models.Review, int64, error)
	RatingStats(ctx context.Context, product primitive.ObjectID) (repository.RatingStats, error)
	AddHelpfulVote(ctx context.Context, id, voter primitive.ObjectID) (bool, error)
}

type ReviewProducts interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	BumpRatingRevision(ctx context.Context, id primitive.ObjectID) (int64, error)
	SetRating(ctx context.Context, id primitive.ObjectID, rating models.Rating) (bool, error)
}

type DeliveredOrders interface {
	FindDeliveredContaining(ctx context.Context, buyer, product primitive.ObjectID) (*models.Order, error)
}

type UserDirectory interface {
	Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error)
}

type ReviewInput struct {
	ProductID primitive.ObjectID
	Rating    int
	Title     string
	Comment   string
	Pros      []string
	Cons      []string
	Images    []string
}

type ReviewEdit struct {
	Rating  *int
	Title   *string
	Comment *string
	Pros    *[]string
	Cons    *[]string
	Images  *[]string
}

// ReviewView is a review with its author's public profile.
type ReviewView struct {
	models.Review
	Author *models.UserSummary `json:"author,omitempty"`
}

type ReviewService struct {
	reviews  ReviewStore
	products ReviewProducts
	orders   DeliveredOrders
	users    UserDirectory
	log      *logrus.Entry
}

func NewReviewService(reviews ReviewStore, products ReviewProducts, orders DeliveredOrders, users UserDirectory) *ReviewService {
	return &ReviewService{
		reviews:  reviews,
		products: products,
		orders:   orders,
		users:    users,
		log:      logrus.WithField("area", "REVIEW"),
	}
}

// Create writes a review and then recomputes the product rating. The
// (product, user) pair is unique: the pre-check gives a clean error and the
// unique index catches the concurrent case.
func (s *ReviewService) Create(ctx context.Context, actor Actor, in ReviewInput) (*models.Review, error) {
	if err := validateReviewFields(&in.Rating, &in.Title, &in.Comment, true); err != nil {
		return nil, err
	}

	if _, err := s.products.FindByID(ctx, in.ProductID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fail(ErrNotFound, "product not found")
		}
		return nil, errors.Wrap(err, "load product")
	}

	exists, err := s.reviews.Exists(ctx, in.ProductID, actor.ID)
	if err != nil {
		return nil, errors.Wrap(err, "check review")
	}
	if exists {
		return nil, fail(ErrConflict, "you have already reviewed this product")
	}

	review := &models.Review{
		Product: in.ProductID,
		User:    actor.ID,
		Rating:  in.Rating,
		Title:   strings.TrimSpace(in.Title),
		Comment: strings.TrimSpace(in.Comment),
		Pros:    in.Pros,
		Cons:    in.Cons,
		Images:  in.Images,
	}

	order, err := s.orders.FindDeliveredContaining(ctx, actor.ID, in.ProductID)
	switch {
	case err == nil:
		review.Verified = true
		review.Order = &order.ID
	case !errors.Is(err, repository.ErrNotFound):
		return nil, errors.Wrap(err, "check purchase")
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fail(ErrConflict, "you have already reviewed this product")
		}
		return nil, errors.Wrap(err, "insert review")
	}

	if err := s.recomputeRating(ctx, in.ProductID); err != nil {
		return nil, err
	}
	return review, nil
}

// Update is allowed to the author only.
func (s *ReviewService) Update(ctx context.Context, actor Actor, id primitive.ObjectID, edit ReviewEdit) (*models.Review, error) {
	review, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if review.User != actor.ID {
		return nil, fail(ErrForbidden, "not allowed to update this review")
	}
	if err := validateReviewFields(edit.Rating, edit.Title, edit.Comment, false); err != nil {
		return nil, err
	}

	updated, err := s.reviews.UpdateContent(ctx, id, repository.ReviewContent{
		Rating:  edit.Rating,
		Title:   trimmed(edit.Title),
		Comment: trimmed(edit.Comment),
		Pros:    edit.Pros,
		Cons:    edit.Cons,
		Images:  edit.Images,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fail(ErrNotFound, "review not found")
		}
		return nil, errors.Wrap(err, "update review")
	}

	if err := s.recomputeRating(ctx, review.Product); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete is allowed to the author and to admins.
func (s *ReviewService) Delete(ctx context.Context, actor Actor, id primitive.ObjectID) error {
	review, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if review.User != actor.ID && !actor.IsAdmin() {
		return fail(ErrForbidden, "not allowed to delete this review")
	}

	if err := s.reviews.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(ErrNotFound, "review not found")
		}
		return errors.Wrap(err, "delete review")
	}
	return s.recomputeRating(ctx, review.Product)
}

// Respond attaches the seller's answer to a review of one of their products.
func (s *ReviewService) Respond(ctx context.Context, actor Actor, id primitive.ObjectID, text string) (*models.Review, error) {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > maxReviewComment {
		return nil, fail(ErrValidation, "response must have between 1 and %d characters", maxReviewComment)
	}

	review, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	product, err := s.products.FindByID(ctx, review.Product)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, errors.Wrap(err, "load product")
	}
	if !actor.IsAdmin() && (product == nil || product.Seller != actor.ID) {
		return nil, fail(ErrForbidden, "only the seller can respond to this review")
	}

	updated, err := s.reviews.SetResponse(ctx, id, models.ReviewResponse{Text: text, Date: time.Now()})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fail(ErrNotFound, "review not found")
		}
		return nil, errors.Wrap(err, "respond to review")
	}
	return updated, nil
}

func (s *ReviewService) ListByProduct(ctx context.Context, productID primitive.ObjectID, sort string, page repository.Page) (PageResult[ReviewView], error) {
	reviews, total, err := s.reviews.ListByProduct(ctx, productID, sort, page)
	if err != nil {
		return PageResult[ReviewView]{}, errors.Wrap(err, "list reviews")
	}

	ids := make([]primitive.ObjectID, 0, len(reviews))
	for _, review := range reviews {
		ids = append(ids, review.User)
	}
	authors, err := s.users.Summaries(ctx, ids)
	if err != nil {
		return PageResult[ReviewView]{}, errors.Wrap(err, "load review authors")
	}

	views := make([]ReviewView, 0, len(reviews))
	for _, review := range reviews {
		view := ReviewView{Review: review}
		if author, ok := authors[review.User]; ok {
			view.Author = &author
		}
		views = append(views, view)
	}
	return pageOf(views, page, total), nil
}

// MarkHelpful records one vote per user. The add-if-absent write keeps the
// counter equal to the number of voters.
func (s *ReviewService) MarkHelpful(ctx context.Context, actor Actor, id primitive.ObjectID) (*models.Review, error) {
	added, err := s.reviews.AddHelpfulVote(ctx, id, actor.ID)
	if err != nil {
		return nil, errors.Wrap(err, "mark helpful")
	}

	review, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, fail(ErrConflict, "you have already marked this review as helpful")
	}
	return review, nil
}

// recomputeRating rewrites the product's rating from all of its reviews.
// The revision is taken after the review write and before the aggregation,
// so the aggregate of the highest revision covers every write and the
// conditional store keeps it over slower, older ones.
func (s *ReviewService) recomputeRating(ctx context.Context, productID primitive.ObjectID) error {
	revision, err := s.products.BumpRatingRevision(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "bump rating revision")
	}

	stats, err := s.reviews.RatingStats(ctx, productID)
	if err != nil {
		return errors.Wrap(err, "aggregate rating")
	}

	rating := models.Rating{Applied: revision}
	if stats.Count > 0 {
		rating.Average = roundRating(stats.Average)
		rating.Count = stats.Count
	}

	stored, err := s.products.SetRating(ctx, productID, rating)
	if err != nil {
		return errors.Wrap(err, "store rating")
	}
	s.log.WithFields(logrus.Fields{
		"product":  productID.Hex(),
		"average":  rating.Average,
		"count":    rating.Count,
		"revision": revision,
		"stored":   stored,
	}).Debug("rating recomputed")
	return nil
}

func (s *ReviewService) find(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	review, err := s.reviews.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "review not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load review")
	}
	return review, nil
}

// roundRating rounds half away from zero to one decimal.
func roundRating(avg float64) float64 {
	return decimal.NewFromFloat(avg).Round(1).InexactFloat64()
}

func validateReviewFields(rating *int, title, comment *string, create bool) error {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return fail(ErrValidation, "rating must be between 1 and 5")
	}
	if title != nil && len(strings.TrimSpace(*title)) > maxReviewTitle {
		return fail(ErrValidation, "title must have at most %d characters", maxReviewTitle)
	}
	if comment != nil {
		c := strings.TrimSpace(*comment)
		if c == "" {
			return fail(ErrValidation, "comment is required")
		}
		if len(c) > maxReviewComment {
			return fail(ErrValidation, "comment must have at most %d characters", maxReviewComment)
		}
	} else if create {
		return fail(ErrValidation, "comment is required")
	}
	return nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	return &v
}
