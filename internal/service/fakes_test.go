package service_test

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/models"
	"marketplace/internal/repository"
)

type fakeProducts struct {
	mu      sync.Mutex
	items   map[primitive.ObjectID]*models.Product
	ratings int
	// beforeReserve runs under the lock ahead of the stock check, standing
	// in for a concurrent buyer.
	beforeReserve func(p *models.Product)
	releaseErr    error
}

func newFakeProducts(products ...*models.Product) *fakeProducts {
	f := &fakeProducts{items: map[primitive.ObjectID]*models.Product{}}
	for _, p := range products {
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		f.items[p.ID] = p
	}
	return f
}

func (f *fakeProducts) get(id primitive.ObjectID) models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.items[id]
}

func (f *fakeProducts) Create(_ context.Context, product *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	product.ID = primitive.NewObjectID()
	cp := *product
	f.items[product.ID] = &cp
	return nil
}

func (f *fakeProducts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) FindActiveByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Product{}
	for _, id := range ids {
		if p, ok := f.items[id]; ok && p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProducts) ReserveStock(_ context.Context, id primitive.ObjectID, qty int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if ok && f.beforeReserve != nil {
		f.beforeReserve(p)
	}
	if !ok || !p.IsActive || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	p.Sales += qty
	return true, nil
}

func (f *fakeProducts) ReleaseStock(_ context.Context, id primitive.ObjectID, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.releaseErr != nil {
		return f.releaseErr
	}
	if p, ok := f.items[id]; ok {
		p.Stock += qty
		p.Sales -= qty
	}
	return nil
}

func (f *fakeProducts) BumpRatingRevision(_ context.Context, id primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	p.Rating.Revision++
	return p.Rating.Revision, nil
}

func (f *fakeProducts) SetRating(_ context.Context, id primitive.ObjectID, rating models.Rating) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ratings++
	p, ok := f.items[id]
	if !ok || p.Rating.Applied > rating.Applied {
		return false, nil
	}
	p.Rating.Average = rating.Average
	p.Rating.Count = rating.Count
	p.Rating.Applied = rating.Applied
	return true, nil
}

func (f *fakeProducts) UpdateDetails(_ context.Context, id primitive.ObjectID, d repository.ProductDetails) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if d.Title != nil {
		p.Title = *d.Title
	}
	if d.Description != nil {
		p.Description = *d.Description
	}
	if d.Price != nil {
		p.Price = *d.Price
	}
	if d.OriginalPrice != nil {
		p.OriginalPrice = *d.OriginalPrice
	}
	if d.Discount != nil {
		p.Discount = *d.Discount
	}
	if d.Stock != nil {
		p.Stock = *d.Stock
	}
	if d.Tags != nil {
		p.Tags = *d.Tags
	}
	if d.IsActive != nil {
		p.IsActive = *d.IsActive
	}
	if d.IsFeatured != nil {
		p.IsFeatured = *d.IsFeatured
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeProducts) IncrementViews(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.items[id]; ok {
		p.Views++
	}
	return nil
}

func (f *fakeProducts) List(_ context.Context, filter repository.ProductFilter, _ repository.Page) ([]models.Product, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Product{}
	for _, p := range f.items {
		if !filter.IncludeInactive && !p.IsActive {
			continue
		}
		if filter.Seller != nil && p.Seller != *filter.Seller {
			continue
		}
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (f *fakeProducts) Featured(_ context.Context, _ int64) ([]models.Product, error) {
	return []models.Product{}, nil
}

func (f *fakeProducts) AddImage(_ context.Context, id primitive.ObjectID, image models.ProductImage) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.items[id]
	p.Images = append(p.Images, image)
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) RemoveImage(_ context.Context, id primitive.ObjectID, url string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.items[id]
	kept := []models.ProductImage{}
	for _, image := range p.Images {
		if image.URL != url {
			kept = append(kept, image)
		}
	}
	p.Images = kept
	cp := *p
	return &cp, nil
}

type fakeCategories struct {
	items map[primitive.ObjectID]*models.Category
}

func newFakeCategories(categories ...*models.Category) *fakeCategories {
	f := &fakeCategories{items: map[primitive.ObjectID]*models.Category{}}
	for _, c := range categories {
		if c.ID.IsZero() {
			c.ID = primitive.NewObjectID()
		}
		f.items[c.ID] = c
	}
	return f
}

func (f *fakeCategories) Create(_ context.Context, c *models.Category) error {
	c.ID = primitive.NewObjectID()
	cp := *c
	f.items[c.ID] = &cp
	return nil
}

func (f *fakeCategories) FindByID(_ context.Context, id primitive.ObjectID) (*models.Category, error) {
	c, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCategories) FindBySlug(_ context.Context, slug string) (*models.Category, error) {
	for _, c := range f.items {
		if c.Slug == slug && c.IsActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCategories) NameTaken(_ context.Context, name string, except *primitive.ObjectID) (bool, error) {
	for id, c := range f.items {
		if c.Name == name && (except == nil || id != *except) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCategories) ListActive(_ context.Context) ([]models.Category, error) {
	out := []models.Category{}
	for _, c := range f.items {
		if c.IsActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCategories) Update(_ context.Context, id primitive.ObjectID, u repository.CategoryUpdate) (*models.Category, error) {
	c, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Slug != nil {
		c.Slug = *u.Slug
	}
	if u.Parent != nil {
		c.Parent = u.Parent
	}
	if u.ClearParent {
		c.Parent = nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCategories) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := f.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeOrders struct {
	mu        sync.Mutex
	items     map[primitive.ObjectID]*models.Order
	createErr error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{items: map[primitive.ObjectID]*models.Order{}}
}

func (f *fakeOrders) Create(_ context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	order.ID = primitive.NewObjectID()
	cp := *order
	cp.StatusHistory = append([]models.StatusEntry(nil), order.StatusHistory...)
	f.items[order.ID] = &cp
	return nil
}

func (f *fakeOrders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) ChangeStatus(_ context.Context, id primitive.ObjectID, from []string, change repository.StatusChange) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.items[id]
	if !ok || !containsString(from, o.OrderStatus) {
		return nil, repository.ErrNotFound
	}
	o.OrderStatus = change.Status
	if change.CancelReason != "" {
		o.CancelReason = change.CancelReason
	}
	if change.Tracking != nil {
		o.Tracking = change.Tracking
	}
	o.StatusHistory = append(o.StatusHistory, models.StatusEntry{Status: change.Status, Timestamp: change.At, Note: change.Note})
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) ChangePaymentStatus(_ context.Context, id primitive.ObjectID, from []string, to string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.items[id]
	if !ok || !containsString(from, o.PaymentStatus) {
		return nil, repository.ErrNotFound
	}
	o.PaymentStatus = to
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) List(_ context.Context, filter repository.OrderFilter, _ repository.Page) ([]models.Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Order{}
	for _, o := range f.items {
		if filter.Buyer != nil && o.Buyer != *filter.Buyer {
			continue
		}
		if filter.Seller != nil && !o.HasSeller(*filter.Seller) {
			continue
		}
		if filter.Status != "" && o.OrderStatus != filter.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (f *fakeOrders) FindDeliveredContaining(_ context.Context, buyer, product primitive.ObjectID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.items {
		if o.Buyer != buyer || o.OrderStatus != models.OrderDelivered {
			continue
		}
		for _, item := range o.Items {
			if item.Product == product {
				cp := *o
				return &cp, nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

type fakeReviews struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*models.Review
}

func newFakeReviews() *fakeReviews {
	return &fakeReviews{items: map[primitive.ObjectID]*models.Review{}}
}

func (f *fakeReviews) Create(_ context.Context, review *models.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.items {
		if r.Product == review.Product && r.User == review.User {
			return repository.ErrDuplicate
		}
	}
	review.ID = primitive.NewObjectID()
	if review.HelpfulVotes == nil {
		review.HelpfulVotes = []primitive.ObjectID{}
	}
	cp := *review
	f.items[review.ID] = &cp
	return nil
}

func (f *fakeReviews) FindByID(_ context.Context, id primitive.ObjectID) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	cp.HelpfulVotes = append([]primitive.ObjectID(nil), r.HelpfulVotes...)
	return &cp, nil
}

func (f *fakeReviews) Exists(_ context.Context, product, user primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.items {
		if r.Product == product && r.User == user {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReviews) UpdateContent(_ context.Context, id primitive.ObjectID, c repository.ReviewContent) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if c.Rating != nil {
		r.Rating = *c.Rating
	}
	if c.Comment != nil {
		r.Comment = *c.Comment
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReviews) SetResponse(_ context.Context, id primitive.ObjectID, response models.ReviewResponse) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r.Response = &response
	cp := *r
	return &cp, nil
}

func (f *fakeReviews) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeReviews) ListByProduct(_ context.Context, product primitive.ObjectID, _ string, _ repository.Page) ([]models.Review, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Review{}
	for _, r := range f.items {
		if r.Product == product {
			out = append(out, *r)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeReviews) RatingStats(_ context.Context, product primitive.ObjectID) (repository.RatingStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum, count := 0, 0
	for _, r := range f.items {
		if r.Product == product {
			sum += r.Rating
			count++
		}
	}
	if count == 0 {
		return repository.RatingStats{}, nil
	}
	return repository.RatingStats{Average: float64(sum) / float64(count), Count: count}, nil
}

func (f *fakeReviews) AddHelpfulVote(_ context.Context, id, voter primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return false, nil
	}
	for _, v := range r.HelpfulVotes {
		if v == voter {
			return false, nil
		}
	}
	r.HelpfulVotes = append(r.HelpfulVotes, voter)
	r.Helpful++
	return true, nil
}

type fakeUsers struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{items: map[primitive.ObjectID]*models.User{}}
	for _, u := range users {
		if u.ID.IsZero() {
			u.ID = primitive.NewObjectID()
		}
		f.items[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.items {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	cp := *user
	f.items[user.ID] = &cp
	return nil
}

func (f *fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	cp.Addresses = append([]models.Address(nil), u.Addresses...)
	return &cp, nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.items {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) Summaries(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[primitive.ObjectID]models.UserSummary{}
	for _, id := range ids {
		if u, ok := f.items[id]; ok {
			out[id] = models.UserSummary{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
		}
	}
	return out, nil
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id primitive.ObjectID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.items[id]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id primitive.ObjectID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id primitive.ObjectID, p repository.ProfileUpdate) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) SetAddresses(_ context.Context, id primitive.ObjectID, addresses []models.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Addresses = append([]models.Address(nil), addresses...)
	return nil
}

func (f *fakeUsers) AddFavorite(_ context.Context, id, productID primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.items[id]
	for _, fav := range u.Favorites {
		if fav == productID {
			return false, nil
		}
	}
	u.Favorites = append(u.Favorites, productID)
	return true, nil
}

func (f *fakeUsers) RemoveFavorite(_ context.Context, id, productID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.items[id]
	kept := []primitive.ObjectID{}
	for _, fav := range u.Favorites {
		if fav != productID {
			kept = append(kept, fav)
		}
	}
	u.Favorites = kept
	return nil
}

func (f *fakeUsers) PushSearch(_ context.Context, id primitive.ObjectID, query string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.items[id]
	u.SearchHistory = append(u.SearchHistory, models.SearchEntry{Query: query, Timestamp: at})
	if len(u.SearchHistory) > models.SearchHistoryLimit {
		u.SearchHistory = u.SearchHistory[len(u.SearchHistory)-models.SearchHistoryLimit:]
	}
	return nil
}

func (f *fakeUsers) ClearSearchHistory(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id].SearchHistory = []models.SearchEntry{}
	return nil
}

func (f *fakeUsers) List(_ context.Context, _ repository.UserFilter, _ repository.Page) ([]models.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.User{}
	for _, u := range f.items {
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

func (f *fakeUsers) AdminUpdate(_ context.Context, id primitive.ObjectID, a repository.AdminUserUpdate) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if a.Role != nil {
		u.Role = *a.Role
	}
	if a.IsActive != nil {
		u.IsActive = *a.IsActive
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeTokens struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*models.RefreshToken
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{items: map[primitive.ObjectID]*models.RefreshToken{}}
}

func (f *fakeTokens) Create(_ context.Context, token *models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	token.ID = primitive.NewObjectID()
	cp := *token
	f.items[token.ID] = &cp
	return nil
}

func (f *fakeTokens) FindActiveByHash(_ context.Context, hash string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.items {
		if t.TokenHash == hash && !t.Revoked {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTokens) Revoke(_ context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.items[id]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	t.ReplacedByToken = replacedBy
	return true, nil
}

func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.items {
		if t.TokenHash == hash && !t.Revoked {
			t.Revoked = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.items {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (f *fakeTokens) active(userID primitive.ObjectID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.items {
		if t.UserID == userID && !t.Revoked {
			n++
		}
	}
	return n
}

type emitted struct {
	target  string
	event   string
	payload interface{}
}

type fakeDeliverer struct {
	mu     sync.Mutex
	online map[string]bool
	rooms  map[string]map[string]bool
	toRoom []emitted
	toUser []emitted
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{online: map[string]bool{}, rooms: map[string]map[string]bool{}}
}

func (f *fakeDeliverer) join(userID, room string) {
	f.online[userID] = true
	if f.rooms[room] == nil {
		f.rooms[room] = map[string]bool{}
	}
	f.rooms[room][userID] = true
}

func (f *fakeDeliverer) EmitToRoom(room, event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toRoom = append(f.toRoom, emitted{target: room, event: event, payload: payload})
}

func (f *fakeDeliverer) EmitToUser(userID, event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toUser = append(f.toUser, emitted{target: userID, event: event, payload: payload})
}

func (f *fakeDeliverer) IsOnline(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[userID]
}

func (f *fakeDeliverer) InRoom(userID, room string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rooms[room][userID]
}

type fakeIssuer struct{}

func (fakeIssuer) Issue(userID primitive.ObjectID, role, _ string) (string, error) {
	return "access-" + userID.Hex() + "-" + role, nil
}

func (fakeIssuer) TTL() time.Duration {
	return 20 * time.Minute
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

type fakeMessages struct {
	mu    sync.Mutex
	items []*models.Message
}

func (f *fakeMessages) Create(_ context.Context, message *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	message.ID = primitive.NewObjectID()
	message.CreatedAt = time.Now().Add(time.Duration(len(f.items)) * time.Millisecond)
	cp := *message
	f.items = append(f.items, &cp)
	return nil
}

func (f *fakeMessages) FindByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.items {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ListConversation returns newest first, like the store.
func (f *fakeMessages) ListConversation(_ context.Context, conversation string, _ repository.Page) ([]models.Message, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Message{}
	for i := len(f.items) - 1; i >= 0; i-- {
		if f.items[i].Conversation == conversation {
			out = append(out, *f.items[i])
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeMessages) MarkConversationRead(_ context.Context, conversation string, receiver primitive.ObjectID, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.items {
		if m.Conversation == conversation && m.Receiver == receiver && !m.IsRead {
			m.IsRead = true
			m.ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) MarkRead(_ context.Context, id primitive.ObjectID, at time.Time) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.items {
		if m.ID == id {
			m.IsRead = true
			m.ReadAt = &at
			cp := *m
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeMessages) CountUnread(_ context.Context, receiver primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.items {
		if m.Receiver == receiver && !m.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) Conversations(_ context.Context, _ primitive.ObjectID) ([]models.Conversation, error) {
	return []models.Conversation{}, nil
}

// searchProducts layers the discovery queries over fakeProducts with canned
// results.
type searchProducts struct {
	*fakeProducts
	textResults []models.Product
	inCategory  []models.Product
	popular     []models.Product
	lastText    string
}

func (s *searchProducts) TextSearch(_ context.Context, text string, _ repository.Page) ([]models.Product, int64, error) {
	s.lastText = text
	return s.textResults, int64(len(s.textResults)), nil
}

func (s *searchProducts) PrefixTitles(_ context.Context, _ string, _ int64) ([]string, error) {
	return []string{}, nil
}

func (s *searchProducts) TopTitles(_ context.Context, _ int64) ([]string, error) {
	return []string{}, nil
}

func (s *searchProducts) FindInCategories(_ context.Context, _ []primitive.ObjectID, _ int64) ([]models.Product, error) {
	return s.inCategory, nil
}

func (s *searchProducts) Popular(_ context.Context, _ int64) ([]models.Product, error) {
	return s.popular, nil
}

func (s *searchProducts) Related(_ context.Context, _ *models.Product, _ int64) ([]models.Product, error) {
	return []models.Product{}, nil
}

func (s *searchProducts) Trending(_ context.Context, _ int64) ([]models.Product, error) {
	return []models.Product{}, nil
}

type fakePurchases struct {
	categories []primitive.ObjectID
	together   []repository.CoPurchase
}

func (f *fakePurchases) PurchasedCategories(_ context.Context, _ primitive.ObjectID) ([]primitive.ObjectID, error) {
	return f.categories, nil
}

func (f *fakePurchases) BoughtTogether(_ context.Context, _ primitive.ObjectID, _ int64) ([]repository.CoPurchase, error) {
	return f.together, nil
}
