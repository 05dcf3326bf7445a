package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/auth"
	"marketplace/internal/models"
	"marketplace/internal/repository"
)

const (
	minPasswordLength = 6
	maxNameLength     = 100
)

type AccountUsers interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, update repository.ProfileUpdate) (*models.User, error)
	SetAddresses(ctx context.Context, id primitive.ObjectID, addresses []models.Address) error
	AddFavorite(ctx context.Context, id, productID primitive.ObjectID) (bool, error)
	RemoveFavorite(ctx context.Context, id, productID primitive.ObjectID) error
	List(ctx context.Context, filter repository.UserFilter, page repository.Page) ([]models.User, int64, error)
	AdminUpdate(ctx context.Context, id primitive.ObjectID, update repository.AdminUserUpdate) (*models.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type RefreshTokens interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	FindActiveByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) (bool, error)
	RevokeByHash(ctx context.Context, hash string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID primitive.ObjectID) error
}

type FavoriteProducts interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	FindActiveByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
}

type TokenIssuer interface {
	Issue(userID primitive.ObjectID, role, email string) (string, error)
	TTL() time.Duration
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	Phone    string
}

type AuthResult struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

type AddressInput struct {
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	ZipCode      string
	IsDefault    bool
}

type ProfilePatch struct {
	Name   *string
	Phone  *string
	Avatar *string
}

type AdminUserPatch struct {
	Name       *string
	Role       *string
	IsActive   *bool
	IsVerified *bool
}

// PublicProfile is what other users may see about an account.
type PublicProfile struct {
	ID         primitive.ObjectID `json:"id"`
	Name       string             `json:"name"`
	Avatar     string             `json:"avatar,omitempty"`
	Role       string             `json:"role"`
	IsVerified bool               `json:"isVerified"`
	CreatedAt  time.Time          `json:"createdAt"`
}

type AccountService struct {
	users      AccountUsers
	tokens     RefreshTokens
	products   FavoriteProducts
	issuer     TokenIssuer
	refreshTTL time.Duration
	log        *logrus.Entry
}

func NewAccountService(users AccountUsers, tokens RefreshTokens, products FavoriteProducts, issuer TokenIssuer, refreshTTL time.Duration) *AccountService {
	return &AccountService{
		users:      users,
		tokens:     tokens,
		products:   products,
		issuer:     issuer,
		refreshTTL: refreshTTL,
		log:        logrus.WithField("area", "AUTH"),
	}
}

// Register creates a buyer or seller account and signs it in. Admin
// accounts are never created through registration.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || len(name) > maxNameLength {
		return nil, fail(ErrValidation, "name must have between 1 and %d characters", maxNameLength)
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, fail(ErrValidation, "invalid email")
	}
	if len(in.Password) < minPasswordLength {
		return nil, fail(ErrValidation, "password must have at least %d characters", minPasswordLength)
	}
	role := in.Role
	if role == "" {
		role = models.RoleBuyer
	}
	if role != models.RoleBuyer && role != models.RoleSeller {
		return nil, fail(ErrValidation, "role must be buyer or seller")
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, fail(ErrConflict, "email already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, errors.Wrap(err, "check email")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Phone:        strings.TrimSpace(in.Phone),
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fail(ErrConflict, "email already registered")
		}
		return nil, errors.Wrap(err, "insert user")
	}

	s.log.WithField("user", user.ID.Hex()).Info("user registered")
	return s.issue(ctx, user)
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fail(ErrValidation, "email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrUnauthorized, "invalid credentials")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load user")
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		s.log.WithField("user", user.ID.Hex()).Warn("login with invalid credentials")
		return nil, fail(ErrUnauthorized, "invalid credentials")
	}
	if !user.IsActive {
		return nil, fail(ErrUnauthorized, "account is inactive")
	}

	now := time.Now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.log.WithError(err).Warn("update last login failed")
	} else {
		user.LastLogin = &now
	}
	return s.issue(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and
// points at its replacement. Only one of two concurrent refreshes of the
// same token succeeds.
func (s *AccountService) Refresh(ctx context.Context, plain string) (*AuthResult, error) {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return nil, fail(ErrValidation, "refreshToken is required")
	}

	token, err := s.tokens.FindActiveByHash(ctx, auth.HashToken(plain))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrUnauthorized, "invalid refresh token")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load refresh token")
	}
	if token.Expired(time.Now()) {
		if _, err := s.tokens.Revoke(ctx, token.ID, nil); err != nil {
			s.log.WithError(err).Warn("revoke expired refresh token failed")
		}
		return nil, fail(ErrUnauthorized, "refresh token expired")
	}

	user, err := s.users.FindByID(ctx, token.UserID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !user.IsActive) {
		return nil, fail(ErrUnauthorized, "account is not available")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load user")
	}

	result, next, err := s.issueWithID(ctx, user)
	if err != nil {
		return nil, err
	}
	revoked, err := s.tokens.Revoke(ctx, token.ID, &next)
	if err != nil {
		return nil, errors.Wrap(err, "revoke refresh token")
	}
	if !revoked {
		if _, err := s.tokens.Revoke(ctx, next, nil); err != nil {
			s.log.WithError(err).Warn("revoke losing refresh token failed")
		}
		return nil, fail(ErrUnauthorized, "invalid refresh token")
	}
	return result, nil
}

func (s *AccountService) Logout(ctx context.Context, plain string) error {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return fail(ErrValidation, "refreshToken is required")
	}
	revoked, err := s.tokens.RevokeByHash(ctx, auth.HashToken(plain))
	if err != nil {
		return errors.Wrap(err, "revoke refresh token")
	}
	if !revoked {
		return fail(ErrUnauthorized, "invalid refresh token")
	}
	return nil
}

func (s *AccountService) issue(ctx context.Context, user *models.User) (*AuthResult, error) {
	result, _, err := s.issueWithID(ctx, user)
	return result, err
}

func (s *AccountService) issueWithID(ctx context.Context, user *models.User) (*AuthResult, primitive.ObjectID, error) {
	access, err := s.issuer.Issue(user.ID, user.Role, user.Email)
	if err != nil {
		return nil, primitive.NilObjectID, err
	}
	plain, hash, err := auth.NewRefreshToken()
	if err != nil {
		return nil, primitive.NilObjectID, err
	}

	record := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return nil, primitive.NilObjectID, errors.Wrap(err, "store refresh token")
	}

	return &AuthResult{
		User:         user,
		AccessToken:  access,
		RefreshToken: plain,
		ExpiresIn:    int64(s.issuer.TTL().Seconds()),
	}, record.ID, nil
}

func (s *AccountService) Me(ctx context.Context, actor Actor) (*models.User, error) {
	return s.findUser(ctx, actor.ID)
}

func (s *AccountService) Profile(ctx context.Context, id primitive.ObjectID) (*PublicProfile, error) {
	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fail(ErrNotFound, "user not found")
	}
	return &PublicProfile{
		ID:         user.ID,
		Name:       user.Name,
		Avatar:     user.Avatar,
		Role:       user.Role,
		IsVerified: user.IsVerified,
		CreatedAt:  user.CreatedAt,
	}, nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, actor Actor, patch ProfilePatch) (*models.User, error) {
	name := trimmed(patch.Name)
	if name != nil && (*name == "" || len(*name) > maxNameLength) {
		return nil, fail(ErrValidation, "name must have between 1 and %d characters", maxNameLength)
	}
	updated, err := s.users.UpdateProfile(ctx, actor.ID, repository.ProfileUpdate{
		Name:   name,
		Phone:  trimmed(patch.Phone),
		Avatar: trimmed(patch.Avatar),
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "update profile")
	}
	return updated, nil
}

func (s *AccountService) ChangePassword(ctx context.Context, actor Actor, current, next string) error {
	if len(next) < minPasswordLength {
		return fail(ErrValidation, "password must have at least %d characters", minPasswordLength)
	}
	user, err := s.findUser(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.PasswordHash, current) {
		return fail(ErrUnauthorized, "current password is incorrect")
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, actor.ID, hash); err != nil {
		return errors.Wrap(err, "update password")
	}
	return errors.Wrap(s.tokens.RevokeAllForUser(ctx, actor.ID), "revoke sessions")
}

func (s *AccountService) Addresses(ctx context.Context, actor Actor) ([]models.Address, error) {
	user, err := s.findUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return user.Addresses, nil
}

// AddAddress keeps at most one default: the first address is always the
// default and a new default clears the flag on the others.
func (s *AccountService) AddAddress(ctx context.Context, actor Actor, in AddressInput) ([]models.Address, error) {
	if err := validateAddress(in); err != nil {
		return nil, err
	}
	user, err := s.findUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	address := buildAddress(uuid.NewString(), in)
	if len(user.Addresses) == 0 {
		address.IsDefault = true
	}
	if address.IsDefault {
		clearDefault(user.Addresses)
	}
	addresses := append(user.Addresses, address)

	if err := s.users.SetAddresses(ctx, actor.ID, addresses); err != nil {
		return nil, errors.Wrap(err, "save addresses")
	}
	return addresses, nil
}

func (s *AccountService) UpdateAddress(ctx context.Context, actor Actor, addressID string, in AddressInput) ([]models.Address, error) {
	if err := validateAddress(in); err != nil {
		return nil, err
	}
	user, err := s.findUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	index := addressIndex(user.Addresses, addressID)
	if index < 0 {
		return nil, fail(ErrNotFound, "address not found")
	}
	wasDefault := user.Addresses[index].IsDefault
	if in.IsDefault {
		clearDefault(user.Addresses)
	}
	updated := buildAddress(addressID, in)
	// the default can only move by marking another address
	updated.IsDefault = in.IsDefault || wasDefault
	user.Addresses[index] = updated

	if err := s.users.SetAddresses(ctx, actor.ID, user.Addresses); err != nil {
		return nil, errors.Wrap(err, "save addresses")
	}
	return user.Addresses, nil
}

// DeleteAddress promotes the first remaining address when the default goes.
func (s *AccountService) DeleteAddress(ctx context.Context, actor Actor, addressID string) ([]models.Address, error) {
	user, err := s.findUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	index := addressIndex(user.Addresses, addressID)
	if index < 0 {
		return nil, fail(ErrNotFound, "address not found")
	}

	removed := user.Addresses[index]
	addresses := append(user.Addresses[:index:index], user.Addresses[index+1:]...)
	if removed.IsDefault && len(addresses) > 0 {
		addresses[0].IsDefault = true
	}

	if err := s.users.SetAddresses(ctx, actor.ID, addresses); err != nil {
		return nil, errors.Wrap(err, "save addresses")
	}
	return addresses, nil
}

func (s *AccountService) Favorites(ctx context.Context, actor Actor) ([]models.Product, error) {
	user, err := s.findUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	products, err := s.products.FindActiveByIDs(ctx, user.Favorites)
	if err != nil {
		return nil, errors.Wrap(err, "load favorites")
	}
	return products, nil
}

func (s *AccountService) AddFavorite(ctx context.Context, actor Actor, productID primitive.ObjectID) error {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(ErrNotFound, "product not found")
		}
		return errors.Wrap(err, "load product")
	}
	added, err := s.users.AddFavorite(ctx, actor.ID, productID)
	if err != nil {
		return errors.Wrap(err, "add favorite")
	}
	if !added {
		return fail(ErrConflict, "product already in favorites")
	}
	return nil
}

func (s *AccountService) RemoveFavorite(ctx context.Context, actor Actor, productID primitive.ObjectID) error {
	return errors.Wrap(s.users.RemoveFavorite(ctx, actor.ID, productID), "remove favorite")
}

func (s *AccountService) ListUsers(ctx context.Context, filter repository.UserFilter, page repository.Page) (PageResult[models.User], error) {
	if filter.Role != "" && !models.ValidRole(filter.Role) {
		return PageResult[models.User]{}, fail(ErrValidation, "invalid role")
	}
	users, total, err := s.users.List(ctx, filter, page)
	if err != nil {
		return PageResult[models.User]{}, errors.Wrap(err, "list users")
	}
	return pageOf(users, page, total), nil
}

// AdminUpdateUser changes role and status flags. Deactivating an account
// also ends its sessions.
func (s *AccountService) AdminUpdateUser(ctx context.Context, actor Actor, id primitive.ObjectID, patch AdminUserPatch) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, fail(ErrForbidden, "admin only")
	}
	if patch.Role != nil && !models.ValidRole(*patch.Role) {
		return nil, fail(ErrValidation, "invalid role")
	}
	if id == actor.ID && ((patch.Role != nil && *patch.Role != models.RoleAdmin) || (patch.IsActive != nil && !*patch.IsActive)) {
		return nil, fail(ErrValidation, "admins cannot demote or deactivate themselves")
	}

	updated, err := s.users.AdminUpdate(ctx, id, repository.AdminUserUpdate{
		Name:       trimmed(patch.Name),
		Role:       patch.Role,
		IsActive:   patch.IsActive,
		IsVerified: patch.IsVerified,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "update user")
	}

	if patch.IsActive != nil && !*patch.IsActive {
		if err := s.tokens.RevokeAllForUser(ctx, id); err != nil {
			return nil, errors.Wrap(err, "revoke sessions")
		}
	}
	s.log.WithFields(logrus.Fields{"user": id.Hex(), "admin": actor.ID.Hex()}).Info("user updated by admin")
	return updated, nil
}

func (s *AccountService) DeleteUser(ctx context.Context, actor Actor, id primitive.ObjectID) error {
	if !actor.IsAdmin() {
		return fail(ErrForbidden, "admin only")
	}
	if id == actor.ID {
		return fail(ErrValidation, "admins cannot delete themselves")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(ErrNotFound, "user not found")
		}
		return errors.Wrap(err, "delete user")
	}
	if err := s.tokens.RevokeAllForUser(ctx, id); err != nil {
		return errors.Wrap(err, "revoke sessions")
	}
	s.log.WithFields(logrus.Fields{"user": id.Hex(), "admin": actor.ID.Hex()}).Info("user deleted")
	return nil
}

// CreateAdmin provisions an administrator outside of registration.
func (s *AccountService) CreateAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if len(password) < minPasswordLength {
		return nil, fail(ErrValidation, "password must have at least %d characters", minPasswordLength)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
		IsVerified:   true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fail(ErrConflict, "email already registered")
		}
		return nil, errors.Wrap(err, "insert admin")
	}
	return user, nil
}

func (s *AccountService) findUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load user")
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateAddress(in AddressInput) error {
	required := map[string]string{
		"street":       in.Street,
		"number":       in.Number,
		"neighborhood": in.Neighborhood,
		"city":         in.City,
		"state":        in.State,
		"zipCode":      in.ZipCode,
	}
	for _, field := range []string{"street", "number", "neighborhood", "city", "state", "zipCode"} {
		if strings.TrimSpace(required[field]) == "" {
			return fail(ErrValidation, "%s is required", field)
		}
	}
	return nil
}

func buildAddress(id string, in AddressInput) models.Address {
	return models.Address{
		ID:           id,
		Street:       strings.TrimSpace(in.Street),
		Number:       strings.TrimSpace(in.Number),
		Complement:   strings.TrimSpace(in.Complement),
		Neighborhood: strings.TrimSpace(in.Neighborhood),
		City:         strings.TrimSpace(in.City),
		State:        strings.TrimSpace(in.State),
		ZipCode:      strings.TrimSpace(in.ZipCode),
		IsDefault:    in.IsDefault,
	}
}

func clearDefault(addresses []models.Address) {
	for i := range addresses {
		addresses[i].IsDefault = false
	}
}

func addressIndex(addresses []models.Address, id string) int {
	for i, address := range addresses {
		if address.ID == id {
			return i
		}
	}
	return -1
}
