package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Renarion/AI-for-mock-interview/internal/database"
	"github.com/Renarion/AI-for-mock-interview/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrUserNotFound = &InterviewError{Kind: KindNotFound, Message: "user not found"}
	ErrEmailTaken   = errors.New("email already registered")
)

// CreditStore is the persistence contract of the entitlement ledger.
// ConsumeCredit must be atomic on its own: trial first, then paid, never below zero.
type CreditStore interface {
	GetEntitlement(ctx context.Context, userID string) (models.Entitlement, error)
	ConsumeCredit(ctx context.Context, userID string) (models.CreditSource, bool, error)
	AddPaidCredits(ctx context.Context, userID string, count int) (models.Entitlement, error)
}

// UserStore adds account lookups on top of the ledger contract
type UserStore interface {
	CreditStore
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByDodoCustomerID(ctx context.Context, customerID string) (*models.User, error)
	SetDodoCustomerID(ctx context.Context, userID, customerID string) error
	TouchLogin(ctx context.Context, userID string, at time.Time) error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MongoUserStore keeps users and their balances in the users collection
type MongoUserStore struct {
	collection *mongo.Collection
}

// NewMongoUserStore creates a user store over MongoDB
func NewMongoUserStore(db *database.MongoDB) *MongoUserStore {
	return &MongoUserStore{collection: db.Collection(database.CollectionUsers)}
}

func parseUserID(userID string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return primitive.NilObjectID, ErrUserNotFound
	}
	return oid, nil
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := s.collection.FindOne(ctx, filter).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// CreateUser inserts a new user and fills in its generated ID
func (s *MongoUserStore) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = normalizeEmail(user.Email)
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if _, err := s.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *MongoUserStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	oid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

func (s *MongoUserStore) GetUserByDodoCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"dodoCustomerId": customerID})
}

func (s *MongoUserStore) SetDodoCustomerID(ctx context.Context, userID, customerID string) error {
	oid, err := parseUserID(userID)
	if err != nil {
		return err
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"dodoCustomerId": customerID}})
	if err != nil {
		return fmt.Errorf("failed to store customer id: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoUserStore) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	oid, err := parseUserID(userID)
	if err != nil {
		return err
	}
	_, err = s.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"lastLoginAt": at}})
	return err
}

func (s *MongoUserStore) GetEntitlement(ctx context.Context, userID string) (models.Entitlement, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return models.Entitlement{}, err
	}
	return user.Entitlement(), nil
}

// ConsumeCredit relies on conditional single-document updates, so two
// concurrent consumers can never both take the same credit.
func (s *MongoUserStore) ConsumeCredit(ctx context.Context, userID string) (models.CreditSource, bool, error) {
	oid, err := parseUserID(userID)
	if err != nil {
		return "", false, err
	}

	err = s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "hasTrialCredit": true},
		bson.M{"$set": bson.M{"hasTrialCredit": false}},
	).Err()
	if err == nil {
		return models.CreditSourceTrial, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return "", false, fmt.Errorf("failed to consume trial credit: %w", err)
	}

	err = s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "paidCredits": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"paidCredits": -1}},
	).Err()
	if err == nil {
		return models.CreditSourcePaid, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return "", false, fmt.Errorf("failed to consume paid credit: %w", err)
	}

	// Distinguish an empty balance from an unknown user
	count, err := s.collection.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return "", false, fmt.Errorf("failed to check user: %w", err)
	}
	if count == 0 {
		return "", false, ErrUserNotFound
	}
	return "", false, nil
}

func (s *MongoUserStore) AddPaidCredits(ctx context.Context, userID string, count int) (models.Entitlement, error) {
	oid, err := parseUserID(userID)
	if err != nil {
		return models.Entitlement{}, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	err = s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$inc": bson.M{"paidCredits": count}},
		opts,
	).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return models.Entitlement{}, ErrUserNotFound
	}
	if err != nil {
		return models.Entitlement{}, fmt.Errorf("failed to add credits: %w", err)
	}
	return user.Entitlement(), nil
}

// MemoryUserStore keeps users in process memory. Used in development
// without MongoDB and in tests.
type MemoryUserStore struct {
	mu      sync.RWMutex
	users   map[string]*models.User
	byEmail map[string]string
}

// NewMemoryUserStore creates an empty in-memory user store
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:   make(map[string]*models.User),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryUserStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = normalizeEmail(user.Email)
	if user.Email != "" {
		if _, exists := s.byEmail[user.Email]; exists {
			return ErrEmailTaken
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}

	stored := *user
	s.users[user.UserID()] = &stored
	if user.Email != "" {
		s.byEmail[user.Email] = user.UserID()
	}
	return nil
}

func (s *MemoryUserStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	id, ok := s.byEmail[normalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrUserNotFound
	}
	return s.GetUserByID(ctx, id)
}

func (s *MemoryUserStore) GetUserByDodoCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if customerID != "" && user.DodoCustomerID == customerID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryUserStore) SetDodoCustomerID(ctx context.Context, userID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.DodoCustomerID = customerID
	return nil
}

func (s *MemoryUserStore) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.LastLoginAt = at
	return nil
}

func (s *MemoryUserStore) GetEntitlement(ctx context.Context, userID string) (models.Entitlement, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return models.Entitlement{}, err
	}
	return user.Entitlement(), nil
}

func (s *MemoryUserStore) ConsumeCredit(ctx context.Context, userID string) (models.CreditSource, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return "", false, ErrUserNotFound
	}
	switch {
	case user.HasTrialCredit:
		user.HasTrialCredit = false
		return models.CreditSourceTrial, true, nil
	case user.PaidCredits > 0:
		user.PaidCredits--
		return models.CreditSourcePaid, true, nil
	default:
		return "", false, nil
	}
}

func (s *MemoryUserStore) AddPaidCredits(ctx context.Context, userID string, count int) (models.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return models.Entitlement{}, ErrUserNotFound
	}
	user.PaidCredits += count
	return user.Entitlement(), nil
}
