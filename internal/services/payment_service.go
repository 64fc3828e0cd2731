package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Renarion/AI-for-mock-interview/internal/config"
	"github.com/Renarion/AI-for-mock-interview/internal/database"
	"github.com/Renarion/AI-for-mock-interview/internal/models"

	"github.com/dodopayments/dodopayments-go"
	"github.com/dodopayments/dodopayments-go/option"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	providerDodo = "dodopayments"
	providerMock = "mock"

	webhookDedupTTL = 72 * time.Hour
)

var (
	ErrPaymentNotFound    = &InterviewError{Kind: KindNotFound, Message: "payment not found"}
	ErrPaymentsDisabled   = errors.New("payments are not configured")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrDuplicatePayment   = errors.New("payment already exists")
	ErrUnknownPlan        = errors.New("unknown plan")
	ErrPlanNotPurchasable = errors.New("plan has no product configured")
)

// PaymentStore persists purchases and the webhook event log
type PaymentStore interface {
	InsertPayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
	// SetStatus moves a payment from one status to another and reports
	// whether this call performed the move.
	SetStatus(ctx context.Context, paymentID, from, to string) (bool, error)
	LogEvent(ctx context.Context, event *models.PaymentEvent) error
}

// MongoPaymentStore keeps payments and events in MongoDB
type MongoPaymentStore struct {
	payments *mongo.Collection
	events   *mongo.Collection
}

func NewMongoPaymentStore(db *database.MongoDB) *MongoPaymentStore {
	return &MongoPaymentStore{
		payments: db.Collection(database.CollectionPayments),
		events:   db.Collection(database.CollectionPaymentEvents),
	}
}

func (s *MongoPaymentStore) InsertPayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID.IsZero() {
		payment.ID = primitive.NewObjectID()
	}
	if _, err := s.payments.InsertOne(ctx, payment); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (s *MongoPaymentStore) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.payments.FindOne(ctx, bson.M{"paymentId": paymentID}).Decode(&payment)
	if err == mongo.ErrNoDocuments {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (s *MongoPaymentStore) SetStatus(ctx context.Context, paymentID, from, to string) (bool, error) {
	res, err := s.payments.UpdateOne(ctx,
		bson.M{"paymentId": paymentID, "status": from},
		bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now()}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update payment: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoPaymentStore) LogEvent(ctx context.Context, event *models.PaymentEvent) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if _, err := s.events.InsertOne(ctx, event); err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to log payment event: %w", err)
	}
	return nil
}

// MemoryPaymentStore is the development and test payment store
type MemoryPaymentStore struct {
	mu       sync.Mutex
	payments map[string]*models.Payment
	events   []models.PaymentEvent
}

func NewMemoryPaymentStore() *MemoryPaymentStore {
	return &MemoryPaymentStore{payments: make(map[string]*models.Payment)}
}

func (s *MemoryPaymentStore) InsertPayment(ctx context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[payment.PaymentID]; exists {
		return ErrDuplicatePayment
	}
	if payment.ID.IsZero() {
		payment.ID = primitive.NewObjectID()
	}
	stored := *payment
	s.payments[payment.PaymentID] = &stored
	return nil
}

func (s *MemoryPaymentStore) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.payments[paymentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	copied := *payment
	return &copied, nil
}

func (s *MemoryPaymentStore) SetStatus(ctx context.Context, paymentID, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.payments[paymentID]
	if !ok || payment.Status != from {
		return false, nil
	}
	payment.Status = to
	payment.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryPaymentStore) LogEvent(ctx context.Context, event *models.PaymentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

// Events returns a copy of the logged webhook events
func (s *MemoryPaymentStore) Events() []models.PaymentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PaymentEvent(nil), s.events...)
}

// WebhookEvent is the part of a DodoPayments notification we act on
type WebhookEvent struct {
	ID   string
	Type string
	Data webhookPaymentData
}

type webhookPaymentData struct {
	PaymentID   string `json:"payment_id"`
	TotalAmount int64  `json:"total_amount"`
	Currency    string `json:"currency"`
	Customer    struct {
		CustomerID string `json:"customer_id"`
		Email      string `json:"email"`
	} `json:"customer"`
	ProductCart []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"product_cart"`
}

// CheckoutResponse represents the response for checkout creation
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
	PaymentID   string `json:"payment_id,omitempty"`
	Mock        bool   `json:"mock,omitempty"`
}

// PaymentService sells question packages and credits them to the ledger
type PaymentService struct {
	client        *dodopayments.Client
	webhookSecret string
	frontendURL   string
	mockEnabled   bool
	plans         []models.Plan

	users  UserStore
	ledger *EntitlementService
	store  PaymentStore
	redis  *RedisService // optional first-line webhook dedup
}

// NewPaymentService creates the payment service. Without an API key the
// service runs in mock mode outside production.
func NewPaymentService(cfg *config.Config, users UserStore, ledger *EntitlementService, store PaymentStore, redisService *RedisService) *PaymentService {
	var client *dodopayments.Client
	if cfg.DodoAPIKey != "" {
		var envOpt option.RequestOption
		if cfg.DodoEnvironment == "live" {
			envOpt = option.WithEnvironmentLiveMode()
		} else {
			envOpt = option.WithEnvironmentTestMode()
		}

		client = dodopayments.NewClient(
			option.WithBearerToken(cfg.DodoAPIKey),
			envOpt,
		)
		log.Printf("✅ DodoPayments client initialized (%s mode)", cfg.DodoEnvironment)
	} else if cfg.IsProduction() {
		log.Println("⚠️  DodoPayments API key not provided, payment features disabled")
	} else {
		log.Println("⚠️  DodoPayments API key not provided, using mock checkout")
	}

	plans := models.DefaultPlans()
	for i := range plans {
		plans[i].DodoProductID = cfg.PlanProductIDs[plans[i].ID]
	}

	return &PaymentService{
		client:        client,
		webhookSecret: cfg.DodoWebhookSecret,
		frontendURL:   cfg.FrontendURL,
		mockEnabled:   client == nil && !cfg.IsProduction(),
		plans:         plans,
		users:         users,
		ledger:        ledger,
		store:         store,
		redis:         redisService,
	}
}

// GetAvailablePlans returns the question packages on sale
func (s *PaymentService) GetAvailablePlans() []models.Plan {
	return append([]models.Plan(nil), s.plans...)
}

func (s *PaymentService) planByID(planID string) (models.Plan, bool) {
	for _, p := range s.plans {
		if p.ID == planID {
			return p, true
		}
	}
	return models.Plan{}, false
}

func (s *PaymentService) planByProductID(productID string) (models.Plan, bool) {
	for _, p := range s.plans {
		if p.DodoProductID != "" && p.DodoProductID == productID {
			return p, true
		}
	}
	return models.Plan{}, false
}

// MockEnabled reports whether mock checkout completion is allowed
func (s *PaymentService) MockEnabled() bool {
	return s.mockEnabled
}

// CreateCheckoutSession starts a purchase of the given plan
func (s *PaymentService) CreateCheckoutSession(ctx context.Context, userID, planID, ipAddress string) (*CheckoutResponse, error) {
	plan, ok := s.planByID(planID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, planID)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.client == nil {
		if !s.mockEnabled {
			return nil, ErrPaymentsDisabled
		}
		return s.createMockCheckout(ctx, user, plan, ipAddress)
	}

	if plan.DodoProductID == "" {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotPurchasable, planID)
	}

	customerID := user.DodoCustomerID
	if customerID == "" {
		// DodoPayments requires a name; fall back to the email local part
		customerName := user.Name
		if customerName == "" {
			customerName = user.Email
			if atIndex := strings.Index(user.Email, "@"); atIndex > 0 {
				customerName = user.Email[:atIndex]
			}
		}

		customer, err := s.client.Customers.New(ctx, dodopayments.CustomerNewParams{
			Email: dodopayments.F(user.Email),
			Name:  dodopayments.F(customerName),
			Metadata: dodopayments.F(map[string]string{
				"user_id": userID,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create customer: %w", err)
		}

		customerID = customer.CustomerID
		if err := s.users.SetDodoCustomerID(ctx, userID, customerID); err != nil {
			return nil, fmt.Errorf("failed to update customer ID: %w", err)
		}
	}

	session, err := s.client.CheckoutSessions.New(ctx, dodopayments.CheckoutSessionNewParams{
		CheckoutSessionRequest: dodopayments.CheckoutSessionRequestParam{
			ProductCart: dodopayments.F([]dodopayments.CheckoutSessionRequestProductCartParam{{
				ProductID: dodopayments.F(plan.DodoProductID),
				Quantity:  dodopayments.F(int64(1)),
			}}),
			ReturnURL: dodopayments.F(fmt.Sprintf("%s/payment/success?plan=%s", s.frontendURL, plan.ID)),
			Customer: dodopayments.F[dodopayments.CustomerRequestUnionParam](dodopayments.AttachExistingCustomerParam{
				CustomerID: dodopayments.F(customerID),
			}),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	log.Printf("💳 [PAYMENT] Checkout %s created for user %s (plan %s)", session.SessionID, userID, plan.ID)
	return &CheckoutResponse{
		CheckoutURL: session.CheckoutURL,
		SessionID:   session.SessionID,
	}, nil
}

func (s *PaymentService) createMockCheckout(ctx context.Context, user *models.User, plan models.Plan, ipAddress string) (*CheckoutResponse, error) {
	now := time.Now()
	payment := &models.Payment{
		PaymentID: "mock_" + uuid.NewString(),
		UserID:    user.UserID(),
		PlanID:    plan.ID,
		Status:    models.PaymentStatusPending,
		Amount:    plan.Price,
		Currency:  plan.Currency,
		Provider:  providerMock,
		IPAddress: ipAddress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertPayment(ctx, payment); err != nil {
		return nil, err
	}

	log.Printf("🧪 [PAYMENT] Mock checkout %s created for user %s (plan %s)", payment.PaymentID, payment.UserID, plan.ID)
	return &CheckoutResponse{
		CheckoutURL: fmt.Sprintf("%s/payment/mock?payment_id=%s", s.frontendURL, payment.PaymentID),
		SessionID:   payment.PaymentID,
		PaymentID:   payment.PaymentID,
		Mock:        true,
	}, nil
}

// CompleteMockPayment settles a mock checkout and credits its plan
func (s *PaymentService) CompleteMockPayment(ctx context.Context, userID, paymentID string) (*models.Entitlement, error) {
	if !s.mockEnabled {
		return nil, ErrPaymentsDisabled
	}

	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, newError(KindForbidden, "payment %s belongs to another user", paymentID)
	}
	plan, ok := s.planByID(payment.PlanID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, payment.PlanID)
	}

	return s.settle(ctx, payment.PaymentID, payment.UserID, plan.QuestionsCount)
}

// settle claims a pending payment and credits it exactly once. A second
// call for the same payment returns the current balance without crediting.
func (s *PaymentService) settle(ctx context.Context, paymentID, userID string, credits int) (*models.Entitlement, error) {
	claimed, err := s.store.SetStatus(ctx, paymentID, models.PaymentStatusPending, models.PaymentStatusSucceeded)
	if err != nil {
		return nil, err
	}
	if !claimed {
		log.Printf("⚠️  [PAYMENT] Payment %s already settled, skipping", paymentID)
		ent, err := s.users.GetEntitlement(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &ent, nil
	}

	ent, err := s.ledger.CreditPaid(ctx, userID, credits)
	if err != nil {
		// Put the payment back so a provider retry can settle it
		if _, revertErr := s.store.SetStatus(ctx, paymentID, models.PaymentStatusSucceeded, models.PaymentStatusPending); revertErr != nil {
			log.Printf("❌ [PAYMENT] Failed to revert payment %s: %v", paymentID, revertErr)
		}
		return nil, err
	}

	log.Printf("✅ [PAYMENT] Payment %s settled: +%d questions for user %s", paymentID, credits, userID)
	return &ent, nil
}

// VerifyWebhook checks a legacy hex HMAC-SHA256 signature
func (s *PaymentService) VerifyWebhook(payload []byte, signature string) error {
	if s.webhookSecret == "" {
		return fmt.Errorf("webhook secret not configured")
	}

	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(payload)
	expectedSig := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expectedSig)) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyAndParseWebhook verifies a notification and extracts the payment data.
// With an SDK client the Standard Webhooks headers (webhook-id,
// webhook-signature, webhook-timestamp) are verified by the SDK; otherwise
// the legacy HMAC header is checked.
func (s *PaymentService) VerifyAndParseWebhook(payload []byte, headers http.Header) (*WebhookEvent, error) {
	if s.client != nil && s.webhookSecret != "" {
		if _, err := s.client.Webhooks.Unwrap(payload, headers, option.WithWebhookKey(s.webhookSecret)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	} else {
		signature := headers.Get("Webhook-Signature")
		if signature == "" {
			signature = headers.Get("Dodo-Signature")
		}
		if signature == "" {
			return nil, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
		}
		if err := s.VerifyWebhook(payload, signature); err != nil {
			return nil, err
		}
	}

	var raw struct {
		Type string             `json:"type"`
		Data webhookPaymentData `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	eventID := headers.Get("Webhook-Id")
	if eventID == "" {
		eventID = raw.Type + ":" + raw.Data.PaymentID
	}

	return &WebhookEvent{ID: eventID, Type: raw.Type, Data: raw.Data}, nil
}

// HandleWebhookEvent processes a verified notification. Duplicates are
// detected here (Redis first, then the payment record), never in the ledger.
func (s *PaymentService) HandleWebhookEvent(ctx context.Context, event *WebhookEvent) error {
	if s.redis != nil {
		fresh, err := s.redis.SetNX(ctx, "payment:webhook:"+event.ID, time.Now().Unix(), webhookDedupTTL)
		if err != nil {
			log.Printf("⚠️  [PAYMENT] Redis dedup unavailable for %s: %v", event.ID, err)
		} else if !fresh {
			log.Printf("⚠️  [PAYMENT] Webhook event %s already received, skipping", event.ID)
			return nil
		}
	}

	var err error
	var userID string
	switch event.Type {
	case "payment.succeeded":
		userID, err = s.handlePaymentSucceeded(ctx, event)
	case "payment.failed":
		log.Printf("⚠️  [PAYMENT] Payment %s failed", event.Data.PaymentID)
	default:
		log.Printf("⚠️  [PAYMENT] Unhandled webhook event type: %s", event.Type)
	}

	if err != nil && s.redis != nil {
		// Let the provider retry this event
		if delErr := s.redis.Delete(ctx, "payment:webhook:"+event.ID); delErr != nil {
			log.Printf("⚠️  [PAYMENT] Failed to clear dedup key for %s: %v", event.ID, delErr)
		}
	}

	logErr := s.store.LogEvent(ctx, &models.PaymentEvent{
		DodoEventID: event.ID,
		EventType:   event.Type,
		UserID:      userID,
		Metadata: map[string]any{
			"payment_id": event.Data.PaymentID,
			"failed":     err != nil,
		},
		CreatedAt: time.Now(),
	})
	if logErr != nil {
		log.Printf("⚠️  [PAYMENT] Failed to log webhook event: %v", logErr)
	}

	return err
}

func (s *PaymentService) handlePaymentSucceeded(ctx context.Context, event *WebhookEvent) (string, error) {
	data := event.Data
	if data.PaymentID == "" {
		return "", fmt.Errorf("payment.succeeded without payment_id")
	}

	user, err := s.users.GetUserByDodoCustomerID(ctx, data.Customer.CustomerID)
	if errors.Is(err, ErrUserNotFound) && data.Customer.Email != "" {
		user, err = s.users.GetUserByEmail(ctx, data.Customer.Email)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve customer %s: %w", data.Customer.CustomerID, err)
	}

	if len(data.ProductCart) == 0 {
		return user.UserID(), fmt.Errorf("payment %s has an empty product cart", data.PaymentID)
	}
	plan, ok := s.planByProductID(data.ProductCart[0].ProductID)
	if !ok {
		return user.UserID(), fmt.Errorf("%w: product %s", ErrUnknownPlan, data.ProductCart[0].ProductID)
	}
	quantity := data.ProductCart[0].Quantity
	if quantity < 1 {
		quantity = 1
	}

	now := time.Now()
	err = s.store.InsertPayment(ctx, &models.Payment{
		PaymentID:       data.PaymentID,
		UserID:          user.UserID(),
		PlanID:          plan.ID,
		Status:          models.PaymentStatusPending,
		Amount:          data.TotalAmount,
		Currency:        data.Currency,
		Provider:        providerDodo,
		ProviderPayment: data.PaymentID,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil && !errors.Is(err, ErrDuplicatePayment) {
		return user.UserID(), err
	}

	_, err = s.settle(ctx, data.PaymentID, user.UserID(), plan.QuestionsCount*quantity)
	return user.UserID(), err
}
