package order

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"ms-raffle/internal/expiry"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/numbering"
	"ms-raffle/internal/payment/pix"
	"ms-raffle/internal/qr"

	"github.com/google/uuid"
)

type OrderStore interface {
	CreateOrder(ctx context.Context, order models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// TransitionOrder atomically moves an active order from one of the given
	// states to the target state, returning nil when no row qualified.
	TransitionOrder(ctx context.Context, id string, from []string, to string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id, status string) error
	SetOrderUser(ctx context.Context, id, userID string) error
	SoftDeleteOrder(ctx context.Context, id string) error
	ListOrders(ctx context.Context, filters models.OrderFilters, page models.Pagination) ([]models.Order, int, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
}

type QuotaStore interface {
	ExistsSerial(ctx context.Context, raffleID string, serialNumber int) (bool, error)
	GetQuota(ctx context.Context, quotaID string) (*models.Quota, error)
	UpdateQuotaSerial(ctx context.Context, quotaID string, serialNumber int, awardedQuotaID string) error
	GetSerialsByOrder(ctx context.Context, orderID string) ([]int, error)
	GetAwardedSerialsByOrder(ctx context.Context, orderID string) ([]int, error)
	IsWinningOrder(ctx context.Context, orderID string) (bool, error)
	CountByRaffle(ctx context.Context, raffleID string) (int, error)
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, payment models.Payment) error
	GetPaymentByOrder(ctx context.Context, orderID string) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, orderID string, status models.PaymentStatus) error
	// MarkManual stamps the manual-gateway sentinels onto an order's payment.
	MarkManual(ctx context.Context, orderID string) error
}

type RaffleStore interface {
	GetRaffle(ctx context.Context, raffleID string) (*models.Raffle, error)
	GetActivePrices(ctx context.Context, raffleID string) ([]models.RafflePrice, error)
	GetRaffleTitle(ctx context.Context, raffleID string) (string, error)
}

type AwardedStore interface {
	FindActiveByNumber(ctx context.Context, raffleID string, serialNumber int) (*models.AwardedQuota, error)
	BindUser(ctx context.Context, awardedQuotaID, userID string) (bool, error)
	// CascadeOwner repoints prizes bound through an order's quotas at a new owner.
	CascadeOwner(ctx context.Context, orderID, userID string) error
}

type UserStore interface {
	GetUser(ctx context.Context, whatsapp string) (*models.User, error)
}

type Gateway interface {
	CreateCharge(ctx context.Context, req pix.ChargeRequest) (*pix.Charge, error)
}

type Allocator interface {
	Allocate(ctx context.Context, orderID, raffleID, userID string, count int) ([]models.AllocatedQuota, error)
}

type ConfirmLock interface {
	AcquireOrderLock(orderID string) (bool, error)
	ReleaseOrderLock(orderID string) error
	AcquireAllocationLock(raffleID string) (bool, error)
	ReleaseAllocationLock(raffleID string) error
}

type EventPublisher interface {
	PublishOrderCreated(order models.Order) error
	PublishOrderPaid(event models.PaymentEvent) error
	PublishOrderExpired(order models.Order) error
	PublishQuotaAwarded(raffleID, orderID string, serialNumber int) error
}

type PaymentNotifier interface {
	EmitPaymentEvent(event models.PaymentEvent)
}

type OrderService struct {
	Orders   OrderStore
	Quotas   QuotaStore
	Payments PaymentStore
	Raffles  RaffleStore
	Awarded  AwardedStore
	Users    UserStore

	Gateway   Gateway
	Allocator Allocator
	Lock      ConfirmLock
	Kafka     EventPublisher
	Notifier  PaymentNotifier

	Space  numbering.Space
	logger *logger.Logger
	now    func() time.Time
}

func NewOrderService(
	orders OrderStore,
	quotas QuotaStore,
	payments PaymentStore,
	raffles RaffleStore,
	awarded AwardedStore,
	users UserStore,
	gateway Gateway,
	allocator Allocator,
	lock ConfirmLock,
	kafka EventPublisher,
	notifier PaymentNotifier,
	space numbering.Space,
	log *logger.Logger,
) *OrderService {
	return &OrderService{
		Orders:    orders,
		Quotas:    quotas,
		Payments:  payments,
		Raffles:   raffles,
		Awarded:   awarded,
		Users:     users,
		Gateway:   gateway,
		Allocator: allocator,
		Lock:      lock,
		Kafka:     kafka,
		Notifier:  notifier,
		Space:     space,
		logger:    log,
		now:       time.Now,
	}
}

var nonDigits = regexp.MustCompile(`\D`)

// NormalizeWhatsapp strips formatting and prefixes the Brazilian country code.
func NormalizeWhatsapp(raw string) string {
	if strings.HasPrefix(raw, "+") {
		return "+" + nonDigits.ReplaceAllString(raw, "")
	}
	return "+55" + nonDigits.ReplaceAllString(raw, "")
}

// resolveUnitPrice picks the largest qualifying tier: tiers are sorted by
// quantity threshold descending and the first one at or below the requested
// quantity wins, which is what makes bulk pricing kick in.
func resolveUnitPrice(tiers []models.RafflePrice, quantity int) (float64, error) {
	sorted := make([]models.RafflePrice, 0, len(tiers))
	for _, t := range tiers {
		if t.Active {
			sorted = append(sorted, t)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Quantity > sorted[j].Quantity })

	for _, tier := range sorted {
		if tier.Quantity <= quantity {
			return tier.Price, nil
		}
	}
	return 0, ErrNoPriceTierMatched
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CreateOrder validates the purchase, prices it, persists the pending order,
// creates the PIX charge and only then moves the order to waiting_payment. A
// gateway failure leaves the order pending so checkout can be retried.
func (s *OrderService) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.CreateOrderResponse, error) {
	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrQuantityOutOfRange)
	}
	if _, err := uuid.Parse(req.RaffleID); err != nil {
		return nil, fmt.Errorf("%w: malformed raffle id", ErrRaffleNotFound)
	}

	raffle, err := s.Raffles.GetRaffle(ctx, req.RaffleID)
	if err != nil || raffle == nil {
		return nil, ErrRaffleNotFound
	}
	if raffle.Status() == "finished" {
		return nil, ErrRaffleFinished
	}
	if raffle.MinQuantity > 0 && req.Quantity < raffle.MinQuantity {
		return nil, fmt.Errorf("%w: minimum is %d", ErrQuantityOutOfRange, raffle.MinQuantity)
	}
	if raffle.MaxQuantity > 0 && req.Quantity > raffle.MaxQuantity {
		return nil, fmt.Errorf("%w: maximum is %d", ErrQuantityOutOfRange, raffle.MaxQuantity)
	}

	// The allocator's rejection sampling only terminates if the requested
	// count fits in the unallocated remainder, so the cap is enforced here.
	sold, err := s.Quotas.CountByRaffle(ctx, req.RaffleID)
	if err != nil {
		return nil, fmt.Errorf("count sold quotas: %w", err)
	}
	if req.Quantity > s.Space.Max-sold {
		return nil, ErrRaffleSoldOut
	}

	tiers, err := s.Raffles.GetActivePrices(ctx, req.RaffleID)
	if err != nil {
		return nil, fmt.Errorf("load price tiers: %w", err)
	}
	unitPrice, err := resolveUnitPrice(tiers, req.Quantity)
	if err != nil {
		return nil, err
	}
	amount := round2(unitPrice * float64(req.Quantity))

	userID := NormalizeWhatsapp(req.UserID)
	user, err := s.Users.GetUser(ctx, userID)
	if err != nil || user == nil {
		return nil, ErrUserNotFound
	}

	order := models.Order{
		ID:             uuid.NewString(),
		UserID:         userID,
		RaffleID:       req.RaffleID,
		QuotasQuantity: req.Quantity,
		Status:         models.OrderStatusPending,
		Active:         true,
		CreatedAt:      s.now(),
	}
	if err := s.Orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	s.logger.LogOrder("CREATE", order.ID, fmt.Sprintf("%d quota(s) for raffle %s, amount %.2f", req.Quantity, req.RaffleID, amount))

	charge, err := s.Gateway.CreateCharge(ctx, pix.ChargeRequest{
		OrderID:     order.ID,
		Amount:      amount,
		Description: fmt.Sprintf("%d cota(s) para %s", req.Quantity, raffle.Title),
		Payer:       payerFromUser(user),
	})
	if err != nil {
		// Order stays pending; checkout can retry or abandon it.
		s.logger.Error("PAYMENT", fmt.Sprintf("Charge creation failed for order %s: %v", order.ID, err))
		return nil, fmt.Errorf("create gateway charge: %w", err)
	}

	qrBase64 := charge.QRCodeBase64
	if qrBase64 == "" && charge.QRCode != "" {
		if encoded, qrErr := qr.PNGBase64(charge.QRCode); qrErr == nil {
			qrBase64 = encoded
		} else {
			s.logger.Warn("PAYMENT", fmt.Sprintf("QR render failed for order %s: %v", order.ID, qrErr))
		}
	}

	payment := models.Payment{
		ID:              uuid.NewString(),
		OrderID:         order.ID,
		Gateway:         models.GatewayMercadoPago,
		GatewayID:       charge.ID,
		GatewayQRCode:   charge.QRCode,
		GatewayQRBase64: qrBase64,
		Status:          models.PaymentStatus(charge.Status),
		Amount:          amount,
		Active:          true,
		CreatedAt:       s.now(),
	}
	if err := s.Payments.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("persist payment: %w", err)
	}

	if err := s.Orders.UpdateOrderStatus(ctx, order.ID, models.OrderStatusWaitingPayment); err != nil {
		return nil, fmt.Errorf("advance order to waiting_payment: %w", err)
	}
	order.Status = models.OrderStatusWaitingPayment

	if err := s.Kafka.PublishOrderCreated(order); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Publish order created failed: %v", err))
	}

	return &models.CreateOrderResponse{
		OrderID: order.ID,
		Status:  order.Status,
		Payment: models.PaymentSummary{
			Amount:       amount,
			Gateway:      payment.Gateway,
			QRCode:       payment.GatewayQRCode,
			QRCodeBase64: payment.GatewayQRBase64,
			Type:         "pix",
		},
	}, nil
}

func payerFromUser(user *models.User) pix.Payer {
	digits := strings.TrimPrefix(user.Whatsapp, "+55")
	parts := strings.Fields(user.Name)
	first, last := "Pix", "Pix"
	if len(parts) > 0 {
		first = parts[0]
	}
	if len(parts) > 1 {
		last = strings.Join(parts[1:], " ")
	}
	return pix.Payer{
		FirstName: first,
		LastName:  last,
		Email:     digits + "@caradebone.com",
	}
}

// ConfirmPayment settles a paid order: it is the single entry point for both
// the gateway webhook and the admin manual-payment action, and tolerates being
// invoked more than once for the same order.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID string) error {
	acquired, err := s.Lock.AcquireOrderLock(orderID)
	if err != nil {
		return fmt.Errorf("acquire confirmation lock: %w", err)
	}
	if !acquired {
		// A concurrent delivery is already settling this order. The caller
		// answers non-2xx so the gateway redelivers once the lock is gone.
		s.logger.Warn("PAYMENT", fmt.Sprintf("Confirmation for order %s already in progress", orderID))
		return ErrConfirmationInProgress
	}
	defer func() {
		if err := s.Lock.ReleaseOrderLock(orderID); err != nil {
			s.logger.Error("REDIS", fmt.Sprintf("Release confirmation lock for order %s: %v", orderID, err))
		}
	}()

	payment, err := s.Payments.GetPaymentByOrder(ctx, orderID)
	if err != nil || payment == nil {
		return ErrOrderNotEligible
	}

	// Idempotency guard: the gateway may deliver the same approval more than
	// once. A settled payment over an order still in paid means a previous
	// attempt died between settlement and allocation, so resume; anything else
	// is a plain redelivery.
	if payment.Status == models.PaymentStatusApproved || payment.Status == models.PaymentStatusCompleted {
		ord, err := s.Orders.GetOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load order for settled payment: %w", err)
		}
		if ord != nil && ord.Status == models.OrderStatusPaid {
			s.logger.Warn("PAYMENT", fmt.Sprintf("Order %s is paid with incomplete allocation, resuming", orderID))
			return s.allocateAndComplete(ctx, ord)
		}
		s.logger.Info("PAYMENT", fmt.Sprintf("Payment for order %s already settled (%s), ignoring redelivery", orderID, payment.Status))
		return nil
	}

	if err := s.Payments.UpdatePaymentStatus(ctx, orderID, models.PaymentStatusCompleted); err != nil {
		return fmt.Errorf("mark payment completed: %w", err)
	}

	// Expired orders are deliberately still honored: a late PIX transfer is
	// money received, so confirmation resurrects the order.
	eligible := []string{models.OrderStatusWaitingPayment, models.OrderStatusPending, models.OrderStatusExpired}
	ord, err := s.Orders.TransitionOrder(ctx, orderID, eligible, models.OrderStatusPaid)
	if err != nil {
		return fmt.Errorf("transition order to paid: %w", err)
	}
	if ord == nil {
		return ErrOrderNotEligible
	}

	return s.allocateAndComplete(ctx, ord)
}

// allocateAndComplete runs the allocation for a paid order and moves it to
// completed. It is invoked both on first confirmation and on retries resuming
// a stranded paid order; the allocator only claims what the order still lacks.
func (s *OrderService) allocateAndComplete(ctx context.Context, ord *models.Order) error {
	// Advisory only: correctness comes from the quotas unique index, the lock
	// just keeps concurrent allocations on the same raffle from colliding.
	if held, lockErr := s.Lock.AcquireAllocationLock(ord.RaffleID); lockErr != nil {
		s.logger.Error("REDIS", fmt.Sprintf("Acquire allocation lock for raffle %s: %v", ord.RaffleID, lockErr))
	} else if held {
		defer func() {
			if err := s.Lock.ReleaseAllocationLock(ord.RaffleID); err != nil {
				s.logger.Error("REDIS", fmt.Sprintf("Release allocation lock for raffle %s: %v", ord.RaffleID, err))
			}
		}()
	}

	allocated, err := s.Allocator.Allocate(ctx, ord.ID, ord.RaffleID, ord.UserID, ord.QuotasQuantity)
	if err != nil {
		// Partial allocation: the order stays paid, never completed. The next
		// confirmation attempt lands in the resume branch above and picks up
		// the remaining count.
		return fmt.Errorf("allocate quotas for order %s: %w", ord.ID, err)
	}

	if err := s.Orders.UpdateOrderStatus(ctx, ord.ID, models.OrderStatusCompleted); err != nil {
		return fmt.Errorf("complete order: %w", err)
	}
	s.logger.LogOrder("COMPLETE", ord.ID, fmt.Sprintf("%d quota(s) allocated", ord.QuotasQuantity))

	for _, a := range allocated {
		if a.IsAwarded {
			if err := s.Kafka.PublishQuotaAwarded(ord.RaffleID, ord.ID, a.SerialNumber); err != nil {
				s.logger.Error("KAFKA", fmt.Sprintf("Publish quota awarded failed: %v", err))
			}
		}
	}

	// The event carries every serial on the order, not just this run's: after
	// a resumed allocation the earlier quotas are part of the purchase too.
	serials, err := s.Quotas.GetSerialsByOrder(ctx, ord.ID)
	if err != nil {
		s.logger.Error("DATABASE", fmt.Sprintf("Load serials for order %s event: %v", ord.ID, err))
		serials = make([]int, 0, len(allocated))
		for _, a := range allocated {
			serials = append(serials, a.SerialNumber)
		}
	}

	event := models.PaymentEvent{
		Type:      "payment.completed",
		OrderID:   ord.ID,
		RaffleID:  ord.RaffleID,
		Status:    models.PaymentStatusCompleted,
		Quotas:    serials,
		Timestamp: s.now(),
	}
	if err := s.Kafka.PublishOrderPaid(event); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Publish order paid failed: %v", err))
	}
	s.Notifier.EmitPaymentEvent(event)

	return nil
}

// PayManually settles an order on behalf of an admin: the payment is stamped
// with the manual gateway sentinels and then runs through the exact same
// confirmation path as a webhook delivery.
func (s *OrderService) PayManually(ctx context.Context, orderID string) error {
	ord, err := s.Orders.GetOrder(ctx, orderID)
	if err != nil || ord == nil {
		return ErrOrderNotFound
	}

	if err := s.Payments.MarkManual(ctx, orderID); err != nil {
		return fmt.Errorf("mark payment manual: %w", err)
	}
	s.logger.LogOrder("MANUAL_PAY", orderID, "admin settled payment manually")

	return s.ConfirmPayment(ctx, orderID)
}

// ReassignOwner moves an order to a different user. Prizes bound through the
// order's quotas follow the reassignment.
func (s *OrderService) ReassignOwner(ctx context.Context, orderID, newUserID string) error {
	ord, err := s.Orders.GetOrder(ctx, orderID)
	if err != nil || ord == nil {
		return ErrOrderNotFound
	}

	userID := NormalizeWhatsapp(newUserID)
	user, err := s.Users.GetUser(ctx, userID)
	if err != nil || user == nil {
		return ErrUserNotFound
	}

	if err := s.Orders.SetOrderUser(ctx, orderID, userID); err != nil {
		return fmt.Errorf("reassign order owner: %w", err)
	}
	if err := s.Awarded.CascadeOwner(ctx, orderID, userID); err != nil {
		return fmt.Errorf("cascade prize ownership: %w", err)
	}
	s.logger.LogOrder("REASSIGN", orderID, fmt.Sprintf("owner changed to %s", userID))
	return nil
}

// SoftDelete deactivates an order. Completed orders are permanent records and
// cannot be deleted; the UI hides the action but the rule is re-validated here.
func (s *OrderService) SoftDelete(ctx context.Context, orderID string) error {
	ord, err := s.Orders.GetOrder(ctx, orderID)
	if err != nil || ord == nil {
		return ErrOrderNotFound
	}
	if ord.Status == models.OrderStatusCompleted {
		return ErrOrderNotEligible
	}
	if err := s.Orders.SoftDeleteOrder(ctx, orderID); err != nil {
		return fmt.Errorf("soft delete order: %w", err)
	}
	s.logger.LogOrder("DELETE", orderID, "order deactivated")
	return nil
}

// AdjustQuotaNumber is the admin correction path for a single quota's serial
// number. A number bound to a prize is frozen; the replacement number must be
// free; and if the replacement happens to be an undrawn prize number the prize
// binds to the quota's owner.
func (s *OrderService) AdjustQuotaNumber(ctx context.Context, raffleID, quotaID string, newSerialNumber int, userID string) error {
	taken, err := s.Quotas.ExistsSerial(ctx, raffleID, newSerialNumber)
	if err != nil {
		return fmt.Errorf("check new serial: %w", err)
	}
	if taken {
		return ErrQuotaNumberTaken
	}

	quota, err := s.Quotas.GetQuota(ctx, quotaID)
	if err != nil || quota == nil {
		return ErrQuotaNotFound
	}
	if quota.AwardedQuotaID != "" {
		return ErrCannotAlterAwardedQuota
	}

	awarded, err := s.Awarded.FindActiveByNumber(ctx, raffleID, newSerialNumber)
	if err != nil {
		return fmt.Errorf("lookup awarded number: %w", err)
	}

	awardedID := ""
	if awarded != nil {
		awardedID = awarded.ID
	}
	if err := s.Quotas.UpdateQuotaSerial(ctx, quotaID, newSerialNumber, awardedID); err != nil {
		return fmt.Errorf("update quota serial: %w", err)
	}

	if awarded != nil {
		owner := NormalizeWhatsapp(userID)
		if _, err := s.Awarded.BindUser(ctx, awarded.ID, owner); err != nil {
			return fmt.Errorf("bind prize to adjusted quota: %w", err)
		}
		s.logger.LogOrder("ADJUST", quotaID, fmt.Sprintf("new number %d is awarded, prize %s bound to %s", newSerialNumber, awarded.ID, owner))
	} else {
		s.logger.LogOrder("ADJUST", quotaID, fmt.Sprintf("serial changed to %d", newSerialNumber))
	}
	return nil
}

// GetOrder returns a single order in its read-model shape, with expiry applied.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.OrderWithPayment, error) {
	ord, err := s.Orders.GetOrder(ctx, orderID)
	if err != nil || ord == nil {
		return nil, ErrOrderNotFound
	}
	view, err := s.buildOrderView(ctx, *ord, false)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ListOrders is the admin listing: filtered, paginated, expiry evaluated
// lazily and persisted when crossed.
func (s *OrderService) ListOrders(ctx context.Context, filters models.OrderFilters, page models.Pagination) (*models.OrderPage, error) {
	if page.Limit <= 0 {
		page = models.DefaultPagination()
	}
	orders, total, err := s.Orders.ListOrders(ctx, filters, page)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	views := make([]models.OrderWithPayment, 0, len(orders))
	for _, ord := range orders {
		view, err := s.buildOrderView(ctx, ord, false)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + page.Limit - 1) / page.Limit
	}
	return &models.OrderPage{
		Data:       views,
		Total:      total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: totalPages,
	}, nil
}

// ListOrdersForUser is the customer "my orders" read path, including raffle
// titles and winner information.
func (s *OrderService) ListOrdersForUser(ctx context.Context, rawWhatsapp string) ([]models.OrderWithPayment, error) {
	userID := NormalizeWhatsapp(rawWhatsapp)
	orders, err := s.Orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders for user: %w", err)
	}

	views := make([]models.OrderWithPayment, 0, len(orders))
	for _, ord := range orders {
		view, err := s.buildOrderView(ctx, ord, true)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// buildOrderView assembles the read model for one order and applies the lazy
// expiry rule: a non-completed order past its window is persisted as expired,
// payment row included, before being reported.
func (s *OrderService) buildOrderView(ctx context.Context, ord models.Order, withRaffleTitle bool) (models.OrderWithPayment, error) {
	if ord.Status != models.OrderStatusCompleted && expiry.IsExpired(ord.CreatedAt, s.now()) {
		if ord.Status != models.OrderStatusExpired {
			if err := s.Orders.UpdateOrderStatus(ctx, ord.ID, models.OrderStatusExpired); err != nil {
				return models.OrderWithPayment{}, fmt.Errorf("persist expiry: %w", err)
			}
			if err := s.Payments.UpdatePaymentStatus(ctx, ord.ID, models.PaymentStatusExpired); err != nil {
				s.logger.Error("DATABASE", fmt.Sprintf("Expire payment for order %s: %v", ord.ID, err))
			}
			if err := s.Kafka.PublishOrderExpired(ord); err != nil {
				s.logger.Error("KAFKA", fmt.Sprintf("Publish order expired failed: %v", err))
			}
		}
		ord.Status = models.OrderStatusExpired
	}

	view := models.OrderWithPayment{
		ID:             ord.ID,
		RaffleID:       ord.RaffleID,
		UserID:         ord.UserID,
		QuotasQuantity: ord.QuotasQuantity,
		Status:         ord.Status,
		CreatedAt:      ord.CreatedAt,
		Quotas:         []int{},
	}
	if ord.Status == models.OrderStatusWaitingPayment || ord.Status == models.OrderStatusPending {
		view.ExpiresIn = expiry.FormatRemaining(ord.CreatedAt, s.now())
	}

	if withRaffleTitle {
		if title, err := s.Raffles.GetRaffleTitle(ctx, ord.RaffleID); err == nil {
			view.RaffleTitle = title
		}
	}

	payment, err := s.Payments.GetPaymentByOrder(ctx, ord.ID)
	if err == nil && payment != nil && (payment.GatewayQRCode != "" || payment.Gateway == models.GatewayManual) {
		view.Payment = &models.PaymentSummary{
			Amount:       payment.Amount,
			Gateway:      payment.Gateway,
			QRCode:       payment.GatewayQRCode,
			QRCodeBase64: payment.GatewayQRBase64,
			Type:         "pix",
		}
	}

	if ord.Status == models.OrderStatusCompleted {
		serials, err := s.Quotas.GetSerialsByOrder(ctx, ord.ID)
		if err != nil {
			return models.OrderWithPayment{}, fmt.Errorf("load quota serials: %w", err)
		}
		view.Quotas = serials

		if winner, err := s.Quotas.IsWinningOrder(ctx, ord.ID); err == nil {
			view.IsWinner = winner
		}
		if awardedSerials, err := s.Quotas.GetAwardedSerialsByOrder(ctx, ord.ID); err == nil {
			view.WinnerQuotas = awardedSerials
		}
	}

	return view, nil
}
