package raffle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/numbering"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("raffle not found")
	ErrFinished     = errors.New("raffle already finished")
	ErrQuotaNotSold = errors.New("quota number has not been sold")
	ErrInvalidInput = errors.New("invalid raffle input")
)

// Store is the persistence surface the raffle service needs.
type Store interface {
	CreateRaffle(ctx context.Context, raffle models.Raffle) error
	GetRaffle(ctx context.Context, raffleID string) (*models.Raffle, error)
	ListRaffles(ctx context.Context) ([]models.Raffle, error)
	UpdateRaffle(ctx context.Context, raffle models.Raffle) error
	SetWinnerQuota(ctx context.Context, raffleID, quotaID string) error
	SoftDeleteRaffle(ctx context.Context, raffleID string) error

	CreatePrices(ctx context.Context, prices []models.RafflePrice) error
	GetActivePrices(ctx context.Context, raffleID string) ([]models.RafflePrice, error)
	DeactivatePrices(ctx context.Context, priceIDs []string) error

	CreateAwardedQuotas(ctx context.Context, awarded []models.AwardedQuota) error
	GetActiveAwardedQuotas(ctx context.Context, raffleID string) ([]models.AwardedQuota, error)
	DeactivateAwardedQuotas(ctx context.Context, awardedIDs []string) error

	CreateFlags(ctx context.Context, flags models.RaffleFlags) error
	GetFlags(ctx context.Context, raffleID string) (*models.RaffleFlags, error)
	UpdateFlags(ctx context.Context, flags models.RaffleFlags) error

	CountQuotasSold(ctx context.Context, raffleID string) (int, error)
	TopBuyers(ctx context.Context, raffleID string, since time.Time, limit int) ([]models.TopBuyer, error)
	EdgeQuota(ctx context.Context, raffleID string, highest bool) (*models.EdgeQuota, error)
	SearchQuotaOwner(ctx context.Context, raffleID string, serialNumber int) (*models.QuotaOwner, error)
	GetQuotaBySerial(ctx context.Context, raffleID string, serialNumber int) (*models.Quota, error)
}

const topBuyersLimit = 10

type Service struct {
	Store  Store
	Space  numbering.Space
	logger *logger.Logger
	now    func() time.Time
}

func NewService(store Store, space numbering.Space, log *logger.Logger) *Service {
	return &Service{
		Store:  store,
		Space:  space,
		logger: log,
		now:    time.Now,
	}
}

func (s *Service) validateInputs(prices []models.PriceTierInput, awarded []models.AwardedQuotaInput) error {
	if len(prices) == 0 {
		return fmt.Errorf("%w: at least one price tier is required", ErrInvalidInput)
	}
	for _, p := range prices {
		if p.Quantity < 1 {
			return fmt.Errorf("%w: tier quantity must be at least 1", ErrInvalidInput)
		}
		if p.Price <= 0 {
			return fmt.Errorf("%w: tier price must be positive", ErrInvalidInput)
		}
	}
	for _, a := range awarded {
		if a.ReferenceNumber < 1 || a.ReferenceNumber > s.Space.Max {
			return fmt.Errorf("%w: awarded number %d out of range", ErrInvalidInput, a.ReferenceNumber)
		}
	}
	return nil
}

// Create persists a new raffle with its price tiers, instant prizes and a
// default flags row.
func (s *Service) Create(ctx context.Context, req models.CreateRaffleRequest) (*models.Raffle, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if err := s.validateInputs(req.Prices, req.AwardedNumbers); err != nil {
		return nil, err
	}

	now := s.now()
	raffle := models.Raffle{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Description:   req.Description,
		ImagesURLs:    req.ImagesURLs,
		MinQuantity:   req.MinQuantity,
		MaxQuantity:   req.MaxQuantity,
		PreQuantities: req.PreQuantities,
		Active:        true,
		CreatedAt:     now,
	}
	if err := s.Store.CreateRaffle(ctx, raffle); err != nil {
		return nil, fmt.Errorf("persist raffle: %w", err)
	}

	prices := make([]models.RafflePrice, 0, len(req.Prices))
	for _, p := range req.Prices {
		prices = append(prices, models.RafflePrice{
			ID:        uuid.NewString(),
			RaffleID:  raffle.ID,
			Quantity:  p.Quantity,
			Price:     p.Price,
			Active:    true,
			CreatedAt: now,
		})
	}
	if err := s.Store.CreatePrices(ctx, prices); err != nil {
		return nil, fmt.Errorf("persist price tiers: %w", err)
	}

	awarded := make([]models.AwardedQuota, 0, len(req.AwardedNumbers))
	for _, a := range req.AwardedNumbers {
		awarded = append(awarded, models.AwardedQuota{
			ID:              uuid.NewString(),
			RaffleID:        raffle.ID,
			ReferenceNumber: a.ReferenceNumber,
			Gift:            a.Gift,
			Active:          true,
			CreatedAt:       now,
		})
	}
	if err := s.Store.CreateAwardedQuotas(ctx, awarded); err != nil {
		return nil, fmt.Errorf("persist awarded quotas: %w", err)
	}

	if err := s.Store.CreateFlags(ctx, models.RaffleFlags{ID: raffle.ID}); err != nil {
		return nil, fmt.Errorf("persist flags: %w", err)
	}

	s.logger.Info("RAFFLE", fmt.Sprintf("Created raffle %s (%s) with %d tier(s) and %d prize(s)", raffle.ID, raffle.Title, len(prices), len(awarded)))
	return &raffle, nil
}

// Update edits the raffle and reconciles its price tiers and prizes against
// the request: rows no longer present are deactivated, new ones inserted,
// matching ones left alone. Prizes already claimed by a sold quota survive the
// reconcile untouched.
func (s *Service) Update(ctx context.Context, raffleID string, req models.UpdateRaffleRequest) (*models.Raffle, error) {
	raffle, err := s.Store.GetRaffle(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("load raffle: %w", err)
	}
	if raffle == nil {
		return nil, ErrNotFound
	}
	if err := s.validateInputs(req.Prices, req.AwardedNumbers); err != nil {
		return nil, err
	}

	now := s.now()
	raffle.Title = req.Title
	raffle.Description = req.Description
	raffle.ImagesURLs = req.ImagesURLs
	raffle.MinQuantity = req.MinQuantity
	raffle.MaxQuantity = req.MaxQuantity
	raffle.PreQuantities = req.PreQuantities
	raffle.UpdatedAt = now
	if err := s.Store.UpdateRaffle(ctx, *raffle); err != nil {
		return nil, fmt.Errorf("update raffle: %w", err)
	}

	if err := s.reconcilePrices(ctx, raffleID, req.Prices, now); err != nil {
		return nil, err
	}
	if err := s.reconcileAwarded(ctx, raffleID, req.AwardedNumbers, now); err != nil {
		return nil, err
	}

	s.logger.Info("RAFFLE", fmt.Sprintf("Updated raffle %s", raffleID))
	return raffle, nil
}

func (s *Service) reconcilePrices(ctx context.Context, raffleID string, incoming []models.PriceTierInput, now time.Time) error {
	existing, err := s.Store.GetActivePrices(ctx, raffleID)
	if err != nil {
		return fmt.Errorf("load price tiers: %w", err)
	}

	// A tier is identified by its (quantity, price) pair.
	type tierKey struct {
		Quantity int
		Price    float64
	}
	wanted := make(map[tierKey]bool, len(incoming))
	for _, p := range incoming {
		wanted[tierKey{p.Quantity, p.Price}] = true
	}
	have := make(map[tierKey]bool, len(existing))
	var stale []string
	for _, p := range existing {
		key := tierKey{p.Quantity, p.Price}
		have[key] = true
		if !wanted[key] {
			stale = append(stale, p.ID)
		}
	}

	var fresh []models.RafflePrice
	for _, p := range incoming {
		if !have[tierKey{p.Quantity, p.Price}] {
			fresh = append(fresh, models.RafflePrice{
				ID:        uuid.NewString(),
				RaffleID:  raffleID,
				Quantity:  p.Quantity,
				Price:     p.Price,
				Active:    true,
				CreatedAt: now,
			})
		}
	}

	if err := s.Store.DeactivatePrices(ctx, stale); err != nil {
		return fmt.Errorf("deactivate price tiers: %w", err)
	}
	if err := s.Store.CreatePrices(ctx, fresh); err != nil {
		return fmt.Errorf("persist price tiers: %w", err)
	}
	return nil
}

func (s *Service) reconcileAwarded(ctx context.Context, raffleID string, incoming []models.AwardedQuotaInput, now time.Time) error {
	existing, err := s.Store.GetActiveAwardedQuotas(ctx, raffleID)
	if err != nil {
		return fmt.Errorf("load awarded quotas: %w", err)
	}

	wanted := make(map[int]bool, len(incoming))
	for _, a := range incoming {
		wanted[a.ReferenceNumber] = true
	}
	have := make(map[int]bool, len(existing))
	var stale []string
	for _, a := range existing {
		have[a.ReferenceNumber] = true
		if !wanted[a.ReferenceNumber] && a.UserID == "" {
			stale = append(stale, a.ID)
		}
	}

	var fresh []models.AwardedQuota
	for _, a := range incoming {
		if !have[a.ReferenceNumber] {
			fresh = append(fresh, models.AwardedQuota{
				ID:              uuid.NewString(),
				RaffleID:        raffleID,
				ReferenceNumber: a.ReferenceNumber,
				Gift:            a.Gift,
				Active:          true,
				CreatedAt:       now,
			})
		}
	}

	if err := s.Store.DeactivateAwardedQuotas(ctx, stale); err != nil {
		return fmt.Errorf("deactivate awarded quotas: %w", err)
	}
	if err := s.Store.CreateAwardedQuotas(ctx, fresh); err != nil {
		return fmt.Errorf("persist awarded quotas: %w", err)
	}
	return nil
}

// Get assembles the storefront read model: raffle, tiers, prizes, sold count,
// and whichever leaderboard blocks the flags enable.
func (s *Service) Get(ctx context.Context, raffleID string) (*models.RaffleDetail, error) {
	raffle, err := s.Store.GetRaffle(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("load raffle: %w", err)
	}
	if raffle == nil {
		return nil, ErrNotFound
	}

	detail := models.RaffleDetail{Raffle: *raffle}

	if detail.Prices, err = s.Store.GetActivePrices(ctx, raffleID); err != nil {
		return nil, fmt.Errorf("load price tiers: %w", err)
	}
	if detail.AwardedQuotas, err = s.Store.GetActiveAwardedQuotas(ctx, raffleID); err != nil {
		return nil, fmt.Errorf("load awarded quotas: %w", err)
	}
	if detail.QuotasSold, err = s.Store.CountQuotasSold(ctx, raffleID); err != nil {
		return nil, fmt.Errorf("count sold quotas: %w", err)
	}

	flags, err := s.Store.GetFlags(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}
	detail.Flags = flags
	if flags == nil {
		return &detail, nil
	}

	now := s.now()
	if flags.FlagTopBuyers {
		if detail.TopBuyers, err = s.Store.TopBuyers(ctx, raffleID, time.Time{}, topBuyersLimit); err != nil {
			return nil, fmt.Errorf("load top buyers: %w", err)
		}
	}
	if flags.FlagTopBuyersWeek {
		if detail.TopBuyersWeek, err = s.Store.TopBuyers(ctx, raffleID, now.AddDate(0, 0, -7), topBuyersLimit); err != nil {
			return nil, fmt.Errorf("load weekly top buyers: %w", err)
		}
	}
	if flags.FlagTopBuyersDay {
		if detail.TopBuyersDay, err = s.Store.TopBuyers(ctx, raffleID, now.AddDate(0, 0, -1), topBuyersLimit); err != nil {
			return nil, fmt.Errorf("load daily top buyers: %w", err)
		}
	}
	if flags.FlagHighestQuota {
		if detail.HighestQuota, err = s.Store.EdgeQuota(ctx, raffleID, true); err != nil {
			return nil, fmt.Errorf("load highest quota: %w", err)
		}
	}
	if flags.FlagLowestQuota {
		if detail.LowestQuota, err = s.Store.EdgeQuota(ctx, raffleID, false); err != nil {
			return nil, fmt.Errorf("load lowest quota: %w", err)
		}
	}

	return &detail, nil
}

func (s *Service) List(ctx context.Context) ([]models.Raffle, error) {
	return s.Store.ListRaffles(ctx)
}

// Draw closes the raffle on a winning number. The number must have been sold;
// drawing an unsold number is an operator mistake, not a lottery outcome.
func (s *Service) Draw(ctx context.Context, raffleID string, serialNumber int) (*models.QuotaOwner, error) {
	raffle, err := s.Store.GetRaffle(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("load raffle: %w", err)
	}
	if raffle == nil {
		return nil, ErrNotFound
	}
	if raffle.Status() == "finished" {
		return nil, ErrFinished
	}

	quota, err := s.Store.GetQuotaBySerial(ctx, raffleID, serialNumber)
	if err != nil {
		return nil, fmt.Errorf("load quota: %w", err)
	}
	if quota == nil {
		return nil, ErrQuotaNotSold
	}

	if err := s.Store.SetWinnerQuota(ctx, raffleID, quota.ID); err != nil {
		return nil, fmt.Errorf("bind winner quota: %w", err)
	}
	s.logger.Info("RAFFLE", fmt.Sprintf("Raffle %s drawn: winning number %d (quota %s)", raffleID, serialNumber, quota.ID))

	return s.Store.SearchQuotaOwner(ctx, raffleID, serialNumber)
}

// SetFlags replaces the raffle's leaderboard flags.
func (s *Service) SetFlags(ctx context.Context, raffleID string, flags models.RaffleFlags) error {
	raffle, err := s.Store.GetRaffle(ctx, raffleID)
	if err != nil {
		return fmt.Errorf("load raffle: %w", err)
	}
	if raffle == nil {
		return ErrNotFound
	}

	flags.ID = raffleID
	existing, err := s.Store.GetFlags(ctx, raffleID)
	if err != nil {
		return fmt.Errorf("load flags: %w", err)
	}
	if existing == nil {
		return s.Store.CreateFlags(ctx, flags)
	}
	return s.Store.UpdateFlags(ctx, flags)
}

// SearchQuota resolves who holds a serial number.
func (s *Service) SearchQuota(ctx context.Context, raffleID string, serialNumber int) (*models.QuotaOwner, error) {
	owner, err := s.Store.SearchQuotaOwner(ctx, raffleID, serialNumber)
	if err != nil {
		return nil, fmt.Errorf("search quota owner: %w", err)
	}
	if owner == nil {
		return nil, ErrQuotaNotSold
	}
	return owner, nil
}

// SoftDelete deactivates a raffle.
func (s *Service) SoftDelete(ctx context.Context, raffleID string) error {
	raffle, err := s.Store.GetRaffle(ctx, raffleID)
	if err != nil {
		return fmt.Errorf("load raffle: %w", err)
	}
	if raffle == nil {
		return ErrNotFound
	}
	if err := s.Store.SoftDeleteRaffle(ctx, raffleID); err != nil {
		return fmt.Errorf("soft delete raffle: %w", err)
	}
	s.logger.Info("RAFFLE", fmt.Sprintf("Raffle %s deactivated", raffleID))
	return nil
}
