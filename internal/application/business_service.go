package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/cleanbook/internal/persistence"
)

// BusinessAccount is a tenant as exposed to transport and callers. The
// API key hash never leaves the application layer.
type BusinessAccount struct {
	ID        string
	Name      string
	Industry  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateBusinessParams wraps the data required to register a tenant.
// APIKey is the plaintext secret; only its hash is stored.
type CreateBusinessParams struct {
	ID       string
	Name     string
	Industry string
	APIKey   string
}

// FrequencyEntry is one catalog row mapping a display label to a repeat
// unit, e.g. "Every Other Week" to "14 days".
type FrequencyEntry struct {
	Name    string
	Repeats string
}

// BusinessService manages tenant accounts, their API keys and their
// frequency catalogs.
type BusinessService struct {
	businesses  persistence.BusinessRepository
	frequencies persistence.FrequencyRepository
	idGenerator func() string
	now         func() time.Time
	hashParams  Argon2idParams
	logger      *slog.Logger
}

// NewBusinessService wires dependencies for tenant operations.
func NewBusinessService(businesses persistence.BusinessRepository, frequencies persistence.FrequencyRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BusinessService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BusinessService{
		businesses:  businesses,
		frequencies: frequencies,
		idGenerator: idGenerator,
		now:         now,
		hashParams:  DefaultArgon2idParams,
		logger:      defaultLogger(logger),
	}
}

// CreateBusiness registers a tenant and stores the hash of its API key.
func (s *BusinessService) CreateBusiness(ctx context.Context, params CreateBusinessParams) (BusinessAccount, error) {
	if s == nil || s.businesses == nil {
		return BusinessAccount{}, fmt.Errorf("business repository not configured")
	}

	vErr := &ValidationError{}
	if strings.TrimSpace(params.Name) == "" {
		vErr.add("name", "business name is required")
	}
	if strings.TrimSpace(params.APIKey) == "" {
		vErr.add("api_key", "an api key is required")
	}
	if strings.Contains(params.ID, ".") {
		vErr.add("id", "business id must not contain dots")
	}
	if vErr.HasErrors() {
		return BusinessAccount{}, vErr
	}

	hash, err := CreateAPIKeyHash(params.APIKey, s.hashParams)
	if err != nil {
		return BusinessAccount{}, err
	}

	id := strings.TrimSpace(params.ID)
	if id == "" {
		id = s.idGenerator()
	}

	now := s.now()
	record := persistence.Business{
		ID:         id,
		Name:       strings.TrimSpace(params.Name),
		Industry:   strings.TrimSpace(params.Industry),
		APIKeyHash: hash,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.businesses.CreateBusiness(ctx, record); err != nil {
		return BusinessAccount{}, mapRepoError(err)
	}

	serviceLogger(ctx, s.logger, "business", "create", "business_id", id).
		InfoContext(ctx, "business registered")
	return toBusinessAccount(record), nil
}

// Authenticate resolves an API key of the form "<business-id>.<secret>"
// to the tenant it belongs to. Unknown ids and bad secrets are both
// reported as ErrUnauthorized so probing cannot tell them apart.
func (s *BusinessService) Authenticate(ctx context.Context, apiKey string) (BusinessAccount, error) {
	if s == nil || s.businesses == nil {
		return BusinessAccount{}, fmt.Errorf("business repository not configured")
	}

	businessID, secret, ok := strings.Cut(strings.TrimSpace(apiKey), ".")
	if !ok || businessID == "" || secret == "" {
		return BusinessAccount{}, ErrUnauthorized
	}

	record, err := s.businesses.GetBusiness(ctx, businessID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return BusinessAccount{}, ErrUnauthorized
		}
		return BusinessAccount{}, mapRepoError(err)
	}

	if err := VerifyAPIKey(record.APIKeyHash, secret); err != nil {
		serviceLogger(ctx, s.logger, "business", "authenticate", "business_id", businessID).
			WarnContext(ctx, "api key rejected")
		return BusinessAccount{}, ErrUnauthorized
	}
	return toBusinessAccount(record), nil
}

// SetFrequencies replaces catalog entries for a business. Existing
// labels are overwritten; labels not mentioned are untouched.
func (s *BusinessService) SetFrequencies(ctx context.Context, businessID string, entries []FrequencyEntry) error {
	if s == nil || s.frequencies == nil {
		return fmt.Errorf("frequency repository not configured")
	}

	for i, entry := range entries {
		if strings.TrimSpace(entry.Name) == "" || strings.TrimSpace(entry.Repeats) == "" {
			vErr := &ValidationError{}
			vErr.add("frequencies", "each entry needs a name and a repeat unit")
			return vErr
		}
		record := persistence.BusinessFrequency{
			ID:         s.idGenerator(),
			BusinessID: businessID,
			Name:       strings.TrimSpace(entry.Name),
			Repeats:    strings.TrimSpace(entry.Repeats),
			SortOrder:  i,
		}
		if err := s.frequencies.UpsertFrequency(ctx, record); err != nil {
			return mapRepoError(err)
		}
	}
	return nil
}

// ListFrequencies returns the catalog of a business in sort order.
func (s *BusinessService) ListFrequencies(ctx context.Context, businessID string) ([]FrequencyEntry, error) {
	if s == nil || s.frequencies == nil {
		return nil, fmt.Errorf("frequency repository not configured")
	}
	records, err := s.frequencies.ListFrequenciesForBusiness(ctx, businessID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	entries := make([]FrequencyEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, FrequencyEntry{Name: record.Name, Repeats: record.Repeats})
	}
	return entries, nil
}

// EnsureBusiness creates the tenant if it does not exist yet. Used to
// seed a bootstrap tenant on startup; an existing record is left alone
// so restarts do not rotate its key.
func (s *BusinessService) EnsureBusiness(ctx context.Context, params CreateBusinessParams) (BusinessAccount, error) {
	account, err := s.CreateBusiness(ctx, params)
	if errors.Is(err, ErrAlreadyExists) {
		record, getErr := s.businesses.GetBusiness(ctx, params.ID)
		if getErr != nil {
			return BusinessAccount{}, mapRepoError(getErr)
		}
		return toBusinessAccount(record), nil
	}
	return account, err
}

func toBusinessAccount(record persistence.Business) BusinessAccount {
	return BusinessAccount{
		ID:        record.ID,
		Name:      record.Name,
		Industry:  record.Industry,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}
