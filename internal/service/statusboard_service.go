package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"registration-service/internal/models"
	"registration-service/internal/util"

	"go.uber.org/zap"
)

// BoardStore is the read surface behind the admin status board.
type BoardStore interface {
	ListRegistrationRows(ctx context.Context) ([]models.RegistrationRow, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
}

// CountryCache caches the public country-metadata payload.
// *redisclient.Client satisfies it.
type CountryCache interface {
	GetCountries(ctx context.Context) ([]byte, error)
	SetCountries(ctx context.Context, payload []byte, ttl time.Duration) error
}

// StatusBoardData is the denormalized bundle the admin board filters
// client-side.
type StatusBoardData struct {
	Registrations []models.RegistrationRow `json:"registrations"`
	Groups        []models.Group           `json:"groups"`
	Countries     []models.Country         `json:"countries"`
}

// StatusBoardService assembles the admin status board: registrations joined
// with user and group, plus country reference metadata from a public API.
type StatusBoardService struct {
	store      BoardStore
	cache      CountryCache
	httpClient *http.Client
	apiURL     string
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewStatusBoardService creates a new status board service. The cache may
// be nil; the country API is then hit on every load.
func NewStatusBoardService(store BoardStore, cache CountryCache, apiURL string, cacheTTL time.Duration) *StatusBoardService {
	return &StatusBoardService{
		store:      store,
		cache:      cache,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     apiURL,
		cacheTTL:   cacheTTL,
		logger:     util.GetLogger(),
	}
}

// StatusBoard loads everything the board needs in one call
func (s *StatusBoardService) StatusBoard(ctx context.Context) (*StatusBoardData, error) {
	ctx, span := util.StartSpan(ctx, "StatusBoardService.StatusBoard")
	defer span.End()

	registrations, err := s.store.ListRegistrationRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}

	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	countries, err := s.countries(ctx)
	if err != nil {
		// Country metadata is decoration; the board still works without it.
		s.logger.Warn("Failed to load country metadata", zap.Error(err))
		countries = []models.Country{}
	}

	return &StatusBoardData{
		Registrations: registrations,
		Groups:        groups,
		Countries:     countries,
	}, nil
}

func (s *StatusBoardService) countries(ctx context.Context) ([]models.Country, error) {
	if s.cache != nil {
		if payload, err := s.cache.GetCountries(ctx); err == nil {
			var countries []models.Country
			if err := json.Unmarshal(payload, &countries); err == nil {
				return countries, nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("countries API returned status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var countries []models.Country
	if err := json.Unmarshal(payload, &countries); err != nil {
		return nil, fmt.Errorf("failed to decode countries payload: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetCountries(ctx, payload, s.cacheTTL); err != nil {
			s.logger.Warn("Failed to cache country metadata", zap.Error(err))
		}
	}
	return countries, nil
}
