package service

import (
	"context"
	"fmt"

	"github.com/elderquery/elderquery/internal/domain"
)

// APIKeyService reads and writes provider credentials through the active
// store. The moment an identity is bound, the remote row is authoritative and
// the local keys are ignored.
type APIKeyService struct {
	stores *StoreSelector
}

func NewAPIKeyService(stores *StoreSelector) *APIKeyService {
	return &APIKeyService{stores: stores}
}

func (s *APIKeyService) Keys(ctx context.Context) (domain.APIKeys, error) {
	st, owner := s.stores.Active()
	keys, err := st.GetAPIKeys(ctx, owner)
	if err != nil {
		return domain.APIKeys{}, fmt.Errorf("load api keys: %w", err)
	}
	return keys, nil
}

func (s *APIKeyService) SetKey(ctx context.Context, provider, key string) error {
	if !domain.ValidProvider(provider) {
		return domain.ErrUnknownProvider
	}
	st, owner := s.stores.Active()
	return st.SetAPIKey(ctx, owner, provider, key)
}

func (s *APIKeyService) ClearKey(ctx context.Context, provider string) error {
	if !domain.ValidProvider(provider) {
		return domain.ErrUnknownProvider
	}
	st, owner := s.stores.Active()
	return st.ClearAPIKey(ctx, owner, provider)
}

// Require fails with ErrMissingAPIKey unless every provider key is present.
// Called before any query work starts, so a missing key never costs a network
// round trip.
func (s *APIKeyService) Require(ctx context.Context) error {
	keys, err := s.Keys(ctx)
	if err != nil {
		return err
	}
	if !keys.HasAll() {
		return domain.ErrMissingAPIKey
	}
	return nil
}
