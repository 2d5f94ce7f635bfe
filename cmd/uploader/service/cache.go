package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clipdeck/uploader/cmd/uploader/repository"
	"github.com/clipdeck/uploader/common/models"
)

// ListCache is the slice of the Redis client the listing cache needs.
type ListCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetWithExpiry(ctx context.Context, key, value string, expiry time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

func listingCacheKey(q repository.ListQuery) string {
	fileType := "all"
	if q.FileType != nil {
		fileType = string(*q.FileType)
	}
	return fmt.Sprintf("%s%d:%d:%s", listingCachePrefix(q.OwnerID), q.Page, q.Limit, fileType)
}

func listingCachePrefix(ownerID string) string {
	return fmt.Sprintf("files:%s:", ownerID)
}

// cachedListing returns a cached page when present. Cache failures are
// logged and treated as misses.
func (s *SessionService) cachedListing(ctx context.Context, q repository.ListQuery) (*models.FileListing, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, ok, err := s.cache.Get(ctx, listingCacheKey(q))
	if err != nil || !ok {
		return nil, false
	}

	var listing models.FileListing
	if err := json.Unmarshal([]byte(raw), &listing); err != nil {
		s.log.Warn("failed to decode cached listing", "owner_id", q.OwnerID, "error", err)
		return nil, false
	}

	return &listing, true
}

func (s *SessionService) storeListing(ctx context.Context, q repository.ListQuery, listing *models.FileListing) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(listing)
	if err != nil {
		s.log.Warn("failed to encode listing for cache", "owner_id", q.OwnerID, "error", err)
		return
	}

	if err := s.cache.SetWithExpiry(ctx, listingCacheKey(q), string(raw), s.listTTL); err != nil {
		s.log.Warn("failed to cache listing", "owner_id", q.OwnerID, "error", err)
	}
}

// invalidateListings drops every cached page for an owner after a
// status transition or delete.
func (s *SessionService) invalidateListings(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}

	if err := s.cache.DeleteByPrefix(ctx, listingCachePrefix(ownerID)); err != nil {
		s.log.Warn("failed to invalidate listing cache", "owner_id", ownerID, "error", err)
	}
}
