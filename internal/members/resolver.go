// Package members resolves member display profiles for rendering chat
// payloads. Identity and authentication live upstream; this is lookup only.
package members

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/swapmeet-dev/swapmeet/internal/models"
)

// Source is where profiles actually live.
type Source interface {
	GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error)
}

// Resolver caches profiles in front of the store. Profiles change rarely
// and a stale nickname in a broadcast payload is harmless, so entries are
// evicted by capacity only.
type Resolver struct {
	source Source
	cache  *lru.Cache[uuid.UUID, *models.Member]
}

func NewResolver(source Source, size int) (*Resolver, error) {
	cache, err := lru.New[uuid.UUID, *models.Member](size)
	if err != nil {
		return nil, fmt.Errorf("profile cache: %w", err)
	}
	return &Resolver{source: source, cache: cache}, nil
}

// Resolve returns the member's display profile, or (nil, nil) for unknown
// members.
func (r *Resolver) Resolve(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	if member, ok := r.cache.Get(id); ok {
		return member, nil
	}

	member, err := r.source.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if member != nil {
		r.cache.Add(id, member)
	}
	return member, nil
}
