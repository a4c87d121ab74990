package hub

import (
	"fmt"

	"github.com/edvart/cardhub/internal/herr"
	"github.com/edvart/cardhub/internal/store"
)

// RankEntry is one row of a get_ranking reply.
type RankEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Rate int    `json:"rate"`
}

const (
	rankingMinLimit     = 10
	rankingMaxLimit     = 100
	rankingDefaultLimit = 10
)

// handleGetRanking returns the top 10-100 users by rate (§6);
// unauthenticated.
func (h *Hub) handleGetRanking(c GetRanking) (any, error) {
	limit := c.Limit
	switch {
	case limit <= 0:
		limit = rankingDefaultLimit
	case limit < rankingMinLimit:
		limit = rankingMinLimit
	case limit > rankingMaxLimit:
		limit = rankingMaxLimit
	}

	users, err := store.Retry(func() ([]store.User, error) { return h.store.TopByRating(h.ctx, limit) })
	if err != nil {
		return nil, fmt.Errorf("%w: %v", herr.Transient, err)
	}

	entries := make([]RankEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, RankEntry{ID: u.ID, Name: u.Name, Rate: u.Rate})
	}
	return entries, nil
}
