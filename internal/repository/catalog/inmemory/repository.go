package inmemory

import (
	"context"
	"sync"

	"github.com/reelparty/server/internal/repository/catalog"
)

// repo is a static stand-in for the real content catalog. The engine only
// needs Resolve; everything else about the catalog lives outside the session
// engine.
type repo struct {
	mu    sync.RWMutex
	media map[string]catalog.Media
}

func NewRepo(seed ...catalog.Media) *repo {
	r := &repo{media: make(map[string]catalog.Media, len(seed))}
	for _, m := range seed {
		r.media[m.Id] = m
	}

	return r
}

func (r *repo) Register(m catalog.Media) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.media[m.Id] = m
}

func (r *repo) Resolve(_ context.Context, mediaRef string) (catalog.Media, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.media[mediaRef]
	if !ok {
		return catalog.Media{}, catalog.ErrMediaNotFound
	}

	return m, nil
}
