package banlist

import "context"

// Store is the durable, authoritative ban backend.
//
// Upsert has extend-only semantics: re-banning an existing key keeps the
// original BannedAt and the later of the two expiries, never shortens a ban.
type Store interface {
	Upsert(ctx context.Context, ban Ban) (Ban, error)
	Get(ctx context.Context, key string) (*Ban, error)
	Delete(ctx context.Context, key string) (bool, error)
	Match(ctx context.Context, ip string) (Match, error)
	ActiveBans(ctx context.Context) ([]Ban, error)
	DeleteExpired(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (Stats, error)
}

// Cache is the fast-path ban backend consulted on the hot request path.
// Entries expire on their own via backend TTLs; the cleanup job never touches
// the cache.
type Cache interface {
	Put(ctx context.Context, ban Ban) error
	Get(ctx context.Context, key string) (*Ban, error)
	Delete(ctx context.Context, key string) (bool, error)
	Match(ctx context.Context, ip string) (Match, error)
	ActiveBans(ctx context.Context) ([]Ban, error)
	Ping(ctx context.Context) error
}
