package banlist

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	banCacheKeyPrefix      = "bgb"
	banRecordVersionV1     = 1
	banOriginByteManual    = 0
	banOriginByteAuto      = 1
	banCacheScanBatch      = 256
	banCacheCIDRIndexField = "cidr"
)

// RedisCache is the Redis-backed fast-path [Cache]. Entry keys carry a TTL
// matching the ban expiry, so the backend evicts expired bans on its own.
// CIDR keys are additionally tracked in an index set so Match can test
// containment without scanning the whole keyspace.
type RedisCache struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisCache creates a ban cache on redisClient. An empty prefix selects
// the default "bgb" namespace.
func NewRedisCache(redisClient redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = banCacheKeyPrefix
	}
	return &RedisCache{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

func (c *RedisCache) entryKey(key string) string {
	return c.prefix + ":e:" + key
}

func (c *RedisCache) cidrIndexKey() string {
	return c.prefix + ":" + banCacheCIDRIndexField
}

// Ping reports whether the cache backend is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Put writes the ban with a TTL equal to its remaining lifetime. Bans that
// already expired are not written.
func (c *RedisCache) Put(ctx context.Context, ban Ban) error {
	ttl := ban.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}

	encoded, err := encodeBanRecord(ban)
	if err != nil {
		return err
	}

	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, c.entryKey(ban.Key), encoded, ttl)
	if ban.IsCIDR() {
		pipe.SAdd(ctx, c.cidrIndexKey(), ban.Key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Get returns the cached ban for key, or nil when none is cached.
func (c *RedisCache) Get(ctx context.Context, key string) (*Ban, error) {
	data, err := c.redis.Get(ctx, c.entryKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	ban, err := decodeBanRecord(data)
	if err != nil {
		return nil, err
	}
	return ban, nil
}

// Delete removes the cached ban for key and reports whether an entry existed.
func (c *RedisCache) Delete(ctx context.Context, key string) (bool, error) {
	removed, err := c.redis.Del(ctx, c.entryKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if strings.Contains(key, "/") {
		if err := c.redis.SRem(ctx, c.cidrIndexKey(), key).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
		}
	}
	return removed > 0, nil
}

// Match reports whether ip is covered by a cached ban: an exact entry first,
// then containment against the CIDR index. Index members whose entry has
// expired are pruned lazily.
func (c *RedisCache) Match(ctx context.Context, ip string) (Match, error) {
	ban, err := c.Get(ctx, ip)
	if err != nil {
		return Match{}, err
	}
	if ban != nil && ban.Active(c.now()) {
		return Match{Banned: true, Reason: ban.Reason, ExpiresAt: ban.ExpiresAt}, nil
	}

	members, err := c.redis.SMembers(ctx, c.cidrIndexKey()).Result()
	if err != nil {
		return Match{}, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	for _, cidr := range members {
		if !Contains(cidr, ip) {
			continue
		}
		ban, err := c.Get(ctx, cidr)
		if err != nil {
			return Match{}, err
		}
		if ban == nil || !ban.Active(c.now()) {
			c.redis.SRem(ctx, c.cidrIndexKey(), cidr)
			continue
		}
		return Match{Banned: true, Reason: ban.Reason, ExpiresAt: ban.ExpiresAt}, nil
	}

	return Match{}, nil
}

// ActiveBans enumerates all cached bans via SCAN. Used by sync, never on the
// request path.
func (c *RedisCache) ActiveBans(ctx context.Context) ([]Ban, error) {
	pattern := c.prefix + ":e:*"
	now := c.now()

	var bans []Ban
	var cursor uint64
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, pattern, banCacheScanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
		}

		for _, k := range keys {
			data, err := c.redis.Get(ctx, k).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
			}
			ban, err := decodeBanRecord(data)
			if err != nil {
				return nil, err
			}
			if ban.Active(now) {
				bans = append(bans, *ban)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return bans, nil
}

func encodeBanRecord(ban Ban) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(banRecordVersionV1)
	switch ban.Origin {
	case OriginAuto:
		buf.WriteByte(banOriginByteAuto)
	default:
		buf.WriteByte(banOriginByteManual)
	}

	if err := binary.Write(&buf, binary.BigEndian, ban.BannedAt.Unix()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, ban.ExpiresAt.Unix()); err != nil {
		return nil, err
	}

	for _, field := range []string{ban.ID, ban.Key, ban.Reason, ban.Fingerprint, ban.UserAgent} {
		if len(field) > 65535 {
			return nil, errors.New("ban record field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodeBanRecord(data []byte) (*Ban, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != banRecordVersionV1 {
		return nil, errors.New("invalid ban record version")
	}

	originByte, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	ban := &Ban{Origin: OriginManual}
	if originByte == banOriginByteAuto {
		ban.Origin = OriginAuto
	}

	var bannedAt, expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &bannedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
		return nil, err
	}
	ban.BannedAt = time.Unix(bannedAt, 0).UTC()
	ban.ExpiresAt = time.Unix(expiresAt, 0).UTC()

	for _, field := range []*string{&ban.ID, &ban.Key, &ban.Reason, &ban.Fingerprint, &ban.UserAgent} {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}

	return ban, nil
}
