package irp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/agro-pos-api/pkg/secret"
)

// TokenCache guarda los tokens de sesión IRP por credenciales del comercio. Un token
// en caché lo comparten todas las peticiones de ese comercio hasta que vence.
type TokenCache interface {
	// Get devuelve "" si no hay nada utilizable en caché.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, token string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MemoryTokenCache es la caché por proceso que se usa sin Redis configurado.
type MemoryTokenCache struct {
	mu      sync.Mutex
	entries map[string]cachedToken
	now     func() time.Time
}

type cachedToken struct {
	token   string
	expires time.Time
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{entries: make(map[string]cachedToken), now: time.Now}
}

func (c *MemoryTokenCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		delete(c.entries, key)
		return "", nil
	}
	return e.token, nil
}

func (c *MemoryTokenCache) Set(_ context.Context, key, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedToken{token: token, expires: c.now().Add(ttl)}
	return nil
}

func (c *MemoryTokenCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// RedisTokenCache comparte tokens entre instancias de API y worker. Los tokens se
// sellan antes de salir del proceso.
type RedisTokenCache struct {
	rdb    redis.UniversalClient
	box    *secret.Box
	prefix string
}

func NewRedisTokenCache(rdb redis.UniversalClient, box *secret.Box) *RedisTokenCache {
	return &RedisTokenCache{rdb: rdb, box: box, prefix: "irp:token:"}
}

func (c *RedisTokenCache) Get(ctx context.Context, key string) (string, error) {
	sealed, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("token cache get: %w", err)
	}
	token, err := c.box.Open(sealed)
	if err != nil {
		// Sellado con otra clave; cuenta como ausente.
		return "", nil
	}
	return token, nil
}

func (c *RedisTokenCache) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	sealed, err := c.box.Seal(token)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, c.prefix+key, sealed, ttl).Err(); err != nil {
		return fmt.Errorf("token cache set: %w", err)
	}
	return nil
}

func (c *RedisTokenCache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("token cache delete: %w", err)
	}
	return nil
}
