package internal

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Authorizer 權限授予的外部協作者
type Authorizer interface {
	Grant(ctx context.Context, identity, capability string) error
	Revoke(ctx context.Context, identity, capability string) error
}

// CapabilityReader 查詢玩家目前持有的權限
type CapabilityReader interface {
	Capabilities(ctx context.Context, identity string) ([]string, error)
}

// MemoryAuthorizer 行程內的權限表
type MemoryAuthorizer struct {
	mu     sync.Mutex
	grants map[string]map[string]struct{}

	// 依序記錄的操作，格式為 "grant:<identity>:<capability>"
	log []string
}

// NewMemoryAuthorizer 建立行程內權限表
func NewMemoryAuthorizer() *MemoryAuthorizer {
	return &MemoryAuthorizer{
		grants: make(map[string]map[string]struct{}),
	}
}

// Grant 授予權限
func (a *MemoryAuthorizer) Grant(_ context.Context, identity, capability string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	set, ok := a.grants[identity]
	if !ok {
		set = make(map[string]struct{})
		a.grants[identity] = set
	}
	set[capability] = struct{}{}
	a.log = append(a.log, "grant:"+identity+":"+capability)
	return nil
}

// Revoke 撤銷權限
func (a *MemoryAuthorizer) Revoke(_ context.Context, identity, capability string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.grants[identity], capability)
	a.log = append(a.log, "revoke:"+identity+":"+capability)
	return nil
}

// Capabilities 返回排序後的權限
func (a *MemoryAuthorizer) Capabilities(_ context.Context, identity string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]string, 0, len(a.grants[identity]))
	for c := range a.grants[identity] {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// Operations 返回操作紀錄副本
func (a *MemoryAuthorizer) Operations() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.log)
}

// RedisAuthorizer 以 Redis Set 保存每位玩家的權限
//
// key: {prefix}:capabilities:{identity}
// SADD / SREM 皆為冪等操作，重複授予或撤銷不會改變結果。
type RedisAuthorizer struct {
	client *redis.Client
	prefix string
}

// NewRedisAuthorizer 建立 Redis 權限表
func NewRedisAuthorizer(client *redis.Client, prefix string) *RedisAuthorizer {
	return &RedisAuthorizer{
		client: client,
		prefix: prefix,
	}
}

func (a *RedisAuthorizer) key(identity string) string {
	return fmt.Sprintf("%s:capabilities:%s", a.prefix, identity)
}

// Grant 授予權限
func (a *RedisAuthorizer) Grant(ctx context.Context, identity, capability string) error {
	if err := a.client.SAdd(ctx, a.key(identity), capability).Err(); err != nil {
		return fmt.Errorf("grant %s: %w", capability, err)
	}
	return nil
}

// Revoke 撤銷權限
func (a *RedisAuthorizer) Revoke(ctx context.Context, identity, capability string) error {
	if err := a.client.SRem(ctx, a.key(identity), capability).Err(); err != nil {
		return fmt.Errorf("revoke %s: %w", capability, err)
	}
	return nil
}

// Capabilities 返回排序後的權限
func (a *RedisAuthorizer) Capabilities(ctx context.Context, identity string) ([]string, error) {
	members, err := a.client.SMembers(ctx, a.key(identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("list capabilities: %w", err)
	}
	sort.Strings(members)
	return members, nil
}

// Replace 以單一 MULTI/EXEC 管線撤銷與授予
func (a *RedisAuthorizer) Replace(ctx context.Context, identity string, revoke, grant []string) error {
	key := a.key(identity)
	_, err := a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, c := range revoke {
			pipe.SRem(ctx, key, c)
		}
		for _, c := range grant {
			pipe.SAdd(ctx, key, c)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace capabilities: %w", err)
	}
	return nil
}
