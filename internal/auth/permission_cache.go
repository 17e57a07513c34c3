package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PermissionCache 权限缓存
type PermissionCache struct {
	cache *sync.Map
	ttl   time.Duration
}

// cacheEntry 缓存条目
type cacheEntry struct {
	value     bool
	expiresAt time.Time
}

// NewPermissionCache 创建权限缓存
func NewPermissionCache(ttl time.Duration) *PermissionCache {
	return &PermissionCache{
		cache: &sync.Map{},
		ttl:   ttl,
	}
}

// Get 获取缓存
func (c *PermissionCache) Get(key string) (bool, bool) {
	val, found := c.cache.Load(key)
	if !found {
		return false, false
	}

	entry := val.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.cache.Delete(key)
		return false, false
	}

	return entry.value, true
}

// Set 设置缓存
func (c *PermissionCache) Set(key string, value bool) {
	c.cache.Store(key, &cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete 删除缓存
func (c *PermissionCache) Delete(key string) {
	c.cache.Delete(key)
}

// Clear 清空缓存
func (c *PermissionCache) Clear() {
	c.cache.Range(func(key, value interface{}) bool {
		c.cache.Delete(key)
		return true
	})
}

// CachedChecker 带缓存的权限检查
type CachedChecker struct {
	checker PermissionChecker
	cache   *PermissionCache
}

// NewCachedChecker 创建带缓存的权限检查
func NewCachedChecker(checker PermissionChecker, cache *PermissionCache) *CachedChecker {
	return &CachedChecker{
		checker: checker,
		cache:   cache,
	}
}

// CacheKey 权限缓存键
func CacheKey(userID int64, relation, objectType, objectID string) string {
	return fmt.Sprintf("user:%d:%s:%s:%s", userID, relation, objectType, objectID)
}

// CheckPermission 检查权限,只缓存成功的检查结果
func (c *CachedChecker) CheckPermission(ctx context.Context, userID int64, relation, objectType, objectID string) (bool, error) {
	key := CacheKey(userID, relation, objectType, objectID)
	if value, found := c.cache.Get(key); found {
		return value, nil
	}

	allowed, err := c.checker.CheckPermission(ctx, userID, relation, objectType, objectID)
	if err != nil {
		return false, err
	}

	c.cache.Set(key, allowed)
	return allowed, nil
}
