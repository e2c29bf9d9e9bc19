// Copyright (c) 2026 Userbase
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/userbase/aimodhelp/internal/forum"
)

const (
	// cacheTTL is short on purpose: permission or group changes on the
	// forum must take effect within seconds, and a browser firing a burst
	// of assist calls is the only load worth absorbing.
	cacheTTL = 30 * time.Second

	sessKeyPrefix = "aimod:sess:"
	aclKeyPrefix  = "aimod:acl:"
)

// CachedResolver fronts a Resolver with a Redis cache. Redis failures are
// logged and fall through to the inner resolver, never to the caller.
type CachedResolver struct {
	inner Resolver
	rdb   *redis.Client
}

// NewCachedResolver wraps a resolver with a Redis cache.
func NewCachedResolver(inner Resolver, rdb *redis.Client) *CachedResolver {
	return &CachedResolver{inner: inner, rdb: rdb}
}

// Resolve returns the cached caller when present, otherwise resolves via
// the inner resolver and caches the result.
func (c *CachedResolver) Resolve(ctx context.Context, sessionID string) (Caller, error) {
	if sessionID == "" {
		return Anonymous(), nil
	}

	key := sessKeyPrefix + sessionID
	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var caller Caller
		if err := json.Unmarshal(data, &caller); err == nil {
			return caller, nil
		}
	} else if err != redis.Nil {
		slog.Warn("session cache read failed", "error", err)
	}

	caller, err := c.inner.Resolve(ctx, sessionID)
	if err != nil {
		return Caller{}, err
	}

	if data, err := json.Marshal(caller); err == nil {
		if err := c.rdb.Set(ctx, key, data, cacheTTL).Err(); err != nil {
			slog.Warn("session cache write failed", "error", err)
		}
	}
	return caller, nil
}

// CachedPermissions fronts a forum.PermissionChecker with a Redis cache.
type CachedPermissions struct {
	inner forum.PermissionChecker
	rdb   *redis.Client
}

// NewCachedPermissions wraps a permission checker with a Redis cache.
func NewCachedPermissions(inner forum.PermissionChecker, rdb *redis.Client) *CachedPermissions {
	return &CachedPermissions{inner: inner, rdb: rdb}
}

// CanReadForum returns the cached answer when present, otherwise asks the
// inner checker and caches the result.
func (c *CachedPermissions) CanReadForum(ctx context.Context, userID, forumID int64) (bool, error) {
	key := fmt.Sprintf("%s%d:%d", aclKeyPrefix, userID, forumID)
	if val, err := c.rdb.Get(ctx, key).Result(); err == nil {
		return val == "1", nil
	} else if err != redis.Nil {
		slog.Warn("permission cache read failed", "error", err)
	}

	ok, err := c.inner.CanReadForum(ctx, userID, forumID)
	if err != nil {
		return false, err
	}

	val := "0"
	if ok {
		val = "1"
	}
	if err := c.rdb.Set(ctx, key, val, cacheTTL).Err(); err != nil {
		slog.Warn("permission cache write failed", "error", err)
	}
	return ok, nil
}
