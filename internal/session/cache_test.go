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
	"testing"

	"github.com/redis/go-redis/v9"
)

// unreachableRedis returns a client whose every command fails fast, to
// exercise the fail-open paths without a Redis instance.
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:       "127.0.0.1:1",
		MaxRetries: -1,
	})
}

type staticResolver struct {
	caller Caller
	calls  int
}

func (s *staticResolver) Resolve(_ context.Context, _ string) (Caller, error) {
	s.calls++
	return s.caller, nil
}

func TestCachedResolverFailsOpen(t *testing.T) {
	inner := &staticResolver{caller: Caller{UserID: 42, Username: "mod", Registered: true, Privileged: true}}
	c := NewCachedResolver(inner, unreachableRedis())

	caller, err := c.Resolve(context.Background(), "sid-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if caller.UserID != 42 || !caller.Privileged {
		t.Errorf("caller = %+v", caller)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}

func TestCachedResolverEmptySessionIsAnonymous(t *testing.T) {
	inner := &staticResolver{caller: Caller{UserID: 42, Registered: true}}
	c := NewCachedResolver(inner, unreachableRedis())

	caller, err := c.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if caller.Registered {
		t.Errorf("empty session must resolve anonymous, got %+v", caller)
	}
	if inner.calls != 0 {
		t.Errorf("inner resolver should not be consulted for empty session")
	}
}

type staticPerms struct {
	allow bool
	calls int
}

func (s *staticPerms) CanReadForum(_ context.Context, _, _ int64) (bool, error) {
	s.calls++
	return s.allow, nil
}

func TestCachedPermissionsFailsOpen(t *testing.T) {
	inner := &staticPerms{allow: true}
	c := NewCachedPermissions(inner, unreachableRedis())

	ok, err := c.CanReadForum(context.Background(), 42, 7)
	if err != nil {
		t.Fatalf("CanReadForum: %v", err)
	}
	if !ok {
		t.Error("expected allow from inner checker")
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}
