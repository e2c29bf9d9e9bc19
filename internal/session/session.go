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

// Package session resolves the calling user from the forum's session
// cookie and answers permission questions against the forum's ACL tables.
// Both lookups can be fronted by a short-TTL Redis cache.
package session

import "context"

// Caller is the resolved identity of one request's caller.
type Caller struct {
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	Registered bool   `json:"registered"`
	// Privileged means moderator or admin. Privileged callers may run
	// evaluation actions and receive the audit log in responses.
	Privileged bool `json:"privileged"`
}

// Anonymous is the caller used when no valid session is presented.
// User ID 1 is the forum's guest account.
func Anonymous() Caller {
	return Caller{UserID: 1, Username: "Anonymous"}
}

// Resolver turns a forum session ID into a Caller. An unknown or expired
// session resolves to Anonymous(), not an error.
type Resolver interface {
	Resolve(ctx context.Context, sessionID string) (Caller, error)
}
