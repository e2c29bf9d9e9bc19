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
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGResolver resolves sessions and permissions from the forum's
// PostgreSQL tables. Read-only.
type PGResolver struct {
	pool   *pgxpool.Pool
	prefix string
}

// NewPGResolver creates a resolver over the forum database. prefix is the
// forum's table prefix, e.g. "phpbb_".
func NewPGResolver(pool *pgxpool.Pool, prefix string) *PGResolver {
	return &PGResolver{pool: pool, prefix: prefix}
}

// Resolve looks up the session and the user behind it. Unknown sessions
// and the guest account resolve to Anonymous().
func (r *PGResolver) Resolve(ctx context.Context, sessionID string) (Caller, error) {
	if sessionID == "" {
		return Anonymous(), nil
	}

	var (
		userID   int64
		username string
	)
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT u.user_id, u.username
		FROM %[1]ssessions s
		JOIN %[1]susers u ON s.session_user_id = u.user_id
		WHERE s.session_id = $1
	`, r.prefix), sessionID)
	err := row.Scan(&userID, &username)
	if err == pgx.ErrNoRows {
		return Anonymous(), nil
	}
	if err != nil {
		return Caller{}, fmt.Errorf("resolve session: %w", err)
	}

	if userID <= 1 {
		return Anonymous(), nil
	}

	privileged, err := r.isPrivileged(ctx, userID)
	if err != nil {
		return Caller{}, fmt.Errorf("resolve privilege for user %d: %w", userID, err)
	}

	return Caller{
		UserID:     userID,
		Username:   username,
		Registered: true,
		Privileged: privileged,
	}, nil
}

// isPrivileged checks membership of the built-in administrator and global
// moderator groups. Finer-grained tiers (per-forum moderators) are not
// consulted; the assist endpoint treats privilege as a single tier.
func (r *PGResolver) isPrivileged(ctx context.Context, userID int64) (bool, error) {
	var n int
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %[1]suser_group ug
		JOIN %[1]sgroups g ON ug.group_id = g.group_id
		WHERE ug.user_id = $1
		  AND ug.user_pending = 0
		  AND g.group_name IN ('ADMINISTRATORS', 'GLOBAL_MODERATORS')
	`, r.prefix), userID)
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CanReadForum resolves the f_read permission for a user on a forum from
// the group ACL table. A "never" setting (0) on any of the user's groups
// overrides a grant. Role-indirected and per-user ACL entries are not
// expanded; deployments that rely on them should plug in their own
// checker.
func (r *PGResolver) CanReadForum(ctx context.Context, userID, forumID int64) (bool, error) {
	var min *int
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT MIN(a.auth_setting)
		FROM %[1]sacl_groups a
		JOIN %[1]suser_group ug ON a.group_id = ug.group_id
		JOIN %[1]sacl_options o ON a.auth_option_id = o.auth_option_id
		WHERE ug.user_id = $1
		  AND ug.user_pending = 0
		  AND a.forum_id IN (0, $2)
		  AND o.auth_option = 'f_read'
	`, r.prefix), userID, forumID)
	if err := row.Scan(&min); err != nil {
		return false, fmt.Errorf("resolve f_read for user %d forum %d: %w", userID, forumID, err)
	}
	return min != nil && *min == 1, nil
}
