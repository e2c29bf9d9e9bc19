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

package forum

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore reads posts and topics from the forum's PostgreSQL database.
// All access is read-only; the service never mutates forum content.
type PGStore struct {
	pool   *pgxpool.Pool
	prefix string
}

// NewPGStore creates a store over the given pool. prefix is the forum's
// table prefix, e.g. "phpbb_".
func NewPGStore(pool *pgxpool.Pool, prefix string) *PGStore {
	return &PGStore{pool: pool, prefix: prefix}
}

// PostByID retrieves one post joined with its author and parent topic.
// Returns (nil, nil) when the post does not exist.
func (s *PGStore) PostByID(ctx context.Context, postID int64) (*PostRow, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT p.post_id, p.topic_id, p.forum_id, p.poster_id,
		       p.post_subject, p.post_text, p.bbcode_uid, p.post_time,
		       COALESCE(u.username, ''), COALESCE(u.user_colour, ''),
		       COALESCE(t.topic_title, '')
		FROM %[1]sposts p
		LEFT JOIN %[1]susers u ON p.poster_id = u.user_id
		LEFT JOIN %[1]stopics t ON p.topic_id = t.topic_id
		WHERE p.post_id = $1
	`, s.prefix), postID)
	return scanPostRow(row)
}

// TopicInfo retrieves the topic header row. Returns (nil, nil) when the
// topic does not exist.
func (s *PGStore) TopicInfo(ctx context.Context, topicID int64) (*TopicInfo, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT topic_id, forum_id, topic_status, topic_title
		FROM %stopics
		WHERE topic_id = $1
	`, s.prefix), topicID)

	var info TopicInfo
	err := row.Scan(&info.TopicID, &info.ForumID, &info.Status, &info.TopicTitle)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// TopicPosts runs a range scan over one topic's posts, excluding posts
// under moved topics, with optional age cutoff, ordering, and limit.
func (s *PGStore) TopicPosts(ctx context.Context, q TopicPostsQuery) ([]PostRow, error) {
	sql := fmt.Sprintf(`
		SELECT p.post_id, p.topic_id, p.forum_id, p.poster_id,
		       p.post_subject, p.post_text, p.bbcode_uid, p.post_time,
		       COALESCE(u.username, ''), COALESCE(u.user_colour, ''),
		       COALESCE(t.topic_title, '')
		FROM %[1]sposts p
		LEFT JOIN %[1]susers u ON p.poster_id = u.user_id
		LEFT JOIN %[1]stopics t ON p.topic_id = t.topic_id
		WHERE p.topic_id = $1 AND t.forum_id = $2 AND t.topic_status <> %[2]d
	`, s.prefix, topicStatusMoved)

	args := []any{q.TopicID, q.ForumID}
	if q.MinPostTime > 0 {
		args = append(args, q.MinPostTime)
		sql += fmt.Sprintf(" AND p.post_time >= $%d", len(args))
	}

	if q.NewestFirst {
		sql += " ORDER BY p.post_time DESC"
	} else {
		sql += " ORDER BY p.post_time ASC"
	}
	if q.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []PostRow
	for rows.Next() {
		var p PostRow
		if err := rows.Scan(
			&p.PostID, &p.TopicID, &p.ForumID, &p.PosterID,
			&p.Subject, &p.RawBody, &p.BBCodeUID, &p.PostTime,
			&p.Username, &p.UserColour, &p.TopicTitle,
		); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func scanPostRow(row pgx.Row) (*PostRow, error) {
	var p PostRow
	err := row.Scan(
		&p.PostID, &p.TopicID, &p.ForumID, &p.PosterID,
		&p.Subject, &p.RawBody, &p.BBCodeUID, &p.PostTime,
		&p.Username, &p.UserColour, &p.TopicTitle,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
