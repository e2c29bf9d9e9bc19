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
	"time"

	"github.com/userbase/aimodhelp/internal/auditlog"
)

// dateFormat matches the forum's default "D M d, Y g:i a" display format.
const dateFormat = "Mon Jan 02, 2006 3:04 pm"

// Fetcher resolves posts and topic windows, enforcing existence and
// read-permission checks, and renders raw bodies through the markup
// renderer before handing records to the caller.
type Fetcher struct {
	store    Store
	renderer MarkupRenderer
	perms    PermissionChecker
	now      func() time.Time
}

// NewFetcher creates a content fetcher.
func NewFetcher(store Store, renderer MarkupRenderer, perms PermissionChecker) *Fetcher {
	return &Fetcher{
		store:    store,
		renderer: renderer,
		perms:    perms,
		now:      time.Now,
	}
}

// FetchPost resolves a single post for the given user.
// Returns ErrNotFound for non-positive or unknown ids and ErrForbidden
// when the user may not read the post's forum.
func (f *Fetcher) FetchPost(ctx context.Context, log *auditlog.Log, userID, postID int64) (*PostRecord, error) {
	if postID <= 0 {
		log.Appendf("Invalid post ID provided: %d", postID)
		return nil, ErrNotFound
	}

	log.Appendf("Attempting to fetch single post by ID: %d", postID)
	row, err := f.store.PostByID(ctx, postID)
	if err != nil {
		log.Appendf("Database error fetching post ID %d: %v", postID, err)
		return nil, fmt.Errorf("fetch post %d: %w", postID, err)
	}
	if row == nil {
		log.Appendf("Post not found for ID: %d", postID)
		return nil, ErrNotFound
	}

	if err := f.checkRead(ctx, log, userID, row.ForumID); err != nil {
		log.Appendf("No read permission for forum ID %d for post ID %d", row.ForumID, postID)
		return nil, err
	}

	rec := f.toRecord(*row)
	log.Appendf("Successfully fetched post ID: %d", postID)
	return &rec, nil
}

// FetchTopicWindow resolves a bounded window of a topic's posts.
// maxCount selects the most recent N posts (0 = unlimited); maxDays
// excludes posts older than N days (0 = no cutoff). The returned window
// is always chronologically ascending. An empty window is a valid result,
// not an error.
func (f *Fetcher) FetchTopicWindow(ctx context.Context, log *auditlog.Log, userID, topicID int64, maxCount, maxDays int) (*TopicWindow, error) {
	if topicID <= 0 {
		log.Appendf("Invalid topic ID provided: %d", topicID)
		return nil, ErrNotFound
	}

	info, err := f.store.TopicInfo(ctx, topicID)
	if err != nil {
		log.Appendf("Database error fetching forum ID for topic %d: %v", topicID, err)
		return nil, fmt.Errorf("resolve topic %d: %w", topicID, err)
	}
	if info == nil || info.ForumID == 0 {
		log.Appendf("Topic not found or no associated forum for topic ID: %d", topicID)
		return nil, ErrNotFound
	}

	if err := f.checkRead(ctx, log, userID, info.ForumID); err != nil {
		log.Appendf("No read permission for forum ID %d for topic ID %d", info.ForumID, topicID)
		return nil, err
	}

	q := TopicPostsQuery{
		TopicID:     topicID,
		ForumID:     info.ForumID,
		NewestFirst: maxCount > 0,
		Limit:       maxCount,
	}
	if maxDays > 0 {
		q.MinPostTime = f.now().Unix() - int64(maxDays)*86400
	}

	log.Appendf("Attempting to fetch topic posts for topic ID: %d (count: %d, days: %d)", topicID, maxCount, maxDays)
	rows, err := f.store.TopicPosts(ctx, q)
	if err != nil {
		log.Appendf("Database error fetching topic posts for topic ID %d: %v", topicID, err)
		return nil, fmt.Errorf("fetch topic %d posts: %w", topicID, err)
	}

	window := &TopicWindow{TopicID: topicID, TopicTitle: info.TopicTitle}

	if len(rows) == 0 {
		if info.Status == topicStatusMoved {
			log.Appendf("Topic ID %d is moved", topicID)
		} else {
			log.Appendf("No posts found for topic ID %d within specified constraints", topicID)
		}
		return window, nil
	}

	// The query selected the most recent N in descending order; present
	// them oldest-first.
	if q.NewestFirst {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}

	window.Posts = make([]PostRecord, 0, len(rows))
	for _, row := range rows {
		window.Posts = append(window.Posts, f.toRecord(row))
	}

	log.Appendf("Successfully fetched %d topic posts for topic ID: %d", len(window.Posts), topicID)
	return window, nil
}

func (f *Fetcher) checkRead(ctx context.Context, log *auditlog.Log, userID, forumID int64) error {
	if forumID == 0 {
		return ErrForbidden
	}
	ok, err := f.perms.CanReadForum(ctx, userID, forumID)
	if err != nil {
		log.Appendf("Permission check failed for forum ID %d: %v", forumID, err)
		return fmt.Errorf("check read permission on forum %d: %w", forumID, err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (f *Fetcher) toRecord(row PostRow) PostRecord {
	return PostRecord{
		PostID:            row.PostID,
		TopicID:           row.TopicID,
		ForumID:           row.ForumID,
		PosterID:          row.PosterID,
		Username:          row.Username,
		UserColour:        row.UserColour,
		Subject:           row.Subject,
		RawBody:           row.RawBody,
		RenderedBody:      f.renderer.Render(row.RawBody, row.BBCodeUID),
		PostedAt:          row.PostTime,
		PostedAtFormatted: time.Unix(row.PostTime, 0).UTC().Format(dateFormat),
		TopicTitle:        row.TopicTitle,
	}
}
