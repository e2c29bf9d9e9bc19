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

import "context"

// TopicPostsQuery describes one range scan over a topic's posts.
type TopicPostsQuery struct {
	TopicID int64
	ForumID int64

	// MinPostTime excludes posts older than this epoch second. Zero means
	// no age cutoff.
	MinPostTime int64

	// NewestFirst orders the scan by post_time descending. Used together
	// with Limit to select the most recent N posts; the fetcher re-sorts
	// the result ascending for presentation.
	NewestFirst bool

	// Limit caps the number of rows. Zero means no limit.
	Limit int
}

// Store reads posts and topics from the forum's data store. All methods
// return (nil, nil) or an empty slice when nothing matches; errors are
// reserved for storage failures.
type Store interface {
	PostByID(ctx context.Context, postID int64) (*PostRow, error)
	TopicInfo(ctx context.Context, topicID int64) (*TopicInfo, error)
	TopicPosts(ctx context.Context, q TopicPostsQuery) ([]PostRow, error)
}

// MarkupRenderer converts a raw post body (forum lightweight markup) into
// HTML. Production deployments plug in the forum's own renderer; this repo
// ships a minimal one in internal/markup.
type MarkupRenderer interface {
	Render(raw, bbcodeUID string) string
}

// PermissionChecker answers whether a user may read a forum. Implemented
// against the forum's ACL tables in internal/session.
type PermissionChecker interface {
	CanReadForum(ctx context.Context, userID, forumID int64) (bool, error)
}
