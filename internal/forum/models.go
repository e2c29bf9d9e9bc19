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

// Package forum resolves posts and topic windows from the forum database
// and renders them into the normalized HTML blob the evaluation pipeline
// sends to the model backend.
package forum

import "errors"

// Sentinel errors for content resolution. The orchestrator maps both to a
// 422 response without distinguishing them to the caller; the audit log
// carries the difference.
var (
	ErrNotFound  = errors.New("content not found")
	ErrForbidden = errors.New("no read permission")
)

// ContentShape tags whether a rendered blob came from a single post or a
// window of topic posts. Prompt wording branches on it.
type ContentShape string

const (
	ShapeSinglePost  ContentShape = "single_post"
	ShapeTopicWindow ContentShape = "topic_window"
)

// Content is one rendered markup blob ready for prompt assembly.
type Content struct {
	Body  string
	Shape ContentShape
}

// PostRecord is a fully resolved forum post. RenderedBody is always
// derived from RawBody via the markup renderer before the record leaves
// this package; callers never see a record with only raw content.
type PostRecord struct {
	PostID   int64
	TopicID  int64
	ForumID  int64
	PosterID int64

	Username   string
	UserColour string

	Subject      string
	RawBody      string
	RenderedBody string

	PostedAt          int64
	PostedAtFormatted string

	TopicTitle string
}

// TopicWindow is a chronologically ascending sequence of posts from one
// topic. A window with no posts is a valid value, not an error: the topic
// exists but nothing matched the count/day constraints.
type TopicWindow struct {
	TopicID    int64
	TopicTitle string
	Posts      []PostRecord
}

// PostRow is the raw storage row for a post joined with its author and
// parent topic.
type PostRow struct {
	PostID    int64
	TopicID   int64
	ForumID   int64
	PosterID  int64
	Subject   string
	RawBody   string
	BBCodeUID string
	PostTime  int64

	Username   string
	UserColour string
	TopicTitle string
}

// TopicInfo is the topic header row used for permission checks and for
// classifying empty query results.
type TopicInfo struct {
	TopicID    int64
	ForumID    int64
	Status     int
	TopicTitle string
}

// topicStatusMoved is the topic_status value of a "moved" shadow topic.
// Posts under moved topics are never part of a window.
const topicStatusMoved = 2
