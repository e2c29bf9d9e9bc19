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

// Package api implements the assist endpoint: it authenticates the
// caller, authorizes the requested action, resolves forum content,
// dispatches to the evaluation service, and emits exactly one JSON
// envelope per request no matter which stage fails.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/userbase/aimodhelp/internal/auditlog"
	"github.com/userbase/aimodhelp/internal/evaluate"
	"github.com/userbase/aimodhelp/internal/forum"
	"github.com/userbase/aimodhelp/internal/session"
)

// Supported actions. Anything else falls through to the lenient
// unknown-action path.
const (
	ActionEvaluateGeneral     = "evaluate_general"
	ActionEvaluateMarketplace = "evaluate_marketplace"
	ActionSummarize           = "summarize"
)

// previewLimit caps the content preview returned for unknown actions.
const previewLimit = 200

// ContentFetcher is the slice of the forum fetcher the handler needs.
type ContentFetcher interface {
	FetchPost(ctx context.Context, log *auditlog.Log, userID, postID int64) (*forum.PostRecord, error)
	FetchTopicWindow(ctx context.Context, log *auditlog.Log, userID, topicID int64, maxCount, maxDays int) (*forum.TopicWindow, error)
}

// Evaluator is the slice of the evaluation service the handler needs.
type Evaluator interface {
	EvaluateGeneral(ctx context.Context, log *auditlog.Log, content forum.Content, out evaluate.OutputFormat) evaluate.Result
	EvaluateMarketplace(ctx context.Context, log *auditlog.Log, content forum.Content, out evaluate.OutputFormat) evaluate.Result
	Summarize(ctx context.Context, log *auditlog.Log, content forum.Content) evaluate.Result
}

// Handler orchestrates one assist request from parse to response.
type Handler struct {
	sessions      session.Resolver
	fetcher       ContentFetcher
	eval          Evaluator
	cookieName    string
	maxTopicPosts int

	// marshal is swapped in tests to exercise the serialization
	// fallback cascade.
	marshal func(any) ([]byte, error)
}

// NewHandler creates the assist handler. cookieName is the forum's cookie
// base name; maxTopicPosts is the window ceiling for non-privileged
// callers.
func NewHandler(sessions session.Resolver, fetcher ContentFetcher, eval Evaluator, cookieName string, maxTopicPosts int) *Handler {
	return &Handler{
		sessions:      sessions,
		fetcher:       fetcher,
		eval:          eval,
		cookieName:    cookieName,
		maxTopicPosts: maxTopicPosts,
		marshal:       json.Marshal,
	}
}

// envelope is the single JSON object returned per request. "log" carries
// the audit trail on success envelopes for privileged callers; "logs"
// carries it on error envelopes.
type envelope struct {
	Status  string `json:"status,omitempty"`
	Action  string `json:"action,omitempty"`
	Type    string `json:"type,omitempty"`
	PostID  int64  `json:"post_id,omitempty"`
	TopicID int64  `json:"topic_id,omitempty"`
	Count   int    `json:"count,omitempty"`
	Days    int    `json:"days,omitempty"`

	Evaluation     *evaluate.Result `json:"evaluation,omitempty"`
	Summary        *evaluate.Result `json:"summary,omitempty"`
	ContentPreview string           `json:"content_preview,omitempty"`

	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	Log  []string `json:"log,omitempty"`
	Logs []string `json:"logs,omitempty"`
}

// actionRequest is the parsed inbound request, normalized from the three
// accepted input shapes.
type actionRequest struct {
	Action     string
	PostID     int64
	TopicID    int64
	Count      int
	Days       int
	OutputType string

	// empty reports that no usable fields were found at all.
	empty bool
}

// ServeAssist handles one assist request. Exactly one response is written
// on every path, including panics.
func (h *Handler) ServeAssist(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	log := auditlog.New(requestID)
	w.Header().Set("X-Request-ID", requestID)

	rw := &onceWriter{w: w}
	defer func() {
		if rec := recover(); rec != nil {
			log.Appendf("Unhandled fault: %v", rec)
			h.write(rw, log, http.StatusInternalServerError, envelope{
				Status: "error",
				Error:  fmt.Sprintf("internal fault: %v", rec),
				Logs:   log.Lines(),
			})
		}
	}()

	h.handle(rw, r, log)
}

func (h *Handler) handle(rw *onceWriter, r *http.Request, log *auditlog.Log) {
	ctx := r.Context()

	// Establish the caller's identity first; every later gate needs it.
	caller, err := h.sessions.Resolve(ctx, h.sessionID(r))
	if err != nil {
		log.Appendf("Session resolution failed: %v", err)
		h.write(rw, log, http.StatusInternalServerError, envelope{
			Status: "error",
			Error:  "Failed to resolve caller session.",
			Logs:   log.Lines(),
		})
		return
	}
	log.Appendf("Session management complete. User ID: %d", caller.UserID)

	req := h.parseRequest(r, log)

	// Anonymous users may never request content by ID, not even for
	// actions they could otherwise run.
	if (req.PostID > 0 || req.TopicID > 0) && !caller.Registered {
		log.Append("User not registered and content requested. Access denied.")
		h.write(rw, log, http.StatusUnauthorized, envelope{
			Error: "You must be logged in to view this content.",
			Logs:  log.Lines(),
		})
		return
	}
	log.Append("User is registered or no content requested, proceeding.")

	if req.empty {
		log.Append("No request data received. Exiting.")
		h.write(rw, log, http.StatusBadRequest, envelope{
			Error: "No POST data received",
			Logs:  log.Lines(),
		})
		return
	}

	if req.Action == "" {
		log.Append("Missing action parameter. Exiting.")
		h.write(rw, log, http.StatusBadRequest, envelope{
			Error: "Missing action parameter",
			Logs:  log.Lines(),
		})
		return
	}
	log.Appendf("Action parameter found: %s", req.Action)

	// Non-privileged callers get exactly one action.
	if !caller.Privileged {
		if req.Action != ActionSummarize {
			log.Appendf("User (ID: %d) lacks moderator/admin permissions for action: %s. Access denied.", caller.UserID, req.Action)
			h.write(rw, log, http.StatusForbidden, envelope{
				Error: `You do not have sufficient permissions to perform this action. Only "summarize" is allowed for non-moderators/admins.`,
				Logs:  log.Lines(),
			})
			return
		}
		log.Appendf("User (ID: %d) is not moderator/admin but action is 'summarize', proceeding.", caller.UserID)
	} else {
		log.Appendf("User (ID: %d) has moderator/admin permissions. All actions allowed.", caller.UserID)
	}

	resp := envelope{Status: "success", Action: req.Action}

	var content forum.Content
	switch {
	case req.PostID > 0:
		rec, err := h.fetcher.FetchPost(ctx, log, caller.UserID, req.PostID)
		if err != nil {
			log.Appendf("Failed to retrieve post content or no permission for post ID: %d", req.PostID)
			h.write(rw, log, http.StatusUnprocessableEntity, envelope{
				Status:  "error",
				Message: "Failed to retrieve the post content, or permission was denied.",
				Logs:    log.Lines(),
			})
			return
		}
		log.Appendf("Successfully fetched post ID: %d. Formatting for LLM.", req.PostID)
		content = forum.Content{
			Body:  forum.RenderForModel([]forum.PostRecord{*rec}, rec.TopicTitle),
			Shape: forum.ShapeSinglePost,
		}
		resp.Type = "single_post"
		resp.PostID = req.PostID

	case req.TopicID > 0:
		count, days := req.Count, req.Days
		if !caller.Privileged && (count <= 0 || count > h.maxTopicPosts) {
			count = h.maxTopicPosts
			log.Appendf("Non-moderator/admin user: count parameter adjusted to max allowed: %d", count)
		}

		win, err := h.fetcher.FetchTopicWindow(ctx, log, caller.UserID, req.TopicID, count, days)
		if err != nil {
			log.Appendf("Failed to retrieve topic content or no permission for topic ID: %d", req.TopicID)
			h.write(rw, log, http.StatusUnprocessableEntity, envelope{
				Status:  "error",
				Message: "Failed to retrieve the topic content, or permission was denied.",
				Logs:    log.Lines(),
			})
			return
		}

		if len(win.Posts) == 0 {
			// The request was valid; there was simply nothing to process.
			log.Appendf("No posts found for topic ID: %d within specified constraints. Exiting.", req.TopicID)
			h.write(rw, log, http.StatusBadRequest, envelope{
				Status:  "success",
				Message: "No posts were found matching the given conditions.",
				Logs:    log.Lines(),
			})
			return
		}

		log.Appendf("Successfully fetched topic posts for topic ID: %d. Formatting for LLM.", req.TopicID)
		content = forum.Content{
			Body:  forum.RenderForModel(win.Posts, win.TopicTitle),
			Shape: forum.ShapeTopicWindow,
		}
		resp.Type = "topic_posts"
		resp.TopicID = req.TopicID
		if count > 0 {
			resp.Count = count
		}
		if days > 0 {
			resp.Days = days
		}

	default:
		log.Append("Missing post_id or topic_id parameter. Exiting.")
		h.write(rw, log, http.StatusBadRequest, envelope{
			Error: "Missing post_id or topic_id parameter",
			Logs:  log.Lines(),
		})
		return
	}
	log.Appendf("Content to process determined. Content shape: %s", content.Shape)

	out := evaluate.ParseOutputFormat(req.OutputType)
	log.Appendf("Output type set to: %s", out)

	switch req.Action {
	case ActionEvaluateGeneral:
		log.Append("Action: evaluate_general. Evaluating against general forum rules.")
		res := h.eval.EvaluateGeneral(ctx, log, content, out)
		resp.Evaluation = &res
		log.Append("General evaluation complete.")
	case ActionEvaluateMarketplace:
		log.Append("Action: evaluate_marketplace. Evaluating against marketplace forum rules.")
		res := h.eval.EvaluateMarketplace(ctx, log, content, out)
		resp.Evaluation = &res
		log.Append("Marketplace evaluation complete.")
	case ActionSummarize:
		log.Append("Action: summarize. Summarizing content.")
		res := h.eval.Summarize(ctx, log, content)
		resp.Summary = &res
		log.Append("Content summarization complete.")
	default:
		// Lenient fallback: the content was valid, the action just is not
		// recognised for specific processing.
		log.Appendf("Unknown action: %s. Returning content preview.", req.Action)
		resp.ContentPreview = truncate(content.Body, previewLimit)
		resp.Status = "success_unknown_action"
		resp.Message = "Content retrieved/provided, but action not recognized for specific processing."
	}

	if caller.Privileged {
		resp.Log = log.Lines()
	}

	log.Append("Attempting to send final JSON response.")
	h.write(rw, log, http.StatusOK, resp)
}

// sessionID extracts the forum session cookie ("<cookieName>_sid").
func (h *Handler) sessionID(r *http.Request) string {
	c, err := r.Cookie(h.cookieName + "_sid")
	if err != nil {
		return ""
	}
	return c.Value
}

// parseRequest normalizes the three accepted input shapes into one
// actionRequest: GET query parameters, a JSON body, or form fields.
func (h *Handler) parseRequest(r *http.Request, log *auditlog.Log) actionRequest {
	contentType := r.Header.Get("Content-Type")
	log.Appendf("Request method: %s, Content-Type: %s", r.Method, contentType)

	if r.Method == http.MethodGet {
		return parseParams(r.URL.Query().Get, log)
	}

	if strings.Contains(contentType, "application/json") {
		return parseJSONBody(r, log)
	}

	// Form-encoded or anything else with parseable form fields.
	if err := r.ParseForm(); err != nil {
		log.Appendf("Failed to parse form body: %v", err)
		return actionRequest{empty: true}
	}
	return parseParams(r.PostForm.Get, log)
}

// parseParams reads the short query/form field names (action, p, t, d, c,
// outputType).
func parseParams(get func(string) string, log *auditlog.Log) actionRequest {
	action := get("action")
	if action == "" {
		return actionRequest{empty: true}
	}

	req := actionRequest{
		Action:     action,
		PostID:     parseInt64(get("p")),
		TopicID:    parseInt64(get("t")),
		Days:       int(parseInt64(get("d"))),
		Count:      int(parseInt64(get("c"))),
		OutputType: get("outputType"),
	}
	if req.OutputType == "" {
		req.OutputType = "html"
	}
	return req
}

// parseJSONBody reads the long JSON field names (action, post_id,
// topic_id, days, count, outputType).
func parseJSONBody(r *http.Request, log *auditlog.Log) actionRequest {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		log.Appendf("Request body not valid JSON: %v", err)
		return actionRequest{empty: true}
	}
	if len(fields) == 0 {
		return actionRequest{empty: true}
	}

	req := actionRequest{
		Action:     jsonString(fields["action"]),
		PostID:     jsonInt64(fields["post_id"]),
		TopicID:    jsonInt64(fields["topic_id"]),
		Days:       int(jsonInt64(fields["days"])),
		Count:      int(jsonInt64(fields["count"])),
		OutputType: jsonString(fields["outputType"]),
	}
	if req.OutputType == "" {
		req.OutputType = "html"
	}
	return req
}

func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func jsonString(v any) string {
	s, _ := v.(string)
	return s
}

func jsonInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		return parseInt64(n)
	default:
		return 0
	}
}

// truncate cuts s to limit bytes with an ellipsis marker.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
