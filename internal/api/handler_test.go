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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/userbase/aimodhelp/internal/auditlog"
	"github.com/userbase/aimodhelp/internal/evaluate"
	"github.com/userbase/aimodhelp/internal/forum"
	"github.com/userbase/aimodhelp/internal/session"
)

const (
	memberSID = "member-session"
	modSID    = "moderator-session"
)

type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, sessionID string) (session.Caller, error) {
	switch sessionID {
	case memberSID:
		return session.Caller{UserID: 42, Username: "member", Registered: true}, nil
	case modSID:
		return session.Caller{UserID: 7, Username: "mod", Registered: true, Privileged: true}, nil
	default:
		return session.Anonymous(), nil
	}
}

type fakeFetcher struct {
	post      *forum.PostRecord
	postErr   error
	window    *forum.TopicWindow
	windowErr error

	lastMaxCount int
	lastMaxDays  int
	panicOnPost  bool
}

func (f *fakeFetcher) FetchPost(ctx context.Context, log *auditlog.Log, userID, postID int64) (*forum.PostRecord, error) {
	if f.panicOnPost {
		panic("store gone")
	}
	return f.post, f.postErr
}

func (f *fakeFetcher) FetchTopicWindow(ctx context.Context, log *auditlog.Log, userID, topicID int64, maxCount, maxDays int) (*forum.TopicWindow, error) {
	f.lastMaxCount = maxCount
	f.lastMaxDays = maxDays
	return f.window, f.windowErr
}

type fakeEval struct {
	calls       []string
	lastContent forum.Content
	lastOut     evaluate.OutputFormat
}

func (f *fakeEval) EvaluateGeneral(ctx context.Context, log *auditlog.Log, content forum.Content, out evaluate.OutputFormat) evaluate.Result {
	f.calls = append(f.calls, "general")
	f.lastContent, f.lastOut = content, out
	return evaluate.Result{Message: "general verdict", ContentLength: len(content.Body)}
}

func (f *fakeEval) EvaluateMarketplace(ctx context.Context, log *auditlog.Log, content forum.Content, out evaluate.OutputFormat) evaluate.Result {
	f.calls = append(f.calls, "marketplace")
	f.lastContent, f.lastOut = content, out
	return evaluate.Result{Message: "marketplace verdict", ContentLength: len(content.Body)}
}

func (f *fakeEval) Summarize(ctx context.Context, log *auditlog.Log, content forum.Content) evaluate.Result {
	f.calls = append(f.calls, "summarize")
	f.lastContent = content
	return evaluate.Result{Message: "summary text", ContentLength: len(content.Body)}
}

func testPost() *forum.PostRecord {
	return &forum.PostRecord{
		PostID:       100,
		TopicID:      5,
		ForumID:      2,
		PosterID:     42,
		Username:     "member",
		Subject:      "Re: bikes",
		RenderedBody: "hello world",
		PostedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Unix(),

		PostedAtFormatted: "Sun Mar 01, 2026 12:00 pm",
		TopicTitle:        "bikes",
	}
}

func testWindow(n int) *forum.TopicWindow {
	win := &forum.TopicWindow{TopicID: 5, TopicTitle: "bikes"}
	for i := 0; i < n; i++ {
		p := testPost()
		p.PostID = int64(100 + i)
		win.Posts = append(win.Posts, *p)
	}
	return win
}

func newTestHandler(fetcher *fakeFetcher, eval Evaluator) *Handler {
	return NewHandler(fakeResolver{}, fetcher, eval, "phpbb3", 20)
}

func doRequest(t *testing.T, h *Handler, method, target, sid string, body string, contentType string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "phpbb3_sid", Value: sid})
	}

	rec := httptest.NewRecorder()
	h.ServeAssist(rec, req)

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response not JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return rec, payload
}

func TestAnonymousContentRequestDenied(t *testing.T) {
	h := newTestHandler(&fakeFetcher{post: testPost()}, &fakeEval{})

	rec, payload := doRequest(t, h, http.MethodGet, "/api/assist?action=summarize&p=100", "", "", "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if payload["error"] != "You must be logged in to view this content." {
		t.Errorf("error = %q", payload["error"])
	}
	if _, ok := payload["logs"]; !ok {
		t.Error("error response missing logs")
	}
}

func TestEmptyRequestRejected(t *testing.T) {
	h := newTestHandler(&fakeFetcher{}, &fakeEval{})

	rec, payload := doRequest(t, h, http.MethodGet, "/api/assist", memberSID, "", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if payload["error"] != "No POST data received" {
		t.Errorf("error = %q", payload["error"])
	}
}

func TestMissingActionRejected(t *testing.T) {
	h := newTestHandler(&fakeFetcher{}, &fakeEval{})

	rec, payload := doRequest(t, h, http.MethodPost, "/api/assist", modSID,
		`{"post_id": 100}`, "application/json")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if payload["error"] != "Missing action parameter" {
		t.Errorf("error = %q", payload["error"])
	}
}

func TestNonPrivilegedRestrictedToSummarize(t *testing.T) {
	for _, action := range []string{"evaluate_general", "evaluate_marketplace", "made_up"} {
		t.Run(action, func(t *testing.T) {
			eval := &fakeEval{}
			h := newTestHandler(&fakeFetcher{post: testPost()}, eval)

			rec, payload := doRequest(t, h, http.MethodGet, "/api/assist?action="+action+"&p=100", memberSID, "", "")

			if rec.Code != http.StatusForbidden {
				t.Fatalf("status = %d, want 403", rec.Code)
			}
			if !strings.Contains(payload["error"].(string), "summarize") {
				t.Errorf("error = %q, want mention of summarize", payload["error"])
			}
			if len(eval.calls) != 0 {
				t.Errorf("evaluation ran despite denial: %v", eval.calls)
			}
		})
	}
}

func TestNonPrivilegedCountClamped(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  int
	}{
		{"absent", "action=summarize&t=5", 20},
		{"zero", "action=summarize&t=5&c=0", 20},
		{"over max", "action=summarize&t=5&c=500", 20},
		{"within max", "action=summarize&t=5&c=3", 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := &fakeFetcher{window: testWindow(2)}
			h := newTestHandler(fetcher, &fakeEval{})

			doRequest(t, h, http.MethodGet, "/api/assist?"+tc.query, memberSID, "", "")

			if fetcher.lastMaxCount != tc.want {
				t.Errorf("maxCount = %d, want %d", fetcher.lastMaxCount, tc.want)
			}
		})
	}
}

func TestPrivilegedCountUnclamped(t *testing.T) {
	fetcher := &fakeFetcher{window: testWindow(2)}
	h := newTestHandler(fetcher, &fakeEval{})

	doRequest(t, h, http.MethodGet, "/api/assist?action=summarize&t=5&c=500&d=30", modSID, "", "")

	if fetcher.lastMaxCount != 500 {
		t.Errorf("maxCount = %d, want 500", fetcher.lastMaxCount)
	}
	if fetcher.lastMaxDays != 30 {
		t.Errorf("maxDays = %d, want 30", fetcher.lastMaxDays)
	}
}

func TestEvaluatePostSuccess(t *testing.T) {
	eval := &fakeEval{}
	h := newTestHandler(&fakeFetcher{post: testPost()}, eval)

	rec, payload := doRequest(t, h, http.MethodGet, "/api/assist?action=evaluate_general&p=100&outputType=bbcode", modSID, "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if payload["status"] != "success" || payload["action"] != "evaluate_general" {
		t.Errorf("status/action = %v/%v", payload["status"], payload["action"])
	}
	if payload["type"] != "single_post" {
		t.Errorf("type = %v, want single_post", payload["type"])
	}
	if payload["post_id"] != float64(100) {
		t.Errorf("post_id = %v, want 100", payload["post_id"])
	}

	verdict, ok := payload["evaluation"].(map[string]any)
	if !ok {
		t.Fatalf("evaluation missing: %v", payload)
	}
	if verdict["message"] != "general verdict" {
		t.Errorf("evaluation message = %v", verdict["message"])
	}
	if verdict["content_length"] == nil {
		t.Error("evaluation missing content_length")
	}

	if eval.lastOut != evaluate.OutputBBCode {
		t.Errorf("output format = %v, want bbcode", eval.lastOut)
	}
	if eval.lastContent.Shape != forum.ShapeSinglePost {
		t.Errorf("content shape = %v", eval.lastContent.Shape)
	}
	if !strings.Contains(eval.lastContent.Body, "hello world") {
		t.Errorf("rendered content missing post body: %q", eval.lastContent.Body)
	}

	if _, ok := payload["log"]; !ok {
		t.Error("privileged success response missing audit log")
	}
}

func TestTopicSummarizeEchoesWindowParams(t *testing.T) {
	h := newTestHandler(&fakeFetcher{window: testWindow(3)}, &fakeEval{})

	rec, payload := doRequest(t, h, http.MethodGet, "/api/assist?action=summarize&t=5&c=10&d=7", modSID, "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if payload["type"] != "topic_posts" {
		t.Errorf("type = %v, want topic_posts", payload["type"])
	}
	if payload["topic_id"] != float64(5) || payload["count"] != float64(10) || payload["days"] != float64(7) {
		t.Errorf("echoed params = t:%v c:%v d:%v", payload["topic_id"], payload["count"], payload["days"])
	}
	if _, ok := payload["summary"].(map[string]any); !ok {
		t.Fatalf("summary missing: %v", payload)
	}
}

func TestMemberSuccessOmitsAuditLog(t *testing.T) {
	h := newTestHandler(&fakeFetcher{window: testWindow(1)}, &fakeEval{})

	_, payload := doRequest(t, h, http.MethodGet, "/api/assist?action=summarize&t=5", memberSID, "", "")

	if _, ok := payload["log"]; ok {
		t.Error("non-privileged response leaked audit log")
	}
}

func TestFetchFailureIsUnprocessable(t *testing.T) {
	eval := &fakeEval{}
	h := newTestHandler(&fakeFetcher{postErr: forum.ErrForbidden, windowErr: errors.New("db down")}, eval)

	rec, payload := doRequest(t, h, http.MethodGet, "/api/assist?action=summarize&p=100", modSID, "", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("post fetch: status = %d, want 422", rec.Code)
	}
	if payload["status"] != "error" {
		t.Errorf("post fetch: status field = %v", payload["status"])
	}
	if !strings.Contains(payload["message"].(string), "post content") {
		t.Errorf("post fetch: message = %v", payload["message"])
	}

	rec, payload = doRequest(t, h, http.MethodGet, "/api/assist?action=summarize&t=5", modSID, "", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("topic fetch: status = %d, want 422", rec.Code)
	}
	if !strings.Contains(payload["message"].(string), "topic content") {
		t.Errorf("topic fetch: message = %v", payload["message"])
	}

	if len(eval.calls) != 0 {
		t.Errorf("model invoked despite fetch failure: %v", eval.calls)
	}
}

// A backend failure is folded into the result message by the evaluation
// service; the request itself was valid, so the envelope stays 200/success.
type failingEval struct{ fakeEval }

func (f *failingEval) Summarize(ctx context.Context, log *auditlog.Log, content forum.Content) evaluate.Result {
	return evaluate.Result{
		Message:       "Failed to generate summary from AI API. malformed response",
		ContentLength: len(content.Body),
	}
}

func TestBackendFailureStaysSuccessEnvelope(t *testing.T) {
	h := newTestHandler(&fakeFetcher{window: testWindow(1)}, &failingEval{})

	rec, payload := doRequest(t, h, http.MethodGet, "/api/assist?action=summarize&t=9", memberSID, "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if payload["status"] != "success" {
		t.Errorf("status = %v, want success", payload["status"])
	}
	summary := payload["summary"].(map[string]any)
	if !strings.Contains(summary["message"].(string), "Failed to generate summary") {
		t.Errorf("summary message = %v", summary["message"])
	}
}

func TestEmptyWindowIsSuccessShaped(t *testing.T) {
	h := newTestHandler(&fakeFetcher{window: testWindow(0)}, &fakeEval{})

	rec, payload := doRequest(t, h, http.MethodGet, "/api/assist?action=summarize&t=5&d=1", modSID, "", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if payload["status"] != "success" {
		t.Errorf("status field = %v, want success", payload["status"])
	}
	if payload["message"] != "No posts were found matching the given conditions." {
		t.Errorf("message = %v", payload["message"])
	}
}

func TestMissingContentIDRejected(t *testing.T) {
	h := newTestHandler(&fakeFetcher{}, &fakeEval{})

	rec, payload := doRequest(t, h, http.MethodGet, "/api/assist?action=summarize", modSID, "", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if payload["error"] != "Missing post_id or topic_id parameter" {
		t.Errorf("error = %q", payload["error"])
	}
}

func TestUnknownActionReturnsPreview(t *testing.T) {
	post := testPost()
	post.RenderedBody = strings.Repeat("x", 400)
	h := newTestHandler(&fakeFetcher{post: post}, &fakeEval{})

	rec, payload := doRequest(t, h, http.MethodGet, "/api/assist?action=translate&p=100", modSID, "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if payload["status"] != "success_unknown_action" {
		t.Errorf("status = %v", payload["status"])
	}
	preview := payload["content_preview"].(string)
	if len(preview) != previewLimit+len("...") {
		t.Errorf("preview length = %d, want %d", len(preview), previewLimit+3)
	}
	if !strings.HasSuffix(preview, "...") {
		t.Errorf("preview missing ellipsis: %q", preview)
	}
	if payload["message"] != "Content retrieved/provided, but action not recognized for specific processing." {
		t.Errorf("message = %v", payload["message"])
	}
}

func TestJSONBodyAccepted(t *testing.T) {
	fetcher := &fakeFetcher{window: testWindow(1)}
	eval := &fakeEval{}
	h := newTestHandler(fetcher, eval)

	rec, payload := doRequest(t, h, http.MethodPost, "/api/assist", modSID,
		`{"action": "summarize", "topic_id": 5, "count": 4, "days": 2}`, "application/json")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %v", rec.Code, payload)
	}
	if fetcher.lastMaxCount != 4 || fetcher.lastMaxDays != 2 {
		t.Errorf("window bounds = c:%d d:%d, want 4/2", fetcher.lastMaxCount, fetcher.lastMaxDays)
	}
	if len(eval.calls) != 1 || eval.calls[0] != "summarize" {
		t.Errorf("calls = %v", eval.calls)
	}
}

func TestFormBodyAccepted(t *testing.T) {
	eval := &fakeEval{}
	h := newTestHandler(&fakeFetcher{post: testPost()}, eval)

	rec, _ := doRequest(t, h, http.MethodPost, "/api/assist", modSID,
		"action=evaluate_marketplace&p=100", "application/x-www-form-urlencoded")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(eval.calls) != 1 || eval.calls[0] != "marketplace" {
		t.Errorf("calls = %v", eval.calls)
	}
}

func TestRequestIDHeader(t *testing.T) {
	h := newTestHandler(&fakeFetcher{}, &fakeEval{})

	rec, _ := doRequest(t, h, http.MethodGet, "/api/assist", modSID, "", "")

	id := rec.Header().Get("X-Request-ID")
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("X-Request-ID %q not a UUID: %v", id, err)
	}
}

func TestSerializationFallbacks(t *testing.T) {
	h := newTestHandler(&fakeFetcher{window: testWindow(1)}, &fakeEval{})

	// First marshal fails, diagnostic envelope succeeds.
	calls := 0
	h.marshal = func(v any) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("boom")
		}
		return json.Marshal(v)
	}
	rec, payload := doRequest(t, h, http.MethodGet, "/api/assist?action=summarize&t=5", modSID, "", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if payload["message"] != "Failed to encode JSON response." {
		t.Errorf("message = %v", payload["message"])
	}

	// Every marshal fails: plain-text dump still reaches the client.
	h.marshal = func(v any) ([]byte, error) { return nil, errors.New("boom") }
	req := httptest.NewRequest(http.MethodGet, "/api/assist?action=summarize&t=5", nil)
	req.AddCookie(&http.Cookie{Name: "phpbb3_sid", Value: modSID})
	raw := httptest.NewRecorder()
	h.ServeAssist(raw, req)
	if raw.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", raw.Code)
	}
	if ct := raw.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	if !strings.Contains(raw.Body.String(), "Critical error") {
		t.Errorf("body = %q", raw.Body.String())
	}
}

func TestPanicProducesErrorEnvelope(t *testing.T) {
	h := newTestHandler(&fakeFetcher{panicOnPost: true}, &fakeEval{})

	rec, payload := doRequest(t, h, http.MethodGet, "/api/assist?action=summarize&p=100", modSID, "", "")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if payload["status"] != "error" {
		t.Errorf("status = %v", payload["status"])
	}
	if !strings.Contains(payload["error"].(string), "store gone") {
		t.Errorf("error = %v", payload["error"])
	}
}
