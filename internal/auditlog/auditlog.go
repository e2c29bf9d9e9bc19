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

// Package auditlog provides an append-only, per-request trace of what the
// assist pipeline did and why. The collected lines are returned to
// privileged callers in the response envelope so moderators can debug a
// request without shell access to the server.
package auditlog

import (
	"fmt"
	"log/slog"
	"time"
)

// Log accumulates timestamped trace lines for a single request.
// It is scoped to one request lifecycle and never shared between
// goroutines, so it needs no locking.
type Log struct {
	requestID string
	lines     []string
	now       func() time.Time
}

// New creates an empty log for one request. The request ID is only used
// for the mirrored slog output, not for the lines themselves.
func New(requestID string) *Log {
	return &Log{requestID: requestID, now: time.Now}
}

// Append adds one trace line with a timestamp prefix and mirrors it to
// slog at debug level.
func (l *Log) Append(msg string) {
	stamp := l.now().Format("2006-01-02 15:04:05")
	l.lines = append(l.lines, fmt.Sprintf("[%s] %s", stamp, msg))
	slog.Debug("audit", "request_id", l.requestID, "msg", msg)
}

// Appendf is Append with fmt.Sprintf formatting.
func (l *Log) Appendf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

// Lines returns a snapshot of all lines appended so far.
func (l *Log) Lines() []string {
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}
