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
	"fmt"
	"log/slog"
	"net/http"

	"github.com/userbase/aimodhelp/internal/auditlog"
)

// onceWriter guarantees the one-write-per-request invariant: the first
// body write wins and later ones are dropped.
type onceWriter struct {
	w     http.ResponseWriter
	wrote bool
}

func (o *onceWriter) writeOnce(contentType string, status int, body []byte) {
	if o.wrote {
		return
	}
	o.wrote = true
	o.w.Header().Set("Content-Type", contentType)
	o.w.WriteHeader(status)
	if _, err := o.w.Write(body); err != nil {
		slog.Warn("response write failed", "error", err)
	}
}

// write serializes the envelope with a three-stage fallback: the
// envelope itself, then a diagnostic error envelope, then a plain-text
// dump. Something always reaches the client.
func (h *Handler) write(rw *onceWriter, log *auditlog.Log, status int, env envelope) {
	data, err := h.marshal(env)
	if err == nil {
		rw.writeOnce("application/json", status, data)
		return
	}

	log.Appendf("Failed to encode JSON response: %v", err)
	fallback := envelope{
		Status:  "error",
		Message: "Failed to encode JSON response.",
		Error:   err.Error(),
		Logs:    log.Lines(),
	}
	if data, err2 := h.marshal(fallback); err2 == nil {
		rw.writeOnce("application/json", http.StatusInternalServerError, data)
		return
	}

	rw.writeOnce("text/plain; charset=utf-8", http.StatusInternalServerError,
		[]byte(fmt.Sprintf("Critical error: response could not be serialized: %v\n%+v\n", err, env)))
}
