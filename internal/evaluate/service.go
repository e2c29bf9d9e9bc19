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

package evaluate

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/userbase/aimodhelp/internal/auditlog"
	"github.com/userbase/aimodhelp/internal/forum"
	"github.com/userbase/aimodhelp/internal/llm"
)

// Rules holds the two static rule texts, loaded once at startup and
// embedded verbatim into evaluation prompts.
type Rules struct {
	General     string
	Marketplace string
}

// LoadRules reads both rule files. A missing file leaves its text empty
// and logs a warning; the service still runs (the model is simply asked to
// evaluate against an empty rule set).
func LoadRules(generalPath, marketplacePath string) Rules {
	return Rules{
		General:     readRuleFile(generalPath, "general"),
		Marketplace: readRuleFile(marketplacePath, "marketplace"),
	}
}

func readRuleFile(path, kind string) string {
	if path == "" {
		slog.Warn("no rule file configured", "kind", kind)
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("rule file not readable", "kind", kind, "path", path, "error", err)
		return ""
	}
	slog.Info("loaded rule file", "kind", kind, "path", path, "bytes", len(data))
	return string(data)
}

// Completer is the slice of the model backend adapter this service needs.
type Completer interface {
	Complete(ctx context.Context, log *auditlog.Log, prompt string, opts ...llm.Option) (string, error)
}

// Result is the outcome of one model invocation. It is always well-formed:
// a backend failure becomes a human-readable Message, never an error, so
// the orchestrator can serialize a response unconditionally.
type Result struct {
	Message string `json:"message"`
	// ContentLength is the size of the evaluated content, returned as a
	// telemetry signal. The sizing cap is enforced at fetch time.
	ContentLength int `json:"content_length"`
}

// Service maps the three assist operations onto prompt construction plus
// one backend call.
type Service struct {
	rules   Rules
	backend Completer
}

// NewService creates an evaluation service.
func NewService(rules Rules, backend Completer) *Service {
	return &Service{rules: rules, backend: backend}
}

// EvaluateGeneral evaluates content against the general forum rules.
func (s *Service) EvaluateGeneral(ctx context.Context, log *auditlog.Log, content forum.Content, out OutputFormat) Result {
	log.Appendf("Evaluating %s against general forum rules.", content.Shape)
	prompt := buildGeneralEvalPrompt(content, s.rules.General, out)
	return s.invoke(ctx, log, prompt, len(content.Body), "Failed to generate evaluation from AI API.")
}

// EvaluateMarketplace evaluates content against the marketplace board rules.
func (s *Service) EvaluateMarketplace(ctx context.Context, log *auditlog.Log, content forum.Content, out OutputFormat) Result {
	log.Appendf("Evaluating %s against marketplace forum rules.", content.Shape)
	prompt := buildMarketplaceEvalPrompt(content, s.rules.Marketplace, out)
	return s.invoke(ctx, log, prompt, len(content.Body), "Failed to generate evaluation from AI API.")
}

// Summarize produces an HTML summary of the content.
func (s *Service) Summarize(ctx context.Context, log *auditlog.Log, content forum.Content) Result {
	log.Appendf("Summarizing %s.", content.Shape)
	prompt := buildSummarizePrompt(content)
	return s.invoke(ctx, log, prompt, len(content.Body), "Failed to generate summary from AI API.")
}

func (s *Service) invoke(ctx context.Context, log *auditlog.Log, prompt string, contentLen int, failurePrefix string) Result {
	text, err := s.backend.Complete(ctx, log, prompt)
	if err != nil {
		log.Appendf("Model backend call failed: %v", err)
		return Result{
			Message:       fmt.Sprintf("%s %v", failurePrefix, err),
			ContentLength: contentLen,
		}
	}
	return Result{Message: text, ContentLength: contentLen}
}
