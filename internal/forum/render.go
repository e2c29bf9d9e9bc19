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
	"fmt"
	"html"
	"strings"
)

// RenderForModel concatenates rendered post blocks into one HTML blob for
// prompt assembly. Each block carries subject, author, formatted time, and
// the rendered body; posts are separated by a horizontal rule. A post with
// an empty subject falls back to fallbackTitle. Returns the empty string
// for an empty input.
//
// Subjects and usernames are escaped; bodies are inserted as-is since they
// are already rendered markup.
func RenderForModel(posts []PostRecord, fallbackTitle string) string {
	if len(posts) == 0 {
		return ""
	}

	var b strings.Builder
	for i, p := range posts {
		if i > 0 {
			b.WriteString("<hr />\n")
		}

		subject := p.Subject
		if subject == "" {
			subject = fallbackTitle
		}

		fmt.Fprintf(&b, "<div class=\"post\" id=\"p%d\">\n", p.PostID)
		b.WriteString("  <div class=\"post-header\">\n")
		fmt.Fprintf(&b, "    <div class=\"post-subject\">%s</div>\n", html.EscapeString(subject))
		fmt.Fprintf(&b, "    <div class=\"post-meta\">Posted by %s on %s</div>\n",
			html.EscapeString(p.Username), p.PostedAtFormatted)
		b.WriteString("  </div>\n")
		b.WriteString("  <div class=\"post-content\">\n")
		b.WriteString(p.RenderedBody)
		b.WriteString("\n  </div>\n")
		b.WriteString("</div>\n")
	}
	return b.String()
}
