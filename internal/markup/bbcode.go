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

// Package markup provides a minimal BBCode-to-HTML renderer. It covers the
// tags that matter for giving a language model readable context: bold,
// italic, underline, quotes, code, links, and images. Deployments that
// want pixel-perfect output plug the forum's own renderer into the
// fetcher instead.
package markup

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// Forum post bodies store BBCode tags suffixed with a per-post uid,
// e.g. [b:1a2b3c4d]...[/b:1a2b3c4d].
var uidPattern = regexp.MustCompile(`\[(/?[a-z*]+)(?:=[^\]:]*)?:[a-z0-9]{8}\]`)

var simpleTags = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`(?s)\[b\](.*?)\[/b\]`), "<strong>$1</strong>"},
	{regexp.MustCompile(`(?s)\[i\](.*?)\[/i\]`), "<em>$1</em>"},
	{regexp.MustCompile(`(?s)\[u\](.*?)\[/u\]`), "<u>$1</u>"},
	{regexp.MustCompile(`(?s)\[code\](.*?)\[/code\]`), "<code>$1</code>"},
	{regexp.MustCompile(`(?s)\[quote\](.*?)\[/quote\]`), "<blockquote>$1</blockquote>"},
	{regexp.MustCompile(`(?s)\[quote=&#34;([^&]*)&#34;\](.*?)\[/quote\]`), "<blockquote><cite>$1 wrote:</cite>$2</blockquote>"},
	{regexp.MustCompile(`\[img\]([^\[]+)\[/img\]`), `<img src="$1" />`},
	{regexp.MustCompile(`\[url\]([^\[]+)\[/url\]`), `<a href="$1">$1</a>`},
	{regexp.MustCompile(`\[url=([^\]]+)\]([^\[]+)\[/url\]`), `<a href="$1">$2</a>`},
}

// Renderer turns raw BBCode post text into HTML.
type Renderer struct{}

// NewRenderer creates a BBCode renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render converts raw post text into HTML. bbcodeUID is the per-post tag
// suffix stored alongside the body; it is stripped before tag handling.
func (r *Renderer) Render(raw, bbcodeUID string) string {
	text := raw
	if bbcodeUID != "" {
		// Strip the uid suffixes so plain tag patterns match:
		// [b:uid] -> [b], [quote=&quot;name&quot;:uid] -> [quote=...]
		text = strings.ReplaceAll(text, fmt.Sprintf(":%s]", bbcodeUID), "]")
	} else {
		text = uidPattern.ReplaceAllString(text, "[$1]")
	}

	out := html.EscapeString(text)
	for _, t := range simpleTags {
		out = t.pattern.ReplaceAllString(out, t.repl)
	}
	out = strings.ReplaceAll(out, "\n", "<br />\n")
	return out
}
