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

// Package evaluate composes the prompts for the three assist operations
// and invokes the model backend, folding backend failures into a
// well-formed result so the orchestrator can always serialize a response.
package evaluate

import (
	"strings"

	"github.com/userbase/aimodhelp/internal/forum"
)

// OutputFormat selects how the model is asked to shape its answer.
type OutputFormat string

const (
	// OutputHTML asks for a compact semantic HTML answer. Default.
	OutputHTML OutputFormat = "html"
	// OutputBBCode asks for a single ready-to-post forum reply.
	OutputBBCode OutputFormat = "bbcode"
)

// ParseOutputFormat maps a caller-supplied string to an OutputFormat.
// Anything other than "bbcode" is HTML.
func ParseOutputFormat(s string) OutputFormat {
	if strings.EqualFold(s, string(OutputBBCode)) {
		return OutputBBCode
	}
	return OutputHTML
}

// NoActionSentence is the fixed sentence the model is instructed to answer
// with when nothing warrants moderation. Callers pattern-match on it, so
// it must never change wording.
const NoActionSentence = "No action is needed."

const htmlStyleGuidance = "Your overall answer must use HTML markup with line breaks, headers, and indentation. Make sure the generated HTML is as compact as possible, with minimal vertical whitespace between elements.\n" +
	"Do NOT use <style> tags or inline styles (such as style=\"margin: 0;\") in the generated HTML; styling is handled externally. Avoid excessive margins and padding.\n" +
	"Focus on a clean, semantic HTML structure that is compact without extra styling.\n\n"

// buildGeneralEvalPrompt builds the prompt for evaluation against the
// general forum rules.
func buildGeneralEvalPrompt(content forum.Content, rules string, out OutputFormat) string {
	var b strings.Builder

	b.WriteString("You are a fairly lenient moderator on a community forum who only steps in on gross and obvious violations or on discussions that are derailing, for example a thread that has degenerated into a back-and-forth shouting match or name-calling between users. The forum rules a moderator has to uphold are given below between <rules></rules> tags.\n\n")

	switch content.Shape {
	case forum.ShapeSinglePost:
		b.WriteString("The HTML data below contains a single forum post.\n\n")
	case forum.ShapeTopicWindow:
		b.WriteString("The HTML data below contains the most recent replies in a thread that several users have responded to.\n\n")
	default:
		b.WriteString("The data below is offered for evaluation.\n\n")
	}

	b.WriteString("The data to evaluate is between <context></context>. Pay attention to quotes inside posts so that you attribute statements to the right user (where applicable).\n\n")
	b.WriteString("Forum rules:\n<rules>" + rules + "</rules>\n\n")
	b.WriteString("Context to evaluate:\n<context>" + content.Body + "</context>\n\n")

	if out == OutputBBCode {
		b.WriteString("Formulate a reply to the content based on the forum rules. Answer as if you were posting a message in the discussion yourself. The reply may contain responses to and quotes of several users, or be a general remark.\n")
		b.WriteString("Where relevant, reference which rule(s) were violated. If you explicitly refer to specific posts, include a link to those posts (when available in the context).\n")
		b.WriteString("Your answer must be entirely in BBCode format.\n")
		b.WriteString("Output ONLY the BBCode using [] tags (no tags with <>), without any extra explanation, introduction, or analysis around the BBCode itself. Starting with [bbcode] or closing with [/bbcode] is not needed.\n\n")
		b.WriteString("Give your BBCode reply as the answer/output. Important: your reply must be ready to post directly below the discussion or post (so no analysis around it)!\n")
		if content.Shape == forum.ShapeTopicWindow {
			b.WriteString("Your reply may address several users or be a general response.\n\n")
		}
	} else {
		b.WriteString("Question: How would you respond based on the available forum rules? Are there users and replies that do not follow the rules, and would you act on them?\n\n")
		b.WriteString("If so, how? Reference which rule(s) were violated. If you explicitly refer to specific posts, include a link to those posts (when available in the context). Any replies you would send to users must be in BBCode format.\n\n")
		b.WriteString(htmlStyleGuidance)
	}

	b.WriteString("If there is no reason for moderation, action, or a reply, answer with exactly: " + NoActionSentence + "\n")
	return b.String()
}

// buildMarketplaceEvalPrompt builds the prompt for evaluation against the
// marketplace ("for sale / free") board rules.
func buildMarketplaceEvalPrompt(content forum.Content, rules string, out OutputFormat) string {
	var b strings.Builder

	b.WriteString("You are a moderator on a community forum.\n\n")
	b.WriteString("The rules of the marketplace (for sale / free) board that users must follow and a moderator must uphold are given below between <rules></rules> tags.\n\n")

	switch content.Shape {
	case forum.ShapeSinglePost:
		b.WriteString("A post by a user (in HTML format) is given between <context></context> tags.\n\n")
	case forum.ShapeTopicWindow:
		b.WriteString("Several posts by users (in HTML format) from one topic are given between <context></context> tags.\n\n")
	default:
		b.WriteString("The following data is offered for evaluation against the marketplace rules.\n\n")
	}

	b.WriteString("Forum rules:\n<rules>" + rules + "</rules>\n\n")
	b.WriteString("Context to evaluate:\n<context>" + content.Body + "</context>\n\n")

	if out == OutputBBCode {
		b.WriteString("Formulate a direct reply to the content based on the available rules, as if you were posting a message in the marketplace discussion yourself. The reply may contain responses to and quotes of several users, or be a general remark.\n")
		b.WriteString("Where relevant, reference which rule(s) were violated. If you explicitly refer to specific posts, include a link to those posts (when available in the context).\n")
		b.WriteString("Your answer must be entirely in BBCode format.\n")
		b.WriteString("Output ONLY the BBCode using [] tags (no tags with <>), without any extra explanation, introduction, or analysis around the BBCode itself. Starting with [bbcode] or closing with [/bbcode] is not needed.\n\n")
		b.WriteString("Give your BBCode reply as the answer/output. Important: your reply must be ready to post directly below the discussion or post (so no analysis around it)!\n")
		if content.Shape == forum.ShapeTopicWindow {
			b.WriteString("Your reply may be aimed at several specific users or be a general response.\n\n")
		}
	} else {
		b.WriteString("Question: How would you respond based on the available forum rules? Does this post / do these posts violate the rules, and would you act on that?\n\n")
		b.WriteString("If so, how? Reference which rule(s) were violated. Any reply you would send to the user must be in BBCode format.\n\n")
		b.WriteString(htmlStyleGuidance)
	}

	b.WriteString("If there is no reason for moderation, action, or a reply, answer with exactly: " + NoActionSentence + "\n")
	return b.String()
}

// buildSummarizePrompt builds the summarization prompt. Summaries are
// always HTML.
func buildSummarizePrompt(content forum.Content) string {
	var b strings.Builder

	b.WriteString("Summarize the following forum content.\n")
	switch content.Shape {
	case forum.ShapeSinglePost:
		b.WriteString("The content is a single forum post in HTML format:\n")
	case forum.ShapeTopicWindow:
		b.WriteString("The content consists of several forum posts from one topic, in HTML format:\n")
	default:
		b.WriteString("The following data, between <content> and </content>, is offered for summarization:\n\n")
	}

	b.WriteString("<content>" + content.Body + "</content>\n\n")
	b.WriteString("Try to produce an overall summary and draw conclusions where possible. If several viewpoints are present, group them and indicate who is in favour and who is against.\n")
	b.WriteString("You may also group external references or links and include them in your summary.\n")
	b.WriteString(htmlStyleGuidance)
	return b.String()
}
