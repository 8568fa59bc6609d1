// Package prompt builds the summarization prompt shared by the LLM adapters
// and cleans up their output.
package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/utils"
)

// SystemPrompt is sent as the system message where the provider supports one
const SystemPrompt = "You are an executive assistant who writes short, accurate daily email briefs. Respond only with HTML."

const briefFormat = `Write a daily brief of the %d most important emails below, most important first.
For each email give the sender, the subject and one or two sentences on what it needs from the reader.
Finish with a short list of action items, if any.
Use simple HTML (h3, p, ul, li, strong). Do not use markdown and do not wrap the answer in a code block.

Emails:
%s`

var (
	codeFence = regexp.MustCompile("(?s)^\\s*```(?:html)?\\s*(.*?)\\s*```\\s*$")
	boldMD    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	headingMD = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
)

// BuildBriefPrompt renders the top topN messages into the brief prompt
func BuildBriefPrompt(ranked []core.Message, topN int, tp *utils.TextProcessor, maxBodySize int) string {
	if topN <= 0 || topN > len(ranked) {
		topN = len(ranked)
	}

	var sb strings.Builder
	for i, msg := range ranked[:topN] {
		body := msg.Body
		if body == "" {
			body = msg.Preview
		}
		fmt.Fprintf(&sb, "%d. From: %s\n   Subject: %s\n   Received: %s\n   Score: %.2f\n   Content: %s\n\n",
			i+1,
			msg.Sender,
			msg.Subject,
			msg.ReceivedAt.Format("Mon Jan 2 15:04"),
			msg.Score,
			tp.ProcessText(body, maxBodySize))
	}
	return fmt.Sprintf(briefFormat, topN, sb.String())
}

// CleanHTML strips a surrounding code fence and converts markdown the model
// emitted despite instructions
func CleanHTML(text string) string {
	text = strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = boldMD.ReplaceAllString(text, "<strong>$1</strong>")
	text = headingMD.ReplaceAllString(text, "<h3>$1</h3>")
	return strings.TrimSpace(text)
}
