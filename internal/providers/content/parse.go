package content

import (
	"regexp"
	"strings"

	"github.com/smallbiznis/incomeengine/internal/engine/domain"
)

const maxTags = 5

var (
	titleLine   = regexp.MustCompile(`(?im)^\s*TITLE:\s*(.+)$`)
	tagsLine    = regexp.MustCompile(`(?im)^\s*TAGS:\s*(.+)$`)
	tagStripper = regexp.MustCompile(`[^a-zA-Z0-9 ]`)
)

// Parse splits generated text of the form
//
//	TITLE: ...
//	TAGS: a, b, c
//	---
//	body
//
// into its parts. Missing pieces fall back to fallbackTitle and the whole text.
func Parse(text, fallbackTitle string) domain.GeneratedContent {
	out := domain.GeneratedContent{Title: strings.TrimSpace(fallbackTitle)}

	if m := titleLine.FindStringSubmatch(text); m != nil {
		if title := strings.Trim(strings.TrimSpace(m[1]), `"*#`); title != "" {
			out.Title = title
		}
	}

	if m := tagsLine.FindStringSubmatch(text); m != nil {
		for _, raw := range strings.Split(strings.Trim(m[1], "[]"), ",") {
			tag := strings.TrimSpace(tagStripper.ReplaceAllString(raw, ""))
			if tag == "" {
				continue
			}
			out.Tags = append(out.Tags, tag)
			if len(out.Tags) == maxTags {
				break
			}
		}
	}

	body := ""
	if _, rest, ok := strings.Cut(text, "---"); ok {
		body = strings.TrimSpace(rest)
	}
	if body == "" {
		body = strings.TrimSpace(titleLine.ReplaceAllString(tagsLine.ReplaceAllString(text, ""), ""))
	}
	out.Body = body
	return out
}
