package generator

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"webforge/internal/domain/services"
)

// ErrEmptyOutput is returned when a provider answers without usable code
var ErrEmptyOutput = errors.New("generator returned no code")

const systemPrompt = `You are an expert web developer. You build complete, responsive single-file websites.

Rules:
- Reply with one HTML document only, starting with <!DOCTYPE html>.
- Put all CSS in a <style> tag and all JavaScript in a <script> tag. Tailwind via CDN is allowed.
- Use semantic markup, accessible contrast and placeholder images from https://placehold.co.
- Do not add explanations, markdown or commentary outside the document.`

// BuildMessages returns the system and user prompt for a request. When the
// request carries current code the user prompt asks for a revision of it.
func BuildMessages(req *services.GenerateRequest) (system, user string) {
	if req.CurrentCode == nil || strings.TrimSpace(*req.CurrentCode) == "" {
		return systemPrompt, fmt.Sprintf("Build a website for this request:\n\n%s", req.Prompt)
	}

	return systemPrompt, fmt.Sprintf(
		"Here is the current website:\n\n%s\n\nApply this change and return the full updated document:\n\n%s",
		*req.CurrentCode, req.Prompt,
	)
}

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n(.*?)```")

// ExtractCode pulls the document out of a model reply. Markdown fences are
// stripped; text that is not HTML is wrapped in a minimal page.
func ExtractCode(reply string) (string, error) {
	code := strings.TrimSpace(reply)
	if m := fencePattern.FindStringSubmatch(code); m != nil {
		code = strings.TrimSpace(m[1])
	}
	if code == "" {
		return "", ErrEmptyOutput
	}

	if start := indexFold(code, "<!doctype html"); start > 0 {
		code = code[start:]
	} else if start < 0 && indexFold(code, "<html") < 0 {
		code = wrapText(code)
	}
	return code, nil
}

func indexFold(s, substr string) int {
	return strings.Index(strings.ToLower(s), substr)
}

func wrapText(text string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n<title>Generated site</title>\n")
	b.WriteString("</head>\n<body>\n")
	for _, para := range strings.Split(text, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			b.WriteString("<p>")
			b.WriteString(html.EscapeString(para))
			b.WriteString("</p>\n")
		}
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}
