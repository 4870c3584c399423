package transform

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	headPattern      = regexp.MustCompile(`(?i)<head[^>]*>`)
	bodyClosePattern = regexp.MustCompile(`(?i)</body>`)
)

const watermarkStyle = `<style>
    .watermark {
        position: absolute;
        transform: rotate(-45deg);
        transform-origin: left top;
        font-size: 2rem;
        color: red;
        z-index: 999;
        pointer-events: none;
        opacity: 0.3;
    }
</style>`

// Watermark overlays the given text as CSS-styled divs across the rendered
// HTML. Output without a closing body tag is returned unchanged; the text
// is HTML-escaped before injection.
func Watermark(htmlContent []byte, text string, count int) ([]byte, bool) {
	if len(htmlContent) == 0 || strings.TrimSpace(text) == "" {
		return htmlContent, false
	}
	if count < 1 {
		count = 1
	}

	out := string(htmlContent)
	if loc := headPattern.FindStringIndex(out); loc != nil {
		out = out[:loc[1]] + watermarkStyle + out[loc[1]:]
	}

	loc := bodyClosePattern.FindStringIndex(out)
	if loc == nil {
		return htmlContent, false
	}

	escaped := html.EscapeString(text)
	width := 100 / count
	left := 10

	var divs strings.Builder
	for i := 0; i < count; i++ {
		fmt.Fprintf(&divs, `<div class="watermark" style="top: 40%%; left: %d%%;">%s</div>`, left, escaped)
		fmt.Fprintf(&divs, `<div class="watermark" style="bottom: 50%%; left: %d%%; top: 90%%">%s</div>`, left, escaped)
		left += width - 4
	}

	out = out[:loc[0]] + divs.String() + out[loc[0]:]
	return []byte(out), true
}
