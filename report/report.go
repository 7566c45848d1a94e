// Package report renders a finished plan as Markdown, HTML, or inline-styled
// HTML for clients that strip list and heading tags.
package report

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"

	"adaptive_task_generator/coverage"
	"adaptive_task_generator/task"
)

// Format selects the output of Render.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatInline   Format = "inline"
)

// Plan is the printable view of one generation.
type Plan struct {
	Title    string
	Coverage coverage.Result
	Tasks    []task.Task
	Cost     decimal.Decimal
	Warnings []string
}

// Render dispatches on f; unknown formats are an error.
func Render(p Plan, f Format) (string, error) {
	switch f {
	case FormatMarkdown, "":
		return Markdown(p), nil
	case FormatHTML:
		return HTML(p)
	case FormatInline:
		return InlineHTML(p)
	default:
		return "", fmt.Errorf("unknown report format %q", f)
	}
}

// Markdown lays the plan out as one section per task, in rank order.
func Markdown(p Plan) string {
	var b strings.Builder
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = "Your plan"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if p.Coverage.Strategy != "" {
		fmt.Fprintf(&b, "> Strategy: %s · coverage %d/100 (%s)\n\n", p.Coverage.Strategy, p.Coverage.Score, p.Coverage.Tier)
	}
	for _, w := range p.Warnings {
		fmt.Fprintf(&b, "> Note: %s\n\n", w)
	}
	if len(p.Tasks) == 0 {
		b.WriteString("No tasks could be generated for this goal yet.\n")
		return b.String()
	}

	for i, t := range p.Tasks {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, t.Title)
		if t.Description != "" {
			b.WriteString(t.Description)
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "*%d min · energy %s · load %d · %s*\n\n", t.TimeboxMinutes, t.EnergyLevel, t.CognitiveLoad, t.Source)
		if len(t.DefinitionOfDone) > 0 {
			b.WriteString("Definition of done:\n\n")
			for _, d := range t.DefinitionOfDone {
				fmt.Fprintf(&b, "- %s\n", d)
			}
			b.WriteString("\n")
		}
	}
	if !p.Cost.IsZero() {
		fmt.Fprintf(&b, "---\n\nGeneration cost: $%s\n", p.Cost.StringFixed(4))
	}
	return b.String()
}

// HTML converts Markdown(p) with goldmark.
func HTML(p Plan) (string, error) {
	return mdToHTML(Markdown(p))
}

// InlineHTML is HTML with headings and lists rewritten to styled paragraphs.
func InlineHTML(p Plan) (string, error) {
	html, err := HTML(p)
	if err != nil {
		return "", err
	}
	return normalize(html), nil
}

// Digest is a whitespace-collapsed summary of at most limit runes.
func Digest(p Plan, limit int) string {
	var parts []string
	for _, t := range p.Tasks {
		parts = append(parts, t.Title)
	}
	joined := strings.Join(strings.Fields(strings.Join(parts, "; ")), " ")
	r := []rune(joined)
	if limit <= 0 || len(r) <= limit {
		return joined
	}
	return string(r[:limit])
}

func mdToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var (
	olRe = regexp.MustCompile(`(?s)<ol[^>]*>(.*?)</ol>`)
	ulRe = regexp.MustCompile(`(?s)<ul[^>]*>(.*?)</ul>`)
	liRe = regexp.MustCompile(`(?s)<li[^>]*>(.*?)</li>`)
	hRe  = regexp.MustCompile(`(?s)<h([1-6])[^>]*>(.*?)</h[1-6]>`)

	headingSizes = map[string]string{"1": "24px", "2": "22px", "3": "20px", "4": "18px", "5": "16px", "6": "15px"}
)

// 部分客户端会弱化列表和标题标签，这里展开列表、把标题转成带字号的段落。
func flattenLists(html string) string {
	html = olRe.ReplaceAllStringFunc(html, func(block string) string {
		items := liRe.FindAllStringSubmatch(block, -1)
		if len(items) == 0 {
			return block
		}
		var b strings.Builder
		for i, item := range items {
			fmt.Fprintf(&b, "<p>%d. %s</p>", i+1, strings.TrimSpace(item[1]))
		}
		return b.String()
	})
	return ulRe.ReplaceAllStringFunc(html, func(block string) string {
		items := liRe.FindAllStringSubmatch(block, -1)
		if len(items) == 0 {
			return block
		}
		var b strings.Builder
		for _, item := range items {
			b.WriteString("<p>• ")
			b.WriteString(strings.TrimSpace(item[1]))
			b.WriteString("</p>")
		}
		return b.String()
	})
}

func convertHeadings(html string) string {
	return hRe.ReplaceAllStringFunc(html, func(block string) string {
		parts := hRe.FindStringSubmatch(block)
		if len(parts) != 3 {
			return block
		}
		size := headingSizes[parts[1]]
		if size == "" {
			size = "18px"
		}
		return fmt.Sprintf(`<p style="font-size:%s;font-weight:700;margin:1em 0 0.6em;">%s</p>`, size, strings.TrimSpace(parts[2]))
	})
}

func normalize(html string) string {
	return flattenLists(convertHeadings(html))
}
