package context

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/patterncore/pattern/entity"
)

// section is one named part of the system prompt, rendered either as an
// XML-tagged block or a Markdown-like heading depending on Config.UseXMLTags.
type section struct {
	tag  string // XML tag name / heading text
	body string
}

func renderSections(useXML bool, sections []section) string {
	var b strings.Builder
	for i, s := range sections {
		if s.body == "" {
			continue
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		if useXML {
			fmt.Fprintf(&b, "<%s>\n%s\n</%s>", s.tag, s.body, s.tag)
		} else {
			fmt.Fprintf(&b, "## %s\n%s", s.tag, s.body)
		}
	}
	return b.String()
}

func renderMemoryMetadata(useXML bool, meta Metadata) string {
	lines := []string{
		fmt.Sprintf("current_time: %s", meta.CurrentTime.Format("2006-01-02T15:04:05Z07:00")),
		fmt.Sprintf("last_memory_modified: %s", formatOrNever(meta.LastMemoryModified)),
		fmt.Sprintf("recall_message_count: %d", meta.RecallMessageCount),
	}
	return strings.Join(lines, "\n")
}

func formatOrNever(t interface{ IsZero() bool }) string {
	if t.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%v", t)
}

func renderBlocks(useXML bool, blocks []entity.MemoryBlock, charLimit int) string {
	var b strings.Builder
	for i, block := range blocks {
		if i > 0 {
			b.WriteString("\n")
		}
		value := block.Value
		if len(value) > charLimit {
			if useXML {
				value = value[:charLimit]
			} else {
				value = previewMarkdownValue(value, charLimit)
			}
		}
		if useXML {
			fmt.Fprintf(&b, "<block label=%q description=%q chars=\"%d/%d\">\n%s\n</block>",
				block.Label, block.Description, len(block.Value), charLimit, value)
		} else {
			fmt.Fprintf(&b, "### %s (%s) [%d/%d chars]\n%s: %s",
				block.Label, block.Description, len(block.Value), charLimit, block.Label, value)
		}
	}
	return b.String()
}

func renderToolRules(useXML bool, tools []ToolInfo) string {
	var lines []string
	for _, t := range tools {
		rule := string(t.Rule)
		if rule == "" {
			rule = "neutral"
		}
		if useXML {
			lines = append(lines, fmt.Sprintf("<tool name=%q rule=%q/>", t.Name, rule))
		} else {
			lines = append(lines, fmt.Sprintf("- %s: %s", t.Name, rule))
		}
	}
	return strings.Join(lines, "\n")
}

// previewMarkdownValue truncates a memory-block value that happens to
// contain Markdown, using goldmark's parser to find a safe break at a
// block boundary rather than cutting mid-construct.
func previewMarkdownValue(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader([]byte(value)))

	// Find the furthest block-level line boundary at or before limit, so
	// truncation lands on a clean break instead of mid-construct.
	cut := 0
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		lines := n.Lines()
		if lines == nil || lines.Len() == 0 {
			return ast.WalkContinue, nil
		}
		last := lines.At(lines.Len() - 1)
		if last.Stop <= limit && last.Stop > cut {
			cut = last.Stop
		}
		return ast.WalkContinue, nil
	})
	if cut == 0 || cut > len(value) {
		cut = limit
	}
	if cut > len(value) {
		cut = len(value)
	}
	return value[:cut]
}
