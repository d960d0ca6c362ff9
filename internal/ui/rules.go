package ui

import (
	"strings"

	"github.com/abelbrown/skywatch/internal/api"
)

// RenderRules renders the rule catalog shown in rule-detail mode before a
// rule has been chosen.
func RenderRules(rules []api.Rule, cursor, width, height int) string {
	if len(rules) == 0 {
		return HelpStyle.Render("No rules in catalog.")
	}
	if height < 1 {
		height = 1
	}

	top := 0
	if cursor >= height {
		top = cursor - height + 1
	}
	bottom := top + height
	if bottom > len(rules) {
		bottom = len(rules)
	}

	var b strings.Builder
	for i := top; i < bottom; i++ {
		rule := rules[i]
		line := rule.Name
		if rule.Description != "" {
			line += "  ·  " + rule.Description
		}
		if i == cursor {
			b.WriteString(SelectedRow.Width(width).Render(line))
		} else {
			b.WriteString(NormalRow.Width(width).Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}
