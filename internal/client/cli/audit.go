package cli

import (
	"context"
	"errors"
	"fmt"
	"text/template"

	"github.com/iudanet/shiftgrid/internal/client/session"
)

// RunAudit печатает нарушения правил; с apply применяет первое предложение
// каждого нарушения
func (c *Cli) RunAudit(ctx context.Context, apply bool) error {
	violations := c.session.Audit()
	if len(violations) == 0 {
		c.io.Println("✓ No rule violations found.")
		return nil
	}

	tmpl := template.Must(template.New("violation").Parse(violationTemplate))
	c.io.Printf("Found %d violation(s):\n", len(violations))
	for i, v := range violations {
		data := struct {
			Violation any
			N         int
		}{Violation: v, N: i + 1}
		if err := tmpl.Execute(c.io, data); err != nil {
			return fmt.Errorf("failed to render violation: %w", err)
		}
	}

	if !apply {
		return nil
	}

	c.io.Println()
	applied := 0
	for _, v := range violations {
		if len(v.SuggestedActions) == 0 {
			continue
		}
		action := v.SuggestedActions[0]
		ok, err := c.session.ApplySuggestion(ctx, action.ID)
		switch {
		case errors.Is(err, session.ErrUnknownAction):
			// предложение устарело после предыдущих правок
			c.io.Printf("- skipped %s: no longer applicable\n", action.ID)
			continue
		case err != nil:
			return fmt.Errorf("failed to apply %s: %w", action.ID, err)
		case !ok:
			c.io.Printf("- skipped %s: cell is being edited by another user\n", action.ID)
			continue
		}
		applied++
		c.io.Printf("✓ %s\n", action.Description)
	}
	c.io.Printf("Applied %d suggestion(s)\n", applied)

	return nil
}
