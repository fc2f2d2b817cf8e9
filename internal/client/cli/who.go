package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"
)

// RunWho печатает участников сессии
func (c *Cli) RunWho(ctx context.Context) error {
	users := c.session.RefreshUsers(ctx)
	if len(users) == 0 {
		c.io.Println("No active users.")
		return nil
	}

	c.io.Printf("=== Active users (%d) ===\n", len(users))
	w := tabwriter.NewWriter(c.io, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tNAME\tCOLOR\tLAST SEEN")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.UserID, u.UserName, u.Color, u.LastActivity.Format(time.TimeOnly))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to print users: %w", err)
	}
	return nil
}
