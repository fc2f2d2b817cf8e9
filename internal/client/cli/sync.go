package cli

import (
	"context"
	"fmt"
	"text/template"

	"github.com/iudanet/shiftgrid/internal/models"
)

// RunSync отправляет накопленные изменения на сервер
func (c *Cli) RunSync(ctx context.Context) error {
	c.io.Println("=== Synchronization ===")
	c.io.Println()

	if !c.session.IsOnline() {
		c.io.Println("Server is unreachable, changes stay queued.")
		c.io.Printf("Pending: %d change(s)\n", len(c.session.PendingChanges()))
		return nil
	}

	result, err := c.session.Sync(ctx)
	if err != nil {
		return fmt.Errorf("synchronization failed: %w", err)
	}
	if result == nil {
		c.io.Println("Nothing to synchronize.")
		return nil
	}

	c.io.Println("✓ Synchronization completed")
	c.io.Println()
	c.io.Printf("Submitted:  %d change(s)\n", result.Submitted)
	c.io.Printf("Confirmed:  %d change(s)\n", result.Successful)
	if result.Rejected > 0 {
		c.io.Printf("Rejected:   %d change(s)\n", result.Rejected)
	}
	if result.Conflicts > 0 {
		c.io.Printf("Conflicts:  %d, see 'shiftgrid pending'\n", result.Conflicts)
	}
	if left := len(c.session.PendingChanges()); left > 0 {
		c.io.Printf("Still pending: %d change(s)\n", left)
	}
	return nil
}

// RunPending печатает очередь неподтвержденных изменений
func (c *Cli) RunPending(ctx context.Context) error {
	changes := c.session.PendingChanges()
	if len(changes) == 0 {
		c.io.Println("No pending changes.")
		return nil
	}

	attention := make(map[string]bool)
	for _, ch := range c.session.NeedsAttention() {
		attention[ch.ID] = true
	}

	tmpl := template.Must(template.New("pending").Parse(pendingTemplate))
	c.io.Printf("=== Pending changes (%d) ===\n", len(changes))
	for i, ch := range changes {
		data := struct {
			Change    models.PendingChange
			What      string
			N         int
			Attention bool
		}{Change: ch, What: stateOrLock(ch.Update), N: i + 1, Attention: attention[ch.ID]}
		if err := tmpl.Execute(c.io, data); err != nil {
			return fmt.Errorf("failed to render pending change: %w", err)
		}
	}
	return nil
}

// RunResolve разрешает конфликт: resolve <change-id> <local|remote|manual>
func (c *Cli) RunResolve(ctx context.Context, args []string) error {
	if err := c.requireArgs(args, 2, "resolve <change-id> <local|remote|manual>"); err != nil {
		return err
	}
	strategy := models.ConflictStrategy(args[1])
	if !strategy.IsValid() {
		return fmt.Errorf("%w: unknown strategy %q", ErrUsage, args[1])
	}

	if err := c.session.ResolveConflict(ctx, args[0], strategy); err != nil {
		return fmt.Errorf("failed to resolve %s: %w", args[0], err)
	}
	c.io.Printf("✓ Change %s resolved (%s)\n", args[0], strategy)
	return nil
}
