package cli

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/labbo/internal/model"
	"github.com/dukerupert/labbo/internal/notify"
	"github.com/dukerupert/labbo/internal/reminder"
)

func (a *app) equipmentCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "equipment <id>",
		Short:   "Show one equipment item",
		GroupID: "inventory",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.showEquipment(cmd, args[0])
		},
	}
}

func (a *app) scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "scan <qr-json>",
		Short:   "Look up equipment from scanned QR label data",
		Example: `  labboctl scan '{"type":"equipment","id":"0b9f3c2e-2f6a-4d0e-9a53-5c1a3f0e7d21"}'`,
		GroupID: "inventory",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := model.ParseQRPayload(args[0])
			if err != nil {
				return err
			}
			return a.showEquipment(cmd, payload.ID)
		},
	}
}

func (a *app) showEquipment(cmd *cobra.Command, id string) error {
	if _, err := a.requireSession(cmd.Context()); err != nil {
		return err
	}
	e, err := a.client.Equipment(cmd.Context(), a.sess.Token(), id)
	if err != nil {
		return fmt.Errorf("fetch equipment: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", e.Name)
	fmt.Fprintf(w, "Serial:\t%s\n", e.SerialNumber)
	fmt.Fprintf(w, "Status:\t%s\n", e.Status)
	fmt.Fprintf(w, "Condition:\t%s\n", e.Condition)
	if e.Category != "" {
		fmt.Fprintf(w, "Category:\t%s\n", e.Category)
	}
	if e.Location != "" {
		fmt.Fprintf(w, "Location:\t%s\n", e.Location)
	}
	if e.ImageURL != "" {
		fmt.Fprintf(w, "Image:\t%s\n", e.ImageURL)
	}
	return w.Flush()
}

func (a *app) remindersCmd() *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Show borrowed equipment that is due soon or overdue",
		Long: `Lists active borrowings due within the next three days. With --watch the
feed keeps polling and prints a line for every reminder it has not shown yet.`,
		GroupID: "inventory",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval <= 0 {
				return fmt.Errorf("invalid argument %q for \"--interval\" flag: must be positive", interval.String())
			}
			user, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if user.Role != model.RoleStudent {
				fmt.Fprintln(out, "Return reminders are only shown to student accounts.")
				return nil
			}

			source := a.client.DueSource(a.sess.Token())
			if !watch {
				feed := reminder.NewFeed(source, user.ID, user.Role, reminder.WithLogger(a.logger))
				if err := feed.Refresh(cmd.Context()); err != nil {
					return err
				}
				printReminders(out, feed.Active(), feed.Count())
				return nil
			}
			return a.watchReminders(cmd, source, user, interval)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep polling until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", reminder.PollInterval, "poll interval for --watch")
	return cmd
}

func (a *app) watchReminders(cmd *cobra.Command, source reminder.Source, user *model.User, interval time.Duration) error {
	center := notify.New(notify.NewWriterSurface(cmd.OutOrStdout()))
	defer center.Close()

	var mu sync.Mutex
	announced := make(map[string]int)
	onUpdate := func(active []reminder.Reminder) {
		mu.Lock()
		defer mu.Unlock()
		for _, r := range active {
			// Re-announce only when the day count moves on.
			if days, ok := announced[r.ID]; ok && days == r.DaysUntilDue {
				continue
			}
			announced[r.ID] = r.DaysUntilDue
			center.Add(reminderType(r), "Return Reminder",
				notify.WithMessage(fmt.Sprintf("%s: %s (%s)", r.EquipmentName, reminder.UrgencyText(r.DaysUntilDue), reminder.FormatDueDate(r.Due))))
		}
	}

	feed := reminder.NewFeed(source, user.ID, user.Role,
		reminder.WithInterval(interval),
		reminder.WithLogger(a.logger),
		reminder.WithOnUpdate(onUpdate),
	)
	feed.Start(cmd.Context())
	<-cmd.Context().Done()
	feed.Stop()
	return nil
}

func reminderType(r reminder.Reminder) notify.Type {
	switch {
	case r.IsOverdue:
		return notify.TypeError
	case r.DaysUntilDue == 0:
		return notify.TypeWarning
	}
	return notify.TypeInfo
}

func printReminders(out io.Writer, active []reminder.Reminder, total int) {
	if len(active) == 0 {
		fmt.Fprintln(out, "No equipment due in the next 3 days.")
		return
	}
	fmt.Fprintf(out, "Return Reminders (%d)\n", total)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, r := range active {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", r.EquipmentName, reminder.FormatDueDate(r.Due), reminder.UrgencyText(r.DaysUntilDue))
	}
	w.Flush()
	if more := total - len(active); more > 0 {
		fmt.Fprintf(out, "  ...and %d more\n", more)
	}
}
