package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/healthtrack/healthtrack/internal/platform/websocket"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream record and appointment changes until interrupted",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			u, err := a.user(cmd.Context())
			if err != nil {
				return err
			}
			topics, _ := cmd.Flags().GetStringSlice("topics")
			if len(topics) == 0 {
				if u.Role.IsDoctor() {
					topics = []string{websocket.TopicAppointments, websocket.DoctorTopic(u.ID)}
				} else {
					topics = []string{websocket.PatientTopic(u.ID)}
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(a.out, "Watching %v (Ctrl-C to stop)\n", topics)
			return websocket.Watch(ctx, a.cfg.APIBaseURL, a.gw.Token(ctx), topics, func(ev websocket.Event) {
				fmt.Fprintf(a.out, "%s  %-20s %s %s\n",
					ev.Timestamp.Local().Format("15:04:05"), ev.Type, ev.ResourceType, ev.ResourceID)
			})
		}),
	}
	cmd.Flags().StringSlice("topics", nil, "Topics to follow (default: your own)")
	return cmd
}
