package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskhub/internal/model"
	"taskhub/internal/syncclient"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "taskwatch",
		Short:   "Live view of task lists from a task hub server",
		Version: Version,
	}

	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(listCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type connectFlags struct {
	server   string
	email    string
	password string
	token    string
	status   string
	priority string
	mine     bool
}

func (f *connectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.server, "server", "s", "http://localhost:8080", "Server base URL")
	cmd.Flags().StringVarP(&f.email, "email", "e", "", "Login email")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "Login password")
	cmd.Flags().StringVar(&f.token, "token", os.Getenv("TASKHUB_TOKEN"), "Session token instead of email and password")
	cmd.Flags().StringVar(&f.status, "status", "", "Only tasks with this status")
	cmd.Flags().StringVar(&f.priority, "priority", "", "Only tasks with this priority")
	cmd.Flags().BoolVar(&f.mine, "mine", false, "Only tasks assigned to me")
}

// connect authenticates and builds the filter the flags describe.
func (f *connectFlags) connect(ctx context.Context) (*syncclient.APIClient, model.TaskFilter, error) {
	api := syncclient.NewAPIClient(f.server, nil)
	var filter model.TaskFilter

	switch {
	case f.token != "":
		api.SetToken(f.token)
	case f.email != "" && f.password != "":
		if _, err := api.Login(ctx, f.email, f.password); err != nil {
			return nil, filter, fmt.Errorf("login: %w", err)
		}
	default:
		return nil, filter, errors.New("either --token or --email and --password are required")
	}

	if f.status != "" {
		filter.Status = model.Status(f.status)
		if !filter.Status.IsValid() {
			return nil, filter, fmt.Errorf("unknown status %q", f.status)
		}
	}
	if f.priority != "" {
		filter.Priority = model.Priority(f.priority)
		if !filter.Priority.IsValid() {
			return nil, filter, fmt.Errorf("unknown priority %q", f.priority)
		}
	}
	if f.mine {
		me, err := api.Me(ctx)
		if err != nil {
			return nil, filter, fmt.Errorf("resolve current user: %w", err)
		}
		filter.AssignedToID = &me
	}
	return api, filter, nil
}

func watchCmd() *cobra.Command {
	var flags connectFlags
	var overdue bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print task lists every time the server reports a change",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			api, filter, err := flags.connect(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			session := syncclient.NewSession(api, syncclient.NewQueryCache(), syncclient.Options{
				Watch: []model.TaskFilter{filter},
				OnRefresh: func(f model.TaskFilter, tasks []model.Task) {
					now := time.Now()
					renderList(out, syncclient.Key(f), tasks, now)
					if overdue {
						renderList(out, "overdue", overdueTasks(tasks, now), now)
					}
				},
				OnAssigned: func(task model.Task) {
					renderToast(out, task)
				},
			})

			fmt.Fprintf(out, "watching %s on %s (ctrl-c to stop)\n", syncclient.Key(filter), flags.server)
			return session.Run(ctx)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&overdue, "overdue", false, "Also print the overdue tasks of each list")
	return cmd
}

func listCmd() *cobra.Command {
	var flags connectFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print a task list once",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, filter, err := flags.connect(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := api.ListTasks(cmd.Context(), filter)
			if err != nil {
				return err
			}
			renderList(cmd.OutOrStdout(), syncclient.Key(filter), tasks, time.Now())
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
