package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/almanac/internal"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/taskservice"
	pkgconfig "github.com/starford/almanac/pkg/config"
)

const defaultConfigPath = "~/.config/almanac/config.yaml"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath, err := pkgconfig.ExpandPath(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	cfg := internal.NewDefaultConfig()
	created, err := pkgconfig.LoadOrCreate(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if created {
		fmt.Fprintf(os.Stderr, "wrote default config to %s\n", configPath)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

// openApp builds the components for a one-shot command and runs one
// synchronous rebuild. Logs go to stderr so stdout stays clean.
func openApp(ctx context.Context, cmd *cli.Command) (*internal.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	cfg.App.LogLevel = max(cfg.App.LogLevel, slog.LevelWarn)
	app, err := internal.NewApp(internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return nil, err
	}
	if _, err := app.Service.Rebuild(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func listTasks(ctx context.Context, cmd *cli.Command) error {
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	date, err := app.Service.ParseDay(cmd.String("date"))
	if err != nil {
		return err
	}
	tasks := app.Service.Filter(ctx, cmd.String("status"), cmd.String("context"), date)
	return printTasks(os.Stdout, taskservice.Views(tasks, date), cmd.Bool("json"))
}

func dueTasks(ctx context.Context, cmd *cli.Command) error {
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	date, err := app.Service.ParseDay(cmd.String("date"))
	if err != nil {
		return err
	}
	return printTasks(os.Stdout, taskservice.Views(app.Service.TasksDueOn(ctx, date), date), cmd.Bool("json"))
}

func addTask(ctx context.Context, cmd *cli.Command) error {
	title := strings.Join(cmd.Args().Slice(), " ")
	in := taskservice.NewTask{
		Title:    title,
		Due:      cmd.String("due"),
		Priority: cmd.String("priority"),
		Tags:     cmd.StringSlice("tag"),
		Contexts: cmd.StringSlice("context"),
	}
	if every := cmd.String("every"); every != "" {
		in.Recurrence = &models.Recurrence{
			Frequency:  every,
			DaysOfWeek: cmd.StringSlice("days"),
			DayOfMonth: int(cmd.Int("day-of-month")),
		}
	}

	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	path, err := app.Service.CreateTask(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, path)
	return nil
}

func printTasks(w io.Writer, views []taskservice.TaskView, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tTITLE\tSTATUS\tPRIORITY\tDUE\tCONTEXTS")
	for _, v := range views {
		due := v.Due
		if v.Overdue {
			due += " !"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			v.Path, v.Title, v.Status, v.Priority, due, strings.Join(v.Contexts, ","))
	}
	return tw.Flush()
}

func dateFlag() cli.Flag {
	return &cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Reference day (YYYY-MM-DD, default today)"}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a table"}
}

func main() {
	cmd := &cli.Command{
		Name:   "almanac",
		Usage:  "Task index and query engine over a directory of Markdown notes",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (.yaml or .toml)",
				DefaultText: defaultConfigPath,
				Value:       defaultConfigPath,
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with live updates",
				Action: serve,
			},
			{
				Name:   "tasks",
				Usage:  "List tasks",
				Action: listTasks,
				Flags: []cli.Flag{
					dateFlag(),
					&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "open, in-progress, done, all or archive"},
					&cli.StringFlag{Name: "context", Usage: "Only tasks with this context"},
					jsonFlag(),
				},
			},
			{
				Name:   "due",
				Usage:  "List one-off tasks due on a day",
				Action: dueTasks,
				Flags:  []cli.Flag{dateFlag(), jsonFlag()},
			},
			{
				Name:      "add",
				Usage:     "Create a task note",
				ArgsUsage: "TITLE",
				Action:    addTask,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "due", Usage: "Due day (YYYY-MM-DD)"},
					&cli.StringFlag{Name: "priority", Aliases: []string{"p"}, Usage: "low, normal or high"},
					&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Extra tag (repeatable)"},
					&cli.StringSliceFlag{Name: "context", Usage: "Context (repeatable)"},
					&cli.StringFlag{Name: "every", Usage: "Recurrence: daily, weekly, monthly or yearly"},
					&cli.StringSliceFlag{Name: "days", Usage: "Weekdays for weekly recurrence (mon,tue,...)"},
					&cli.IntFlag{Name: "day-of-month", Usage: "Day of month for monthly or yearly recurrence"},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the task tools over MCP on stdin/stdout",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
