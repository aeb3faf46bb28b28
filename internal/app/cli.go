package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"dbusererr/internal/payload"
	"dbusererr/internal/probe"
	"dbusererr/internal/translate"
	"dbusererr/internal/usererr"
)

// NewRootCommand returns the usererr command tree. Configuration comes from
// the environment (see config.Load).
func NewRootCommand() *cobra.Command {
	return newRootCommand(New)
}

func newRootCommand(build func() (*App, error)) *cobra.Command {
	var a *App

	root := &cobra.Command{
		Use:           "usererr",
		Short:         "Turn database user-error payloads into end-user messages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = build()
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a == nil {
				return nil
			}
			return a.Close()
		},
	}

	app := func() *App { return a }
	root.AddCommand(
		newParseCommand(),
		newTranslateCommand(app),
		newProbeCommand(app),
		newServeCommand(app),
	)
	return root
}

func newParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <payload>",
		Short: "Parse a payload and print its message and parameters as JSON",
		Args:  cobra.ExactArgs(1),
		// parse needs no configuration.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := payload.Parse(args[0])
			return writeJSON(cmd.OutOrStdout(), struct {
				Message string            `json:"message"`
				Params  map[string]string `json:"params"`
			}{msg.Text, msg.Params})
		},
	}
}

func newTranslateCommand(app func() *App) *cobra.Command {
	var (
		locale  string
		sources string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "translate <error text>",
		Short: "Translate a database error message as the application would",
		Long: "Runs the error text through the configured handler. Plain text is only\n" +
			"recognized by the pdo, oracle and text sources; use --source text for bare payloads.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := handlerFromFlag(app(), sources)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if locale != "" {
				ctx = translate.WithLocale(ctx, locale)
			}

			res := resultFor(h.Handle(ctx, errors.New(args[0])))
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return err
		},
	}
	cmd.Flags().StringVar(&locale, "locale", "", "locale of the translated message")
	cmd.Flags().StringVar(&sources, "source", "", "comma separated error sources, overriding USERERR_SOURCES")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func newProbeCommand(app func() *App) *cobra.Command {
	var (
		opts    probe.Options
		locale  string
		sources string
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Run one statement in a rolled-back transaction and report the handled error",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			if opts.DSN == "" {
				opts.DSN = a.cfg.DB.DSN
			}
			if opts.Driver == "" {
				opts.Driver = a.cfg.DB.Driver
			}
			h, err := handlerFromFlag(a, sources)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if locale != "" {
				ctx = translate.WithLocale(ctx, locale)
			}

			rep, err := a.prober(h).Run(ctx, opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), struct {
				Driver string `json:"driver"`
				OK     bool   `json:"ok"`
				Result
			}{rep.Driver, rep.Err == nil, resultFor(rep.Err)})
		},
	}
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "connection string, defaults to DATABASE_URL")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "pgx, pq, mysql or sqlite; detected from the DSN when empty")
	cmd.Flags().StringVar(&opts.SQL, "sql", "", "statement to execute")
	cmd.Flags().StringVar(&opts.Migrations, "migrations", "", "golang-migrate source URL applied first, e.g. file://migrations")
	cmd.Flags().DurationVar(&opts.Wait, "wait", 0, "wait up to this long for a postgres server to accept connections")
	cmd.Flags().StringVar(&locale, "locale", "", "locale of the translated message")
	cmd.Flags().StringVar(&sources, "source", "", "comma separated error sources, overriding USERERR_SOURCES")
	_ = cmd.MarkFlagRequired("sql")
	return cmd
}

func newServeCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the translate and probe HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().Serve(cmd.Context())
		},
	}
}

func handlerFromFlag(a *App, list string) (*usererr.Handler, error) {
	if list == "" {
		return a.handlerFor(nil)
	}
	sources, err := usererr.ParseSources(list)
	if err != nil {
		return nil, err
	}
	return a.handlerFor(sources)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
