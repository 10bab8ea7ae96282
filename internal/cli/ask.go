package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/insight/internal/history"
	"github.com/MikeSquared-Agency/insight/internal/orchestrator"
	"github.com/MikeSquared-Agency/insight/internal/query"
)

// askOptions are the per-question flags shared by ask and chat.
type askOptions struct {
	datasetID string
	category  string
	fallback  string
}

func (o *askOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.datasetID, "dataset", "d", "", "Dataset id to ask about")
	cmd.Flags().StringVarP(&o.category, "type", "t", "", "Query type (general, correlation, data_quality, visualization, feature_engineering, predictive_modeling)")
	cmd.Flags().StringVar(&o.fallback, "fallback-provider", "", "Provider to fall back to (default: the other one)")
}

func (a *app) submission(text string, o *askOptions) (query.Submission, error) {
	primary, err := query.ParseProvider(a.provider)
	if err != nil {
		return query.Submission{}, err
	}
	category := query.Category(strings.ToLower(strings.TrimSpace(o.category)))
	sub := query.NewSubmission(text, strings.TrimSpace(o.datasetID), primary, category, "")
	sub.EnableFallback = a.fallback
	if o.fallback != "" {
		fb, err := query.ParseProvider(o.fallback)
		if err != nil {
			return query.Submission{}, err
		}
		sub.Fallback = fb
	}
	return sub, nil
}

func (a *app) orchestrator(rec orchestrator.Recorder) *orchestrator.Orchestrator {
	return orchestrator.New(a.client, orchestrator.Options{
		CallTimeout: a.timeout,
		Recorder:    rec,
		Session:     a.identity,
		Logger:      slog.Default(),
		OnTransition: func(from, to orchestrator.State) {
			slog.Debug("orchestrator state", "from", from, "to", to)
		},
	})
}

func newAskCommand(a *app) *cobra.Command {
	var (
		opts   askOptions
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question",
		Args:  cobra.MinimumNArgs(1),
		Example: `  insight ask "What is the average price?" --dataset 3f2c...
  insight ask "Which columns correlate?" -d 3f2c... -t correlation -p deepseek`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := a.submission(strings.Join(args, " "), &opts)
			if err != nil {
				return err
			}
			rec, err := a.orchestrator(nil).Submit(cmd.Context(), sub)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			renderRecord(out, rec)
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the answer as JSON")
	return cmd
}

const chatHelp = `Commands:
  /history [term]     list this session's questions, optionally filtered
  /show <query-id>    show a previous answer
  /dataset <id|none>  change the dataset
  /type <query-type>  change the query type
  /provider <name>    change the primary provider
  /clear              clear this session's history
  /help               show this help
  /quit               leave`

func newChatCommand(a *app) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.identity.GetOrCreate()
			if err != nil {
				return err
			}
			c := &chat{
				app:   a,
				opts:  opts,
				store: history.New(session),
				out:   cmd.OutOrStdout(),
			}
			c.orch = a.orchestrator(c.store)
			return c.run(cmd.Context(), cmd.InOrStdin())
		},
	}
	opts.bind(cmd)
	return cmd
}

type chat struct {
	app   *app
	opts  askOptions
	store *history.Store
	orch  *orchestrator.Orchestrator
	out   io.Writer
}

func (c *chat) run(ctx context.Context, in io.Reader) error {
	if records, err := c.app.client.History(ctx, c.store.SessionID()); err != nil {
		slog.Warn("could not load session history", "error", err)
	} else {
		c.store.Replace(records)
	}

	fmt.Fprintln(c.out, headerStyle.Render("insight chat")+"  "+idStyle.Render("session "+c.store.SessionID()))
	fmt.Fprintln(c.out, dateStyle.Render("Type a question, or /help for commands."))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, titleStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if done := c.command(ctx, line); done {
				return nil
			}
			continue
		}
		c.ask(ctx, line)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *chat) ask(ctx context.Context, text string) {
	sub, err := c.app.submission(text, &c.opts)
	if err != nil {
		c.fail(err)
		return
	}
	rec, err := c.orch.Submit(ctx, sub)
	var dup *query.DuplicateRecordError
	switch {
	case err == nil:
	case errors.As(err, &dup):
		slog.Warn("answer already in history", "query_id", dup.QueryID)
	default:
		c.fail(err)
		return
	}
	if _, err := c.store.Select(rec.QueryID); err != nil {
		slog.Debug("answer not selectable", "query_id", rec.QueryID, "error", err)
	}
	renderRecord(c.out, rec)
}

// command handles one slash command and reports whether the loop should end.
func (c *chat) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(c.out, chatHelp)
	case "/history":
		renderRecords(c.out, slices.Collect(c.store.Search(arg)))
	case "/show":
		rec, err := c.store.Select(arg)
		if err != nil {
			c.fail(fmt.Errorf("no query %q in this session", arg))
			return false
		}
		renderRecord(c.out, rec)
	case "/dataset":
		if arg == "none" {
			arg = ""
		}
		c.opts.datasetID = arg
		fmt.Fprintln(c.out, successStyle.Render("dataset: ")+orNone(arg))
	case "/type":
		if !query.Category(arg).Valid() {
			c.fail(fmt.Errorf("unknown query type %q", arg))
			return false
		}
		c.opts.category = arg
		fmt.Fprintln(c.out, successStyle.Render("query type: ")+orNone(arg))
	case "/provider":
		p, err := query.ParseProvider(arg)
		if err != nil {
			c.fail(err)
			return false
		}
		c.app.provider = string(p)
		fmt.Fprintln(c.out, successStyle.Render("provider: ")+string(p))
	case "/clear":
		if err := c.app.client.ClearHistory(ctx, c.store.SessionID()); err != nil {
			c.fail(err)
			return false
		}
		c.store.Clear()
		fmt.Fprintln(c.out, successStyle.Render("history cleared"))
	default:
		c.fail(fmt.Errorf("unknown command %s (try /help)", name))
	}
	return false
}

func (c *chat) fail(err error) {
	fmt.Fprintln(c.out, errorStyle.Render("Error: ")+err.Error())
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
