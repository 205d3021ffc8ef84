package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/tabfetch/internal/browser"
	"github.com/zjrosen/tabfetch/internal/config"
	"github.com/zjrosen/tabfetch/internal/log"
	"github.com/zjrosen/tabfetch/internal/session"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>...",
	Short: "Fetch pages without the terminal UI",
	Long: `Open each URL as a session, run its fetch jobs and print the status
log as events arrive. Exits once every job has finished.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().Bool("no-delay", false, "skip the simulated job delays")
	fetchCmd.Flags().Bool("body", false, "print each page body after the summary")
	rootCmd.AddCommand(fetchCmd)
}

// fetchOptions controls a headless run.
type fetchOptions struct {
	NoDelay  bool
	ShowBody bool
}

func runFetch(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cleanup, err := initLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	noDelay, _ := cmd.Flags().GetBool("no-delay")
	showBody, _ := cmd.Flags().GetBool("body")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fetchURLs(ctx, cfg, args, cmd.OutOrStdout(), fetchOptions{NoDelay: noDelay, ShowBody: showBody})
}

// fetchURLs drives the event loop on the calling goroutine until every job
// has reported back, then prints a per-session summary.
func fetchURLs(ctx context.Context, cfg config.Config, args []string, out io.Writer, opts fetchOptions) error {
	urls, err := normalizeAll(args)
	if err != nil {
		return err
	}

	if opts.NoDelay {
		cfg.Fetch.FaviconDelay = 0
		cfg.Fetch.PageDelay = 0
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	presenter := &linePresenter{out: out}
	loop := browser.NewLoop(session.NewRegistry(), presenter, rt.runner)

	for _, u := range urls {
		loop.Handle(browser.SessionOpenRequested{ID: session.NewID(), URL: u})
	}

	go func() {
		rt.runner.Wait()
		rt.bridge.Close()
	}()

	if err := loop.Run(ctx, rt.bridge); err != nil {
		return fmt.Errorf("fetch interrupted: %w", err)
	}

	printSummary(out, loop.Registry(), opts.ShowBody)
	return nil
}

func printSummary(out io.Writer, reg *session.Registry, showBody bool) {
	_, _ = fmt.Fprintln(out)
	for _, id := range reg.IDs() {
		info, ok := reg.Lookup(id)
		if !ok {
			continue
		}
		favicon := "none"
		if info.HasFavicon() {
			favicon = fmt.Sprintf("%dB", len(info.Favicon))
		}
		_, _ = fmt.Fprintf(out, "%s  %-16s  page=%dB  favicon=%s  %s\n",
			id.Short(), info.State(), len(info.Content), favicon, info.URL)
	}
	if !showBody {
		return
	}
	for _, id := range reg.IDs() {
		info, _ := reg.Lookup(id)
		_, _ = fmt.Fprintf(out, "\n--- %s ---\n%s\n", info.URL, info.Content)
	}
}

// linePresenter prints status lines as they arrive and tracks tab order so
// the loop sees the same positions a tab strip would give it.
type linePresenter struct {
	out  io.Writer
	tabs []browser.Content
}

var _ browser.Presenter = (*linePresenter)(nil)

func (p *linePresenter) CreateTab(hint int, _ browser.Label, content browser.Content) int {
	if hint < 0 || hint > len(p.tabs) {
		hint = len(p.tabs)
	}
	p.tabs = slices.Insert(p.tabs, hint, content)
	return hint
}

func (p *linePresenter) ReplaceTabContent(pos int, content browser.Content) int {
	if pos < 0 || pos >= len(p.tabs) {
		log.Warn(log.CatLoop, "Replace for unknown tab", "pos", pos)
		return p.CreateTab(-1, browser.Label{}, content)
	}
	p.tabs[pos] = content
	return pos
}

func (p *linePresenter) SetTabLabel(int, browser.Label) {}

func (p *linePresenter) RemoveTab(pos int) {
	if pos >= 0 && pos < len(p.tabs) {
		p.tabs = slices.Delete(p.tabs, pos, pos+1)
	}
}

func (p *linePresenter) AppendLogLine(text string) {
	_, _ = fmt.Fprintln(p.out, text)
}
