package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/di"
	"github.com/mikey/llm-daily-brief/internal/factory"
	"go.uber.org/zap"
)

const usage = `Usage: brief-cli [flags] <command> [args]

Commands:
  fetch                          Fetch recent mail into storage
  score                          Score all messages in the fetch window
  score-message <id>             Rescore one message and show the factors
  threshold                      Show the current brief threshold
  brief [-deliver]               Generate (and optionally deliver) a brief
  run                            Fetch, score, generate and deliver
  list [-window 48h]             List stored messages, highest score first
  show <id>                      Show a message with its feedback history
  feedback <id> yes|no [-priority p] [-category c] [-notes n]
                                 Record whether a message was important
  categorize <sender> <subject>  Show the category a message falls into
  prefs                          List stored preferences
  set-pref <key> <value>         Store a preference

Flags:
`

func main() {
	fs := flag.NewFlagSet("brief-cli", flag.ExitOnError)
	flags := di.RegisterFlags(fs)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	// categorize needs no storage or providers
	if fs.Arg(0) == "categorize" {
		if fs.NArg() < 3 {
			fmt.Fprintln(os.Stderr, "categorize requires <sender> <subject>")
			os.Exit(2)
		}
		fmt.Println(core.Categorize(fs.Arg(1), strings.Join(fs.Args()[2:], " ")))
		return
	}

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	err = container.Invoke(func(
		logger *zap.Logger,
		briefs *core.BriefService,
		feedback *core.FeedbackService,
		store core.Storage,
		llmFactory *factory.LLMFactory,
	) error {
		defer logger.Sync()
		defer store.Close()
		defer llmFactory.Close()

		c := &cli{briefs: briefs, feedback: feedback, logger: logger}
		return c.dispatch(context.Background(), fs.Arg(0), fs.Args()[1:])
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type cli struct {
	briefs   *core.BriefService
	feedback *core.FeedbackService
	logger   *zap.Logger
}

func (c *cli) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "fetch":
		n, err := c.briefs.Fetch(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Stored %d new messages\n", n)
	case "score":
		report, err := c.briefs.ScoreRecent(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Run %s: scored %d, failed %d in %v\n", report.RunID, report.Scored, report.Failed, report.Duration)
	case "score-message":
		if len(args) != 1 {
			return fmt.Errorf("score-message requires <id>")
		}
		b, err := c.briefs.ScoreMessage(ctx, args[0])
		if err != nil {
			return err
		}
		printBreakdown(b)
	case "threshold":
		t, err := c.briefs.Threshold(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Threshold: %.4f\n", t)
	case "brief":
		return c.brief(ctx, args)
	case "run":
		brief, err := c.briefs.Run(ctx)
		if err != nil {
			return err
		}
		printBrief(brief)
	case "list":
		return c.list(ctx, args)
	case "show":
		return c.show(ctx, args)
	case "feedback":
		return c.submitFeedback(ctx, args)
	case "prefs":
		prefs, err := c.briefs.Preferences(ctx)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(prefs))
		for k := range prefs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s = %s\n", k, prefs[k])
		}
	case "set-pref":
		if len(args) != 2 {
			return fmt.Errorf("set-pref requires <key> <value>")
		}
		return c.briefs.SetPreference(ctx, args[0], args[1])
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func (c *cli) brief(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("brief", flag.ContinueOnError)
	deliver := fs.Bool("deliver", false, "Deliver the brief after generating it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	brief, err := c.briefs.Generate(ctx)
	if err != nil {
		return err
	}
	printBrief(brief)

	if *deliver {
		if err := c.briefs.Deliver(ctx, brief); err != nil {
			return err
		}
		fmt.Println("Brief delivered")
	}
	return nil
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	window := fs.Duration("window", 48*time.Hour, "How far back to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	msgs, err := c.briefs.Recent(ctx, *window)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		fmt.Printf("%.3f  %-20s  %-30s  %s\n", m.Score, m.ID, truncate(m.Sender, 30), m.Subject)
	}
	fmt.Printf("%d messages\n", len(msgs))
	return nil
}

func (c *cli) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("show requires <id>")
	}
	msg, err := c.briefs.Message(ctx, args[0])
	if err != nil {
		return err
	}
	history, err := c.feedback.History(ctx, msg.ID)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Message ===\n")
	fmt.Printf("ID: %s\n", msg.ID)
	fmt.Printf("From: %s\n", msg.Sender)
	fmt.Printf("Subject: %s\n", msg.Subject)
	fmt.Printf("Received: %s\n", msg.ReceivedAt.Format(time.RFC1123))
	fmt.Printf("Category: %s\n", core.Categorize(msg.Sender, msg.Subject))
	fmt.Printf("Score: %.4f\n", msg.Score)
	fmt.Printf("Preview: %s\n", msg.Preview)

	fmt.Printf("\n=== Feedback ===\n")
	if len(history) == 0 {
		fmt.Println("none")
	}
	for _, f := range history {
		fmt.Printf("%s  important=%t priority=%s %s\n", f.CreatedAt.Format(time.RFC3339), f.Positive, f.Priority, f.Notes)
	}
	return nil
}

func (c *cli) submitFeedback(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("feedback requires <id> yes|no")
	}

	var positive bool
	switch strings.ToLower(args[1]) {
	case "yes", "y", "important", "true":
		positive = true
	case "no", "n", "not-important", "false":
	default:
		return fmt.Errorf("judgment must be yes or no, got %q", args[1])
	}

	fs := flag.NewFlagSet("feedback", flag.ContinueOnError)
	priority := fs.String("priority", "", "Priority label (high, medium, low)")
	category := fs.String("category", "", "Category label")
	notes := fs.String("notes", "", "Free-form notes")
	if err := fs.Parse(args[2:]); err != nil {
		return err
	}

	result, err := c.feedback.Submit(ctx, core.FeedbackInput{
		MessageID: args[0],
		Positive:  &positive,
		Priority:  core.Priority(*priority),
		Category:  *category,
		Notes:     *notes,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Recorded feedback %d for %s\n", result.Feedback.ID, args[0])
	if result.Orphaned {
		fmt.Println("Warning: message is not stored, reputation was not updated")
		return nil
	}
	fmt.Printf("Sender: %s  Category: %s\n", result.Sender, result.Category)
	if result.Rescored {
		fmt.Printf("Score: %.4f -> %.4f\n", result.PreviousScore, result.Score)
	}
	return nil
}

func printBreakdown(b *core.ScoreBreakdown) {
	fmt.Printf("\n=== Score %s ===\n", b.MessageID)
	fmt.Printf("Sender:     %.4f\n", b.Sender)
	if b.Neutral {
		fmt.Printf("Similarity: %.4f (neutral)\n", b.Similarity)
	} else {
		fmt.Printf("Similarity: %.4f\n", b.Similarity)
	}
	fmt.Printf("Keyword:    %.4f\n", b.Keyword)
	fmt.Printf("Total:      %.4f\n", b.Total)
}

func printBrief(brief *core.Brief) {
	fmt.Printf("\n=== Brief %s ===\n", brief.ID)
	fmt.Printf("Generated: %s\n", brief.GeneratedAt.Format(time.RFC1123))
	fmt.Printf("Threshold: %.4f\n", brief.Threshold)
	fmt.Printf("Selected: %d of %d (critical %d)\n", brief.Stats.SelectedCount, brief.Stats.TotalMessages, brief.Stats.CriticalCount)
	if brief.Stats.FallbackUsed {
		fmt.Println("No message passed the threshold, showing the top scored messages")
	}
	if brief.SummaryError != "" {
		fmt.Printf("Summary failed: %s\n", brief.SummaryError)
	}
	fmt.Printf("\n%s\n", brief.Text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
