// ABOUTME: Subcommand implementations for the chatsync CLI
// ABOUTME: ask, models, agents, conversations, status, and init

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/raikolabs/chatsync/internal/config"
	"github.com/raikolabs/chatsync/internal/conversation"
	"github.com/raikolabs/chatsync/internal/remote"
	"github.com/raikolabs/chatsync/internal/store"
)

func cmdAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	model := fs.String("model", "", "model to query")
	system := fs.String("system", "", "system prompt for a fresh conversation")
	imagePath := fs.String("image", "", "image attachment path")
	cont := fs.Bool("continue", false, "continue the most recent conversation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		return nil
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	if *cont {
		if err := a.service.LoadConversations(ctx); err != nil {
			return err
		}
		snap := a.service.Snapshot()
		if len(snap.Conversations) > 0 {
			if err := a.service.SelectConversation(ctx, snap.Conversations[0]); err != nil {
				return err
			}
		}
	}

	var image []byte
	if *imagePath != "" {
		image, err = os.ReadFile(*imagePath)
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}
	}

	if err := a.service.SendPrompt(ctx, conversation.SendRequest{
		Text:         text,
		Model:        *model,
		SystemPrompt: *system,
		Image:        image,
	}); err != nil {
		return err
	}

	snap := a.service.Snapshot()
	if len(snap.Messages) == 0 {
		return nil
	}
	last := snap.Messages[len(snap.Messages)-1]

	answer := last.Content
	if answer == "" {
		answer = last.Response
	}
	fmt.Println(answer)
	printSources(last.Documents)
	return nil
}

func cmdKnowledge(args []string) error {
	fs := flag.NewFlagSet("knowledge", flag.ExitOnError)
	model := fs.String("model", "", "model to query")
	if err := fs.Parse(args); err != nil {
		return err
	}

	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		return nil
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.client.QueryKnowledge(context.Background(), text, *model)
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)
	if len(result.Documents) == 0 {
		return nil
	}

	fmt.Println()
	color.Yellow("Sources:")
	for _, d := range result.Documents {
		line := "  - " + d.ID
		if d.Distance != nil {
			line += fmt.Sprintf(" (distance %.3f)", *d.Distance)
		}
		fmt.Println(line)
	}
	return nil
}

func cmdQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	model := fs.String("model", "", "model to query")
	if err := fs.Parse(args); err != nil {
		return err
	}

	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		return nil
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.client.Query(context.Background(), text, *model)
	if err != nil {
		return err
	}

	if result.QueryExpanded != "" && result.QueryExpanded != result.Query {
		color.Yellow("Expanded query:")
		fmt.Println("  " + result.QueryExpanded)
		fmt.Println()
	}
	fmt.Println(result.Response)

	for _, group := range []struct {
		label string
		docs  []remote.Document
	}{
		{"Documents:", result.Documents},
		{"Sub-documents:", result.SubDocuments},
	} {
		if len(group.docs) == 0 {
			continue
		}
		fmt.Println()
		color.Yellow(group.label)
		for _, d := range group.docs {
			line := "  - " + d.ID
			if d.Distance != nil {
				line += fmt.Sprintf(" (distance %.3f)", *d.Distance)
			}
			fmt.Println(line)
		}
	}
	return nil
}

func printSources(docs []store.Document) {
	if len(docs) == 0 {
		return
	}

	fmt.Println()
	color.Yellow("Sources:")
	for _, d := range docs {
		line := "  - " + d.ID
		if d.Distance != nil {
			line += fmt.Sprintf(" (distance %.3f)", *d.Distance)
		}
		fmt.Println(line)
	}
}

func cmdModels(args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.models.LoadModels(context.Background()); err != nil {
		return err
	}

	models := a.models.Models()
	if len(models) == 0 {
		fmt.Println("(no models available)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPROVIDER\tIMAGES")
	fmt.Fprintln(w, "----\t--------\t------")
	for _, m := range models {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, m.Provider, yesNo(m.ImageSupport))
	}
	return w.Flush()
}

func cmdAgents(args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	loadErr := a.agents.LoadAgents(context.Background())
	agents := a.agents.Agents()
	if loadErr != nil {
		if len(agents) == 0 {
			return loadErr
		}
		color.Yellow("Backend unreachable, showing cached catalog")
	}
	if len(agents) == 0 {
		fmt.Println("(no agents available)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tIMAGES")
	fmt.Fprintln(w, "----\t----\t------")
	for _, ag := range agents {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ag.Name, ag.Type, yesNo(ag.ImageSupport))
	}
	return w.Flush()
}

func cmdConversations(args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "list":
		return listConversations(ctx, a)

	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: chatsync conversations delete <id>")
		}
		conv, err := findConversation(ctx, a, args[1])
		if err != nil {
			return err
		}
		if err := a.service.Delete(ctx, conv); err != nil {
			return err
		}
		fmt.Printf("Deleted %q\n", conv.Name)
		return nil

	case "clear":
		a.service.DeleteAllConversations(ctx)
		fmt.Println("All conversations deleted")
		return nil

	case "prune":
		if len(args) < 2 {
			return fmt.Errorf("usage: chatsync conversations prune <YYYY-MM-DD>")
		}
		day, err := time.Parse("2006-01-02", args[1])
		if err != nil {
			return fmt.Errorf("parsing date %q: %w", args[1], err)
		}
		a.service.DeleteDailyConversations(ctx, day)
		fmt.Printf("Deleted conversations from %s\n", args[1])
		return nil

	default:
		return fmt.Errorf("unknown conversations subcommand: %s", sub)
	}
}

func listConversations(ctx context.Context, a *app) error {
	if err := a.service.LoadConversations(ctx); err != nil {
		return err
	}

	convs := a.service.Snapshot().Conversations
	if len(convs) == 0 {
		fmt.Println("(no conversations)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMODEL\tUPDATED")
	fmt.Fprintln(w, "--\t----\t-----\t-------")
	for _, c := range convs {
		name := c.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", shortID(c.ID), name, c.ModelName, c.UpdatedAt.Local().Format("Jan 02 15:04"))
	}
	return w.Flush()
}

// findConversation resolves a full or prefix conversation ID.
func findConversation(ctx context.Context, a *app, id string) (*store.Conversation, error) {
	convs, err := a.store.ListConversations(ctx)
	if err != nil {
		return nil, err
	}

	var match *store.Conversation
	for _, c := range convs {
		if c.ID == id {
			return c, nil
		}
		if strings.HasPrefix(c.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("conversation id %q is ambiguous", id)
			}
			match = c
		}
	}
	if match == nil {
		return nil, fmt.Errorf("conversation %q: %w", id, store.ErrNotFound)
	}
	return match, nil
}

func cmdStatus(args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	color.New(color.FgCyan).Print(banner)
	fmt.Println()

	if a.client.Reachable(ctx) {
		fmt.Printf("Backend:   %s\n", color.GreenString("OK"))
	} else {
		fmt.Printf("Backend:   %s\n", color.RedString("UNREACHABLE"))
	}
	fmt.Printf("Endpoint:  %s\n", a.client.BaseURL())
	fmt.Printf("Database:  %s\n", a.cfg.Database.Path)

	if convs, err := a.store.ListConversations(ctx); err == nil {
		fmt.Printf("Stored:    %d conversations\n", len(convs))
	}
	return nil
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	url := fs.String("url", "", "backend endpoint URL to store")
	token := fs.String("token", "", "bearer token to store")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgPath, err := config.DefaultPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := writeDefaultConfig(cfgPath); err != nil {
			return err
		}
		fmt.Printf("Wrote config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config exists: %s\n", cfgPath)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if *url != "" || *token != "" {
		a.settings.SetEndpoint(*url, *token)
		if err := a.settings.Save(); err != nil {
			return err
		}
		fmt.Printf("Saved endpoint settings: %s\n", a.settings.Path())
	}

	fmt.Printf("Database ready: %s\n", a.cfg.Database.Path)
	return nil
}

func writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	content := fmt.Sprintf(`database:
  path: %s

remote:
  # url: http://127.0.0.1:11434
  # bearer_token: ${CHATSYNC_TOKEN}
  # knowledge_timeout: 300s
  # query_timeout: 120s

logging:
  level: info
  format: text
`, config.Default().Database.Path)

	return os.WriteFile(path, []byte(content), 0o644)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
