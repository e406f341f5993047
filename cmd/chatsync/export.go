// ABOUTME: HTML export of a conversation transcript
// ABOUTME: Builds markdown from the stored messages and renders it with goldmark

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/raikolabs/chatsync/internal/store"
)

const exportPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { max-width: 48rem; margin: 2rem auto; padding: 0 1rem; font-family: sans-serif; line-height: 1.5; }
h1 { border-bottom: 2px solid #ddd; padding-bottom: .5rem; }
h2 { color: #555; margin-top: 2rem; }
blockquote { border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; color: #666; }
code { background: #f4f4f4; padding: .1rem .3rem; }
</style>
</head>
<body>
%s
</body>
</html>
`

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "", "output HTML file (default: <id>.html)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	var conv *store.Conversation
	if id := fs.Arg(0); id != "" {
		conv, err = findConversation(ctx, a, id)
	} else {
		conv, err = latestConversation(ctx, a)
	}
	if err != nil {
		return err
	}

	msgs, err := a.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return err
	}

	md := transcriptMarkdown(conv, msgs)

	var body bytes.Buffer
	if err := goldmark.Convert([]byte(md), &body); err != nil {
		return fmt.Errorf("rendering transcript: %w", err)
	}

	outPath := *out
	if outPath == "" {
		outPath = shortID(conv.ID) + ".html"
	}

	page := fmt.Sprintf(exportPage, htmlTitle(conv.Name), body.String())
	if err := os.WriteFile(outPath, []byte(page), 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}

	fmt.Printf("Exported %d messages to %s\n", len(msgs), outPath)
	return nil
}

func latestConversation(ctx context.Context, a *app) (*store.Conversation, error) {
	convs, err := a.store.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, fmt.Errorf("nothing to export: %w", store.ErrNotFound)
	}
	return convs[0], nil
}

// transcriptMarkdown renders the conversation as markdown headings per
// turn, with retrieval sources as a trailing list.
func transcriptMarkdown(conv *store.Conversation, msgs []*store.Message) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", conv.Name)
	if conv.ModelName != "" {
		fmt.Fprintf(&b, "*Model: %s*\n\n", conv.ModelName)
	}

	for _, m := range msgs {
		switch m.Role {
		case store.RoleSystem:
			b.WriteString("## System\n\n")
		case store.RoleUser:
			b.WriteString("## User\n\n")
		default:
			b.WriteString("## Assistant\n\n")
		}

		content := m.Content
		if content == "" {
			content = m.Response
		}
		b.WriteString(content)
		b.WriteString("\n\n")

		if len(m.Image) > 0 {
			b.WriteString("*(image attached)*\n\n")
		}
		if m.Error {
			b.WriteString("*(this exchange failed)*\n\n")
		}

		if len(m.Documents) > 0 {
			b.WriteString("Sources:\n\n")
			for _, d := range m.Documents {
				if d.Distance != nil {
					fmt.Fprintf(&b, "- %s (distance %.3f)\n", d.ID, *d.Distance)
				} else {
					fmt.Fprintf(&b, "- %s\n", d.ID)
				}
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func htmlTitle(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
