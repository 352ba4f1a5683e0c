package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nightvibe/nightvibe/internal/api"
	"github.com/nightvibe/nightvibe/internal/client"
	"github.com/nightvibe/nightvibe/internal/domain"
)

func cmdChats(ctx context.Context, c *client.Client, query string, opts options) {
	resp, err := c.ListChats(ctx, query)
	check(err)
	if opts.json {
		outputJSON(resp)
		return
	}
	if resp.Warning != "" {
		fmt.Printf("(%s)\n", resp.Warning)
	}
	if len(resp.Chats) == 0 {
		fmt.Println("No chats.")
		return
	}
	for _, ch := range resp.Chats {
		unread := ""
		if ch.Unread > 0 {
			unread = fmt.Sprintf(" [%d]", ch.Unread)
		}
		last := ""
		if ch.LastMessage != nil {
			last = preview(ch.LastMessage.Content, 40)
		}
		fmt.Printf("%-24s %-6s %-24s%s %s\n", ch.ID, ch.Kind, ch.Title, unread, last)
	}
}

func cmdNewChat(ctx context.Context, c *client.Client, args []string, opts options) {
	req := &api.CreateChatRequest{}
	if len(args) == 1 {
		req.UserID = args[0]
	} else {
		req.Name = args[0]
		req.ParticipantIDs = args[1:]
	}
	resp, err := c.CreateChat(ctx, req)
	check(err)
	if opts.json {
		outputJSON(resp)
		return
	}
	fmt.Printf("Chat %s (%s)\n", resp.ID, resp.Title)
}

func cmdOpen(ctx context.Context, c *client.Client, chatID string, opts options) {
	resp, err := c.OpenChat(ctx, chatID)
	check(err)
	if opts.json {
		outputJSON(resp)
		return
	}
	printTranscript(resp)
}

func cmdMore(ctx context.Context, c *client.Client, chatID string, opts options) {
	resp, err := c.LoadMore(ctx, chatID)
	check(err)
	if opts.json {
		outputJSON(resp)
		return
	}
	fmt.Printf("Loaded %d older messages (more: %v)\n", resp.Loaded, resp.HasMore)
}

func cmdSend(ctx context.Context, c *client.Client, chatID, text string, opts options) {
	resp, err := c.Send(ctx, &api.SendRequest{ChatID: chatID, Content: text})
	check(err)
	printSendResult(resp, opts)
}

func cmdRetry(ctx context.Context, c *client.Client, chatID, tempID string, opts options) {
	resp, err := c.Retry(ctx, chatID, tempID)
	check(err)
	printSendResult(resp, opts)
}

func printSendResult(resp *api.SendResponse, opts options) {
	if opts.json {
		outputJSON(resp)
		return
	}
	e := resp.Entry
	if e.Status == domain.StatusFailed {
		fmt.Printf("Not sent: %s\nRetry with: vibectl retry <chat> %s\n", e.Reason, e.TempID)
		return
	}
	fmt.Printf("%s %s\n", e.Key, e.Status)
}

func cmdTyping(ctx context.Context, c *client.Client, chatID, value string) {
	typing, err := strconv.ParseBool(value)
	check(err)
	sent, err := c.Typing(ctx, chatID, typing)
	check(err)
	if !sent {
		fmt.Println("Not connected; typing indicator dropped.")
	}
}

func cmdWatch(ctx context.Context, c *client.Client, chatID string, opts options) {
	seen := 0
	err := c.WatchTranscript(ctx, chatID, func(t *api.TranscriptResponse) error {
		if opts.json {
			outputJSON(t)
			return nil
		}
		if seen == 0 || seen > len(t.Entries) {
			printTranscript(t)
		} else {
			for _, e := range t.Entries[seen:] {
				printEntry(e)
			}
		}
		seen = len(t.Entries)
		if len(t.Typing) > 0 {
			fmt.Printf("  ... %s is typing\n", typingName(t.Typing[0]))
		}
		return nil
	})
	if ctx.Err() != nil {
		return
	}
	check(err)
}

func printTranscript(t *api.TranscriptResponse) {
	if t.Warning != "" {
		fmt.Printf("(%s)\n", t.Warning)
	}
	if t.HasMore {
		fmt.Println("  (older messages available: vibectl more <chat>)")
	}
	for _, e := range t.Entries {
		printEntry(e)
	}
}

func printEntry(e api.Entry) {
	content := e.Content
	if e.Deleted {
		content = "(deleted)"
	}
	fmt.Printf("%s  %-12s %s  [%s]\n", e.CreatedAt.Local().Format(time.TimeOnly), e.Sender.Username, content, e.Status)
}

func typingName(u api.TypingUser) string {
	if u.Username != "" {
		return u.Username
	}
	return u.UserID
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
