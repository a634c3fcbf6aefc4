package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"voip_chat/internal/model"
	"voip_chat/internal/protocol/codec"
	"voip_chat/internal/service/client"
)

func (c *App) listFriends(ctx context.Context) ([]model.Friend, error) {
	return c.client.FriendsList(ctx)
}

func (c *App) history(ctx context.Context, peer string) ([]model.Record, error) {
	return c.client.Messages(ctx, client.Query{Peer: peer})
}

// parseCommand splits "/call bob" into ("call", "bob"). Plain text has an empty command.
func parseCommand(line string) (cmd, arg string) {
	if !strings.HasPrefix(line, "/") {
		return "", line
	}
	cmd, arg, _ = strings.Cut(strings.TrimPrefix(line, "/"), " ")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

func friendLabel(f model.Friend) string {
	if f.Online {
		return "[green]●[-] " + tview.Escape(f.Username)
	}
	return "[gray]○[-] " + tview.Escape(f.Username)
}

func renderFriends(friends []model.Friend) string {
	if len(friends) == 0 {
		return "No friends in the roster."
	}
	var b strings.Builder
	b.WriteString("Friends:")
	for _, f := range friends {
		state := "offline"
		if f.Online {
			state = "online"
		}
		fmt.Fprintf(&b, "\n  %s (%s)", f.Username, state)
	}
	return b.String()
}

func formatRecord(r model.Record) string {
	stamp := r.Datetime.Local().Format("2006-01-02 15:04")
	if r.Direction == model.Outgoing {
		return fmt.Sprintf("[gray]%s[-] [yellow]You:[-] %s", stamp, tview.Escape(r.Body))
	}
	return fmt.Sprintf("[gray]%s[-] [green]%s:[-] %s", stamp, tview.Escape(r.FromName), tview.Escape(r.Body))
}

// formatEvent renders a server push. SERVER_PING and unknown pushes are not shown.
func formatEvent(env model.Envelope) (string, bool) {
	switch env.Code {
	case model.SendText:
		var ev model.TextEvent
		if err := codec.Bind(env, &ev); err != nil {
			return "", false
		}
		return fmt.Sprintf("[green]%s:[-] %s", tview.Escape(ev.From), tview.Escape(ev.Message)), true
	case model.VoiceCallRequest:
		var ev model.CallEvent
		if err := codec.Bind(env, &ev); err != nil {
			return "", false
		}
		return fmt.Sprintf("[blue]%s is calling you[-]", tview.Escape(ev.From)), true
	default:
		return "", false
	}
}
