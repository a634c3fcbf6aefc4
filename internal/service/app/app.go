package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"voip_chat/internal/model"
	"voip_chat/internal/service/client"
	"voip_chat/internal/utils/log"
)

const requestTimeout = 10 * time.Second

type (
	App struct {
		app     *tview.Application
		chatbox *tview.TextView
		friends *tview.List
		input   *tview.InputField

		client *client.Client
		toName string
	}
)

func NewApp(c *client.Client) *App {
	return &App{
		app:    tview.NewApplication(),
		client: c,
	}
}

// Run asks for a recipient, loads the conversation history and blocks in the UI loop.
func (c *App) Run(ctx context.Context) error {
	friends, err := c.listFriends(ctx)
	if err != nil {
		return err
	}

	fmt.Println(renderFriends(friends))
	fmt.Print("Enter recipient's name: ")
	if _, err := fmt.Scan(&c.toName); err != nil {
		return err
	}

	history, err := c.history(ctx, c.toName)
	if err != nil {
		log.Error("load history failed", zap.Error(err))
	}

	go c.listenOnEvents()
	return c.renderUI(friends, history)
}

// Stop ends the session cleanly.
func (c *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := c.client.Disconnect(ctx); err != nil {
		log.Debug("disconnect failed", zap.Error(err))
	}
	c.app.Stop()
}

// blocking function
func (c *App) renderUI(friends []model.Friend, history []model.Record) error {
	c.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	c.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" Chat with %s ", c.toName))
	for _, r := range history {
		fmt.Fprintln(c.chatbox, formatRecord(r))
	}

	c.friends = tview.NewList().ShowSecondaryText(false)
	c.friends.SetBorder(true).SetTitle(" Friends ")
	c.fillFriends(friends)
	c.friends.SetSelectedFunc(func(_ int, _ string, name string, _ rune) {
		c.switchTo(name)
	})

	c.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" New Message (/call, /friends, /quit) ")

	c.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(c.input.GetText())
		if text == "" {
			return
		}
		c.input.SetText("")

		go func(line string) {
			if err := c.handleInput(line); err != nil {
				log.Error("command failed", zap.String("input", line), zap.Error(err))
				c.print(fmt.Sprintf("[red]error:[-] %s", tview.Escape(err.Error())))
			}
		}(text)
	})

	body := tview.NewFlex().
		AddItem(c.friends, 24, 0, false).
		AddItem(c.chatbox, 0, 1, false)
	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, false).
		AddItem(c.input, 3, 0, true)

	return c.app.SetRoot(layout, true).SetFocus(c.input).Run()
}

func (c *App) fillFriends(friends []model.Friend) {
	c.friends.Clear()
	for _, f := range friends {
		c.friends.AddItem(friendLabel(f), f.Username, 0, nil)
	}
}

func (c *App) switchTo(name string) {
	c.toName = name
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		history, err := c.history(ctx, name)
		if err != nil {
			log.Error("load history failed", zap.Error(err))
		}
		c.app.QueueUpdateDraw(func() {
			c.chatbox.Clear()
			c.chatbox.SetTitle(fmt.Sprintf(" Chat with %s ", name))
			for _, r := range history {
				fmt.Fprintln(c.chatbox, formatRecord(r))
			}
			c.app.SetFocus(c.input)
		})
	}()
}

func (c *App) handleInput(line string) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	cmd, arg := parseCommand(line)
	switch cmd {
	case "quit":
		c.Stop()
		return nil
	case "friends":
		friends, err := c.listFriends(ctx)
		if err != nil {
			return err
		}
		c.app.QueueUpdateDraw(func() { c.fillFriends(friends) })
		return nil
	case "call":
		to := arg
		if to == "" {
			to = c.toName
		}
		if err := c.client.Call(ctx, to); err != nil {
			return err
		}
		c.print(fmt.Sprintf("[blue]calling %s...[-]", tview.Escape(to)))
		return nil
	case "":
		return c.SendMessage(ctx, arg)
	default:
		return fmt.Errorf("unknown command /%s", cmd)
	}
}

func (c *App) SendMessage(ctx context.Context, msg string) error {
	notice, err := c.client.SendText(ctx, c.toName, msg)
	if err != nil {
		return err
	}
	c.print(fmt.Sprintf("[yellow]You:[-] %s", tview.Escape(msg)))
	if notice != "" && notice != "Message sent." {
		c.print(fmt.Sprintf("[gray]%s[-]", tview.Escape(notice)))
	}
	return nil
}

func (c *App) listenOnEvents() {
	for env := range c.client.Events() {
		line, ok := formatEvent(env)
		if !ok {
			continue
		}
		c.print(line)
	}
	log.Debug("event stream closed", zap.Error(c.client.Err()))
	c.app.QueueUpdateDraw(func() {
		fmt.Fprintln(c.chatbox, "[red]connection closed[-]")
	})
}

func (c *App) print(line string) {
	c.app.QueueUpdateDraw(func() {
		fmt.Fprintln(c.chatbox, line)
		c.chatbox.ScrollToEnd()
	})
}
