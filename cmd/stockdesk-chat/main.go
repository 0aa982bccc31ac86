package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"stockdesk/internal/backend"
	"stockdesk/internal/chat"
	"stockdesk/internal/config"
	"stockdesk/internal/domain"
	"stockdesk/internal/session"
	"stockdesk/internal/store"
	"stockdesk/internal/util"
	"stockdesk/internal/view"
)

func main() {
	cfgPath := "config/stockdesk.yaml"
	if p := os.Getenv("STOCKDESK_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Logging.Level, os.Stderr)
	util.SetDefault(logger)

	ctx := context.Background()
	kv, err := store.NewSQLiteStore(ctx, cfg.Storage.SessionDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening session store: %v\n", err)
		os.Exit(1)
	}
	defer kv.Close()

	sess, err := session.New(ctx, kv, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading session: %v\n", err)
		os.Exit(1)
	}
	api := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, sess, logger)

	in := bufio.NewScanner(os.Stdin)
	if _, ok := sess.Credential(); !ok {
		if err := login(ctx, in, os.Stdout, api, sess); err != nil {
			fmt.Fprintf(os.Stderr, "login: %v\n", err)
			os.Exit(1)
		}
	}

	views := view.NewRegistry()
	chats := chat.New(api, views, logger)
	if err := runREPL(ctx, in, os.Stdout, chats, views, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func prompt(in *bufio.Scanner, out io.Writer, label string) (string, bool) {
	fmt.Fprint(out, label)
	if !in.Scan() {
		return "", false
	}
	return in.Text(), true
}

func login(ctx context.Context, in *bufio.Scanner, out io.Writer, api *backend.Client, sess *session.Store) error {
	username, ok := prompt(in, out, "username: ")
	if !ok {
		return io.EOF
	}
	password, ok := prompt(in, out, "password: ")
	if !ok {
		return io.EOF
	}
	token, err := api.Login(ctx, strings.TrimSpace(username), password)
	if err != nil {
		return err
	}
	return sess.SetCredential(ctx, token)
}

// runREPL sends each input line through the chat controller and prints the
// bot's reply until "exit", "quit" or end of input.
func runREPL(ctx context.Context, in *bufio.Scanner, out io.Writer, chats *chat.Controller, views *view.Registry, logger *slog.Logger) error {
	fmt.Fprintln(out, "Stock advisor chat. Type 'exit' to quit.")
	for {
		line, ok := prompt(in, out, "\n> ")
		if !ok {
			break
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "":
			continue
		}

		views.SetValue(view.ChatInput, line)
		if err := chats.HandleKey(ctx, "enter"); err != nil {
			logger.Debug("chat exchange failed", "error", err)
		}
		fmt.Fprintln(out, "\n"+lastReply(chats.Transcript()))
	}
	if err := in.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func lastReply(msgs []domain.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != domain.RoleBot {
			continue
		}
		if msgs[i].Markup {
			return strings.ReplaceAll(msgs[i].Content, "<br>", "\n")
		}
		return msgs[i].Content
	}
	return ""
}
