package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/RichardoC/talkback/internal/chat"
	"github.com/RichardoC/talkback/internal/models"
	"github.com/RichardoC/talkback/internal/settings"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

const historyFile = ".talkback_history"

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			sess, err := a.orch.Open(ctx)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			r := &repl{orch: a.orch, settings: a.settings, sess: sess, out: cmd.OutOrStdout()}
			return r.run(ctx)
		},
	}
}

type repl struct {
	orch     *chat.Orchestrator
	settings *settings.Store
	sess     *chat.Session
	out      io.Writer
}

func (r *repl) run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	history := filepath.Join(os.TempDir(), historyFile)
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, historyFile)
	}
	if f, err := os.Open(history); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.OpenFile(history, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	r.printSession()
	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		more, err := r.handle(ctx, input)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		if !more {
			return nil
		}
	}
}

func (r *repl) printSession() {
	if r.sess.Warning != "" {
		fmt.Fprintf(r.out, "! %s\n", r.sess.Warning)
	}
	title := models.DefaultThreadTitle
	if r.sess.Thread != nil {
		title = r.sess.Thread.Title
	}
	fmt.Fprintf(r.out, "# %s (%s) using %s\n", title, r.sess.ThreadID, r.sess.Model)
	for _, m := range r.sess.Messages {
		r.printMessage(m)
	}
}

func (r *repl) printMessage(m models.Message) {
	who := "assistant"
	if m.IsUser {
		who = "you"
	}
	fmt.Fprintf(r.out, "%s> %s\n", who, m.Content)
}

// handle runs one line of input. It returns false when the REPL should exit.
func (r *repl) handle(ctx context.Context, input string) (bool, error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		ex, err := r.orch.Submit(ctx, r.sess, input)
		if ex != nil {
			r.printMessage(ex.Reply)
		}
		return true, err
	}

	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return false, nil

	case "/help":
		fmt.Fprintln(r.out, "/new  /threads  /use <id>  /delete <id>  /model <id>  /quit")

	case "/new":
		_, err := r.orch.NewThread(ctx, r.sess)
		r.printSession()
		return true, err

	case "/threads":
		list, err := r.orch.ListThreads(ctx)
		if err != nil {
			return true, err
		}
		for _, t := range list {
			marker := " "
			if t.ID == r.sess.ThreadID {
				marker = "*"
			}
			fmt.Fprintf(r.out, "%s %s  %s (%d messages)\n", marker, t.ID, t.Title, len(t.Messages))
		}

	case "/use":
		if arg == "" {
			return true, errors.New("usage: /use <thread id>")
		}
		thread, err := r.orch.Thread(ctx, arg)
		if err != nil {
			return true, err
		}
		if thread == nil {
			return true, fmt.Errorf("thread %s not found", arg)
		}
		_, err = r.orch.SelectThread(ctx, r.sess, arg)
		r.printSession()
		return true, err

	case "/delete":
		if arg == "" {
			return true, errors.New("usage: /delete <thread id>")
		}
		current := r.sess.ThreadID
		if err := r.orch.DeleteThread(ctx, r.sess, arg); err != nil {
			return true, err
		}
		fmt.Fprintf(r.out, "deleted %s\n", arg)
		if arg == current {
			r.printSession()
		}

	case "/model":
		if arg == "" {
			fmt.Fprintf(r.out, "model: %s\n", r.sess.Model)
			return true, nil
		}
		if err := r.settings.SetModel(ctx, models.ModelID(arg)); err != nil {
			return true, err
		}
		_, err := r.orch.Resume(ctx, r.sess)
		fmt.Fprintf(r.out, "model: %s\n", r.sess.Model)
		if r.sess.Warning != "" {
			fmt.Fprintf(r.out, "! %s\n", r.sess.Warning)
		}
		return true, err

	default:
		return true, fmt.Errorf("unknown command %s, try /help", cmd)
	}
	return true, nil
}
