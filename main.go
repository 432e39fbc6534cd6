package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/cupogo/andvari/utils/zlog"

	"github.com/bizflow/bizflow/pkg/markup"
	"github.com/bizflow/bizflow/pkg/services/chat"
	"github.com/bizflow/bizflow/pkg/settings"
	"github.com/bizflow/bizflow/pkg/web"
)

func main() {
	app := &cli.App{
		Name:    settings.Name,
		Usage:   "BizFlow assistant relay and terminal client",
		Version: settings.Current.Version,
		Before: func(c *cli.Context) error {
			var zlogger *zap.Logger
			if settings.InDevelop() {
				zlogger, _ = zap.NewDevelopment()
			} else {
				zlogger, _ = zap.NewProduction()
			}
			zlog.Set(zlogger.Sugar())
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the relay web service",
				Action: runServe,
			},
			{
				Name:  "chat",
				Usage: "talk to a running relay from the terminal",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "relay",
						Value: "http://localhost:5001",
						Usage: "base URL of the relay",
					},
					&cli.StringFlag{
						Name:  "page",
						Usage: "app route to bind as the current screen, e.g. /invoices/new",
					},
				},
				Action: runChat,
			},
			{
				Name:  "usage",
				Usage: "show the environment variables",
				Action: func(c *cli.Context) error {
					return settings.Usage()
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(c *cli.Context) error {
	srv := web.New(web.Config{
		Addr:  settings.Current.HTTPListen,
		Debug: settings.InDevelop(),
	})

	idleClosed := make(chan struct{})
	ctx := context.Background()
	go func() {
		quit := make(chan os.Signal, 2)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		zlog.Get().Info("shutting down server...")
		if err := srv.Stop(ctx); err != nil {
			zlog.Get().Infow("server shutdown:", "err", err)
		}
		close(idleClosed)
	}()

	if err := srv.Serve(ctx); err != nil {
		zlog.Get().Infow("serve fail", "err", err)
	}

	<-idleClosed
	return nil
}

func runChat(c *cli.Context) error {
	relay := c.String("relay")
	sess := chat.NewSession(chat.SessionOptions{
		Client:      chat.NewClient(relay),
		CurrentPage: c.String("page"),
		Greeting:    fetchGreeting(relay),
		OnFragment: func(frag string) {
			fmt.Print(frag)
		},
	})

	if turns := sess.Turns(); len(turns) > 0 {
		fmt.Println(turns[0].Text())
	}
	fmt.Println("\n(엔터로 전송, Ctrl-C로 응답 중단, /quit 종료)")

	// first ^C aborts the in-flight turn, at rest it exits
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT)
	go func() {
		for range sigs {
			if sess.State() == chat.StateStreaming {
				sess.Cancel()
			} else {
				os.Exit(0)
			}
		}
	}()

	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !in.Scan() {
			return in.Err()
		}
		text := strings.TrimSpace(in.Text())
		if text == "" {
			continue
		}
		if text == "/quit" {
			return nil
		}

		turn, err := sess.Send(context.Background(), text)
		if err != nil {
			// the fallback text already went through OnFragment
			fmt.Println()
			continue
		}
		_ = sess.Wait()
		fmt.Println()

		if sess.State() == chat.StateSettled {
			renderAffordances(turn.Text())
		}
	}
}

// fetchGreeting asks the relay for the conversation opener; a chat without
// one is fine.
func fetchGreeting(relay string) string {
	resp, err := http.Get(strings.TrimSuffix(relay, "/") + "/api/welcome")
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	var res struct {
		Data struct {
			Content string `json:"content"`
		} `json:"data"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return ""
	}
	return res.Data.Content
}

// renderAffordances prints the actionable pieces of a settled reply: page
// links, calculation cards and checklists. Partial replies stay plain text,
// so nothing is rendered for a cancelled turn.
func renderAffordances(text string) {
	for _, seg := range markup.Parse(text) {
		switch seg.Kind {
		case markup.KindLink:
			fmt.Printf("  ↪ %s  %s\n", seg.Label, seg.Target)
		case markup.KindCalc:
			for _, row := range seg.Rows {
				fmt.Printf("  %s: %s\n", row.Label, row.Value)
			}
			fmt.Printf("  ── %s: %s\n", seg.Total.Label, seg.Total.Value)
		case markup.KindChecklist:
			for _, item := range seg.Items {
				fmt.Printf("  [ ] %s\n", item)
			}
		}
	}
}
