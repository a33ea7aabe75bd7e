package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/joho/godotenv"
	"github.com/vraj-wappnet/freelance-chat/internal/api"
	"github.com/vraj-wappnet/freelance-chat/internal/chat"
	"github.com/vraj-wappnet/freelance-chat/internal/config"
	"github.com/vraj-wappnet/freelance-chat/internal/stats"
	"github.com/vraj-wappnet/freelance-chat/internal/transport"
)

var (
	apiURL       string
	socketURL    string
	email        string
	password     string
	accessToken  string
	refreshToken string
	debugAddr    string
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// A missing .env file is fine; flags and the environment still apply.
	godotenv.Load()

	flag.StringVar(&apiURL, "api", envOr("CHAT_API_URL", "http://localhost:3000"), "marketplace API base URL")
	flag.StringVar(&socketURL, "socket", envOr("CHAT_SOCKET_URL", "http://localhost:3000/ws"), "messaging socket URL")
	flag.StringVar(&email, "email", os.Getenv("CHAT_EMAIL"), "login email")
	flag.StringVar(&password, "password", os.Getenv("CHAT_PASSWORD"), "login password")
	flag.StringVar(&accessToken, "token", os.Getenv("CHAT_ACCESS_TOKEN"), "access token (skips login)")
	flag.StringVar(&refreshToken, "refresh-token", os.Getenv("CHAT_REFRESH_TOKEN"), "refresh token")
	flag.StringVar(&debugAddr, "debug-addr", os.Getenv("CHAT_DEBUG_ADDR"), "address for the debug/stats listener (disabled when empty)")
	flag.Parse()

	logger := log.New(os.Stderr, "[chat] ", log.LstdFlags)

	cfg, err := config.NewConfig(apiURL, socketURL, debugAddr)
	if err != nil {
		logger.Fatal("config: ", err)
	}

	apiClient := api.NewClient(cfg.APIBaseURL, logger)

	ctx := context.Background()
	if accessToken == "" {
		if email == "" || password == "" {
			logger.Fatal("either -token or -email and -password are required")
		}
		if _, err := apiClient.Login(ctx, email, password); err != nil {
			logger.Fatal("login: ", err)
		}
	} else {
		apiClient.SetTokens(accessToken, refreshToken)
	}

	ident, err := api.IdentityFromToken(apiClient.AccessToken())
	if err != nil {
		logger.Fatal("identity: ", err)
	}
	if ident.Expired() {
		logger.Println("warning: access token is expired, requests will rely on refresh")
	}

	mux := http.NewServeMux()
	statsUpdater := stats.NewStatsUpdater(mux)
	statsUpdater.Run()
	defer statsUpdater.Stop()

	conn, err := transport.NewConn(transport.Config{
		URL:    cfg.SocketURL,
		Token:  apiClient.AccessToken(),
		UserId: ident.UserId,
	}, logger)
	if err != nil {
		logger.Fatal("transport: ", err)
	}

	session := chat.NewSession(logger, ident.User(), apiClient, conn, statsUpdater)
	defer session.Close()

	if err := conn.Start(session); err != nil {
		logger.Fatal("socket: ", err)
	}
	defer conn.Close()

	if _, err := session.LoadCounterparts(ctx); err != nil {
		logger.Println("counterparts: ", err)
	}

	var debugSrv *http.Server
	if cfg.DebugAddr != "" {
		debugSrv = &http.Server{
			Addr:    cfg.DebugAddr,
			Handler: handlers.LoggingHandler(os.Stderr, mux),
		}
		go func() {
			logger.Printf("debug listener on %s", cfg.DebugAddr)
			if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Println("debug listener: ", err)
			}
		}()
	}

	printer := newPrinter(session)
	session.OnChange(printer.render)
	printer.listCounterparts()

	go repl(session, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	logger.Printf("received signal: %s", sig)

	if debugSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := debugSrv.Shutdown(shutdownCtx); err != nil {
			logger.Println("debug listener shutdown: ", err)
		}
	}
	logger.Println("shutdown complete")
}

// repl reads commands from stdin. A plain line is sent as a message to the
// open conversation.
func repl(session *chat.Session, logger *log.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			// Line input has no keystrokes to observe, so signal typing
			// once per composed line.
			session.Typing()
			if _, err := session.Send(line); err != nil {
				logger.Println("send: ", err)
			}
			continue
		}

		cmd, rest, _ := strings.Cut(line, " ")
		switch cmd {
		case "/users":
			printCounterparts(session)
		case "/open":
			if rest == "" {
				fmt.Println("usage: /open <user-id>")
				continue
			}
			if err := session.SelectConversation(ctx, rest); err != nil {
				logger.Println("open: ", err)
			}
		case "/history":
			printHistory(session)
		case "/edit":
			messageId, content, ok := strings.Cut(rest, " ")
			if !ok {
				fmt.Println("usage: /edit <message-id> <content>")
				continue
			}
			if err := session.Edit(ctx, messageId, content); err != nil {
				logger.Println("edit: ", err)
			}
		case "/delete":
			if rest == "" {
				fmt.Println("usage: /delete <message-id>")
				continue
			}
			if err := session.Delete(ctx, rest); err != nil {
				logger.Println("delete: ", err)
			}
		case "/quit":
			syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
			return
		default:
			fmt.Printf("unknown command %q (try /users, /open, /history, /edit, /delete, /quit)\n", cmd)
		}
	}
}

func printCounterparts(session *chat.Session) {
	users := session.Directory.List()
	if len(users) == 0 {
		fmt.Println("no contacts available")
		return
	}
	for _, u := range users {
		marker := " "
		if session.Directory.IsActive(u.Id) {
			marker = "*"
		}
		fmt.Printf("%s %s  %s (%s, %s)\n", marker, u.Id, u.FullName(), u.Role, session.Presence.Status(u.Id))
	}
}

func printHistory(session *chat.Session) {
	selected, ok := session.Selected()
	if !ok {
		fmt.Println("no conversation selected")
		return
	}
	self := session.Self()
	for _, m := range session.Timeline.Visible(self.Id, selected.Id) {
		printMessage(self.Id, m.SenderId, m.Id, m.Content, m.CreatedAt)
	}
}

func printMessage(selfId, senderId, id, content string, at time.Time) {
	who := "them"
	if senderId == selfId {
		who = "you"
	}
	fmt.Printf("[%s] %s (%s): %s\n", at.Local().Format("15:04"), who, id, content)
}

// printer renders timeline growth and state changes as they happen. Change
// notifications arrive from both the socket read loop and the repl, so the
// watermark is guarded.
type printer struct {
	session *chat.Session
	mu      sync.Mutex
	printed int
}

func newPrinter(session *chat.Session) *printer {
	return &printer{session: session}
}

func (p *printer) render() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if msg := p.session.Err(); msg != "" {
		fmt.Println("! " + msg)
	}

	selected, ok := p.session.Selected()
	if !ok {
		return
	}
	self := p.session.Self()

	visible := p.session.Timeline.Visible(self.Id, selected.Id)
	if len(visible) < p.printed {
		p.printed = 0
	}
	for _, m := range visible[p.printed:] {
		printMessage(self.Id, m.SenderId, m.Id, m.Content, m.CreatedAt)
	}
	p.printed = len(visible)

	if p.session.Presence.IsTyping(selected.Id) {
		fmt.Printf("%s is typing...\n", selected.FirstName)
	}
}

func (p *printer) listCounterparts() {
	printCounterparts(p.session)
}
