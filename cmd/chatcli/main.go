// File: cmd/chatcli/main.go
//
// chatcli is a terminal client for the chat API.
//
//	CHAT_TOKEN=$(go run ./cmd/devtoken -sub alice) go run ./cmd/chatcli -url http://localhost:8080
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/iyunix/go-chat/internal/session"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "chat server base URL")
	token := flag.String("token", os.Getenv("CHAT_TOKEN"), "bearer token (defaults to $CHAT_TOKEN)")
	chatID := flag.String("chat", "", "existing chat id to open")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "a token is required: pass -token or set CHAT_TOKEN")
		os.Exit(2)
	}

	client := session.NewClient(*baseURL, *token, nil)
	m := newModel(client, *chatID)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.attach(p)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "chatcli: %v\n", err)
		os.Exit(1)
	}
}
