package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
)

var (
	watchTypeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5af")).Width(18)
	watchTimeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
)

func printWatchUsage() {
	fmt.Printf("mackiebridge watch v%s\n", version)
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  mackiebridge watch [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Connects to a running daemon's status feed and prints every state")
	fmt.Println("  event (mode, modifiers, layers, VU mode, position, resync).")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -url string")
	fmt.Println("        Status websocket URL (default \"ws://127.0.0.1:3002/ws/state\")")
	fmt.Println()
	fmt.Println("  -once")
	fmt.Println("        Print the initial state and exit")
	fmt.Println()
}

// runWatchSubcommand handles the watch subcommand.
func runWatchSubcommand(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	wsURL := fs.String("url", "ws://127.0.0.1:3002/ws/state", "Status websocket URL")
	once := fs.Bool("once", false, "Print the initial state and exit")
	showHelp := fs.Bool("help", false, "Print help message")
	fs.Usage = printWatchUsage
	_ = fs.Parse(args)

	if *showHelp {
		printWatchUsage()
		return 0
	}

	u, err := url.Parse(*wsURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid websocket URL:", err)
		return 1
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: failed to connect:", err)
		return 1
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					fmt.Fprintln(os.Stderr, "websocket error:", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			fmt.Println(formatStatusFrame(message))
			if *once {
				return
			}
		}
	}()

	select {
	case <-sigc:
	case <-done:
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return 0
}

// formatStatusFrame renders one status envelope as a single line. Frames
// that are not envelopes are printed verbatim.
func formatStatusFrame(frame []byte) string {
	var env struct {
		Type string          `json:"type"`
		Ts   *time.Time      `json:"ts"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(frame, &env); err != nil || env.Type == "" {
		return string(frame)
	}

	var b bytes.Buffer
	if env.Ts != nil {
		b.WriteString(watchTimeStyle.Render(env.Ts.Local().Format("15:04:05.000")))
		b.WriteString(" ")
	}
	b.WriteString(watchTypeStyle.Render(env.Type))
	if len(env.Data) > 0 {
		var compact bytes.Buffer
		if err := json.Compact(&compact, env.Data); err == nil {
			_, _ = io.Copy(&b, &compact)
		} else {
			b.Write(env.Data)
		}
	}
	return b.String()
}
