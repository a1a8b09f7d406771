// Explorer terminal client
//
// Sub-commands:
//
//	explorer login [-server url] [-u user] [-p pass]   Log in and save the token
//	explorer logout                                     Revoke and delete the token
//	explorer [-server url] [path]                       Browse, starting at path
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/fruitsalade/explorer/internal/browse"
	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/tui"
	"github.com/fruitsalade/explorer/pkg/client"
)

const defaultServer = "http://localhost:8080"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "login":
			cmdLogin(os.Args[2:])
			return
		case "logout":
			cmdLogout(os.Args[2:])
			return
		case "browse":
			os.Args = append(os.Args[:1], os.Args[2:]...)
		}
	}

	cmdBrowse(os.Args[1:])
}

// initLogging keeps the terminal free for the UI; logs go to logFile or
// nowhere.
func initLogging(logFile string) {
	if logFile == "" {
		logging.Replace(zap.NewNop())
		return
	}
	if err := logging.Init(logging.Config{Level: "debug", Format: "console", OutputPath: logFile}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to open log file: %v\n", err)
		logging.Replace(zap.NewNop())
	}
}

func cmdLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	serverURL := fs.String("server", defaultServer, "Server URL")
	username := fs.String("u", "", "Username")
	password := fs.String("p", "", "Password (prompted when empty)")
	deviceName := fs.String("device", "", "Device name (default: hostname)")
	fs.Parse(args)
	initLogging("")

	if *deviceName == "" {
		name, _ := os.Hostname()
		*deviceName = name
	}

	if *username == "" {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Username: ")
		line, _ := reader.ReadString('\n')
		*username = strings.TrimSpace(line)
	}
	if *password == "" {
		fmt.Print("Password: ")
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
			os.Exit(1)
		}
		*password = string(b)
	}

	c := client.New(client.Config{ServerURL: *serverURL, Timeout: 30 * time.Second})
	resp, err := c.Login(context.Background(), *username, *password, *deviceName)
	switch {
	case errors.Is(err, browse.ErrUnauthorized):
		fmt.Fprintln(os.Stderr, "Invalid username or password.")
		os.Exit(1)
	case client.IsStatus(err, http.StatusBadRequest):
		fmt.Fprintln(os.Stderr, "Username and password are required.")
		os.Exit(1)
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	tf := &client.TokenFile{
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
		Server:    strings.TrimSuffix(*serverURL, "/"),
		Username:  resp.User.Username,
	}
	path := client.TokenFilePath()
	if err := client.SaveToken(path, tf); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save token: %v\n", err)
	}
	fmt.Printf("Login successful! Logged in as %s. Token saved to %s\n", resp.User.Username, path)
}

func cmdLogout(args []string) {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	fs.Parse(args)
	initLogging("")

	path := client.TokenFilePath()
	tf, err := client.LoadToken(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No saved token found.\n")
		os.Exit(1)
	}

	c := client.New(client.Config{ServerURL: tf.Server, AuthToken: tf.Token, Timeout: 10 * time.Second})
	if err := c.Logout(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Server logout failed (token may already be expired): %v\n", err)
	}

	if err := client.DeleteToken(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to delete token file: %v\n", err)
	}
	fmt.Println("Logged out successfully.")
}

func cmdBrowse(args []string) {
	fs := flag.NewFlagSet("browse", flag.ExitOnError)
	serverURL := fs.String("server", "", "Server URL (default: from saved token)")
	token := fs.String("token", "", "JWT authentication token (default: saved token)")
	logFile := fs.String("log", "", "Write debug logs to this file")
	fs.Parse(args)
	initLogging(*logFile)
	defer logging.Sync()

	startPath := "/"
	if fs.NArg() > 0 {
		startPath = fs.Arg(0)
	}

	cfg := client.Config{ServerURL: *serverURL, AuthToken: *token, Timeout: 30 * time.Second}
	tf, err := client.LoadToken(client.TokenFilePath())
	switch {
	case err == nil:
		if cfg.ServerURL == "" {
			cfg.ServerURL = tf.Server
		}
		if cfg.AuthToken == "" {
			if tf.IsExpired(0) {
				fmt.Fprintln(os.Stderr, "Saved token has expired. Run 'explorer login' again.")
				os.Exit(1)
			}
			cfg.AuthToken = tf.Token
		}
	case !errors.Is(err, os.ErrNotExist):
		fmt.Fprintf(os.Stderr, "Warning: failed to read saved token: %v\n", err)
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = defaultServer
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := client.New(cfg)
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	err = c.Ping(pingCtx)
	pingCancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server unreachable at %s: %v\n", cfg.ServerURL, err)
		os.Exit(1)
	}

	model := tui.New(ctx, c, startPath)
	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m, ok := final.(tui.Model); ok && m.LoginRequired() {
		fmt.Fprintln(os.Stderr, "Not logged in. Run 'explorer login' first.")
		os.Exit(1)
	}
}
