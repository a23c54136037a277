// authctl - консольный клиент сервиса аутентификации.
//
//	authctl [-server URL] [-session FILE] <command> [flags]
//
// Команды: register, login, logout, private, me, profiles, home.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pribylovaa/odyssey-auth/pkg/client"
	"github.com/pribylovaa/odyssey-auth/pkg/session"
	"golang.org/x/term"
)

// Подменяются в тестах, чтобы не трогать терминал.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

const usage = `usage: authctl [-server URL] [-session FILE] <command> [flags]

commands:
  register -name N -username U -email E [-password P]
  login    -email E [-password P]
  logout
  private
  me
  profiles
  home
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	sess   *session.Session
	api    *client.Client
	in     *bufio.Reader
	out    io.Writer
	stdinF *os.File
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	server := fs.String("server", envOr("AUTH_SERVER", "http://localhost:3000"), "base URL of the auth service")
	sessionPath := fs.String("session", os.Getenv("AUTH_SESSION"), "session file (default: user config dir)")
	timeout := fs.Duration("timeout", 15*time.Second, "per-request timeout")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("command is required")
	}

	store, err := session.NewFileStore(*sessionPath)
	if err != nil {
		return err
	}

	api := client.New(*server, client.WithUserAgent("authctl"))
	a := &app{
		sess: session.New(api, store),
		api:  api,
		in:   bufio.NewReader(stdin),
		out:  stdout,
	}
	if f, ok := stdin.(*os.File); ok {
		a.stdinF = f
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "register":
		return a.register(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "logout":
		if err := a.sess.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Logout successful")
		return nil
	case "private":
		resp, err := a.sess.Private(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, resp.Message)
		return nil
	case "me":
		u, err := a.sess.Restore(ctx)
		if err != nil {
			return err
		}
		printUser(a.out, *u)
		return nil
	case "profiles":
		resp, err := a.api.Profiles(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, resp.Message)
		for _, u := range resp.Profiles {
			printUser(a.out, u)
		}
		return nil
	case "home":
		text, err := a.api.Home(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, text)
		return nil
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	username := fs.String("username", "", "username")
	email := fs.String("email", "", "email")
	password := fs.String("password", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pw, err := a.password(*password)
	if err != nil {
		return err
	}

	resp, err := a.sess.Register(ctx, client.RegisterRequest{
		Name: *name, Username: *username, Email: *email, Password: pw,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, resp.Message)
	printUser(a.out, resp.User)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "email")
	password := fs.String("password", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pw, err := a.password(*password)
	if err != nil {
		return err
	}

	resp, err := a.sess.Login(ctx, *email, pw)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, resp.Message)
	printUser(a.out, resp.User)
	return nil
}

// password возвращает пароль из флага или спрашивает его.
// На терминале ввод не отображается, иначе читается строка из stdin.
func (a *app) password(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	fmt.Fprint(a.out, "Password: ")
	defer fmt.Fprintln(a.out)

	if a.stdinF != nil && isTerminal(int(a.stdinF.Fd())) {
		pw, err := readPassword(int(a.stdinF.Fd()))
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printUser(w io.Writer, u client.User) {
	fmt.Fprintf(w, "  %s  %s <%s>  %s\n", u.ID, u.Username, u.Email, u.Name)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
