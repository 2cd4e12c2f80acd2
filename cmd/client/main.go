// Command presence-cli is a terminal client for the presence service.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-service/internal/client"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: presence-cli [-server URL] <command> [args]

commands:
  signup   -name NAME -email EMAIL -password PW -bio BIO
  login    -email EMAIL -password PW
  logout
  whoami
  update   [-name NAME] [-bio BIO] [-pic FILE]
  watch    stay connected and print the online set as it changes`)
	os.Exit(2)
}

func main() {
	server := flag.String("server", envOr("PRESENCE_SERVER", "http://localhost:5000"), "backend base URL")
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		usage()
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync() //nolint:errcheck

	ctrl := client.NewController(
		client.NewHTTPAPI(*server),
		client.NewWebsocketDialer(*server),
		client.NewFileTokenStore(),
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch args[0] {
	case "signup":
		err = runSignup(ctx, ctrl, args[1:])
	case "login":
		err = runLogin(ctx, ctrl, args[1:])
	case "logout":
		err = runLogout(ctx, ctrl)
	case "whoami":
		err = runWhoami(ctx, ctrl)
	case "update":
		err = runUpdate(ctx, ctrl, args[1:])
	case "watch":
		cancel()
		err = runWatch(ctrl)
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runSignup(ctx context.Context, ctrl *client.Controller, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email")
	password := fs.String("password", "", "password")
	bio := fs.String("bio", "", "bio")
	_ = fs.Parse(args)

	if err := ctrl.Signup(ctx, *name, *email, *password, *bio); err != nil {
		return err
	}
	fmt.Printf("signed up as %s\n", ctrl.CurrentUser().Email)
	return nil
}

func runLogin(ctx context.Context, ctrl *client.Controller, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "email")
	password := fs.String("password", "", "password")
	_ = fs.Parse(args)

	if err := ctrl.Login(ctx, *email, *password); err != nil {
		return err
	}
	fmt.Printf("logged in as %s\n", ctrl.CurrentUser().Email)
	return nil
}

func runLogout(ctx context.Context, ctrl *client.Controller) error {
	if err := ctrl.Restore(ctx); err != nil {
		return err
	}
	return ctrl.Logout(ctx)
}

func runWhoami(ctx context.Context, ctrl *client.Controller) error {
	if err := ctrl.Restore(ctx); err != nil {
		return err
	}
	user := ctrl.CurrentUser()
	if user == nil {
		fmt.Println("not logged in")
		return nil
	}
	fmt.Printf("%s <%s>\n%s\n", user.FullName, user.Email, user.Bio)
	return nil
}

func runUpdate(ctx context.Context, ctrl *client.Controller, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	name := fs.String("name", "", "full name")
	bio := fs.String("bio", "", "bio")
	pic := fs.String("pic", "", "path to a PNG or JPEG profile picture")
	_ = fs.Parse(args)

	if err := ctrl.Restore(ctx); err != nil {
		return err
	}

	dataURL := ""
	if *pic != "" {
		var err error
		dataURL, err = encodeImage(*pic)
		if err != nil {
			return err
		}
	}
	if err := ctrl.UpdateProfile(ctx, *name, *bio, dataURL); err != nil {
		return err
	}
	fmt.Println("profile updated")
	return nil
}

func runWatch(ctrl *client.Controller) error {
	ctx := context.Background()
	if err := ctrl.Restore(ctx); err != nil {
		return err
	}
	if ctrl.CurrentUser() == nil {
		return fmt.Errorf("not logged in")
	}

	fmt.Println("watching online users (Ctrl-C to stop)")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var last string
	for {
		select {
		case <-ticker.C:
			current := strings.Join(ctrl.OnlineUsers(), ", ")
			if current != last {
				fmt.Printf("online: [%s]\n", current)
				last = current
			}
		case <-sigCh:
			return ctrl.Logout(ctx)
		}
	}
}

func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mime := "image/png"
	if strings.HasSuffix(strings.ToLower(path), ".jpg") || strings.HasSuffix(strings.ToLower(path), ".jpeg") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
