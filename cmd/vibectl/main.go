package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/nightvibe/nightvibe/internal/client"
	"github.com/nightvibe/nightvibe/internal/profile"
	"google.golang.org/grpc/status"
)

type options struct {
	json          bool
	paymentMethod string
	page          int
	limit         int
	city          string
}

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	pmFlag := flag.String("pm", "", "payment method id for purchases (e.g. pm_card_visa)")
	pageFlag := flag.Int("page", 1, "page for listing commands")
	limitFlag := flag.Int("limit", 20, "page size for listing commands")
	cityFlag := flag.String("city", "", "city filter for vendors and guides")
	flag.Usage = printUsage
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	socketPath := profile.SocketPath(name)
	c, err := client.New(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for profile %q: %v\n", name, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	opts := options{
		json:          *jsonFlag,
		paymentMethod: *pmFlag,
		page:          *pageFlag,
		limit:         *limitFlag,
		city:          *cityFlag,
	}

	// watch runs until interrupted; everything else gets a deadline.
	if args[0] == "watch" {
		need(args, 2, "watch <chat-id>")
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		cmdWatch(ctx, c, args[1], opts)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, opts)
	case "login":
		need(args, 2, "login <email>")
		cmdLogin(ctx, c, args[1], "", "", opts)
	case "signup":
		need(args, 3, "signup <email> <username> [user|vendor|guide]")
		accountType := ""
		if len(args) > 3 {
			accountType = args[3]
		}
		cmdLogin(ctx, c, args[1], args[2], accountType, opts)
	case "logout":
		check(c.Logout(ctx))
		fmt.Println("Logged out.")
	case "onboarded":
		need(args, 2, "onboarded <true|false>")
		v, err := strconv.ParseBool(args[1])
		check(err)
		check(c.SetOnboarded(ctx, v))
	case "account-type":
		need(args, 2, "account-type <user|vendor|guide>")
		cmdAccountType(ctx, c, args[1])
	case "chats":
		query := ""
		if len(args) > 1 {
			query = args[1]
		}
		cmdChats(ctx, c, query, opts)
	case "new-chat":
		need(args, 2, "new-chat <user-id> | new-chat <name> <user-id>...")
		cmdNewChat(ctx, c, args[1:], opts)
	case "open":
		need(args, 2, "open <chat-id>")
		cmdOpen(ctx, c, args[1], opts)
	case "close":
		need(args, 2, "close <chat-id>")
		check(c.CloseChat(ctx, args[1]))
	case "more":
		need(args, 2, "more <chat-id>")
		cmdMore(ctx, c, args[1], opts)
	case "send":
		need(args, 3, "send <chat-id> <text>")
		cmdSend(ctx, c, args[1], args[2], opts)
	case "retry":
		need(args, 3, "retry <chat-id> <temp-id>")
		cmdRetry(ctx, c, args[1], args[2], opts)
	case "read":
		need(args, 2, "read <chat-id>")
		check(c.MarkRead(ctx, args[1]))
	case "typing":
		need(args, 3, "typing <chat-id> <true|false>")
		cmdTyping(ctx, c, args[1], args[2])
	case "delete":
		need(args, 3, "delete <chat-id> <message-id>")
		check(c.Delete(ctx, args[1], args[2]))
	case "buy-ticket":
		need(args, 2, "buy-ticket <event-id>")
		cmdBuy(ctx, c, "ticket", args[1], opts)
	case "buy-guide":
		need(args, 2, "buy-guide <guide-id>")
		cmdBuy(ctx, c, "guide", args[1], opts)
	case "retry-confirm":
		need(args, 4, "retry-confirm <ticket|guide> <item-id> <payment-intent-id>")
		cmdRetryConfirm(ctx, c, args[1], args[2], args[3], opts)
	case "events":
		cmdEvents(ctx, c, opts)
	case "join":
		need(args, 2, "join <event-id>")
		check(c.JoinEvent(ctx, args[1]))
		fmt.Println("Joined.")
	case "vendors":
		cmdVendors(ctx, c, opts)
	case "guides":
		cmdGuides(ctx, c, opts)
	case "stats":
		cmdStats(ctx, c, opts)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: vibectl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "session:")
	fmt.Fprintln(os.Stderr, "  status                          Show daemon and session status")
	fmt.Fprintln(os.Stderr, "  login <email>                   Log in (prompts for password)")
	fmt.Fprintln(os.Stderr, "  signup <email> <username> [t]   Create an account and log in")
	fmt.Fprintln(os.Stderr, "  logout                          Log out and clear local data")
	fmt.Fprintln(os.Stderr, "  onboarded <true|false>          Set the onboarding flag")
	fmt.Fprintln(os.Stderr, "  account-type <type>             Switch the active account type")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "chat:")
	fmt.Fprintln(os.Stderr, "  chats [query]                   List or search chats")
	fmt.Fprintln(os.Stderr, "  new-chat <user> | <name> <u>... Start a direct or group chat")
	fmt.Fprintln(os.Stderr, "  open <chat>                     Open a chat and print its transcript")
	fmt.Fprintln(os.Stderr, "  close <chat>                    Close a chat")
	fmt.Fprintln(os.Stderr, "  more <chat>                     Load older messages")
	fmt.Fprintln(os.Stderr, "  watch <chat>                    Follow a transcript until interrupted")
	fmt.Fprintln(os.Stderr, "  send <chat> <text>              Send a message")
	fmt.Fprintln(os.Stderr, "  retry <chat> <temp-id>          Retry a failed message")
	fmt.Fprintln(os.Stderr, "  read <chat>                     Mark a chat read")
	fmt.Fprintln(os.Stderr, "  typing <chat> <true|false>      Send a typing indicator")
	fmt.Fprintln(os.Stderr, "  delete <chat> <message>         Delete a message")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "payments (use --pm <payment-method>):")
	fmt.Fprintln(os.Stderr, "  buy-ticket <event>              Buy an event ticket")
	fmt.Fprintln(os.Stderr, "  buy-guide <guide>               Buy a city guide")
	fmt.Fprintln(os.Stderr, "  retry-confirm <kind> <id> <pi>  Retry order confirmation after payment")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "discover:")
	fmt.Fprintln(os.Stderr, "  events | join <event> | vendors | guides | stats")
}

func need(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintf(os.Stderr, "usage: vibectl %s\n", usage)
		os.Exit(1)
	}
}

// check exits with the daemon's user-facing message on error.
func check(err error) {
	if err == nil {
		return
	}
	if s, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "error: %s\n", s.Message())
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
