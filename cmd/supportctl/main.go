// supportctl is a command-line client for the support desk API.
//
// Usage:
//
//	supportctl [flags] <command> [args]
//
// Run `supportctl --help` for the list of commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/client"
)

const (
	defaultServer = "http://localhost:8080"
	passwordEnv   = "SUPPORTCTL_PASSWORD"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Getenv, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	server      string
	username    string
	password    string
	profilePath string

	ticketID    int64
	status      string
	title       string
	description string
	priority    string
	category    string
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("supportctl", pflag.ContinueOnError)
	flagSet.SetOutput(stdout)
	flagSet.StringVar(&opts.server, "server", "", "API base URL (default from profile, else "+defaultServer+")")
	flagSet.StringVarP(&opts.username, "user", "u", "", "username (default from profile)")
	flagSet.StringVarP(&opts.password, "password", "p", "", "password (default $"+passwordEnv+")")
	flagSet.StringVar(&opts.profilePath, "profile", defaultProfilePath(), "profile file")
	flagSet.Int64Var(&opts.ticketID, "id", 0, "ticket id for search")
	flagSet.StringVar(&opts.status, "status", "", "ticket status for search")
	flagSet.StringVar(&opts.title, "title", "", "ticket title for create")
	flagSet.StringVar(&opts.description, "description", "", "ticket description for create")
	flagSet.StringVar(&opts.priority, "priority", "MEDIUM", "ticket priority for create")
	flagSet.StringVar(&opts.category, "category", "OTHER", "ticket category for create")
	flagSet.Usage = func() { printUsage(stdout, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(stdout, flagSet)
		return errors.New("missing command")
	}

	profile, err := loadProfile(opts.profilePath)
	if err != nil {
		return err
	}
	if opts.server == "" {
		opts.server = profile.Server
	}
	if opts.server == "" {
		opts.server = defaultServer
	}
	if opts.username == "" {
		opts.username = profile.Username
	}
	if opts.password == "" {
		opts.password = getenv(passwordEnv)
	}

	c, err := client.NewClient(client.Config{BaseURL: opts.server})
	if err != nil {
		return err
	}
	c.SetCredentials(opts.username, opts.password)

	cmd := &command{ctx: ctx, client: c, opts: opts, out: stdout}
	name, cmdArgs := rest[0], rest[1:]
	switch name {
	case "login":
		return cmd.login()
	case "whoami":
		return cmd.whoami()
	case "tickets":
		return cmd.tickets()
	case "search":
		return cmd.search()
	case "show":
		return cmd.show(cmdArgs)
	case "create":
		return cmd.create()
	case "status":
		return cmd.setStatus(cmdArgs)
	case "delete":
		return cmd.delete(cmdArgs)
	case "audit":
		return cmd.audit(cmdArgs)
	case "comment":
		return cmd.comment(cmdArgs)
	case "comments":
		return cmd.comments(cmdArgs)
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}

type command struct {
	ctx    context.Context
	client *client.Client
	opts   options
	out    io.Writer
}

func (c *command) login() error {
	resp, err := c.client.Login(c.ctx)
	if err != nil {
		return err
	}
	if err := saveProfile(c.opts.profilePath, Profile{Server: c.opts.server, Username: resp.User.Username}); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "logged in as %s (%s)\n", resp.User.Username, resp.User.Role)
	return nil
}

func (c *command) whoami() error {
	user, err := c.client.CurrentUser(c.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s\t%s\t%s\n", user.Username, user.FullName, user.Role)
	return nil
}

func (c *command) tickets() error {
	list, err := c.client.ListTickets(c.ctx)
	if err != nil {
		return err
	}
	return printTickets(c.out, list)
}

func (c *command) search() error {
	var id *int64
	if c.opts.ticketID > 0 {
		id = &c.opts.ticketID
	}
	list, err := c.client.SearchTickets(c.ctx, id, c.opts.status)
	if err != nil {
		return err
	}
	return printTickets(c.out, list)
}

func (c *command) show(args []string) error {
	id, err := ticketArg(args, 1)
	if err != nil {
		return err
	}
	ticket, err := c.client.GetTicket(c.ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "#%d %s\n", ticket.ID, ticket.Title)
	fmt.Fprintf(c.out, "status:   %s\npriority: %s\ncategory: %s\nopened:   %s by %s\n\n%s\n",
		ticket.Status, ticket.Priority, ticket.Category,
		ticket.CreatedAt.Format("2006-01-02 15:04"), ticket.CreatedByUsername, ticket.Description)
	return nil
}

func (c *command) create() error {
	ticket, err := c.client.CreateTicket(c.ctx, dto.CreateTicketRequest{
		Title:       c.opts.title,
		Description: c.opts.description,
		Priority:    c.opts.priority,
		Category:    c.opts.category,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "created ticket #%d\n", ticket.ID)
	return nil
}

func (c *command) setStatus(args []string) error {
	id, err := ticketArg(args, 2)
	if err != nil {
		return err
	}
	ticket, err := c.client.UpdateStatus(c.ctx, id, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "ticket #%d is now %s\n", ticket.ID, ticket.Status)
	return nil
}

func (c *command) delete(args []string) error {
	id, err := ticketArg(args, 1)
	if err != nil {
		return err
	}
	if err := c.client.DeleteTicket(c.ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "deleted ticket #%d\n", id)
	return nil
}

func (c *command) audit(args []string) error {
	id, err := ticketArg(args, 1)
	if err != nil {
		return err
	}
	entries, err := c.client.AuditLog(c.ctx, id)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tWHO\tACTION\tFROM\tTO")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Username, e.Action, e.OldValue, e.NewValue)
	}
	return w.Flush()
}

func (c *command) comment(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: comment <ticket-id> <text>")
	}
	id, err := ticketArg(args[:1], 1)
	if err != nil {
		return err
	}
	created, err := c.client.AddComment(c.ctx, id, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "added comment #%d\n", created.ID)
	return nil
}

func (c *command) comments(args []string) error {
	id, err := ticketArg(args, 1)
	if err != nil {
		return err
	}
	list, err := c.client.Comments(c.ctx, id)
	if err != nil {
		return err
	}
	for _, cm := range list {
		fmt.Fprintf(c.out, "[%s] %s: %s\n", cm.CreatedAt.Format("2006-01-02 15:04"), cm.Username, cm.Content)
	}
	return nil
}

func ticketArg(args []string, want int) (int64, error) {
	if len(args) != want {
		return 0, fmt.Errorf("expected %d argument(s), got %d", want, len(args))
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ticket id %q", args[0])
	}
	return id, nil
}

func printTickets(out io.Writer, list []dto.TicketResponse) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tCATEGORY\tOWNER\tTITLE")
	for _, t := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, t.Category, t.CreatedByUsername, t.Title)
	}
	return w.Flush()
}

func printUsage(out io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprint(out, `supportctl talks to the support desk API.

Usage:
  supportctl [flags] <command> [args]

Commands:
  login                      verify credentials and save server/user to the profile
  whoami                     show the current user
  tickets                    list tickets visible to you
  search [--id N|--status S] search by id, else status, else list all
  show <id>                  show one ticket
  create --title T --description D [--priority P] [--category C]
  status <id> <STATUS>       change a ticket's status (IT support)
  delete <id>                delete a ticket (IT support)
  audit <id>                 show a ticket's audit trail (IT support)
  comment <id> <text>        add a comment
  comments <id>              list comments, newest first

Flags:
`)
	fmt.Fprint(out, flagSet.FlagUsages())
}
