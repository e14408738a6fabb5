package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bdt-io/bdt/sdk/go/auth"
	"github.com/bdt-io/bdt/sdk/go/client"
	"github.com/bdt-io/bdt/sdk/go/types"
)

var ticketCmd = &cobra.Command{
	Use:     "ticket",
	Aliases: []string{"bon"},
	Short:   "Work with tickets on a running server",
	Long: `Ticket commands call the bdt API. Log in once with 'bdt ticket login';
the token is kept in ~/.config/bdt/token.`,
}

var (
	serverFlag      string
	statusFilter    string
	manageFlag      bool
	messageFlag     string
	intervenantFlag int64
	dateFlag        string
)

var ticketLoginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and store the token",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketLogin,
}

var ticketLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, session, err := newSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		return session.Logout()
	},
}

var ticketListCmd = &cobra.Command{
	Use:   "list",
	Short: "List my tickets, or the tickets of my services with --manage",
	RunE:  runTicketList,
}

var ticketShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a ticket with its status history",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketShow,
}

var ticketStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Change the status of a ticket",
	Long: `Status applies a workflow transition. Resolving ("Résolu" or
"Non résolu") needs --message; accepting a ticket as a locked user needs
--intervenant.`,
	Args: cobra.ExactArgs(2),
	RunE: runTicketStatus,
}

func init() {
	ticketCmd.PersistentFlags().StringVar(&serverFlag, "server", envOr("BDT_SERVER_URL", "http://localhost:8080"), "Base URL of the bdt server")

	ticketListCmd.Flags().StringVar(&statusFilter, "status", "", "Only tickets in this status")
	ticketListCmd.Flags().BoolVar(&manageFlag, "manage", false, "List the tickets of the services I handle")

	ticketStatusCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Resolution message")
	ticketStatusCmd.Flags().Int64Var(&intervenantFlag, "intervenant", 0, "User id of the intervenant")
	ticketStatusCmd.Flags().StringVar(&dateFlag, "date", "", "Effective date of the change (YYYY-MM-DD)")

	ticketCmd.AddCommand(ticketLoginCmd, ticketLogoutCmd, ticketListCmd, ticketShowCmd, ticketStatusCmd)
}

// newSession restores the stored session. With required, a missing or
// expired token is an error.
func newSession(ctx context.Context, required bool) (*client.Client, *client.Session, error) {
	store, err := auth.DefaultFileStore()
	if err != nil {
		return nil, nil, err
	}
	c := client.NewClient(&client.Config{BaseURL: serverFlag})
	session := client.NewSession(c, store)
	if err := session.Init(ctx); err != nil {
		return nil, nil, err
	}
	if required && !session.LoggedIn() {
		return nil, nil, fmt.Errorf("not logged in, run 'bdt ticket login <username>'")
	}
	return c, session, nil
}

func runTicketLogin(cmd *cobra.Command, args []string) error {
	_, session, err := newSession(cmd.Context(), false)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), "Mot de passe: ")
	password, err := readLine(cmd.InOrStdin())
	if err != nil {
		return err
	}
	user, err := session.Login(cmd.Context(), args[0], password)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Connecté en tant que %s\n", user.Username)
	return nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runTicketList(cmd *cobra.Command, args []string) error {
	c, session, err := newSession(cmd.Context(), true)
	if err != nil {
		return err
	}
	opts := &types.TicketListOptions{Status: statusFilter, ListOptions: types.ListOptions{Limit: 50}}
	var page *types.Page[types.Ticket]
	if manageFlag {
		if !session.CanManageTickets() {
			return fmt.Errorf("you do not handle any service")
		}
		page, err = c.Tickets.Manage(cmd.Context(), opts)
	} else {
		page, err = c.Tickets.Mine(cmd.Context(), opts)
	}
	if err != nil {
		return err
	}
	printTickets(cmd.OutOrStdout(), page.Items)
	fmt.Fprintf(cmd.OutOrStdout(), "%d bon(s), page %d/%d\n", page.Pagination.Total, page.Pagination.Page, page.Pagination.TotalPages)
	return nil
}

func printTickets(out io.Writer, tickets []types.Ticket) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUT\tSERVICE\tINTERVENANT\tLIEU")
	for _, t := range tickets {
		intervenant := "-"
		if t.IntervenantName != nil {
			intervenant = *t.IntervenantName
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.ServiceIntervenantName, intervenant, t.Location)
	}
	w.Flush()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ticket id %q", s)
	}
	return id, nil
}

func runTicketShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	c, _, err := newSession(cmd.Context(), true)
	if err != nil {
		return err
	}
	detail, err := c.Tickets.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	t := detail.Ticket
	fmt.Fprintf(out, "Bon #%d  %s\n", t.ID, t.Status)
	fmt.Fprintf(out, "Demandeur: %s (%s)\nService:   %s\nLieu:      %s\n\n%s\n\n", t.CreatorName, t.ServiceName, t.ServiceIntervenantName, t.Location, t.Details)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tÉVÉNEMENT\tSTATUT\tPAR")
	for _, h := range detail.History {
		status := "-"
		if h.NewStatus != nil {
			status = *h.NewStatus
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", h.CreatedAt.Local().Format("2006-01-02 15:04"), h.EventType, status, h.ActorName)
	}
	return w.Flush()
}

func runTicketStatus(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	c, session, err := newSession(cmd.Context(), true)
	if err != nil {
		return err
	}
	detail, err := c.Tickets.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	form := client.NewStatusForm(c, session, detail.Ticket)
	form.NewStatus = args[1]
	form.Message = messageFlag
	if intervenantFlag > 0 {
		form.IntervenantID = &intervenantFlag
	}
	if dateFlag != "" {
		d, err := time.ParseInLocation("2006-01-02", dateFlag, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		form.StatusDate = &d
	}

	res, err := form.Submit(cmd.Context())
	if err != nil {
		if len(form.Options()) > 0 {
			return fmt.Errorf("%w (statuts possibles: %s)", err, strings.Join(form.Options(), ", "))
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Bon #%d: %s\n", res.Ticket.ID, res.Ticket.Status)
	return nil
}
