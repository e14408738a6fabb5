package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	bdt "github.com/bdt-io/bdt/sdk/go"
	"github.com/bdt-io/bdt/sdk/go/client"
	"github.com/bdt-io/bdt/sdk/go/types"
)

func main() {
	c := bdt.NewClient(&bdt.Config{BaseURL: envOr("BDT_URL", "http://localhost:8080")})
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		log.Fatalf("server unreachable: %v", err)
	}

	session := bdt.NewSession(c, bdt.NewMemoryStore())
	user, err := session.Login(ctx, os.Getenv("BDT_USER"), os.Getenv("BDT_PASSWORD"))
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	fmt.Printf("Connecté en tant que %s (%s)\n", user.Username, strings.Join(user.Permissions, ", "))

	services, err := c.Services.All(ctx)
	if err != nil || len(services) == 0 {
		log.Fatalf("services: %v", err)
	}
	intervenants, err := c.ServiceIntervenants.All(ctx)
	if err != nil || len(intervenants) == 0 {
		log.Fatalf("service intervenants: %v", err)
	}

	ticket, err := c.Tickets.Create(ctx, &types.TicketCreateRequest{
		ServiceID:            services[0].ID,
		ServiceIntervenantID: intervenants[0].ID,
		Location:             "Bâtiment A, salle 12",
		Details:              "La prise murale ne fonctionne plus.",
	})
	if err != nil {
		log.Fatalf("create ticket: %v", err)
	}
	fmt.Printf("Bon #%d créé (%s)\n", ticket.ID, ticket.Status)

	if _, err := c.Messages.Send(ctx, ticket.ID, "Merci de passer **avant midi**."); err != nil {
		log.Fatalf("send message: %v", err)
	}

	if session.CanManageTickets() {
		form := client.NewStatusForm(c, session, ticket)
		form.NewStatus = "En cours"
		form.IntervenantID = &user.ID
		if !form.CanSubmit() {
			fmt.Println("Changement de statut impossible pour ce bon")
			return
		}
		res, err := form.Submit(ctx)
		if err != nil {
			log.Fatalf("status change: %v", err)
		}
		fmt.Printf("Bon #%d maintenant %s\n", res.Ticket.ID, res.Ticket.Status)
	}

	page, err := c.Tickets.Mine(ctx, &types.TicketListOptions{ListOptions: types.ListOptions{Limit: 5}})
	if err != nil {
		log.Fatalf("list tickets: %v", err)
	}
	fmt.Printf("%d bons au total\n", page.Pagination.Total)
	for _, t := range page.Items {
		fmt.Printf("- #%d %s: %s\n", t.ID, t.Status, t.Location)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
