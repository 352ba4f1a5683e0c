package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nightvibe/nightvibe/internal/api"
	"github.com/nightvibe/nightvibe/internal/client"
	"github.com/nightvibe/nightvibe/internal/payment"
)

func cmdBuy(ctx context.Context, c *client.Client, product, itemID string, opts options) {
	var (
		resp *api.PurchaseResponse
		err  error
	)
	if product == "guide" {
		resp, err = c.PurchaseGuide(ctx, itemID, opts.paymentMethod)
	} else {
		resp, err = c.PurchaseTicket(ctx, itemID, opts.paymentMethod)
	}
	check(err)
	printPurchase(product, itemID, resp, opts)
}

func cmdRetryConfirm(ctx context.Context, c *client.Client, product, itemID, intentID string, opts options) {
	resp, err := c.RetryConfirm(ctx, &api.RetryConfirmRequest{Product: product, ItemID: itemID, PaymentIntentID: intentID})
	check(err)
	printPurchase(product, itemID, resp, opts)
}

func printPurchase(product, itemID string, resp *api.PurchaseResponse, opts options) {
	if opts.json {
		outputJSON(resp)
		return
	}
	switch resp.Outcome {
	case payment.Purchased:
		fmt.Println("Payment complete.")
		if resp.TicketPath != "" {
			fmt.Printf("Ticket QR: %s\n", resp.TicketPath)
		}
	case payment.Canceled:
		fmt.Println("Payment canceled.")
	case payment.FulfillmentFailed:
		fmt.Println(resp.Message)
		fmt.Printf("Retry with: vibectl retry-confirm %s %s %s\n", product, itemID, resp.PaymentIntentID)
		os.Exit(2)
	default:
		fmt.Printf("Payment failed: %s\n", resp.Message)
		os.Exit(1)
	}
}

func cmdEvents(ctx context.Context, c *client.Client, opts options) {
	resp, err := c.ExploreEvents(ctx, opts.page, opts.limit)
	check(err)
	if opts.json {
		outputJSON(resp)
		return
	}
	if len(resp.Events) == 0 {
		fmt.Println("No events.")
		return
	}
	for _, e := range resp.Events {
		fmt.Printf("%-24s %s  %-30s %-16s %.2f\n", e.ID, e.StartsAt.Local().Format(time.DateOnly), e.Title, e.City, e.Price)
	}
}

func cmdVendors(ctx context.Context, c *client.Client, opts options) {
	resp, err := c.ListVendors(ctx, opts.page, opts.limit, opts.city)
	check(err)
	if opts.json {
		outputJSON(resp)
		return
	}
	for _, v := range resp.Vendors {
		fmt.Printf("%-24s %-30s %-16s %-12s %.1f\n", v.ID, v.Name, v.Category, v.City, v.Rating)
	}
}

func cmdGuides(ctx context.Context, c *client.Client, opts options) {
	resp, err := c.ListGuides(ctx, opts.city)
	check(err)
	if opts.json {
		outputJSON(resp)
		return
	}
	for _, g := range resp.Guides {
		fmt.Printf("%-24s %-30s %-16s %.2f\n", g.ID, g.Title, g.Author.Username, g.Price)
	}
}

func cmdStats(ctx context.Context, c *client.Client, opts options) {
	resp, err := c.Stats(ctx)
	check(err)
	if opts.json {
		outputJSON(resp)
		return
	}
	fmt.Printf("Events joined:    %d\n", resp.EventsJoined)
	fmt.Printf("Tickets bought:   %d\n", resp.TicketsBought)
	fmt.Printf("Guides purchased: %d\n", resp.GuidesPurchased)
	fmt.Printf("Chats:            %d\n", resp.Chats)
}
