package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/holiman/uint256"

	"github.com/pflow-xyz/go-ticketry/account"
	"github.com/pflow-xyz/go-ticketry/bank"
	"github.com/pflow-xyz/go-ticketry/eventsource"
	"github.com/pflow-xyz/go-ticketry/ledger"
	"github.com/pflow-xyz/go-ticketry/market"
	"github.com/pflow-xyz/go-ticketry/metastore"
	"github.com/pflow-xyz/go-ticketry/registry"
)

func demo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	dbPath := fs.String("db", ":memory:", "Event database path")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ticketry demo [options]

Run an end-to-end scenario: an artist mints a ticket with a 5%% royalty,
sells it to a reseller, and the reseller flips it on the market. The
royalty goes to the artist on the resale.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := eventsource.NewSQLiteStore(*dbPath)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	admin := account.Named("admin")
	artist := account.Named("artist")
	seller := account.Named("seller")
	buyer := account.Named("buyer")

	reg := registry.New(admin, store)
	led := ledger.New("EventTickets", "ETIX", reg, store)
	bnk := bank.New()
	mkt := market.New(account.Named("market"), bnk, store)
	docs := metastore.New()

	if err := mkt.RegisterCollection(led); err != nil {
		return err
	}

	// Participants register; the admin promotes the artist.
	for _, a := range []account.Address{artist, seller, buyer} {
		if err := reg.RegisterUser(ctx, a); err != nil {
			return fmt.Errorf("register %s: %w", a.Short(), err)
		}
	}
	if err := reg.RegisterArtist(ctx, admin, artist); err != nil {
		return err
	}

	// The artist issues one ticket to the seller with a 5% royalty.
	uri := docs.Put([]byte(`{"name":"Front Row","event":"Summer Tour"}`))
	id, err := led.Mint(ctx, artist, seller, uri, artist, 500)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	fmt.Printf("Minted ticket %d to %s (metadata %s)\n", id, seller.Short(), uri)

	// The seller lists at 0.1 units and approves the market to settle.
	price := uint256.MustFromDecimal("100000000000000000")
	if err := led.SetApprovalForAll(ctx, seller, mkt.Operator(), true); err != nil {
		return err
	}
	if err := mkt.ListTicket(ctx, seller, led.Symbol(), id, price); err != nil {
		return fmt.Errorf("list: %w", err)
	}
	fmt.Printf("Listed ticket %d at %s\n", id, price)

	// The buyer funds up and pays the exact asking price.
	bnk.Deposit(buyer, price)
	sale, err := mkt.BuyTicket(ctx, buyer, led.Symbol(), id, price)
	if err != nil {
		return fmt.Errorf("buy: %w", err)
	}

	owner, err := led.OwnerOf(id)
	if err != nil {
		return err
	}
	fmt.Printf("Sold ticket %d to %s\n", id, sale.Buyer.Short())
	fmt.Printf("  owner:         %s\n", owner)
	fmt.Printf("  royalty to %s: %s\n", sale.RoyaltyRecipient.Short(), sale.RoyaltyAmount)
	fmt.Printf("  seller share:  %s\n", sale.SellerShare)
	fmt.Printf("  artist balance: %s\n", bnk.BalanceOf(artist))
	fmt.Printf("  seller balance: %s\n", bnk.BalanceOf(seller))
	fmt.Printf("  buyer balance:  %s\n", bnk.BalanceOf(buyer))

	if *dbPath != ":memory:" {
		fmt.Printf("\nAudit trail written to %s (inspect with: ticketry events %s)\n", *dbPath, *dbPath)
	}
	return nil
}
