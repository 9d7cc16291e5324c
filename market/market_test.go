package market

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/pflow-xyz/go-ticketry/account"
	"github.com/pflow-xyz/go-ticketry/bank"
	"github.com/pflow-xyz/go-ticketry/eventsource"
	"github.com/pflow-xyz/go-ticketry/ledger"
	"github.com/pflow-xyz/go-ticketry/registry"
)

var (
	admin  = account.Named("admin")
	artist = account.Named("artist")
	seller = account.Named("seller")
	buyer  = account.Named("buyer")
)

type fixture struct {
	market *Market
	ledger *ledger.Ledger
	bank   *bank.Bank
	store  eventsource.Store
}

// newFixture mints one ticket with a 5% royalty to the seller, who has
// already granted the market operator approval.
func newFixture(t *testing.T) (*fixture, uint64) {
	t.Helper()
	ctx := context.Background()

	store := eventsource.NewMemoryStore()
	reg := registry.New(admin, store)
	if err := reg.RegisterArtist(ctx, admin, artist); err != nil {
		t.Fatal(err)
	}

	led := ledger.New("EventTickets", "ETIX", reg, store)
	bnk := bank.New()
	mkt := New(account.Named("market"), bnk, store)
	if err := mkt.RegisterCollection(led); err != nil {
		t.Fatal(err)
	}

	id, err := led.Mint(ctx, artist, seller, "cid:abc", artist, 500)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := led.SetApprovalForAll(ctx, seller, mkt.Operator(), true); err != nil {
		t.Fatalf("SetApprovalForAll: %v", err)
	}

	return &fixture{market: mkt, ledger: led, bank: bnk, store: store}, id
}

// interfere appends an out-of-band event to a stream so the next journaled
// append from its owning component hits a concurrency conflict.
func (f *fixture) interfere(t *testing.T, streamID string) {
	t.Helper()
	ctx := context.Background()

	version, err := f.store.StreamVersion(ctx, streamID)
	if err != nil {
		t.Fatal(err)
	}
	e, err := eventsource.NewEvent(streamID, "OutOfBand", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.Append(ctx, streamID, version, []*eventsource.Event{e}); err != nil {
		t.Fatal(err)
	}
}

func TestListTicket(t *testing.T) {
	ctx := context.Background()
	f, id := newFixture(t)

	t.Run("zero price rejected", func(t *testing.T) {
		err := f.market.ListTicket(ctx, seller, "ETIX", id, uint256.NewInt(0))
		if !errors.Is(err, ErrInvalidPrice) {
			t.Errorf("expected ErrInvalidPrice, got %v", err)
		}
		err = f.market.ListTicket(ctx, seller, "ETIX", id, nil)
		if !errors.Is(err, ErrInvalidPrice) {
			t.Errorf("expected ErrInvalidPrice for nil, got %v", err)
		}
	})

	t.Run("non-owner rejected", func(t *testing.T) {
		err := f.market.ListTicket(ctx, buyer, "ETIX", id, uint256.NewInt(100))
		if !errors.Is(err, ErrNotOwner) {
			t.Errorf("expected ErrNotOwner, got %v", err)
		}
	})

	t.Run("unknown collection rejected", func(t *testing.T) {
		err := f.market.ListTicket(ctx, seller, "NOPE", id, uint256.NewInt(100))
		if !errors.Is(err, ErrUnknownCollection) {
			t.Errorf("expected ErrUnknownCollection, got %v", err)
		}
	})

	if err := f.market.ListTicket(ctx, seller, "ETIX", id, uint256.NewInt(100)); err != nil {
		t.Fatalf("ListTicket: %v", err)
	}

	listing, err := f.market.Listing("ETIX", id)
	if err != nil {
		t.Fatalf("Listing: %v", err)
	}
	if listing.Seller != seller || listing.Price.Uint64() != 100 {
		t.Errorf("unexpected listing: %+v", listing)
	}

	t.Run("re-listing replaces silently", func(t *testing.T) {
		if err := f.market.ListTicket(ctx, seller, "ETIX", id, uint256.NewInt(200)); err != nil {
			t.Fatalf("re-list: %v", err)
		}
		listing, err := f.market.Listing("ETIX", id)
		if err != nil {
			t.Fatal(err)
		}
		if listing.Price.Uint64() != 200 {
			t.Errorf("expected replaced price 200, got %s", listing.Price)
		}
		if got := len(f.market.Listings()); got != 1 {
			t.Errorf("expected 1 listing, got %d", got)
		}
	})
}

func TestCancelListing(t *testing.T) {
	ctx := context.Background()
	f, id := newFixture(t)

	t.Run("not listed", func(t *testing.T) {
		err := f.market.CancelListing(ctx, seller, "ETIX", id)
		if !errors.Is(err, ErrNotListed) {
			t.Errorf("expected ErrNotListed, got %v", err)
		}
	})

	if err := f.market.ListTicket(ctx, seller, "ETIX", id, uint256.NewInt(100)); err != nil {
		t.Fatal(err)
	}

	t.Run("only seller may cancel", func(t *testing.T) {
		err := f.market.CancelListing(ctx, buyer, "ETIX", id)
		if !errors.Is(err, ErrNotSeller) {
			t.Errorf("expected ErrNotSeller, got %v", err)
		}
	})

	if err := f.market.CancelListing(ctx, seller, "ETIX", id); err != nil {
		t.Fatalf("CancelListing: %v", err)
	}
	if _, err := f.market.Listing("ETIX", id); !errors.Is(err, ErrNotListed) {
		t.Errorf("listing still present after cancel: %v", err)
	}
}

func TestBuyTicket(t *testing.T) {
	ctx := context.Background()
	f, id := newFixture(t)

	price := uint256.MustFromDecimal("100000000000000000") // 0.1 units
	if err := f.market.ListTicket(ctx, seller, "ETIX", id, price); err != nil {
		t.Fatal(err)
	}
	f.bank.Deposit(buyer, price)

	t.Run("payment must match exactly", func(t *testing.T) {
		_, err := f.market.BuyTicket(ctx, buyer, "ETIX", id, uint256.NewInt(1))
		if !errors.Is(err, ErrInsufficientPayment) {
			t.Errorf("expected ErrInsufficientPayment, got %v", err)
		}

		over := new(uint256.Int).AddUint64(price, 1)
		_, err = f.market.BuyTicket(ctx, buyer, "ETIX", id, over)
		if !errors.Is(err, ErrOverPayment) {
			t.Errorf("expected ErrOverPayment, got %v", err)
		}

		owner, _ := f.ledger.OwnerOf(id)
		if owner != seller {
			t.Error("ownership changed after rejected payments")
		}
	})

	sale, err := f.market.BuyTicket(ctx, buyer, "ETIX", id, price)
	if err != nil {
		t.Fatalf("BuyTicket: %v", err)
	}

	owner, err := f.ledger.OwnerOf(id)
	if err != nil {
		t.Fatal(err)
	}
	if owner != buyer {
		t.Errorf("expected owner buyer, got %s", owner)
	}

	// 5% of 0.1 units to the artist, remainder to the seller.
	wantRoyalty := uint256.MustFromDecimal("5000000000000000")
	wantShare := uint256.MustFromDecimal("95000000000000000")
	if !sale.RoyaltyAmount.Eq(wantRoyalty) {
		t.Errorf("expected royalty %s, got %s", wantRoyalty, sale.RoyaltyAmount)
	}
	if !sale.SellerShare.Eq(wantShare) {
		t.Errorf("expected seller share %s, got %s", wantShare, sale.SellerShare)
	}
	if !f.bank.BalanceOf(artist).Eq(wantRoyalty) {
		t.Errorf("artist balance %s", f.bank.BalanceOf(artist))
	}
	if !f.bank.BalanceOf(seller).Eq(wantShare) {
		t.Errorf("seller balance %s", f.bank.BalanceOf(seller))
	}
	if !f.bank.BalanceOf(buyer).IsZero() {
		t.Errorf("buyer balance %s", f.bank.BalanceOf(buyer))
	}

	t.Run("second buy fails", func(t *testing.T) {
		f.bank.Deposit(buyer, price)
		_, err := f.market.BuyTicket(ctx, buyer, "ETIX", id, price)
		if !errors.Is(err, ErrNotListed) {
			t.Errorf("expected ErrNotListed, got %v", err)
		}
	})
}

func TestBuyTicketPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("market must be approved", func(t *testing.T) {
		f, id := newFixture(t)
		price := uint256.NewInt(100)

		if err := f.market.ListTicket(ctx, seller, "ETIX", id, price); err != nil {
			t.Fatal(err)
		}
		if err := f.ledger.SetApprovalForAll(ctx, seller, f.market.Operator(), false); err != nil {
			t.Fatal(err)
		}
		f.bank.Deposit(buyer, price)

		_, err := f.market.BuyTicket(ctx, buyer, "ETIX", id, price)
		if !errors.Is(err, ErrNotAuthorized) {
			t.Errorf("expected ErrNotAuthorized, got %v", err)
		}
		owner, _ := f.ledger.OwnerOf(id)
		if owner != seller {
			t.Error("ownership changed after failed buy")
		}
	})

	t.Run("buyer must have funds", func(t *testing.T) {
		f, id := newFixture(t)
		price := uint256.NewInt(100)

		if err := f.market.ListTicket(ctx, seller, "ETIX", id, price); err != nil {
			t.Fatal(err)
		}

		_, err := f.market.BuyTicket(ctx, buyer, "ETIX", id, price)
		if !errors.Is(err, bank.ErrInsufficientFunds) {
			t.Errorf("expected ErrInsufficientFunds, got %v", err)
		}
		if _, err := f.market.Listing("ETIX", id); err != nil {
			t.Error("listing removed after failed buy")
		}
	})

	t.Run("stale listing after off-market transfer", func(t *testing.T) {
		f, id := newFixture(t)
		price := uint256.NewInt(100)

		if err := f.market.ListTicket(ctx, seller, "ETIX", id, price); err != nil {
			t.Fatal(err)
		}
		other := account.Named("other")
		if err := f.ledger.Transfer(ctx, seller, seller, other, id); err != nil {
			t.Fatal(err)
		}
		f.bank.Deposit(buyer, price)

		_, err := f.market.BuyTicket(ctx, buyer, "ETIX", id, price)
		if !errors.Is(err, ErrNotOwner) {
			t.Errorf("expected ErrNotOwner for stale listing, got %v", err)
		}
	})
}

func TestBuyTicketFailedAppendLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	f, id := newFixture(t)

	price := uint256.NewInt(100)
	if err := f.market.ListTicket(ctx, seller, "ETIX", id, price); err != nil {
		t.Fatal(err)
	}
	f.bank.Deposit(buyer, price)

	// Advance the market stream behind the journal's back so the sale
	// event cannot be appended.
	f.interfere(t, StreamID)

	_, err := f.market.BuyTicket(ctx, buyer, "ETIX", id, price)
	if !errors.Is(err, eventsource.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}

	owner, err := f.ledger.OwnerOf(id)
	if err != nil {
		t.Fatal(err)
	}
	if owner != seller {
		t.Errorf("ownership changed after failed buy: %s", owner)
	}
	if got := f.bank.BalanceOf(buyer); !got.Eq(price) {
		t.Errorf("buyer not refunded, balance %s", got)
	}
	if !f.bank.BalanceOf(seller).IsZero() || !f.bank.BalanceOf(artist).IsZero() {
		t.Error("payout applied after failed buy")
	}
	if _, err := f.market.Listing("ETIX", id); err != nil {
		t.Errorf("listing removed after failed buy: %v", err)
	}

	t.Run("retry succeeds", func(t *testing.T) {
		sale, err := f.market.BuyTicket(ctx, buyer, "ETIX", id, price)
		if err != nil {
			t.Fatalf("retry after conflict: %v", err)
		}
		owner, _ := f.ledger.OwnerOf(id)
		if owner != buyer {
			t.Errorf("expected owner buyer, got %s", owner)
		}
		sum := new(uint256.Int).Add(sale.RoyaltyAmount, sale.SellerShare)
		if !sum.Eq(price) {
			t.Errorf("shares do not sum to price: %s", sum)
		}
		if !f.bank.BalanceOf(buyer).IsZero() {
			t.Errorf("buyer balance %s after successful retry", f.bank.BalanceOf(buyer))
		}
	})
}

func TestBuyTicketFailedTransferIsCompensated(t *testing.T) {
	ctx := context.Background()
	f, id := newFixture(t)

	price := uint256.NewInt(100)
	if err := f.market.ListTicket(ctx, seller, "ETIX", id, price); err != nil {
		t.Fatal(err)
	}
	f.bank.Deposit(buyer, price)

	// Advance the ledger stream so the ownership transfer fails after the
	// sale event has been recorded.
	f.interfere(t, "ledger:"+f.ledger.Symbol())

	_, err := f.market.BuyTicket(ctx, buyer, "ETIX", id, price)
	if !errors.Is(err, eventsource.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}

	owner, err := f.ledger.OwnerOf(id)
	if err != nil {
		t.Fatal(err)
	}
	if owner != seller {
		t.Errorf("ownership changed after failed settlement: %s", owner)
	}
	if got := f.bank.BalanceOf(buyer); !got.Eq(price) {
		t.Errorf("buyer not refunded, balance %s", got)
	}
	if !f.bank.BalanceOf(seller).IsZero() || !f.bank.BalanceOf(artist).IsZero() {
		t.Error("payout applied after failed settlement")
	}
	if _, err := f.market.Listing("ETIX", id); err != nil {
		t.Errorf("listing removed after failed settlement: %v", err)
	}

	// The audit trail explains the reversal.
	events, err := f.market.Events(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var last2 []string
	for _, e := range events {
		last2 = append(last2, e.Type)
	}
	if len(last2) < 2 ||
		last2[len(last2)-2] != EventTicketBought ||
		last2[len(last2)-1] != EventSaleReverted {
		t.Errorf("expected TicketBought then SaleReverted, got %v", last2)
	}
}

func TestFeeSplitExactness(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name  string
		price uint64
		bips  uint16
	}{
		{"five percent", 100, 500},
		{"indivisible price", 99, 500},
		{"one bip", 10001, 1},
		{"full royalty", 1234, 10000},
		{"no royalty", 1234, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := eventsource.NewMemoryStore()
			reg := registry.New(admin, store)
			if err := reg.RegisterArtist(ctx, admin, artist); err != nil {
				t.Fatal(err)
			}
			led := ledger.New("EventTickets", "ETIX", reg, store)
			bnk := bank.New()
			mkt := New(account.Named("market"), bnk, store)
			if err := mkt.RegisterCollection(led); err != nil {
				t.Fatal(err)
			}

			id, err := led.Mint(ctx, artist, seller, "cid:abc", artist, tc.bips)
			if err != nil {
				t.Fatal(err)
			}
			if err := led.SetApprovalForAll(ctx, seller, mkt.Operator(), true); err != nil {
				t.Fatal(err)
			}

			price := uint256.NewInt(tc.price)
			if err := mkt.ListTicket(ctx, seller, "ETIX", id, price); err != nil {
				t.Fatal(err)
			}
			bnk.Deposit(buyer, price)

			sale, err := mkt.BuyTicket(ctx, buyer, "ETIX", id, price)
			if err != nil {
				t.Fatalf("BuyTicket: %v", err)
			}

			wantRoyalty := tc.price * uint64(tc.bips) / 10000
			if sale.RoyaltyAmount.Uint64() != wantRoyalty {
				t.Errorf("expected royalty %d, got %s", wantRoyalty, sale.RoyaltyAmount)
			}

			sum := new(uint256.Int).Add(sale.RoyaltyAmount, sale.SellerShare)
			if !sum.Eq(price) {
				t.Errorf("shares %s + %s do not sum to price %s",
					sale.RoyaltyAmount, sale.SellerShare, price)
			}
		})
	}
}

func TestMarketEvents(t *testing.T) {
	ctx := context.Background()
	f, id := newFixture(t)

	price := uint256.NewInt(100)
	if err := f.market.ListTicket(ctx, seller, "ETIX", id, price); err != nil {
		t.Fatal(err)
	}
	f.bank.Deposit(buyer, price)
	if _, err := f.market.BuyTicket(ctx, buyer, "ETIX", id, price); err != nil {
		t.Fatal(err)
	}

	events, err := f.market.Events(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventTicketListed || events[1].Type != EventTicketBought {
		t.Errorf("unexpected event types: %s, %s", events[0].Type, events[1].Type)
	}

	var sale SaleData
	if err := events[1].Decode(&sale); err != nil {
		t.Fatal(err)
	}
	if sale.Buyer != buyer || sale.Seller != seller || sale.TicketID != id {
		t.Errorf("unexpected sale payload: %+v", sale)
	}
}
