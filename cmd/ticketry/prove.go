package main

import (
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/pflow-xyz/go-ticketry/prover"
)

func prove(args []string) error {
	fs := flag.NewFlagSet("prove", flag.ExitOnError)
	priceStr := fs.String("price", "", "Sale price in smallest payment units")
	bips := fs.Uint("bips", 0, "Royalty rate in basis points (0-10000)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ticketry prove --price <units> --bips <rate>

Generate and verify a zero-knowledge proof that the fee split for a sale
is exact: royalty = floor(price * bips / 10000) and the seller share is
the remainder.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	price, ok := new(big.Int).SetString(*priceStr, 10)
	if !ok || price.Sign() <= 0 {
		fs.Usage()
		return fmt.Errorf("positive decimal --price required")
	}
	if *bips > 10000 {
		return fmt.Errorf("--bips must be at most 10000")
	}

	royalty := new(big.Int).Div(
		new(big.Int).Mul(price, big.NewInt(int64(*bips))),
		big.NewInt(10000),
	)
	sellerShare := new(big.Int).Sub(price, royalty)

	fmt.Printf("price:        %s\n", price)
	fmt.Printf("royalty:      %s (%d bips)\n", royalty, *bips)
	fmt.Printf("seller share: %s\n", sellerShare)

	fmt.Println("\nCompiling settlement circuit...")
	p, err := prover.NewSettlementProver()
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	assignment := &prover.SettlementCircuit{
		Price:         price,
		RoyaltyBips:   big.NewInt(int64(*bips)),
		RoyaltyAmount: royalty,
		SellerShare:   sellerShare,
	}

	start := time.Now()
	proof, err := p.Prove(prover.SettlementCircuitName, assignment)
	if err != nil {
		return fmt.Errorf("prove: %w", err)
	}
	fmt.Printf("Proof generated in %v\n", time.Since(start))

	if err := p.Verify(proof); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	fmt.Println("Proof verified")

	return nil
}
