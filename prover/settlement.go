// Package prover generates zero-knowledge proofs that a sale settled
// correctly: the royalty was computed as floor(price * bips / 10000) and
// the seller received exactly the remainder. A marketplace operator can
// hand the proof to an auditor without revealing anything beyond the
// public settlement figures.
package prover

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	"github.com/holiman/uint256"

	"github.com/pflow-xyz/go-ticketry/market"
)

// SettlementCircuit proves a fee split is exact. All values are public:
// the proof attests to the arithmetic relation, not to hidden data.
//
// Constraints:
//
//	RoyaltyAmount + SellerShare == Price
//	RoyaltyBips <= 10000
//	Price*RoyaltyBips - 10000*RoyaltyAmount in [0, 9999]  (floor division)
type SettlementCircuit struct {
	Price         frontend.Variable `gnark:",public"`
	RoyaltyBips   frontend.Variable `gnark:",public"`
	RoyaltyAmount frontend.Variable `gnark:",public"`
	SellerShare   frontend.Variable `gnark:",public"`
}

// Define declares the circuit's constraints.
func (c *SettlementCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(api.Add(c.RoyaltyAmount, c.SellerShare), c.Price)
	api.AssertIsLessOrEqual(c.RoyaltyBips, 10000)

	// Floor division: royalty = floor(price * bips / 10000) holds exactly
	// when 0 <= price*bips - 10000*royalty < 10000. A negative remainder
	// wraps to a huge field element and fails the range check.
	remainder := api.Sub(
		api.Mul(c.Price, c.RoyaltyBips),
		api.Mul(c.RoyaltyAmount, 10000),
	)
	api.AssertIsLessOrEqual(remainder, 9999)
	return nil
}

// SettlementAssignment builds the witness for a completed sale. Amounts at
// or above the BN254 scalar field modulus are rejected: the witness would
// silently reduce them and the proof would attest to different figures than
// the sale's.
func SettlementAssignment(sale *market.Sale, royaltyBips uint16) (*SettlementCircuit, error) {
	if sale == nil {
		return nil, fmt.Errorf("prover: nil sale")
	}

	modulus := ecc.BN254.ScalarField()
	for name, v := range map[string]*big.Int{
		"price":         toBig(sale.Price),
		"royaltyAmount": toBig(sale.RoyaltyAmount),
		"sellerShare":   toBig(sale.SellerShare),
	} {
		if v.Cmp(modulus) >= 0 {
			return nil, fmt.Errorf("prover: %s %s exceeds the proof field", name, v)
		}
	}

	return &SettlementCircuit{
		Price:         toBig(sale.Price),
		RoyaltyBips:   big.NewInt(int64(royaltyBips)),
		RoyaltyAmount: toBig(sale.RoyaltyAmount),
		SellerShare:   toBig(sale.SellerShare),
	}, nil
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v.ToBig()
}
