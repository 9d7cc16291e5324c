package prover

import (
	"fmt"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// SettlementCircuitName is the name the settlement circuit registers under.
const SettlementCircuitName = "settlement"

// Prover manages circuit compilation, setup, and proof generation.
type Prover struct {
	mu       sync.RWMutex
	circuits map[string]*CompiledCircuit
	curve    ecc.ID
}

// CompiledCircuit holds a compiled circuit and its keys.
type CompiledCircuit struct {
	Name         string
	CS           constraint.ConstraintSystem
	ProvingKey   groth16.ProvingKey
	VerifyingKey groth16.VerifyingKey
	Constraints  int
}

// Proof is a generated proof together with its verification context.
type Proof struct {
	CircuitName string
	Proof       groth16.Proof
	Public      frontend.Circuit
}

// New creates a prover on BN254.
func New() *Prover {
	return &Prover{
		circuits: make(map[string]*CompiledCircuit),
		curve:    ecc.BN254,
	}
}

// NewSettlementProver creates a prover with the settlement circuit compiled
// and set up.
func NewSettlementProver() (*Prover, error) {
	p := New()
	if err := p.RegisterCircuit(SettlementCircuitName, &SettlementCircuit{}); err != nil {
		return nil, err
	}
	return p, nil
}

// RegisterCircuit compiles a circuit and runs trusted setup.
func (p *Prover) RegisterCircuit(name string, circuit frontend.Circuit) error {
	cs, err := frontend.Compile(p.curve.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return fmt.Errorf("circuit compilation failed: %w", err)
	}

	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.circuits[name] = &CompiledCircuit{
		Name:         name,
		CS:           cs,
		ProvingKey:   pk,
		VerifyingKey: vk,
		Constraints:  cs.GetNbConstraints(),
	}
	return nil
}

// Circuit returns a compiled circuit by name.
func (p *Prover) Circuit(name string) (*CompiledCircuit, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cc, ok := p.circuits[name]
	return cc, ok
}

// Prove generates a Groth16 proof for the given circuit and assignment.
func (p *Prover) Prove(circuitName string, assignment frontend.Circuit) (*Proof, error) {
	p.mu.RLock()
	cc, ok := p.circuits[circuitName]
	p.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("circuit %q not registered", circuitName)
	}

	witness, err := frontend.NewWitness(assignment, p.curve.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("witness creation failed: %w", err)
	}

	proof, err := groth16.Prove(cc.CS, cc.ProvingKey, witness)
	if err != nil {
		return nil, fmt.Errorf("proof generation failed: %w", err)
	}

	return &Proof{
		CircuitName: circuitName,
		Proof:       proof,
		Public:      assignment,
	}, nil
}

// Verify checks a proof against the circuit's verifying key and the public
// inputs carried by the proof.
func (p *Prover) Verify(proof *Proof) error {
	p.mu.RLock()
	cc, ok := p.circuits[proof.CircuitName]
	p.mu.RUnlock()

	if !ok {
		return fmt.Errorf("circuit %q not registered", proof.CircuitName)
	}

	witness, err := frontend.NewWitness(proof.Public, p.curve.ScalarField())
	if err != nil {
		return fmt.Errorf("witness creation failed: %w", err)
	}
	publicWitness, err := witness.Public()
	if err != nil {
		return fmt.Errorf("public witness extraction failed: %w", err)
	}

	return groth16.Verify(proof.Proof, cc.VerifyingKey, publicWitness)
}

// Job is one proof generation request.
type Job struct {
	ID          int
	CircuitName string
	Assignment  frontend.Circuit
}

// JobResult is the outcome of one Job.
type JobResult struct {
	ID     int
	Proof  *Proof
	Error  error
	TimeMs int64
}

// ProveParallel generates proofs for many jobs concurrently, e.g. one
// settlement proof per sale in an audit batch. Results are indexed by job
// ID.
func (p *Prover) ProveParallel(jobs []Job, maxWorkers int) []JobResult {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	results := make([]JobResult, len(jobs))
	jobChan := make(chan Job, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				start := time.Now()
				proof, err := p.Prove(job.CircuitName, job.Assignment)
				results[job.ID] = JobResult{
					ID:     job.ID,
					Proof:  proof,
					Error:  err,
					TimeMs: time.Since(start).Milliseconds(),
				}
			}
		}()
	}

	for _, job := range jobs {
		jobChan <- job
	}
	close(jobChan)
	wg.Wait()

	return results
}
