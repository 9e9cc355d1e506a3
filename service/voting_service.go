// Package service ties the registry, the ledger and the voting session
// together into the operations offered by the console and the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"voting-ledger/authority"
	"voting-ledger/blockchain/ledger"
	"voting-ledger/log"
	"voting-ledger/metrics"
	"voting-ledger/models"
	"voting-ledger/registry"
)

var (
	ErrSessionClosed = errors.New("voting session has ended")
	ErrChainInvalid  = errors.New("blockchain is invalid")
	ErrNoAuthority   = errors.New("no authority key configured")
)

// Options configures a VotingService. The zero value gives a difficulty 0
// ledger without deadline, attestation or metrics.
type Options struct {
	Difficulty      int
	HashAlgorithm   models.HashAlgorithm
	MaxAttempts     uint64
	SessionDuration time.Duration
	Authority       *authority.Authority
	Metrics         *metrics.Collector
	// Clock stamps blocks and transactions. Defaults to models.Now.
	Clock func() float64
}

type VotingService struct {
	mu        sync.Mutex
	registry  *registry.Registry
	ledger    *ledger.Ledger
	session   *VotingSession
	authority *authority.Authority
	metrics   *metrics.Collector
	now       func() float64
}

// Receipt is handed to the voter once their vote block has been mined.
type Receipt struct {
	ID          string  `json:"receipt_id"`
	VoterID     string  `json:"voter_id"`
	CandidateID string  `json:"candidate_id"`
	Timestamp   float64 `json:"timestamp"`
	BlockIndex  uint64  `json:"block_index"`
	BlockHash   string  `json:"block_hash"`
	Nonce       uint64  `json:"nonce"`
}

func NewVotingService(ctx context.Context, opts Options) (*VotingService, error) {
	now := opts.Clock
	if now == nil {
		now = models.Now
	}
	ledgerOpts := []ledger.Option{ledger.WithMaxAttempts(opts.MaxAttempts), ledger.WithClock(now)}
	if opts.HashAlgorithm != "" {
		ledgerOpts = append(ledgerOpts, ledger.WithHashAlgorithm(opts.HashAlgorithm))
	}
	if opts.Metrics != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithObserver(opts.Metrics))
	}
	l, err := ledger.New(ctx, opts.Difficulty, ledgerOpts...)
	if err != nil {
		return nil, err
	}

	return &VotingService{
		registry:  registry.New(),
		ledger:    l,
		session:   NewVotingSession(opts.SessionDuration),
		authority: opts.Authority,
		metrics:   opts.Metrics,
		now:       now,
	}, nil
}

func (vs *VotingService) AddCandidate(id, name string) (models.Candidate, error) {
	if !vs.session.IsActive() {
		return models.Candidate{}, ErrSessionClosed
	}
	c, err := vs.registry.AddCandidate(id, name)
	if err != nil {
		return models.Candidate{}, err
	}
	log.Infow("candidate added", "id", c.ID)
	return c, nil
}

func (vs *VotingService) AddVoter(id, name string) (models.Voter, error) {
	if !vs.session.IsActive() {
		return models.Voter{}, ErrSessionClosed
	}
	v, err := vs.registry.AddVoter(id, name)
	if err != nil {
		return models.Voter{}, err
	}
	log.Infow("voter added", "id", v.ID)
	return v, nil
}

func (vs *VotingService) Voters() []models.Voter { return vs.registry.Voters() }

func (vs *VotingService) Candidates() []models.Candidate { return vs.registry.Candidates() }

func (vs *VotingService) Voter(id string) (models.Voter, error) { return vs.registry.Voter(id) }

func (vs *VotingService) Candidate(id string) (models.Candidate, error) {
	return vs.registry.Candidate(id)
}

// CastVote records a single vote as its own mined block. The voter is only
// marked as having voted once the block is on the chain, so a failed or
// cancelled mining run leaves the voter free to try again.
func (vs *VotingService) CastVote(ctx context.Context, voterID, candidateID string) (*Receipt, error) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if !vs.session.IsActive() {
		return nil, ErrSessionClosed
	}
	voter, err := vs.registry.Voter(voterID)
	if err != nil {
		return nil, err
	}
	if voter.HasVoted {
		return nil, fmt.Errorf("%w: %s", registry.ErrAlreadyVoted, voter.ID)
	}
	candidate, err := vs.registry.Candidate(candidateID)
	if err != nil {
		return nil, err
	}

	tx := models.NewTransaction(voter.ID, candidate.ID, vs.now())
	block, err := vs.ledger.AppendTransactions(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("cannot record vote: %w", err)
	}
	if err := vs.registry.MarkVoted(voter.ID); err != nil {
		return nil, err
	}
	if vs.metrics != nil {
		vs.metrics.ObserveVote()
	}
	log.Infow("vote cast", "voter", voter.ID, "block", block.Index, "hash", block.Hash)

	return &Receipt{
		ID:          uuid.New().String(),
		VoterID:     voter.ID,
		CandidateID: candidate.ID,
		Timestamp:   tx.Timestamp,
		BlockIndex:  block.Index,
		BlockHash:   block.Hash,
		Nonce:       block.Nonce,
	}, nil
}

// Chain returns a copy of every block.
func (vs *VotingService) Chain() []models.Block { return vs.ledger.Blocks() }

func (vs *VotingService) Block(index uint64) (models.Block, error) { return vs.ledger.Block(index) }

func (vs *VotingService) LastBlock() models.Block { return vs.ledger.LastBlock() }

func (vs *VotingService) Difficulty() int { return vs.ledger.Difficulty() }

func (vs *VotingService) HashAlgorithm() models.HashAlgorithm { return vs.ledger.HashAlgorithm() }

// Validate returns nil or the *ledger.ValidationError of the first bad block.
func (vs *VotingService) Validate() error { return vs.ledger.Verify() }

func (vs *VotingService) IsChainValid() bool { return vs.ledger.IsChainValid() }

// Tally counts the votes on the chain, refusing to do so if the chain does
// not validate.
func (vs *VotingService) Tally() (*VotingResults, error) {
	return tally(vs.ledger.Blocks(), vs.ledger.Difficulty(), vs.ledger.HashAlgorithm(), vs.registry.Candidates())
}

// VerifyVoteCount checks that the chain holds exactly one vote for every
// voter flagged as having voted.
func (vs *VotingService) VerifyVoteCount() *VoteVerification {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return verifyVoteCount(vs.ledger.Blocks(), vs.registry.Voters())
}

// Attest signs the current chain head with the authority key.
func (vs *VotingService) Attest() (*authority.Attestation, error) {
	if vs.authority == nil {
		return nil, ErrNoAuthority
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.authority.Attest(vs.ledger.LastBlock(), vs.ledger.Len())
}

// Authority returns the configured authority, or nil.
func (vs *VotingService) Authority() *authority.Authority { return vs.authority }

func (vs *VotingService) IsVotingActive() bool { return vs.session.IsActive() }

func (vs *VotingService) Session() *VotingSession { return vs.session }

// EndSession closes the session; later registrations and votes fail with
// ErrSessionClosed.
func (vs *VotingService) EndSession() {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.session.End()
	log.Info("voting session ended")
}
