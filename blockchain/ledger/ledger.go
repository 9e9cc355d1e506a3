// Package ledger implements the append-only, proof-of-work sealed chain of
// vote blocks.
//
// A Ledger is created with its genesis block already mined. Blocks are
// appended with AddBlock (or AppendTransactions), which links each block to
// the current head and mines it. Verify and IsChainValid recompute every
// hash and check linkage and difficulty without modifying the chain.
//
// All methods are safe for concurrent use: a single lock guards the chain,
// so appends (mining included) never interleave with each other or with
// validation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"voting-ledger/log"
	"voting-ledger/models"
)

// MaxDifficulty is the length of a hex encoded 256-bit hash.
const MaxDifficulty = models.HashHexLength

var (
	ErrInvalidDifficulty = errors.New("difficulty must be between 0 and 64")
	ErrIndexMismatch     = errors.New("block index does not match chain length")
	ErrEmptyBlock        = errors.New("block has no transactions")
	ErrEmptyChain        = errors.New("chain is empty")
	ErrBlockNotFound     = errors.New("block not found")
)

// Observer receives mining and validation outcomes. metrics.Collector
// implements it.
type Observer interface {
	ObserveMining(index uint64, attempts uint64, elapsed time.Duration, err error)
	ObserveValidation(err error)
}

type nopObserver struct{}

func (nopObserver) ObserveMining(uint64, uint64, time.Duration, error) {}
func (nopObserver) ObserveValidation(error)                           {}

type Ledger struct {
	mu          sync.RWMutex
	chain       []*models.Block
	difficulty  int
	alg         models.HashAlgorithm
	maxAttempts uint64
	now         func() float64
	observer    Observer
}

type Option func(*Ledger)

// WithHashAlgorithm selects the canonical hash digest. Default SHA256.
func WithHashAlgorithm(alg models.HashAlgorithm) Option {
	return func(l *Ledger) { l.alg = alg }
}

// WithMaxAttempts caps the nonce search per block. Zero means no cap.
func WithMaxAttempts(n uint64) Option {
	return func(l *Ledger) { l.maxAttempts = n }
}

// WithClock overrides the source of block timestamps.
func WithClock(now func() float64) Option {
	return func(l *Ledger) { l.now = now }
}

func WithObserver(o Observer) Option {
	return func(l *Ledger) {
		if o != nil {
			l.observer = o
		}
	}
}

// New creates a ledger and mines its genesis block.
func New(ctx context.Context, difficulty int, opts ...Option) (*Ledger, error) {
	if difficulty < 0 || difficulty > MaxDifficulty {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDifficulty, difficulty)
	}
	l := &Ledger{
		difficulty: difficulty,
		alg:        models.SHA256,
		now:        models.Now,
		observer:   nopObserver{},
	}
	for _, opt := range opts {
		opt(l)
	}

	genesis := models.NewBlock(0, l.now(), nil, models.GenesisPrevHash)
	if err := l.mine(ctx, genesis); err != nil {
		return nil, fmt.Errorf("cannot mine genesis block: %w", err)
	}
	l.chain = []*models.Block{genesis}
	log.Infow("ledger created", "difficulty", difficulty, "algorithm", l.alg.String(), "genesis", genesis.Hash)
	return l, nil
}

func (l *Ledger) Difficulty() int { return l.difficulty }

func (l *Ledger) HashAlgorithm() models.HashAlgorithm { return l.alg }

// AddBlock links the candidate to the current head, mines it and appends
// it. The caller's previous hash is discarded. The ledger keeps its own
// copy of the block; the mined copy is returned.
func (l *Ledger) AddBlock(ctx context.Context, candidate *models.Block) (models.Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(ctx, candidate)
}

// AppendTransactions builds the next block from txs, stamped with the
// ledger clock, and appends it.
func (l *Ledger) AppendTransactions(ctx context.Context, txs ...models.Transaction) (models.Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	block := models.NewBlock(uint64(len(l.chain)), l.now(), txs, "")
	return l.appendLocked(ctx, block)
}

func (l *Ledger) appendLocked(ctx context.Context, candidate *models.Block) (models.Block, error) {
	if candidate.Index != uint64(len(l.chain)) {
		return models.Block{}, fmt.Errorf("%w: got %d, want %d", ErrIndexMismatch, candidate.Index, len(l.chain))
	}
	if len(candidate.Transactions) == 0 {
		return models.Block{}, ErrEmptyBlock
	}

	block := candidate.Clone()
	block.PrevHash = l.chain[len(l.chain)-1].Hash
	block.Hash = ""
	if err := l.mine(ctx, block); err != nil {
		return models.Block{}, fmt.Errorf("cannot mine block %d: %w", block.Index, err)
	}
	l.chain = append(l.chain, block)
	return *block.Clone(), nil
}

func (l *Ledger) mine(ctx context.Context, b *models.Block) error {
	start := time.Now()
	res, err := b.Mine(ctx, l.alg, l.difficulty, l.maxAttempts)
	elapsed := time.Since(start)
	l.observer.ObserveMining(b.Index, res.Attempts, elapsed, err)
	if err != nil {
		log.Warnw("mining failed", "index", b.Index, "attempts", res.Attempts, "error", err)
		return err
	}
	log.Debugw("block mined", "index", b.Index, "nonce", b.Nonce,
		"attempts", res.Attempts, "elapsed", elapsed, "hash", b.Hash)
	return nil
}

// LastBlock returns a copy of the chain head.
func (l *Ledger) LastBlock() models.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return *l.chain[len(l.chain)-1].Clone()
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chain)
}

// Block returns a copy of the block at index.
func (l *Ledger) Block(index uint64) (models.Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if index >= uint64(len(l.chain)) {
		return models.Block{}, fmt.Errorf("%w: index %d", ErrBlockNotFound, index)
	}
	return *l.chain[index].Clone(), nil
}

// Blocks returns a deep copy of the whole chain.
func (l *Ledger) Blocks() []models.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()

	blocks := make([]models.Block, len(l.chain))
	for i, b := range l.chain {
		blocks[i] = *b.Clone()
	}
	return blocks
}

// Range calls fn for every block in order until fn returns false. fn gets
// a copy and must not call back into the ledger's write methods.
func (l *Ledger) Range(fn func(models.Block) bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, b := range l.chain {
		if !fn(*b.Clone()) {
			return
		}
	}
}
