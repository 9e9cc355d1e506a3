package ledger

import (
	"fmt"

	"voting-ledger/log"
	"voting-ledger/models"
)

// Check names the validation rule a block failed.
type Check string

const (
	CheckLinkage    Check = "linkage"
	CheckHash       Check = "hash"
	CheckDifficulty Check = "difficulty"
)

// ValidationError reports the first block that failed validation.
type ValidationError struct {
	Index    uint64
	Check    Check
	Expected string
	Actual   string
}

func (e *ValidationError) Error() string {
	switch e.Check {
	case CheckLinkage:
		return fmt.Sprintf("block %d: previous hash %s does not match block %d hash %s",
			e.Index, e.Actual, e.Index-1, e.Expected)
	case CheckHash:
		return fmt.Sprintf("block %d: stored hash %s does not match computed hash %s",
			e.Index, e.Actual, e.Expected)
	default:
		return fmt.Sprintf("block %d: hash %s does not have %s leading zeros",
			e.Index, e.Actual, e.Expected)
	}
}

// IsChainValid reports whether every block is linked, untampered and
// meets the difficulty.
func (l *Ledger) IsChainValid() bool {
	return l.Verify() == nil
}

// Verify validates the whole chain and returns a *ValidationError naming
// the first failure, or nil.
func (l *Ledger) Verify() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	err := verifyChain(l.chain, l.difficulty, l.alg)
	l.observer.ObserveValidation(err)
	if err != nil {
		log.Warnf("chain validation failed: %v", err)
	}
	return err
}

// VerifyBlocks runs the chain validation over an arbitrary block sequence,
// such as one read back from an export.
func VerifyBlocks(blocks []models.Block, difficulty int, alg models.HashAlgorithm) error {
	if difficulty < 0 || difficulty > MaxDifficulty {
		return fmt.Errorf("%w: got %d", ErrInvalidDifficulty, difficulty)
	}
	chain := make([]*models.Block, len(blocks))
	for i := range blocks {
		chain[i] = &blocks[i]
	}
	return verifyChain(chain, difficulty, alg)
}

// verifyChain checks blocks 1..n for linkage, hash and difficulty, in that
// order, then the genesis block for hash and difficulty. The genesis
// previous hash sentinel is never compared.
func verifyChain(chain []*models.Block, difficulty int, alg models.HashAlgorithm) error {
	if len(chain) == 0 {
		return ErrEmptyChain
	}
	for i := 1; i < len(chain); i++ {
		current, previous := chain[i], chain[i-1]
		if current.PrevHash != previous.Hash {
			return &ValidationError{
				Index:    uint64(i),
				Check:    CheckLinkage,
				Expected: previous.Hash,
				Actual:   current.PrevHash,
			}
		}
		if err := verifyBlock(uint64(i), current, difficulty, alg); err != nil {
			return err
		}
	}
	return verifyBlock(0, chain[0], difficulty, alg)
}

func verifyBlock(pos uint64, b *models.Block, difficulty int, alg models.HashAlgorithm) error {
	calculated, err := b.CalculateHash(alg)
	if err != nil {
		calculated = ""
	}
	if err != nil || calculated != b.Hash {
		return &ValidationError{Index: pos, Check: CheckHash, Expected: calculated, Actual: b.Hash}
	}
	if !models.MeetsDifficulty(b.Hash, difficulty) {
		return &ValidationError{
			Index:    pos,
			Check:    CheckDifficulty,
			Expected: fmt.Sprint(difficulty),
			Actual:   b.Hash,
		}
	}
	return nil
}
