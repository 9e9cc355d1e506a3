package models

import (
	"context"
	"errors"
	"fmt"
)

// ErrMiningLimit is returned when no valid nonce was found within the
// configured number of attempts.
var ErrMiningLimit = errors.New("mining iteration limit reached")

// cancelCheckInterval is how many attempts run between context checks.
const cancelCheckInterval = 1000

// MiningResult describes a successful nonce search.
type MiningResult struct {
	Nonce    uint64
	Hash     string
	Attempts uint64
}

// FindValidNonce searches upward from b.Nonce for a nonce whose canonical
// hash has at least difficulty leading zeros. The block is not modified.
// maxAttempts of zero means no limit.
func FindValidNonce(ctx context.Context, b *Block, alg HashAlgorithm, difficulty int, maxAttempts uint64) (MiningResult, error) {
	candidate := b.Clone()
	var attempts uint64
	for {
		hash, err := candidate.CalculateHash(alg)
		if err != nil {
			return MiningResult{}, err
		}
		attempts++
		if MeetsDifficulty(hash, difficulty) {
			return MiningResult{Nonce: candidate.Nonce, Hash: hash, Attempts: attempts}, nil
		}

		if maxAttempts > 0 && attempts >= maxAttempts {
			return MiningResult{Attempts: attempts}, fmt.Errorf("%w: block %d after %d attempts",
				ErrMiningLimit, b.Index, attempts)
		}
		if attempts%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return MiningResult{Attempts: attempts}, err
			}
		}
		candidate.Nonce++
	}
}

// Mine finds a valid nonce and commits it together with the resulting
// hash. On error the block is left untouched.
func (b *Block) Mine(ctx context.Context, alg HashAlgorithm, difficulty int, maxAttempts uint64) (MiningResult, error) {
	res, err := FindValidNonce(ctx, b, alg, difficulty, maxAttempts)
	if err != nil {
		return res, err
	}
	b.Nonce = res.Nonce
	b.Hash = res.Hash
	return res, nil
}
