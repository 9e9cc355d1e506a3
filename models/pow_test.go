package models

import (
	"context"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestMineSatisfiesDifficulty(t *testing.T) {
	c := qt.New(t)

	for _, alg := range []HashAlgorithm{SHA256, Keccak256} {
		for difficulty := 0; difficulty <= 3; difficulty++ {
			b := sampleBlock()
			res, err := b.Mine(context.Background(), alg, difficulty, 0)
			c.Assert(err, qt.IsNil)
			c.Assert(b.Hash, qt.Equals, res.Hash)
			c.Assert(b.Nonce, qt.Equals, res.Nonce)
			c.Assert(res.Attempts, qt.Equals, res.Nonce+1)
			c.Assert(MeetsDifficulty(b.Hash, difficulty), qt.IsTrue)
			c.Assert(b.Validate(alg, difficulty), qt.IsTrue)
		}
	}
}

func TestMineDifficultyZero(t *testing.T) {
	c := qt.New(t)

	b := sampleBlock()
	res, err := b.Mine(context.Background(), SHA256, 0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(b.Nonce, qt.Equals, uint64(0))
	c.Assert(res.Attempts, qt.Equals, uint64(1))
}

func TestMineGenesisWithoutTransactions(t *testing.T) {
	c := qt.New(t)

	b := NewBlock(0, Now(), nil, GenesisPrevHash)
	_, err := b.Mine(context.Background(), SHA256, 2, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(b.Hash[:2], qt.Equals, "00")
}

func TestFindValidNonceDoesNotMutate(t *testing.T) {
	c := qt.New(t)

	b := sampleBlock()
	res, err := FindValidNonce(context.Background(), b, SHA256, 2, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(b.Nonce, qt.Equals, uint64(0))
	c.Assert(b.Hash, qt.Equals, "")

	b.Nonce = res.Nonce
	h, err := b.CalculateHash(SHA256)
	c.Assert(err, qt.IsNil)
	c.Assert(h, qt.Equals, res.Hash)
}

func TestFindValidNonceStartsFromCurrentNonce(t *testing.T) {
	c := qt.New(t)

	b := sampleBlock()
	first, err := FindValidNonce(context.Background(), b, SHA256, 1, 0)
	c.Assert(err, qt.IsNil)

	b.Nonce = first.Nonce + 1
	next, err := FindValidNonce(context.Background(), b, SHA256, 1, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(next.Nonce > first.Nonce, qt.IsTrue)
}

func TestMineIterationLimit(t *testing.T) {
	c := qt.New(t)

	b := sampleBlock()
	// 64 leading zeros is never reached in practice.
	_, err := b.Mine(context.Background(), SHA256, HashHexLength, 50)
	c.Assert(errors.Is(err, ErrMiningLimit), qt.IsTrue)
	c.Assert(b.IsMined(), qt.IsFalse)
	c.Assert(b.Nonce, qt.Equals, uint64(0))
}

func TestMineCancelled(t *testing.T) {
	c := qt.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := sampleBlock()
	res, err := b.Mine(ctx, SHA256, HashHexLength, 0)
	c.Assert(errors.Is(err, context.Canceled), qt.IsTrue)
	c.Assert(res.Attempts, qt.Equals, uint64(cancelCheckInterval))
	c.Assert(b.IsMined(), qt.IsFalse)
}
