package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"voting-ledger/authority"
	"voting-ledger/blockchain/ledger"
	"voting-ledger/metrics"
	"voting-ledger/models"
	"voting-ledger/registry"
)

func newTestService(c *qt.C, opts Options) *VotingService {
	vs, err := NewVotingService(context.Background(), opts)
	c.Assert(err, qt.IsNil)
	return vs
}

func seed(c *qt.C, vs *VotingService) {
	for _, id := range []string{"c1", "c2"} {
		_, err := vs.AddCandidate(id, "Candidate "+id)
		c.Assert(err, qt.IsNil)
	}
	for _, id := range []string{"v1", "v2", "v3"} {
		_, err := vs.AddVoter(id, "Voter "+id)
		c.Assert(err, qt.IsNil)
	}
}

func TestCastVote(t *testing.T) {
	c := qt.New(t)

	col := metrics.NewCollector()
	vs := newTestService(c, Options{Difficulty: 2, Metrics: col})
	seed(c, vs)

	receipt, err := vs.CastVote(context.Background(), " v1 ", "c1")
	c.Assert(err, qt.IsNil)
	_, err = uuid.Parse(receipt.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(receipt.VoterID, qt.Equals, "v1")
	c.Assert(receipt.CandidateID, qt.Equals, "c1")
	c.Assert(receipt.BlockIndex, qt.Equals, uint64(1))

	head := vs.LastBlock()
	c.Assert(head.Hash, qt.Equals, receipt.BlockHash)
	c.Assert(head.Nonce, qt.Equals, receipt.Nonce)
	c.Assert(head.Hash[:2], qt.Equals, "00")
	c.Assert(head.Transactions, qt.DeepEquals, []models.Transaction{
		{VoterID: "v1", CandidateID: "c1", Timestamp: receipt.Timestamp},
	})

	v, err := vs.Voter("v1")
	c.Assert(err, qt.IsNil)
	c.Assert(v.HasVoted, qt.IsTrue)
	c.Assert(vs.IsChainValid(), qt.IsTrue)
	c.Assert(testutil.ToFloat64(col.VotesCast), qt.Equals, 1.0)
	c.Assert(testutil.ToFloat64(col.BlocksMined), qt.Equals, 2.0)
}

func TestCastVoteRejections(t *testing.T) {
	c := qt.New(t)

	vs := newTestService(c, Options{Difficulty: 1})
	seed(c, vs)
	ctx := context.Background()

	_, err := vs.CastVote(ctx, "nobody", "c1")
	c.Assert(errors.Is(err, registry.ErrVoterNotFound), qt.IsTrue)

	_, err = vs.CastVote(ctx, "v1", "c9")
	c.Assert(errors.Is(err, registry.ErrCandidateNotFound), qt.IsTrue)
	v, _ := vs.Voter("v1")
	c.Assert(v.HasVoted, qt.IsFalse)

	_, err = vs.CastVote(ctx, "v1", "c2")
	c.Assert(err, qt.IsNil)
	// already voted is reported before the candidate is looked up
	_, err = vs.CastVote(ctx, "v1", "c9")
	c.Assert(errors.Is(err, registry.ErrAlreadyVoted), qt.IsTrue)

	c.Assert(vs.Chain(), qt.HasLen, 2)
}

func TestCastVoteDeterministicBlock(t *testing.T) {
	c := qt.New(t)

	clock := func() float64 { return 1000 }
	vs := newTestService(c, Options{Difficulty: 2, Clock: clock})
	seed(c, vs)

	genesis := vs.LastBlock()
	c.Assert(genesis.Nonce, qt.Equals, uint64(112))
	c.Assert(genesis.Hash, qt.Equals, "00b342df4a250a1d0836ce13f569cf259f47d90eadaecd166aceee8b44d59c54")

	receipt, err := vs.CastVote(context.Background(), "v1", "c1")
	c.Assert(err, qt.IsNil)
	c.Assert(receipt.Nonce, qt.Equals, uint64(129))
	c.Assert(receipt.BlockHash, qt.Equals, "006b07f58c478461157d0b21899120f29c8d12d8eb28e079f3080fa497c79245")
}

func TestCastVoteMiningFailureLeavesVoterFree(t *testing.T) {
	c := qt.New(t)

	// With this clock the vote block needs 9299 attempts at difficulty 3,
	// so a cancelled context aborts it at the first check.
	clock := func() float64 { return 1000 }
	vs := newTestService(c, Options{Difficulty: 3, Clock: clock})
	seed(c, vs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := vs.CastVote(ctx, "v1", "c1")
	c.Assert(errors.Is(err, context.Canceled), qt.IsTrue)

	v, _ := vs.Voter("v1")
	c.Assert(v.HasVoted, qt.IsFalse)
	c.Assert(vs.Chain(), qt.HasLen, 1)

	receipt, err := vs.CastVote(context.Background(), "v1", "c1")
	c.Assert(err, qt.IsNil)
	c.Assert(receipt.Nonce, qt.Equals, uint64(9298))
	c.Assert(receipt.BlockHash, qt.Equals, "00081be4746b5cc8da18088e97eef11b69f4a327af96aa21aacdfa2bd1c92236")
}

func TestTally(t *testing.T) {
	c := qt.New(t)

	vs := newTestService(c, Options{Difficulty: 1})
	seed(c, vs)
	ctx := context.Background()
	for voter, candidate := range map[string]string{"v1": "c2", "v2": "c2", "v3": "c1"} {
		_, err := vs.CastVote(ctx, voter, candidate)
		c.Assert(err, qt.IsNil)
	}

	res, err := vs.Tally()
	c.Assert(err, qt.IsNil)
	c.Assert(res.TotalVotes, qt.Equals, 3)
	c.Assert(res.ProcessedBlocks, qt.Equals, 4)
	c.Assert(res.Results, qt.DeepEquals, map[string]int{"c1": 1, "c2": 2})
	c.Assert(res.Candidates, qt.DeepEquals, []CandidateResult{
		{CandidateID: "c2", Name: "Candidate c2", Votes: 2},
		{CandidateID: "c1", Name: "Candidate c1", Votes: 1},
	})

	check := vs.VerifyVoteCount()
	c.Assert(check, qt.DeepEquals, &VoteVerification{
		RegisteredVoters: 3, VotedVoters: 3, ChainVotes: 3, IsValid: true,
	})
}

func TestTallyEmptyAndInvalidChain(t *testing.T) {
	c := qt.New(t)

	vs := newTestService(c, Options{})
	seed(c, vs)
	res, err := vs.Tally()
	c.Assert(err, qt.IsNil)
	c.Assert(res.TotalVotes, qt.Equals, 0)
	c.Assert(res.Results, qt.DeepEquals, map[string]int{"c1": 0, "c2": 0})

	vs = newTestService(c, Options{Difficulty: 1})
	seed(c, vs)
	_, err = vs.CastVote(context.Background(), "v1", "c1")
	c.Assert(err, qt.IsNil)

	// a chain that fails validation is never tallied
	blocks := vs.Chain()
	blocks[1].Transactions[0].CandidateID = "c2"
	_, err = tally(blocks, vs.Difficulty(), vs.HashAlgorithm(), vs.Candidates())
	c.Assert(errors.Is(err, ErrChainInvalid), qt.IsTrue)
	var verr *ledger.ValidationError
	c.Assert(errors.As(err, &verr), qt.IsTrue)
	c.Assert(verr.Index, qt.Equals, uint64(1))

	res, err = tally(vs.Chain(), vs.Difficulty(), vs.HashAlgorithm(), vs.Candidates())
	c.Assert(err, qt.IsNil)
	c.Assert(res.Results["c1"], qt.Equals, 1)
}

func TestCountVotes(t *testing.T) {
	c := qt.New(t)

	blocks := []models.Block{
		{Index: 0},
		{Index: 1, Transactions: []models.Transaction{{VoterID: "v1", CandidateID: "x"}}},
		{Index: 2, Transactions: []models.Transaction{{VoterID: "v2", CandidateID: "a"}, {VoterID: "v3", CandidateID: "x"}}},
	}
	res := CountVotes(blocks, []models.Candidate{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}})
	c.Assert(res.TotalVotes, qt.Equals, 3)
	c.Assert(res.Candidates, qt.DeepEquals, []CandidateResult{
		{CandidateID: "x", Votes: 2},
		{CandidateID: "a", Name: "A", Votes: 1},
		{CandidateID: "b", Name: "B", Votes: 0},
	})

	check := verifyVoteCount(blocks, []models.Voter{{ID: "v1", HasVoted: true}, {ID: "v2"}, {ID: "v3"}})
	c.Assert(check.ChainVotes, qt.Equals, 3)
	c.Assert(check.VotedVoters, qt.Equals, 1)
	c.Assert(check.IsValid, qt.IsFalse)
}

func TestSessionClosed(t *testing.T) {
	c := qt.New(t)

	vs := newTestService(c, Options{})
	seed(c, vs)
	c.Assert(vs.IsVotingActive(), qt.IsTrue)
	vs.EndSession()
	c.Assert(vs.IsVotingActive(), qt.IsFalse)

	_, err := vs.AddVoter("v9", "late")
	c.Assert(errors.Is(err, ErrSessionClosed), qt.IsTrue)
	_, err = vs.AddCandidate("c9", "late")
	c.Assert(errors.Is(err, ErrSessionClosed), qt.IsTrue)
	_, err = vs.CastVote(context.Background(), "v1", "c1")
	c.Assert(errors.Is(err, ErrSessionClosed), qt.IsTrue)

	// results stay available after the session
	_, err = vs.Tally()
	c.Assert(err, qt.IsNil)
}

func TestSessionDeadline(t *testing.T) {
	c := qt.New(t)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newVotingSession(time.Hour, func() time.Time { return now })
	c.Assert(s.IsActive(), qt.IsTrue)
	deadline, ok := s.Deadline()
	c.Assert(ok, qt.IsTrue)
	c.Assert(deadline, qt.Equals, now.Add(time.Hour))

	now = now.Add(2 * time.Hour)
	c.Assert(s.IsActive(), qt.IsFalse)

	open := NewVotingSession(0)
	_, ok = open.Deadline()
	c.Assert(ok, qt.IsFalse)
	c.Assert(open.IsActive(), qt.IsTrue)
	open.End()
	c.Assert(open.IsActive(), qt.IsFalse)
}

func TestAttest(t *testing.T) {
	c := qt.New(t)

	vs := newTestService(c, Options{Difficulty: 1})
	_, err := vs.Attest()
	c.Assert(errors.Is(err, ErrNoAuthority), qt.IsTrue)

	auth, err := authority.New()
	c.Assert(err, qt.IsNil)
	vs = newTestService(c, Options{Difficulty: 1, Authority: auth, HashAlgorithm: models.Keccak256})
	seed(c, vs)
	_, err = vs.CastVote(context.Background(), "v2", "c1")
	c.Assert(err, qt.IsNil)

	att, err := vs.Attest()
	c.Assert(err, qt.IsNil)
	c.Assert(att.Length, qt.Equals, 2)
	c.Assert(auth.Verify(att), qt.IsNil)
	c.Assert(authority.VerifyChain(att, vs.Chain()), qt.IsNil)
}

func TestConcurrentVotesForSameVoter(t *testing.T) {
	c := qt.New(t)

	vs := newTestService(c, Options{Difficulty: 1})
	seed(c, vs)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := vs.CastVote(context.Background(), "v1", fmt.Sprintf("c%d", i%2+1))
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	c.Assert(accepted, qt.Equals, 1)
	c.Assert(vs.Chain(), qt.HasLen, 2)
	c.Assert(vs.IsChainValid(), qt.IsTrue)
}

func TestInvalidDifficulty(t *testing.T) {
	c := qt.New(t)

	_, err := NewVotingService(context.Background(), Options{Difficulty: 65})
	c.Assert(errors.Is(err, ledger.ErrInvalidDifficulty), qt.IsTrue)
}
