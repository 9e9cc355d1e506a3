package service

import (
	"fmt"
	"sort"

	"voting-ledger/blockchain/ledger"
	"voting-ledger/models"
)

// VotingResults is the tally of every vote recorded on the chain.
type VotingResults struct {
	TotalVotes      int               `json:"total_votes"`
	Results         map[string]int    `json:"results"`
	Candidates      []CandidateResult `json:"candidates"`
	ProcessedBlocks int               `json:"processed_blocks"`
}

type CandidateResult struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name"`
	Votes       int    `json:"votes"`
}

// VoteVerification compares the registry's voted flags with the chain.
type VoteVerification struct {
	RegisteredVoters int  `json:"registered_voters"`
	VotedVoters      int  `json:"voted_voters"`
	ChainVotes       int  `json:"chain_votes"`
	IsValid          bool `json:"is_valid"`
}

// CountVotes tallies the transactions of blocks. Every known candidate
// appears in the result, with zero votes if needed; votes for unknown
// candidate ids are still counted. Candidates are ordered by votes, then
// by id.
func CountVotes(blocks []models.Block, candidates []models.Candidate) *VotingResults {
	res := &VotingResults{
		Results:         make(map[string]int, len(candidates)),
		ProcessedBlocks: len(blocks),
	}
	names := make(map[string]string, len(candidates))
	for _, c := range candidates {
		res.Results[c.ID] = 0
		names[c.ID] = c.Name
	}
	for _, b := range blocks {
		for _, tx := range b.Transactions {
			res.Results[tx.CandidateID]++
			res.TotalVotes++
		}
	}

	res.Candidates = make([]CandidateResult, 0, len(res.Results))
	for id, votes := range res.Results {
		res.Candidates = append(res.Candidates, CandidateResult{CandidateID: id, Name: names[id], Votes: votes})
	}
	sort.Slice(res.Candidates, func(i, j int) bool {
		a, b := res.Candidates[i], res.Candidates[j]
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		return a.CandidateID < b.CandidateID
	})
	return res
}

func tally(blocks []models.Block, difficulty int, alg models.HashAlgorithm, candidates []models.Candidate) (*VotingResults, error) {
	if err := ledger.VerifyBlocks(blocks, difficulty, alg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChainInvalid, err)
	}
	return CountVotes(blocks, candidates), nil
}

func verifyVoteCount(blocks []models.Block, voters []models.Voter) *VoteVerification {
	v := &VoteVerification{RegisteredVoters: len(voters)}
	for _, voter := range voters {
		if voter.HasVoted {
			v.VotedVoters++
		}
	}
	seen := make(map[string]bool)
	unique := true
	for _, b := range blocks {
		for _, tx := range b.Transactions {
			v.ChainVotes++
			if seen[tx.VoterID] {
				unique = false
			}
			seen[tx.VoterID] = true
		}
	}
	v.IsValid = unique && v.ChainVotes == v.VotedVoters && v.ChainVotes <= v.RegisteredVoters
	return v
}
