package models

// Voter is a registry entry. HasVoted flips once a vote for the voter has
// been appended to the ledger.
type Voter struct {
	ID       string `json:"voter_id"`
	Name     string `json:"name"`
	HasVoted bool   `json:"has_voted"`
}

type Candidate struct {
	ID   string `json:"candidate_id"`
	Name string `json:"name"`
}
