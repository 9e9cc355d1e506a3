package models

import (
	"math"
	"time"
)

// Transaction records a single vote. It carries no identity beyond its
// values and is never modified once it is part of a block.
type Transaction struct {
	VoterID     string  `json:"voter_id"`
	CandidateID string  `json:"candidate_id"`
	Timestamp   float64 `json:"timestamp"`
}

func NewTransaction(voterID, candidateID string, timestamp float64) Transaction {
	return Transaction{
		VoterID:     voterID,
		CandidateID: candidateID,
		Timestamp:   timestamp,
	}
}

// transactionForHash lists the fields in sorted key order.
type transactionForHash struct {
	CandidateID string  `json:"candidate_id"`
	Timestamp   float64 `json:"timestamp"`
	VoterID     string  `json:"voter_id"`
}

func (t Transaction) forHash() transactionForHash {
	return transactionForHash{
		CandidateID: t.CandidateID,
		Timestamp:   t.Timestamp,
		VoterID:     t.VoterID,
	}
}

// Now returns the current time as fractional epoch seconds.
func Now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// Time converts fractional epoch seconds back into a time.Time.
func Time(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
