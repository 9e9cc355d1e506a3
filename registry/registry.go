// Package registry keeps the voters and candidates known to a voting
// session.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"voting-ledger/models"
)

var (
	ErrEmptyID            = errors.New("id is required")
	ErrEmptyName          = errors.New("name is required")
	ErrDuplicateVoter     = errors.New("duplicate voter ID")
	ErrDuplicateCandidate = errors.New("duplicate candidate ID")
	ErrVoterNotFound      = errors.New("voter not found")
	ErrCandidateNotFound  = errors.New("candidate not found")
	ErrAlreadyVoted       = errors.New("this voter has already voted")
)

// Registry is an in-memory voter and candidate store, safe for concurrent
// use. The zero value is not usable; call New.
type Registry struct {
	mu         sync.RWMutex
	voters     map[string]*models.Voter
	candidates map[string]*models.Candidate
}

func New() *Registry {
	return &Registry{
		voters:     make(map[string]*models.Voter),
		candidates: make(map[string]*models.Candidate),
	}
}

func validateEntry(id, name string) (string, string, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" {
		return "", "", ErrEmptyID
	}
	if name == "" {
		return "", "", ErrEmptyName
	}
	return id, name, nil
}

func (r *Registry) AddCandidate(id, name string) (models.Candidate, error) {
	id, name, err := validateEntry(id, name)
	if err != nil {
		return models.Candidate{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.candidates[id]; ok {
		return models.Candidate{}, fmt.Errorf("%w: %s", ErrDuplicateCandidate, id)
	}
	c := &models.Candidate{ID: id, Name: name}
	r.candidates[id] = c
	return *c, nil
}

func (r *Registry) AddVoter(id, name string) (models.Voter, error) {
	id, name, err := validateEntry(id, name)
	if err != nil {
		return models.Voter{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.voters[id]; ok {
		return models.Voter{}, fmt.Errorf("%w: %s", ErrDuplicateVoter, id)
	}
	v := &models.Voter{ID: id, Name: name}
	r.voters[id] = v
	return *v, nil
}

// Voter returns a copy of the voter registered under id.
func (r *Registry) Voter(id string) (models.Voter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.voters[strings.TrimSpace(id)]
	if !ok {
		return models.Voter{}, fmt.Errorf("%w: %s", ErrVoterNotFound, id)
	}
	return *v, nil
}

func (r *Registry) Candidate(id string) (models.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.candidates[strings.TrimSpace(id)]
	if !ok {
		return models.Candidate{}, fmt.Errorf("%w: %s", ErrCandidateNotFound, id)
	}
	return *c, nil
}

// Voters returns every voter sorted by id.
func (r *Registry) Voters() []models.Voter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	voters := make([]models.Voter, 0, len(r.voters))
	for _, v := range r.voters {
		voters = append(voters, *v)
	}
	sort.Slice(voters, func(i, j int) bool { return voters[i].ID < voters[j].ID })
	return voters
}

// Candidates returns every candidate sorted by id.
func (r *Registry) Candidates() []models.Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make([]models.Candidate, 0, len(r.candidates))
	for _, c := range r.candidates {
		candidates = append(candidates, *c)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates
}

// MarkVoted flags the voter as having cast a ballot.
func (r *Registry) MarkVoted(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.voters[strings.TrimSpace(id)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrVoterNotFound, id)
	}
	if v.HasVoted {
		return fmt.Errorf("%w: %s", ErrAlreadyVoted, id)
	}
	v.HasVoted = true
	return nil
}
