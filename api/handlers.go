package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"

	"voting-ledger/blockchain/ledger"
	"voting-ledger/log"
	"voting-ledger/models"
	"voting-ledger/registry"
	"voting-ledger/service"
)

type ChainResponse struct {
	Length        int                  `json:"length"`
	Difficulty    int                  `json:"difficulty"`
	HashAlgorithm models.HashAlgorithm `json:"hash_algorithm"`
	IsValid       bool                 `json:"is_valid"`
	LastHash      string               `json:"last_hash"`
	Blocks        []models.Block       `json:"blocks"`
}

type BlockVerification struct {
	CalculatedHash  string `json:"calculated_hash"`
	StoredHash      string `json:"stored_hash"`
	HashMatch       bool   `json:"hash_match"`
	MeetsDifficulty bool   `json:"meets_difficulty"`
}

type BlockResponse struct {
	Block        models.Block      `json:"block"`
	Verification BlockVerification `json:"verification"`
}

type ValidationResponse struct {
	IsValid bool             `json:"is_valid"`
	Error   *ValidationError `json:"error,omitempty"`
}

type ValidationError struct {
	BlockIndex uint64 `json:"block_index"`
	Check      string `json:"check"`
	Expected   string `json:"expected,omitempty"`
	Actual     string `json:"actual,omitempty"`
	Message    string `json:"message"`
}

type RegisterRequest struct {
	VoterID     string `json:"voter_id,omitempty"`
	CandidateID string `json:"candidate_id,omitempty"`
	Name        string `json:"name"`
}

type CastVoteRequest struct {
	VoterID     string `json:"voter_id"`
	CandidateID string `json:"candidate_id"`
}

type SessionResponse struct {
	Active           bool       `json:"voting_active"`
	StartTime        time.Time  `json:"start_time"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	RegisteredVoters int        `json:"registered_voters"`
	VotedVoters      int        `json:"voted_voters"`
	Blocks           int        `json:"blocks"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("cannot write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Errorw("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrEmptyID), errors.Is(err, registry.ErrEmptyName):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrVoterNotFound),
		errors.Is(err, registry.ErrCandidateNotFound),
		errors.Is(err, ledger.ErrBlockNotFound),
		errors.Is(err, service.ErrNoAuthority):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrDuplicateVoter),
		errors.Is(err, registry.ErrDuplicateCandidate),
		errors.Is(err, registry.ErrAlreadyVoted):
		return http.StatusConflict
	case errors.Is(err, service.ErrSessionClosed):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// maxBodySize bounds register and vote payloads.
const maxBodySize = 4 << 10

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (a *API) chainHandler(w http.ResponseWriter, r *http.Request) {
	blocks := a.svc.Chain()
	writeJSON(w, http.StatusOK, ChainResponse{
		Length:        len(blocks),
		Difficulty:    a.svc.Difficulty(),
		HashAlgorithm: a.svc.HashAlgorithm(),
		IsValid:       ledger.VerifyBlocks(blocks, a.svc.Difficulty(), a.svc.HashAlgorithm()) == nil,
		LastHash:      blocks[len(blocks)-1].Hash,
		Blocks:        blocks,
	})
}

func (a *API) blockHandler(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "block index must be a non-negative integer"})
		return
	}
	b, err := a.svc.Block(index)
	if err != nil {
		writeError(w, err)
		return
	}
	calculated, err := b.CalculateHash(a.svc.HashAlgorithm())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BlockResponse{
		Block: b,
		Verification: BlockVerification{
			CalculatedHash:  calculated,
			StoredHash:      b.Hash,
			HashMatch:       calculated == b.Hash,
			MeetsDifficulty: models.MeetsDifficulty(b.Hash, a.svc.Difficulty()),
		},
	})
}

func (a *API) validateHandler(w http.ResponseWriter, r *http.Request) {
	err := a.svc.Validate()
	if err == nil {
		writeJSON(w, http.StatusOK, ValidationResponse{IsValid: true})
		return
	}
	resp := ValidationResponse{Error: &ValidationError{Message: err.Error()}}
	var verr *ledger.ValidationError
	if errors.As(err, &verr) {
		resp.Error.BlockIndex = verr.Index
		resp.Error.Check = string(verr.Check)
		resp.Error.Expected = verr.Expected
		resp.Error.Actual = verr.Actual
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) headHandler(w http.ResponseWriter, r *http.Request) {
	att, err := a.svc.Attest()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, att)
}

func (a *API) resultsHandler(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.Tally()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) candidatesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Candidates())
}

func (a *API) addCandidateHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := a.svc.AddCandidate(req.CandidateID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) votersHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Voters())
}

func (a *API) voterHandler(w http.ResponseWriter, r *http.Request) {
	v, err := a.svc.Voter(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) addVoterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := a.svc.AddVoter(req.VoterID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (a *API) castVoteHandler(w http.ResponseWriter, r *http.Request) {
	var req CastVoteRequest
	if !decode(w, r, &req) {
		return
	}
	receipt, err := a.svc.CastVote(r.Context(), req.VoterID, req.CandidateID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (a *API) verifyVotesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.VerifyVoteCount())
}

func (a *API) sessionHandler(w http.ResponseWriter, r *http.Request) {
	session := a.svc.Session()
	check := a.svc.VerifyVoteCount()
	resp := SessionResponse{
		Active:           session.IsActive(),
		StartTime:        session.StartTime(),
		RegisteredVoters: check.RegisteredVoters,
		VotedVoters:      check.VotedVoters,
		Blocks:           len(a.svc.Chain()),
	}
	if deadline, ok := session.Deadline(); ok {
		resp.Deadline = &deadline
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) endSessionHandler(w http.ResponseWriter, r *http.Request) {
	a.svc.EndSession()
	a.sessionHandler(w, r)
}
