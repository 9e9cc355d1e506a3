// Package console is the interactive voting management menu.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"voting-ledger/blockchain/ledger"
	"voting-ledger/log"
	"voting-ledger/registry"
	"voting-ledger/service"
	"voting-ledger/storage"
)

const (
	optAddCandidate = iota
	optAddVoter
	optCastVote
	optPrintChain
	optValidate
	optResults
	optExport
	optExit
)

var menuItems = []string{
	"1. Add Candidate",
	"2. Add Voter",
	"3. Cast Vote",
	"4. Print Blockchain",
	"5. Validate Chain",
	"6. Results",
	"7. Export Chain",
	"8. Exit",
}

var (
	titlePrint = color.New(color.FgHiYellow, color.Bold)
	keysPrint  = color.New(color.FgCyan, color.Bold)
	infoPrint  = color.New(color.FgGreen)
	errorPrint = color.New(color.FgHiRed)
)

type Console struct {
	svc     *service.VotingService
	prompt  Prompter
	out     io.Writer
	archive *storage.Archive
}

// New returns a menu over svc. archive may be nil, which disables the
// export option.
func New(svc *service.VotingService, prompt Prompter, out io.Writer, archive *storage.Archive) *Console {
	return &Console{svc: svc, prompt: prompt, out: out, archive: archive}
}

// Run shows the menu until the operator exits or closes the prompt.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		option, err := c.prompt.Select("Voting Management System", menuItems)
		if err != nil {
			if isAbort(err) {
				return nil
			}
			return err
		}
		switch option {
		case optAddCandidate:
			err = c.addCandidate()
		case optAddVoter:
			err = c.addVoter()
		case optCastVote:
			err = c.castVote(ctx)
		case optPrintChain:
			err = c.printChain()
		case optValidate:
			c.validateChain()
		case optResults:
			err = c.results()
		case optExport:
			err = c.exportChain()
		case optExit:
			fmt.Fprintln(c.out, "Goodbye!")
			return nil
		default:
			c.fail("Invalid choice. Please enter a number between 1 and %d.", len(menuItems))
		}
		if err != nil {
			if isAbort(err) {
				return nil
			}
			return err
		}
	}
}

func (c *Console) fail(format string, args ...interface{}) {
	errorPrint.Fprintf(c.out, "! "+format+"\n", args...)
}

func (c *Console) ok(format string, args ...interface{}) {
	infoPrint.Fprintf(c.out, "✓ "+format+"\n", args...)
}

func (c *Console) section(title string) {
	titlePrint.Fprintf(c.out, "\n=== %s ===\n", title)
}

func (c *Console) addCandidate() error {
	c.section("Add Candidate")
	id, err := c.prompt.Input("Enter candidate ID")
	if err != nil {
		return err
	}
	if id == "" {
		c.fail("Candidate ID cannot be empty.")
		return nil
	}
	if _, err := c.svc.Candidate(id); err == nil {
		c.fail("Duplicate candidate ID. Choose another.")
		return nil
	}
	name, err := c.prompt.Input("Enter candidate name")
	if err != nil {
		return err
	}
	if name == "" {
		c.fail("Candidate name cannot be empty.")
		return nil
	}
	cand, err := c.svc.AddCandidate(id, name)
	if err != nil {
		c.fail("%s.", capitalize(err.Error()))
		return nil
	}
	c.ok("Candidate added: %s (%s)", cand.ID, cand.Name)
	return nil
}

func (c *Console) addVoter() error {
	c.section("Add Voter")
	id, err := c.prompt.Input("Enter voter ID")
	if err != nil {
		return err
	}
	if id == "" {
		c.fail("Voter ID cannot be empty.")
		return nil
	}
	if _, err := c.svc.Voter(id); err == nil {
		c.fail("Duplicate voter ID. Choose another.")
		return nil
	}
	name, err := c.prompt.Input("Enter voter name")
	if err != nil {
		return err
	}
	if name == "" {
		c.fail("Voter name cannot be empty.")
		return nil
	}
	voter, err := c.svc.AddVoter(id, name)
	if err != nil {
		c.fail("%s.", capitalize(err.Error()))
		return nil
	}
	c.ok("Voter added: %s (%s)", voter.ID, voter.Name)
	return nil
}

func (c *Console) castVote(ctx context.Context) error {
	c.section("Cast Vote")
	if !c.svc.IsVotingActive() {
		c.fail("The voting session has ended.")
		return nil
	}
	if len(c.svc.Voters()) == 0 {
		c.fail("No voters registered. Add voters first.")
		return nil
	}
	candidates := c.svc.Candidates()
	if len(candidates) == 0 {
		c.fail("No candidates registered. Add candidates first.")
		return nil
	}

	voterID, err := c.prompt.Input("Enter your voter ID")
	if err != nil {
		return err
	}
	voter, err := c.svc.Voter(voterID)
	if err != nil {
		c.fail("Voter not found.")
		return nil
	}
	if voter.HasVoted {
		c.fail("This voter has already voted. Double-voting is not allowed.")
		return nil
	}

	fmt.Fprintln(c.out, "Available candidates:")
	for _, cand := range candidates {
		fmt.Fprintf(c.out, "  - %s: %s\n", keysPrint.Sprint(cand.ID), cand.Name)
	}
	candidateID, err := c.prompt.Input("Enter candidate ID to vote for")
	if err != nil {
		return err
	}
	candidate, err := c.svc.Candidate(candidateID)
	if err != nil {
		c.fail("Candidate not found.")
		return nil
	}

	fmt.Fprintf(c.out, "Mining block at difficulty %d...\n", c.svc.Difficulty())
	receipt, err := c.svc.CastVote(ctx, voter.ID, candidate.ID)
	switch {
	case errors.Is(err, registry.ErrAlreadyVoted):
		c.fail("This voter has already voted. Double-voting is not allowed.")
		return nil
	case errors.Is(err, service.ErrSessionClosed):
		c.fail("The voting session has ended.")
		return nil
	case err != nil:
		log.Warnw("vote failed", "voter", voter.ID, "error", err)
		c.fail("Vote not recorded: %v", err)
		return nil
	}
	c.ok("Vote cast: %s -> %s", voter.Name, candidate.Name)
	fmt.Fprintf(c.out, "  Block #%d mined with hash: %s\n", receipt.BlockIndex, receipt.BlockHash)
	fmt.Fprintf(c.out, "  Receipt: %s\n", receipt.ID)
	return nil
}

func (c *Console) validateChain() {
	c.section("Validate Chain")
	err := c.svc.Validate()
	if err == nil {
		c.ok("Blockchain is VALID.")
		return
	}
	errorPrint.Fprintln(c.out, "✗ Blockchain is INVALID!")
	var verr *ledger.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintf(c.out, "  %s check failed at block #%d\n", verr.Check, verr.Index)
	}
}

func (c *Console) results() error {
	c.section("Results")
	res, err := c.svc.Tally()
	if err != nil {
		c.fail("Cannot count votes: %v", err)
		return nil
	}
	table, err := resultsTable(res)
	if err != nil {
		return err
	}
	fmt.Fprint(c.out, table)
	fmt.Fprintf(c.out, "Total votes: %d\n", res.TotalVotes)
	return nil
}

func (c *Console) exportChain() error {
	c.section("Export Chain")
	if c.archive == nil {
		c.fail("Export is not configured.")
		return nil
	}
	exp := &storage.Export{
		Difficulty:    c.svc.Difficulty(),
		HashAlgorithm: c.svc.HashAlgorithm(),
		Blocks:        c.svc.Chain(),
	}
	if c.svc.Authority() != nil {
		att, err := c.svc.Attest()
		if err != nil {
			c.fail("Cannot attest chain head: %v", err)
			return nil
		}
		exp.Attestation = att
	}
	path, err := c.archive.Save(exp)
	if err != nil {
		c.fail("Export failed: %v", err)
		return nil
	}
	c.ok("Chain exported to %s", path)
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
