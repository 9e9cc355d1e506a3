package console

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"

	"voting-ledger/models"
	"voting-ledger/service"
)

const timeLayout = "2006-01-02 15:04:05"

func formatTimestamp(ts float64) string {
	return models.Time(ts).Format(timeLayout)
}

func (c *Console) printChain() error {
	c.section("Blockchain Contents")
	for _, b := range c.svc.Chain() {
		s, err := blockTable(b)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "\n%s\n%s", keysPrint.Sprintf("Block #%d", b.Index), s)
	}
	return nil
}

// blockTable renders the block header and, below it, its transactions.
func blockTable(b models.Block) (string, error) {
	header, err := pterm.DefaultTable.WithData(pterm.TableData{
		{"Timestamp", formatTimestamp(b.Timestamp)},
		{"Previous Hash", b.PrevHash},
		{"Nonce", strconv.FormatUint(b.Nonce, 10)},
		{"Hash", b.Hash},
	}).Srender()
	if err != nil {
		return "", err
	}
	if len(b.Transactions) == 0 {
		return header + "\nTransactions: (none – genesis block)\n", nil
	}

	data := pterm.TableData{{"voter_id", "candidate_id", "time"}}
	for _, tx := range b.Transactions {
		data = append(data, []string{tx.VoterID, tx.CandidateID, formatTimestamp(tx.Timestamp)})
	}
	txs, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return "", err
	}
	return header + "\nTransactions:\n" + txs + "\n", nil
}

func resultsTable(res *service.VotingResults) (string, error) {
	data := pterm.TableData{{"Candidate", "Name", "Votes"}}
	for _, r := range res.Candidates {
		data = append(data, []string{r.CandidateID, r.Name, strconv.Itoa(r.Votes)})
	}
	s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return "", err
	}
	return s + "\n", nil
}
