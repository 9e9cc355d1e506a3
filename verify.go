package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"voting-ledger/blockchain/ledger"
	"voting-ledger/storage"
)

var errInvalidExport = errors.New("chain export is invalid")

var verifyCmd = &cobra.Command{
	Use:   "verify [file]",
	Short: "Verify a chain export, by default the newest one in the data dir.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  verify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func verify(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		archive, err := storage.NewArchive(cfg.DataDir, cfg.ExportKeep)
		if err != nil {
			return err
		}
		if path, err = archive.Latest(); err != nil {
			return err
		}
		if path == "" {
			return fmt.Errorf("no chain export found in %s", archive.Dir())
		}
	}
	return verifyExport(cmd.OutOrStdout(), path)
}

func verifyExport(out io.Writer, path string) error {
	exp, err := storage.ReadChain(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d blocks, difficulty %d, %s\n",
		path, len(exp.Blocks), exp.Difficulty, exp.HashAlgorithm)
	if exp.Attestation != nil {
		fmt.Fprintf(out, "attested by %s at block #%d\n", exp.Attestation.Signer.Hex(), exp.Attestation.Index)
	}

	if err := exp.Verify(); err != nil {
		color.New(color.FgHiRed).Fprintln(out, "✗ Blockchain is INVALID!")
		var verr *ledger.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(out, "  %s check failed at block #%d\n", verr.Check, verr.Index)
		} else {
			fmt.Fprintf(out, "  %v\n", err)
		}
		return errInvalidExport
	}
	color.New(color.FgGreen).Fprintln(out, "✓ Blockchain is VALID.")
	return nil
}
