package cmd

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"splitledger/ledger"
)

var inputPath string
var outputPath string

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plan",
		Short:   "turn a balance CSV into a settlement plan",
		Long:    `accept two CSV file paths, one for input and one for output. The input lists one signed balance per user (positive means the user is owed money); the output lists the payments that zero every balance.`,
		Example: `splitledger plan --input balances.csv --output payments.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" || outputPath == "" {
				return cmd.Help()
			}

			inputFile, err := os.Open(inputPath)
			if err != nil {
				return err
			}
			defer func(inputFile *os.File) {
				err := inputFile.Close()
				if err != nil {
					log.Fatalf("Failed to close input file: %v", err)
				}
			}(inputFile)

			csvContent, err := csv.NewReader(inputFile).ReadAll()
			if err != nil {
				return err
			}

			balances, err := ParseCSVToBalances(csvContent)
			if err != nil {
				return fmt.Errorf("failed to parse CSV: %w", err)
			}
			if len(balances) == 0 {
				return fmt.Errorf("no balances found in the CSV")
			}

			payments := ledger.SimplifyDebts(balances)

			outputFile, err := os.Create(outputPath)
			if err != nil {
				return err
			}
			defer func(outputFile *os.File) {
				err := outputFile.Close()
				if err != nil {
					log.Fatalf("Failed to close output file: %v", err)
				}
			}(outputFile)

			writer := csv.NewWriter(outputFile)
			if err := writer.Write([]string{"from", "to", "amount"}); err != nil {
				return err
			}
			for _, p := range payments {
				if err := writer.Write([]string{p.FromUserID, p.ToUserID, p.Amount.StringFixed(2)}); err != nil {
					return err
				}
			}
			writer.Flush()
			return writer.Error()
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "csv input file path (required)")
	err := cmd.MarkFlagRequired("input")
	if err != nil {
		log.Fatal(err)
		return nil
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "csv output file path (required)")
	err = cmd.MarkFlagRequired("output")
	if err != nil {
		log.Fatal(err)
		return nil
	}

	return cmd
}

// ParseCSVToBalances parses a two-column CSV (user, balance) into a balance
// snapshot. The balances must sum to zero for the plan to clear everyone;
// SimplifyDebts leaves any excess with the last unmatched side.
func ParseCSVToBalances(csvContent [][]string) (map[string]decimal.Decimal, error) {
	if len(csvContent) == 0 {
		return nil, fmt.Errorf("CSV is empty")
	}

	// skip the header row
	dataRows := csvContent[1:]

	balances := make(map[string]decimal.Decimal)
	for i, row := range dataRows {
		if len(row) != 2 {
			return nil, fmt.Errorf("row %d: expected 2 columns, but got %d", i+2, len(row)) // +2 to account for the header row
		}

		amount, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: failed to convert balance '%s' to decimal: %w", i+2, row[1], err)
		}

		if _, exists := balances[row[0]]; exists {
			return nil, fmt.Errorf("row %d: duplicate user %q", i+2, row[0])
		}
		balances[row[0]] = amount
	}

	return balances, nil
}
