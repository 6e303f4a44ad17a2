package cmd

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"splitbook/ledger"
)

var inputPath string
var outputPath string

// planGroupID scopes every bill parsed from one CSV run.
var planGroupID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plan",
		Short:   "plan settlements from a bills CSV",
		Long:    `accept two file paths, one for input and one for output. It reads bills from the input CSV (title, amount in minor units, payer, comma-separated participants), computes the balance ledger, and writes a settlement plan to the output file.`,
		Example: `splitbook plan --input bills.csv --output plan.txt`,
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

			bills, names, err := ParseCSVToBills(csvContent)
			if err != nil {
				return fmt.Errorf("failed to parse CSV: %w", err)
			}
			if len(bills) == 0 {
				return fmt.Errorf("no valid bills found in the CSV")
			}

			report, err := RenderSettlementPlan(bills, names)
			if err != nil {
				return err
			}

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

			_, err = outputFile.Write([]byte(report))
			if err != nil {
				return err
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "csv input file path (required)")
	err := cmd.MarkFlagRequired("input")
	if err != nil {
		log.Fatal(err)
		return nil
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (required)")
	err = cmd.MarkFlagRequired("output")
	if err != nil {
		log.Fatal(err)
		return nil
	}

	return cmd
}

// userIDForName derives a stable id from a participant name so repeated
// runs over the same CSV agree.
func userIDForName(name string) uuid.UUID {
	return uuid.NewSHA1(planGroupID, []byte(name))
}

// ParseCSVToBills parses CSV content into equal-split ledger bills. The
// expected columns are title, amount in minor units, payer name, and a
// comma-separated participant list. The returned map recovers names from
// derived user ids.
func ParseCSVToBills(csvContent [][]string) ([]ledger.Bill, map[uuid.UUID]string, error) {
	if len(csvContent) == 0 {
		return nil, nil, fmt.Errorf("CSV is empty")
	}

	// skip the header row
	dataRows := csvContent[1:]
	names := make(map[uuid.UUID]string)

	var bills []ledger.Bill
	for i, row := range dataRows {
		if len(row) != 4 {
			return nil, nil, fmt.Errorf("row %d: expected 4 columns, but got %d", i+2, len(row)) // +2 to account for the header row
		}

		amount, err := strconv.ParseInt(row[1], 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: failed to convert amount '%s' to int64: %w", i+2, row[1], err)
		}
		if amount <= 0 {
			return nil, nil, fmt.Errorf("row %d: amount must be positive, got %d", i+2, amount)
		}

		payerName := strings.TrimSpace(row[2])
		if payerName == "" {
			return nil, nil, fmt.Errorf("row %d: payer is empty", i+2)
		}
		payerID := userIDForName(payerName)
		names[payerID] = payerName

		participantNames := strings.Split(row[3], ",")
		var splits []ledger.Split
		for _, pn := range participantNames {
			pn = strings.TrimSpace(pn)
			if pn == "" {
				continue
			}
			pid := userIDForName(pn)
			names[pid] = pn
			splits = append(splits, ledger.Split{UserID: pid})
		}
		if len(splits) == 0 {
			return nil, nil, fmt.Errorf("row %d: no participants", i+2)
		}

		bills = append(bills, ledger.Bill{
			ID:      uuid.NewSHA1(planGroupID, []byte(fmt.Sprintf("bill-%d", i))),
			GroupID: planGroupID,
			PayerID: payerID,
			Title:   row[0],
			Items: []ledger.BillItem{{
				ID:       uuid.NewSHA1(planGroupID, []byte(fmt.Sprintf("item-%d", i))),
				Name:     row[0],
				Price:    ledger.Money(amount),
				Quantity: 1,
				Mode:     ledger.SplitEqual,
				Splits:   splits,
			}},
		})
	}

	return bills, names, nil
}

// RenderSettlementPlan computes balances over the bills and renders the
// per-user nets and the transfer list as a text report.
func RenderSettlementPlan(bills []ledger.Bill, names map[uuid.UUID]string) (string, error) {
	sheet, err := ledger.ComputeBalances(ledger.Snapshot{Bills: bills}, ledger.GroupScope(planGroupID), ledger.DefaultTolerance)
	if err != nil {
		return "", fmt.Errorf("failed to compute balances: %w", err)
	}

	nameOf := func(id uuid.UUID) string {
		if n, ok := names[id]; ok {
			return n
		}
		return id.String()
	}

	var sb strings.Builder
	sb.WriteString("Net balances:\n")
	users := sheet.Users()
	sort.Slice(users, func(i, j int) bool { return nameOf(users[i]) < nameOf(users[j]) })
	for _, u := range users {
		sb.WriteString(fmt.Sprintf("  %s: %d\n", nameOf(u), sheet.PerUser[u]))
	}

	plan := ledger.PlanSettlement(sheet)
	sb.WriteString(fmt.Sprintf("Settlement plan (%d transfers):\n", len(plan)))
	for _, t := range plan {
		sb.WriteString(fmt.Sprintf("  %s -> %s: %d\n", nameOf(t.From), nameOf(t.To), t.Amount))
	}
	return sb.String(), nil
}
