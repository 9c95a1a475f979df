package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gustakei/lave/config"
	"github.com/gustakei/lave/scraper/portal"
	"github.com/gustakei/lave/storage"
	"github.com/gustakei/lave/utils"
)

func main() {
	units := flag.String("units", "", "comma-separated unit IDs to scrape (required)")
	start := flag.String("start", "", "start date, YYYY-MM-DD (optional)")
	end := flag.String("end", "", "end date, YYYY-MM-DD (optional)")
	output := flag.String("output", "./reports/report.csv", "CSV output path")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logger := utils.NewLogger()
	if *verbose {
		logger.EnableDebug()
	}

	unitIDs := splitUnits(*units)
	if len(unitIDs) == 0 {
		fmt.Fprintln(os.Stderr, "usage: report --units u1,u2 [--start YYYY-MM-DD] [--end YYYY-MM-DD] [--output file.csv]")
		os.Exit(2)
	}

	cfg := config.Load()
	metrics := portal.NewMetrics()

	scraper := portal.New(cfg, logger, metrics)
	if err := scraper.Start(context.Background()); err != nil {
		logger.Error("Failed to start browser: %v", err)
		os.Exit(1)
	}
	defer scraper.Close()

	orch := portal.NewOrchestrator(scraper, cfg, logger, metrics)
	report := orch.ScrapeUnits(context.Background(), portal.BatchRequest{
		Units:     unitIDs,
		StartDate: *start,
		EndDate:   *end,
		Username:  cfg.LoginUsername,
		Password:  cfg.LoginPassword,
	})

	var grandTotal float64
	for _, r := range report.Results {
		if r.Error != "" {
			fmt.Printf("  ✗ %s: %s\n", r.UnitID, r.Error)
			continue
		}
		fmt.Printf("  ✓ %s: %.2f kg over %d days\n", r.UnitID, r.Total, len(r.Rows))
		grandTotal += r.Total
	}
	fmt.Printf("\nTotal: %.2f kg across %d/%d units\n",
		grandTotal, report.SuccessfulUnits, report.TotalUnits)

	writer, err := storage.NewCSVWriter(*output)
	if err != nil {
		logger.Error("Could not open CSV output: %v", err)
		os.Exit(1)
	}
	defer writer.Close()

	if err := writer.WriteReport(report.Results); err != nil {
		logger.Error("CSV export failed: %v", err)
		os.Exit(1)
	}
	logger.Info("Report written to %s", *output)

	if report.FailedUnits > 0 {
		os.Exit(1)
	}
}

func splitUnits(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
