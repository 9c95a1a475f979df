package portal

import (
	"context"
	"errors"
	"time"

	"github.com/gustakei/lave/config"
	"github.com/gustakei/lave/models"
	"github.com/gustakei/lave/services"
	"github.com/gustakei/lave/utils"
)

// UnitScraper is the capability the orchestrator drives: one unit through
// the portal, producing a result whose Error field marks failure.
type UnitScraper interface {
	ScrapeUnit(ctx context.Context, req UnitRequest) *models.UnitResult
}

// BatchRequest describes a multi-unit scrape.
type BatchRequest struct {
	Units        []string
	StartDate    string
	EndDate      string
	Username     string
	Password     string
	DateSelector string
	KgSelector   string
}

// Orchestrator fans a batch of units out over the portal driver with
// bounded concurrency, per-unit retry and inter-unit pacing.
type Orchestrator struct {
	driver  UnitScraper
	cfg     *config.Config
	logger  *utils.Logger
	metrics *Metrics
}

// NewOrchestrator creates an Orchestrator over the given driver.
func NewOrchestrator(driver UnitScraper, cfg *config.Config, logger *utils.Logger, metrics *Metrics) *Orchestrator {
	return &Orchestrator{
		driver:  driver,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// ScrapeUnits processes every requested unit and always returns a full
// report: one result per unit, in request order, with all failure detail
// pushed into per-unit Error fields. The batch itself never fails.
func (o *Orchestrator) ScrapeUnits(ctx context.Context, req BatchRequest) *models.ScrapeReport {
	startDate, endDate := services.ValidateDateRange(req.StartDate, req.EndDate)
	o.logger.Info("[orchestrator] scraping %d units, period: %s to %s",
		len(req.Units), orDisplay(startDate), orDisplay(endDate))

	// Results are correlated by request index, never appended in
	// completion order.
	results := make([]*models.UnitResult, len(req.Units))
	pool := utils.NewWorkerPool(o.cfg.MaxConcurrency, 0)

	for i, unitID := range req.Units {
		i, unitID := i, unitID
		pool.Submit(func() {
			results[i] = o.scrapeWithRetry(ctx, UnitRequest{
				UnitID:       unitID,
				StartDate:    startDate,
				EndDate:      endDate,
				Username:     req.Username,
				Password:     req.Password,
				DateSelector: req.DateSelector,
				KgSelector:   req.KgSelector,
			})
			// Inter-unit pacing: hold the concurrency slot through the
			// delay so the portal sees a steady request rate.
			time.Sleep(o.cfg.NavDelay())
		})
	}
	pool.Wait()

	report := &models.ScrapeReport{
		Results:    results,
		TotalUnits: len(results),
	}
	for _, r := range results {
		if r.Error == "" {
			report.SuccessfulUnits++
		} else {
			report.FailedUnits++
		}
	}

	o.logger.Info("[orchestrator] batch done: %d ok, %d failed",
		report.SuccessfulUnits, report.FailedUnits)
	return report
}

// scrapeWithRetry attempts one unit up to maxRetries+1 times with a fixed
// delay between attempts. An empty row set counts as success; only a set
// Error field triggers another attempt. The final result always carries the
// last attempt's outcome.
func (o *Orchestrator) scrapeWithRetry(ctx context.Context, req UnitRequest) *models.UnitResult {
	retry := &utils.RetryConfig{
		MaxAttempts: o.cfg.MaxRetries + 1,
		Delay:       o.cfg.NavDelay(),
		Logger:      o.logger,
	}

	var result *models.UnitResult
	attempt := 0
	_ = retry.Do("unit-"+services.NormalizeUnitID(req.UnitID), func() error {
		attempt++
		if attempt > 1 {
			o.metrics.IncRetries()
		}
		result = o.driver.ScrapeUnit(ctx, req)
		if result.Error != "" {
			return errors.New(result.Error)
		}
		return nil
	})

	if result == nil {
		result = &models.UnitResult{
			UnitID: req.UnitID,
			Rows:   []models.Row{},
			Error:  "no attempt completed",
		}
	}

	if result.Error == "" {
		o.metrics.IncUnit("success")
	} else {
		o.metrics.IncUnit("failure")
	}
	return result
}

func orDisplay(date string) string {
	if date == "" {
		return "(open)"
	}
	return date
}
