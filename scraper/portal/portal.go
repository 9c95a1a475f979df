package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	cdpstorage "github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/gustakei/lave/config"
	"github.com/gustakei/lave/models"
	"github.com/gustakei/lave/services"
	"github.com/gustakei/lave/storage"
	"github.com/gustakei/lave/utils"
)

// Default cell selectors for the portal's report table: date in the first
// column, kg in the second.
const (
	DefaultDateSelector = "td:nth-child(1)"
	DefaultKgSelector   = "td:nth-child(2)"
)

const (
	// probeTimeout bounds each individual heuristic selector probe.
	probeTimeout = 2 * time.Second
	// tableTimeout is the longer budget for locating the report table.
	tableTimeout = 5 * time.Second
	// settleDelay approximates a network-idle wait after navigations and
	// form submissions.
	settleDelay = 2 * time.Second
)

// Heuristic selector lists, tried in order. The portal's markup varies
// across versions, so each concern carries several candidates.
var (
	usernameSelectors = []string{
		`input[name="username"]`, `input[name="user"]`, `input#username`,
		`input[type="text"]`, `input[placeholder*="usuário"]`, `input[placeholder*="user"]`,
	}
	passwordSelectors = []string{
		`input[name="password"]`, `input#password`,
		`input[type="password"]`, `input[placeholder*="senha"]`,
	}
	submitSelectors = []string{
		`button[type="submit"]`, `input[type="submit"]`,
	}
	periodSelectSelectors = []string{
		`select[name*="mes"]`, `select[name*="month"]`,
		`select[id*="mes"]`, `select[id*="month"]`,
		`select[name*="periodo"]`, `select[name*="data"]`,
	}
	tableSelectors = []string{
		`table`, `table#report`, `table.data-table`,
		`div[role="table"]`, `.table`, `#data-table`,
	}
)

// UnitRequest describes one unit scrape: which unit, the validated date
// range, credentials for a possible login wall, and the table cell
// selectors.
type UnitRequest struct {
	UnitID       string
	StartDate    string
	EndDate      string
	Username     string
	Password     string
	DateSelector string
	KgSelector   string
}

// Scraper owns one headless browser instance and drives units through the
// laundry portal. Each scrape or discovery call opens a fresh browsing
// context (tab) seeded from the persisted session state and closes it on
// every exit path.
type Scraper struct {
	cfg     *config.Config
	logger  *utils.Logger
	metrics *Metrics

	browserCtx context.Context
	cancels    []context.CancelFunc

	// Serializes login execution; the session-state file itself is
	// last-writer-wins.
	loginMu sync.Mutex
}

// New creates a Scraper. Call Start before use and Close when done.
func New(cfg *config.Config, logger *utils.Logger, metrics *Metrics) *Scraper {
	return &Scraper{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Start launches the browser process. The returned error is fatal: no
// scraping can happen without a browser.
func (s *Scraper) Start(ctx context.Context) error {
	chromeBin := findChromeBinary(s.cfg.ChromeBin)
	if chromeBin != "" {
		s.logger.Info("[portal] using browser binary: %s", chromeBin)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return fmt.Errorf("portal: launch browser: %w", err)
	}

	s.browserCtx = browserCtx
	s.cancels = []context.CancelFunc{cancelBrowser, cancelAlloc}
	s.logger.Info("[portal] browser started")
	return nil
}

// Close shuts the browser down.
func (s *Scraper) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
	s.logger.Info("[portal] browser closed")
}

// ScrapeUnit drives one unit through the portal: navigate, log in if a
// login wall appears, select the target period, extract and normalize the
// report table. It never fails wholesale: any error lands in the result's
// Error field with empty rows.
func (s *Scraper) ScrapeUnit(ctx context.Context, req UnitRequest) *models.UnitResult {
	result := &models.UnitResult{UnitID: req.UnitID, Rows: []models.Row{}}
	canonical := services.NormalizeUnitID(req.UnitID)

	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	defer cancel()

	s.logger.Info("[portal] scraping unit %s", canonical)

	if err := s.driveUnit(tabCtx, req, result); err != nil {
		wrapped := err
		if errorTypeLabel(err) == "other" {
			wrapped = ErrUnitProcessing{UnitID: canonical, Err: err}
		}
		s.metrics.IncError(wrapped)
		result.Rows = []models.Row{}
		result.Total = 0
		result.Error = wrapped.Error()
		s.logger.Error("[portal] unit %s failed: %v", canonical, wrapped)
	}
	return result
}

func (s *Scraper) driveUnit(ctx context.Context, req UnitRequest, result *models.UnitResult) error {
	started := time.Now()
	defer func() { s.metrics.ObserveAttempt(time.Since(started)) }()

	s.restoreSession(ctx)

	unitURL := s.cfg.UnitURL(req.UnitID)
	if err := s.navigate(ctx, unitURL); err != nil {
		return err
	}

	if s.loginRequired(ctx) {
		if req.Username == "" || req.Password == "" {
			return ErrLoginRequired{Err: errors.New("no credentials supplied")}
		}
		if err := s.login(ctx, req.Username, req.Password); err != nil {
			return err
		}
		// Back to the unit page: login may have landed anywhere.
		if err := s.navigate(ctx, unitURL); err != nil {
			return err
		}
	}

	if req.StartDate != "" {
		s.selectMonthYear(ctx, req.StartDate)
	}

	rows, err := s.extractTable(ctx, req.DateSelector, req.KgSelector)
	if err != nil {
		return err
	}

	if req.StartDate != "" || req.EndDate != "" {
		rows = services.FilterByDateRange(rows, req.StartDate, req.EndDate)
	}

	if rows == nil {
		rows = []models.Row{}
	}
	result.Rows = rows
	result.Total = services.SumWeights(rows)
	s.metrics.AddRows(len(rows))

	s.logger.Info("[portal] unit %s: %d rows, total %.2f kg",
		services.NormalizeUnitID(req.UnitID), len(rows), result.Total)
	return nil
}

// navigate loads a URL and waits for the page to settle, within the
// configured navigation timeout.
func (s *Scraper) navigate(ctx context.Context, pageURL string) error {
	s.logger.Debug("[portal] navigating to %s", pageURL)

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout())
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(settleDelay),
	)
	return classifyNavError(err)
}

// loginRequired probes the current page for a login wall: first a password
// input, then localized login-related words in the page text.
func (s *Scraper) loginRequired(ctx context.Context) bool {
	if _, ok := probeFirst(ctx, []string{`input[type="password"]`}, probeTimeout); ok {
		s.logger.Info("[portal] login wall detected")
		return true
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var hit bool
	script := `["usuário","usuario","senha","login","entrar"].some(function(w){
		return (document.body.innerText || "").toLowerCase().indexOf(w) !== -1;
	})`
	if err := chromedp.Run(probeCtx, chromedp.Evaluate(script, &hit)); err != nil {
		return false
	}
	if hit {
		s.logger.Info("[portal] login wall detected (text marker)")
	}
	return hit
}

// login fills and submits the login form, then unconditionally persists the
// session state so later contexts can skip the login wall.
func (s *Scraper) login(ctx context.Context, username, password string) error {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	userSel, ok := probeFirst(ctx, usernameSelectors, probeTimeout)
	if !ok {
		return ErrLoginFailed{Err: errors.New("username field not found")}
	}
	passSel, ok := probeFirst(ctx, passwordSelectors, probeTimeout)
	if !ok {
		return ErrLoginFailed{Err: errors.New("password field not found")}
	}
	s.logger.Info("[portal] login fields detected, filling credentials")

	fillCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout())
	defer cancel()

	if err := chromedp.Run(fillCtx,
		chromedp.SetValue(userSel, username, chromedp.ByQuery),
		chromedp.SetValue(passSel, password, chromedp.ByQuery),
	); err != nil {
		return ErrLoginFailed{Err: classifyNavError(err)}
	}

	if submitSel, ok := probeFirst(ctx, submitSelectors, probeTimeout); ok {
		if err := chromedp.Run(fillCtx, chromedp.Click(submitSel, chromedp.ByQuery)); err != nil {
			return ErrLoginFailed{Err: classifyNavError(err)}
		}
		s.logger.Info("[portal] login submitted")
	} else if !s.clickSubmitByText(ctx) {
		// No submit control; the page may auto-submit on Enter.
		if err := chromedp.Run(fillCtx, chromedp.SendKeys(passSel, kb.Enter, chromedp.ByQuery)); err != nil {
			return ErrLoginFailed{Err: classifyNavError(err)}
		}
	}

	settleCtx, cancelSettle := context.WithTimeout(ctx, s.cfg.NavTimeout())
	defer cancelSettle()
	if err := chromedp.Run(settleCtx, chromedp.Sleep(settleDelay)); err != nil {
		return ErrLoginFailed{Err: classifyNavError(err)}
	}

	if err := s.persistSession(ctx); err != nil {
		s.logger.Warn("[portal] could not persist session state: %v", err)
	}
	return nil
}

// clickSubmitByText looks for a button whose visible text matches the
// portal's localized submit labels and clicks the first one found.
func (s *Scraper) clickSubmitByText(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var clicked bool
	script := `(function(){
		var words = ["entrar", "login", "acessar"];
		var buttons = document.querySelectorAll("button, input[type=button]");
		for (var i = 0; i < buttons.length; i++) {
			var text = (buttons[i].innerText || buttons[i].value || "").trim().toLowerCase();
			for (var j = 0; j < words.length; j++) {
				if (text.indexOf(words[j]) !== -1) {
					buttons[i].click();
					return true;
				}
			}
		}
		return false;
	})()`
	if err := chromedp.Run(probeCtx, chromedp.Evaluate(script, &clicked)); err != nil {
		return false
	}
	if clicked {
		s.logger.Info("[portal] login submitted via button text")
	}
	return clicked
}

// selectMonthYear points the portal's period selector at the month of the
// target date, trying the value encodings the portal is known to use.
// Failure is non-fatal: the caller's date-range filter is the authoritative
// correctness guard.
func (s *Scraper) selectMonthYear(ctx context.Context, targetDate string) bool {
	t, err := time.Parse("2006-01-02", targetDate)
	if err != nil {
		return false
	}
	month := fmt.Sprintf("%02d", int(t.Month()))
	year := fmt.Sprintf("%d", t.Year())
	s.logger.Info("[portal] selecting period %s/%s", month, year)

	sel, ok := probeFirst(ctx, periodSelectSelectors, probeTimeout)
	if !ok {
		s.logger.Warn("[portal] no period selector found, scraping displayed period")
		return false
	}

	encodings := []string{
		year + "-" + month,
		month + "/" + year,
		month + "-" + year,
		month,
	}
	for _, value := range encodings {
		if s.setSelectValue(ctx, sel, value) {
			s.logger.Info("[portal] period selected: %s", value)
			settleCtx, cancel := context.WithTimeout(ctx, tableTimeout)
			_ = chromedp.Run(settleCtx, chromedp.Sleep(settleDelay))
			cancel()
			return true
		}
	}

	s.logger.Warn("[portal] period selector rejected all value encodings")
	return false
}

func (s *Scraper) setSelectValue(ctx context.Context, selector, value string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	script := fmt.Sprintf(`(function(){
		var el = document.querySelector(%q);
		if (!el || !el.options) return false;
		for (var i = 0; i < el.options.length; i++) {
			if (el.options[i].value === %q) {
				el.value = %q;
				el.dispatchEvent(new Event("change", { bubbles: true }));
				return true;
			}
		}
		return false;
	})()`, selector, value, value)

	var accepted bool
	if err := chromedp.Run(probeCtx, chromedp.Evaluate(script, &accepted)); err != nil {
		return false
	}
	return accepted
}

// extractTable locates the report table and pulls raw text pairs out of
// every row using the caller's cell selectors, then normalizes them.
// No table on the page is a valid empty result, not an error.
func (s *Scraper) extractTable(ctx context.Context, dateSelector, kgSelector string) ([]models.Row, error) {
	if dateSelector == "" {
		dateSelector = DefaultDateSelector
	}
	if kgSelector == "" {
		kgSelector = DefaultKgSelector
	}

	settleCtx, cancelSettle := context.WithTimeout(ctx, s.cfg.NavTimeout())
	err := chromedp.Run(settleCtx, chromedp.Sleep(settleDelay))
	cancelSettle()
	if err != nil {
		return nil, classifyNavError(err)
	}

	tableSel, ok := probeFirst(ctx, tableSelectors, tableTimeout)
	if !ok {
		s.logger.Warn("[portal] no table found on page")
		return nil, nil
	}
	s.logger.Debug("[portal] table found with selector: %s", tableSel)

	extractCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout())
	defer cancel()

	var raw []models.RawRow
	script := fmt.Sprintf(`(function(dateSel, kgSel){
		var out = [];
		var rows = document.querySelectorAll("table tbody tr, table tr");
		rows.forEach(function(row){
			try {
				var dateCells = row.querySelectorAll(dateSel);
				var kgCells = row.querySelectorAll(kgSel);
				if (dateCells.length > 0 && kgCells.length > 0) {
					var d = dateCells[0].textContent.trim();
					var k = kgCells[0].textContent.trim();
					if (d && k) out.push({ raw_date: d, raw_kg: k });
				}
			} catch (e) {}
		});
		return out;
	})(%q, %q)`, dateSelector, kgSelector)

	if err := chromedp.Run(extractCtx, chromedp.Evaluate(script, &raw)); err != nil {
		return nil, classifyNavError(err)
	}

	rows := make([]models.Row, 0, len(raw))
	for _, r := range raw {
		date, ok := services.ParseDate(r.RawDate, true)
		if !ok {
			continue
		}
		kg, ok := services.ParseWeight(r.RawKg)
		if !ok {
			continue
		}
		kgValue := kg
		rows = append(rows, models.Row{
			Date:    date,
			Kg:      &kgValue,
			RawDate: r.RawDate,
			RawKg:   r.RawKg,
		})
	}

	s.logger.Info("[portal] extracted %d valid rows (%d raw)", len(rows), len(raw))
	return rows, nil
}

// CaptureSession navigates to the portal root, performs a login if one is
// required and persists the resulting session state. Used by the
// save-session tool to bootstrap the session file.
func (s *Scraper) CaptureSession(ctx context.Context, username, password string) error {
	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	defer cancel()

	if err := s.navigate(tabCtx, s.cfg.PortalURL); err != nil {
		return err
	}
	if !s.loginRequired(tabCtx) {
		s.logger.Info("[portal] no login wall, persisting current state")
		return s.persistSession(tabCtx)
	}
	return s.login(tabCtx, username, password)
}

// restoreSession seeds the browsing context with the persisted cookies, if
// any. Failures only cost a fresh login, so they are logged and swallowed.
func (s *Scraper) restoreSession(ctx context.Context) {
	blob, ok := storage.LoadSessionState(s.cfg.StorageStatePath)
	if !ok {
		return
	}

	var cookies []*network.CookieParam
	if err := json.Unmarshal(blob, &cookies); err != nil {
		s.logger.Warn("[portal] invalid session state: %v", err)
		return
	}
	if len(cookies) == 0 {
		return
	}

	applyCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := chromedp.Run(applyCtx, cdpstorage.SetCookies(cookies)); err != nil {
		s.logger.Warn("[portal] could not restore session state: %v", err)
		return
	}
	s.logger.Debug("[portal] session state restored from %s", s.cfg.StorageStatePath)
}

// persistSession snapshots the browser's cookies and overwrites the
// session-state file.
func (s *Scraper) persistSession(ctx context.Context) error {
	getCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var cookies []*network.Cookie
	err := chromedp.Run(getCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = cdpstorage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return err
	}

	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &expires
		}
		params = append(params, p)
	}

	blob, err := json.Marshal(params)
	if err != nil {
		return err
	}
	if err := storage.SaveSessionState(s.cfg.StorageStatePath, blob); err != nil {
		return err
	}
	s.logger.Info("[portal] session state saved to %s", s.cfg.StorageStatePath)
	return nil
}

func classifyNavError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrNavigationTimeout{Err: err}
	}
	return err
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
