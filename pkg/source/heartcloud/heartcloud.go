// Package heartcloud scrapes coherence training sessions from the
// HeartCloud web app. There is no API; this is the session-login adapter,
// driving a headless browser through the login form and reading the
// training-history table. Selector drift is the expected long-run failure
// mode, so extraction is best-effort throughout and failures capture a
// screenshot and page markup instead of aborting the run.
package heartcloud

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/ewhitmore/vitalsync/pkg/model"
	"github.com/ewhitmore/vitalsync/pkg/normalize"
	"github.com/ewhitmore/vitalsync/pkg/source"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// Selectors is the CSS selector table for the login form and the
// sessions table. It is configuration data: when HeartCloud ships a new
// frontend, this struct is what changes, not the adapter.
type Selectors struct {
	EmailField    string
	PasswordField string
	LoginButton   string

	SessionsContainer string
	SessionRow        string

	// Cell selectors within one session row.
	Date          string
	SessionLength string
	Coherence     string
	Achievement   string
}

// DefaultSelectors matches the HeartCloud training-history table as of
// the last frontend audit.
func DefaultSelectors() Selectors {
	return Selectors{
		EmailField:        "#email",
		PasswordField:     "#password",
		LoginButton:       "button[type='submit']",
		SessionsContainer: "table",
		SessionRow:        "tr",
		Date:              "td:nth-child(1)",
		SessionLength:     "td:nth-child(2)",
		Coherence:         "td:nth-child(3)",
		Achievement:       "td:nth-child(4)",
	}
}

// Config carries the HeartCloud account credentials and scrape tuning.
type Config struct {
	Email    string
	Password string

	// LoginURL and LandingURLs default to the production site. The
	// landing candidates are tried in order after login until one
	// exposes the sessions container.
	LoginURL    string
	LandingURLs []string

	// Settle is how long to wait after submit and after each
	// navigation for the SPA to render. Default 3s.
	Settle time.Duration

	// DiagnosticsDir receives the failure screenshot and page markup.
	// Default os.TempDir().
	DiagnosticsDir string

	Selectors Selectors
}

// Adapter implements source.Source for HeartCloud sessions.
type Adapter struct {
	cfg Config
	log zerolog.Logger
}

// New creates a HeartCloud adapter.
func New(cfg Config, log zerolog.Logger) *Adapter {
	if cfg.LoginURL == "" {
		cfg.LoginURL = "https://heartcloud.com/login"
	}
	if len(cfg.LandingURLs) == 0 {
		cfg.LandingURLs = []string{
			"https://heartcloud.com/",
			"https://heartcloud.com/home",
			"https://heartcloud.com/dashboard",
			"https://heartcloud.com/sessions",
			"https://heartcloud.com/history",
			"https://heartcloud.com/review",
		}
	}
	if cfg.Settle == 0 {
		cfg.Settle = 3 * time.Second
	}
	if cfg.DiagnosticsDir == "" {
		cfg.DiagnosticsDir = os.TempDir()
	}
	empty := Selectors{}
	if cfg.Selectors == empty {
		cfg.Selectors = DefaultSelectors()
	}
	return &Adapter{cfg: cfg, log: log.With().Str("source", "heartcloud").Logger()}
}

func (a *Adapter) Name() string { return "heartcloud" }

func (a *Adapter) Worksheet() string { return "daily_manual_entry" }

func (a *Adapter) Header() []string {
	return []string{"date", "coherence", "session_min", "achievement"}
}

// rawSession is one scraped table row before normalization.
type rawSession struct {
	Date        string `json:"date"`
	Length      string `json:"length"`
	Coherence   string `json:"coherence"`
	Achievement string `json:"achievement"`
}

// Fetch logs in and scrapes the most recent session. Login failure and
// selector drift both return an empty result rather than an error: the
// diagnostics on disk are the actionable artifact, and a broken selector
// should not page anyone through the scheduler.
func (a *Adapter) Fetch(ctx context.Context, r source.Range) ([]*model.Row, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(userAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	ok, err := a.login(browserCtx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	raw, found := a.scrapeLatest(browserCtx)
	if !found {
		return nil, nil
	}
	return []*model.Row{a.normalize(raw, r.Now)}, nil
}

// login fills and submits the login form, waits the settle interval and
// checks whether the browser left the login page. Still being on a URL
// containing the login marker means the credentials were rejected or the
// form selectors drifted; either way diagnostics are captured.
func (a *Adapter) login(ctx context.Context) (bool, error) {
	sel := a.cfg.Selectors

	loginCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := chromedp.Run(loginCtx,
		chromedp.Navigate(a.cfg.LoginURL),
		chromedp.WaitVisible(sel.EmailField, chromedp.ByQuery),
		chromedp.Clear(sel.EmailField, chromedp.ByQuery),
		chromedp.SendKeys(sel.EmailField, a.cfg.Email, chromedp.ByQuery),
		chromedp.Clear(sel.PasswordField, chromedp.ByQuery),
		chromedp.SendKeys(sel.PasswordField, a.cfg.Password, chromedp.ByQuery),
		chromedp.Click(sel.LoginButton, chromedp.ByQuery),
		chromedp.Sleep(a.cfg.Settle),
	)
	if err != nil {
		a.log.Error().Err(err).Msg("login form drive failed")
		a.captureDiagnostics(ctx, "login_failed")
		return false, nil
	}

	var currentURL string
	if err := chromedp.Run(ctx, chromedp.Location(&currentURL)); err != nil {
		return false, fmt.Errorf("reading post-login location: %w", err)
	}
	if strings.Contains(strings.ToLower(currentURL), "login") {
		a.log.Error().Str("url", currentURL).Msg("still on login page after submit")
		a.captureDiagnostics(ctx, "login_failed")
		return false, nil
	}

	a.log.Info().Msg("logged in")
	return true, nil
}

// scrapeLatest tries each candidate landing URL until one exposes the
// sessions container, then pulls the first data row of the table.
func (a *Adapter) scrapeLatest(ctx context.Context) (rawSession, bool) {
	sel := a.cfg.Selectors

	found := false
	for _, url := range a.cfg.LandingURLs {
		var present bool
		err := chromedp.Run(ctx,
			chromedp.Navigate(url),
			chromedp.Sleep(a.cfg.Settle),
			chromedp.Evaluate(fmt.Sprintf("document.querySelector(%q) !== null", sel.SessionsContainer), &present),
		)
		if err != nil {
			a.log.Warn().Str("url", url).Err(err).Msg("landing candidate failed")
			continue
		}
		if present {
			a.log.Debug().Str("url", url).Msg("found sessions container")
			found = true
			break
		}
	}
	if !found {
		a.log.Error().Str("selector", sel.SessionsContainer).Msg("no landing URL exposed the sessions container")
		a.captureDiagnostics(ctx, "sessions_missing")
		return rawSession{}, false
	}

	// Pull every row's cell texts in one evaluation; waiting on
	// per-cell selectors would hang on the first drifted one.
	expr := fmt.Sprintf(`(() => {
		const cell = (row, s) => { const el = row.querySelector(s); return el ? el.innerText.trim() : ""; };
		return Array.from(document.querySelectorAll(%q))
			.filter(row => row.querySelectorAll("td").length > 0)
			.map(row => ({
				date: cell(row, %q),
				length: cell(row, %q),
				coherence: cell(row, %q),
				achievement: cell(row, %q),
			}));
	})()`,
		sel.SessionsContainer+" "+sel.SessionRow,
		sel.Date, sel.SessionLength, sel.Coherence, sel.Achievement)

	var sessions []rawSession
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &sessions)); err != nil {
		a.log.Error().Err(err).Msg("session table extraction failed")
		a.captureDiagnostics(ctx, "extract_failed")
		return rawSession{}, false
	}
	if len(sessions) == 0 {
		a.log.Info().Msg("no sessions found")
		return rawSession{}, false
	}

	a.log.Info().Int("count", len(sessions)).Msg("found sessions")
	return sessions[0], true
}

// normalize maps the scraped texts onto the canonical row. Every field
// is independently best-effort: a malformed cell logs a warning and
// stays absent, and a malformed date falls back to the run date.
func (a *Adapter) normalize(raw rawSession, now time.Time) *model.Row {
	row := model.NewRow(normalize.Date(raw.Date, now))
	row.Set("date", model.Text(row.Key))

	coherence := normalize.Score(raw.Coherence)
	if !coherence.Present() {
		a.log.Warn().Str("text", raw.Coherence).Msg("no coherence score in session row")
	}
	row.Set("coherence", coherence)

	length := normalize.Duration(raw.Length)
	if !length.Present() {
		a.log.Warn().Str("text", raw.Length).Msg("no session length in session row")
	}
	row.Set("session_min", length)

	achievement := normalize.Score(raw.Achievement)
	if !achievement.Present() {
		a.log.Warn().Str("text", raw.Achievement).Msg("no achievement score in session row")
	}
	row.Set("achievement", achievement)

	return row
}

// captureDiagnostics saves a screenshot and the page markup so selector
// drift can be diagnosed without rerunning the browser by hand.
func (a *Adapter) captureDiagnostics(ctx context.Context, label string) {
	var shot []byte
	var markup string
	err := chromedp.Run(ctx,
		chromedp.FullScreenshot(&shot, 90),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	)
	if err != nil {
		a.log.Warn().Err(err).Msg("could not capture diagnostics")
		return
	}

	shotPath := filepath.Join(a.cfg.DiagnosticsDir, "heartcloud_"+label+".png")
	if err := os.WriteFile(shotPath, shot, 0o644); err != nil {
		a.log.Warn().Err(err).Msg("could not write screenshot")
	} else {
		a.log.Info().Str("path", shotPath).Msg("saved screenshot")
	}

	markupPath := filepath.Join(a.cfg.DiagnosticsDir, "heartcloud_"+label+".html")
	if err := os.WriteFile(markupPath, []byte(markup), 0o644); err != nil {
		a.log.Warn().Err(err).Msg("could not write page markup")
	} else {
		a.log.Info().Str("path", markupPath).Msg("saved page markup")
	}
}
