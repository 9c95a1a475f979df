package portal

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"github.com/gustakei/lave/models"
)

// discoveryLinkSelectors are tried in order against the portal root page.
// The first selector yielding any match wins; later ones are never tried,
// which avoids duplicate units from overlapping selectors.
var discoveryLinkSelectors = []string{
	`a[href*="unidade"]`,
	`a[href*="unit"]`,
	`.unit-link`,
	`.unidade-link`,
	`table tbody tr a`,
	`ul.units li a`,
}

var (
	hrefUnitRegexp = regexp.MustCompile(`(?i)(?:unidade|unit)[=/]([^&/?#]+)`)
	digitsRegexp   = regexp.MustCompile(`\d+`)
)

// DiscoverUnits lists the units reachable from the portal root, resolving a
// login wall if one appears. Discovery never fails partially: any error
// degrades to an empty list with the cause logged.
func (s *Scraper) DiscoverUnits(ctx context.Context, username, password string) []models.UnitInfo {
	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	defer cancel()

	s.logger.Info("[portal] discovering units")
	s.restoreSession(tabCtx)

	if err := s.navigate(tabCtx, s.cfg.PortalURL); err != nil {
		s.logger.Error("[portal] discovery navigation failed: %v", err)
		return nil
	}

	if s.loginRequired(tabCtx) {
		if username == "" || password == "" {
			s.logger.Error("[portal] discovery blocked by login wall, no credentials supplied")
			return nil
		}
		if err := s.login(tabCtx, username, password); err != nil {
			s.logger.Error("[portal] discovery login failed: %v", err)
			return nil
		}
		if err := s.navigate(tabCtx, s.cfg.PortalURL); err != nil {
			s.logger.Error("[portal] discovery navigation failed after login: %v", err)
			return nil
		}
	}

	htmlCtx, cancelHTML := context.WithTimeout(tabCtx, s.cfg.NavTimeout())
	defer cancelHTML()

	var html string
	if err := chromedp.Run(htmlCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		s.logger.Error("[portal] discovery page snapshot failed: %v", classifyNavError(err))
		return nil
	}

	units, err := unitsFromHTML(html)
	if err != nil {
		s.logger.Error("[portal] discovery parse failed: %v", err)
		return nil
	}

	s.logger.Info("[portal] discovered %d units", len(units))
	return units
}

// unitsFromHTML extracts unit links from a page snapshot. Links for which
// no identifier can be derived are silently skipped.
func unitsFromHTML(html string) ([]models.UnitInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var units []models.UnitInfo
	for _, selector := range discoveryLinkSelectors {
		links := doc.Find(selector)
		if links.Length() == 0 {
			continue
		}
		links.Each(func(_ int, link *goquery.Selection) {
			name := strings.TrimSpace(link.Text())
			href, _ := link.Attr("href")
			if id := unitIDFromLink(href, name); id != "" && name != "" {
				units = append(units, models.UnitInfo{UnitID: id, UnitName: name})
			}
		})
		break
	}
	return units, nil
}

// unitIDFromLink derives a unit identifier from the link target, falling
// back to the first numeric substring of the visible text.
func unitIDFromLink(href, text string) string {
	if href != "" {
		if m := hrefUnitRegexp.FindStringSubmatch(href); m != nil {
			return m[1]
		}
	}
	return digitsRegexp.FindString(text)
}
