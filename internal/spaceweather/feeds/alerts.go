package feeds

import (
	"context"
	"sort"
	"strings"

	"github.com/i474232898/space-weather-aggregation/internal/common"
	"github.com/i474232898/space-weather-aggregation/internal/spaceweather"
)

var (
	headlinePrefixes = []string{"WARNING:", "ALERT:", "WATCH:", "SUMMARY:", "CONTINUED"}
	bulletinHeaders  = []string{"Space Weather", "Serial", "Issue Time", "NOAA"}
)

const impactsPrefix = "Potential Impacts:"

// AlertsClient reads the SWPC alerts, watches and warnings product.
type AlertsClient struct {
	base
	url   string
	limit int
}

func NewAlertsClient(opts Options) *AlertsClient {
	opts = opts.withDefaults()
	return &AlertsClient{
		base:  newBase(spaceweather.SourceAlerts, opts),
		url:   opts.BaseURL + AlertsPath,
		limit: opts.AlertsLimit,
	}
}

func (c *AlertsClient) Fetch(ctx context.Context) spaceweather.FeedResult {
	return c.run(ctx, func(ctx context.Context) (any, error) {
		var raw []rawAlert
		if err := c.getJSON(ctx, c.url, &raw); err != nil {
			return nil, err
		}
		return parseAlerts(raw, c.limit), nil
	})
}

type rawAlert struct {
	ProductID     any `json:"product_id"`
	IssueDatetime any `json:"issue_datetime"`
	Message       any `json:"message"`
}

// parseAlerts dedupes bulletins by product and issue time and returns the newest limit of them.
func parseAlerts(raw []rawAlert, limit int) []spaceweather.Alert {
	seen := make(map[string]bool, len(raw))
	alerts := make([]spaceweather.Alert, 0, len(raw))

	for _, item := range raw {
		id := strings.TrimSpace(toString(item.ProductID))
		issuedRaw := strings.TrimSpace(toString(item.IssueDatetime))
		key := id + "|" + issuedRaw
		if seen[key] {
			continue
		}
		seen[key] = true

		text := strings.TrimSpace(strings.ReplaceAll(toString(item.Message), "\r\n", "\n"))
		issued, _ := parseNOAATime(issuedRaw)
		headline, impacts := parseBulletin(text)

		alerts = append(alerts, spaceweather.Alert{
			ID:       id,
			IssuedAt: issued,
			Headline: headline,
			Impacts:  impacts,
			Text:     text,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].IssuedAt.After(alerts[j].IssuedAt)
	})
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts
}

// parseBulletin pulls the WARNING/ALERT/WATCH/SUMMARY line and the impacts line out of a bulletin.
// Without a keyword line, the first line that is not part of the bulletin header is used.
func parseBulletin(text string) (headline, impacts string) {
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if headline == "" && common.HasAnyPrefix(line, headlinePrefixes...) {
			headline = line
		}
		if impacts == "" && strings.HasPrefix(line, impactsPrefix) {
			impacts = strings.TrimSpace(strings.TrimPrefix(line, impactsPrefix))
		}
	}

	if headline == "" {
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line != "" && !common.HasAnyPrefix(line, bulletinHeaders...) {
				headline = line
				break
			}
		}
	}
	return headline, impacts
}
