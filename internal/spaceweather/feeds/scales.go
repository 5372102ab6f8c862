package feeds

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/i474232898/space-weather-aggregation/internal/spaceweather"
)

// ScalesClient reads the NOAA G/S/R scale levels.
type ScalesClient struct {
	base
	url string
}

func NewScalesClient(opts Options) *ScalesClient {
	opts = opts.withDefaults()
	return &ScalesClient{
		base: newBase(spaceweather.SourceScales, opts),
		url:  opts.BaseURL + ScalesPath,
	}
}

func (c *ScalesClient) Fetch(ctx context.Context) spaceweather.FeedResult {
	return c.run(ctx, func(ctx context.Context) (any, error) {
		var raw map[string]scalesPeriod
		if err := c.getJSON(ctx, c.url, &raw); err != nil {
			return nil, err
		}
		return parseScales(raw)
	})
}

// scalesPeriod is one entry of noaa-scales.json, keyed by day offset ("-1", "0", "1", ...).
type scalesPeriod struct {
	G *scaleValue `json:"G"`
	S *scaleValue `json:"S"`
	R *scaleValue `json:"R"`
}

type scaleValue struct {
	Scale any `json:"Scale"`
	Text  any `json:"Text"`
}

// parseScales reads the current period ("0"). A missing scale within it counts as level 0.
func parseScales(raw map[string]scalesPeriod) (any, error) {
	current, ok := raw["0"]
	if !ok {
		return nil, fmt.Errorf("noaa scales payload has no current period")
	}
	return spaceweather.Scales{
		G: toScale("G", current.G),
		S: toScale("S", current.S),
		R: toScale("R", current.R),
	}, nil
}

func toScale(prefix string, v *scaleValue) spaceweather.Scale {
	level := 0
	text := "none"
	if v != nil {
		level = scaleLevel(toString(v.Scale))
		if t := strings.TrimSpace(toString(v.Text)); t != "" {
			text = t
		}
	}
	return spaceweather.Scale{
		Scale: prefix + strconv.Itoa(level),
		Level: level,
		Text:  text,
	}
}

// scaleLevel parses "3", "G3" or " g3 " to 3. Anything else, or out of range, is 0.
func scaleLevel(s string) int {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "GSRgsr")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 5 {
		return 0
	}
	return n
}
