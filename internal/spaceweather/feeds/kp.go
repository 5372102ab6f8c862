package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/i474232898/space-weather-aggregation/internal/spaceweather"
)

// KpClient reads the planetary K-index product.
type KpClient struct {
	base
	url          string
	historyLimit int
}

func NewKpClient(opts Options) *KpClient {
	opts = opts.withDefaults()
	return &KpClient{
		base:         newBase(spaceweather.SourceKpIndex, opts),
		url:          opts.BaseURL + KpPath,
		historyLimit: opts.KpHistoryLimit,
	}
}

func (c *KpClient) Fetch(ctx context.Context) spaceweather.FeedResult {
	return c.run(ctx, func(ctx context.Context) (any, error) {
		var raw json.RawMessage
		if err := c.getJSON(ctx, c.url, &raw); err != nil {
			return nil, err
		}
		return parseKp(raw, c.historyLimit)
	})
}

// parseKp accepts both the legacy row form
// [["time_tag","Kp","a_running","station_count"],["2024-05-10 00:00:00.000","2.33","9","8"],...]
// and the object form [{"time_tag":"2024-05-10T00:00:00","Kp":2.33,...},...].
func parseKp(raw json.RawMessage, limit int) (any, error) {
	var readings []spaceweather.KpReading

	var rows [][]any
	if err := json.Unmarshal(raw, &rows); err == nil {
		t := newRowTable(rows)
		iTime := t.col(0, "time_tag")
		iKp := t.col(1, "kp", "kp_index")
		for _, row := range t.rows {
			if r, ok := kpReading(cell(row, iTime), cell(row, iKp)); ok {
				readings = append(readings, r)
			}
		}
	} else {
		var objects []map[string]any
		if err := json.Unmarshal(raw, &objects); err != nil {
			return nil, fmt.Errorf("unrecognised k-index payload: %w", err)
		}
		for _, obj := range objects {
			kp, ok := obj["Kp"]
			if !ok {
				kp = obj["kp_index"]
			}
			if r, ok := kpReading(obj["time_tag"], kp); ok {
				readings = append(readings, r)
			}
		}
	}

	if len(readings) == 0 {
		return nil, fmt.Errorf("no valid k-index readings")
	}

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Time.Before(readings[j].Time)
	})
	if limit > 0 && len(readings) > limit {
		readings = readings[len(readings)-limit:]
	}

	current := readings[len(readings)-1].Kp
	return spaceweather.KpIndex{
		Current: &current,
		History: readings,
	}, nil
}

func kpReading(timeVal, kpVal any) (spaceweather.KpReading, bool) {
	ts, ok := parseNOAATime(toString(timeVal))
	if !ok {
		return spaceweather.KpReading{}, false
	}
	kp, ok := toFloat(kpVal)
	if !ok || kp < 0 || kp > 9 {
		return spaceweather.KpReading{}, false
	}
	return spaceweather.KpReading{Time: ts, Kp: round(kp, 2)}, true
}
