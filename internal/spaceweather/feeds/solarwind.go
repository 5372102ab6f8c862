package feeds

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/i474232898/space-weather-aggregation/internal/spaceweather"
)

// SolarWindClient reads the 2-hour plasma and magnetometer products from the DSCOVR/ACE feeds.
type SolarWindClient struct {
	base
	plasmaURL   string
	magURL      string
	seriesLimit int
}

func NewSolarWindClient(opts Options) *SolarWindClient {
	opts = opts.withDefaults()
	return &SolarWindClient{
		base:        newBase(spaceweather.SourceSolarWind, opts),
		plasmaURL:   opts.BaseURL + PlasmaPath,
		magURL:      opts.BaseURL + MagPath,
		seriesLimit: opts.SeriesLimit,
	}
}

func (c *SolarWindClient) Fetch(ctx context.Context) spaceweather.FeedResult {
	return c.run(ctx, func(ctx context.Context) (any, error) {
		var (
			wg                sync.WaitGroup
			plasma, mag       [][]any
			plasmaErr, magErr error
		)

		wg.Add(2)
		go func() {
			defer wg.Done()
			plasmaErr = c.getJSON(ctx, c.plasmaURL, &plasma)
		}()
		go func() {
			defer wg.Done()
			magErr = c.getJSON(ctx, c.magURL, &mag)
		}()
		wg.Wait()

		if err := errors.Join(plasmaErr, magErr); err != nil {
			return nil, err
		}
		return parseSolarWind(plasma, mag, c.seriesLimit)
	})
}

// parseSolarWind extracts the latest speed, density, Bz and Bt plus a speed trend.
// Plasma rows are [time, density, speed, temperature]; magnetometer rows are
// [time, bx, by, bz, lon, lat, bt]. Columns are looked up by header name first.
func parseSolarWind(plasmaRaw, magRaw [][]any, seriesLimit int) (any, error) {
	sw := spaceweather.SolarWind{Series: []spaceweather.SolarWindPoint{}}

	plasma := newRowTable(plasmaRaw)
	pTime := plasma.col(0, "time_tag")
	pDensity := plasma.col(1, "density")
	pSpeed := plasma.col(2, "speed")

	for i := len(plasma.rows) - 1; i >= 0; i-- {
		row := plasma.rows[i]
		density, okD := toFloat(cell(row, pDensity))
		speed, okS := toFloat(cell(row, pSpeed))
		if !okD || !okS {
			continue
		}
		sw.Density = ptr(round(density, 1))
		sw.Speed = ptr(round(speed, 0))
		if ts, ok := parseNOAATime(toString(cell(row, pTime))); ok {
			sw.ObservedAt = &ts
		}
		break
	}

	for _, row := range plasma.rows {
		speed, ok := toFloat(cell(row, pSpeed))
		if !ok || speed <= 0 {
			continue
		}
		ts, ok := parseNOAATime(toString(cell(row, pTime)))
		if !ok {
			continue
		}
		sw.Series = append(sw.Series, spaceweather.SolarWindPoint{Time: ts, Speed: round(speed, 0)})
	}
	sw.Series = thin(sw.Series, seriesLimit)

	mag := newRowTable(magRaw)
	mBz := mag.col(3, "bz_gsm", "bz")
	mBt := mag.col(6, "bt")

	for i := len(mag.rows) - 1; i >= 0; i-- {
		row := mag.rows[i]
		bz, okZ := toFloat(cell(row, mBz))
		bt, okT := toFloat(cell(row, mBt))
		if !okZ || !okT {
			continue
		}
		sw.Bz = ptr(round(bz, 1))
		sw.Bt = ptr(round(bt, 1))
		break
	}

	if sw.Speed == nil && sw.Bz == nil {
		return nil, fmt.Errorf("no usable solar wind readings (%d plasma rows, %d mag rows)", len(plasma.rows), len(mag.rows))
	}
	return sw, nil
}

// thin keeps every step-th point so at most limit points remain.
func thin(points []spaceweather.SolarWindPoint, limit int) []spaceweather.SolarWindPoint {
	if limit <= 0 || len(points) <= limit {
		return points
	}
	step := (len(points) + limit - 1) / limit
	out := make([]spaceweather.SolarWindPoint, 0, limit)
	for i := 0; i < len(points); i += step {
		out = append(out, points[i])
	}
	return out
}
