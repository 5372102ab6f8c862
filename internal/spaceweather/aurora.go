package spaceweather

import "math"

type auroraTier struct {
	label    string
	latitude int // 0 = none
}

// auroraTiers is indexed by Kp tier, following NOAA's Kp to geomagnetic latitude table.
var auroraTiers = [10]auroraTier{
	0: {"Not visible", 0},
	1: {"Polar regions only (> 70°)", 70},
	2: {"Sub-auroral zone (> 65°)", 65},
	3: {"High latitudes (< 65°)", 65},
	4: {"High latitudes (< 65°)", 65},
	5: {"Mid-latitudes (< 60°)", 60},
	6: {"Mid-latitudes (< 55°)", 55},
	7: {"Mid-latitudes (< 50°)", 50},
	8: {"Mid-latitudes (< 45°)", 45},
	9: {"Equatorial regions (< 40°)", 40},
}

// gScaleKp maps a G storm level to the Kp at which NOAA assigns it (G1 = Kp 5 ... G5 = Kp 9).
func gScaleKp(level int) float64 {
	if level <= 0 {
		return 0
	}
	if level > 5 {
		level = 5
	}
	return float64(level + 4)
}

// AuroraVisibility derives the aurora visibility tier from Kp and the geomagnetic storm scale.
// The tier is the floor of the larger of Kp and the G level's equivalent Kp, clamped to 0-9.
// Either input may be nil; with both nil the estimate is unavailable.
func AuroraVisibility(kp *float64, gLevel *int) Aurora {
	if kp == nil && gLevel == nil {
		return Aurora{Status: StatusUnavailable, Label: "Unknown"}
	}

	effective := 0.0
	if kp != nil && !math.IsNaN(*kp) {
		effective = *kp
	}
	if gLevel != nil {
		effective = math.Max(effective, gScaleKp(*gLevel))
	}

	tier := int(math.Floor(effective))
	if tier < 0 {
		tier = 0
	}
	if tier > 9 {
		tier = 9
	}

	a := Aurora{
		Status: StatusLive,
		Tier:   tier,
		Label:  auroraTiers[tier].label,
	}
	if lat := auroraTiers[tier].latitude; lat > 0 {
		a.Latitude = &lat
	}
	return a
}

// deriveAurora computes the aurora section from the already-resolved Kp and scales sections.
func deriveAurora(kp KpIndex, scales Scales) Aurora {
	var (
		kpVal  *float64
		gLevel *int
		live   = true
	)
	// Kp is the primary input; without a live Kp the estimate is never live.
	if kp.Status != StatusLive || kp.Current == nil {
		live = false
	}
	if kp.Status != StatusUnavailable && kp.Current != nil {
		kpVal = kp.Current
	}
	if scales.Status != StatusUnavailable {
		lvl := scales.G.Level
		gLevel = &lvl
		live = live && scales.Status == StatusLive
	}

	a := AuroraVisibility(kpVal, gLevel)
	if a.Status == StatusLive && !live {
		a.Status = StatusStale
	}
	return a
}
