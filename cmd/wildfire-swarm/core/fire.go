package core

import (
	"fmt"
	"math"
	"math/rand"
)

// FireCell is the state of one grid cell. Intensity only ever increases
// through Ignite or spread; once fuel is exhausted it decays monotonically.
type FireCell struct {
	Intensity    float64 `json:"intensity"`
	FuelDensity  float64 `json:"fuel_density"`
	TemperatureK float64 `json:"temperature_k"`
	IgnitionTime float64 `json:"ignition_time"`
	Ignited      bool    `json:"ignited"`
}

// Burning reports whether the cell is actively on fire.
func (c *FireCell) Burning() bool { return c.Intensity > BurningEpsilon }

// Wind is a uniform wind field over the grid.
type Wind struct {
	SpeedMS    float64 `json:"speed_ms"`
	HeadingRad float64 `json:"heading_rad"`
}

// BurningCell is one entry of the burning-cell iterator.
type BurningCell struct {
	GX        int     `json:"gx"`
	GY        int     `json:"gy"`
	Intensity float64 `json:"intensity"`
}

// FireSummary aggregates grid-level fire statistics.
type FireSummary struct {
	BurningCount   int     `json:"burning_count"`
	PerimeterCount int     `json:"perimeter_count"`
	MaxIntensity   float64 `json:"max_intensity"`
}

// SuppressionReceipt reports what a suppression request touched.
type SuppressionReceipt struct {
	GX            int     `json:"gx"`
	GY            int     `json:"gy"`
	CellsAffected int     `json:"cells_affected"`
	Strength      float64 `json:"strength"`
}

type pendingSuppression struct {
	gx, gy   int
	strength float64
}

// FireGrid is a wind-biased cellular automaton over a W×H grid of cells.
// A single seeded RNG drives all spread draws; iteration is row-major so
// draw consumption is stable across runs with the same seed.
type FireGrid struct {
	Width     int
	Height    int
	CellSizeM float64

	cells []FireCell
	wind  Wind
	rng   *rand.Rand

	spreadRateMPM     float64
	suppressionFactor float64
	intensityDecay    float64
	windK             float64

	pending []pendingSuppression
	timeS   float64
}

// FireGridParams configures a FireGrid.
type FireGridParams struct {
	Width             int
	Height            int
	CellSizeM         float64
	SpreadRateMPM     float64
	SuppressionFactor float64
	WindK             float64
	Seed              int64
}

// NewFireGrid creates a grid with uniform fuel density 1.0 and no fire.
func NewFireGrid(p FireGridParams) *FireGrid {
	if p.Width <= 0 {
		p.Width = DefaultGridWidth
	}
	if p.Height <= 0 {
		p.Height = DefaultGridHeight
	}
	if p.CellSizeM <= 0 {
		p.CellSizeM = DefaultCellSizeM
	}
	if p.SpreadRateMPM <= 0 {
		p.SpreadRateMPM = DefaultSpreadRateMPM
	}
	if p.SuppressionFactor <= 0 {
		p.SuppressionFactor = DefaultSuppressionK
	}
	if p.WindK <= 0 {
		p.WindK = DefaultWindFactorK
	}

	g := &FireGrid{
		Width:             p.Width,
		Height:            p.Height,
		CellSizeM:         p.CellSizeM,
		cells:             make([]FireCell, p.Width*p.Height),
		rng:               rand.New(rand.NewSource(p.Seed)),
		spreadRateMPM:     p.SpreadRateMPM,
		suppressionFactor: p.SuppressionFactor,
		intensityDecay:    DefaultIntensityDecay,
		windK:             p.WindK,
	}
	for i := range g.cells {
		g.cells[i].FuelDensity = 1.0
		g.cells[i].TemperatureK = AmbientTemperatureK
	}
	return g
}

// SetWind replaces the uniform wind field.
func (g *FireGrid) SetWind(speedMS, headingRad float64) {
	g.wind = Wind{SpeedMS: math.Max(0, speedMS), HeadingRad: headingRad}
}

// Wind returns the current wind field.
func (g *FireGrid) Wind() Wind { return g.wind }

// SetFuel overrides the fuel density of a cell. Used for scenario setup.
func (g *FireGrid) SetFuel(gx, gy int, fuel float64) error {
	if !g.inBounds(gx, gy) {
		return fmt.Errorf("set fuel (%d,%d): %w", gx, gy, ErrOutOfBounds)
	}
	g.cells[g.index(gx, gy)].FuelDensity = Clamp(fuel, 0, 1)
	return nil
}

// CellAt returns a copy of the cell holding world point (x, y).
func (g *FireGrid) CellAt(xM, yM float64) (FireCell, error) {
	gx, gy := g.WorldToGrid(xM, yM)
	if !g.inBounds(gx, gy) {
		return FireCell{}, fmt.Errorf("cell at (%.1f,%.1f): %w", xM, yM, ErrOutOfBounds)
	}
	return g.cells[g.index(gx, gy)], nil
}

// WorldToGrid maps world meters to grid coordinates.
func (g *FireGrid) WorldToGrid(xM, yM float64) (int, int) {
	return int(math.Floor(xM / g.CellSizeM)), int(math.Floor(yM / g.CellSizeM))
}

// Ignite raises the intensity of the cell at world point (x, y) to at
// least the requested value. Igniting a fuel-less cell is a no-op.
func (g *FireGrid) Ignite(xM, yM, intensity float64) error {
	if intensity <= 0 || intensity > 1 {
		return fmt.Errorf("ignite intensity %.3f: %w", intensity, ErrInvalidValue)
	}
	gx, gy := g.WorldToGrid(xM, yM)
	if !g.inBounds(gx, gy) {
		return fmt.Errorf("ignite (%.1f,%.1f): %w", xM, yM, ErrOutOfBounds)
	}
	g.igniteCell(gx, gy, intensity)
	return nil
}

func (g *FireGrid) igniteCell(gx, gy int, intensity float64) {
	cell := &g.cells[g.index(gx, gy)]
	if cell.FuelDensity <= 0 {
		return
	}
	if intensity <= cell.Intensity {
		return
	}
	cell.Intensity = intensity
	cell.TemperatureK = math.Max(cell.TemperatureK, ActiveFireTemperatureK)
	if !cell.Ignited {
		cell.Ignited = true
		cell.IgnitionTime = g.timeS
	}
}

// Suppress queues a suppression drop on the cell holding world point
// (x, y). The drop is applied on the next Step, between spread and
// burndown. The receipt reports whether the target cell is burning now.
func (g *FireGrid) Suppress(xM, yM, strength float64) (SuppressionReceipt, error) {
	if strength <= 0 || strength > 1 {
		return SuppressionReceipt{}, fmt.Errorf("suppression strength %.3f: %w", strength, ErrInvalidValue)
	}
	gx, gy := g.WorldToGrid(xM, yM)
	if !g.inBounds(gx, gy) {
		return SuppressionReceipt{}, fmt.Errorf("suppress (%.1f,%.1f): %w", xM, yM, ErrOutOfBounds)
	}
	g.pending = append(g.pending, pendingSuppression{gx: gx, gy: gy, strength: strength})
	affected := 0
	if g.cells[g.index(gx, gy)].Burning() {
		affected = 1
	}
	return SuppressionReceipt{GX: gx, GY: gy, CellsAffected: affected, Strength: strength}, nil
}

// Step advances the automaton by dt seconds: spread, then pending
// suppressions, then burndown.
func (g *FireGrid) Step(dt float64) error {
	if dt <= 0 {
		return ErrNegativeStep
	}
	g.timeS += dt

	g.spread(dt)

	for _, s := range g.pending {
		cell := &g.cells[g.index(s.gx, s.gy)]
		cell.Intensity *= 1 - g.suppressionFactor*s.strength
	}
	g.pending = g.pending[:0]

	g.burndown(dt)
	return nil
}

func (g *FireGrid) spread(dt float64) {
	baseRateMPS := g.spreadRateMPM / 60.0

	type ignition struct {
		gx, gy    int
		intensity float64
	}
	var ignitions []ignition

	for gy := 0; gy < g.Height; gy++ {
		for gx := 0; gx < g.Width; gx++ {
			cell := &g.cells[g.index(gx, gy)]
			if !cell.Burning() {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := gx+dx, gy+dy
					if !g.inBounds(nx, ny) {
						continue
					}
					neighbor := &g.cells[g.index(nx, ny)]
					if neighbor.FuelDensity <= 0 || neighbor.Intensity >= IgnitionThreshold {
						continue
					}

					windFactor := 1.0
					if g.wind.SpeedMS > 0 {
						theta := math.Atan2(float64(dy), float64(dx))
						windFactor = Clamp(1+g.windK*math.Cos(theta-g.wind.HeadingRad), 0.25, 2.0)
					}

					spreadCells := baseRateMPS * windFactor * dt / g.CellSizeM
					// distance factor is clamp(spreadCells - dist + 1, 0, 1);
					// Chebyshev distance to an 8-neighbor is always 1, so
					// boundary neighbors keep a non-zero probability even when
					// the per-tick spread distance is under one cell.
					distanceFactor := Clamp(spreadCells, 0, 1)
					pIgnite := cell.Intensity * distanceFactor * neighbor.FuelDensity * SpreadIgnitionScale

					if g.rng.Float64() < pIgnite {
						ignitions = append(ignitions, ignition{
							gx:        nx,
							gy:        ny,
							intensity: math.Min(1.0, cell.Intensity*SpreadIntensityCarry),
						})
					}
				}
			}
		}
	}

	for _, ig := range ignitions {
		g.igniteCell(ig.gx, ig.gy, ig.intensity)
	}
}

func (g *FireGrid) burndown(dt float64) {
	decay := math.Pow(g.intensityDecay, dt)
	for i := range g.cells {
		cell := &g.cells[i]
		if !cell.Burning() {
			continue
		}
		cell.Intensity *= decay
		cell.FuelDensity = math.Max(0, cell.FuelDensity-FuelBurnRatePerUnit*cell.Intensity*dt)
		if cell.Burning() {
			cell.TemperatureK = FireTemperatureFloorK + cell.Intensity*FireTemperatureSpreadK
		} else {
			cell.TemperatureK = FireTemperatureFloorK
		}
	}
}

// SampleIntensity returns the intensity at world point (x, y), or zero
// when the point is off-grid.
func (g *FireGrid) SampleIntensity(xM, yM float64) float64 {
	gx, gy := g.WorldToGrid(xM, yM)
	if !g.inBounds(gx, gy) {
		return 0
	}
	return g.cells[g.index(gx, gy)].Intensity
}

// IterBurning returns all burning cells in row-major order.
func (g *FireGrid) IterBurning() []BurningCell {
	var out []BurningCell
	for gy := 0; gy < g.Height; gy++ {
		for gx := 0; gx < g.Width; gx++ {
			cell := &g.cells[g.index(gx, gy)]
			if cell.Burning() {
				out = append(out, BurningCell{GX: gx, GY: gy, Intensity: cell.Intensity})
			}
		}
	}
	return out
}

// Summary computes grid-level fire statistics. A perimeter cell is a
// burning cell with at least one non-burning 4-neighbor.
func (g *FireGrid) Summary() FireSummary {
	var s FireSummary
	for gy := 0; gy < g.Height; gy++ {
		for gx := 0; gx < g.Width; gx++ {
			cell := &g.cells[g.index(gx, gy)]
			if !cell.Burning() {
				continue
			}
			s.BurningCount++
			if cell.Intensity > s.MaxIntensity {
				s.MaxIntensity = cell.Intensity
			}
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := gx+d[0], gy+d[1]
				if !g.inBounds(nx, ny) || !g.cells[g.index(nx, ny)].Burning() {
					s.PerimeterCount++
					break
				}
			}
		}
	}
	return s
}

// Snapshot returns a deep copy of the cell array.
func (g *FireGrid) Snapshot() []FireCell {
	out := make([]FireCell, len(g.cells))
	copy(out, g.cells)
	return out
}

func (g *FireGrid) index(gx, gy int) int { return gy*g.Width + gx }

func (g *FireGrid) inBounds(gx, gy int) bool {
	return gx >= 0 && gx < g.Width && gy >= 0 && gy < g.Height
}
