package core

import "math"

// PheromoneGrid implements stigmergic coordination: a drone that detects
// fire marks the area, the marking decays every tick, and searching
// drones bias their headings up the local gradient. No direct messaging
// is involved.
type PheromoneGrid struct {
	Width     int
	Height    int
	CellSizeM float64

	values    []float64
	decay     float64
	threshold float64
}

// NewPheromoneGrid creates an empty grid matching the fire grid geometry.
func NewPheromoneGrid(width, height int, cellSizeM float64) *PheromoneGrid {
	if width <= 0 {
		width = DefaultGridWidth
	}
	if height <= 0 {
		height = DefaultGridHeight
	}
	if cellSizeM <= 0 {
		cellSizeM = DefaultCellSizeM
	}
	return &PheromoneGrid{
		Width:     width,
		Height:    height,
		CellSizeM: cellSizeM,
		values:    make([]float64, width*height),
		decay:     DefaultPheromoneDecay,
		threshold: DefaultPheromoneThreshold,
	}
}

// Deposit marks a circular region around the world point with Gaussian
// falloff.
func (p *PheromoneGrid) Deposit(xM, yM, strength float64) {
	gx := int(math.Floor(xM / p.CellSizeM))
	gy := int(math.Floor(yM / p.CellSizeM))
	if !p.inBounds(gx, gy) {
		return
	}

	radius := DefaultPheromoneRadius
	sigma := float64(radius) / 2
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			cx, cy := gx+dx, gy+dy
			if !p.inBounds(cx, cy) {
				continue
			}
			dist2 := float64(dx*dx + dy*dy)
			if dist2 > float64(radius*radius) {
				continue
			}
			amount := strength * math.Exp(-dist2/(2*sigma*sigma))
			i := cy*p.Width + cx
			p.values[i] = math.Min(1, p.values[i]+amount)
		}
	}
}

// Decay ages the whole grid by dt seconds.
func (p *PheromoneGrid) Decay(dt float64) {
	factor := math.Pow(p.decay, dt)
	for i := range p.values {
		p.values[i] *= factor
		if p.values[i] < 1e-6 {
			p.values[i] = 0
		}
	}
}

// Sample returns the pheromone level under a world point.
func (p *PheromoneGrid) Sample(xM, yM float64) float64 {
	gx := int(math.Floor(xM / p.CellSizeM))
	gy := int(math.Floor(yM / p.CellSizeM))
	if !p.inBounds(gx, gy) {
		return 0
	}
	return p.values[gy*p.Width+gx]
}

// Gradient returns the heading (radians) toward the strongest neighboring
// concentration from the world point, and whether a gradient above the
// threshold exists.
func (p *PheromoneGrid) Gradient(xM, yM float64) (float64, bool) {
	gx := int(math.Floor(xM / p.CellSizeM))
	gy := int(math.Floor(yM / p.CellSizeM))
	if !p.inBounds(gx, gy) {
		return 0, false
	}

	here := p.values[gy*p.Width+gx]
	best := here
	bestDX, bestDY := 0, 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			cx, cy := gx+dx, gy+dy
			if !p.inBounds(cx, cy) {
				continue
			}
			v := p.values[cy*p.Width+cx]
			if v > best {
				best = v
				bestDX, bestDY = dx, dy
			}
		}
	}

	if best-here < p.threshold && here < p.threshold {
		return 0, false
	}
	if bestDX == 0 && bestDY == 0 {
		return 0, false
	}
	return math.Atan2(float64(bestDY), float64(bestDX)), true
}

func (p *PheromoneGrid) inBounds(gx, gy int) bool {
	return gx >= 0 && gx < p.Width && gy >= 0 && gy < p.Height
}
