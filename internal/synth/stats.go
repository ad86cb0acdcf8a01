package synth

import (
	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/holefill/internal/frame"
)

// FieldStats summarises the fillable cells of a field.
type FieldStats struct {
	Fillable   int     `json:"fillable"`
	Known      int     `json:"known"`
	Unknown    int     `json:"unknown"`
	Empty      int     `json:"empty"`
	MeanCost   float64 `json:"mean_cost"`
	StdDevCost float64 `json:"stddev_cost"`
	MaxCost    uint32  `json:"max_cost"`
}

// Stats counts the fillable cells of mask by state and summarises the known
// costs. mask must match the field size.
func Stats(field *Field, mask *frame.Mask) FieldStats {
	var s FieldStats
	var costs []float64
	for y := 0; y < field.height; y++ {
		for x := 0; x < field.width; x++ {
			if !mask.Fillable(x, y) {
				continue
			}
			s.Fillable++
			p := field.At(x, y)
			switch {
			case p.Empty():
				s.Empty++
			case !p.Known():
				s.Unknown++
			default:
				s.Known++
				v, _ := p.Cost().Value()
				costs = append(costs, float64(v))
				s.MaxCost = max(s.MaxCost, v)
			}
		}
	}

	switch len(costs) {
	case 0:
	case 1:
		s.MeanCost = costs[0]
	default:
		s.MeanCost, s.StdDevCost = stat.MeanStdDev(costs, nil)
	}
	return s
}
