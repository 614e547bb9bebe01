package chart

// SeriesKind is the plot function that produced a series.
type SeriesKind string

const (
	KindHist    SeriesKind = "hist"
	KindKDE     SeriesKind = "kde"
	KindBox     SeriesKind = "box"
	KindViolin  SeriesKind = "violin"
	KindCount   SeriesKind = "count"
	KindBar     SeriesKind = "bar"
	KindScatter SeriesKind = "scatter"
	KindLine    SeriesKind = "line"
)

// Categorical kinds place Labels on a category x axis.
func (k SeriesKind) Categorical() bool {
	switch k {
	case KindBox, KindViolin, KindCount, KindBar:
		return true
	}
	return false
}

// BoxStats summarizes one box of a box or violin plot.
type BoxStats struct {
	Low      float64   `json:"low"`
	Q1       float64   `json:"q1"`
	Median   float64   `json:"median"`
	Q3       float64   `json:"q3"`
	High     float64   `json:"high"`
	Outliers []float64 `json:"outliers,omitempty"`
}

// Series is one drawn layer. Categorical series use Labels with Y (or Box);
// numeric series use X with Y.
type Series struct {
	Kind     SeriesKind `json:"kind"`
	Name     string     `json:"name,omitempty"`
	Labels   []string   `json:"labels,omitempty"`
	X        []float64  `json:"x,omitempty"`
	Y        []float64  `json:"y,omitempty"`
	Box      []BoxStats `json:"box,omitempty"`
	BinWidth float64    `json:"bin_width,omitempty"`
}

type Title struct {
	Text     string  `json:"text"`
	Loc      string  `json:"loc"`
	Pad      float64 `json:"pad"`
	FontSize float64 `json:"fontsize"`
}

// Figure is the state plt and sns calls build up. Sizes are in inches.
type Figure struct {
	Width         float64  `json:"width"`
	Height        float64  `json:"height"`
	Title         Title    `json:"title"`
	XLabel        string   `json:"xlabel,omitempty"`
	YLabel        string   `json:"ylabel,omitempty"`
	XTickRotation float64  `json:"xtick_rotation"`
	Theme         bool     `json:"theme"`
	Despine       bool     `json:"despine"`
	Shown         bool     `json:"shown"`
	Series        []Series `json:"series"`
}

func NewFigure() *Figure {
	return &Figure{
		Width:  6.4,
		Height: 4.8,
		Title:  Title{Loc: "center", FontSize: 12},
	}
}

func (f *Figure) Empty() bool { return len(f.Series) == 0 }

// Categorical reports whether the x axis holds category labels.
func (f *Figure) Categorical() bool {
	for _, s := range f.Series {
		if s.Kind.Categorical() || (s.Kind == KindLine && len(s.Labels) > 0) {
			return true
		}
	}
	return false
}

// Labels returns the union of series labels in first-seen order.
func (f *Figure) Labels() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range f.Series {
		for _, l := range s.Labels {
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}
