package model

import (
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

// SplitDef configures an intermediate timing point on a loop.
type SplitDef struct {
	Label   string  `mapstructure:"label" json:"label"`
	Loop    int     `mapstructure:"loop" json:"loop"`
	MinElap tod.Tod `mapstructure:"minelap" json:"minelap"`
	MaxElap tod.Tod `mapstructure:"maxelap" json:"maxelap"`
	Dist    float64 `mapstructure:"dist" json:"dist"`
}

// Intermediate is an operator judged intermediate (sprint, climb) with
// a place string like "1 2-3 4".
type Intermediate struct {
	ID     string
	Descr  string
	Abbr   string
	Dist   *float64
	Show   bool
	Places string
}

type Contest struct {
	ID        string
	Descr     string
	Source    string
	Tally     string
	Labels    []string
	Bonuses   []tod.Tod
	Points    []int
	AllSource bool
	// climb category, used as countback index for climb winners
	Category int
}

type Tally struct {
	ID      string
	Descr   string
	KeepDNF bool
}

type Category struct {
	ID        string  `yaml:"id"`
	Title     string  `yaml:"title"`
	Laps      int     `yaml:"laps"`
	Distance  float64 `yaml:"distance"`
	TimeLimit string  `yaml:"timelimit"`
	NthWheel  int     `yaml:"nthwheel"`
}

// reserved contest sources
const (
	SourceFinish       = "fin"
	SourceRegistration = "reg"
	SourceStart        = "start"
)

// tallies with special countback handling
const (
	TallySprint = "sprint"
	TallyCrit   = "crit"
	TallyClimb  = "climb"
)
