// Package eventdoc reads and writes the persisted event document.
//
// The document holds the timing setup, the contest definitions and the
// rider records of one event. Unset values are written as explicit
// nulls so a document round-trips without loss.
package eventdoc

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aarondl/opt/null"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/mod/semver"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

// FormatID identifies the document format this engine writes.
const FormatID = "roadtt-3.1"

const formatPrefix = "roadtt-"

var (
	ErrVersionMismatch = errors.New("event document version mismatch")
	ErrInvalid         = errors.New("invalid event document")
)

//go:embed schema.json
var schemaSource string

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(schemaSource)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return compiler.Compile("schema.json")
})

type Document struct {
	ID        string            `json:"id"`
	Start     null.Val[tod.Tod] `json:"start"`
	LStart    null.Val[tod.Tod] `json:"lstart"`
	MinElap   null.Val[tod.Tod] `json:"minelap"`
	StartGap  null.Val[tod.Tod] `json:"startgap"`
	Precision null.Val[int]     `json:"precision"`
	Intermeds []Intermediate    `json:"intermeds"`
	Contests  []Contest         `json:"contests"`
	Tallys    []Tally           `json:"tallys"`
	Riders    []Rider           `json:"riders"`
}

type Intermediate struct {
	ID     string            `json:"id"`
	Descr  null.Val[string]  `json:"descr"`
	Abbr   null.Val[string]  `json:"abbr"`
	Dist   null.Val[float64] `json:"dist"`
	Show   bool              `json:"show"`
	Places null.Val[string]  `json:"places"`
}

type Contest struct {
	ID        string           `json:"id"`
	Descr     null.Val[string] `json:"descr"`
	Source    string           `json:"source"`
	Tally     null.Val[string] `json:"tally"`
	Labels    []string         `json:"labels"`
	Bonuses   []tod.Tod        `json:"bonuses"`
	Points    []int            `json:"points"`
	AllSource bool             `json:"allsource"`
	Category  int              `json:"category"`
}

type Tally struct {
	ID      string           `json:"id"`
	Descr   null.Val[string] `json:"descr"`
	KeepDNF bool             `json:"keepdnf"`
}

type Rider struct {
	ID           string                             `json:"id"`
	Name         null.Val[string]                   `json:"name"`
	ShortName    null.Val[string]                   `json:"shortname"`
	Category     null.Val[string]                   `json:"cat"`
	Team         null.Val[string]                   `json:"team"`
	RefID        null.Val[string]                   `json:"refid"`
	WallStart    null.Val[tod.Tod]                  `json:"wallstart"`
	Start        null.Val[tod.Tod]                  `json:"start"`
	Finish       null.Val[tod.Tod]                  `json:"finish"`
	Penalty      null.Val[tod.Tod]                  `json:"penalty"`
	Splits       [model.MaxSplits]null.Val[tod.Tod] `json:"splits"`
	Passes       int                                `json:"passes"`
	LastSeen     null.Val[tod.Tod]                  `json:"lastseen"`
	Status       null.Val[string]                   `json:"status"`
	StageBonus   null.Val[tod.Tod]                  `json:"stagebonus"`
	StagePenalty null.Val[tod.Tod]                  `json:"stagepenalty"`
	// informational, recomputed on load
	Place null.Val[string] `json:"place"`
}

// Load validates and decodes a document. The version is not checked
// here, see CheckVersion.
func Load(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := schema.Validate(payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	ret := &Document{}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(ret); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return ret, nil
}

// Write encodes the document as indented JSON.
func (d *Document) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// CheckVersion compares the document format with FormatID. Any
// difference, older or newer, is a mismatch.
func (d *Document) CheckVersion() error {
	return checkVersion(d.ID)
}

func checkVersion(id string) error {
	num, ok := strings.CutPrefix(id, formatPrefix)
	if !ok {
		return fmt.Errorf("%w: unknown format %q", ErrVersionMismatch, id)
	}
	have := "v" + num
	if !semver.IsValid(have) {
		return fmt.Errorf("%w: invalid version %q", ErrVersionMismatch, id)
	}
	want := "v" + strings.TrimPrefix(FormatID, formatPrefix)
	switch semver.Compare(have, want) {
	case 0:
		return nil
	case -1:
		return fmt.Errorf("%w: %s is older than %s", ErrVersionMismatch, id, FormatID)
	default:
		return fmt.Errorf("%w: %s is newer than %s", ErrVersionMismatch, id, FormatID)
	}
}
