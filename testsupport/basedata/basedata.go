// Package basedata provides sample riders for tests.
package basedata

import (
	"github.com/mpapenbr/roadtt-engine/pkg/directory"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

func SampleRiders() []directory.Entry {
	teamStart := tod.Ptr(tod.MustParse("10:00:00"))
	return []directory.Entry{
		{
			Identity: model.NewIdentity("12", ""), First: "Jane", Last: "Smith",
			Org: "ABC", Category: "W", RefID: "A1234",
		},
		{
			Identity: model.NewIdentity("21", ""), First: "Tom", Last: "Jones",
			Category: "M", Team: "T1", TeamStart: teamStart,
		},
		{
			Identity: model.NewIdentity("22", ""), First: "Al", Last: "Bo",
			Category: "M", Team: "T1", TeamStart: teamStart,
		},
	}
}
