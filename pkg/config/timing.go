package config

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

const (
	ImpulseStrict = "strict"
	ImpulseAuto   = "auto"
)

// Timing holds the timing setup of an event.
// It is read from the "timing" section of the config file.
type Timing struct {
	// strict: a passing sets the time directly, auto: a passing is matched
	// against the impulses recorded on the start/finish line
	ImpulseMode string `mapstructure:"impulsemode"`
	// skip the wall start and restart checks for start passings
	RelaxedStart bool `mapstructure:"relaxedstart"`
	// loop ids of the transponder start and finish loops, nil if unused
	StartLoop  *int `mapstructure:"startloop"`
	FinishLoop *int `mapstructure:"finishloop"`
	// subtracted from wireless start impulses
	StartDelay tod.Tod `mapstructure:"startdelay"`
	MinElap    tod.Tod `mapstructure:"minelap"`
	StartGap   tod.Tod `mapstructure:"startgap"`
	Precision  int     `mapstructure:"precision"`
	// default time limit for categories without one
	TimeLimit string `mapstructure:"timelimit"`
	// finish passings required to finish, 0 disables lap mode
	FinishPass int              `mapstructure:"finishpass"`
	Splits     []model.SplitDef `mapstructure:"splits"`
	// split slots are keyed by lap ordinal instead of loop
	LapSplits bool `mapstructure:"lapsplits"`

	// team time trial
	NthWheel int     `mapstructure:"nthwheel"`
	Gap      tod.Tod `mapstructure:"gap"`
	OwnTime  bool    `mapstructure:"owntime"`
}

func DefaultTiming() Timing {
	return Timing{
		ImpulseMode: ImpulseStrict,
		MinElap:     tod.FromSeconds(30),
		StartGap:    tod.FromSeconds(60),
		Precision:   1,
		NthWheel:    3,
		Gap:         tod.MustParse("1.12"),
		OwnTime:     true,
	}
}

// TransponderOnly reports a setup where passings alone define the times.
func (t *Timing) TransponderOnly() bool {
	return t.ImpulseMode != ImpulseAuto && (t.StartLoop != nil || t.FinishLoop != nil)
}

// Validate checks the combination of impulse mode and loops and fixes the
// precision for transponder only timing.
func (t *Timing) Validate() error {
	if t.ImpulseMode == "" {
		t.ImpulseMode = ImpulseStrict
	}
	if t.ImpulseMode != ImpulseStrict && t.ImpulseMode != ImpulseAuto {
		return fmt.Errorf("invalid impulse mode %q", t.ImpulseMode)
	}
	if t.ImpulseMode == ImpulseAuto && (t.StartLoop == nil || t.FinishLoop == nil) {
		return fmt.Errorf("auto impulse mode requires start and finish loop")
	}
	if t.Precision < 0 || t.Precision > 2 {
		return fmt.Errorf("invalid precision %d", t.Precision)
	}
	if t.TransponderOnly() {
		t.Precision = 1
	}
	if len(t.Splits) > model.MaxSplits {
		return fmt.Errorf("at most %d splits supported", model.MaxSplits)
	}
	if t.NthWheel < 1 {
		t.NthWheel = 3
	}
	return nil
}

// LoadTiming reads the "timing" section from v on top of the defaults.
func LoadTiming(v *viper.Viper) (Timing, error) {
	ret := DefaultTiming()
	if v.IsSet("timing") {
		if err := v.UnmarshalKey("timing", &ret, viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				todHook(),
				mapstructure.StringToSliceHookFunc(","),
			))); err != nil {
			return ret, err
		}
	}
	if err := ret.Validate(); err != nil {
		return ret, err
	}
	return ret, nil
}

// todHook converts config values like 30, 1.5 or "1:30" into tod.Tod
func todHook() mapstructure.DecodeHookFuncType {
	todType := reflect.TypeOf(tod.Tod{})
	return func(from, to reflect.Type, data any) (any, error) {
		if to != todType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return tod.Parse(v)
		case int:
			return tod.FromSeconds(int64(v)), nil
		case int64:
			return tod.FromSeconds(v), nil
		case float64:
			return tod.New(decimal.NewFromFloat(v)), nil
		default:
			return nil, fmt.Errorf("cannot convert %T to time value", data)
		}
	}
}
