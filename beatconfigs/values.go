package beatconfigs

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/reusee/taibeat/cmds"
	"github.com/reusee/taibeat/configs"
	"github.com/reusee/taibeat/modes"
	"github.com/reusee/taibeat/vars"
)

const (
	FallbackBPM        = 120
	FallbackVolume     = 0
	FallbackSampleRate = 44100
	FallbackFrameRate  = 60
)

var (
	bpmFlag        = cmds.Var[float64]("-bpm")
	volumeFlag     = cmds.Var[float64]("-volume")
	storeFlag      = cmds.Var[string]("-store")
	sampleRateFlag = cmds.Var[int]("-sample-rate")
	noStoreFlag    = cmds.Switch("-no-store")
	laneFlags      = cmds.Collect[string]("-lane")
)

// DefaultBPM is the tempo used when nothing was persisted.
type DefaultBPM float64

func (Module) DefaultBPM(
	loader configs.Loader,
) DefaultBPM {
	return DefaultBPM(vars.FirstNonZero(
		*bpmFlag,
		configs.First[float64](loader, "bpm"),
		FallbackBPM,
	))
}

// DefaultVolume is the output gain in dB used when nothing was persisted.
// Zero is a meaningful gain, so a config value only applies when it is present.
type DefaultVolume float64

func (Module) DefaultVolume(
	loader configs.Loader,
) DefaultVolume {
	if *volumeFlag != 0 {
		return DefaultVolume(*volumeFlag)
	}
	var v float64
	if err := loader.AssignFirst("volume", &v); err == nil {
		return DefaultVolume(v)
	}
	return FallbackVolume
}

// StorePath is the database file. Empty disables persistence.
type StorePath string

func (Module) StorePath(
	mode modes.Mode,
	loader configs.Loader,
) StorePath {
	if *noStoreFlag {
		return ""
	}
	if mode == modes.ModeDevelopment {
		return ":memory:"
	}
	if path := vars.FirstNonZero(
		*storeFlag,
		configs.First[string](loader, "store"),
	); path != "" {
		return StorePath(path)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return StorePath(filepath.Join(dir, "taibeat", "state.db"))
}

type SampleRate int

func (Module) SampleRate(
	loader configs.Loader,
) SampleRate {
	return SampleRate(vars.FirstNonZero(
		*sampleRateFlag,
		configs.First[int](loader, "sample_rate"),
		FallbackSampleRate,
	))
}

// FrameInterval is the period of the position polling loop.
type FrameInterval time.Duration

func (Module) FrameInterval(
	loader configs.Loader,
) FrameInterval {
	if ms := configs.First[int](loader, "frame_interval_ms"); ms > 0 {
		return FrameInterval(time.Duration(ms) * time.Millisecond)
	}
	return FrameInterval(time.Second / FallbackFrameRate)
}

// TimelineLanes limits the lanes the timeline prints. Empty means every lane.
// Lanes given on the command line replace the configured ones; configured
// lanes from every config file are combined.
type TimelineLanes []string

func (Module) TimelineLanes(
	loader configs.Loader,
) TimelineLanes {
	if len(*laneFlags) > 0 {
		return slices.Clone(*laneFlags)
	}
	var lanes TimelineLanes
	for values := range configs.All[[]string](loader, "timeline_lanes") {
		for _, lane := range values {
			if !slices.Contains(lanes, lane) {
				lanes = append(lanes, lane)
			}
		}
	}
	return lanes
}
