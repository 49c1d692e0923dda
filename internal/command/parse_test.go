package command

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/carstom/internal/ar/arsession"
	"github.com/banshee-data/carstom/internal/ar/assembly"
	"github.com/banshee-data/carstom/internal/ar/coordinator"
	"github.com/banshee-data/carstom/internal/ar/manipulation"
	"github.com/banshee-data/carstom/internal/ar/selection"
)

func TestParseIntents(t *testing.T) {
	tests := []struct {
		line string
		want coordinator.Intent
	}{
		{"tap 200 400", coordinator.Tap{Point: arsession.ScreenPoint{X: 200, Y: 400}}},
		{"  TAP 1.5 2  # comment", coordinator.Tap{Point: arsession.ScreenPoint{X: 1.5, Y: 2}}},
		{"mode scale", coordinator.EnterMode{Mode: manipulation.ModeScale}},
		{"mode move", coordinator.EnterMode{Mode: manipulation.ModeTranslate}},
		{"mode idle", coordinator.ExitMode{}},
		{"toggle rim", coordinator.ToggleMode{Mode: manipulation.ModeVariantSwap}},
		{"exit", coordinator.ExitMode{}},
		{"translate left", coordinator.Translate{Direction: manipulation.Left}},
		{"translate up coarse", coordinator.Translate{Direction: manipulation.Up, Coarse: true}},
		{"scale +", coordinator.Scale{Delta: manipulation.Increase}},
		{"scale -", coordinator.Scale{Delta: manipulation.Decrease}},
		{"depth out", coordinator.Depth{Delta: manipulation.Outward}},
		{"depth -", coordinator.Depth{Delta: manipulation.Inward}},
		{"color accent", coordinator.Recolor{Swatch: manipulation.SwatchAccent}},
		{"rim next", coordinator.SwapVariant{Direction: assembly.Next}},
		{"rim prev", coordinator.SwapVariant{Direction: assembly.Previous}},
		{"swipe down", coordinator.Swipe{Direction: manipulation.Down}},
		{"drag begin 10 20", coordinator.Drag{Phase: selection.Began, Point: arsession.ScreenPoint{X: 10, Y: 20}}},
		{"drag move 11 21", coordinator.Drag{Phase: selection.Changed, Point: arsession.ScreenPoint{X: 11, Y: 21}}},
		{"drag end", coordinator.Drag{Phase: selection.Ended}},
		{"drag cancel", coordinator.Drag{Phase: selection.Cancelled}},
		{"drag fail 3 4", coordinator.Drag{Phase: selection.Failed, Point: arsession.ScreenPoint{X: 3, Y: 4}}},
		{"remove", coordinator.Remove{}},
		{"capture", coordinator.Capture{}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, VerbIntent, cmd.Verb)
			assert.Equal(t, tt.want, cmd.Intent)
		})
	}
}

func TestParseControlCommands(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"pause", Command{Verb: VerbPause, Text: "pause"}},
		{"resume", Command{Verb: VerbResume, Text: "resume"}},
		{"reset", Command{Verb: VerbReset, Text: "reset"}},
		{"detect door", Command{Verb: VerbDetect, Text: "detect door", Plane: "door"}},
		{"lose door", Command{Verb: VerbLose, Text: "lose door", Plane: "door"}},
		{"grow door 2 1", Command{Verb: VerbGrow, Text: "grow door 2 1", Plane: "door", Extent: arsession.Extent{Width: 2, Depth: 1}}},
		{"camera 0.1 0.4 0", Command{Verb: VerbCamera, Text: "camera 0.1 0.4 0", Position: r3.Vec{X: 0.1, Y: 0.4}}},
		{"wait 1.5", Command{Verb: VerbWait, Text: "wait 1.5", Wait: 1500 * time.Millisecond}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		line    string
		wantErr error
	}{
		{"", ErrEmpty},
		{"   # only a comment", ErrEmpty},
		{"fly away", ErrUnknownCommand},
		{"tap 1", nil},
		{"tap a b", nil},
		{"mode", nil},
		{"mode warp", nil},
		{"translate sideways", nil},
		{"translate left fast", nil},
		{"scale *", nil},
		{"depth", nil},
		{"depth sideways", nil},
		{"color chartreuse", nil},
		{"rim sideways", nil},
		{"drag", nil},
		{"drag wiggle 1 2", nil},
		{"drag begin", nil},
		{"grow door 2", nil},
		{"camera 1 2", nil},
		{"wait -1", nil},
		{"remove now", nil},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := Parse(tt.line)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}
