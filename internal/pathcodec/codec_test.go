package pathcodec

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rigtwin/twin/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePath() *core.ReferencePath {
	return &core.ReferencePath{
		ID:             "loop_20260314_092653.000",
		Name:           "loop",
		VehicleID:      "rig",
		RecordedAt:     time.Date(2026, 3, 14, 9, 26, 53, 120000000, time.UTC),
		FrontAxle:      []core.Point{{X: 5, Y: 0}, {X: 5.5, Y: 0.01}, {X: 6, Y: 0.04}},
		RearAxle:       []core.Point{{X: 0, Y: 0}, {X: 0.5, Y: 0}, {X: 1, Y: 0.01}},
		FifthWheel:     []core.Point{{X: 0.5, Y: 0}, {X: 1, Y: 0.001}, {X: 1.5, Y: 0.012}},
		TrailerAxle:    []core.Point{{X: -7.5, Y: 0}, {X: -7, Y: 0}, {X: -6.5, Y: 0.0001}},
		Psi:            [][2]float64{{0, 0}, {0.0100334672, 0.0006}, {0.0200669344, 0.0019}},
		Time:           []float64{0, 0.1, 0.2},
		SteerEvents:    []core.InputEvent{{Time: 0, Value: 0}, {Time: 0.1, Value: 0.1}},
		VelocityEvents: []core.InputEvent{{Time: 0, Value: 5}},
		StartPose:      core.RigPose{},
		EndPose:        core.RigPose{X1: 1.5, Y1: 0.02, Psi1: 0.03, Psi2: 0.004},
		Summary:        core.InputSummary{Velocity: 5, MaxTime: 0.2},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatMsgpack} {
		for _, c := range []Compression{CompressionNone, CompressionGzip, CompressionZstd} {
			t.Run(string(f)+"/"+string(c), func(t *testing.T) {
				want := samplePath()
				var buf bytes.Buffer
				require.NoError(t, Write(&buf, want, f, c))

				got, err := Read(&buf, f, c)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			})
		}
	}
}

func TestMarshal_FieldNames(t *testing.T) {
	data, err := Marshal(samplePath(), FormatJSON)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{
		"id", "name", "vehicleId", "recordedAt", "frontAxle", "rearAxle", "fifthWheel",
		"trailerAxle", "psi", "time", "startPose", "endPose", "inputs",
	} {
		assert.Contains(t, raw, key)
	}
	assert.JSONEq(t, `[0,0,0,0]`, string(raw["startPose"]))
	assert.JSONEq(t, `[[0,0],[0.5,0],[1,0.01]]`, string(raw["rearAxle"]))

	var inputs map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["inputs"], &inputs))
	assert.JSONEq(t, `[[0,0.1],[0,0.1]]`, string(inputs["steerInput"]))
	assert.JSONEq(t, `[[0],[5]]`, string(inputs["velocityInput"]))
	assert.JSONEq(t, `5`, string(inputs["velocity"]))
	assert.JSONEq(t, `0.2`, string(inputs["maxTime"]))
}

func TestUnmarshal_Malformed(t *testing.T) {
	mutate := func(fn func(d *Document)) []byte {
		d := FromPath(samplePath())
		fn(&d)
		data, err := json.Marshal(d)
		require.NoError(t, err)
		return data
	}

	tests := map[string][]byte{
		"short psi":         mutate(func(d *Document) { d.Psi = d.Psi[:2] }),
		"short trailer":     mutate(func(d *Document) { d.TrailerAxle = nil }),
		"time not rising":   mutate(func(d *Document) { d.Time[2] = 0.1 }),
		"ragged steer":      mutate(func(d *Document) { d.Inputs.SteerInput[1] = d.Inputs.SteerInput[1][:1] }),
		"event off samples": mutate(func(d *Document) { d.Inputs.SteerInput[0][1] = 0.15 }),
		"missing id":        mutate(func(d *Document) { d.ID = "" }),
		"not json":          []byte("{"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal(data, FormatJSON)
			assert.ErrorIs(t, err, core.ErrDataIntegrity)
		})
	}
}

func TestRead_BadCompression(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("plain")), FormatJSON, CompressionGzip)
	assert.ErrorIs(t, err, core.ErrDataIntegrity)

	_, err = Read(bytes.NewReader(nil), FormatJSON, "lz4")
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestWrite_Rejects(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, Write(&buf, nil, FormatJSON, CompressionNone), core.ErrInvalidOperation)
	assert.ErrorIs(t, Write(&buf, samplePath(), "xml", CompressionNone), core.ErrConfiguration)
}

func TestNames(t *testing.T) {
	assert.Equal(t, ".json", Extension(FormatJSON, CompressionNone))
	assert.Equal(t, ".json.gz", Extension(FormatJSON, CompressionGzip))
	assert.Equal(t, ".msgpack.zst", Extension(FormatMsgpack, CompressionZstd))

	id, f, c, ok := SplitName("loop_1.msgpack.zst")
	require.True(t, ok)
	assert.Equal(t, "loop_1", id)
	assert.Equal(t, FormatMsgpack, f)
	assert.Equal(t, CompressionZstd, c)

	id, f, c, ok = SplitName("a.b.json")
	require.True(t, ok)
	assert.Equal(t, "a.b", id)
	assert.Equal(t, FormatJSON, f)
	assert.Equal(t, CompressionNone, c)

	_, _, _, ok = SplitName("notes.txt")
	assert.False(t, ok)
	_, _, _, ok = SplitName(".json")
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	_, err = ParseFormat("yaml")
	assert.ErrorIs(t, err, core.ErrConfiguration)

	c, err := ParseCompression("zst")
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, c)
	_, err = ParseCompression("brotli")
	assert.ErrorIs(t, err, core.ErrConfiguration)
}
