package internal_test

import (
	"encoding/json"
	"testing"

	"github.com/koopa0/system-design/covey-rooms/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewPlayer 測試創建玩家
func TestNewPlayer(t *testing.T) {
	p1 := internal.NewPlayer("cloud")
	p2 := internal.NewPlayer("cloud")

	assert.NotEmpty(t, p1.ID())
	assert.NotEqual(t, p1.ID(), p2.ID(), "同名玩家也要有不同 ID")
	assert.Equal(t, "cloud", p1.UserName())
	assert.Equal(t, internal.Location{X: 0, Y: 0, Rotation: internal.RotationFront, Moving: false}, p1.Location())
}

// TestLocation_Validate 測試位置驗證
func TestLocation_Validate(t *testing.T) {
	tests := []struct {
		name    string
		loc     internal.Location
		wantErr bool
	}{
		{"front", internal.Location{Rotation: internal.RotationFront}, false},
		{"back moving", internal.Location{X: -3, Y: 7.5, Rotation: internal.RotationBack, Moving: true}, false},
		{"left", internal.Location{Rotation: internal.RotationLeft}, false},
		{"right", internal.Location{Rotation: internal.RotationRight}, false},
		{"empty rotation", internal.Location{}, true},
		{"unknown rotation", internal.Location{Rotation: "up"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.loc.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, internal.ErrInvalidArgument)
				return
			}
			assert.NoError(t, err)
		})
	}
}

// TestPlayer_JSON 測試與前端約定的格式
func TestPlayer_JSON(t *testing.T) {
	p := internal.NewPlayer("cloud")

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, p.ID(), raw["_id"])
	assert.Equal(t, "cloud", raw["_userName"])
	assert.Equal(t, map[string]any{
		"x":        float64(0),
		"y":        float64(0),
		"rotation": "front",
		"moving":   false,
	}, raw["location"])

	var decoded internal.Player
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, p.ID(), decoded.ID())
	assert.Equal(t, p.UserName(), decoded.UserName())
	assert.Equal(t, p.Location(), decoded.Location())
}
