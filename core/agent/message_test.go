package agent

import (
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	vol := 80
	playing := true

	tests := []struct {
		name string
		msg  Message
	}{
		{
			name: "init",
			msg:  InitMessage{Context: InitContext{SessionID: "s1", UserID: "u1", TrainingID: "t1"}},
		},
		{
			name: "user_message",
			msg:  UserMessage{Content: "hello"},
		},
		{
			name: "training_loaded",
			msg:  TrainingLoadedMessage{TrainingID: "t1"},
		},
		{
			name: "ai_response",
			msg:  AIResponseMessage{Content: "hi there"},
		},
		{
			name: "player_action single numeric",
			msg:  PlayerActionMessage{Action: "seek", Value: NumValue(12.5)},
		},
		{
			name: "player_action single string",
			msg:  PlayerActionMessage{Action: "set_section", Value: StrValue("sec2")},
		},
		{
			name: "player_action batch with state",
			msg: PlayerActionMessage{
				Actions: []ActionSpec{
					{Type: "play"},
					{Type: "set_volume", Value: NumValue(80)},
				},
				State: &StatePatch{Volume: &vol, IsPlaying: &playing},
			},
		},
		{
			name: "error",
			msg:  ErrorMessage{Message: "kaboom"},
		},
		{
			name: "ws_open",
			msg:  WSOpenMessage{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.msg, got)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "lol nope"},
		{name: "unknown type", data: `{"type":"telemetry"}`},
		{name: "missing type", data: `{"content":"hi"}`},
		{name: "init without context", data: `{"type":"init"}`},
		{name: "bad action value", data: `{"type":"player_action","action":"seek","action_value":{"x":1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			require.Error(t, err)
			assert.Equal(t, ErrProtocol, pkgerrors.Cause(err))
		})
	}
}

func TestValue_JSON(t *testing.T) {
	var v Value
	require.NoError(t, v.UnmarshalJSON([]byte("3.5")))
	assert.Equal(t, NumValue(3.5), v)

	require.NoError(t, v.UnmarshalJSON([]byte(`"sec1"`)))
	assert.Equal(t, StrValue("sec1"), v)

	data, err := Value{}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}
