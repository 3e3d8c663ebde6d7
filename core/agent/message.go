package agent

import (
	"encoding/json"
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// ErrProtocol marks a malformed or unrecognized duplex-channel payload.
// Such payloads are dropped with a log entry, never surfaced per-message.
var ErrProtocol = errors.New("unrecognized agent message")

// Message types on the duplex channel.
type MessageType string

const (
	MsgInit           MessageType = "init"
	MsgUserMessage    MessageType = "user_message"
	MsgTrainingLoaded MessageType = "training_loaded"
	MsgAIResponse     MessageType = "ai_response"
	MsgPlayerAction   MessageType = "player_action"
	MsgError          MessageType = "error"
	MsgWSOpen         MessageType = "ws_open"
)

// Message is one duplex-channel payload. The variant set is closed;
// consumers switch over it exhaustively so no message type can silently
// vanish.
type Message interface{ Type() MessageType }

// InitContext identifies the session to the agent service. It is sent
// exactly once per connection instance, before any application message.
type InitContext struct {
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id,omitempty"`
	TrainingID string `json:"training_id,omitempty"`
}

type (
	InitMessage struct {
		Context InitContext
	}

	// UserMessage is outbound chat text (echoed back by the agent).
	UserMessage struct {
		Content string
	}

	TrainingLoadedMessage struct {
		TrainingID string
	}

	AIResponseMessage struct {
		Content string
	}

	// PlayerActionMessage carries either a single action or a batch,
	// plus an optional partial state patch.
	PlayerActionMessage struct {
		Action  string
		Value   Value
		Actions []ActionSpec
		State   *StatePatch
	}

	ErrorMessage struct {
		Message string
	}

	WSOpenMessage struct{}
)

func (InitMessage) Type() MessageType           { return MsgInit }
func (UserMessage) Type() MessageType           { return MsgUserMessage }
func (TrainingLoadedMessage) Type() MessageType { return MsgTrainingLoaded }
func (AIResponseMessage) Type() MessageType     { return MsgAIResponse }
func (PlayerActionMessage) Type() MessageType   { return MsgPlayerAction }
func (ErrorMessage) Type() MessageType          { return MsgError }
func (WSOpenMessage) Type() MessageType         { return MsgWSOpen }

// ActionSpec is one entry of a batched player_action message.
type ActionSpec struct {
	Type  string `json:"type"`
	Value Value  `json:"value,omitempty"`
}

// Value is an action argument that arrives as either a JSON number or a
// string, depending on the action type.
type Value struct {
	Num float64
	Str string
	// IsNum reports which representation was set. Zero Value means absent.
	IsNum bool
	Set   bool
}

func NumValue(n float64) Value { return Value{Num: n, IsNum: true, Set: true} }
func StrValue(s string) Value  { return Value{Str: s, Set: true} }

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Value{}
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*v = NumValue(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = StrValue(s)
		return nil
	}
	return pkgerrors.Wrap(ErrProtocol, "action value is neither number nor string")
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case !v.Set:
		return []byte("null"), nil
	case v.IsNum:
		return json.Marshal(v.Num)
	default:
		return json.Marshal(v.Str)
	}
}

// StatePatch is a partial player-state update attached to a player_action
// message. Nil fields are left untouched.
type StatePatch struct {
	SectionID     *string  `json:"current_section,omitempty"`
	Time          *float64 `json:"current_time,omitempty"`
	IsPlaying     *bool    `json:"is_playing,omitempty"`
	Volume        *int     `json:"volume,omitempty"`
	Muted         *bool    `json:"is_muted,omitempty"`
	ShowSubtitles *bool    `json:"show_subtitles,omitempty"`
	MicActive     *bool    `json:"is_microphone_active,omitempty"`
}

// wire is the JSON envelope shared by all message types.
type wire struct {
	Type        MessageType  `json:"type"`
	Context     *InitContext `json:"context,omitempty"`
	Content     string       `json:"content,omitempty"`
	TrainingID  string       `json:"training_id,omitempty"`
	Action      string       `json:"action,omitempty"`
	ActionValue *Value       `json:"action_value,omitempty"`
	Actions     []ActionSpec `json:"actions,omitempty"`
	State       *StatePatch  `json:"state,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// Decode parses one inbound payload into its Message variant.
func Decode(data []byte) (Message, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, pkgerrors.Wrap(ErrProtocol, err.Error())
	}

	switch w.Type {
	case MsgInit:
		if w.Context == nil {
			return nil, pkgerrors.Wrap(ErrProtocol, "init without context")
		}
		return InitMessage{Context: *w.Context}, nil
	case MsgUserMessage:
		return UserMessage{Content: w.Content}, nil
	case MsgTrainingLoaded:
		return TrainingLoadedMessage{TrainingID: w.TrainingID}, nil
	case MsgAIResponse:
		return AIResponseMessage{Content: w.Content}, nil
	case MsgPlayerAction:
		msg := PlayerActionMessage{Action: w.Action, Actions: w.Actions, State: w.State}
		if w.ActionValue != nil {
			msg.Value = *w.ActionValue
		}
		return msg, nil
	case MsgError:
		return ErrorMessage{Message: w.Message}, nil
	case MsgWSOpen:
		return WSOpenMessage{}, nil
	default:
		return nil, pkgerrors.Wrapf(ErrProtocol, "type %q", w.Type)
	}
}

// Encode serializes a Message for the wire.
func Encode(msg Message) ([]byte, error) {
	w := wire{Type: msg.Type()}

	switch m := msg.(type) {
	case InitMessage:
		ctx := m.Context
		w.Context = &ctx
	case UserMessage:
		w.Content = m.Content
	case TrainingLoadedMessage:
		w.TrainingID = m.TrainingID
	case AIResponseMessage:
		w.Content = m.Content
	case PlayerActionMessage:
		w.Action = m.Action
		if m.Value.Set {
			v := m.Value
			w.ActionValue = &v
		}
		w.Actions = m.Actions
		w.State = m.State
	case ErrorMessage:
		w.Message = m.Message
	case WSOpenMessage:
		// type tag only
	default:
		return nil, pkgerrors.Wrapf(ErrProtocol, "encode %T", msg)
	}
	return json.Marshal(w)
}
