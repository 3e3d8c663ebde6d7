package agent

import (
	"context"
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/kwetu-lab/elimu/core"
	"github.com/kwetu-lab/elimu/core/player"
	"github.com/kwetu-lab/elimu/core/training"
)

// Command operations over overlays.
type CommandOp string

const (
	OpCreate CommandOp = "create"
	OpUpdate CommandOp = "update"
	OpDelete CommandOp = "delete"
)

type (
	// CommandAction is one agent-issued overlay mutation, always scoped to
	// one section.
	CommandAction struct {
		Op        CommandOp               `json:"op"`
		SectionID string                  `json:"section_id"`
		OverlayID string                  `json:"overlay_id,omitempty"`
		Overlay   *training.NewOverlay    `json:"overlay,omitempty"` // create
		Update    *training.UpdateOverlay `json:"update,omitempty"`  // update
	}

	// InstructionRequest asks the agent (via the backend collaborator) to
	// turn a free-text instruction into overlay actions.
	InstructionRequest struct {
		SectionID string `json:"section_id"`
		Prompt    string `json:"prompt"`
		Script    string `json:"script,omitempty"`
	}

	// InstructionResult reports a best-effort batch application: Actions
	// holds what was applied, Warnings what was skipped and why. Success is
	// true as long as the overlay set ended in a valid state.
	InstructionResult struct {
		Success  bool            `json:"success"`
		Message  string          `json:"message"`
		Actions  []CommandAction `json:"actions"`
		Warnings []string        `json:"warnings"`
	}

	// Applier is the backend collaborator call producing actions from a
	// prompt.
	Applier interface {
		ApplyAgentActions(ctx context.Context, req InstructionRequest) (InstructionResult, error)
	}

	// ChatEvent is one chat entry surfaced by the protocol.
	ChatEvent struct {
		Role    string // "user" | "assistant"
		Content string
	}
)

// ActionError is a single failed CommandAction within a batch. It is
// reported in warnings; the batch continues.
type ActionError struct {
	Index int
	Op    CommandOp
	Err   error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d (%s): %v", e.Index+1, e.Op, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Protocol translates inbound agent messages into player/overlay mutations
// and outbound natural-language instructions into structured overlay action
// batches.
type Protocol struct {
	machine *player.Machine
	svc     *training.Service
	applier Applier
	onChat  func(ChatEvent)
	onError func(msg string) // surfaced to the UI layer, player state untouched
	log     core.Logger
}

func NewProtocol(machine *player.Machine, svc *training.Service, applier Applier, log core.Logger) *Protocol {
	return &Protocol{
		machine: machine,
		svc:     svc,
		applier: applier,
		onChat:  func(ChatEvent) {},
		onError: func(string) {},
		log:     log,
	}
}

// OnChat registers the chat sink (tracker and UI).
func (p *Protocol) OnChat(fn func(ChatEvent)) { p.onChat = fn }

// OnError registers the UI error sink.
func (p *Protocol) OnError(fn func(string)) { p.onError = fn }

// HandleMessage dispatches one inbound duplex-channel message. The switch is
// exhaustive over the closed Message variant set.
func (p *Protocol) HandleMessage(msg Message) {
	switch m := msg.(type) {
	case TrainingLoadedMessage:
		p.loadTraining(m.TrainingID)
	case AIResponseMessage:
		p.onChat(ChatEvent{Role: "assistant", Content: m.Content})
	case UserMessage: // echo of our own outbound chat
		p.onChat(ChatEvent{Role: "user", Content: m.Content})
	case PlayerActionMessage:
		p.applyPlayerActions(m)
	case ErrorMessage:
		p.onError(m.Message)
	case WSOpenMessage:
		p.log.Debug("agent: channel open acknowledged")
	case InitMessage:
		// outbound-only; an inbound init is noise
		p.log.Warn("agent: unexpected inbound init")
	}
}

func (p *Protocol) loadTraining(trainingID string) {
	sections, err := p.svc.QuerySections(context.Background(), trainingID)
	if err != nil {
		p.log.Error("agent: loading training sections", err)
		return
	}
	p.machine.LoadTraining(sections)
}

func (p *Protocol) applyPlayerActions(m PlayerActionMessage) {
	specs := m.Actions
	if len(specs) == 0 && m.Action != "" {
		specs = []ActionSpec{{Type: m.Action, Value: m.Value}}
	}
	for _, spec := range specs {
		act, err := MapAction(spec)
		if err != nil {
			p.log.Warn("agent: dropping player action", err)
			continue
		}
		if _, err := p.machine.Apply(act); err != nil {
			// rejected action leaves state unchanged; contained here
			p.log.Warn("agent: player rejected action", spec.Type, err)
		}
	}
	if m.State != nil {
		p.applyStatePatch(*m.State)
	}
}

func (p *Protocol) applyStatePatch(patch StatePatch) {
	if patch.SectionID != nil {
		if _, err := p.machine.Apply(player.SetSection{SectionID: *patch.SectionID}); err != nil {
			p.log.Warn("agent: state patch section rejected", err)
		}
	}
	if patch.Time != nil {
		_, _ = p.machine.Apply(player.Seek{Time: *patch.Time})
	}
	if patch.Volume != nil {
		_, _ = p.machine.Apply(player.SetVolume{Level: *patch.Volume})
	}
	if patch.IsPlaying != nil {
		if *patch.IsPlaying {
			_, _ = p.machine.Apply(player.Play{})
		} else {
			_, _ = p.machine.Apply(player.Pause{})
		}
	}
	if patch.Muted != nil && *patch.Muted != p.machine.State().Muted {
		_, _ = p.machine.Apply(player.ToggleMute{})
	}
	if patch.ShowSubtitles != nil && *patch.ShowSubtitles != p.machine.State().ShowSubtitles {
		_, _ = p.machine.Apply(player.ToggleSubtitles{})
	}
	if patch.MicActive != nil && *patch.MicActive != p.machine.State().MicActive {
		_, _ = p.machine.Apply(player.ToggleMicrophone{})
	}
}

// MapAction translates a wire action spec into a player action.
func MapAction(spec ActionSpec) (player.Action, error) {
	switch spec.Type {
	case "play":
		return player.Play{}, nil
	case "pause":
		return player.Pause{}, nil
	case "seek":
		if !spec.Value.Set || !spec.Value.IsNum {
			return nil, pkgerrors.Wrap(ErrProtocol, "seek without numeric value")
		}
		return player.Seek{Time: spec.Value.Num}, nil
	case "set_section":
		if !spec.Value.Set || spec.Value.IsNum {
			return nil, pkgerrors.Wrap(ErrProtocol, "set_section without section id")
		}
		return player.SetSection{SectionID: spec.Value.Str}, nil
	case "set_volume":
		if !spec.Value.Set || !spec.Value.IsNum {
			return nil, pkgerrors.Wrap(ErrProtocol, "set_volume without numeric value")
		}
		return player.SetVolume{Level: int(spec.Value.Num)}, nil
	case "toggle_mute":
		return player.ToggleMute{}, nil
	case "toggle_subtitles":
		return player.ToggleSubtitles{}, nil
	case "toggle_microphone":
		return player.ToggleMicrophone{}, nil
	default:
		return nil, pkgerrors.Wrapf(ErrProtocol, "action %q", spec.Type)
	}
}

// Instruct sends a free-text authoring instruction to the agent through the
// backend collaborator, then applies the returned actions best-effort: a
// single bad reference never discards the rest of the batch.
func (p *Protocol) Instruct(ctx context.Context, sectionID, prompt, script string) (InstructionResult, error) {
	res, err := p.applier.ApplyAgentActions(ctx, InstructionRequest{
		SectionID: sectionID,
		Prompt:    prompt,
		Script:    script,
	})
	if err != nil {
		return InstructionResult{}, pkgerrors.Wrap(err, "agent instruction")
	}

	applied, warnings := p.ApplyActions(ctx, res.Actions)
	res.Actions = applied
	res.Warnings = append(res.Warnings, warnings...)
	if !res.Success && len(applied) > 0 {
		res.Success = true
	}
	return res, nil
}

// ApplyActions applies a CommandAction batch to the overlay set,
// best-effort per action. Failed actions are returned as warnings;
// processing continues with the rest.
func (p *Protocol) ApplyActions(ctx context.Context, actions []CommandAction) ([]CommandAction, []string) {
	applied := make([]CommandAction, 0, len(actions))
	var warnings []string

	for i, act := range actions {
		if err := p.applyAction(ctx, act); err != nil {
			aerr := &ActionError{Index: i, Op: act.Op, Err: err}
			p.log.Warn("agent: action failed", aerr)
			warnings = append(warnings, aerr.Error())
			continue
		}
		applied = append(applied, act)
	}
	return applied, warnings
}

func (p *Protocol) applyAction(ctx context.Context, act CommandAction) error {
	switch act.Op {
	case OpCreate:
		if act.Overlay == nil {
			return pkgerrors.Wrap(ErrProtocol, "create without overlay")
		}
		no := *act.Overlay
		if no.SectionID == "" {
			no.SectionID = act.SectionID
		}
		_, err := p.svc.CreateOverlay(ctx, no)
		return err
	case OpUpdate:
		if act.Update == nil {
			return pkgerrors.Wrap(ErrProtocol, "update without payload")
		}
		_, err := p.svc.UpdateOverlay(ctx, act.OverlayID, *act.Update)
		return err
	case OpDelete:
		return p.svc.DeleteOverlay(ctx, act.OverlayID)
	default:
		return pkgerrors.Wrapf(ErrProtocol, "op %q", act.Op)
	}
}
