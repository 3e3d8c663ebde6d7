// Package backendapi implements the content backend collaborator interfaces
// over its REST surface.
package backendapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/kwetu-lab/elimu/core"
	"github.com/kwetu-lab/elimu/core/agent"
	"github.com/kwetu-lab/elimu/core/track"
	"github.com/kwetu-lab/elimu/core/training"
)

type Client struct {
	baseURL string
	token   string
	log     core.Logger
}

var (
	_ training.Repository = (*Client)(nil)
	_ track.Recorder      = (*Client)(nil)
	_ agent.Applier       = (*Client)(nil)
)

func NewClient(conf *core.Config, log core.Logger) *Client {
	return &Client{
		baseURL: conf.Backend.BaseURL,
		token:   conf.Backend.Token,
		log:     log,
	}
}

// statusError carries a non-2xx backend response so callers can map 404s to
// their entity's not-found error.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string { return fmt.Sprintf("backend: status %d: %s", e.code, e.body) }

func notFound(err, sentinel error) error {
	var serr *statusError
	if errors.As(err, &serr) && serr.code == http.StatusNotFound {
		return sentinel
	}
	return err
}

func (c *Client) do(ctx context.Context, method rest.Method, path string, body, out interface{}) error {
	req := rest.Request{
		Method:  method,
		BaseURL: c.baseURL + path,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
	if c.token != "" {
		req.Headers["Authorization"] = "Bearer " + c.token
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "backend: encoding request")
		}
		req.Body = data
	}

	res, err := rest.SendWithContext(ctx, req)
	if err != nil {
		return errors.Wrap(err, "backend: "+path)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return &statusError{code: res.StatusCode, body: res.Body}
	}
	if out != nil && res.Body != "" {
		if err := json.Unmarshal([]byte(res.Body), out); err != nil {
			return errors.Wrap(err, "backend: decoding response")
		}
	}
	return nil
}

// training.Repository

func (c *Client) GetSection(ctx context.Context, id string) (training.Section, error) {
	var sec training.Section
	if err := c.do(ctx, rest.Get, "/sections/"+id, nil, &sec); err != nil {
		return training.Section{}, notFound(err, training.ErrSectionNotFound)
	}
	return sec, nil
}

func (c *Client) QuerySections(ctx context.Context, trainingID string) ([]training.Section, error) {
	var sections []training.Section
	if err := c.do(ctx, rest.Get, "/trainings/"+trainingID+"/sections", nil, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

func (c *Client) CreateOverlay(ctx context.Context, ov training.Overlay) (training.Overlay, error) {
	var created training.Overlay
	if err := c.do(ctx, rest.Post, "/overlays", ov, &created); err != nil {
		return training.Overlay{}, notFound(err, training.ErrSectionNotFound)
	}
	return created, nil
}

func (c *Client) GetOverlay(ctx context.Context, id string) (training.Overlay, error) {
	var ov training.Overlay
	if err := c.do(ctx, rest.Get, "/overlays/"+id, nil, &ov); err != nil {
		return training.Overlay{}, notFound(err, training.ErrOverlayNotFound)
	}
	return ov, nil
}

func (c *Client) UpdateOverlay(ctx context.Context, ov training.Overlay) (training.Overlay, error) {
	var updated training.Overlay
	if err := c.do(ctx, rest.Put, "/overlays/"+ov.ID, ov, &updated); err != nil {
		return training.Overlay{}, notFound(err, training.ErrOverlayNotFound)
	}
	return updated, nil
}

func (c *Client) DeleteOverlay(ctx context.Context, id string) error {
	if err := c.do(ctx, rest.Delete, "/overlays/"+id, nil, nil); err != nil {
		return notFound(err, training.ErrOverlayNotFound)
	}
	return nil
}

func (c *Client) CreateFrameConfig(ctx context.Context, fc training.FrameConfig) (training.FrameConfig, error) {
	var created training.FrameConfig
	if err := c.do(ctx, rest.Post, "/frame-configs", fc, &created); err != nil {
		return training.FrameConfig{}, notFound(err, training.ErrSectionNotFound)
	}
	return created, nil
}

func (c *Client) UpdateFrameConfig(ctx context.Context, fc training.FrameConfig) (training.FrameConfig, error) {
	var updated training.FrameConfig
	if err := c.do(ctx, rest.Put, "/frame-configs/"+fc.ID, fc, &updated); err != nil {
		return training.FrameConfig{}, notFound(err, training.ErrFrameConfigNotFound)
	}
	return updated, nil
}

func (c *Client) DeleteFrameConfig(ctx context.Context, id string) error {
	if err := c.do(ctx, rest.Delete, "/frame-configs/"+id, nil, nil); err != nil {
		return notFound(err, training.ErrFrameConfigNotFound)
	}
	return nil
}

func (c *Client) GetGlobalFrameConfig(ctx context.Context, id string) (training.GlobalFrameConfig, error) {
	var gc training.GlobalFrameConfig
	if err := c.do(ctx, rest.Get, "/global-frame-configs/"+id, nil, &gc); err != nil {
		return training.GlobalFrameConfig{}, notFound(err, training.ErrGlobalConfigNotFound)
	}
	return gc, nil
}

func (c *Client) QueryGlobalFrameConfigs(ctx context.Context, orgID string) ([]training.GlobalFrameConfig, error) {
	var configs []training.GlobalFrameConfig
	if err := c.do(ctx, rest.Get, "/orgs/"+orgID+"/global-frame-configs", nil, &configs); err != nil {
		return nil, err
	}
	return configs, nil
}

// track.Recorder

func (c *Client) RecordEvent(ctx context.Context, evt track.InteractionEvent) error {
	return c.do(ctx, rest.Post, "/interaction-events", evt, nil)
}

func (c *Client) RecordChat(ctx context.Context, msg track.ChatMessage) error {
	return c.do(ctx, rest.Post, "/chat-messages", msg, nil)
}

func (c *Client) UpsertProgress(ctx context.Context, s track.Session, p track.Progress) error {
	payload := struct {
		track.Session
		Progress track.Progress `json:"progress"`
	}{Session: s, Progress: p}
	return c.do(ctx, rest.Put, "/training-progress", payload, nil)
}

// agent.Applier

func (c *Client) ApplyAgentActions(ctx context.Context, req agent.InstructionRequest) (agent.InstructionResult, error) {
	var res agent.InstructionResult
	if err := c.do(ctx, rest.Post, "/agent/overlay-actions", req, &res); err != nil {
		return agent.InstructionResult{}, err
	}
	return res, nil
}
