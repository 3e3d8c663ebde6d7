package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kwetu-lab/elimu/core/agent"
	"github.com/kwetu-lab/elimu/core/session"
)

type sessionApi struct {
	registry *session.Registry
}

func RegisterSessionAPI(g *echo.Group, registry *session.Registry) {
	api := sessionApi{registry: registry}

	sg := g.Group("/sessions")
	sg.POST("", api.sessionCreate)

	dg := sg.Group("/:id")
	dg.GET("", api.sessionRetrieve)
	dg.DELETE("", api.sessionDestroy)
	dg.POST("/actions", api.sessionApplyAction)
	dg.POST("/chat", api.sessionChat)
	dg.POST("/instruct", api.sessionInstruct)
}

type (
	sessionResponse struct {
		ID       string      `json:"id"`
		State    interface{} `json:"state"`
		Channel  string      `json:"channel"`
		Progress string      `json:"progress"`
	}

	actionRequest struct {
		Type  string       `json:"type"`
		Value *agent.Value `json:"value,omitempty"`
	}

	chatRequest struct {
		Content string `json:"content"`
	}

	chatResponse struct {
		Sent bool `json:"sent"`
	}

	instructRequest struct {
		Prompt string `json:"prompt"`
	}
)

func (api *sessionApi) response(sess *session.Session) sessionResponse {
	return sessionResponse{
		ID:       sess.ID,
		State:    sess.Machine.State(),
		Channel:  sess.Conn.State().String(),
		Progress: string(sess.Tracker.Progress()),
	}
}

// Handlers

func (api *sessionApi) sessionCreate(ctx echo.Context) error {
	data := new(session.Options)
	if err := ctx.Bind(data); err != nil {
		return err
	}

	sess, err := api.registry.Start(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, api.response(sess))
}

func (api *sessionApi) sessionRetrieve(ctx echo.Context) error {
	sess, err := api.registry.Get(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.response(sess))
}

func (api *sessionApi) sessionDestroy(ctx echo.Context) error {
	if err := api.registry.Stop(ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) sessionApplyAction(ctx echo.Context) error {
	sess, err := api.registry.Get(ctx.Param("id"))
	if err != nil {
		return err
	}

	data := new(actionRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}

	spec := agent.ActionSpec{Type: data.Type}
	if data.Value != nil {
		spec.Value = *data.Value
	}
	act, err := agent.MapAction(spec)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown action")
	}

	if _, err := sess.Machine.Apply(act); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.response(sess))
}

func (api *sessionApi) sessionChat(ctx echo.Context) error {
	sess, err := api.registry.Get(ctx.Param("id"))
	if err != nil {
		return err
	}

	data := new(chatRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if data.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	// best-effort: a closed channel reports sent=false, never an error
	return ctx.JSON(http.StatusAccepted, chatResponse{Sent: sess.SendChat(data.Content)})
}

func (api *sessionApi) sessionInstruct(ctx echo.Context) error {
	sess, err := api.registry.Get(ctx.Param("id"))
	if err != nil {
		return err
	}

	data := new(instructRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if data.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	res, err := sess.Instruct(ctx.Request().Context(), data.Prompt)
	if err != nil {
		return err
	}
	// partial failures come back as warnings alongside the applied actions
	return ctx.JSON(http.StatusOK, res)
}
