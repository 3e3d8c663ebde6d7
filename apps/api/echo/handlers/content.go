package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kwetu-lab/elimu/core/training"
)

type contentApi struct {
	svc *training.Service
}

func RegisterContentAPI(g *echo.Group, svc *training.Service) {
	api := contentApi{svc: svc}

	g.GET("/sections/:id", api.sectionRetrieve)
	g.GET("/trainings/:id/sections", api.sectionList)

	og := g.Group("/overlays")
	og.POST("", api.overlayCreate)
	og.PUT("/:id", api.overlayUpdate)
	og.DELETE("/:id", api.overlayDestroy)

	fg := g.Group("/frame-configs")
	fg.POST("", api.frameConfigCreate)
	fg.POST("/copy", api.frameConfigCopy)
	fg.DELETE("/:id", api.frameConfigDestroy)

	g.GET("/orgs/:org/global-frame-configs", api.globalConfigList)
}

type frameConfigCopyRequest struct {
	SectionID      string `json:"section_id"`
	GlobalConfigID string `json:"global_config_id"`
}

// Handlers

func (api *contentApi) sectionRetrieve(ctx echo.Context) error {
	sec, err := api.svc.GetSection(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sec)
}

func (api *contentApi) sectionList(ctx echo.Context) error {
	sections, err := api.svc.QuerySections(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sections)
}

func (api *contentApi) overlayCreate(ctx echo.Context) error {
	data := new(training.NewOverlay)
	if err := ctx.Bind(data); err != nil {
		return err
	}

	ov, err := api.svc.CreateOverlay(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ov)
}

func (api *contentApi) overlayUpdate(ctx echo.Context) error {
	data := new(training.UpdateOverlay)
	if err := ctx.Bind(data); err != nil {
		return err
	}

	ov, err := api.svc.UpdateOverlay(ctx.Request().Context(), ctx.Param("id"), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ov)
}

func (api *contentApi) overlayDestroy(ctx echo.Context) error {
	if err := api.svc.DeleteOverlay(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *contentApi) frameConfigCreate(ctx echo.Context) error {
	data := new(training.NewFrameConfig)
	if err := ctx.Bind(data); err != nil {
		return err
	}

	fc, err := api.svc.CreateFrameConfig(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, fc)
}

func (api *contentApi) frameConfigCopy(ctx echo.Context) error {
	data := new(frameConfigCopyRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if data.SectionID == "" || data.GlobalConfigID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "section_id and global_config_id are required")
	}

	fc, err := api.svc.CopyFromGlobal(ctx.Request().Context(), data.SectionID, data.GlobalConfigID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, fc)
}

func (api *contentApi) frameConfigDestroy(ctx echo.Context) error {
	if err := api.svc.DeleteFrameConfig(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *contentApi) globalConfigList(ctx echo.Context) error {
	configs, err := api.svc.QueryGlobalFrameConfigs(ctx.Request().Context(), ctx.Param("org"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, configs)
}
