// Package api exposes the engine to the host application over a loopback JSON API.
package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dbytex91/addonx/internal/addon"
	"github.com/dbytex91/addonx/internal/engine"
	"github.com/dbytex91/addonx/internal/static"
	"github.com/dbytex91/addonx/internal/streams"
)

type API struct {
	engine *engine.Engine
}

func New(eng *engine.Engine) *API {
	return &API{engine: eng}
}

// Register mounts every route on r.
func (a *API) Register(r fiber.Router) {
	r.Get("/", static.HandleIndex)
	r.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	r.Get("/addons", a.HandleListAddons)
	r.Post("/addons", a.HandleAddAddon)
	r.Put("/addons", a.HandleReplaceAddons)
	r.Delete("/addons/:id", a.HandleRemoveAddon)
	r.Post("/addons/:id/toggle", a.HandleToggleAddon)

	r.Get("/streams/movie/:id", a.HandleMovieStreams)
	r.Get("/streams/series/:id/:season/:episode", a.HandleEpisodeStreams)
	r.Post("/subtitles", a.HandleSubtitles)
	r.Post("/resolve", a.HandleResolve)
	r.Post("/reachable", a.HandleReachable)
	r.Post("/vod", a.HandleVOD)

	r.Get("/profile", a.HandleGetProfile)
	r.Put("/profile", a.HandleSetProfile)
	r.Get("/torrent-helper", a.HandleGetTorrentHelper)
	r.Put("/torrent-helper", a.HandleSetTorrentHelper)
	r.Delete("/cache", a.HandleClearCache)
}

func (a *API) HandleListAddons(c *fiber.Ctx) error {
	return c.JSON(a.engine.Addons())
}

type addAddonRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

func (a *API) HandleAddAddon(c *fiber.Ctx) error {
	req := addAddonRequest{}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body.")
	}

	installed, err := a.engine.AddAddon(c.UserContext(), req.URL, req.Name)
	if err != nil {
		return failure(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(installed)
}

func (a *API) HandleReplaceAddons(c *fiber.Ctx) error {
	addons := []addon.Addon{}
	if err := c.BodyParser(&addons); err != nil {
		return badRequest(c, "Invalid request body.")
	}

	if err := a.engine.ReplaceAddons(addons); err != nil {
		return failure(c, err)
	}
	return c.JSON(a.engine.Addons())
}

func (a *API) HandleRemoveAddon(c *fiber.Ctx) error {
	if err := a.engine.RemoveAddon(c.Params("id")); err != nil {
		return failure(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *API) HandleToggleAddon(c *fiber.Ctx) error {
	toggled, err := a.engine.ToggleAddon(c.Params("id"))
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(toggled)
}

func (a *API) HandleMovieStreams(c *fiber.Ctx) error {
	result, err := a.engine.ResolveMovie(c.UserContext(), c.Params("id"), c.QueryBool("refresh"))
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(result)
}

func (a *API) HandleEpisodeStreams(c *fiber.Ctx) error {
	season, err := c.ParamsInt("season")
	if err != nil || season < 0 {
		return badRequest(c, "Invalid season.")
	}
	episode, err := c.ParamsInt("episode")
	if err != nil || episode < 0 {
		return badRequest(c, "Invalid episode.")
	}

	hints := streams.AnimeHints{
		IsAnime: c.QueryBool("anime"),
		TMDBID:  c.Query("tmdb"),
		TVDBID:  c.Query("tvdb"),
		Title:   c.Query("title"),
	}
	result, err := a.engine.ResolveEpisode(c.UserContext(), c.Params("id"), season, episode, hints, c.QueryBool("refresh"))
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(result)
}

type subtitlesRequest struct {
	Type    addon.ContentType   `json:"type"`
	ID      string              `json:"id"`
	Season  int                 `json:"season"`
	Episode int                 `json:"episode"`
	Stream  *addon.StreamSource `json:"stream"`
}

func (a *API) HandleSubtitles(c *fiber.Ctx) error {
	req := subtitlesRequest{}
	if err := c.BodyParser(&req); err != nil || req.ID == "" {
		return badRequest(c, "Invalid request body.")
	}
	if req.Type == "" {
		req.Type = addon.ContentTypeMovie
	}

	subtitles := a.engine.FetchSubtitles(c.UserContext(), req.Type, req.ID, req.Season, req.Episode, req.Stream)
	return c.JSON(fiber.Map{"subtitles": subtitles})
}

func (a *API) HandleResolve(c *fiber.Ctx) error {
	stream := addon.StreamSource{}
	if err := c.BodyParser(&stream); err != nil {
		return badRequest(c, "Invalid request body.")
	}

	resolved := a.engine.Resolve(c.UserContext(), stream)
	if resolved == nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": addon.ErrPlaybackResolutionFailed.Error(),
		})
	}
	return c.JSON(resolved)
}

type reachableRequest struct {
	Stream    addon.StreamSource `json:"stream"`
	TimeoutMS int                `json:"timeoutMs"`
}

func (a *API) HandleReachable(c *fiber.Ctx) error {
	req := reachableRequest{}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body.")
	}

	reachable := a.engine.IsReachable(c.UserContext(), req.Stream, time.Duration(req.TimeoutMS)*time.Millisecond)
	return c.JSON(fiber.Map{"reachable": reachable})
}

type vodRequest struct {
	Title       string `json:"title"`
	Year        int    `json:"year"`
	IMDBID      string `json:"imdbId"`
	TMDBID      string `json:"tmdbId"`
	Season      int    `json:"season"`
	Episode     int    `json:"episode"`
	HaveStreams bool   `json:"haveStreams"`
}

func (a *API) HandleVOD(c *fiber.Ctx) error {
	req := vodRequest{}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body.")
	}

	source := a.engine.FindVOD(c.UserContext(), engine.VODRequest{
		Title:   req.Title,
		Year:    req.Year,
		IMDBID:  req.IMDBID,
		TMDBID:  req.TMDBID,
		Season:  req.Season,
		Episode: req.Episode,
	}, req.HaveStreams)
	if source == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(source)
}

func (a *API) HandleGetProfile(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"profile": a.engine.Profile()})
}

func (a *API) HandleSetProfile(c *fiber.Ctx) error {
	req := struct {
		Profile string `json:"profile"`
	}{}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body.")
	}

	a.engine.SetProfile(req.Profile)
	return c.JSON(fiber.Map{"profile": a.engine.Profile()})
}

func (a *API) HandleGetTorrentHelper(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"candidates": a.engine.TorrentHelperURL()})
}

func (a *API) HandleSetTorrentHelper(c *fiber.Ctx) error {
	req := struct {
		URL string `json:"url"`
	}{}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body.")
	}
	req.URL = strings.TrimSpace(req.URL)
	if strings.ContainsAny(req.URL, " \t\r\n") {
		return badRequest(c, "Invalid torrent helper url.")
	}

	if err := a.engine.SetTorrentHelperURL(req.URL); err != nil {
		return failure(c, err)
	}
	return c.JSON(fiber.Map{"candidates": a.engine.TorrentHelperURL()})
}

func (a *API) HandleClearCache(c *fiber.Ctx) error {
	a.engine.ClearCache()
	return c.SendStatus(fiber.StatusNoContent)
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

// failure maps engine errors onto HTTP statuses.
func failure(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, addon.ErrInvalidAddonURL):
		status = fiber.StatusBadRequest
	case errors.Is(err, addon.ErrAddonNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, addon.ErrReservedAddon):
		status = fiber.StatusForbidden
	case errors.Is(err, addon.ErrManifestFetchFailed):
		status = fiber.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = fiber.StatusGatewayTimeout
	}

	if status == fiber.StatusInternalServerError {
		log.Errorf("Request %s %s failed: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
