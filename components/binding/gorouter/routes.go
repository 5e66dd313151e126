package gorouter

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	router "github.com/goliatone/go-router"

	binding "github.com/goliatone/go-widgetbind/components/binding"
	"github.com/goliatone/go-widgetbind/components/binding/commands"
	"github.com/goliatone/go-widgetbind/components/binding/httpapi"
	"github.com/goliatone/go-widgetbind/components/binding/queries"
)

// Config wires go-router with the binding diagnostics controller, API and hooks.
type Config[T any] struct {
	Router     router.Router[T]
	Controller *binding.Controller
	API        httpapi.Executor
	Broadcast  *binding.BroadcastHook
	BasePath   string
	Routes     RouteConfig
}

// RouteConfig customizes the relative paths used for binding endpoints.
type RouteConfig struct {
	HTML         string
	Overview     string
	Widgets      string
	WidgetID     string
	Rebind       string
	Crash        string
	Data         string
	Status       string
	Active       string
	Pause        string
	Resume       string
	Entitlements string
	WebSocket    string
}

// Register mounts binding routes (HTML, JSON, REST, WebSocket) on a go-router router.
func Register[T any](cfg Config[T]) error {
	if cfg.Router == nil {
		return errors.New("gorouter: router is required")
	}
	if cfg.Controller == nil {
		return errors.New("gorouter: controller is required")
	}
	routes := defaultRouteConfig(cfg.Routes)
	base := cfg.BasePath
	if base == "" {
		base = "/bindings"
	}

	group := cfg.Router.Group(base)

	group.Get(routes.HTML, router.WrapHandler(func(ctx router.Context) error {
		var buf bytes.Buffer
		if err := cfg.Controller.RenderPage(ctx.Context(), &buf); err != nil {
			return respondError(ctx, http.StatusInternalServerError, err)
		}
		ctx.SetHeader("Content-Type", "text/html; charset=utf-8")
		return ctx.Send(buf.Bytes())
	}))

	group.Get(routes.Overview, router.WrapHandler(func(ctx router.Context) error {
		overview, err := cfg.Controller.Overview(ctx.Context())
		if err != nil {
			return respondError(ctx, http.StatusInternalServerError, err)
		}
		return ctx.JSON(http.StatusOK, overview)
	}))

	if cfg.API != nil {
		registerAPI(group, cfg.API, routes)
	}

	if cfg.Broadcast != nil {
		registerWebSocket(group, cfg.Broadcast, routes.WebSocket)
	}

	return nil
}

func registerAPI[T any](r router.Router[T], api httpapi.Executor, routes RouteConfig) {
	r.Post(routes.Widgets, router.WrapHandler(func(ctx router.Context) error {
		var payload commands.BindWidgetInput
		if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		if err := api.Bind(ctx.Context(), payload); err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		return ctx.JSON(http.StatusCreated, map[string]string{"status": "bound"})
	}))

	r.Delete(routes.WidgetID, router.WrapHandler(func(ctx router.Context) error {
		id := ctx.Param("id")
		if id == "" {
			return respondError(ctx, http.StatusBadRequest, binding.ErrWidgetIDRequired)
		}
		if err := api.Unbind(ctx.Context(), commands.UnbindWidgetInput{WidgetID: id}); err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		return ctx.JSON(http.StatusOK, map[string]string{"status": "unbound"})
	}))

	r.Post(routes.Rebind, router.WrapHandler(func(ctx router.Context) error {
		var payload commands.RebindWidgetInput
		if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		payload.WidgetID = ctx.Param("id")
		if err := api.Rebind(ctx.Context(), payload); err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		return ctx.JSON(http.StatusAccepted, map[string]string{"status": "rebinding"})
	}))

	r.Post(routes.Crash, router.WrapHandler(func(ctx router.Context) error {
		var payload commands.ReportCrashInput
		if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		payload.WidgetID = ctx.Param("id")
		if err := api.ReportCrash(ctx.Context(), payload); err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		return ctx.JSON(http.StatusAccepted, map[string]string{"status": "reported"})
	}))

	r.Get(routes.Data, router.WrapHandler(func(ctx router.Context) error {
		data, err := api.WidgetData(ctx.Context(), queries.WidgetInput{WidgetID: ctx.Param("id")})
		if err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		return ctx.JSON(http.StatusOK, data)
	}))

	r.Get(routes.Status, router.WrapHandler(func(ctx router.Context) error {
		status, err := api.WidgetStatus(ctx.Context(), queries.WidgetInput{WidgetID: ctx.Param("id")})
		if err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		return ctx.JSON(http.StatusOK, status)
	}))

	r.Get(routes.Active, router.WrapHandler(func(ctx router.Context) error {
		ids, err := api.ActiveBindings(ctx.Context())
		if err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		if ids == nil {
			ids = []string{}
		}
		return ctx.JSON(http.StatusOK, map[string]any{"widgets": ids})
	}))

	r.Post(routes.Pause, router.WrapHandler(func(ctx router.Context) error {
		if err := api.PauseAll(ctx.Context()); err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		return ctx.JSON(http.StatusAccepted, map[string]string{"status": "paused"})
	}))

	r.Post(routes.Resume, router.WrapHandler(func(ctx router.Context) error {
		if err := api.ResumeAll(ctx.Context()); err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		return ctx.JSON(http.StatusAccepted, map[string]string{"status": "resumed"})
	}))

	r.Post(routes.Entitlements, router.WrapHandler(func(ctx router.Context) error {
		var payload commands.UpdateEntitlementsInput
		if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		if err := api.UpdateEntitlements(ctx.Context(), payload); err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		return ctx.JSON(http.StatusOK, map[string]string{"status": "updated"})
	}))
}

func registerWebSocket[T any](r router.Router[T], hook *binding.BroadcastHook, path string) {
	cfg := router.DefaultWebSocketConfig()
	r.WebSocket(path, cfg, func(ws router.WebSocketContext) error {
		events, cancel := hook.Subscribe()
		defer cancel()
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return nil
				}
				if err := ws.WriteJSON(event); err != nil {
					return err
				}
			case <-ws.Context().Done():
				return ws.Close()
			}
		}
	})
}

func respondError(ctx router.Context, status int, err error) error {
	return ctx.JSON(status, map[string]string{"error": err.Error()})
}

func defaultRouteConfig(routes RouteConfig) RouteConfig {
	if routes.HTML == "" {
		routes.HTML = "/"
	}
	if routes.Overview == "" {
		routes.Overview = "/overview"
	}
	if routes.Widgets == "" {
		routes.Widgets = "/widgets"
	}
	if routes.WidgetID == "" {
		routes.WidgetID = "/widgets/:id"
	}
	if routes.Rebind == "" {
		routes.Rebind = "/widgets/:id/rebind"
	}
	if routes.Crash == "" {
		routes.Crash = "/widgets/:id/crash"
	}
	if routes.Data == "" {
		routes.Data = "/widgets/:id/data"
	}
	if routes.Status == "" {
		routes.Status = "/widgets/:id/status"
	}
	if routes.Active == "" {
		routes.Active = "/active"
	}
	if routes.Pause == "" {
		routes.Pause = "/pause"
	}
	if routes.Resume == "" {
		routes.Resume = "/resume"
	}
	if routes.Entitlements == "" {
		routes.Entitlements = "/entitlements"
	}
	if routes.WebSocket == "" {
		routes.WebSocket = "/ws"
	}
	return routes
}
