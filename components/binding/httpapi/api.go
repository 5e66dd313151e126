package httpapi

import (
	"encoding/json"
	"net/http"

	binding "github.com/goliatone/go-widgetbind/components/binding"
	"github.com/goliatone/go-widgetbind/components/binding/commands"
	"github.com/goliatone/go-widgetbind/components/binding/queries"
)

// Handlers exposes HTTP endpoints backed by an Executor.
type Handlers struct {
	API        Executor
	Controller *binding.Controller
	Broadcast  *binding.BroadcastHook
}

func (h *Handlers) HandleBindWidget(w http.ResponseWriter, r *http.Request) {
	var payload commands.BindWidgetInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.API.Bind(r.Context(), payload); err != nil {
		http.Error(w, err.Error(), StatusCode(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handlers) HandleUnbindWidget(w http.ResponseWriter, r *http.Request, widgetID string) {
	if err := h.API.Unbind(r.Context(), commands.UnbindWidgetInput{WidgetID: widgetID}); err != nil {
		http.Error(w, err.Error(), StatusCode(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleRebindWidget(w http.ResponseWriter, r *http.Request, widgetID string) {
	var payload commands.RebindWidgetInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload.WidgetID = widgetID
	if err := h.API.Rebind(r.Context(), payload); err != nil {
		http.Error(w, err.Error(), StatusCode(err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) HandlePauseAll(w http.ResponseWriter, r *http.Request) {
	if err := h.API.PauseAll(r.Context()); err != nil {
		http.Error(w, err.Error(), StatusCode(err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) HandleResumeAll(w http.ResponseWriter, r *http.Request) {
	if err := h.API.ResumeAll(r.Context()); err != nil {
		http.Error(w, err.Error(), StatusCode(err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) HandleReportCrash(w http.ResponseWriter, r *http.Request, widgetID string) {
	var payload commands.ReportCrashInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload.WidgetID = widgetID
	if err := h.API.ReportCrash(r.Context(), payload); err != nil {
		http.Error(w, err.Error(), StatusCode(err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) HandleUpdateEntitlements(w http.ResponseWriter, r *http.Request) {
	var payload commands.UpdateEntitlementsInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.API.UpdateEntitlements(r.Context(), payload); err != nil {
		http.Error(w, err.Error(), StatusCode(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) HandleWidgetData(w http.ResponseWriter, r *http.Request, widgetID string) {
	data, err := h.API.WidgetData(r.Context(), queries.WidgetInput{WidgetID: widgetID})
	if err != nil {
		http.Error(w, err.Error(), StatusCode(err))
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handlers) HandleWidgetStatus(w http.ResponseWriter, r *http.Request, widgetID string) {
	status, err := h.API.WidgetStatus(r.Context(), queries.WidgetInput{WidgetID: widgetID})
	if err != nil {
		http.Error(w, err.Error(), StatusCode(err))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handlers) HandleActiveBindings(w http.ResponseWriter, r *http.Request) {
	ids, err := h.API.ActiveBindings(r.Context())
	if err != nil {
		http.Error(w, err.Error(), StatusCode(err))
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"widgets": ids})
}

func (h *Handlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	if h.Controller == nil {
		http.Error(w, "controller not configured", http.StatusServiceUnavailable)
		return
	}
	overview, err := h.Controller.Overview(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *Handlers) HandlePage(w http.ResponseWriter, r *http.Request) {
	if h.Controller == nil {
		http.Error(w, "controller not configured", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.Controller.RenderPage(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Mux mounts every handler on a ServeMux under base.
func (h *Handlers) Mux(base string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+base+"/widgets", h.HandleBindWidget)
	mux.HandleFunc("DELETE "+base+"/widgets/{id}", func(w http.ResponseWriter, r *http.Request) {
		h.HandleUnbindWidget(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST "+base+"/widgets/{id}/rebind", func(w http.ResponseWriter, r *http.Request) {
		h.HandleRebindWidget(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST "+base+"/widgets/{id}/crash", func(w http.ResponseWriter, r *http.Request) {
		h.HandleReportCrash(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET "+base+"/widgets/{id}/data", func(w http.ResponseWriter, r *http.Request) {
		h.HandleWidgetData(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET "+base+"/widgets/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		h.HandleWidgetStatus(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET "+base+"/active", h.HandleActiveBindings)
	mux.HandleFunc("POST "+base+"/pause", h.HandlePauseAll)
	mux.HandleFunc("POST "+base+"/resume", h.HandleResumeAll)
	mux.HandleFunc("POST "+base+"/entitlements", h.HandleUpdateEntitlements)
	mux.HandleFunc("GET "+base+"/overview", h.HandleOverview)
	mux.HandleFunc("GET "+base, h.HandlePage)
	if h.Broadcast != nil {
		mux.HandleFunc("GET "+base+"/events", h.Broadcast.ServeSSE)
		mux.HandleFunc("GET "+base+"/ws", h.Broadcast.ServeWebSocket)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
