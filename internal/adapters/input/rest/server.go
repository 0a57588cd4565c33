// Package rest exposes the synchronous HTTP surface for lights, rooms,
// scenes, and house-wide commands. Reads block on the serialized downstream
// answer; writes are acknowledged immediately and run detached behind the
// same serializer.
package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"hue-mcp-gateway/internal/domain/color"
	"hue-mcp-gateway/internal/domain/model"
	"hue-mcp-gateway/internal/domain/service"
	"hue-mcp-gateway/internal/logctx"
	"hue-mcp-gateway/internal/ports"
)

type Server struct {
	hub    *service.HubService
	log    *slog.Logger
	router chi.Router
}

func NewServer(hub *service.HubService, log *slog.Logger) *Server {
	s := &Server{hub: hub, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/lights", s.handleListLights)
		r.Get("/lights/{id}", s.handleGetLight)
		r.Put("/lights/{id}/state", s.handleSetLightState)

		r.Get("/rooms", s.handleListRooms)
		r.Get("/rooms/{id}", s.handleGetRoom)
		r.Put("/rooms/{id}/state", s.handleSetRoomState)

		r.Get("/scenes", s.handleListScenes)
		r.Post("/scenes/{id}/activate", s.handleActivateScene)

		r.Put("/home/state", s.handleSetHomeState)

		r.Post("/setup/pair", s.handlePair)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
			RequestID:  uuid.NewString(),
			Method:     r.Method,
			Path:       r.URL.Path,
			RemoteAddr: r.RemoteAddr,
		})
		s.log.InfoContext(ctx, "http.request")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// stateBody is the write payload shared by light, room, and house-wide
// endpoints.
type stateBody struct {
	On             *bool    `json:"on"`
	Brightness     *float64 `json:"brightness"`
	Color          *string  `json:"color"`
	ColorTemp      *uint16  `json:"colorTemp"`
	TransitionTime *float64 `json:"transitionTime"`
}

// validate enforces range checks at the boundary. The service layer clamps
// for other call paths; the REST surface rejects instead.
func (b *stateBody) validate() error {
	if b.update().Empty() {
		return errors.New("state update carries no fields")
	}
	if b.Brightness != nil && (*b.Brightness < 0 || *b.Brightness > 1) {
		return errors.New("brightness must be a fraction between 0 and 1")
	}
	if b.ColorTemp != nil && (*b.ColorTemp < 153 || *b.ColorTemp > 500) {
		return errors.New("colorTemp must be between 153 and 500 mireds")
	}
	if b.TransitionTime != nil && *b.TransitionTime < 0 {
		return errors.New("transitionTime must not be negative")
	}
	if b.Color != nil {
		if _, _, err := color.Translate(*b.Color); err != nil {
			return err
		}
	}
	return nil
}

func (b *stateBody) update() model.StateUpdate {
	return model.StateUpdate{
		On:             b.On,
		Brightness:     b.Brightness,
		Color:          b.Color,
		ColorTemp:      b.ColorTemp,
		TransitionTime: b.TransitionTime,
	}
}

func (s *Server) decodeState(w http.ResponseWriter, r *http.Request) (*stateBody, bool) {
	var body stateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return nil, false
	}
	if err := body.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &body, true
}

func (s *Server) handleListLights(w http.ResponseWriter, r *http.Request) {
	lights, err := s.hub.Lights(r.Context())
	if err != nil {
		s.writeHubError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lights)
}

func (s *Server) handleGetLight(w http.ResponseWriter, r *http.Request) {
	light, err := s.hub.Light(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeHubError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, light)
}

func (s *Server) handleSetLightState(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeState(w, r)
	if !ok {
		return
	}
	if err := s.hub.SetLightAsync(r.Context(), chi.URLParam(r, "id"), body.update()); err != nil {
		s.writeHubError(w, r, err)
		return
	}
	writeAccepted(w)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.hub.Groups(r.Context())
	if err != nil {
		s.writeHubError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.hub.Group(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeHubError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleSetRoomState(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeState(w, r)
	if !ok {
		return
	}
	if err := s.hub.SetGroupAsync(r.Context(), chi.URLParam(r, "id"), body.update()); err != nil {
		s.writeHubError(w, r, err)
		return
	}
	writeAccepted(w)
}

func (s *Server) handleListScenes(w http.ResponseWriter, r *http.Request) {
	scenes, err := s.hub.Scenes(r.Context())
	if err != nil {
		s.writeHubError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scenes)
}

func (s *Server) handleActivateScene(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Group string `json:"group"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
	}
	if err := s.hub.ActivateSceneAsync(r.Context(), chi.URLParam(r, "id"), body.Group); err != nil {
		s.writeHubError(w, r, err)
		return
	}
	writeAccepted(w)
}

func (s *Server) handleSetHomeState(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeState(w, r)
	if !ok {
		return
	}
	if err := s.hub.SetHomeAsync(r.Context(), body.update()); err != nil {
		s.writeHubError(w, r, err)
		return
	}
	writeAccepted(w)
}

// handlePair runs the setup subflow synchronously: the caller is standing at
// the hub pressing the link button and wants to know whether it worked.
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Host string `json:"host"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
	}
	cfg, err := s.hub.Pair(r.Context(), body.Host)
	if err != nil {
		if errors.Is(err, ports.ErrLinkButton) {
			writeError(w, http.StatusConflict, "press the hub link button, then retry")
			return
		}
		s.log.ErrorContext(r.Context(), "pair.fail", slog.String("err", err.Error()))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"host": cfg.HubHost, "status": "paired"})
}

func (s *Server) writeHubError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ports.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "hub credentials are not configured; pair first")
	case errors.Is(err, service.ErrInvalidGroupID):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.ErrorContext(r.Context(), "hub.request.fail", slog.String("err", err.Error()))
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAccepted(w http.ResponseWriter) {
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
