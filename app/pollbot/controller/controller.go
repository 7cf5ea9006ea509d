package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/groupchat/pollbot/app/pollbot/types"
	"github.com/gorilla/mux"
)

// maxEventBytes caps webhook bodies.
const maxEventBytes = 1 << 20

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods("GET")
	r.Handle("/readyz", http.HandlerFunc(c.HandleReady)).Methods("GET")
	r.HandleFunc("/version", c.HandleVersion).Methods("GET")

	r.HandleFunc("/events", c.HandleEvent).Methods("POST")

	return r, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
