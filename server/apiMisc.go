package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type pingJSON struct {
		Time int64 `json:"time"`
	}
	ping := &pingJSON{
		Time: time.Now().Unix(),
	}
	www.SendJSON(w, ping)
}

// httpHealth reports service liveness. model_loaded is false until the first
// diagnosis triggers the lazy weight load (or true from startup with
// model.eagerLoad). Always 200.
func (s *Server) httpHealth(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type healthJSON struct {
		Status      string `json:"status"`
		Message     string `json:"message"`
		ModelLoaded bool   `json:"model_loaded"`
	}
	www.SendJSON(w, &healthJSON{
		Status:      "healthy",
		Message:     "Dental diagnosis API is running",
		ModelLoaded: s.diagnosis.ModelLoaded(),
	})
}
