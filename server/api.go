package server

import (
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/cyclopcam/staticfiles"
	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

//go:embed www
var staticWWW embed.FS

// API errors are returned as {"detail": "..."}, which is what the upload UI
// expects.
type errorJSON struct {
	Detail string `json:"detail"`
}

func sendDetail(w http.ResponseWriter, code int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(&errorJSON{Detail: detail})
}

// protect runs a handler inside a panic handler that recognizes www.HTTPError,
// and turns any failure into a JSON error response.
func (s *Server) protect(handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		defer func() {
			if rec := recover(); rec != nil {
				if hErr, ok := rec.(www.HTTPError); ok {
					s.Log.Infof("Failed request %v: %v %v", r.URL.Path, hErr.Code, hErr.Message)
					sendDetail(w, hErr.Code, hErr.Message)
				} else if err, ok := rec.(runtime.Error); ok {
					s.Log.Errorf("Runtime panic error %v: %v", r.URL.Path, err)
					s.Log.Errorf("Stack Trace: %v", string(debug.Stack()))
					sendDetail(w, http.StatusInternalServerError, err.Error())
				} else if err, ok := rec.(error); ok {
					s.Log.Errorf("Panic error %v: %v", r.URL.Path, err)
					sendDetail(w, http.StatusInternalServerError, err.Error())
				} else {
					s.Log.Errorf("Unrecognized panic %v: %v", r.URL.Path, rec)
					sendDetail(w, http.StatusInternalServerError, "Internal server error")
				}
			}
		}()
		handler(w, r, params)
	}
}

func (s *Server) setupHttpRoutes() error {
	router := httprouter.New()

	handle := func(method, route string, h httprouter.Handle) {
		router.Handle(method, route, s.protect(h))
	}

	// Inference is the expensive path, so it gets an IP-keyed rate limit.
	limited := httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
	rateLimited := func(h httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				h(w, r, params)
			})).ServeHTTP(w, r)
		}
	}

	handle("GET", "/api/ping", s.httpPing)
	handle("GET", "/api/health", s.httpHealth)
	handle("POST", "/api/diagnose", rateLimited(s.httpDiagnose))
	handle("GET", "/api/image/:name", s.httpGetImage)
	handle("GET", "/api/diagnoses", s.httpListDiagnoses)

	// Upload UI. Embedded into the binary for deployment; --hot serves it
	// from disk for development.
	isImmutable := true
	var fsys fs.FS = staticWWW
	fsysRoot := "www"
	if s.HotReloadWWW {
		relRoot := "server/www"
		absRoot, err := filepath.Abs(relRoot)
		if err != nil {
			return err
		}
		s.Log.Infof("Serving static files from %v, with hot reload", absRoot)
		fsys = os.DirFS(absRoot)
		fsysRoot = ""
		isImmutable = false
	}
	static, err := staticfiles.NewCachedStaticFileServer(fsys, fsysRoot, []string{"/api/"}, s.Log, isImmutable, nil)
	if err != nil {
		s.Log.Warnf("Error in static files: %v", err)
	} else {
		router.NotFound = static
	}

	s.httpRouter = router
	return nil
}

// withCORS applies the configured origin allowlist, and answers preflight
// requests before they reach the router.
func (s *Server) withCORS(next http.Handler) http.Handler {
	allowed := map[string]bool{}
	for _, origin := range s.cfg.AllowedOrigins {
		allowed[origin] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowed[origin] || allowed["*"]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
