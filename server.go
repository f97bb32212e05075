package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/qianbin/typedkv/accessor"
	"github.com/qianbin/typedkv/kv"
	"github.com/rs/zerolog"
)

type handlerFuncEx func(w http.ResponseWriter, req *http.Request) error

func (fn handlerFuncEx) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if err := fn(w, req); err != nil {
		if errors.Is(err, accessor.ErrInvalidArgument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		zerolog.Ctx(req.Context()).Error().Err(err).Msg("request failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{accessor.ErrInvalidArgument}, args...)...)
}

type server struct {
	store  kv.Store
	helper accessor.Helper
	log    zerolog.Logger
}

func newServer(store kv.Store, helper accessor.Helper, log zerolog.Logger) *server {
	return &server{store, helper, log}
}

func (s *server) routes() http.Handler {
	router := mux.NewRouter()
	router.Use(s.withLogger)

	// PUT /{key}?ttl=30s&unit=s&nx=1
	router.Path("/{key}").Methods(http.MethodPut).Handler(handlerFuncEx(s.put))
	// GET /{key}
	router.Path("/{key}").Methods(http.MethodGet).Handler(handlerFuncEx(s.get))
	// HEAD /{key}
	router.Path("/{key}").Methods(http.MethodHead).Handler(handlerFuncEx(s.exists))
	// DELETE /{key}
	router.Path("/{key}").Methods(http.MethodDelete).Handler(handlerFuncEx(s.delete))
	// POST /{key}/expire?ttl=1500ms&unit=ms
	router.Path("/{key}/expire").Methods(http.MethodPost).Handler(handlerFuncEx(s.expire))
	// GET /{key}/ttl?unit=ms
	router.Path("/{key}/ttl").Methods(http.MethodGet).Handler(handlerFuncEx(s.ttl))
	// POST /{key}/incr?by=2
	router.Path("/{key}/{op:incr|decr}").Methods(http.MethodPost).Handler(handlerFuncEx(s.incr))
	// POST /{key}/incrbyfloat?by=0.5
	router.Path("/{key}/{op:incrbyfloat|decrbyfloat}").Methods(http.MethodPost).Handler(handlerFuncEx(s.incrFloat))

	return router
}

// withLogger attaches a request scoped logger, which the accessor picks up.
func (s *server) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		l := s.log.With().Str("method", req.Method).Str("path", req.URL.Path).Logger()
		next.ServeHTTP(w, req.WithContext(l.WithContext(req.Context())))
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) error {
	w.Header().Set("content-type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

func parseTTL(req *http.Request, required bool) (time.Duration, accessor.Unit, error) {
	unit, ok := accessor.ParseUnit(req.FormValue("unit"))
	if !ok {
		return 0, unit, badRequest("unknown unit %q", req.FormValue("unit"))
	}
	str := req.FormValue("ttl")
	if str == "" {
		if required {
			return 0, unit, badRequest("ttl is required")
		}
		return 0, unit, nil
	}
	ttl, err := time.ParseDuration(str)
	if err != nil {
		return 0, unit, badRequest("%v", err)
	}
	return ttl, unit, nil
}

func (s *server) put(w http.ResponseWriter, req *http.Request) error {
	var (
		key = mux.Vars(req)["key"]
		nx  = req.FormValue("nx") == "1" || req.FormValue("nx") == "true"
	)

	ttl, unit, err := parseTTL(req, nx)
	if err != nil {
		return err
	}

	body, err := ioutil.ReadAll(req.Body)
	if err != nil {
		return err
	}
	var value interface{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &value); err != nil {
			return badRequest("body: %v", err)
		}
	}

	ctx := req.Context()
	switch {
	case nx:
		ok, err := s.helper.SetIfAbsent(ctx, s.store, key, value, ttl, unit)
		if err != nil {
			return err
		}
		if !ok {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte("key already exists"))
		}
		return nil
	case ttl != 0:
		return s.helper.SaveWithExpiry(ctx, s.store, key, value, ttl, unit)
	default:
		return s.helper.Save(ctx, s.store, key, value)
	}
}

func (s *server) get(w http.ResponseWriter, req *http.Request) error {
	var value interface{}
	ok, err := s.helper.Get(req.Context(), s.store, mux.Vars(req)["key"], &value)
	if err != nil {
		return err
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	return writeJSON(w, value)
}

func (s *server) exists(w http.ResponseWriter, req *http.Request) error {
	ok, err := s.helper.Exists(req.Context(), s.store, mux.Vars(req)["key"])
	if err != nil {
		return err
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
	}
	return nil
}

func (s *server) delete(w http.ResponseWriter, req *http.Request) error {
	if err := s.helper.Delete(req.Context(), s.store, mux.Vars(req)["key"]); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *server) expire(w http.ResponseWriter, req *http.Request) error {
	ttl, unit, err := parseTTL(req, true)
	if err != nil {
		return err
	}
	applied, err := s.helper.Expire(req.Context(), s.store, mux.Vars(req)["key"], ttl, unit)
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]int64{"applied": applied.Milliseconds()})
}

func (s *server) ttl(w http.ResponseWriter, req *http.Request) error {
	unit, ok := accessor.ParseUnit(req.FormValue("unit"))
	if !ok {
		return badRequest("unknown unit %q", req.FormValue("unit"))
	}

	var (
		key = mux.Vars(req)["key"]
		n   int64
		err error
	)
	if unit == accessor.Milliseconds {
		n, err = s.helper.PTTL(req.Context(), s.store, key)
	} else {
		n, err = s.helper.TTL(req.Context(), s.store, key)
	}
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]int64{"ttl": n})
}

func (s *server) incr(w http.ResponseWriter, req *http.Request) error {
	var by int64 = 1
	if str := req.FormValue("by"); str != "" {
		var err error
		if by, err = strconv.ParseInt(str, 10, 64); err != nil {
			return badRequest("by: %v", err)
		}
	}

	var (
		vars = mux.Vars(req)
		n    int64
		err  error
	)
	if vars["op"] == "decr" {
		n, err = s.helper.DecrBy(req.Context(), s.store, vars["key"], by)
	} else {
		n, err = s.helper.IncrBy(req.Context(), s.store, vars["key"], by)
	}
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]int64{"value": n})
}

func (s *server) incrFloat(w http.ResponseWriter, req *http.Request) error {
	by := 1.0
	if str := req.FormValue("by"); str != "" {
		var err error
		if by, err = strconv.ParseFloat(str, 64); err != nil {
			return badRequest("by: %v", err)
		}
	}

	var (
		vars = mux.Vars(req)
		f    float64
		err  error
	)
	if vars["op"] == "decrbyfloat" {
		f, err = s.helper.DecrByFloat(req.Context(), s.store, vars["key"], by)
	} else {
		f, err = s.helper.IncrByFloat(req.Context(), s.store, vars["key"], by)
	}
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]float64{"value": f})
}
