package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/detour/pkg/buildinfo"
	"github.com/matzehuels/detour/pkg/errors"
	"github.com/matzehuels/detour/pkg/httputil"
	"github.com/matzehuels/detour/pkg/router"
	"github.com/matzehuels/detour/pkg/scene"
	"github.com/matzehuels/detour/pkg/session"
)

// =============================================================================
// Wire types
// =============================================================================

type sessionInfo struct {
	ID        string            `json:"id"`
	Params    router.Parameters `json:"params"`
	Commits   int               `json:"commits"`
	ExpiresAt time.Time         `json:"expires_at"`
}

type sessionState struct {
	sessionInfo
	Connectors []scene.Route `json:"connectors"`
}

type itemResult struct {
	Index int    `json:"index"`
	Op    string `json:"op"`
	ID    string `json:"id,omitempty"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

type transactionResult struct {
	Items      []itemResult      `json:"items"`
	Rerouted   []string          `json:"rerouted"`
	Nudged     []string          `json:"nudged"`
	Failed     map[string]string `json:"failed"`
	Connectors []scene.Route     `json:"connectors"`
	DurationMS float64           `json:"duration_ms"`
}

func outcome(index int, op, id string, err error) itemResult {
	it := itemResult{Index: index, Op: op, ID: id}
	if err != nil {
		it.Code = string(errors.GetCode(err))
		it.Error = errors.UserMessage(err)
	}
	return it
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m := s.hooks.Snapshot()
	m["sessions"] = int64(s.store.Len())
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var p scene.Params
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(w, r, &p); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	params, err := p.Apply(s.cfg.Params)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sess, err := session.New(params, s.cfg.SessionTTL,
		router.WithLogger(s.logger.WithPrefix("router")),
		router.WithHooks(s.hooks))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := s.store.Set(r.Context(), sess); err != nil {
		httputil.WriteError(w, err)
		return
	}
	s.logger.Info("session created", "id", sess.ID, "routing", params.Routing)
	httputil.WriteJSON(w, http.StatusCreated, sessionInfo{
		ID:        sess.ID,
		Params:    params,
		ExpiresAt: sess.ExpiresAt(),
	})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var state sessionState
	err := sess.Do(func(rt *router.Router) error {
		snap := scene.Take(rt)
		state.Params = snap.Params
		state.Connectors = snap.Connectors
		return nil
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	state.ID = sess.ID
	state.Commits = sess.Commits()
	state.ExpiresAt = sess.ExpiresAt()
	httputil.WriteJSON(w, http.StatusOK, state)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	s.logger.Info("session deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleTransaction queues the posted operations and commits them. Every
// operation gets an item in the response, in request order, whether the
// router rejected it when queueing or when committing.
func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var step scene.Step
	if err := httputil.DecodeJSON(w, r, &step); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var (
		res      transactionResult
		rejected []scene.Rejected
	)
	rep, err := sess.Commit(func(rt *router.Router) error {
		rejected = step.Apply(rt)
		return nil
	}, func(rt *router.Router, _ *router.Report) {
		res.Connectors = scene.Take(rt).Connectors
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res.Items = mergeOutcomes(step.Ops, rejected, rep.Items)
	res.Rerouted = nonNil(rep.Rerouted)
	res.Nudged = nonNil(rep.Nudged)
	res.Failed = make(map[string]string, len(rep.Failed))
	for id, err := range rep.Failed {
		res.Failed[id] = errors.UserMessage(err)
	}
	res.DurationMS = float64(rep.Duration.Microseconds()) / 1000
	httputil.WriteJSON(w, http.StatusOK, res)
}

// mergeOutcomes interleaves queue-time rejections with the commit outcomes
// of the accepted operations.
func mergeOutcomes(ops []scene.Op, rejected []scene.Rejected, committed []router.Outcome) []itemResult {
	items := make([]itemResult, 0, len(ops))
	next := 0
	for i, op := range ops {
		if len(rejected) > 0 && rejected[0].Index == i {
			items = append(items, outcome(i, op.Op, op.ID, rejected[0].Err))
			rejected = rejected[1:]
			continue
		}
		var err error
		if next < len(committed) {
			err = committed[next].Err
			next++
		}
		items = append(items, outcome(i, op.Op, op.ID, err))
	}
	return items
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
