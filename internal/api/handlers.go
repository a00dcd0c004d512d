package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/payops/sentinel/internal/trace"
)

// --- Cycles ---

func (s *Server) handleListCycles(w http.ResponseWriter, r *http.Request) {
	filter := trace.CycleFilter{
		ShouldActOnly: r.URL.Query().Get("should_act_only") == "true",
		Limit:         queryInt(r, "limit", 50),
		Offset:        queryInt(r, "offset", 0),
	}

	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = &t
		}
	}
	if until := r.URL.Query().Get("until"); until != "" {
		if t, err := time.Parse(time.RFC3339, until); err == nil {
			filter.Until = &t
		}
	}

	cycles, total, err := s.store.ListCycles(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, map[string]interface{}{
		"cycles": cycles,
		"total":  total,
	})
}

func (s *Server) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := s.store.GetCycle(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "cycle not found")
		return
	}
	writeJSON(w, c)
}

func (s *Server) handleLatestCycle(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.LatestCycle()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "no cycles recorded yet")
		return
	}
	writeJSON(w, c)
}

func (s *Server) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	valid, brokenAt, err := s.store.VerifyHashChain()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]interface{}{
		"valid":     valid,
		"broken_at": brokenAt,
	})
}

// --- Interventions ---

func (s *Server) handleListInterventions(w http.ResponseWriter, r *http.Request) {
	filter := trace.InterventionFilter{
		Kind:   r.URL.Query().Get("kind"),
		Target: r.URL.Query().Get("target"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = &t
		}
	}

	interventions, total, err := s.store.ListInterventions(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, map[string]interface{}{
		"interventions": interventions,
		"total":         total,
	})
}

func (s *Server) handleGetIntervention(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	i, err := s.store.GetIntervention(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if i == nil {
		writeError(w, http.StatusNotFound, "intervention not found")
		return
	}
	writeJSON(w, i)
}

func (s *Server) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e, err := s.store.GetEvaluation(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "evaluation not found")
		return
	}
	writeJSON(w, e)
}

// --- Approvals ---

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	if s.approvals == nil {
		writeJSON(w, map[string]interface{}{"approvals": []string{}})
		return
	}
	writeJSON(w, map[string]interface{}{"approvals": s.approvals.ListPending()})
}

func (s *Server) handleApproveAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.approvals == nil {
		writeError(w, http.StatusServiceUnavailable, "approval queue not configured")
		return
	}
	if err := s.approvals.Resolve(id, true, "dashboard"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "approved"})
}

func (s *Server) handleDenyAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.approvals == nil {
		writeError(w, http.StatusServiceUnavailable, "approval queue not configured")
		return
	}
	if err := s.approvals.Resolve(id, false, "dashboard"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "denied"})
}

// --- Config ---

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.cfgLoader == nil {
		writeError(w, http.StatusServiceUnavailable, "no config loader configured")
		return
	}
	writeJSON(w, s.cfgLoader.Get())
}

func (s *Server) handleReloadConfig(w http.ResponseWriter, r *http.Request) {
	if s.cfgLoader == nil {
		writeError(w, http.StatusServiceUnavailable, "no config loader configured")
		return
	}
	if err := s.cfgLoader.Reload(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload: "+err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "reloaded"})
}

// --- System ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetSystemStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, stats)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
