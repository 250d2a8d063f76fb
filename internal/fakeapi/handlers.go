package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type job struct {
	id     string
	polls  int
	result []byte
}

// advance records one status poll and returns the job's state afterwards.
func (s *Server) advance(j *job) (done, failed bool) {
	j.polls++
	if j.polls <= s.pendingPolls {
		return false, false
	}
	return true, s.failMessage != ""
}

// reply answers fast requests synchronously and slow ones with a job.
func (s *Server) reply(w http.ResponseWriter, fast bool, body any) {
	if fast && !s.asyncFastMode {
		respondJSON(w, http.StatusOK, body)
		return
	}

	raw, err := json.Marshal(body)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	j := &job{id: uuid.New().String(), result: raw}
	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()

	respondJSON(w, http.StatusAccepted, map[string]string{"jobId": j.id})
}

func (s *Server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	s.count("similarity")
	var req struct {
		Set     []string `json:"set"`
		SetA    []string `json:"set_a"`
		SetB    []string `json:"set_b"`
		Fast    bool     `json:"fast"`
		Flatten *bool    `json:"flatten"`
	}
	if !decode(w, r, &req) {
		return
	}

	items := len(req.Set) + len(req.SetA) + len(req.SetB)
	s.mu.Lock()
	s.simSizes = append(s.simSizes, items)
	s.mu.Unlock()
	if s.maxItems > 0 && items > s.maxItems {
		respondError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("similarity request has %d items, limit is %d", items, s.maxItems))
		return
	}

	self := req.Set != nil
	var m [][]float64
	if self {
		m = crossMatrix(req.Set, req.Set)
	} else {
		if req.SetA == nil || req.SetB == nil {
			respondError(w, http.StatusBadRequest, "either set or both set_a and set_b are required")
			return
		}
		m = crossMatrix(req.SetA, req.SetB)
	}

	resp := map[string]any{"n": len(m), "scenario": "cross"}
	if self {
		resp["scenario"] = "self"
	}
	if req.Flatten == nil || *req.Flatten {
		flat := []float64{}
		for i, row := range m {
			if self {
				flat = append(flat, row[i:]...)
			} else {
				flat = append(flat, row...)
			}
		}
		resp["mode"] = "flattened"
		resp["flattened"] = flat
	} else {
		resp["mode"] = "matrix"
		resp["flattened"] = []float64{}
		resp["matrix"] = m
	}
	s.reply(w, req.Fast, resp)
}

func (s *Server) handleThemes(w http.ResponseWriter, r *http.Request) {
	s.count("themes")
	var req struct {
		Inputs    []string `json:"inputs"`
		MinThemes int      `json:"minThemes"`
		MaxThemes int      `json:"maxThemes"`
		Fast      bool     `json:"fast"`
	}
	if !decode(w, r, &req) {
		return
	}
	if len(req.Inputs) < 2 {
		respondError(w, http.StatusBadRequest, "at least two inputs are required")
		return
	}
	s.reply(w, req.Fast, map[string]any{
		"themes":    generateThemes(req.Inputs, req.MinThemes, req.MaxThemes),
		"requestId": RequestIDFromContext(r.Context()),
	})
}

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	s.count("sentiment")
	var req struct {
		Inputs []string `json:"inputs"`
		Fast   bool     `json:"fast"`
	}
	if !decode(w, r, &req) {
		return
	}
	results := make([]map[string]any, len(req.Inputs))
	for i, text := range req.Inputs {
		label, conf := classify(text)
		results[i] = map[string]any{"sentiment": label, "confidence": conf}
	}
	s.reply(w, req.Fast, map[string]any{
		"results":   results,
		"requestId": RequestIDFromContext(r.Context()),
	})
}

func (s *Server) handleExtractions(w http.ResponseWriter, r *http.Request) {
	s.count("extractions")
	var req struct {
		Inputs  []string `json:"inputs"`
		Themes  []string `json:"themes"`
		Version string   `json:"version"`
		Fast    bool     `json:"fast"`
	}
	if !decode(w, r, &req) {
		return
	}
	out := make([][][]string, len(req.Inputs))
	for i, text := range req.Inputs {
		out[i] = extract(text, req.Themes)
	}
	s.reply(w, req.Fast, map[string]any{
		"extractions": out,
		"requestId":   RequestIDFromContext(r.Context()),
	})
}

func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	s.count("embeddings")
	var req struct {
		Inputs []string `json:"inputs"`
		Fast   bool     `json:"fast"`
	}
	if !decode(w, r, &req) {
		return
	}
	docs := make([]map[string]any, len(req.Inputs))
	for i, text := range req.Inputs {
		docs[i] = map[string]any{"text": text, "vector": embed(text)}
	}
	s.reply(w, req.Fast, map[string]any{
		"embeddings": docs,
		"requestId":  RequestIDFromContext(r.Context()),
	})
}

// lookupJob counts a status poll and resolves the job, honouring injected
// status errors. It writes the error response itself when it returns nil.
func (s *Server) lookupJob(w http.ResponseWriter, id string) (j *job, done, failed bool) {
	s.count("jobs")
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.statusHit < s.statusErrors {
		s.statusHit++
		respondError(w, http.StatusServiceUnavailable, "status temporarily unavailable")
		return nil, false, false
	}
	j, ok := s.jobs[id]
	if !ok {
		respondError(w, http.StatusNotFound, "job not found: "+id)
		return nil, false, false
	}
	done, failed = s.advance(j)
	return j, done, failed
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("jobId")
	j, done, failed := s.lookupJob(w, id)
	if j == nil {
		return
	}
	resp := map[string]any{"jobId": j.id, "jobStatus": "pending"}
	switch {
	case failed:
		resp["jobStatus"] = "failed"
		resp["message"] = s.failMessage
	case done:
		resp["jobStatus"] = "completed"
		resp["resultUrl"] = "/results/" + j.id
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLegacyJobStatus(w http.ResponseWriter, r *http.Request) {
	j, done, failed := s.lookupJob(w, chi.URLParam(r, "id"))
	if j == nil {
		return
	}
	resp := map[string]any{"id": j.id, "status": "running"}
	switch {
	case failed:
		resp["status"] = "failed"
		resp["message"] = s.failMessage
	case done:
		resp["status"] = "succeeded"
		resp["result_url"] = "/results/" + j.id
	case j.polls == 1:
		resp["status"] = "queued"
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	s.count("results")
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "job not found: "+id)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(j.result)
}
