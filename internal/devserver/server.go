// Package devserver is an in-process stub of the Initiative API used for
// offline development and integration tests. It serves canned data and
// simulated job progressions over the real wire contract; none of the
// backend's AI or scoring logic lives here.
package devserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/initiativehq/initiativectl/pkg/models"
)

// Options configures the stub server.
type Options struct {
	// APIKey is the raw key accepted as a Bearer credential. Only its
	// bcrypt hash is kept.
	APIKey string

	// JobStep is the delay between simulated job status transitions.
	// Defaults to 500ms; tests set it to a few milliseconds.
	JobStep time.Duration

	// Seed preloads two sample initiatives.
	Seed bool
}

// Server holds all stub state in memory. Restarting it resets everything.
type Server struct {
	keyHash []byte
	jobStep time.Duration

	mu          sync.Mutex
	initiatives map[uuid.UUID]*models.Initiative
	questions   map[uuid.UUID][]*models.Question
	mrds        map[uuid.UUID]*models.MRD
	scores      map[uuid.UUID]*models.Score
	jobs        map[string]*models.Job
	tokens      map[string]struct{}
}

// New creates a stub server. It panics on a bcrypt failure, which can only
// happen with an absurdly long key.
func New(opts Options) *Server {
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.APIKey), bcrypt.MinCost)
	if err != nil {
		panic("devserver: hashing api key: " + err.Error())
	}

	step := opts.JobStep
	if step <= 0 {
		step = 500 * time.Millisecond
	}

	s := &Server{
		keyHash:     hash,
		jobStep:     step,
		initiatives: make(map[uuid.UUID]*models.Initiative),
		questions:   make(map[uuid.UUID][]*models.Question),
		mrds:        make(map[uuid.UUID]*models.MRD),
		scores:      make(map[uuid.UUID]*models.Score),
		jobs:        make(map[string]*models.Job),
		tokens:      make(map[string]struct{}),
	}

	if opts.Seed {
		s.seed()
	}
	return s
}

// Handler builds the chi router with the full Initiative API surface.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(logRequests)
	r.Use(recoverPanics)

	r.Post("/api/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/api/initiatives", s.handleListInitiatives)
		r.Post("/api/initiatives", s.handleCreateInitiative)
		r.Get("/api/initiatives/{id}", s.handleGetInitiative)
		r.Patch("/api/initiatives/{id}", s.handleUpdateInitiative)
		r.Delete("/api/initiatives/{id}", s.handleDeleteInitiative)

		r.Get("/api/initiatives/{id}/questions", s.handleListQuestions)
		r.Put("/api/initiatives/{id}/questions/{qid}/answer", s.handleAnswerQuestion)
		r.Post("/api/initiatives/{id}/questions/generate", s.handleGenerateQuestions)

		r.Post("/api/initiatives/{id}/readiness", s.handleReadiness)

		r.Post("/api/initiatives/{id}/mrd/generate", s.handleGenerateMRD)
		r.Get("/api/initiatives/{id}/mrd", s.handleGetMRD)

		r.Post("/api/initiatives/{id}/score/calculate", s.handleCalculateScore)
		r.Get("/api/initiatives/{id}/score", s.handleGetScore)

		r.Get("/api/jobs/{jobID}", s.handleGetJob)
	})

	return r
}

func (s *Server) validToken(tok string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[tok]
	return ok
}

func (s *Server) seed() {
	now := time.Now().UTC()
	samples := []*models.Initiative{
		{
			ID:          uuid.New(),
			Title:       "Mobile checkout revamp",
			Description: "Reduce cart abandonment on mobile web",
			Status:      models.InitiativeStatusDiscovery,
			OwnerEmail:  "pm@example.com",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          uuid.New(),
			Title:       "Self-serve onboarding",
			Description: "Let trial users activate without a sales call",
			Status:      models.InitiativeStatusDraft,
			OwnerEmail:  "pm@example.com",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	for _, in := range samples {
		s.initiatives[in.ID] = in
	}
}
