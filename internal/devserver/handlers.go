package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/initiativehq/initiativectl/internal/devserver/response"
	"github.com/initiativehq/initiativectl/pkg/models"
)

// Initiatives titled with this prefix make their async jobs fail, so error
// paths can be exercised against the stub.
const failTitlePrefix = "FAIL:"

var questionTemplates = []struct {
	category string
	text     string
}{
	{"problem", "What user problem does this initiative solve?"},
	{"problem", "How do users work around this problem today?"},
	{"audience", "Which user segment feels this pain most acutely?"},
	{"audience", "How many users does this segment represent?"},
	{"value", "What metric should move if this ships?"},
	{"value", "What is the cost of not doing this?"},
	{"risks", "What is the riskiest assumption behind this initiative?"},
	{"risks", "What dependencies could block delivery?"},
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}
	if req.Email == "" || req.Password == "" {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Email and password are required", nil)
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = struct{}{}
	s.mu.Unlock()

	response.JSON(w, models.Session{
		Token:     token,
		User:      models.User{ID: uuid.New(), Email: req.Email, Name: "Dev User"},
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	})
}

func (s *Server) handleListInitiatives(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)

	s.mu.Lock()
	all := make([]*models.Initiative, 0, len(s.initiatives))
	for _, in := range s.initiatives {
		cp := *in
		all = append(all, &cp)
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})

	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}

	response.Collection(w, all[start:end], response.PaginationMeta{
		Page:    page,
		Limit:   limit,
		Total:   len(all),
		HasNext: end < len(all),
	})
}

func (s *Server) handleCreateInitiative(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}
	if req.Title == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "title is required", nil)
		return
	}

	now := time.Now().UTC()
	in := &models.Initiative{
		ID:          uuid.New(),
		Title:       req.Title,
		Description: req.Description,
		Status:      models.InitiativeStatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.initiatives[in.ID] = in
	s.mu.Unlock()

	response.Created(w, in)
}

func (s *Server) handleGetInitiative(w http.ResponseWriter, r *http.Request) {
	in, ok := s.initiativeFromPath(w, r)
	if !ok {
		return
	}
	response.JSON(w, in)
}

func (s *Server) handleUpdateInitiative(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}

	s.mu.Lock()
	in, found := s.initiatives[id]
	if found {
		if req.Title != nil {
			in.Title = *req.Title
		}
		if req.Description != nil {
			in.Description = *req.Description
		}
		if req.Status != nil {
			in.Status = *req.Status
		}
		in.UpdatedAt = time.Now().UTC()
	}
	var cp models.Initiative
	if found {
		cp = *in
	}
	s.mu.Unlock()

	if !found {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Initiative not found", nil)
		return
	}
	response.JSON(w, cp)
}

func (s *Server) handleDeleteInitiative(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	s.mu.Lock()
	_, found := s.initiatives[id]
	delete(s.initiatives, id)
	delete(s.questions, id)
	delete(s.mrds, id)
	delete(s.scores, id)
	s.mu.Unlock()

	if !found {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Initiative not found", nil)
		return
	}
	response.NoContent(w)
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	in, ok := s.initiativeFromPath(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	qs := make([]*models.Question, 0, len(s.questions[in.ID]))
	for _, q := range s.questions[in.ID] {
		cp := *q
		qs = append(qs, &cp)
	}
	s.mu.Unlock()

	response.JSON(w, qs)
}

func (s *Server) handleAnswerQuestion(w http.ResponseWriter, r *http.Request) {
	in, ok := s.initiativeFromPath(w, r)
	if !ok {
		return
	}
	qid, ok := pathUUID(w, r, "qid")
	if !ok {
		return
	}

	var req struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}
	if req.Answer == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "answer is required", nil)
		return
	}

	s.mu.Lock()
	var answered *models.Question
	for _, q := range s.questions[in.ID] {
		if q.ID == qid {
			now := time.Now().UTC()
			q.Answer = &req.Answer
			q.AnsweredAt = &now
			cp := *q
			answered = &cp
			break
		}
	}
	s.mu.Unlock()

	if answered == nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Question not found", nil)
		return
	}
	response.JSON(w, answered)
}

func (s *Server) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	in, ok := s.initiativeFromPath(w, r)
	if !ok {
		return
	}

	job := s.startJob(models.JobTypeQuestionGeneration, func() (json.RawMessage, error) {
		if strings.HasPrefix(in.Title, failTitlePrefix) {
			return nil, fmt.Errorf("question generation failed for %q", in.Title)
		}

		now := time.Now().UTC()
		qs := make([]*models.Question, 0, len(questionTemplates))
		for i, tmpl := range questionTemplates {
			qs = append(qs, &models.Question{
				ID:           uuid.New(),
				InitiativeID: in.ID,
				Category:     tmpl.category,
				Text:         tmpl.text,
				Position:     i + 1,
				CreatedAt:    now,
			})
		}

		s.mu.Lock()
		s.questions[in.ID] = qs
		if cur, found := s.initiatives[in.ID]; found {
			cur.Status = models.InitiativeStatusDiscovery
			cur.UpdatedAt = now
		}
		s.mu.Unlock()

		return json.RawMessage(fmt.Sprintf(`{"question_count":%d}`, len(qs))), nil
	})

	response.Accepted(w, job)
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	in, ok := s.initiativeFromPath(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	byCategory := map[string]*models.CategoryReadiness{}
	var order []string
	answered, total := 0, 0
	for _, q := range s.questions[in.ID] {
		cr, found := byCategory[q.Category]
		if !found {
			cr = &models.CategoryReadiness{Category: q.Category}
			byCategory[q.Category] = cr
			order = append(order, q.Category)
		}
		cr.Total++
		total++
		if q.Answer != nil {
			cr.Answered++
			answered++
		}
	}
	s.mu.Unlock()

	readiness := models.Readiness{InitiativeID: in.ID}
	for _, cat := range order {
		readiness.Categories = append(readiness.Categories, *byCategory[cat])
	}
	if total > 0 {
		readiness.Percent = answered * 100 / total
	}
	readiness.Ready = total > 0 && readiness.Percent >= 80

	response.JSON(w, readiness)
}

func (s *Server) handleGenerateMRD(w http.ResponseWriter, r *http.Request) {
	in, ok := s.initiativeFromPath(w, r)
	if !ok {
		return
	}

	job := s.startJob(models.JobTypeMRDGeneration, func() (json.RawMessage, error) {
		if strings.HasPrefix(in.Title, failTitlePrefix) {
			return nil, fmt.Errorf("mrd generation failed for %q", in.Title)
		}

		s.mu.Lock()
		version := 1
		if prev, found := s.mrds[in.ID]; found {
			version = prev.Version + 1
		}
		mrd := &models.MRD{
			ID:           uuid.New(),
			InitiativeID: in.ID,
			Version:      version,
			Content:      buildMRDContent(in, s.questions[in.ID]),
			GeneratedAt:  time.Now().UTC(),
		}
		s.mrds[in.ID] = mrd
		s.mu.Unlock()

		return json.RawMessage(fmt.Sprintf(`{"mrd_id":%q,"version":%d}`, mrd.ID, mrd.Version)), nil
	})

	response.Accepted(w, job)
}

func (s *Server) handleGetMRD(w http.ResponseWriter, r *http.Request) {
	in, ok := s.initiativeFromPath(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	mrd, found := s.mrds[in.ID]
	var cp models.MRD
	if found {
		cp = *mrd
	}
	s.mu.Unlock()

	if !found {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "No MRD generated yet", nil)
		return
	}
	response.JSON(w, cp)
}

func (s *Server) handleCalculateScore(w http.ResponseWriter, r *http.Request) {
	in, ok := s.initiativeFromPath(w, r)
	if !ok {
		return
	}

	job := s.startJob(models.JobTypeScoreCalculation, func() (json.RawMessage, error) {
		if strings.HasPrefix(in.Title, failTitlePrefix) {
			return nil, fmt.Errorf("score calculation failed for %q", in.Title)
		}

		s.mu.Lock()
		answered := 0
		for _, q := range s.questions[in.ID] {
			if q.Answer != nil {
				answered++
			}
		}
		score := pseudoScore(in.ID, answered)
		s.scores[in.ID] = score
		if cur, found := s.initiatives[in.ID]; found {
			cur.Status = models.InitiativeStatusScored
			cur.UpdatedAt = time.Now().UTC()
		}
		s.mu.Unlock()

		return json.RawMessage(fmt.Sprintf(`{"score_id":%q}`, score.ID)), nil
	})

	response.Accepted(w, job)
}

func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	in, ok := s.initiativeFromPath(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	score, found := s.scores[in.ID]
	var cp models.Score
	if found {
		cp = *score
	}
	s.mu.Unlock()

	if !found {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "No score calculated yet", nil)
		return
	}
	response.JSON(w, cp)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, found := s.jobSnapshot(chi.URLParam(r, "jobID"))
	if !found {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
		return
	}
	response.JSON(w, job)
}

// --- helpers ---

func (s *Server) initiativeFromPath(w http.ResponseWriter, r *http.Request) (models.Initiative, bool) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return models.Initiative{}, false
	}

	s.mu.Lock()
	in, found := s.initiatives[id]
	var cp models.Initiative
	if found {
		cp = *in
	}
	s.mu.Unlock()

	if !found {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Initiative not found", nil)
		return models.Initiative{}, false
	}
	return cp, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", param+" must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

func buildMRDContent(in models.Initiative, questions []*models.Question) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n## Overview\n\n%s\n", in.Title, in.Description)

	answered := make([]*models.Question, 0, len(questions))
	for _, q := range questions {
		if q.Answer != nil {
			answered = append(answered, q)
		}
	}
	if len(answered) > 0 {
		b.WriteString("\n## Discovery findings\n")
		for _, q := range answered {
			fmt.Fprintf(&b, "\n**%s**\n\n%s\n", q.Text, *q.Answer)
		}
	}
	return b.String()
}

// pseudoScore derives deterministic scores from the initiative id and
// answer count so repeated runs against the stub are stable.
func pseudoScore(initiativeID uuid.UUID, answered int) *models.Score {
	base := float64(initiativeID[0]%8) + 1

	rice := models.RICEScore{
		Reach:      500 + 250*base,
		Impact:     1 + float64(answered)*0.25,
		Confidence: 0.5 + float64(answered)*0.05,
		Effort:     2 + base/2,
	}
	rice.Total = rice.Reach * rice.Impact * rice.Confidence / rice.Effort

	fdv := models.FDVScore{
		Feasibility:  4 + base/4,
		Desirability: 3 + float64(answered)*0.3,
		Viability:    5 + base/8,
	}
	fdv.Total = (fdv.Feasibility + fdv.Desirability + fdv.Viability) / 3

	return &models.Score{
		ID:           uuid.New(),
		InitiativeID: initiativeID,
		RICE:         rice,
		FDV:          fdv,
		Rationale:    fmt.Sprintf("Derived from %d answered discovery questions", answered),
		CalculatedAt: time.Now().UTC(),
	}
}
