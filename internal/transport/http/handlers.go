package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"quiz-learning-service/internal/app"
)

type loginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type startSessionRequest struct {
	ModuleID string `json:"moduleId" validate:"required"`
}

type answerRequest struct {
	QuestionID     string `json:"questionId" validate:"required"`
	SelectedOption *int   `json:"selectedOption" validate:"required"`
	TimeSpentMs    int64  `json:"timeSpentMs" validate:"gte=0"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req app.RegisterInput
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.services.Auth.RegisterStudent(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.services.Auth.Login(r.Context(), req.Phone, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) createAdministrator(w http.ResponseWriter, r *http.Request) {
	var req app.RegisterInput
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.services.Auth.CreateAdministrator(r.Context(), identity(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) deactivateUser(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Auth.Deactivate(r.Context(), identity(r), chi.URLParam(r, "userID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listModules(w http.ResponseWriter, r *http.Request) {
	modules, err := s.services.Catalog.ListModules(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, modules)
}

func (s *Server) createModule(w http.ResponseWriter, r *http.Request) {
	var req app.ModuleInput
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	module, err := s.services.Catalog.CreateModule(r.Context(), identity(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, module)
}

func (s *Server) updateModule(w http.ResponseWriter, r *http.Request) {
	var req app.ModuleInput
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	module, err := s.services.Catalog.UpdateModule(r.Context(), identity(r), chi.URLParam(r, "moduleID"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, module)
}

func (s *Server) deleteModule(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Catalog.DeleteModule(r.Context(), identity(r), chi.URLParam(r, "moduleID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) playQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.services.Game.ModuleQuestions(r.Context(), chi.URLParam(r, "moduleID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.services.Catalog.ListQuestions(r.Context(), identity(r), chi.URLParam(r, "moduleID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (s *Server) createQuestion(w http.ResponseWriter, r *http.Request) {
	var req app.QuestionInput
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	question, err := s.services.Catalog.CreateQuestion(r.Context(), identity(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, question)
}

func (s *Server) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Catalog.DeleteQuestion(r.Context(), identity(r), chi.URLParam(r, "questionID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.services.Game.StartSession(r.Context(), identity(r), req.ModuleID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.services.Game.ListSessions(r.Context(), identity(r), r.URL.Query().Get("moduleId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	detail, err := s.services.Game.GetSession(r.Context(), identity(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) recordAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.services.Game.RecordAnswer(r.Context(), identity(r),
		chi.URLParam(r, "sessionID"), req.QuestionID, *req.SelectedOption,
		time.Duration(req.TimeSpentMs)*time.Millisecond,
	)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) finishSession(w http.ResponseWriter, r *http.Request) {
	result, err := s.services.Game.FinishSession(r.Context(), identity(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) bestSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.services.Game.BestSession(r.Context(), identity(r), chi.URLParam(r, "moduleID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) bestSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.services.Game.BestSessions(r.Context(), identity(r), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) studentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.services.Ranking.StudentStats(r.Context(), identity(r), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) allStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.services.Ranking.AllStudentStats(r.Context(), identity(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) ranking(w http.ResponseWriter, r *http.Request) {
	ranking, err := s.services.Ranking.BuildRanking(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ranking)
}
