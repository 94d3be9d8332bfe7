package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rpggio/phasetrack/internal/domain/artifact"
	"github.com/rpggio/phasetrack/internal/domain/note"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/domain/project"
	"github.com/rpggio/phasetrack/internal/export"
)

type createProjectBody struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

type updateProjectBody struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type saveProgressBody struct {
	ProjectID     string          `json:"projectId"`
	ModuleNumber  int             `json:"moduleNumber"`
	PhaseNumber   int             `json:"phaseNumber"`
	Content       *string         `json:"content"`
	PromptCreated *string         `json:"promptCreated"`
	Status        progress.Status `json:"status"`
}

type createArtifactBody struct {
	ProjectID       string `json:"projectId"`
	ArtifactType    string `json:"artifactType"`
	ArtifactContent string `json:"artifactContent"`
}

type createNoteBody struct {
	ProjectID string  `json:"projectId"`
	Content   *string `json:"content"`
}

type updateNoteBody struct {
	Content *string `json:"content"`
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}

// Projects

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	list, err := s.services.Projects.Summaries(r.Context(), credential(r))
	if err != nil {
		respondError(w, s.logger, r, err, failure{internal: "Failed to fetch projects"})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	proj, err := s.services.Projects.Get(r.Context(), credential(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, s.logger, r, err, failure{
			internal:    "Failed to fetch project",
			notFound:    "Project not found",
			notFoundErr: project.ErrProjectNotFound,
		})
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var body createProjectBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project data", nil)
		return
	}
	proj, err := s.services.Projects.Create(r.Context(), credential(r), project.CreateRequest{
		Title:       body.Title,
		Description: body.Description,
	})
	if err != nil {
		respondError(w, s.logger, r, err, failure{internal: "Failed to create project"})
		return
	}
	writeJSON(w, http.StatusCreated, proj)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	var body updateProjectBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project data", nil)
		return
	}
	proj, err := s.services.Projects.Update(r.Context(), credential(r), chi.URLParam(r, "id"), project.UpdateRequest{
		Title:       body.Title,
		Description: body.Description,
	})
	if err != nil {
		respondError(w, s.logger, r, err, failure{
			internal:    "Failed to update project",
			notFound:    "Project not found",
			notFoundErr: project.ErrProjectNotFound,
		})
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	err := s.services.Projects.Delete(r.Context(), credential(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, s.logger, r, err, failure{
			internal:    "Failed to delete project",
			notFound:    "Project not found",
			notFoundErr: project.ErrProjectNotFound,
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) projectProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	notFound := failure{
		internal:    "Failed to fetch module progress",
		notFound:    "Project not found",
		notFoundErr: project.ErrProjectNotFound,
	}
	if _, err := s.services.Projects.Get(r.Context(), credential(r), id); err != nil {
		respondError(w, s.logger, r, err, notFound)
		return
	}
	completion, err := s.services.Progress.ProjectCompletion(r.Context(), credential(r), id)
	if err != nil {
		respondError(w, s.logger, r, err, notFound)
		return
	}
	writeJSON(w, http.StatusOK, completion)
}

func (s *Server) exportProject(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid export format", nil)
		return
	}
	bundle, err := s.services.Exporter.Build(r.Context(), credential(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, s.logger, r, err, failure{
			internal:    "Failed to export project",
			notFound:    "Project not found",
			notFoundErr: project.ErrProjectNotFound,
		})
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.FileName(bundle.Project.Title, format)))
	w.WriteHeader(http.StatusOK)
	if err := s.services.Exporter.Write(w, bundle, format); err != nil {
		s.logger.Error("writing export failed", "project_id", bundle.Project.ID, "error", err)
	}
}

// Module progress

func (s *Server) listModuleProgress(w http.ResponseWriter, r *http.Request) {
	list, err := s.services.Progress.List(r.Context(), credential(r), r.URL.Query().Get("projectId"))
	if err != nil {
		respondError(w, s.logger, r, err, failure{internal: "Failed to fetch module progress"})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) saveModuleProgress(w http.ResponseWriter, r *http.Request) {
	var body saveProgressBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields", nil)
		return
	}
	rec, err := s.services.Progress.Upsert(r.Context(), credential(r), progress.UpsertRequest{
		ProjectID:      body.ProjectID,
		ModuleNumber:   body.ModuleNumber,
		PhaseNumber:    body.PhaseNumber,
		Content:        body.Content,
		PromptCreated:  body.PromptCreated,
		Status:         body.Status,
		FallbackStatus: progress.StatusInProgress,
	})
	if err != nil {
		respondError(w, s.logger, r, err, failure{internal: "Failed to update module progress"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Master artifacts

func (s *Server) listMasterArtifacts(w http.ResponseWriter, r *http.Request) {
	list, err := s.services.Artifacts.List(r.Context(), credential(r), r.URL.Query().Get("projectId"))
	if err != nil {
		respondError(w, s.logger, r, err, failure{internal: "Failed to fetch master artifacts"})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createMasterArtifact(w http.ResponseWriter, r *http.Request) {
	var body createArtifactBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid artifact data", nil)
		return
	}
	a, err := s.services.Artifacts.Create(r.Context(), credential(r), artifact.CreateRequest{
		ProjectID:       body.ProjectID,
		ArtifactType:    body.ArtifactType,
		ArtifactContent: body.ArtifactContent,
	})
	if err != nil {
		respondError(w, s.logger, r, err, failure{internal: "Failed to create master artifact"})
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Notes

func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	list, err := s.services.Notes.List(r.Context(), credential(r), r.URL.Query().Get("projectId"))
	if err != nil {
		respondError(w, s.logger, r, err, failure{internal: "Failed to fetch notes"})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createNote(w http.ResponseWriter, r *http.Request) {
	var body createNoteBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid note data", nil)
		return
	}
	n, err := s.services.Notes.Create(r.Context(), credential(r), note.CreateRequest{
		ProjectID: body.ProjectID,
		Content:   body.Content,
	})
	if err != nil {
		respondError(w, s.logger, r, err, failure{internal: "Failed to create note"})
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) updateNote(w http.ResponseWriter, r *http.Request) {
	var body updateNoteBody
	if err := decodeJSON(r, &body); err != nil || body.Content == nil {
		writeError(w, http.StatusBadRequest, "Invalid note content", nil)
		return
	}
	n, err := s.services.Notes.Update(r.Context(), credential(r), chi.URLParam(r, "id"), *body.Content)
	if err != nil {
		respondError(w, s.logger, r, err, failure{
			internal:    "Failed to update note",
			notFound:    "Note not found",
			notFoundErr: note.ErrNoteNotFound,
		})
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) deleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Notes.Delete(r.Context(), credential(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, s.logger, r, err, failure{
			internal:    "Failed to delete note",
			notFound:    "Note not found",
			notFoundErr: note.ErrNoteNotFound,
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Framework catalog

type frameworkResponse struct {
	Framework    any               `json:"framework"`
	Philosophy   map[string]string `json:"philosophy,omitempty"`
	TotalPhases  int               `json:"totalPhases"`
	TotalModules int               `json:"totalModules"`
}

func (s *Server) frameworkInfo(w http.ResponseWriter, _ *http.Request) {
	cat := s.services.Catalog
	writeJSON(w, http.StatusOK, frameworkResponse{
		Framework:    cat.Meta(),
		Philosophy:   cat.Philosophy(),
		TotalPhases:  cat.TotalPhases(),
		TotalModules: len(cat.Modules()),
	})
}

func (s *Server) frameworkModules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.services.Catalog.Modules())
}

func (s *Server) frameworkPhases(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid module number", nil)
		return
	}
	writeJSON(w, http.StatusOK, s.services.Catalog.PhasesByModule(n))
}
