package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/pauljones0/harvester/internal/collection"
	"github.com/pauljones0/harvester/internal/export"
	"github.com/pauljones0/harvester/internal/identity"
	"github.com/pauljones0/harvester/internal/ingest"
	"github.com/pauljones0/harvester/internal/models"
	"github.com/pauljones0/harvester/internal/scriptgen"
)

const (
	maxPasteBytes   = ingest.MaxFileSize
	maxSessionBytes = 64 << 10
	defaultUpload   = "upload.json"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type postsResponse struct {
	Segment collection.Segment `json:"segment"`
	Count   int                `json:"count"`
	Total   int                `json:"total"`
	Posts   []models.Post      `json:"posts"`
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	state := s.app.Collection()
	segment := state.Segment()
	if q := r.URL.Query().Get("segment"); q != "" {
		parsed, err := collection.ParseSegment(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
			return
		}
		segment = parsed
	}

	posts := state.ViewOf(segment)
	writeJSON(w, http.StatusOK, postsResponse{
		Segment: segment,
		Count:   len(posts),
		Total:   state.Len(),
		Posts:   posts,
	})
}

func (s *Server) handleSetSegment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Segment string `json:"segment"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxSessionBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "body must be {\"segment\": \"...\"}")
		return
	}
	segment, err := collection.ParseSegment(req.Segment)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	s.app.SetSegment(segment)
	writeJSON(w, http.StatusOK, map[string]any{"segment": segment})
}

// handleIngestFile accepts either a multipart form with a "file" part or the
// raw document as the request body (named by ?name=).
func (s *Server) handleIngestFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		name := r.URL.Query().Get("name")
		if name == "" {
			name = defaultUpload
		}
		n, err := s.app.IngestFile(ctx, name, r.Body)
		s.ingested(w, r, n, err)
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "multipart form has no \"file\" part")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		name := part.FileName()
		if name == "" {
			name = defaultUpload
		}
		n, err := s.app.IngestFile(ctx, name, part)
		part.Close()
		s.ingested(w, r, n, err)
		return
	}
}

func (s *Server) ingested(w http.ResponseWriter, r *http.Request, n int, err error) {
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"ingested": n,
		"total":    s.app.Collection().Len(),
	})
}

func (s *Server) handleGetPaste(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"text": s.app.Staged()})
}

func (s *Server) handleStagePaste(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPasteBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if len(body) > maxPasteBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "InvalidRequest", "pasted text is too large")
		return
	}
	s.app.Stage(string(body))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIngestPaste(w http.ResponseWriter, r *http.Request) {
	n, err := s.app.IngestPaste(r.Context())
	s.ingested(w, r, n, err)
}

func (s *Server) handleLoadSample(w http.ResponseWriter, r *http.Request) {
	n, err := s.app.LoadSample(r.Context())
	s.ingested(w, r, n, err)
}

func (s *Server) handleToggleStar(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.ToggleStar(r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	data, err := export.Bytes(format, s.app.Collection().Posts())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(format, s.now())))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleScraperScript(w http.ResponseWriter, r *http.Request) {
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "count must be an integer")
		return
	}
	script, err := s.scripts.Generate(count)
	if errors.Is(err, scriptgen.ErrTargetCount) {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"harvester_scraper_%d.js\"", count))
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, script)
}

type sessionResponse struct {
	SignedIn      bool               `json:"signedIn"`
	RemoteEnabled bool               `json:"remoteEnabled"`
	Identity      *identity.Identity `json:"identity,omitempty"`
}

func (s *Server) sessionState() sessionResponse {
	resp := sessionResponse{RemoteEnabled: s.app.RemoteEnabled()}
	if id, ok := s.app.Session(); ok {
		resp.SignedIn = true
		resp.Identity = &id
	}
	return resp
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessionState())
}

// handleSignIn takes a Google ID token from {"idToken": "..."} or an
// Authorization bearer header.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		var req struct {
			IDToken string `json:"idToken"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxSessionBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "body must be {\"idToken\": \"...\"}")
			return
		}
		token = req.IDToken
	}

	if _, err := s.app.SignIn(r.Context(), strings.TrimSpace(token)); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionState())
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.app.SignOut(r.Context())
	writeJSON(w, http.StatusOK, s.sessionState())
}

func (s *Server) handleNotices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"notices": s.app.Hub().Recent()})
}
