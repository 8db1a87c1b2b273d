package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fintrack-dev/fintrack/internal/importer"
	"github.com/fintrack-dev/fintrack/internal/logging"
	"github.com/fintrack-dev/fintrack/internal/model"
)

// multipartMemory is how much of a preview upload is held in memory before
// spilling to temporary files.
const multipartMemory = 1 << 20

// SampleRow is one previewed row as shown to the reviewer.
type SampleRow struct {
	Index       int    `json:"index"`
	Date        string `json:"date,omitempty"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	Error       string `json:"error,omitempty"`
}

// PreviewResponse is returned by POST /api/import/preview.
type PreviewResponse struct {
	UploadID    string        `json:"uploadId"`
	TotalRows   int           `json:"totalRows"`
	Sample      []SampleRow   `json:"sample"`
	MappingUsed model.Mapping `json:"mappingUsed"`
}

// CommitRequest is the body of POST /api/import/commit. A missing selected
// list commits every row.
type CommitRequest struct {
	UploadID string `json:"uploadId"`
	Selected []int  `json:"selected"`
}

type presetInfo struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Mapping     model.Mapping `json:"mapping"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPresets(w http.ResponseWriter, _ *http.Request) {
	names := s.presets.Names()
	out := make([]presetInfo, 0, len(names))
	for _, name := range names {
		p := s.presets.Get(name)
		out = append(out, presetInfo{Name: p.Name, Description: p.Description, Mapping: p.Mapping})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooBig.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	mapping, err := s.mappingFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	preview, err := s.service.Preview(ctx, file, mapping, userFrom(ctx))
	if err != nil {
		log := logging.FromContext(ctx)
		log.Error().Err(err).Msg("preview failed")
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	writeJSON(w, http.StatusOK, PreviewResponse{
		UploadID:    preview.UploadID,
		TotalRows:   preview.TotalRows,
		Sample:      sampleRows(preview.Sample),
		MappingUsed: preview.MappingUsed,
	})
}

// mappingFromForm resolves the mapping for a preview: explicit JSON first,
// then a named preset. nil means detect from the header.
func (s *Server) mappingFromForm(r *http.Request) (*model.Mapping, error) {
	if raw := strings.TrimSpace(r.FormValue("mapping")); raw != "" {
		var m model.Mapping
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("invalid mapping: %w", err)
		}
		if m.DateFormat != "" {
			if _, err := importer.LayoutFromPattern(m.DateFormat); err != nil {
				return nil, fmt.Errorf("invalid mapping: %w", err)
			}
		}
		return &m, nil
	}
	if name := strings.TrimSpace(r.FormValue("preset")); name != "" {
		p := s.presets.Get(name)
		if p == nil {
			return nil, fmt.Errorf("unknown preset %q", name)
		}
		return &p.Mapping, nil
	}
	return nil, nil
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.UploadID) == "" {
		writeError(w, http.StatusBadRequest, "uploadId is required")
		return
	}

	res := s.service.Commit(ctx, req.UploadID, req.Selected, userFrom(ctx))
	writeJSON(w, http.StatusOK, res)
}

func sampleRows(rows []model.RowResult) []SampleRow {
	out := make([]SampleRow, len(rows))
	for i, rr := range rows {
		v := rr.Value()
		sr := SampleRow{
			Index:       i,
			Amount:      v.Amount.String(),
			Description: v.Description,
			Category:    v.Category,
		}
		if v.Date.IsValid() {
			sr.Date = v.Date.String()
		}
		if f, ok := rr.(model.FailedRow); ok {
			sr.Error = f.Reason()
		}
		out[i] = sr
	}
	return out
}
