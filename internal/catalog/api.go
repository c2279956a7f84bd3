package catalog

import (
	"errors"
	"math"
	"net/http"

	"github.com/banshee-data/geko/internal/httputil"
)

type entryJSON struct {
	ID        string   `json:"id"`
	Dir       string   `json:"dir"`
	File      string   `json:"file"`
	Norm      string   `json:"norm"`
	Date      string   `json:"date"`
	Nork      int      `json:"nork"`
	Nvec      int      `json:"nvec"`
	ModelID   int      `json:"model_id"`
	BestIdx   int      `json:"best_idx"`
	Models    int      `json:"n_models"`
	MAE       *float64 `json:"mae"`
	RMSE      *float64 `json:"rmse"`
	Corr      *float64 `json:"corr"`
	LoadError string   `json:"load_error,omitempty"`
	IndexedAt string   `json:"indexed_at"`
}

type modelJSON struct {
	ModelIdx      int      `json:"model_idx"`
	Rank          int      `json:"rank"`
	MAE           *float64 `json:"mae"`
	RMSE          *float64 `json:"rmse"`
	Corr          *float64 `json:"corr"`
	NCoefficients int      `json:"n_coefficients"`
}

// jsonFloat maps NaN to null since encoding/json rejects it.
func jsonFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func toEntryJSON(e Entry) entryJSON {
	return entryJSON{
		ID: e.ID, Dir: e.Dir, File: e.File, Norm: e.Norm, Date: e.Date,
		Nork: e.Nork, Nvec: e.Nvec, ModelID: e.ModelID, BestIdx: e.BestIdx, Models: e.Models,
		MAE: jsonFloat(e.MAE), RMSE: jsonFloat(e.RMSE), Corr: jsonFloat(e.Corr),
		LoadError: e.LoadError, IndexedAt: e.IndexedAt,
	}
}

// AttachAPIRoutes mounts the read-only catalog API on mux:
//
//	GET /api/checkpoints[?dir=d]
//	GET /api/checkpoints/{id}
//	GET /api/checkpoints/{id}/models
func (c *Catalog) AttachAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/checkpoints", c.serveEntries)
	mux.HandleFunc("/api/checkpoints/{id}", c.serveEntry)
	mux.HandleFunc("/api/checkpoints/{id}/models", c.serveModels)
}

func (c *Catalog) serveEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	entries, err := c.List(r.URL.Query().Get("dir"))
	if err != nil {
		httputil.InternalServerError(w, "failed to list catalog: "+err.Error())
		return
	}
	out := make([]entryJSON, len(entries))
	for i, e := range entries {
		out[i] = toEntryJSON(e)
	}
	httputil.WriteJSONOK(w, out)
}

func (c *Catalog) serveEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	e, err := c.Get(r.PathValue("id"))
	switch {
	case errors.Is(err, ErrNotFound):
		httputil.NotFound(w, err.Error())
	case err != nil:
		httputil.InternalServerError(w, err.Error())
	default:
		httputil.WriteJSONOK(w, toEntryJSON(e))
	}
}

func (c *Catalog) serveModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id := r.PathValue("id")
	if _, err := c.Get(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalServerError(w, err.Error())
		return
	}
	models, err := c.Models(id)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	out := make([]modelJSON, len(models))
	for i, m := range models {
		out[i] = modelJSON{
			ModelIdx: m.ModelIdx, Rank: m.Rank,
			MAE: jsonFloat(m.MAE), RMSE: jsonFloat(m.RMSE), Corr: jsonFloat(m.Corr),
			NCoefficients: m.NCoefficients,
		}
	}
	httputil.WriteJSONOK(w, out)
}
