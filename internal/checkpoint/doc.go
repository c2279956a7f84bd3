// Package checkpoint loads and writes geko checkpoint containers.
//
// A checkpoint (.gck) records one completed model-fitting run: the fitting
// parameters and summary metrics (metadata) and the cross-validated candidate
// models (payload). The container is a gzip-compressed JSON document with
// exactly two top-level keys, "metadata" and "payload". It is validated once
// at load time and is read-only afterwards, so a loaded *Checkpoint may be
// shared between any number of readers.
//
// Ranking orders candidates by cross-validated RMSE; the first ranked record
// is the best model.
package checkpoint
