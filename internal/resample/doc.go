// Package resample derives secondary products from an estimated raster.
//
// A Raster holds node values (Z) and their uncertainty (Sigma) on a uniform,
// ascending X/Y lattice. Point queries use bilinear interpolation; queries
// outside the lattice return NaN instead of an error so bulk passes over a
// grid or profile never abort on a single miss.
//
// Polylines are discretized along cumulative arc length, either with a fixed
// number of samples or with a fixed step that always ends exactly on the last
// vertex.
package resample
