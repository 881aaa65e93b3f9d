// Package domain models colorbar legends, sampled rasters and the time series
// decoded from them.
//
// # Data Source
//
// Simulation output is published as one rendered PNG per variable and
// timestamp, together with a legend image (the "colorbar") that maps colors
// back to data values. A manifest lists, per domain, which raster and legend
// belong to each timestamp and variable, plus the level breakpoints the legend
// was drawn with.
//
// # Legend Conventions
//
// Layout:
//
//	A vertical colored band on a black or fully transparent background.
//	The top of the band is the high end of the scale, the bottom the low end.
//	Tick marks are drawn a few pixels to the left of the band, one per level,
//	in any non-transparent color.
//
// Background:
//
//	Pure black (0,0,0) is never a data color. Fully transparent pixels are
//	read as black, so both count as background. On a data raster black means
//	"no data" and decodes to the legend's zero value.
//
// Levels:
//
//	Listed in the manifest in either ascending or descending order. The last
//	level belongs to the topmost tick mark. Legends whose distinct color count
//	is close to the number of levels are stratified: every color snaps to the
//	level of its nearest tick mark. Other legends are continuous and are
//	interpolated linearly through the first two tick marks.
//
// Decoding:
//
//	A sampled color that is not exactly in the legend decodes to the value of
//	the nearest legend color by Manhattan distance over r, g and b. Ties go to
//	the color that appears first in the legend, reading top to bottom.
//
// # Sample Points
//
// Points are normalized to the raster's bounding box (x from the left edge,
// y from the top edge) so the same point can be sampled from rasters of
// different resolutions. Pixel coordinates are recomputed for every image.
//
// # Missing Data
//
// A timestamp whose raster or legend cannot be loaded yields a nil sample
// rather than failing the series. A legend with no colored band decodes every
// point to zero.
package domain
