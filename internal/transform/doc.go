// Package transform is the catalog of image transformations a release can apply.
//
// Each Kind maps to a Spec holding a strongly typed parameter struct, the pixel
// function, the annotation geometry function for geometric kinds, and the
// auto-value derivation rule for kinds that support dual-value planning.
//
// # Dual-Value Kinds
//
// A dual-value transformation carries a user-chosen value and a derived "opposite"
// value. Every dual kind documents exactly one rule:
//
//	brightness, contrast, saturation  Percent  negate
//	hue                               Degrees  negate
//	rotate, shear                     Degrees  negate
//	gamma                             Gamma    reciprocal (1/g)
//	crop                              OffsetX  mirror within [0, 100-Scale]
//
// # Geometry
//
// Geometric kinds return an annotation.Mapper that maps a source point to its
// destination position given the source and destination image sizes. The mappers
// are exact for the pixel operations used here, so rotate, shear, crop and zoom keep
// labels aligned as precisely as flip and resize do. Boxes are mapped by their four
// corners and re-enveloped, so rotated boxes grow to contain the rotated corners.
package transform
