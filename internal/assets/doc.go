// Package assets retrieves and classifies the files belonging to a resolved
// AMIS record: the print template plus the property, listing, and title-deed
// image categories.
//
// The template is mandatory and fetched first; the image categories are
// optional and downloaded concurrently since they share no state. Every
// asset leaves this package already tagged with its kind and source order,
// so the assembler needs no further classification.
package assets
