// Package synth computes patch correspondences for exemplar-based hole
// filling and reconstructs the hole from them.
//
// A Field maps every cell that needs filling to the centre of a source patch
// elsewhere in the image, together with the dissimilarity of the two
// patches. Fields are seeded by InitializeUnknown, InitializeRandom or Adopt
// (from a coarser pyramid level), refined in place by an Optimizer and
// consumed by Synthesize.
//
// Optimizer sweeps run on disjoint row bands concurrently. Each band writes
// only its own rows but reads neighbouring rows owned by other bands. Cells
// are single machine words accessed atomically, so such a read observes
// either the neighbour's previous or its updated patch, both of which are
// valid propagation candidates. This race is intentional and confined to
// Field; every write goes through a Band whose row range is checked.
package synth
