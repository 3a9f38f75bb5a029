package manifold

// DefaultSegments is the number of sides of a branch tube. Vine branches
// are thin, so a coarse polygon reads as round.
const DefaultSegments = 8
