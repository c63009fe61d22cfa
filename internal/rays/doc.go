// Package rays holds renderable particle-ray geometry.
//
// The package defines:
//
//   - [Vec3]: instrument-space vector
//   - [Event], [Ray]: one particle path as a list of recorded interactions
//   - [Dataset]: the immutable, installed-once ray collection
//   - [Transformer]: converts a raw trace payload into a [Dataset]
//   - [Inspect]: narrows a [Transformer] to rays reaching one component
//
// # Example
//
//	raw, _ := trace.NewFileLoader(nil).Fetch(ctx, "particles.json")
//	ds, err := rays.NewParticleTransformer(nil).Transform(raw)
//	if errors.Is(err, rays.ErrMalformed) {
//	    // payload was not a particle bundle
//	}
//
// # Thread Safety
//
// A [Dataset] is never mutated after construction and may be read from any
// goroutine.
package rays
