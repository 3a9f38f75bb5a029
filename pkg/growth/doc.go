// Package growth advances growth graphs over a scene.
//
// Engine.Step moves every live root forward by one node, combining a
// primary heading, a random wander, gravity and surface adhesion, then
// resolving the proposed segment against the scene. A Spawner may fork one
// new root per step. Randomness is drawn from an injected Rand so runs are
// reproducible.
package growth
