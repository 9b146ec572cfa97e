// Package annotate projects indexed build errors onto open source views
// as dismissible inline markers.
//
// Rendering is best-effort: files without an open view are skipped
// silently, and the marker set for each view is replaced atomically on
// every update. Marker content is HTML with the error message escaped;
// the dismiss action hides every marker at once, matching the behavior
// users expect from inline build errors.
//
// The renderer carries an enabled flag: HideAll flips it off so output
// arriving after a hide does not resurrect markers until the next build
// re-enables rendering.
package annotate
