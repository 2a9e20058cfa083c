// Package roundup implements the weekly photo roundup: it finds the latest
// photo-sharing thread, counts image contributions per member, announces a
// leaderboard, archives the thread and hands the award role to the top
// contributor.
//
// A run is strictly sequential. Missing data (no channel, no thread, no
// pictures, ...) ends the run early with a skipped Report and no error; any
// platform failure is returned and aborts the remaining steps without undoing
// completed ones.
package roundup
