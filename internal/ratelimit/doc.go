// Package ratelimit spaces remote calls and enforces per-class budgets.
//
// Issue calls and comment calls draw from separate budgets, each bounded by a
// fixed one-minute and one-hour window. Admission stays below a soft limit
// held back from the hard limit by a safety margin; once a window's soft limit
// is reached the limiter sleeps until the window boundary and starts a fresh
// window. Consecutive calls across all classes are additionally spaced apart
// by a fixed pause.
package ratelimit
