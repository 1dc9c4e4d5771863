// Package engine contains the economy rules and the per-session game loop.
// This is the heartbeat of Turbo Tapper.
//
// ARCHITECTURAL RULE: only the Session goroutine mutates an Economy.
// Taps, purchases, referral grants and scheduler ticks all travel through the Session inbox,
// so every mutation runs to completion before the next one starts.
package engine
