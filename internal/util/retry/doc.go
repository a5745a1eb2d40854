// Package retry re-runs operations that fail transiently.
//
// [Do] backs off exponentially between attempts, capped at a maximum delay.
// It backs SSH connection attempts and cloud API calls. Errors wrapped with
// [Fatal] end the loop at once.
package retry
