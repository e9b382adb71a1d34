// Package patches holds patch text shipped with the program.
package patches

import _ "embed"

// Default is the starter patch: kick on beats one and three, snare on two and
// four, probabilistic hats on eighths and a minor scale bassline.
//
//go:embed default.js
var Default string
