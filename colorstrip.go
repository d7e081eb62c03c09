package pmtrace

import "regexp"

// ansiColorRE matches an ANSI CSI color escape: ESC [ digits m.
var ansiColorRE = regexp.MustCompile("\x1b\\[[0-9]+m")

// StripColor removes ANSI CSI color escapes from s, returning s
// unchanged if none are present. Front-ends are expected to run stack
// frame strings through this before handing events to a Builder, so
// that serialized traces stay readable for downstream tooling.
func StripColor(s string) string {
	if !ansiColorRE.MatchString(s) {
		return s
	}
	return ansiColorRE.ReplaceAllString(s, "")
}
