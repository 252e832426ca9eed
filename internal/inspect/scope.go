package inspect

import "path"

// matchPattern accepts either a trailing-"*" prefix shorthand or a full
// path.Match glob, matching the reference implementation's use of a
// prefix fast path alongside fnmatch.
func matchPattern(value, pattern string) bool {
	if n := len(pattern); n > 0 && pattern[n-1] == '*' {
		prefix := pattern[:n-1]
		if len(value) >= len(prefix) && value[:len(prefix)] == prefix {
			return true
		}
	}
	ok, err := path.Match(pattern, value)
	return err == nil && ok
}

// inScope decides whether (room, channel) falls within the configured
// inspection scope. An empty include list means "inspect everything
// not excluded".
func inScope(room, channel string, cfg *Config) bool {
	if !cfg.Enabled {
		return false
	}

	var target string
	switch {
	case room != "" && channel != "":
		target = room + ":" + channel
	case room != "":
		target = room
	case channel != "":
		target = channel
	}
	if target == "" {
		return false
	}

	for _, pattern := range cfg.Scope.Exclude {
		if matchPattern(target, pattern) {
			return false
		}
	}
	if len(cfg.Scope.Include) == 0 {
		return true
	}
	for _, pattern := range cfg.Scope.Include {
		if matchPattern(target, pattern) {
			return true
		}
	}
	return false
}
