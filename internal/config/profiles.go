package config

// ProfileDir returns the directory cargo uses for a profile name.
// The built-in profiles share two directories; custom profiles use their own
// name.
func ProfileDir(profile string) string {
	switch profile {
	case "dev", "test", "debug":
		return "debug"
	case "release", "bench":
		return "release"
	default:
		return profile
	}
}

