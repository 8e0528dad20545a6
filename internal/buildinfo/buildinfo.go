package buildinfo

// Set via -ldflags at release time.
var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
}

// UserAgent identifies this service to external APIs.
func UserAgent() string {
	return "fieldroute/" + Version
}
