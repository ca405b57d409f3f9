package version

// Build metadata, injected via -ldflags. Build defaults to "dev".
var (
	Build       = "dev"
	BuildDate   = ""
	GitRevision = ""
)

// String returns the build identifier with the revision when known.
func String() string {
	if GitRevision == "" {
		return Build
	}
	return Build + " (" + GitRevision + ")"
}
