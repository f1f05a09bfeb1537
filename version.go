package pyrite

// Build metadata, overridden at release time:
//
//	go build -ldflags "-X github.com/pyrite-lang/pyrite.version=v0.3.0 \
//	                   -X github.com/pyrite-lang/pyrite.commit=$(git rev-parse --short HEAD)"
var (
	version = "dev"
	commit  = "unknown"
)

// Version reports the build's version string and commit hash.
func Version() (string, string) {
	return version, commit
}
