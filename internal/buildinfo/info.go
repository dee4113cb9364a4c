package buildinfo

var (
	Version    = "v0.1.0"
	CommitHash = "unknown"
)

type Info struct {
	About      string `json:"about,omitempty"`
	Service    string `json:"service,omitempty"`
	Version    string `json:"version,omitempty"`
	CommitHash string `json:"commit_hash,omitempty"`
}

// GetBuildInfo describes the running binary on behalf of the named service.
func GetBuildInfo(service string) Info {
	return Info{
		About:      "https://github.com/oks-citadel/svcauth",
		Service:    service,
		Version:    Version,
		CommitHash: CommitHash,
	}
}
