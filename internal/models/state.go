package models

// FileState is the download state of a file, in order of increasing
// freshness requirement.
type FileState int

const (
	StateNotDownloaded FileState = iota
	StateDownloading
	StateDownloaded
	StateOutdated
)

func (s FileState) String() string {
	switch s {
	case StateNotDownloaded:
		return "not_downloaded"
	case StateDownloading:
		return "downloading"
	case StateDownloaded:
		return "downloaded"
	case StateOutdated:
		return "outdated"
	default:
		return "unknown"
	}
}
