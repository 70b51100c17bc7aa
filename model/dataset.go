package model

// Dataset names recognized by the backend factory and the tool-search server.
const (
	DatasetToolHop    = "toolhop"
	DatasetALFWorld   = "alfworld"
	DatasetWebShop    = "webshop"
	DatasetTMDB       = "tmdb"
	DatasetSpotify    = "spotify"
	DatasetGAIA       = "gaia"
	DatasetHLE        = "hle"
	DatasetBrowseComp = "browsecomp"
	DatasetToolBench  = "toolbench"
	DatasetAPIBank    = "api_bank"
)

// IsResearchDataset reports whether the dataset is served by the built-in
// research handlers (web search, page browsing, files, code, vision).
func IsResearchDataset(name string) bool {
	switch name {
	case DatasetGAIA, DatasetHLE, DatasetBrowseComp:
		return true
	}
	return false
}
