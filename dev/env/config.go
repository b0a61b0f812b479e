package devenv

// SourceTestConfig points live source tests at a real award search portal,
// it is read from dev/.state/sources.json5.
type SourceTestConfig struct {
	NsfBaseUrl string `json:"nsf_base_url"`
	// a year with a small number of awards keeps the live export quick
	Year     int    `json:"year"`
	Keywords string `json:"keywords"`
}
