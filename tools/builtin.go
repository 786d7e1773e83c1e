package tools

// Builtin assembles the standard catalog: file I/O behind the path
// allowlist, shell execution behind the command allowlist, the HTTP
// client, and the meta tools.
func Builtin(filesAllowed, shellAllowed []string) (*Registry, error) {
	r := NewRegistry()
	if err := registerFileTools(r, filesAllowed); err != nil {
		return nil, err
	}
	if err := registerShellTool(r, shellAllowed); err != nil {
		return nil, err
	}
	if err := registerHTTPTool(r); err != nil {
		return nil, err
	}
	if err := registerMetaTools(r); err != nil {
		return nil, err
	}
	return r, nil
}
