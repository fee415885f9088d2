// Package taxonomy maps finding categories onto public weakness
// classifications (CWE ids and OWASP Top 10 items).
package taxonomy

// Category is one weakness class with its external references.
type Category struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	CWE     []string `yaml:"cwe"`
	OWASP   []string `yaml:"owasp"`
}

// References returns the category's CWE ids followed by its OWASP items,
// the latter prefixed with "OWASP ".
func (c Category) References() []string {
	refs := make([]string, 0, len(c.CWE)+len(c.OWASP))
	refs = append(refs, c.CWE...)
	for _, o := range c.OWASP {
		refs = append(refs, "OWASP "+o)
	}
	return refs
}

// file is the top-level YAML structure of a references table.
type file struct {
	Categories []Category `yaml:"categories"`
}
