// Package category holds the fixed subject taxonomy papers are filed under.
package category

import "strings"

// Category is one taxonomy tag, e.g. cs.AI.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Group is a parent subject with its categories, e.g. cs.
type Group struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Categories []Category `json:"categories"`
}

// Default is the category used when a paper has none to cite as primary.
const Default = "cs.AI"

var groups = []Group{
	{ID: "cs", Name: "Computer Science", Categories: []Category{
		{"cs.AI", "Artificial Intelligence"},
		{"cs.AR", "Hardware Architecture"},
		{"cs.CC", "Computational Complexity"},
		{"cs.CE", "Computational Engineering, Finance, and Science"},
		{"cs.CG", "Computational Geometry"},
		{"cs.CL", "Computation and Language"},
		{"cs.CR", "Cryptography and Security"},
		{"cs.CV", "Computer Vision and Pattern Recognition"},
		{"cs.CY", "Computers and Society"},
		{"cs.DB", "Databases"},
		{"cs.DC", "Distributed, Parallel, and Cluster Computing"},
		{"cs.DL", "Digital Libraries"},
		{"cs.DM", "Discrete Mathematics"},
		{"cs.DS", "Data Structures and Algorithms"},
		{"cs.ET", "Emerging Technologies"},
		{"cs.FL", "Formal Languages and Automata Theory"},
		{"cs.GL", "General Literature"},
		{"cs.GR", "Graphics"},
		{"cs.GT", "Computer Science and Game Theory"},
		{"cs.HC", "Human-Computer Interaction"},
		{"cs.IR", "Information Retrieval"},
		{"cs.IT", "Information Theory"},
		{"cs.LG", "Machine Learning"},
		{"cs.LO", "Logic in Computer Science"},
		{"cs.MA", "Multiagent Systems"},
		{"cs.MM", "Multimedia"},
		{"cs.MS", "Mathematical Software"},
		{"cs.NA", "Numerical Analysis"},
		{"cs.NE", "Neural and Evolutionary Computing"},
		{"cs.NI", "Networking and Internet Architecture"},
		{"cs.OH", "Other Computer Science"},
		{"cs.OS", "Operating Systems"},
		{"cs.PF", "Performance"},
		{"cs.PL", "Programming Languages"},
		{"cs.RO", "Robotics"},
		{"cs.SC", "Symbolic Computation"},
		{"cs.SD", "Sound"},
		{"cs.SE", "Software Engineering"},
		{"cs.SI", "Social and Information Networks"},
		{"cs.SY", "Systems and Control"},
	}},
	{ID: "econ", Name: "Economics", Categories: []Category{
		{"econ.EM", "Econometrics"},
		{"econ.GN", "General Economics"},
		{"econ.TH", "Theoretical Economics"},
	}},
	{ID: "eess", Name: "Electrical Engineering and Systems Science", Categories: []Category{
		{"eess.AS", "Audio and Speech Processing"},
		{"eess.IV", "Image and Video Processing"},
		{"eess.SP", "Signal Processing"},
		{"eess.SY", "Systems and Control"},
	}},
	{ID: "math", Name: "Mathematics", Categories: []Category{
		{"math.AG", "Algebraic Geometry"},
		{"math.CO", "Combinatorics"},
		{"math.IT", "Information Theory"},
		{"math.LO", "Logic"},
		{"math.NA", "Numerical Analysis"},
		{"math.NT", "Number Theory"},
		{"math.OC", "Optimization and Control"},
		{"math.PR", "Probability"},
		{"math.ST", "Statistics Theory"},
	}},
	{ID: "q-bio", Name: "Quantitative Biology", Categories: []Category{
		{"q-bio.NC", "Neurons and Cognition"},
		{"q-bio.QM", "Quantitative Methods"},
	}},
	{ID: "q-fin", Name: "Quantitative Finance", Categories: []Category{
		{"q-fin.CP", "Computational Finance"},
		{"q-fin.ST", "Statistical Finance"},
		{"q-fin.TR", "Trading and Market Microstructure"},
	}},
	{ID: "stat", Name: "Statistics", Categories: []Category{
		{"stat.AP", "Applications"},
		{"stat.CO", "Computation"},
		{"stat.ME", "Methodology"},
		{"stat.ML", "Machine Learning"},
		{"stat.TH", "Statistics Theory"},
	}},
}

var byID = func() map[string]Category {
	m := make(map[string]Category)
	for _, g := range groups {
		for _, c := range g.Categories {
			m[c.ID] = c
		}
	}
	return m
}()

// Groups returns a copy of the registry in display order.
func Groups() []Group {
	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = g
		out[i].Categories = append([]Category(nil), g.Categories...)
	}
	return out
}

// Valid reports whether id is a known category. Matching is exact.
func Valid(id string) bool {
	_, ok := byID[id]
	return ok
}

// Lookup returns the category with the given id.
func Lookup(id string) (Category, bool) {
	c, ok := byID[id]
	return c, ok
}

// Invalid returns the entries of ids that are not known categories, in input order.
func Invalid(ids []string) []string {
	var bad []string
	for _, id := range ids {
		if !Valid(id) {
			bad = append(bad, id)
		}
	}
	return bad
}

// GroupOf returns the subject group of a category id ("cs.AI" -> "cs").
// A bare group id is returned unchanged.
func GroupOf(id string) string {
	if i := strings.IndexByte(id, '.'); i >= 0 {
		return id[:i]
	}
	return id
}

// IsGroupFilter reports whether a filter names a whole group rather than one category.
func IsGroupFilter(filter string) bool {
	return !strings.Contains(filter, ".")
}
