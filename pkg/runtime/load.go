package runtime

import (
	"fmt"

	"sigs.k8s.io/yaml"
)

type hostDoc struct {
	Nodes []string    `json:"nodes"`
	Edges [][2]string `json:"edges"`
}

// LoadHost decodes a host graph from YAML:
//
//	nodes: [n0, n1]
//	edges: [[n0, n1], [n1, n1]]
func LoadHost(data []byte) (*HostGraph, error) {
	var doc hostDoc
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("decode host graph: %w", err)
	}
	h := NewHostGraph()
	for _, n := range doc.Nodes {
		if n == "" {
			return nil, fmt.Errorf("decode host graph: empty node name")
		}
		if err := h.AddNodeID(n); err != nil {
			return nil, err
		}
	}
	for _, e := range doc.Edges {
		if err := h.AddEdge(e[0], e[1]); err != nil {
			return nil, fmt.Errorf("decode host graph: %w", err)
		}
	}
	return h, nil
}
