package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/hollowspire.game/internal/passives/graph"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GraphResourceURI addresses the full tree document.
const GraphResourceURI = "hollowspire://passives/graph"

// nodeResourcePrefix addresses a single node by id.
const nodeResourcePrefix = "hollowspire://passives/nodes/"

// GraphResource declares the readable tree document resource.
func GraphResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "passives_graph",
		Title:       "Passive Tree",
		Description: "The passive tree document being served, in the graph JSON format",
		MIMEType:    "application/json",
		URI:         GraphResourceURI,
	}
}

// GraphResourceHandler serves the raw tree document bytes.
func GraphResourceHandler(document func() []byte) mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if document == nil {
			return nil, fmt.Errorf("tree document is not configured")
		}
		uri := GraphResourceURI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(document()),
				},
			},
		}, nil
	}
}

// NodeResourceTemplate declares per-node resources.
func NodeResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "passives_node",
		Title:       "Passive Node",
		Description: "Readable detail for one passive node. URI format: hollowspire://passives/nodes/{node_id}",
		MIMEType:    "application/json",
		URITemplate: nodeResourcePrefix + "{node_id}",
	}
}

// NodeResourceHandler serves one node's detail as JSON.
func NodeResourceHandler(g *graph.Graph) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if g == nil {
			return nil, fmt.Errorf("graph is not configured")
		}
		if req == nil || req.Params == nil || strings.TrimSpace(req.Params.URI) == "" {
			return nil, fmt.Errorf("node URI is required; use format %s{node_id}", nodeResourcePrefix)
		}
		uri := req.Params.URI

		id, err := parseNodeIDFromURI(uri)
		if err != nil {
			return nil, err
		}

		handler := NodeInspectHandler(g)
		_, detail, err := handler(ctx, nil, NodeInspectInput{NodeID: id})
		if err != nil {
			return nil, err
		}

		data, err := json.MarshalIndent(detail, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal node detail: %w", err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}

// parseNodeIDFromURI extracts the node id from a node resource URI.
func parseNodeIDFromURI(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, nodeResourcePrefix)
	if !ok {
		return "", fmt.Errorf("parse node URI %q: expected prefix %s", uri, nodeResourcePrefix)
	}
	id := strings.TrimSpace(rest)
	if id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("parse node URI %q: node id segment is invalid", uri)
	}
	return id, nil
}
