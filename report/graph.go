package report

import (
	"fmt"
	"html/template"
	"io"

	"github.com/hernandocastelli/zone-transfer/transfer"
)

// Graph renders a self-contained HTML page that draws the results as a
// cytoscape graph: the zone in the center, one node per nameserver, and
// one node per leaked record hanging off its nameserver.
type Graph struct{}

// Element is one cytoscape graph element, either a node or an edge.
type Element struct {
	Data ElementData `json:"data"`
}

// ElementData carries the cytoscape data fields. Source and Target are set
// on edges only; Kind and Status on nodes only.
type ElementData struct {
	ID     string `json:"id"`
	Label  string `json:"label,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Status string `json:"status,omitempty"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
}

// Elements builds the graph element list for a run.
func Elements(zone string, results []transfer.Result) []Element {
	els := []Element{
		{Data: ElementData{ID: zone, Label: zone, Kind: "zone"}},
	}

	edge := 0
	for _, res := range results {
		els = append(els, Element{Data: ElementData{
			ID:     res.Nameserver,
			Label:  res.Nameserver,
			Kind:   "nameserver",
			Status: string(res.Status),
		}})
		els = append(els, Element{Data: ElementData{
			ID:     fmt.Sprintf("e%d", edge),
			Label:  string(res.Status),
			Source: zone,
			Target: res.Nameserver,
		}})
		edge++

		for i, rec := range res.Records {
			id := fmt.Sprintf("%s/%d", res.Nameserver, i)
			els = append(els, Element{Data: ElementData{
				ID:    id,
				Label: fmt.Sprintf("%s %s", rec.Name, rec.Type),
				Kind:  "record",
			}})
			els = append(els, Element{Data: ElementData{
				ID:     fmt.Sprintf("e%d", edge),
				Source: res.Nameserver,
				Target: id,
			}})
			edge++
		}
	}
	return els
}

func (Graph) Write(w io.Writer, zone string, results []transfer.Result) error {
	data := struct {
		Zone     string
		Elements []Element
	}{
		Zone:     zone,
		Elements: Elements(zone, results),
	}
	return graphPage.Execute(w, data)
}

// The element list is serialized into the script block by html/template,
// which JSON-encodes it for the JS context.
var graphPage = template.Must(template.New("graph").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Zone transfer graph: {{.Zone}}</title>
<script src="https://cdnjs.cloudflare.com/ajax/libs/cytoscape/3.30.2/cytoscape.min.js"></script>
<style>
html, body { margin: 0; height: 100%; }
#cy { width: 100%; height: 100%; display: block; }
</style>
</head>
<body>
<div id="cy"></div>
<script>
var cy = cytoscape({
  container: document.getElementById('cy'),
  elements: {{.Elements}},
  layout: { name: 'concentric' },
  style: [
    { selector: 'node', style: { shape: 'round-tag', 'background-color': '#4a7ebb', 'label': 'data(label)' } },
    { selector: 'node[kind = "zone"]', style: { 'background-color': '#2c3e50' } },
    { selector: 'node[status = "VULNERABLE"]', style: { 'background-color': '#c0392b' } },
    { selector: 'node[kind = "record"]', style: { 'background-color': '#e67e22' } },
    { selector: 'edge', style: { 'width': 1, 'line-color': '#999' } }
  ]
});
</script>
</body>
</html>
`))
