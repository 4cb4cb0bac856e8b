package node

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/chordring/chord"
	"github.com/chordring/chord/logging"
	"github.com/chordring/chord/transport/httptransport"
)

// dataView is the JSON shape of GET /data, per SPEC_FULL §4.2: the node's
// ring pointers, successor list, finger table, and local store, intended for
// the status dashboard.
type dataView struct {
	ID          string            `json:"id"`
	Predecessor string            `json:"predecessor"`
	Successors  []string          `json:"successors"`
	Fingers     []fingerView      `json:"fingers"`
	Store       []chord.Record    `json:"store"`
	InRing      bool              `json:"in_ring"`
}

type fingerView struct {
	Start chord.ID `json:"start"`
	Owner string   `json:"owner,omitempty"`
}

func (n *Node) snapshot() dataView {
	n.mu.Lock()
	view := dataView{
		ID:          n.id,
		Predecessor: n.predecessor,
		Successors:  n.successors.All(),
		InRing:      n.inRing,
	}
	for i := 0; i < n.fingers.Len(); i++ {
		e := n.fingers.At(i)
		view.Fingers = append(view.Fingers, fingerView{Start: e.Start, Owner: e.Owner})
	}
	n.mu.Unlock()
	view.Store = n.kv.SelectByArc(nil, nil)
	return view
}

var dashboardTemplate = template.Must(template.New("node").Parse(`<!DOCTYPE html>
<html><head><title>chord node {{.ID}}</title></head>
<body>
<h1>node {{.ID}}</h1>
<p>in ring: {{.InRing}}</p>
<p>predecessor: {{.Predecessor}}</p>
<h2>successors</h2>
<ul>{{range .Successors}}<li>{{.}}</li>{{end}}</ul>
<h2>fingers</h2>
<table border="1"><tr><th>start</th><th>owner</th></tr>
{{range .Fingers}}<tr><td>{{.Start}}</td><td>{{.Owner}}</td></tr>{{end}}
</table>
<h2>store ({{len .Store}} records)</h2>
<ul>{{range .Store}}<li>{{.Key}} = {{.Value}}</li>{{end}}</ul>
</body></html>
`))

// NewServer builds the node's HTTP handler: the httptransport wire contract
// (/msg, /successors, /insert) plus SPEC_FULL's GET /data status JSON and
// GET / HTML dashboard.
func NewServer(n *Node, log logging.Logger) http.Handler {
	if log == nil {
		log = logging.Nop{}
	}
	mux := http.NewServeMux()
	base := httptransport.NewServer(n, log)
	mux.Handle("/msg", base)
	mux.Handle("/successors", base)
	mux.Handle("/insert", base)

	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(n.snapshot()); err != nil {
			log.Error("failed to encode node status", logging.F("err", err.Error()))
		}
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if err := dashboardTemplate.Execute(w, n.snapshot()); err != nil {
			log.Error("failed to render dashboard", logging.F("err", err.Error()))
		}
	})

	return mux
}
