package coordinator

import (
	"encoding/csv"
	"encoding/json"
	"html/template"
	"io"
	"net/http"

	"github.com/chordring/chord"
	"github.com/chordring/chord/logging"
	"github.com/chordring/chord/transport/httptransport"
)

// lookupRequest is the POST /lookup body spec §6 prescribes.
type lookupRequest struct {
	Key string `json:"key"`
}

// lookupResponse mirrors the LookupRes payload delivered back to an HTTP
// caller.
type lookupResponse struct {
	Key     string         `json:"key"`
	Hops    int            `json:"hops"`
	Found   bool           `json:"found"`
	Records []chord.Record `json:"records,omitempty"`
}

// dataView is the JSON shape of GET /data, per SPEC_FULL §4.1.
type dataView struct {
	Members []string `json:"members"`
	Logs    []string `json:"logs"`
}

var dashboardTemplate = template.Must(template.New("coordinator").Parse(`<!DOCTYPE html>
<html><head><title>chord ring coordinator</title></head>
<body>
<h1>ring coordinator</h1>
<h2>members ({{len .Members}})</h2>
<ul>{{range .Members}}<li>{{.}}</li>{{end}}</ul>
<h2>recent activity</h2>
<ul>{{range .Logs}}<li>{{.}}</li>{{end}}</ul>
</body></html>
`))

// NewServer builds the coordinator's HTTP handler: the inbound message
// union at POST /msg (ReqKnownNode/Registered/Leave/LookupRes arrive here
// from nodes), plus the client-facing POST /lookup, POST /upload (CSV bulk
// insert), GET /nodes, GET /data, and GET / dashboard spec §6 and SPEC_FULL
// §4.1/§9 call for.
func NewServer(c *Coordinator, log logging.Logger) http.Handler {
	if log == nil {
		log = logging.Nop{}
	}
	mux := http.NewServeMux()
	mux.Handle("/msg", httptransport.NewServer(c, log))

	mux.HandleFunc("/lookup", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req lookupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
			return
		}
		res, err := c.Lookup(req.Key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, log, lookupResponse{Key: res.Key, Hops: res.Hops, Found: res.Found, Records: res.Records})
	})

	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		records, err := parseCSVUpload(r, c.cfg)
		if err != nil {
			http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
			return
		}
		successes, failures := c.BulkInsert(records)
		writeJSON(w, log, struct {
			Inserted int `json:"inserted"`
			Failed   int `json:"failed"`
		}{Inserted: successes, Failed: failures})
	})

	mux.HandleFunc("/nodes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, log, struct {
			Members []string `json:"members"`
		}{Members: c.Members()})
	})

	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, log, dataView{Members: c.Members(), Logs: c.Logs()})
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if err := dashboardTemplate.Execute(w, dataView{Members: c.Members(), Logs: c.Logs()}); err != nil {
			log.Error("failed to render dashboard", logging.F("err", err.Error()))
		}
	})

	return mux
}

// parseCSVUpload reads a "key,value" CSV body — either a raw text/csv POST
// body or a multipart form field named "file" — per spec §6's "POST /upload
// with a CSV multipart". encoding/csv is a deliberate standard-library
// choice: no example repo in the retrieved pack imports a third-party CSV
// library (see DESIGN.md).
func parseCSVUpload(r *http.Request, cfg *chord.Config) ([]chord.Record, error) {
	var body io.Reader = r.Body
	if mf, _, err := r.FormFile("file"); err == nil {
		defer mf.Close()
		body = mf
	}

	reader := csv.NewReader(body)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	var records []chord.Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		key, value := row[0], row[1]
		records = append(records, chord.Record{Key: key, Value: value, KeyHash: chord.HashID(key, cfg)})
	}
	return records, nil
}

func writeJSON(w http.ResponseWriter, log logging.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", logging.F("err", err.Error()))
	}
}
