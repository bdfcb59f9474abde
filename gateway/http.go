package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deltasync/deltasync/config"
	"github.com/deltasync/deltasync/indexsyncerrors"
	"github.com/deltasync/deltasync/metrics"
	"github.com/deltasync/deltasync/rdfvalue"
)

// AuthGroupHeader carries a JSON-serialized allowed-group set on scoped
// requests; it is absent on sudo requests.
const AuthGroupHeader = "mu-auth-allowed-groups"

// HTTPGateway is a SPARQL 1.1 Query/Update client over HTTP. A gateway not
// produced by Scoped is sudo: no authorization header is sent. A scoped
// gateway always sends the header, even for an empty group set.
type HTTPGateway struct {
	Endpoint string
	Client   *http.Client
	groups   config.AllowedGroups
	hasScope bool
}

// NewSudoGateway builds a gateway that issues unauthorized (sudo) queries
// only — callers must route ordinary reads through Scoped.
func NewSudoGateway(endpoint string, client *http.Client) *HTTPGateway {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPGateway{Endpoint: endpoint, Client: client}
}

func (g *HTTPGateway) Scoped(groups config.AllowedGroups) Gateway {
	return &HTTPGateway{Endpoint: g.Endpoint, Client: g.Client, groups: groups, hasScope: true}
}

func (g *HTTPGateway) scopeLabel() string {
	if g.hasScope {
		return "scoped"
	}
	return "sudo"
}

func (g *HTTPGateway) do(ctx context.Context, kind string, body url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint, strings.NewReader(body.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", indexsyncerrors.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")
	if g.hasScope {
		encoded, err := json.Marshal(g.groups)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding allowed groups: %v", indexsyncerrors.ErrAuth, err)
		}
		req.Header.Set(AuthGroupHeader, string(encoded))
	}

	timer := prometheusTimer()
	resp, err := g.Client.Do(req)
	metrics.GatewayQueryDuration.WithLabelValues(kind, g.scopeLabel()).Observe(timer())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", indexsyncerrors.ErrTransport, err)
	}
	return resp, nil
}

func prometheusTimer() func() float64 {
	start := time.Now()
	return func() float64 { return time.Since(start).Seconds() }
}

func (g *HTTPGateway) Select(ctx context.Context, query string) ([]Binding, error) {
	resp, err := g.do(ctx, "select", url.Values{"query": {query}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: status %d", indexsyncerrors.ErrAuth, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", indexsyncerrors.ErrQuery, resp.StatusCode, string(payload))
	}

	var decoded sparqlResultsJSON
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decoding results: %v", indexsyncerrors.ErrQuery, err)
	}
	bindings := make([]Binding, 0, len(decoded.Results.Bindings))
	for _, row := range decoded.Results.Bindings {
		b := make(Binding, len(row))
		for k, term := range row {
			b[k] = rdfvalue.Term{
				Type:     mapTermType(term.Type),
				Value:    term.Value,
				Datatype: term.Datatype,
				Lang:     term.Lang,
			}
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

func mapTermType(sparqlType string) string {
	if sparqlType == "uri" {
		return rdfvalue.KindURI
	}
	return rdfvalue.KindLiteral
}

func (g *HTTPGateway) Ask(ctx context.Context, query string) (bool, error) {
	resp, err := g.do(ctx, "ask", url.Values{"query": {query}})
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return false, fmt.Errorf("%w: status %d", indexsyncerrors.ErrAuth, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("%w: status %d: %s", indexsyncerrors.ErrQuery, resp.StatusCode, string(payload))
	}
	var decoded struct {
		Boolean bool `json:"boolean"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return false, fmt.Errorf("%w: decoding ask result: %v", indexsyncerrors.ErrQuery, err)
	}
	return decoded.Boolean, nil
}

func (g *HTTPGateway) Update(ctx context.Context, query string) error {
	resp, err := g.do(ctx, "update", url.Values{"update": {query}})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: status %d", indexsyncerrors.ErrAuth, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", indexsyncerrors.ErrQuery, resp.StatusCode, string(payload))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type sparqlResultsJSON struct {
	Results struct {
		Bindings []map[string]sparqlTermJSON `json:"bindings"`
	} `json:"results"`
}

type sparqlTermJSON struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

